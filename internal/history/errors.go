package history

import "errors"

var (
	// ErrNotFound is returned when a history entry does not exist.
	ErrNotFound = errors.New("history entry not found")

	// ErrInvalidRetention is returned when pruning with a non-positive window.
	ErrInvalidRetention = errors.New("retention must be positive")
)
