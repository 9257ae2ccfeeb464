package heating

import "errors"

var (
	// ErrMissingEntity indicates a required entity does not exist on the host.
	ErrMissingEntity = errors.New("required entity missing")

	// ErrNotReady indicates required entities exist but hold no valid data yet.
	ErrNotReady = errors.New("required entities not ready")

	// ErrInvalidEventTime indicates a schedule's next_event could not be parsed.
	ErrInvalidEventTime = errors.New("invalid schedule event time")
)
