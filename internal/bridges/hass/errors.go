package hass

import "errors"

var (
	// ErrOutboxFull is returned when the outbound queue cannot take more messages.
	ErrOutboxFull = errors.New("outbox full")

	// ErrOutboxClosed is returned after the outbox has stopped.
	ErrOutboxClosed = errors.New("outbox closed")

	// ErrRequestTimeout is passed to a schedule callback when the host does not answer.
	ErrRequestTimeout = errors.New("schedule request timed out")

	// ErrRequestFailed is passed to a schedule callback when the host reports an error.
	ErrRequestFailed = errors.New("schedule request failed")

	// ErrScheduleNotFound is passed when the response carries no rules for the entity.
	ErrScheduleNotFound = errors.New("schedule not in response")

	// ErrInvalidTopic is returned for topics outside the expected layout.
	ErrInvalidTopic = errors.New("invalid topic")
)
