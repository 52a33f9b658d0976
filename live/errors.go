package live

import "errors"

var (
	// ErrNoRenderer returned when no renderer has been set on a handler.
	ErrNoRenderer = errors.New("no renderer has been set on the handler")

	// ErrNoEventHandler returned when a handler has no event for the requested event.
	ErrNoEventHandler = errors.New("view missing event handler")

	// ErrMessageMalformed returned when a message could not be parsed correctly.
	ErrMessageMalformed = errors.New("message malformed")

	// ErrRateLimited returned when a socket sends events faster than allowed.
	ErrRateLimited = errors.New("socket event rate exceeded")
)
