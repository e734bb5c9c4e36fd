package voice

import "errors"

var (
	// ErrSessionNotFound is returned when no live session exists for an id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession is returned when a session id is already registered.
	ErrDuplicateSession = errors.New("session already exists")

	// ErrSessionTerminated is returned when Advance is called on a COMPLETED
	// or ABORTED session. The event is stale and must be dropped by the
	// caller; the session state is unchanged.
	ErrSessionTerminated = errors.New("session already terminated")
)
