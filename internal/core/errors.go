package core

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the broker's failure taxonomy. Callers are
// expected to test them with errors.Is; the handler layer maps each to
// a Connect code.
var (
	// ErrMessageTooLarge is returned by Write when the payload
	// exceeds the configured maximum message size.
	ErrMessageTooLarge = errors.New("message exceeds maximum message size")

	// ErrNoSpace is returned by an immediate Write when storing the
	// payload would exceed the instance's storage budget. A deferred
	// write that hits the budget at fire time is dropped silently.
	ErrNoSpace = errors.New("instance storage full")

	// ErrNoMessage is returned by Read when the instance is empty
	// and the session's receive timeout is zero.
	ErrNoMessage = errors.New("no message available")

	// ErrTimedOut is returned by a blocking Read whose receive
	// timeout elapsed without a delivery.
	ErrTimedOut = errors.New("read timed out")

	// ErrFlushed is returned by a blocking Read that was woken by
	// Flush. It takes precedence over a concurrent delivery.
	ErrFlushed = errors.New("read canceled by flush")

	// ErrInterrupted is returned by a blocking Read whose context
	// was canceled while neither a delivery nor a flush occurred.
	ErrInterrupted = errors.New("read interrupted")

	// ErrNegativeTimeout is returned by the timeout setters when
	// given a negative duration.
	ErrNegativeTimeout = errors.New("timeout must not be negative")
)

// ErrInstanceNotFound indicates an instance index outside [0, N).
type ErrInstanceNotFound struct {
	Instance int
}

func (e *ErrInstanceNotFound) Error() string {
	return fmt.Sprintf("instance %d not found", e.Instance)
}

// ErrSessionNotFound indicates a handle that does not name an open
// session, either because it never existed or because the session was
// already closed.
type ErrSessionNotFound struct {
	Handle string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session %s not found", e.Handle)
}
