package handler

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/otterscale/timedmq/internal/core"
)

// sentinelToConnectCode maps the broker's sentinel errors to their
// ConnectRPC equivalents.
var sentinelToConnectCode = []struct {
	err  error
	code connect.Code
}{
	{core.ErrMessageTooLarge, connect.CodeInvalidArgument},
	{core.ErrNoSpace, connect.CodeResourceExhausted},
	{core.ErrNoMessage, connect.CodeNotFound},
	{core.ErrTimedOut, connect.CodeDeadlineExceeded},
	{core.ErrFlushed, connect.CodeAborted},
	{core.ErrInterrupted, connect.CodeCanceled},
	{core.ErrNegativeTimeout, connect.CodeInvalidArgument},
}

// domainErrorToConnectError converts a broker error into a ConnectRPC
// error with a semantically equivalent code. Typed errors
// (ErrSessionNotFound, ErrInstanceNotFound) are checked first, then
// the sentinel taxonomy. Unrecognised errors fall back to
// connect.CodeInternal.
func domainErrorToConnectError(err error) error {
	var sessionNotFound *core.ErrSessionNotFound
	if errors.As(err, &sessionNotFound) {
		return connect.NewError(connect.CodeNotFound, err)
	}
	var instanceNotFound *core.ErrInstanceNotFound
	if errors.As(err, &instanceNotFound) {
		return connect.NewError(connect.CodeNotFound, err)
	}

	for _, m := range sentinelToConnectCode {
		if errors.Is(err, m.err) {
			return connect.NewError(m.code, err)
		}
	}
	return connect.NewError(connect.CodeInternal, err)
}
