// Package brokerv1 defines the BrokerService Connect API by hand:
// procedure names, request/response messages, and the JSON codec the
// service speaks. The messages are plain structs rather than
// generated protobuf — the payloads are opaque byte slices consumed
// only by first-party clients, so there is no schema to share.
package brokerv1

// BrokerServiceName is the fully-qualified Connect service name.
const BrokerServiceName = "timedmq.broker.v1.BrokerService"

// Procedure paths for each BrokerService method.
const (
	BrokerServiceOpenProcedure    = "/" + BrokerServiceName + "/Open"
	BrokerServiceCloseProcedure   = "/" + BrokerServiceName + "/Close"
	BrokerServiceWriteProcedure   = "/" + BrokerServiceName + "/Write"
	BrokerServiceReadProcedure    = "/" + BrokerServiceName + "/Read"
	BrokerServiceControlProcedure = "/" + BrokerServiceName + "/Control"
	BrokerServiceFlushProcedure   = "/" + BrokerServiceName + "/Flush"
)

// Control command codes. Any other value is rejected with
// CodeInvalidArgument.
const (
	CommandSetSendTimeout        int32 = 1
	CommandSetRecvTimeout        int32 = 2
	CommandRevokeDelayedMessages int32 = 3
)

// OpenRequest opens a session against an instance.
type OpenRequest struct {
	Instance int32 `json:"instance"`
}

// OpenResponse carries the new session handle.
type OpenResponse struct {
	Handle string `json:"handle"`
}

// CloseRequest closes a session.
type CloseRequest struct {
	Handle string `json:"handle"`
}

// CloseResponse is empty.
type CloseResponse struct{}

// WriteRequest posts a payload through a session.
type WriteRequest struct {
	Handle  string `json:"handle"`
	Payload []byte `json:"payload"`
}

// WriteResponse reports the bytes written; zero for a non-empty
// payload means the write was deferred by the session's send timeout.
type WriteResponse struct {
	Written int64 `json:"written"`
}

// ReadRequest withdraws the head message of the session's instance.
// Cap bounds the delivered bytes; a message longer than Cap is
// truncated and the surplus discarded.
type ReadRequest struct {
	Handle string `json:"handle"`
	Cap    uint32 `json:"cap"`
}

// ReadResponse carries the delivered payload.
type ReadResponse struct {
	Payload []byte `json:"payload"`
}

// ControlRequest adjusts a session's operating mode. ArgMs is the
// timeout argument in milliseconds for the two timeout commands and
// ignored for CommandRevokeDelayedMessages.
type ControlRequest struct {
	Handle  string `json:"handle"`
	Command int32  `json:"command"`
	ArgMs   int64  `json:"arg_ms"`
}

// ControlResponse is empty.
type ControlResponse struct{}

// FlushRequest resets an instance: pending deferred writes are
// revoked and parked readers are woken.
type FlushRequest struct {
	Instance int32 `json:"instance"`
}

// FlushResponse is empty.
type FlushResponse struct{}
