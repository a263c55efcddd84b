// Package handler implements the ConnectRPC service handlers that
// form the server's public API. Each handler translates between API
// messages and the broker engine in package core.
package handler

import (
	"context"
	"fmt"
	"time"

	"connectrpc.com/connect"

	pb "github.com/otterscale/timedmq/api/broker/v1"
	"github.com/otterscale/timedmq/internal/core"
)

// BrokerService implements the BrokerService Connect handler on top
// of the broker engine.
type BrokerService struct {
	broker *core.Broker
}

// NewBrokerService returns a BrokerService backed by the given broker.
func NewBrokerService(broker *core.Broker) *BrokerService {
	return &BrokerService{broker: broker}
}

var _ pb.BrokerServiceHandler = (*BrokerService)(nil)

// Open attaches a new session to the requested instance and returns
// its handle.
func (s *BrokerService) Open(_ context.Context, req *connect.Request[pb.OpenRequest]) (*connect.Response[pb.OpenResponse], error) {
	handle, err := s.broker.Open(int(req.Msg.Instance))
	if err != nil {
		return nil, domainErrorToConnectError(err)
	}
	return connect.NewResponse(&pb.OpenResponse{Handle: handle}), nil
}

// Close detaches a session, waiting for its in-flight deferred posts.
func (s *BrokerService) Close(_ context.Context, req *connect.Request[pb.CloseRequest]) (*connect.Response[pb.CloseResponse], error) {
	if err := s.broker.Close(req.Msg.Handle); err != nil {
		return nil, domainErrorToConnectError(err)
	}
	return connect.NewResponse(&pb.CloseResponse{}), nil
}

// Write posts a payload through a session. A zero Written for a
// non-empty payload means the session's send timeout deferred the post.
func (s *BrokerService) Write(_ context.Context, req *connect.Request[pb.WriteRequest]) (*connect.Response[pb.WriteResponse], error) {
	n, err := s.broker.Write(req.Msg.Handle, req.Msg.Payload)
	if err != nil {
		return nil, domainErrorToConnectError(err)
	}
	return connect.NewResponse(&pb.WriteResponse{Written: int64(n)}), nil
}

// maxReadCap bounds the delivery buffer a single Read RPC may ask
// for, keeping request-controlled allocations in check.
const maxReadCap = 4 << 20

// Read withdraws the head message, truncated to the requested cap.
// The RPC blocks for up to the session's receive timeout; client
// disconnection cancels ctx and surfaces as an interrupted read.
func (s *BrokerService) Read(ctx context.Context, req *connect.Request[pb.ReadRequest]) (*connect.Response[pb.ReadResponse], error) {
	if req.Msg.Cap > maxReadCap {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("cap %d exceeds maximum %d", req.Msg.Cap, maxReadCap))
	}
	buf := make([]byte, req.Msg.Cap)
	n, err := s.broker.Read(ctx, req.Msg.Handle, buf)
	if err != nil {
		return nil, domainErrorToConnectError(err)
	}
	return connect.NewResponse(&pb.ReadResponse{Payload: buf[:n]}), nil
}

// Control dispatches the three session control commands. Timeout
// arguments are milliseconds.
func (s *BrokerService) Control(_ context.Context, req *connect.Request[pb.ControlRequest]) (*connect.Response[pb.ControlResponse], error) {
	handle := req.Msg.Handle
	arg := time.Duration(req.Msg.ArgMs) * time.Millisecond

	var err error
	switch req.Msg.Command {
	case pb.CommandSetSendTimeout:
		err = s.broker.SetSendTimeout(handle, arg)
	case pb.CommandSetRecvTimeout:
		err = s.broker.SetRecvTimeout(handle, arg)
	case pb.CommandRevokeDelayedMessages:
		err = s.broker.Revoke(handle)
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("unknown control command %d", req.Msg.Command))
	}
	if err != nil {
		return nil, domainErrorToConnectError(err)
	}
	return connect.NewResponse(&pb.ControlResponse{}), nil
}

// Flush resets an instance: pending deferred writes are revoked and
// parked readers are woken.
func (s *BrokerService) Flush(_ context.Context, req *connect.Request[pb.FlushRequest]) (*connect.Response[pb.FlushResponse], error) {
	if err := s.broker.Flush(int(req.Msg.Instance)); err != nil {
		return nil, domainErrorToConnectError(err)
	}
	return connect.NewResponse(&pb.FlushResponse{}), nil
}
