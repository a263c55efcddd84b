package brokerv1

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// BrokerServiceHandler is the server-side contract of BrokerService.
type BrokerServiceHandler interface {
	Open(context.Context, *connect.Request[OpenRequest]) (*connect.Response[OpenResponse], error)
	Close(context.Context, *connect.Request[CloseRequest]) (*connect.Response[CloseResponse], error)
	Write(context.Context, *connect.Request[WriteRequest]) (*connect.Response[WriteResponse], error)
	Read(context.Context, *connect.Request[ReadRequest]) (*connect.Response[ReadResponse], error)
	Control(context.Context, *connect.Request[ControlRequest]) (*connect.Response[ControlResponse], error)
	Flush(context.Context, *connect.Request[FlushRequest]) (*connect.Response[FlushResponse], error)
}

// NewBrokerServiceHandler builds an HTTP handler for svc. It returns
// the path prefix to mount the handler on, in the same shape as
// Connect's generated constructors so it drops straight into
// mux.Handle.
func NewBrokerServiceHandler(svc BrokerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(codec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(BrokerServiceOpenProcedure,
		connect.NewUnaryHandler(BrokerServiceOpenProcedure, svc.Open, opts...))
	mux.Handle(BrokerServiceCloseProcedure,
		connect.NewUnaryHandler(BrokerServiceCloseProcedure, svc.Close, opts...))
	mux.Handle(BrokerServiceWriteProcedure,
		connect.NewUnaryHandler(BrokerServiceWriteProcedure, svc.Write, opts...))
	mux.Handle(BrokerServiceReadProcedure,
		connect.NewUnaryHandler(BrokerServiceReadProcedure, svc.Read, opts...))
	mux.Handle(BrokerServiceControlProcedure,
		connect.NewUnaryHandler(BrokerServiceControlProcedure, svc.Control, opts...))
	mux.Handle(BrokerServiceFlushProcedure,
		connect.NewUnaryHandler(BrokerServiceFlushProcedure, svc.Flush, opts...))

	return "/" + BrokerServiceName + "/", mux
}

// BrokerServiceClient is the client-side contract of BrokerService.
type BrokerServiceClient interface {
	Open(context.Context, *connect.Request[OpenRequest]) (*connect.Response[OpenResponse], error)
	Close(context.Context, *connect.Request[CloseRequest]) (*connect.Response[CloseResponse], error)
	Write(context.Context, *connect.Request[WriteRequest]) (*connect.Response[WriteResponse], error)
	Read(context.Context, *connect.Request[ReadRequest]) (*connect.Response[ReadResponse], error)
	Control(context.Context, *connect.Request[ControlRequest]) (*connect.Response[ControlResponse], error)
	Flush(context.Context, *connect.Request[FlushRequest]) (*connect.Response[FlushResponse], error)
}

// NewBrokerServiceClient builds a BrokerService client for the given
// base URL (scheme and host, no trailing slash).
func NewBrokerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) BrokerServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(codec{})}, opts...)

	return &brokerServiceClient{
		open:    connect.NewClient[OpenRequest, OpenResponse](httpClient, baseURL+BrokerServiceOpenProcedure, opts...),
		close:   connect.NewClient[CloseRequest, CloseResponse](httpClient, baseURL+BrokerServiceCloseProcedure, opts...),
		write:   connect.NewClient[WriteRequest, WriteResponse](httpClient, baseURL+BrokerServiceWriteProcedure, opts...),
		read:    connect.NewClient[ReadRequest, ReadResponse](httpClient, baseURL+BrokerServiceReadProcedure, opts...),
		control: connect.NewClient[ControlRequest, ControlResponse](httpClient, baseURL+BrokerServiceControlProcedure, opts...),
		flush:   connect.NewClient[FlushRequest, FlushResponse](httpClient, baseURL+BrokerServiceFlushProcedure, opts...),
	}
}

type brokerServiceClient struct {
	open    *connect.Client[OpenRequest, OpenResponse]
	close   *connect.Client[CloseRequest, CloseResponse]
	write   *connect.Client[WriteRequest, WriteResponse]
	read    *connect.Client[ReadRequest, ReadResponse]
	control *connect.Client[ControlRequest, ControlResponse]
	flush   *connect.Client[FlushRequest, FlushResponse]
}

func (c *brokerServiceClient) Open(ctx context.Context, req *connect.Request[OpenRequest]) (*connect.Response[OpenResponse], error) {
	return c.open.CallUnary(ctx, req)
}

func (c *brokerServiceClient) Close(ctx context.Context, req *connect.Request[CloseRequest]) (*connect.Response[CloseResponse], error) {
	return c.close.CallUnary(ctx, req)
}

func (c *brokerServiceClient) Write(ctx context.Context, req *connect.Request[WriteRequest]) (*connect.Response[WriteResponse], error) {
	return c.write.CallUnary(ctx, req)
}

func (c *brokerServiceClient) Read(ctx context.Context, req *connect.Request[ReadRequest]) (*connect.Response[ReadResponse], error) {
	return c.read.CallUnary(ctx, req)
}

func (c *brokerServiceClient) Control(ctx context.Context, req *connect.Request[ControlRequest]) (*connect.Response[ControlResponse], error) {
	return c.control.CallUnary(ctx, req)
}

func (c *brokerServiceClient) Flush(ctx context.Context, req *connect.Request[FlushRequest]) (*connect.Response[FlushResponse], error) {
	return c.flush.CallUnary(ctx, req)
}
