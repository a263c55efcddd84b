// Package server implements the broker runtime that serves the
// BrokerService API together with its operational endpoints (health,
// metrics).
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"connectrpc.com/authn"

	"github.com/otterscale/timedmq/internal/core"
	"github.com/otterscale/timedmq/internal/transport"
	transporthttp "github.com/otterscale/timedmq/internal/transport/http"
)

// Config holds the runtime parameters for a Server.
type Config struct {
	Address        string
	AllowedOrigins []string
	AuthToken      string
}

// Server binds the HTTP API and the background stats loop, running
// them in parallel via transport.Serve.
type Server struct {
	handler *Handler
	broker  *core.Broker
}

// NewServer returns a Server wired to the given handler and broker.
func NewServer(handler *Handler, broker *core.Broker) *Server {
	return &Server{handler: handler, broker: broker}
}

// Run starts the HTTP server and the stats loop. It blocks until ctx
// is cancelled or an unrecoverable error occurs; on the way out the
// broker is reset so parked readers are not stranded.
func (s *Server) Run(ctx context.Context, cfg Config) error {
	opts := []transporthttp.ServerOption{
		transporthttp.WithAddress(cfg.Address),
		transporthttp.WithAllowedOrigins(cfg.AllowedOrigins),
		transporthttp.WithMount(s.handler.Mount),
	}
	if cfg.AuthToken != "" {
		opts = append(opts,
			transporthttp.WithAuthMiddleware(staticTokenMiddleware(cfg.AuthToken)),
			transporthttp.WithPublicPaths([]string{
				"/grpc.health.v1.Health/Check",
				"/grpc.health.v1.Health/Watch",
				"/metrics",
			}),
		)
	}

	httpSrv, err := transporthttp.NewServer(opts...)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	defer s.broker.Shutdown()

	return transport.Serve(ctx, httpSrv, newStatsListener(s.broker))
}

// staticTokenMiddleware authenticates every RPC with a constant-time
// comparison against the configured bearer token.
func staticTokenMiddleware(token string) *authn.Middleware {
	return authn.NewMiddleware(func(_ context.Context, r *http.Request) (any, error) {
		got, ok := authn.BearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return nil, authn.Errorf("invalid bearer token")
		}
		return "client", nil
	})
}
