// Package http provides the H2C server that fronts the broker's
// Connect API, with CORS and optional bearer-token authentication
// middleware. It implements transport.Listener.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"connectrpc.com/authn"
	connectcors "connectrpc.com/cors"
	"github.com/rs/cors"
)

// MountFunc registers handlers onto the provided ServeMux.
// Accepting *http.ServeMux allows the caller to register multiple services.
type MountFunc func(mux *http.ServeMux) error

// ServerOption configures a Server.
type ServerOption func(*Server)

// Server is an HTTP/H2C server with optional CORS and authentication
// middleware. It implements transport.Listener.
type Server struct {
	inner          *http.Server
	address        string
	listener       net.Listener
	mount          MountFunc
	authMiddleware *authn.Middleware
	publicPaths    map[string]struct{}
	allowedOrigins []string
	log            *slog.Logger
}

// WithAddress configures the listen address (e.g. ":8321").
func WithAddress(address string) ServerOption {
	return func(s *Server) { s.address = address }
}

// WithListener provides an external net.Listener for the server to
// use. When set, Start will serve on this listener instead of
// creating a new TCP listener from the configured address.
func WithListener(ln net.Listener) ServerOption {
	return func(s *Server) { s.listener = ln }
}

// WithMount configures the function that registers route handlers.
func WithMount(mount MountFunc) ServerOption {
	return func(s *Server) { s.mount = mount }
}

// WithAuthMiddleware configures the authentication middleware.
func WithAuthMiddleware(m *authn.Middleware) ServerOption {
	return func(s *Server) { s.authMiddleware = m }
}

// WithPublicPaths configures paths that bypass authentication.
// Paths are normalised to always include a leading "/".
func WithPublicPaths(paths []string) ServerOption {
	return func(s *Server) {
		if len(paths) == 0 {
			return
		}
		if s.publicPaths == nil {
			s.publicPaths = make(map[string]struct{}, len(paths))
		}
		for _, p := range paths {
			if p == "" {
				continue
			}
			if p[0] != '/' {
				p = "/" + p
			}
			s.publicPaths[p] = struct{}{}
		}
	}
}

// WithAllowedOrigins configures the allowed origins for CORS. Empty
// allows all origins.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithHTTPLogger configures a structured logger. Defaults to
// slog.Default with a "component" attribute.
func WithHTTPLogger(log *slog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// NewServer creates a new HTTP server with the given options.
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		address: ":8321",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default().With("component", "http-server")
	}
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.address)
		if err != nil {
			return nil, fmt.Errorf("http listen %q: %w", s.address, err)
		}
		s.listener = ln
	}

	handler, err := s.buildHandler()
	if err != nil {
		return nil, err
	}

	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	s.inner = &http.Server{
		Addr:              s.address,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Blocking reads can park for the session's receive
		// timeout, so the write timeout bounds it too.
		ReadTimeout:    5 * time.Minute,
		WriteTimeout:   5 * time.Minute,
		MaxHeaderBytes: 8 * 1024, // 8 KiB
		Protocols:      protocols,
	}

	return s, nil
}

// Handler returns the server's top-level HTTP handler. This is useful
// for testing the middleware chain without starting a real listener.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Start begins accepting connections and blocks until the server is
// shut down or an unrecoverable error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.inner.BaseContext = func(net.Listener) context.Context {
		return ctx
	}

	s.log.Info("starting",
		"address", s.listener.Addr().String(),
		"auth", s.authMiddleware != nil,
		"public_paths", len(s.publicPaths),
		"allowed_origins", s.allowedOrigins,
	)

	if err := s.inner.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}

	return nil
}

// Stop gracefully drains connections. If the graceful shutdown
// exceeds the context deadline it forces an immediate close.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down")
	if err := s.inner.Shutdown(ctx); err != nil {
		s.log.Error("graceful shutdown failed, forcing close", "error", err)
		return s.inner.Close()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Middleware chain
// ---------------------------------------------------------------------------

// buildHandler assembles the middleware stack.
// Order: H2C -> CORS -> Auth -> Mux
func (s *Server) buildHandler() (http.Handler, error) {
	mux := http.NewServeMux()
	if s.mount != nil {
		if err := s.mount(mux); err != nil {
			return nil, fmt.Errorf("mount routes: %w", err)
		}
	}

	var handler http.Handler = mux

	// Authentication
	if s.authMiddleware != nil {
		handler = s.wrapAuth(mux, handler)
	}

	// CORS
	handler = s.wrapCORS(handler)

	return handler, nil
}

// wrapAuth applies the authn middleware, skipping public paths.
func (s *Server) wrapAuth(mux *http.ServeMux, next http.Handler) http.Handler {
	protected := s.authMiddleware.Wrap(next)
	if len(s.publicPaths) == 0 {
		return protected
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.publicPaths[r.URL.Path]; ok {
			mux.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})
}

// wrapCORS applies CORS headers. When no origins are configured it
// allows all origins.
func (s *Server) wrapCORS(next http.Handler) http.Handler {
	if len(s.allowedOrigins) == 0 {
		return cors.AllowAll().Handler(next)
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   connectcors.AllowedMethods(),
		AllowedHeaders:   connectcors.AllowedHeaders(),
		ExposedHeaders:   connectcors.ExposedHeaders(),
		AllowCredentials: true,
		MaxAge:           7200,
	})
	return c.Handler(next)
}
