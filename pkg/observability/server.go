package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Server exposes /metrics and /health.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a server listening on addr (host:port).
func NewServer(addr string, health *HealthChecker) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	if health != nil {
		mux.HandleFunc("/health", health.Handler())
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Serve accepts connections on l until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve(l net.Listener) error {
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
