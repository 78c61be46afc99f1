package api

import (
	"context"
	"net/http"
	"time"
)

// Server wraps the HTTP server for the newsletter API.
type Server struct {
	handler  http.Handler
	handlers *Handlers
	server   *http.Server
}

// NewServer creates the API server with routes and the admin gate wired.
func NewServer(h *Handlers, adminKey string) *Server {
	return &Server{
		handler:  SetupRoutes(h, adminKey),
		handlers: h,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Campaign sends run synchronously in the request and pause between
		// batches, so the write timeout has to cover a full multi-batch send.
		ReadTimeout:       1 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
