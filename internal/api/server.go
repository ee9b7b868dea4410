package api

import (
	"context"
	"net/http"
	"time"

	"github.com/brightsend/mailform/internal/auth"
	"github.com/brightsend/mailform/internal/ratelimit"
)

// Server wraps the HTTP server around the configured router.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer builds the routed server.
func NewServer(h *Handlers, authSvc *auth.Service, limiter ratelimit.Limiter, assetPrefix string) *Server {
	return &Server{handler: SetupRoutes(h, authSvc, limiter, assetPrefix)}
}

// ListenAndServe starts serving on addr and blocks until the listener
// closes.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Generous write timeout for large asset uploads; individual
		// handlers bound their own work with request contexts.
		ReadTimeout:       2 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}
