// Package server is the HTTP front door (A4): three routes over the
// Job Orchestrator (C6), wrapped in the same
// recovery/CORS/logging/correlation-ID middleware chain the module's
// prior HTTP layer used.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/meridian/internal/orchestrator"
)

// Server hosts the job orchestration HTTP API.
type Server struct {
	orch   *orchestrator.Orchestrator
	logger arbor.ILogger
	http   *http.Server
}

// New builds a Server bound to orch, listening on addr once Start is
// called.
func New(orch *orchestrator.Orchestrator, logger arbor.ILogger, addr string) *Server {
	s := &Server{orch: orch, logger: logger}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.withMiddleware(s.setupRoutes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving and blocks until the listener stops or fails.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("http server listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
