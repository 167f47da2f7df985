// Package api exposes the analytics assistant over HTTP.
//
// Endpoints:
//
//	POST   /api/chat                 - synchronous turn (JSON request/response)
//	POST   /api/chat/stream          - streaming turn (SSE)
//	DELETE /api/chat/{id}            - clear a conversation
//	POST   /api/chat/{id}/slide      - move the presentation slide pointer
//	POST   /api/presentation/preview - presentation structure summary
//	POST   /api/presentation/generate - PPTX download
//	GET    /                         - name and version
//	GET    /health, GET /ready       - probes
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: recovery, request id, logging, CORS, security headers
//   - ratelimit.go: per-client rate limiting
//   - chat.go: conversation endpoints
//   - presentation.go: presentation preview and PPTX export
//   - health.go: probes and the root endpoint
//   - response.go: JSON response helpers
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/quarry0/quarry/internal/conversation"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 30 * time.Second

	// ReadHeaderTimeout bounds header reads so stalled connections cannot
	// hold workers (Slowloris).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response. Turns
	// stream over SSE and can run several model cycles, so this is generous.
	WriteTimeout = 2 * time.Minute

	// IdleTimeout applies between requests on keep-alive connections.
	IdleTimeout = 2 * time.Minute
)

// Config carries the server's wiring.
type Config struct {
	Addr        string
	Version     string
	CORSOrigins []string
	Logger      *slog.Logger

	Engine *ChatHandler
	Health *HealthHandler
	Pres   *PresentationHandler
}

// Server is the HTTP server for the assistant's REST API.
type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	origins []string
	limiter *clientLimiter
	addr    string
}

// NewServer registers all routes and returns a server ready to Run.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	if cfg.Health != nil {
		cfg.Health.RegisterRoutes(mux)
	}
	if cfg.Engine != nil {
		cfg.Engine.RegisterRoutes(mux)
	}
	if cfg.Pres != nil {
		cfg.Pres.RegisterRoutes(mux)
	}

	return &Server{
		mux:     mux,
		logger:  logger,
		origins: cfg.CORSOrigins,
		limiter: newClientLimiter(),
		addr:    cfg.Addr,
	}
}

// Handler returns the routed handler with the middleware stack applied.
// Order outermost first: recovery, request id, logging, CORS, rate limit.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger),
		corsMiddleware(s.origins),
		s.limiter.middleware,
	)
}

// Run starts the server and blocks until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.addr
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// storeAPI is the conversation store surface the handlers need.
type storeAPI interface {
	Acquire(id string) (*conversation.Conversation, func(), error)
	Delete(id string)
	UpdateSlide(id string, index int) error
}
