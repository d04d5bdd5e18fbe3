// Package server exposes the HTTP API: agent registration and lookup,
// blocking runs, and SSE-streamed runs.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agents-forge/forge/log"
	"github.com/agents-forge/forge/registry"
	"github.com/agents-forge/forge/run"
)

// Version is stamped at build time.
var Version = "dev"

// Server wires the agent registry and the runner behind a gin router.
type Server struct {
	registry *registry.Registry
	runner   *run.Runner
	logger   log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger replaces the default logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a server over the given registry and runner.
func New(reg *registry.Registry, runner *run.Runner, opts ...Option) *Server {
	s := &Server{
		registry: reg,
		runner:   runner,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		agents := v1.Group("/agents")
		agents.POST("", s.createAgent)
		agents.GET("", s.listAgents)
		agents.GET("/:id", s.getAgent)
		agents.DELETE("/:id", s.deleteAgent)
		agents.POST("/:id/run", s.runAgent)
		agents.POST("/:id/run/stream", s.streamAgent)
	}
	return r
}

// ListenAndServe starts the HTTP server on addr and blocks until ctx is
// cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
