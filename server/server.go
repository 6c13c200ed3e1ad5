// Package server exposes the prompt operations over HTTP so that editor
// plugins can call a long-running local service instead of the CLI.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/teilomillet/reprompt/config"
	"github.com/teilomillet/reprompt/metrics"
	"github.com/teilomillet/reprompt/server/handlers"
	"github.com/teilomillet/reprompt/server/middleware"
	"github.com/teilomillet/reprompt/server/progress"
	"github.com/teilomillet/reprompt/server/validation"
)

// Deps are the long-lived components shared by every router built from a
// configuration.
type Deps struct {
	Ops       handlers.Operations
	Rules     handlers.RulesSource
	Inspector handlers.Inspector
	Hub       *progress.Hub
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	// Root is the workspace the rules source and stack endpoint serve.
	Root    string
	Version string
}

// NewRouter builds the HTTP routes for cfg.
//
// Every route gets request IDs, timing, logging, panic recovery, CORS and
// metrics. The /v1 routes also get API key authentication and per-client
// rate limiting, and the POST routes are bounded by the request timeout.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := handlers.New(deps.Ops, deps.Rules,
		handlers.WithValidator(validation.NewValidator(
			validation.WithTokenLimit(cfg.Server.MaxPromptTokens, cfg.Sonar.Model),
			validation.WithLogger(logger),
		)),
		handlers.WithInspector(deps.Inspector),
		handlers.WithWorkspace(deps.Root, cfg.Transform.InferStack),
		handlers.WithVersion(deps.Version),
		handlers.WithLogger(logger),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTimer)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.PrometheusMetrics(deps.Metrics))

	r.Get("/health", h.Health)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Authentication(cfg.Server.APIKeys))
		if cfg.Server.RateLimit.Enabled {
			limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window, deps.Metrics)
			r.Use(limiter.Middleware)
		}

		r.Get("/stack", h.Stack)
		r.Get("/rules", h.Rules)
		if deps.Hub != nil {
			r.Get("/progress", deps.Hub.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			if cfg.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
			}
			r.Post("/transform", h.Transform)
			r.Post("/examples", h.Examples)
			r.Post("/run", h.Run)
			r.Post("/score", h.Score)
			r.Post("/rules/reload", h.ReloadRules)
		})
	})

	return r
}

// Server represents the HTTP server. Its routes are rebuilt whenever the
// configuration watcher publishes a new configuration; the listen address
// only changes on restart.
type Server struct {
	httpServer *http.Server
	watcher    config.Watcher
	deps       Deps
	logger     *zap.Logger

	handler atomic.Value // http.Handler
	mu      sync.Mutex
	addr    net.Addr
	ready   chan struct{}
}

// NewServer creates a new server instance
func NewServer(watcher config.Watcher, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := watcher.GetCurrentConfig()

	s := &Server{
		watcher: watcher,
		deps:    deps,
		logger:  logger,
		ready:   make(chan struct{}),
	}
	s.handler.Store(NewRouter(cfg, deps))

	s.httpServer = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.handler.Load().(http.Handler).ServeHTTP(w, r)
		}),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// Addr returns the address the server listens on once Ready is closed.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

func (s *Server) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.handler.Store(NewRouter(cfg, s.deps))
	if want := fmt.Sprintf(":%d", cfg.Server.Port); want != s.httpServer.Addr {
		s.logger.Warn("Port change requires a restart",
			zap.String("current", s.httpServer.Addr),
			zap.String("configured", want),
		)
	}
	s.logger.Info("Configuration reloaded")
}

// Start starts the server and blocks until ctx is done or the server fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	// Subscribe before signalling readiness so no update is missed
	updates := s.watcher.Subscribe()
	close(s.ready)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				s.applyConfig(cfg)
			}
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		timeout := s.watcher.GetCurrentConfig().Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Info("Shutting down server", zap.Duration("timeout", timeout))
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}
