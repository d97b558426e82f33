package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/rules"
	"mercator-hq/gatekeeper/pkg/server/handlers"
	"mercator-hq/gatekeeper/pkg/server/middleware"
	"mercator-hq/gatekeeper/pkg/telemetry/health"
	"mercator-hq/gatekeeper/pkg/telemetry/metrics"
)

// Deps are the components the server exposes. Decider is required; every
// other field is optional.
type Deps struct {
	Decider handlers.Decider

	// RuleSet is the active rule set served by /v1/rules. Nil means the
	// engine is failing closed.
	RuleSet       *rules.RuleSet
	RulesFallback bool

	// Storage backs the audit endpoints. Nil answers 503.
	Storage audit.Storage

	// Health serves /health and /ready.
	Health          *health.Checker
	HealthRateLimit int

	// Metrics records HTTP metrics and is served at MetricsPath.
	Metrics     *metrics.Collector
	MetricsPath string

	Version   string
	Commit    string
	BuildTime string

	Logger *slog.Logger
}

// Server is the HTTP transport for the decision surface.
type Server struct {
	config       *config.ServerConfig
	deps         Deps
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// NewServer creates a server. It does not listen until Start.
func NewServer(cfg *config.ServerConfig, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server config cannot be nil")
	}
	if deps.Decider == nil {
		return nil, fmt.Errorf("decider cannot be nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:       cfg,
		deps:         deps,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}, nil
}

// Start listens on the configured address and serves until ctx is cancelled,
// Stop is called, or the listener fails. It then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting gatekeeper server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// Shutdown gracefully shuts down the server, waiting up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("gatekeeper server stopped")
	})

	return shutdownErr
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	var recorder middleware.HTTPRecorder
	if s.deps.Metrics != nil {
		recorder = s.deps.Metrics
	}
	handler = middleware.LoggingMiddleware(s.logger, recorder)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)
	return handler
}

// routes registers every endpoint. API routes carry the request timeout; the
// decide route is also rate limited per agent when enabled.
func (s *Server) routes(mux *http.ServeMux) {
	api := middleware.TimeoutMiddleware(s.config.RequestTimeout)

	var decide http.Handler = handlers.NewDecisionHandler(s.deps.Decider, s.config.MaxBodyBytes, s.logger)
	if rl := s.config.RateLimit; rl.Enabled {
		limiter := middleware.NewAgentRateLimiter(rl.RequestsPerSecond, rl.Burst, rl.MaxAgents)
		decide = limiter.Middleware(decide)
	}
	mux.Handle("POST /v1/decisions", api(decide))
	mux.Handle("GET /v1/decisions/recent", api(handlers.RecentHandler(s.deps.Decider)))
	mux.Handle("GET /v1/statistics", api(handlers.StatisticsHandler(s.deps.Decider)))

	rulesHandler := handlers.NewRulesHandler(s.deps.RuleSet, s.deps.RulesFallback)
	mux.Handle("GET /v1/rules", api(http.HandlerFunc(rulesHandler.List)))
	mux.Handle("GET /v1/rules/{name}", api(http.HandlerFunc(rulesHandler.Get)))

	auditHandler := handlers.NewAuditHandler(s.deps.Storage, s.logger)
	mux.Handle("GET /v1/audit/records", api(http.HandlerFunc(auditHandler.Records)))
	mux.Handle("GET /v1/audit/export", api(http.HandlerFunc(auditHandler.Export)))

	if s.deps.Health != nil {
		health.Register(mux, s.deps.Health, s.deps.HealthRateLimit, s.deps.Version, s.deps.Commit, s.deps.BuildTime)
	}
	if s.deps.Metrics != nil {
		path := s.deps.MetricsPath
		if path == "" {
			path = config.DefaultMetricsPath
		}
		mux.Handle("GET "+path, s.deps.Metrics.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, http.StatusNotFound, middleware.CodeNotFound, "no route for "+r.URL.Path)
	})
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listener address while running.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}
