package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hookly/helios/pkg/config"
	"hookly/helios/pkg/health"
	"hookly/helios/pkg/ledger"
)

// Server is the HTTP admin server.
type Server struct {
	config       *config.ServerConfig
	metricsCfg   *config.MetricsConfig
	monitor      *health.Monitor
	tracker      *ledger.Tracker
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a new admin server.
func NewServer(cfg *config.ServerConfig, metricsCfg *config.MetricsConfig, monitor *health.Monitor, tracker *ledger.Tracker) *Server {
	return &Server{
		config:       cfg,
		metricsCfg:   metricsCfg,
		monitor:      monitor,
		tracker:      tracker,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting admin server", "address", s.config.ListenAddress)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("admin server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	if s.metricsCfg == nil || s.metricsCfg.Enabled {
		path := "/metrics"
		if s.metricsCfg != nil && s.metricsCfg.Path != "" {
			path = s.metricsCfg.Path
		}
		mux.Handle("GET "+path, promhttp.Handler())
	}

	mux.HandleFunc("GET /api/v1/providers/health", s.handleAllProviderHealth)
	mux.HandleFunc("GET /api/v1/providers/health/{id}", s.handleProviderHealth)
	mux.HandleFunc("GET /api/v1/providers/{id}/breaker", s.handleGetBreaker)
	mux.HandleFunc("PUT /api/v1/providers/{id}/breaker", s.handleSetBreaker)
	mux.HandleFunc("POST /api/v1/providers/{id}/breaker/reset", s.handleResetBreaker)
	mux.HandleFunc("GET /api/v1/providers/ranking", s.handleHealthRanking)
	mux.HandleFunc("GET /api/v1/providers/costs/ranking", s.handleCostRanking)
	mux.HandleFunc("GET /api/v1/costs", s.handleCosts)
	mux.HandleFunc("GET /api/v1/budget", s.handleGetBudget)
	mux.HandleFunc("PUT /api/v1/budget", s.handleUpdateBudget)
	mux.HandleFunc("GET /api/v1/alerts", s.handleListAlerts)
	mux.HandleFunc("POST /api/v1/alerts/{id}/ack", s.handleAcknowledgeAlert)

	var handler http.Handler = mux
	handler = LoggingMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(handler)

	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
