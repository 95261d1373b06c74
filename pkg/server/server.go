// Package server exposes the policy core over HTTP: claim evaluation, rule
// and evidence management, the review queue, and schema drift inspection.
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

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/config"
	"clearway/meridian/pkg/drift"
	"clearway/meridian/pkg/review"
	"clearway/meridian/pkg/rules"
	"clearway/meridian/pkg/telemetry/health"
	"clearway/meridian/pkg/telemetry/metrics"
)

// Server is the HTTP API server.
type Server struct {
	config    *config.ServerConfig
	store     claims.Store
	rules     *rules.Store
	evaluator *rules.Evaluator
	queue     *review.Queue
	processor *review.Processor
	differ    *drift.Differ
	scheduler *drift.Scheduler
	metrics   *metrics.Metrics
	metricsOn bool
	health    *health.Checker
	logger    *slog.Logger

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Deps carries the service dependencies the server exposes.
type Deps struct {
	Store     claims.Store
	Rules     *rules.Store
	Evaluator *rules.Evaluator
	Queue     *review.Queue
	Processor *review.Processor
	Differ    *drift.Differ
	Scheduler *drift.Scheduler
	Metrics   *metrics.Metrics
	Health    *health.Checker
}

// NewServer creates an API server. Metrics exposure follows metricsCfg.
func NewServer(cfg *config.ServerConfig, metricsCfg *config.MetricsConfig, deps Deps) *Server {
	checker := deps.Health
	if checker == nil {
		checker = health.New(0)
	}
	return &Server{
		config:       cfg,
		store:        deps.Store,
		rules:        deps.Rules,
		evaluator:    deps.Evaluator,
		queue:        deps.Queue,
		processor:    deps.Processor,
		differ:       deps.Differ,
		scheduler:    deps.Scheduler,
		metrics:      deps.Metrics,
		metricsOn:    metricsCfg != nil && metricsCfg.Enabled,
		health:       checker,
		logger:       slog.Default().With("component", "server"),
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

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.setupRoutes(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting api server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return nil
	}
}

// Shutdown gracefully stops the server, bounded by ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("graceful shutdown failed: %w", err)
			}
		}
		close(s.shutdownChan)
		s.logger.Info("api server stopped")
	})
	return shutdownErr
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/claims/evaluate", s.handleEvaluateClaim)

	mux.HandleFunc("GET /v1/rules", s.handleListRules)
	mux.HandleFunc("POST /v1/rules", s.handleCreateRule)
	mux.HandleFunc("PATCH /v1/rules/{id}", s.handleUpdateRule)

	mux.HandleFunc("GET /v1/evidence", s.handleListEvidence)
	mux.HandleFunc("POST /v1/evidence", s.handleCreateEvidence)
	mux.HandleFunc("PATCH /v1/evidence/{claim_type}/{evidence_type}", s.handleUpdateEvidence)

	mux.HandleFunc("GET /v1/reviews", s.handleListReviews)
	mux.HandleFunc("POST /v1/reviews", s.handleEnqueueReview)
	mux.HandleFunc("GET /v1/reviews/stats", s.handleReviewStats)
	mux.HandleFunc("POST /v1/reviews/{id}/assign", s.handleAssignReview)
	mux.HandleFunc("POST /v1/reviews/{id}/start", s.handleStartReview)
	mux.HandleFunc("POST /v1/reviews/{id}/archive", s.handleArchiveReview)
	mux.HandleFunc("POST /v1/reviews/{id}/correction", s.handleSubmitCorrection)

	mux.HandleFunc("POST /v1/schema/check", s.handleSchemaCheck)
	mux.HandleFunc("GET /v1/schema/changes", s.handleListSchemaChanges)
	mux.HandleFunc("POST /v1/schema/changes/{id}/ack", s.handleAcknowledgeChange)

	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReadiness)

	if s.metricsOn {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return mux
}
