package drift

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs periodic schema checks against every API the source knows
// about, using cron syntax (e.g. "0 * * * *" for hourly).
type Scheduler struct {
	differ   *Differ
	source   Source
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a schema check scheduler.
func NewScheduler(differ *Differ, source Source, schedule string) *Scheduler {
	return &Scheduler{
		differ:   differ,
		source:   source,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "drift.scheduler"),
	}
}

// Start begins scheduled checking. An empty schedule disables the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("schema check schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.runCheck(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule schema checks: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("schema check scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runCheck executes one full check cycle.
func (s *Scheduler) runCheck(ctx context.Context) {
	if err := s.CheckAllSchemas(ctx); err != nil {
		s.logger.Error("scheduled schema check failed", "error", err)
	}
}

// CheckAllSchemas checks every API the source describes. Per-API failures
// are logged and do not stop the sweep; the first error is returned after
// all APIs were attempted.
func (s *Scheduler) CheckAllSchemas(ctx context.Context) error {
	schemas, err := s.source.Schemas()
	if err != nil {
		return fmt.Errorf("failed to load schema source: %w", err)
	}

	var firstErr error
	for _, apiName := range apiNames(schemas) {
		changes, err := s.differ.CheckAPISchema(ctx, apiName, schemas[apiName])
		if err != nil {
			s.logger.Error("schema check failed",
				"api_name", apiName,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(changes) > 0 {
			s.logger.Info("schema drift detected",
				"api_name", apiName,
				"changes", len(changes),
			)
		}
	}
	return firstErr
}

// Stop stops the scheduler and waits for a running check to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("schema check scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled check time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
