// Package scheduler owns the service's background maintenance: periodic
// retry-queue runs and execution-log pruning, both on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mattjoyce/agentgw/internal/audit"
	"github.com/mattjoyce/agentgw/internal/events"
	ilog "github.com/mattjoyce/agentgw/internal/log"
	"github.com/mattjoyce/agentgw/internal/retryq"
)

// jobTimeout bounds one scheduled run so a wedged job cannot pile up behind
// itself.
const jobTimeout = time.Minute

// Config holds the schedules and the pruning window.
type Config struct {
	RetrySchedule string
	PruneSchedule string
	Retention     time.Duration
}

// Scheduler drives the retry processor and the audit pruner.
type Scheduler struct {
	cron      *cron.Cron
	processor *retryq.Processor
	audits    *audit.Store
	retention time.Duration
	hub       *events.Hub
	logger    *slog.Logger
}

func New(cfg Config, processor *retryq.Processor, audits *audit.Store, hub *events.Hub) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		processor: processor,
		audits:    audits,
		retention: cfg.Retention,
		hub:       hub,
		logger:    ilog.WithComponent("scheduler"),
	}
	if _, err := s.cron.AddFunc(cfg.RetrySchedule, s.runRetries); err != nil {
		return nil, fmt.Errorf("retry schedule %q: %w", cfg.RetrySchedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.PruneSchedule, s.runPrune); err != nil {
		return nil, fmt.Errorf("prune schedule %q: %w", cfg.PruneSchedule, err)
	}
	return s, nil
}

// Start begins scheduling. Non-blocking.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts scheduling and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runRetries() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	stats, err := s.processor.Run(ctx)
	if err != nil {
		s.logger.Error("retry run failed", "error", err)
		return
	}
	if s.hub != nil && stats.Processed > 0 {
		s.hub.Publish(events.TypeRetryRun, events.RetryRunEvent{
			Processed: stats.Processed,
			Succeeded: stats.Succeeded,
			Failed:    stats.Failed,
			Skipped:   stats.Skipped,
		})
	}
}

func (s *Scheduler) runPrune() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := s.audits.Prune(ctx, s.retention)
	if err != nil {
		s.logger.Error("prune failed", "error", err)
		return
	}
	s.logger.Info("execution log pruned", "removed", removed, "retention", s.retention)
	if s.hub != nil {
		s.hub.Publish(events.TypePrune, events.PruneEvent{Removed: removed})
	}
}
