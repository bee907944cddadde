package retryq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/agentgw/internal/fault"
	ilog "github.com/mattjoyce/agentgw/internal/log"
)

const (
	DefaultBatchSize   = 50
	DefaultMaxAttempts = 4
	DefaultBackoffCap  = 8 * time.Second
)

// Options bound one processor run.
type Options struct {
	BatchSize   int
	MaxAttempts int
	BackoffCap  time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = DefaultBackoffCap
	}
	return o
}

// Processor drains due records in bounded batches. One Run is one pass:
// records that fail again are rescheduled, not reprocessed within the run.
type Processor struct {
	store   Store
	retrier Reattempter
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

func NewProcessor(store Store, retrier Reattempter, opts Options) *Processor {
	return &Processor{
		store:   store,
		retrier: retrier,
		opts:    opts.withDefaults(),
		logger:  ilog.WithComponent("retryq"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run processes at most one batch of due records and applies every outcome
// in a single transaction at the end.
func (p *Processor) Run(ctx context.Context) (Stats, error) {
	recs, err := p.store.ListDue(ctx, p.opts.BatchSize)
	if err != nil {
		return Stats{}, fmt.Errorf("list due: %w", err)
	}

	var stats Stats
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Processed++
		p.process(ctx, rec, &stats)
	}

	if err := p.store.ApplyBatch(ctx, recs); err != nil {
		return stats, fmt.Errorf("apply batch: %w", err)
	}

	if stats.Processed > 0 {
		p.logger.Info("retry run complete",
			"processed", stats.Processed,
			"succeeded", stats.Succeeded,
			"failed", stats.Failed,
			"skipped", stats.Skipped)
	}
	return stats, nil
}

func (p *Processor) process(ctx context.Context, rec *Record, stats *Stats) {
	log := p.logger.With("record", rec.ID, "function", rec.Function)

	// Exhausted records are archived, never re-attempted.
	if rec.RetryCount >= p.opts.MaxAttempts {
		rec.Resolved = true
		stats.Skipped++
		log.Warn("retry attempts exhausted", "retry_count", rec.RetryCount)
		return
	}

	// A record can hold a non-retryable kind when its last attempt failed
	// differently than the first. Archive it instead of burning an attempt.
	if !fault.ClassificationFor(rec.ErrorKind).Retryable {
		rec.Resolved = true
		stats.Skipped++
		log.Info("non-retryable, archived", "error_kind", rec.ErrorKind)
		return
	}

	err := p.retrier.Reattempt(ctx, rec)
	if err == nil {
		rec.Resolved = true
		stats.Succeeded++
		log.Info("retry succeeded", "retry_count", rec.RetryCount)
		return
	}

	c := fault.Classify(err)
	rec.ErrorKind = c.Kind
	rec.ErrorDetails = err.Error()
	rec.RetryCount++
	rec.NextRetryAt = NextRetryAt(p.now(), c.BaseDelay, p.opts.BackoffCap, rec.RetryCount)
	stats.Failed++
	log.Warn("retry failed",
		"error_kind", c.Kind,
		"retry_count", rec.RetryCount,
		"next_retry_at", rec.NextRetryAt.Format(time.RFC3339),
		"error", err)
}
