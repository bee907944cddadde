// Package retryq persists retryable dispatch failures and reprocesses them
// asynchronously, decoupled from the original caller's request. Semantics
// are at-least-once: a record may be re-attempted after a crash mid-run.
package retryq

import (
	"context"
	"time"

	"github.com/mattjoyce/agentgw/internal/fault"
)

// Record is one failed request awaiting retry. Identifier and free-text
// fields are stored hashed; ReplayParams carries only resource IDs.
//
// State machine: pending → {terminal-success, terminal-nonretryable,
// exhausted}. Every terminal state sets Resolved; a resolved record is never
// reprocessed.
type Record struct {
	ID           string
	Function     string
	CallerHash   string
	ErrorKind    fault.Kind
	ErrorDetails string
	RetryCount   int
	NextRetryAt  time.Time
	Resolved     bool
	QueryHash    string
	MessageHash  string
	ReplayParams map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store is the persistence surface the processor works against.
type Store interface {
	// Create inserts a new unresolved record.
	Create(ctx context.Context, rec *Record) error
	// ListDue returns up to limit unresolved records whose NextRetryAt has
	// passed, oldest due first.
	ListDue(ctx context.Context, limit int) ([]*Record, error)
	// ApplyBatch writes the mutable fields of every record in one
	// transaction. Either all updates land or none do.
	ApplyBatch(ctx context.Context, recs []*Record) error
}

// Reattempter re-runs the feature operation behind a failed request.
type Reattempter interface {
	Reattempt(ctx context.Context, rec *Record) error
}

// Stats is the outcome of one processor run.
type Stats struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// NewFailureRecord builds the initial record for a fresh retryable failure.
// The first retry is due one base delay after the failure.
func NewFailureRecord(function, callerHash string, c fault.Classification, details string, replay map[string]any, now time.Time) *Record {
	return &Record{
		Function:     function,
		CallerHash:   callerHash,
		ErrorKind:    c.Kind,
		ErrorDetails: details,
		NextRetryAt:  now.Add(c.BaseDelay),
		ReplayParams: replay,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NextRetryAt computes now + base·2^retryCount, capped.
func NextRetryAt(now time.Time, base, cap time.Duration, retryCount int) time.Time {
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= cap {
			delay = cap
			break
		}
	}
	if delay > cap {
		delay = cap
	}
	return now.Add(delay)
}
