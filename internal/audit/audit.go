// Package audit persists one execution record per dispatch attempt. The log
// is append-only: entries are never updated, only pruned once they fall out
// of the retention window. It exists for debugging and monitoring, not for
// business logic.
package audit

import (
	"time"
)

// Status is the terminal outcome of one dispatch attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// Entry is one execution record. Params must already be sanitized and
// CallerHash must already be hashed; this package persists what it is given.
type Entry struct {
	ID            string
	Function      string
	Params        map[string]any
	CallerHash    string
	Status        Status
	ErrorDetails  string
	ResultSummary string
	Duration      time.Duration
	CreatedAt     time.Time
}

// Query filters Find. Zero values mean "any".
type Query struct {
	Function   string
	CallerHash string
	Status     Status
	Since      time.Time
	Until      time.Time
	Limit      int
}
