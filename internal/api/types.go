package api

import (
	"time"

	"github.com/mattjoyce/agentgw/internal/audit"
	"github.com/mattjoyce/agentgw/internal/fault"
)

// ExecuteRequest is the JSON body for POST /v1/execute.
type ExecuteRequest struct {
	Function   string         `json:"function"`
	Parameters map[string]any `json:"parameters"`
}

// ExecuteResponse is the uniform dispatch envelope. Exactly one of result
// and error is present.
type ExecuteResponse struct {
	Success         bool           `json:"success"`
	Result          map[string]any `json:"result,omitempty"`
	Error           *fault.Public  `json:"error,omitempty"`
	ExecutionTimeMS int64          `json:"execution_time_ms"`
	ExecutionID     string         `json:"execution_id"`
}

// ExecutionEntry is the JSON view of one execution log record.
type ExecutionEntry struct {
	ID            string         `json:"id"`
	Function      string         `json:"function"`
	Params        map[string]any `json:"params"`
	CallerHash    string         `json:"caller_hash"`
	Status        string         `json:"status"`
	ErrorDetails  string         `json:"error_details,omitempty"`
	ResultSummary string         `json:"result_summary,omitempty"`
	DurationMS    int64          `json:"duration_ms"`
	CreatedAt     time.Time      `json:"created_at"`
}

func toExecutionEntry(e *audit.Entry) ExecutionEntry {
	return ExecutionEntry{
		ID:            e.ID,
		Function:      e.Function,
		Params:        e.Params,
		CallerHash:    e.CallerHash,
		Status:        string(e.Status),
		ErrorDetails:  e.ErrorDetails,
		ResultSummary: e.ResultSummary,
		DurationMS:    e.Duration.Milliseconds(),
		CreatedAt:     e.CreatedAt,
	}
}

// ExecutionsResponse is returned by GET /v1/executions.
type ExecutionsResponse struct {
	Executions []ExecutionEntry `json:"executions"`
	Count      int              `json:"count"`
}

// ErrorResponse is returned on transport-level errors (auth, bad JSON).
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	PendingRetries int64  `json:"pending_retries"`
}
