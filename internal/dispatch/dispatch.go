// Package dispatch runs one catalog function call end to end: lookup,
// validation, authorization, deadline-raced execution, classification,
// audit logging, and retry-queue capture. Every attempt produces exactly one
// execution log entry regardless of outcome.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/agentgw/internal/audit"
	"github.com/mattjoyce/agentgw/internal/catalog"
	"github.com/mattjoyce/agentgw/internal/events"
	"github.com/mattjoyce/agentgw/internal/fault"
	"github.com/mattjoyce/agentgw/internal/handlers"
	ilog "github.com/mattjoyce/agentgw/internal/log"
	"github.com/mattjoyce/agentgw/internal/permission"
	"github.com/mattjoyce/agentgw/internal/privacy"
	"github.com/mattjoyce/agentgw/internal/retryq"
)

const DefaultTimeout = 2000 * time.Millisecond

// Request is one function call on behalf of a user.
type Request struct {
	Function string
	Params   map[string]any
	UserID   string
}

// Response is the caller-facing outcome. Exactly one of Result and Error is
// set.
type Response struct {
	Success     bool
	Result      map[string]any
	Error       *fault.Public
	Duration    time.Duration
	ExecutionID string
}

// Dispatcher wires the catalog to its handlers and owns the dispatch
// pipeline.
type Dispatcher struct {
	registry *catalog.Registry
	handlers *handlers.Set
	perms    permission.Checker
	audits   *audit.Store
	queue    retryq.Store
	hasher   *privacy.Hasher
	hub      *events.Hub
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a dispatcher and refuses to start if the catalog and the
// handler table have drifted apart.
func New(registry *catalog.Registry, set *handlers.Set, perms permission.Checker,
	audits *audit.Store, queue retryq.Store, hasher *privacy.Hasher,
	hub *events.Hub, timeout time.Duration) (*Dispatcher, error) {

	for _, name := range registry.Names() {
		if _, ok := set.Get(name); !ok {
			return nil, fmt.Errorf("catalog function %q has no handler", name)
		}
	}
	for _, name := range set.Names() {
		if _, ok := registry.Get(name); !ok {
			return nil, fmt.Errorf("handler %q is not in the catalog", name)
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		registry: registry,
		handlers: set,
		perms:    perms,
		audits:   audits,
		queue:    queue,
		hasher:   hasher,
		hub:      hub,
		timeout:  timeout,
		logger:   ilog.WithComponent("dispatch"),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Execute runs one call for an authenticated user.
func (d *Dispatcher) Execute(ctx context.Context, req Request) Response {
	resp, _ := d.run(ctx, req.Function, req.Params, req.UserID,
		d.hasher.Hash(req.UserID), true, true)
	return resp
}

// Reattempt replays a failed request from the retry queue. Requests whose
// original parameters held free text cannot be replayed: only hashes were
// kept. The permission check already passed on the original dispatch, and
// failures are rescheduled by the queue itself rather than re-captured.
func (d *Dispatcher) Reattempt(ctx context.Context, rec *retryq.Record) error {
	if rec.QueryHash != "" || rec.MessageHash != "" {
		return fmt.Errorf("cannot replay %s: original content stored as hash only", rec.Function)
	}
	_, err := d.run(ctx, rec.Function, rec.ReplayParams, "", rec.CallerHash, false, false)
	return err
}

func (d *Dispatcher) run(ctx context.Context, function string, params map[string]any,
	userID, callerHash string, checkPerm, capture bool) (Response, error) {

	start := d.now()
	execID := uuid.NewString()
	if params == nil {
		params = map[string]any{}
	}

	result, err := d.attempt(ctx, function, params, userID, checkPerm)
	duration := time.Since(start)

	resp := Response{ExecutionID: execID, Duration: duration}
	entry := &audit.Entry{
		ID:         execID,
		Function:   function,
		Params:     d.hasher.SanitizeParams(params),
		CallerHash: callerHash,
		Duration:   duration,
		CreatedAt:  start,
	}

	if err == nil {
		resp.Success = true
		resp.Result = result.Data
		entry.Status = audit.StatusSuccess
		entry.ResultSummary = result.Summary
	} else {
		pub := fault.PublicError(err, function)
		resp.Error = &pub
		entry.Status = audit.StatusError
		if pub.Code == fault.CodeTimeout {
			entry.Status = audit.StatusTimeout
		}
		entry.ErrorDetails = err.Error()

		if capture {
			if c := fault.Classify(err); c.Retryable {
				d.capture(ctx, function, params, callerHash, c, err.Error())
			}
		}
		d.logger.Warn("dispatch failed",
			"execution", execID,
			"function", function,
			"code", pub.Code,
			"duration_ms", duration.Milliseconds(),
			"error", err)
	}

	// The outcome stands even if the log write fails; losing the response
	// over a logging error would punish the caller twice.
	if _, aerr := d.audits.Append(ctx, entry); aerr != nil {
		d.logger.Error("execution log append failed", "execution", execID, "error", aerr)
	}

	if d.hub != nil {
		ev := events.ExecutionEvent{
			ExecutionID: execID,
			Function:    function,
			Status:      string(entry.Status),
			DurationMS:  duration.Milliseconds(),
		}
		if resp.Error != nil {
			ev.ErrorCode = string(resp.Error.Code)
		}
		d.hub.Publish(events.TypeExecution, ev)
	}
	return resp, err
}

// attempt is the pipeline up to and including the handler race. It returns
// the raw error; the caller owns classification and logging.
func (d *Dispatcher) attempt(ctx context.Context, function string, params map[string]any,
	userID string, checkPerm bool) (*handlers.Result, error) {

	fn, ok := d.registry.Get(function)
	if !ok {
		return nil, &fault.UnknownFunctionError{Function: function}
	}

	if vres := d.registry.ValidateParameters(function, params); !vres.Valid {
		return nil, &fault.ValidationError{Function: function, Problems: vres.Errors}
	}

	if checkPerm && fn.Resource != nil {
		resourceID, _ := params[fn.Resource.Param].(string)
		allowed, err := d.perms.CheckUserAccess(ctx, userID, resourceID, fn.Resource.Type)
		if err != nil {
			return nil, fmt.Errorf("permission check: %w", err)
		}
		if !allowed {
			return nil, &fault.PermissionError{UserID: userID, ResourceID: resourceID, ResourceType: fn.Resource.Type}
		}
	}

	h, _ := d.handlers.Get(function)

	// Deadline race. The handler goroutine sees the deadline through its
	// context but cannot be forcibly stopped; a timed-out handler's late
	// result is dropped.
	tctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		res *handlers.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := h(tctx, userID, params)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			return nil, o.err
		}
		return o.res, nil
	case <-tctx.Done():
		return nil, tctx.Err()
	}
}

// capture persists a retryable failure for the queue. Free-text parameters
// are hashed out of the replay set; what remains is resource IDs and scalar
// options.
func (d *Dispatcher) capture(ctx context.Context, function string, params map[string]any,
	callerHash string, c fault.Classification, details string) {

	replay := make(map[string]any, len(params))
	var queryHash, messageHash string
	for k, v := range params {
		switch k {
		case "query":
			if s, ok := v.(string); ok {
				queryHash = d.hasher.Hash(s)
			}
		case "text", "content", "message":
			if s, ok := v.(string); ok {
				messageHash = d.hasher.Hash(s)
			}
		default:
			replay[k] = v
		}
	}

	rec := retryq.NewFailureRecord(function, callerHash, c, details, replay, d.now())
	rec.QueryHash = queryHash
	rec.MessageHash = messageHash
	if err := d.queue.Create(ctx, rec); err != nil {
		d.logger.Error("failed request capture failed", "function", function, "error", err)
	}
}
