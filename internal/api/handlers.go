package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/agentgw/internal/audit"
	"github.com/mattjoyce/agentgw/internal/auth"
	"github.com/mattjoyce/agentgw/internal/dispatch"
	"github.com/mattjoyce/agentgw/internal/fault"
)

// statusForCode maps public error codes to HTTP statuses. The envelope body
// is the same either way; the status exists for plain HTTP clients.
var statusForCode = map[fault.Code]int{
	fault.CodeInvalidFunction:    http.StatusNotFound,
	fault.CodeInvalidParameters:  http.StatusBadRequest,
	fault.CodePermissionDenied:   http.StatusForbidden,
	fault.CodeTimeout:            http.StatusGatewayTimeout,
	fault.CodeServiceUnavailable: http.StatusBadGateway,
	fault.CodeInternalError:      http.StatusInternalServerError,
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Function == "" {
		s.writeError(w, http.StatusBadRequest, "function is required")
		return
	}

	p, _ := auth.PrincipalFromContext(r.Context())
	resp := s.dispatcher.Execute(r.Context(), dispatch.Request{
		Function: req.Function,
		Params:   req.Parameters,
		UserID:   p.UserID,
	})

	out := ExecuteResponse{
		Success:         resp.Success,
		Result:          resp.Result,
		Error:           resp.Error,
		ExecutionTimeMS: resp.Duration.Milliseconds(),
		ExecutionID:     resp.ExecutionID,
	}
	status := http.StatusOK
	if resp.Error != nil {
		if mapped, ok := statusForCode[resp.Error.Code]; ok {
			status = mapped
		} else {
			status = http.StatusInternalServerError
		}
	}
	s.writeJSON(w, status, out)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	q := audit.Query{
		Function:   r.URL.Query().Get("function"),
		CallerHash: r.URL.Query().Get("caller"),
		Status:     audit.Status(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		q.Since = t
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "until must be RFC3339")
			return
		}
		q.Until = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = n
	}

	entries, err := s.audits.Find(r.Context(), q)
	if err != nil {
		s.logger.Error("list executions failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	out := ExecutionsResponse{Executions: make([]ExecutionEntry, 0, len(entries))}
	for _, e := range entries {
		out.Executions = append(out.Executions, toExecutionEntry(e))
	}
	out.Count = len(out.Executions)
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := s.audits.GetByID(r.Context(), id)
	if errors.Is(err, audit.ErrEntryNotFound) {
		s.writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	if err != nil {
		s.logger.Error("get execution failed", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, toExecutionEntry(entry))
}

func (s *Server) handleRetryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queue.Stats(r.Context())
	if err != nil {
		s.logger.Error("retry stats failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if stats, err := s.queue.Stats(r.Context()); err == nil {
		resp.PendingRetries = stats.Pending
	} else {
		resp.Status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, resp)
}
