// Package fault is the error taxonomy for function dispatch. It carries two
// deliberately separate views of a failure: a fine-grained classification
// that drives retry policy, and a coarse public code that callers see. The
// two evolve independently.
package fault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the fine-grained, retry-aware classification of a failure.
type Kind string

const (
	KindTimeout            Kind = "timeout"
	KindRateLimit          Kind = "rate_limit"
	KindServiceUnavailable Kind = "service_unavailable"
	KindNetworkFailure     Kind = "network_failure"
	KindInvalidRequest     Kind = "invalid_request"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindUnknown            Kind = "unknown"
)

// Error is the typed failure collaborators return. Handlers wrap upstream
// failures in an Error so classification is a table lookup, not message
// sniffing. Plain errors still classify via keyword fallback.
type Error struct {
	Kind       Kind
	StatusCode int    // upstream HTTP status, 0 if none
	Provider   string // upstream service name, e.g. "openai", "pinecone"
	Op         string // operation that failed
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(string(e.Kind))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Upstream builds an Error from an upstream HTTP status.
func Upstream(op, provider string, statusCode int, err error) *Error {
	return &Error{Kind: kindForStatus(statusCode), StatusCode: statusCode, Provider: provider, Op: op, Err: err}
}

// Classification is the retry verdict for a failure.
type Classification struct {
	Kind       Kind
	Retryable  bool
	BaseDelay  time.Duration
	StatusCode int
}

// classifications is the closed table of per-kind verdicts.
var classifications = map[Kind]Classification{
	KindTimeout:            {Kind: KindTimeout, Retryable: true, BaseDelay: time.Second},
	KindRateLimit:          {Kind: KindRateLimit, Retryable: false, BaseDelay: 30 * time.Second},
	KindServiceUnavailable: {Kind: KindServiceUnavailable, Retryable: true, BaseDelay: 2 * time.Second},
	KindNetworkFailure:     {Kind: KindNetworkFailure, Retryable: true, BaseDelay: time.Second},
	KindInvalidRequest:     {Kind: KindInvalidRequest, Retryable: false},
	KindQuotaExceeded:      {Kind: KindQuotaExceeded, Retryable: false},
	KindUnknown:            {Kind: KindUnknown, Retryable: false},
}

// ClassificationFor returns the verdict table entry for a kind.
func ClassificationFor(kind Kind) Classification {
	if c, ok := classifications[kind]; ok {
		return c
	}
	return classifications[KindUnknown]
}

// Classify maps a raw failure to its retry-aware classification. Pure and
// deterministic: typed errors classify by status code, then by kind; plain
// errors fall back to message keywords.
func Classify(err error) Classification {
	if err == nil {
		return classifications[KindUnknown]
	}

	var fe *Error
	if errors.As(err, &fe) {
		if fe.StatusCode != 0 {
			c := ClassificationFor(kindForStatus(fe.StatusCode))
			c.StatusCode = fe.StatusCode
			return c
		}
		return ClassificationFor(fe.Kind)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return classifications[KindTimeout]
	}

	return ClassificationFor(kindForMessage(err.Error()))
}

func kindForStatus(status int) Kind {
	switch status {
	case 429:
		return KindRateLimit
	case 500, 503:
		return KindServiceUnavailable
	case 400:
		return KindInvalidRequest
	case 402:
		return KindQuotaExceeded
	default:
		return KindUnknown
	}
}

// kindForMessage is the last-resort keyword classifier for untyped errors.
func kindForMessage(msg string) Kind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "timeout"),
		strings.Contains(m, "timed out"),
		strings.Contains(m, "deadline exceeded"),
		strings.Contains(m, "etimedout"):
		return KindTimeout
	case strings.Contains(m, "connection refused"),
		strings.Contains(m, "econnrefused"),
		strings.Contains(m, "enotfound"),
		strings.Contains(m, "unreachable"),
		strings.Contains(m, "network"):
		return KindNetworkFailure
	default:
		return KindUnknown
	}
}

// UnknownFunctionError is returned when the requested function is not in
// the catalog. The handler is never invoked.
type UnknownFunctionError struct {
	Function string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function: %q", e.Function)
}

// ValidationError is returned when parameters fail their function's rules.
// Problems holds every rule violation, not just the first.
type ValidationError struct {
	Function string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Function, strings.Join(e.Problems, "; "))
}

// PermissionError is returned when the caller lacks access to the resource
// a function call targets.
type PermissionError struct {
	UserID       string
	ResourceID   string
	ResourceType string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user has no access to %s %q", e.ResourceType, e.ResourceID)
}
