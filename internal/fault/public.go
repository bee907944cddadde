package fault

import (
	"context"
	"errors"
	"strings"
)

// Code is the coarse, caller-facing error code. The set is small and stable
// on purpose; retry policy evolves against Kind, not Code.
type Code string

const (
	CodeInvalidFunction    Code = "invalid_function"
	CodeInvalidParameters  Code = "invalid_parameters"
	CodePermissionDenied   Code = "permission_denied"
	CodeTimeout            Code = "timeout"
	CodeServiceUnavailable Code = "service_unavailable"
	CodeInternalError      Code = "internal_error"
)

// Public is the error shape surfaced to callers.
type Public struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

var publicMessages = map[Code]string{
	CodeInvalidFunction:    "The requested function does not exist.",
	CodeInvalidParameters:  "One or more parameters are invalid.",
	CodePermissionDenied:   "You do not have access to this resource.",
	CodeTimeout:            "The operation took too long to complete.",
	CodeServiceUnavailable: "A backing service is temporarily unavailable.",
	CodeInternalError:      "An internal error occurred.",
}

// providerMarkers maps substrings of untyped collaborator errors to the
// service_unavailable code. Fragile, but callers already depend on the
// mapping, so it is kept as an explicit table rather than re-inferred.
var providerMarkers = []string{"openai", "pinecone", "vector_db"}

// PublicError maps any dispatch failure to its coarse public form. Typed
// errors short-circuit; only untyped errors reach the substring table.
func PublicError(err error, function string) Public {
	code := publicCode(err)
	p := Public{Code: code, Message: publicMessages[code]}

	switch code {
	case CodeInvalidFunction:
		p.Details = "function " + function + " is not registered"
	case CodeInvalidParameters:
		var ve *ValidationError
		if errors.As(err, &ve) {
			p.Details = strings.Join(ve.Problems, "; ")
		}
	case CodePermissionDenied:
		var pe *PermissionError
		if errors.As(err, &pe) {
			p.Details = pe.ResourceType + " " + pe.ResourceID
		}
	case CodeTimeout:
		p.Details = "function " + function + " exceeded its deadline"
	case CodeServiceUnavailable:
		var fe *Error
		if errors.As(err, &fe) && fe.Provider != "" {
			p.Details = fe.Provider + " is unavailable"
		}
	}
	return p
}

func publicCode(err error) Code {
	if err == nil {
		return CodeInternalError
	}

	var ufe *UnknownFunctionError
	if errors.As(err, &ufe) {
		return CodeInvalidFunction
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return CodeInvalidParameters
	}
	var pe *PermissionError
	if errors.As(err, &pe) {
		return CodePermissionDenied
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}

	var fe *Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case KindTimeout:
			return CodeTimeout
		case KindServiceUnavailable, KindNetworkFailure, KindRateLimit, KindQuotaExceeded:
			return CodeServiceUnavailable
		default:
			return CodeInternalError
		}
	}

	// Untyped error: fall back to substring inspection.
	m := strings.ToLower(err.Error())
	switch {
	case strings.Contains(m, "permission"):
		return CodePermissionDenied
	case strings.Contains(m, "validation"):
		return CodeInvalidParameters
	case strings.Contains(m, "timeout"), strings.Contains(m, "timed out"):
		return CodeTimeout
	}
	for _, marker := range providerMarkers {
		if strings.Contains(m, marker) {
			return CodeServiceUnavailable
		}
	}
	return CodeInternalError
}
