// Package apierror provides standardized error types and response structures
// for the API. All errors returned to clients go through this package to ensure
// consistency and to prevent leaking internal details (stack traces, DB errors,
// etc.). Services attach a Kind and a stable reason code so handlers and
// callers can branch on "already exists" vs "bad input" without string matching.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP mapping and caller branching.
type Kind string

const (
	KindValidation     Kind = "validation"      // malformed / out-of-range input
	KindConflict       Kind = "conflict"        // invariant violation (duplicate open shift, …)
	KindNotFound       Kind = "not_found"       // referenced entity missing
	KindSchemaMismatch Kind = "schema_mismatch" // persistence layer out of sync — retryable
	KindInternal       Kind = "internal"        // unexpected failure
)

// Error is the canonical service-layer error. Code is a stable machine-readable
// reason (e.g. "shift_already_open"); Message is safe to show to clients.
type Error struct {
	Kind    Kind              `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"detail"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func SchemaMismatch(code, msg string) *Error {
	return &Error{Kind: KindSchemaMismatch, Code: code, Message: msg}
}

func Internal(msg string) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: msg}
}

// WithFields attaches field-level validation detail.
func (e *Error) WithFields(fields map[string]string) *Error {
	e.Fields = fields
	return e
}

// From extracts an *Error from err, wrapping unknown errors as internal so the
// original message never reaches the client.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal server error")
}

// HTTPStatus maps an error to its response status code.
func HTTPStatus(err error) int {
	switch From(err).Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindSchemaMismatch:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// APIError is the plain error envelope used for auth and infrastructure
// failures raised outside the service layer.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError wraps multiple field errors from request binding.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation error", Fields: fields}
}
