// Package apperrors defines the error kinds spec.md §7 enumerates and the
// classification logic the resilience layer and HTTP surface use to decide
// whether to retry, trip a breaker, or report 400 vs 500. It generalizes
// the reference system's Toolkit/Commons/errors package from per-provider
// errors to the kind taxonomy this system needs.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the error kinds spec.md §7 names. It is deliberately a
// closed set of string constants rather than a type hierarchy so callers
// can classify errors without importing this package's concrete types.
type Kind string

const (
	KindValidation      Kind = "ValidationError"
	KindConfig          Kind = "ConfigError"
	KindUpstreamTransient Kind = "UpstreamTransient"
	KindUpstreamTerminal  Kind = "UpstreamTerminal"
	KindCircuitOpen     Kind = "CircuitOpen"
	KindTimeout         Kind = "Timeout"
	KindNotFound        Kind = "NotFound"
	KindPartialFailure  Kind = "PartialFailure"
	KindInternal        Kind = "Internal"
)

// Error is the system's single error type: a kind, a message, an optional
// correlation id, and an optional wrapped cause.
type Error struct {
	Kind          Kind
	Message       string
	CorrelationID string
	RetryAfter    int // seconds; only meaningful for UpstreamTransient from a 429
	Cause         error
}

func (e *Error) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("[%s] %s (correlation_id=%s)", e.Kind, e.Message, e.CorrelationID)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithCorrelation returns a copy of e carrying the given correlation id.
func (e *Error) WithCorrelation(id string) *Error {
	cp := *e
	cp.CorrelationID = id
	return &cp
}

// KindOf extracts the Kind from err, defaulting to KindInternal for any
// error that isn't one of ours.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the resilience layer should retry err:
// UpstreamTransient and Timeout are retryable; everything else (including
// CircuitOpen, which means "don't even try") is not.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindUpstreamTransient, KindTimeout:
		return true
	default:
		return false
	}
}

// FromHTTPStatus classifies an HTTP response the way the reference
// system's ErrorHandler.HandleHTTPError does: 429/5xx are transient and
// retryable (with Retry-After honoured per spec.md §4.4), other 4xx are
// terminal, everything else is internal.
func FromHTTPStatus(statusCode int, retryAfterSeconds int, body string) *Error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &Error{Kind: KindUpstreamTransient, Message: "rate limited: " + body, RetryAfter: retryAfterSeconds}
	case statusCode >= 500:
		return &Error{Kind: KindUpstreamTransient, Message: fmt.Sprintf("server error %d: %s", statusCode, body)}
	case statusCode >= 400:
		return &Error{Kind: KindUpstreamTerminal, Message: fmt.Sprintf("client error %d: %s", statusCode, body)}
	default:
		return &Error{Kind: KindInternal, Message: fmt.Sprintf("unexpected status %d: %s", statusCode, body)}
	}
}

// HTTPStatus maps a Kind to the status code the external HTTP surface
// should report, per spec.md §7: validation errors are 400, everything
// else is a generic 500.
func HTTPStatus(kind Kind) int {
	if kind == KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
