// Package faults defines the normalized error taxonomy shared by every
// component of the assistant.
//
// All failures detected inside tool or model calls are classified into one of
// eleven categories before they leave the component that detected them. The
// resulting Record is rendered through exactly one protocol adapter (see
// internal/protocol) and then discarded; retrying re-invokes the underlying
// operation and produces a fresh Record on repeat failure.
package faults

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category classifies a failure. The set is exhaustive: anything that cannot
// be classified defaults to CategoryInternal with SeverityCritical.
type Category string

const (
	CategoryConfiguration      Category = "configuration"
	CategoryValidation         Category = "validation"
	CategoryNetwork            Category = "network"
	CategoryTimeout            Category = "timeout"
	CategoryAuthentication     Category = "authentication"
	CategoryAuthorization      Category = "authorization"
	CategoryRateLimit          Category = "rate_limit"
	CategoryServiceUnavailable Category = "service_unavailable"
	CategoryInternal           Category = "internal"
	CategoryProtocol           Category = "protocol"
	CategoryToolExecution      Category = "tool_execution"
)

// Categories lists every category, in stable order.
var Categories = []Category{
	CategoryConfiguration,
	CategoryValidation,
	CategoryNetwork,
	CategoryTimeout,
	CategoryAuthentication,
	CategoryAuthorization,
	CategoryRateLimit,
	CategoryServiceUnavailable,
	CategoryInternal,
	CategoryProtocol,
	CategoryToolExecution,
}

// Retryable reports whether failures in this category are worth retrying.
// This is the single source of truth: no code path may decide retryability
// independently of the category.
func (c Category) Retryable() bool {
	switch c {
	case CategoryNetwork, CategoryTimeout, CategoryRateLimit, CategoryServiceUnavailable:
		return true
	default:
		return false
	}
}

// Valid reports whether c is one of the eleven known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Severity indicates how urgently a failure should be surfaced in monitoring.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Context carries correlation fields attached to a Record.
type Context struct {
	TraceID   string `json:"trace_id,omitempty"`
	SpanID    string `json:"span_id,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Record is the normalized representation of a failure. It implements error
// so it can flow through ordinary Go error returns.
type Record struct {
	ID         string    `json:"id"`
	Category   Category  `json:"category"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Context    Context   `json:"context,omitempty"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds; rate_limit only
	Timestamp  time.Time `json:"timestamp"`

	cause error
}

// New creates a Record with a unique id. The message must already be
// sanitized: callers never pass raw upstream bodies or secrets.
func New(category Category, severity Severity, message string) *Record {
	if !category.Valid() {
		category = CategoryInternal
		severity = SeverityCritical
	}
	return &Record{
		ID:        fmt.Sprintf("err_%d_%s", time.Now().Unix(), uuid.NewString()[:8]),
		Category:  category,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Newf is New with a format string.
func Newf(category Category, severity Severity, format string, args ...any) *Record {
	return New(category, severity, fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (r *Record) Error() string {
	return fmt.Sprintf("%s: %s", r.Category, r.Message)
}

// Unwrap exposes the originating error, when one was recorded.
func (r *Record) Unwrap() error {
	return r.cause
}

// Retryable is derived from the category, never stored independently.
func (r *Record) Retryable() bool {
	return r.Category.Retryable()
}

// WithCause attaches the originating error without exposing it in Message.
func (r *Record) WithCause(err error) *Record {
	r.cause = err
	return r
}

// WithTool tags the record with the tool that produced it.
func (r *Record) WithTool(name string) *Record {
	r.Context.ToolName = name
	return r
}

// WithRequest tags the record with request/session correlation ids.
func (r *Record) WithRequest(requestID, sessionID string) *Record {
	r.Context.RequestID = requestID
	r.Context.SessionID = sessionID
	return r
}

// WithTrace tags the record with the active trace/span ids.
func (r *Record) WithTrace(traceID, spanID string) *Record {
	r.Context.TraceID = traceID
	r.Context.SpanID = spanID
	return r
}

// WithRetryAfter records the advised backoff, in seconds. Only meaningful for
// rate_limit records; other categories ignore it at render time.
func (r *Record) WithRetryAfter(seconds int) *Record {
	r.RetryAfter = seconds
	return r
}

// UserMessage returns the generic, user-facing message for a category.
// End users never see raw upstream error bodies or stack internals; support
// correlation happens through the opaque record id.
func UserMessage(c Category) string {
	switch c {
	case CategoryConfiguration:
		return "the service is misconfigured, please contact support"
	case CategoryValidation:
		return "the request was invalid, please check your input"
	case CategoryNetwork, CategoryServiceUnavailable:
		return "the service is temporarily unavailable, please try again"
	case CategoryTimeout:
		return "the request took too long, please try again"
	case CategoryAuthentication:
		return "authentication failed, please check your credentials"
	case CategoryAuthorization:
		return "you are not authorized to perform this action"
	case CategoryRateLimit:
		return "too many requests, please slow down and try again"
	case CategoryProtocol:
		return "the request could not be understood"
	case CategoryToolExecution:
		return "a tool failed while handling your request, please try again"
	default:
		return "an unexpected error occurred, please try again"
	}
}
