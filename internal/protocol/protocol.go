// Package protocol renders a faults.Record for a specific transport.
//
// Every fault surfaces through exactly one adapter, chosen by the transport
// that owns the request: Direct for in-process callers, RPC for the MCP stdio
// server, HTTP for the Lambda handler. All three are total over the category
// set and stateless.
package protocol

import (
	"github.com/haasonsaas/placefinder/internal/faults"
)

// DirectError is the in-process rendering. Message is safe to show to an end
// user; correlation happens through the opaque record id.
type DirectError struct {
	ID         string          `json:"id"`
	Category   faults.Category `json:"category"`
	Severity   faults.Severity `json:"severity"`
	Message    string          `json:"message"`
	Retryable  bool            `json:"retryable"`
	RetryAfter int             `json:"retry_after,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
}

// Direct renders a record for in-process consumption.
func Direct(rec *faults.Record) DirectError {
	return DirectError{
		ID:         rec.ID,
		Category:   rec.Category,
		Severity:   rec.Severity,
		Message:    faults.UserMessage(rec.Category),
		Retryable:  rec.Retryable(),
		RetryAfter: rec.RetryAfter,
		ToolName:   rec.Context.ToolName,
		RequestID:  rec.Context.RequestID,
	}
}
