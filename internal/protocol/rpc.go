package protocol

import (
	"github.com/haasonsaas/placefinder/internal/faults"
)

// JSON-RPC 2.0 error codes. Standard codes cover request-shape problems;
// the -32000..-32099 implementation-defined range carries the rest.
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeAuthentication = -32001
	CodeAuthorization  = -32002
	CodeRateLimit      = -32003
	CodeToolExecution  = -32004
)

// RPCError is the JSON-RPC 2.0 error object rendered from a record.
type RPCError struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    *RPCErrorData `json:"data,omitempty"`
}

// RPCErrorData carries the taxonomy fields inside the error envelope.
// RetryAfter appears only for rate_limit records.
type RPCErrorData struct {
	ID         string          `json:"id"`
	Category   faults.Category `json:"category"`
	Severity   faults.Severity `json:"severity"`
	Retryable  bool            `json:"retryable"`
	RetryAfter int             `json:"retry_after,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
}

// RPCCode maps a category onto its JSON-RPC error code. The mapping is
// deterministic: equal categories always produce equal codes.
func RPCCode(c faults.Category) int {
	switch c {
	case faults.CategoryValidation:
		return CodeInvalidParams
	case faults.CategoryConfiguration:
		return CodeMethodNotFound
	case faults.CategoryProtocol:
		return CodeInvalidRequest
	case faults.CategoryAuthentication:
		return CodeAuthentication
	case faults.CategoryAuthorization:
		return CodeAuthorization
	case faults.CategoryRateLimit:
		return CodeRateLimit
	case faults.CategoryToolExecution:
		return CodeToolExecution
	default:
		// network, timeout, service_unavailable, internal
		return CodeInternalError
	}
}

// RPC renders a record as a JSON-RPC error object.
func RPC(rec *faults.Record) *RPCError {
	data := &RPCErrorData{
		ID:        rec.ID,
		Category:  rec.Category,
		Severity:  rec.Severity,
		Retryable: rec.Retryable(),
		ToolName:  rec.Context.ToolName,
		RequestID: rec.Context.RequestID,
	}
	if rec.Category == faults.CategoryRateLimit {
		data.RetryAfter = rec.RetryAfter
	}
	return &RPCError{
		Code:    RPCCode(rec.Category),
		Message: faults.UserMessage(rec.Category),
		Data:    data,
	}
}
