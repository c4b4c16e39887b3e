package protocol

import (
	"net/http"

	"github.com/haasonsaas/placefinder/internal/faults"
)

// LambdaInfo identifies the serverless invocation that produced a fault.
type LambdaInfo struct {
	RequestID    string
	FunctionName string
}

// HTTPError is the HTTP/Lambda rendering: a status code plus a JSON body.
type HTTPError struct {
	Status int      `json:"-"`
	Error  HTTPBody `json:"error"`
}

// HTTPBody is the JSON error body.
type HTTPBody struct {
	ID           string          `json:"id"`
	Category     faults.Category `json:"category"`
	Severity     faults.Severity `json:"severity"`
	Message      string          `json:"message"`
	Retryable    bool            `json:"retryable"`
	RetryAfter   int             `json:"retry_after,omitempty"`
	ToolName     string          `json:"tool_name,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
	FunctionName string          `json:"function_name,omitempty"`
}

// HTTPStatus maps a category onto an HTTP status code.
func HTTPStatus(c faults.Category) int {
	switch c {
	case faults.CategoryConfiguration, faults.CategoryValidation, faults.CategoryProtocol:
		return http.StatusBadRequest
	case faults.CategoryAuthentication:
		return http.StatusUnauthorized
	case faults.CategoryAuthorization:
		return http.StatusForbidden
	case faults.CategoryRateLimit:
		return http.StatusTooManyRequests
	case faults.CategoryNetwork:
		return http.StatusBadGateway
	case faults.CategoryTimeout:
		return http.StatusGatewayTimeout
	case faults.CategoryServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		// internal, tool_execution
		return http.StatusInternalServerError
	}
}

// HTTP renders a record for the Lambda transport. info may be nil when no
// invocation metadata is available.
func HTTP(rec *faults.Record, info *LambdaInfo) HTTPError {
	body := HTTPBody{
		ID:         rec.ID,
		Category:   rec.Category,
		Severity:   rec.Severity,
		Message:    faults.UserMessage(rec.Category),
		Retryable:  rec.Retryable(),
		RetryAfter: rec.RetryAfter,
		ToolName:   rec.Context.ToolName,
		RequestID:  rec.Context.RequestID,
	}
	if info != nil {
		if info.RequestID != "" {
			body.RequestID = info.RequestID
		}
		body.FunctionName = info.FunctionName
	}
	return HTTPError{Status: HTTPStatus(rec.Category), Error: body}
}
