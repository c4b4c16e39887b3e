package faults

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/aws/smithy-go"
)

// Classify converts an arbitrary error into a Record. Errors that are already
// Records pass through unchanged so classification is idempotent across
// layers. Unrecognizable errors default to internal/critical rather than
// escaping unclassified.
func Classify(err error) *Record {
	if err == nil {
		return nil
	}

	var rec *Record
	if errors.As(err, &rec) {
		return rec
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(CategoryTimeout, SeverityHigh, "operation timed out").WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return New(CategoryInternal, SeverityMedium, "operation canceled").WithCause(err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return New(CategoryTimeout, SeverityHigh, "network operation timed out").WithCause(err)
		}
		return New(CategoryNetwork, SeverityHigh, "network operation failed").WithCause(err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return New(CategoryTimeout, SeverityHigh, "request timed out").WithCause(err)
		}
		return New(CategoryNetwork, SeverityHigh, "request failed").WithCause(err)
	}

	return classifyByMessage(err)
}

// classifyAPIError maps AWS service error codes onto the taxonomy.
func classifyAPIError(apiErr smithy.APIError, cause error) *Record {
	code := apiErr.ErrorCode()
	switch code {
	case "ThrottlingException", "TooManyRequestsException", "LimitExceededException",
		"ProvisionedThroughputExceededException", "RequestLimitExceeded":
		return New(CategoryRateLimit, SeverityMedium, "request was throttled by the service").WithCause(cause)
	case "AccessDeniedException", "AccessDenied", "UnauthorizedOperation":
		return New(CategoryAuthorization, SeverityHigh, "access denied by the service").WithCause(cause)
	case "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException",
		"InvalidClientTokenId", "AuthFailure":
		return New(CategoryAuthentication, SeverityHigh, "service authentication failed").WithCause(cause)
	case "ServiceUnavailableException", "ServiceUnavailable", "InternalFailure",
		"InternalServerException", "ModelNotReadyException":
		return New(CategoryServiceUnavailable, SeverityHigh, "service is unavailable").WithCause(cause)
	case "ValidationException", "InvalidParameterException", "InvalidRequestException",
		"BadRequestException":
		return New(CategoryValidation, SeverityMedium, "service rejected the request as invalid").WithCause(cause)
	case "ResourceNotFoundException", "NoSuchEntity":
		return New(CategoryConfiguration, SeverityMedium, "a configured resource was not found").WithCause(cause)
	case "ModelTimeoutException", "RequestTimeout", "RequestTimeoutException":
		return New(CategoryTimeout, SeverityHigh, "service request timed out").WithCause(cause)
	}
	return New(CategoryInternal, SeverityHigh, "service call failed").WithCause(cause)
}

// classifyByMessage is the last-resort pattern match, mirroring the categories
// the upstream services report in free text.
func classifyByMessage(err error) *Record {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return New(CategoryTimeout, SeverityHigh, "operation timed out").WithCause(err)
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") || strings.Contains(msg, "broken pipe"):
		return New(CategoryNetwork, SeverityHigh, "network operation failed").WithCause(err)
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return New(CategoryRateLimit, SeverityMedium, "request was rate limited").WithCause(err)
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "forbidden"):
		return New(CategoryAuthorization, SeverityHigh, "operation was not authorized").WithCause(err)
	case strings.Contains(msg, "service unavailable"):
		return New(CategoryServiceUnavailable, SeverityHigh, "service is unavailable").WithCause(err)
	}
	return New(CategoryInternal, SeverityCritical, "unexpected internal error").WithCause(err)
}

// FromHTTPStatus classifies an unexpected HTTP status from an upstream
// provider. The retryAfter hint (seconds) is honored for 429 responses.
func FromHTTPStatus(status int, retryAfter int) *Record {
	switch {
	case status == 429:
		rec := New(CategoryRateLimit, SeverityMedium, "upstream rate limit exceeded")
		if retryAfter > 0 {
			rec = rec.WithRetryAfter(retryAfter)
		}
		return rec
	case status == 401:
		return New(CategoryAuthentication, SeverityHigh, "upstream authentication failed")
	case status == 403:
		return New(CategoryAuthorization, SeverityHigh, "upstream authorization failed")
	case status == 404:
		return New(CategoryValidation, SeverityMedium, "upstream resource not found")
	case status >= 400 && status < 500:
		return New(CategoryValidation, SeverityMedium, "upstream rejected the request")
	case status == 503 || status == 502 || status == 504:
		return New(CategoryServiceUnavailable, SeverityHigh, "upstream service unavailable")
	case status >= 500:
		return New(CategoryServiceUnavailable, SeverityHigh, "upstream service error")
	default:
		return Newf(CategoryInternal, SeverityHigh, "unexpected upstream status %d", status)
	}
}
