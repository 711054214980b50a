package indexer

import (
	"context"
	"errors"
	"fmt"
)

// Error codes for categorizing indexer and dispatch errors. Codes are
// surfaced verbatim to callers; the strings never drive control flow.
const (
	ErrCodeCloudflare   = "CLOUDFLARE_PROTECTED"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeRateLimit    = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeTransport    = "TRANSPORT_ERROR"
)

// IndexerError is a categorized error from an indexer or dispatch
// operation.
type IndexerError struct {
	Code        string // Error category code
	Message     string // Human-readable message
	IndexerID   int64  // ID of the affected indexer (0 if not applicable)
	IndexerName string // Name of the affected indexer
	Retryable   bool   // Whether the operation can be retried
	Cause       error  // Underlying error
}

// Error implements the error interface.
func (e *IndexerError) Error() string {
	if e.IndexerName != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.IndexerName, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *IndexerError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is().
func (e *IndexerError) Is(target error) bool {
	var t *IndexerError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel instances for errors.Is comparisons.
var (
	ErrCloudflare  = &IndexerError{Code: ErrCodeCloudflare, Message: "cloudflare protection detected"}
	ErrTimeout     = &IndexerError{Code: ErrCodeTimeout, Message: "request timed out"}
	ErrRateLimited = &IndexerError{Code: ErrCodeRateLimit, Message: "rate limit exceeded"}
)

// NewCloudflareError marks a search blocked by a Cloudflare challenge.
func NewCloudflareError(indexerID int64, indexerName string) *IndexerError {
	return &IndexerError{
		Code:        ErrCodeCloudflare,
		Message:     "cloudflare protection detected",
		IndexerID:   indexerID,
		IndexerName: indexerName,
		Retryable:   false,
	}
}

// NewTimeoutError marks a search that exceeded its per-indexer deadline.
func NewTimeoutError(indexerID int64, indexerName string, cause error) *IndexerError {
	return &IndexerError{
		Code:        ErrCodeTimeout,
		Message:     "request timed out",
		IndexerID:   indexerID,
		IndexerName: indexerName,
		Retryable:   true,
		Cause:       cause,
	}
}

// NewRateLimitError marks a request the indexer refused for exceeding
// its rate limit.
func NewRateLimitError(indexerID int64, indexerName string) *IndexerError {
	return &IndexerError{
		Code:        ErrCodeRateLimit,
		Message:     "rate limit exceeded",
		IndexerID:   indexerID,
		IndexerName: indexerName,
		Retryable:   true,
	}
}

// NewUnauthorizedError wraps an authentication failure from the adapter.
func NewUnauthorizedError(indexerID int64, indexerName string, cause error) *IndexerError {
	return &IndexerError{
		Code:        ErrCodeUnauthorized,
		Message:     "authentication failed",
		IndexerID:   indexerID,
		IndexerName: indexerName,
		Retryable:   false,
		Cause:       cause,
	}
}

// NewTransportError wraps any other HTTP or wire failure from the adapter.
func NewTransportError(indexerID int64, indexerName string, cause error) *IndexerError {
	return &IndexerError{
		Code:        ErrCodeTransport,
		Message:     "transport error",
		IndexerID:   indexerID,
		IndexerName: indexerName,
		Retryable:   true,
		Cause:       cause,
	}
}

// IsCloudflareError reports whether the error is a Cloudflare block.
func IsCloudflareError(err error) bool {
	return errors.Is(err, ErrCloudflare)
}

// IsTimeoutError reports whether the error is a deadline failure, either
// classified or raw context expiry.
func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsRateLimitError reports whether the error is a rate-limit refusal.
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsRetryable returns whether the error is retryable.
func IsRetryable(err error) bool {
	var indexerErr *IndexerError
	if errors.As(err, &indexerErr) {
		return indexerErr.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var indexerErr *IndexerError
	if errors.As(err, &indexerErr) {
		return indexerErr.Code
	}
	return ""
}
