package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Attempt records one provider call for error reporting.
type Attempt struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Message  string `json:"message"`
}

// ProviderError means a provider/model combination could not produce a
// result. Attempts holds the full history including any fallback call.
type ProviderError struct {
	Provider    string
	Model       string
	Attempts    []Attempt
	Recoverable bool
	Err         error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s (model %s) failed after %d attempt(s): %v", e.Provider, e.Model, len(e.Attempts), e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// CancellationError marks cooperative cancellation. It is never retried and
// never substituted with a fallback call.
type CancellationError struct {
	Err error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("inference cancelled: %v", e.Err)
}

func (e *CancellationError) Unwrap() error { return e.Err }

// IsCancellation reports whether err is (or wraps) a cancellation.
func IsCancellation(err error) bool {
	var ce *CancellationError
	return errors.As(err, &ce) || errors.Is(err, context.Canceled)
}

var recoverableMarkers = []string{
	"429", "500", "502", "503", "504",
	"rate limit", "rate_limit",
	"overloaded", "timeout", "deadline",
	"connection reset", "connection refused", "temporarily unavailable",
}

// Recoverable classifies an error for the retry policy. Timeouts and
// rate-limit/5xx-equivalents are retried; auth and bad-request failures
// are not. Unknown errors are treated as non-recoverable so a broken
// request is never hammered against a provider.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	if IsCancellation(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"401", "403", "invalid api key", "invalid_api_key", "authentication", "bad request"} {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	for _, marker := range recoverableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
