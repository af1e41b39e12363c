package gateway

import (
	"context"
	"time"
)

// RetryPolicy is a reusable bounded-retry with exponential backoff. The
// same policy wraps both the primary and fallback model calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Classify reports whether an error is worth retrying. Defaults to
	// Recoverable.
	Classify func(error) bool
}

func (p RetryPolicy) classify(err error) bool {
	if p.Classify != nil {
		return p.Classify(err)
	}
	return Recoverable(err)
}

// Do runs op up to MaxAttempts times. Cancellation aborts immediately and
// is reported as a CancellationError; non-recoverable errors are returned
// after the first attempt.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &CancellationError{Err: err}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if IsCancellation(lastErr) {
			return &CancellationError{Err: lastErr}
		}
		if !p.classify(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		select {
		case <-time.After(p.backoff(attempt)):
		case <-ctx.Done():
			return &CancellationError{Err: ctx.Err()}
		}
	}
	return lastErr
}

// backoff doubles the base delay per attempt, capped at MaxDelay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
