package openai

import (
	"context"
	"time"
)

// retryBaseDelay is the first backoff step between provider call attempts;
// it doubles per retry.
const retryBaseDelay = 200 * time.Millisecond

// withRetry runs fn up to attempts times, sleeping with exponential backoff
// between failures. A done context aborts the wait and returns the last
// error; it does not interrupt an in-flight call.
func withRetry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return lastErr
}
