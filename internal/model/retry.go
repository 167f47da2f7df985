package model

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig configures the retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category, matched
// case-insensitively against err.Error(). String matching is used because
// Genkit and the provider SDKs do not expose typed errors for transient
// failures.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and worth retrying.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, pattern := range group {
			if strings.Contains(errStr, pattern) {
				return true
			}
		}
	}
	return false
}

// withRetry runs fn with exponential backoff. Each attempt is rate limited
// so retries cannot burst past the provider's limits.
func (d *GenkitDecider) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	delay := d.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= d.retry.MaxRetries; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		err := fn(ctx)
		if err == nil {
			d.logger.Debug("model call succeeded",
				"attempts", attempt+1, "elapsed", time.Since(start))
			return nil
		}
		lastErr = err

		if !retryableError(err) {
			return fmt.Errorf("model call: %w", err)
		}
		if attempt == d.retry.MaxRetries {
			break
		}

		d.logger.Debug("retrying after error",
			"attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, d.retry.MaxInterval)
		}
	}

	return fmt.Errorf("model call after %d retries (elapsed: %v): %w",
		d.retry.MaxRetries, time.Since(start), lastErr)
}
