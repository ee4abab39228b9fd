package generate

import (
	"context"
	"strings"
	"time"
)

// RetryConfig bounds retries against the model backend.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig retries batch calls once. Per-step enhancement uses
// StepRetryConfig, which is more patient because each call is small.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:      1,
	InitialInterval: 600 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// StepRetryConfig governs single-step enhancement calls.
var StepRetryConfig = RetryConfig{
	MaxRetries:      2,
	InitialInterval: 600 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// retryablePatterns match transient backend failures worth retrying.
// Anything else (auth failures, malformed requests) fails immediately.
var retryablePatterns = []string{
	"rate limit", "quota exceeded", "429",
	"500", "502", "503", "504", "unavailable", "overloaded",
	"connection reset", "timeout", "temporary",
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// withRetry runs fn up to 1+MaxRetries times, backing off between attempts.
// Non-retryable errors and context cancellation end the loop early.
func withRetry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var (
		out  T
		err  error
		wait = cfg.InitialInterval
	)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
			if wait > cfg.MaxInterval {
				wait = cfg.MaxInterval
			}
		}
		out, err = fn(ctx)
		if err == nil || !isRetryable(err) {
			return out, err
		}
	}
	return out, err
}
