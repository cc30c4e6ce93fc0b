package infra

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig makes a single attempt. Adapters opt into more with
// RetryAttempts.
func DefaultRetryConfig() RetryConfig {
	return RetryAttempts(1)
}

// RetryAttempts returns the backoff schedule used by the HTTP adapters with
// the given number of attempts.
func RetryAttempts(n int) RetryConfig {
	if n < 1 {
		n = 1
	}
	return RetryConfig{
		MaxAttempts:  n,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryableError marks a failure worth another attempt.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() + " (retryable)" }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so WithRetry tries again.
func Retryable(err error) error {
	return &RetryableError{Err: err}
}

// WithRetry executes fn with exponential backoff. Only errors wrapped with
// Retryable are retried.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			return err
		}

		// Last attempt, don't wait
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}

// IsRetryableHTTPStatus returns true if the HTTP status code is retryable
func IsRetryableHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode >= 500
}
