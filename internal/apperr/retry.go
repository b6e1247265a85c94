package apperr

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (not including the initial attempt).
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration

	// Multiplier is the factor by which delay increases after each retry.
	Multiplier float64

	// Jitter adds randomness to delay to avoid synchronized retries across workers.
	Jitter bool
}

// DefaultRetryConfig returns the backoff schedule used for provider calls:
// three retries, one second up to sixteen seconds, jittered.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func jittered(d time.Duration, on bool) time.Duration {
	if !on {
		return d
	}
	factor := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(d) * factor)
}

// retryAfterOf extracts a provider Retry-After hint from err, if any.
func retryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) && e.RetryAfterSeconds > 0 {
		return time.Duration(e.RetryAfterSeconds) * time.Second
	}
	return 0
}

// Retry runs fn with exponential backoff. It stops immediately, without
// consuming an attempt, if fn returns a non-retryable *Error (KindValidation,
// KindNotFound, KindProviderAuth, KindCancelled).
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult runs fn with exponential backoff, returning its last result
// and error. A KindProviderRateLimit error's RetryAfterSeconds, when present,
// overrides the computed backoff delay for that attempt.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		var err error
		result, err = fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if appErr, ok := err.(*Error); ok && !appErr.Retryable {
			return result, err
		}

		if attempt >= cfg.MaxRetries {
			break
		}

		wait := jittered(delay, cfg.Jitter)
		if ra := retryAfterOf(err); ra > 0 {
			wait = ra
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	var zero T
	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
