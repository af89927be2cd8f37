// Package retrylimit provides the two pacing primitives chat transports need:
// a windowed rate limiter for outbound messages and a retry loop with
// exponential backoff for (re)connecting.
//
// Example usage:
//
//	lim := retrylimit.NewWindowLimiter(20, 30*time.Second)
//	_ = lim.Wait(ctx)
//
//	err := retrylimit.WithRetry(ctx, func() error {
//	    return client.Connect()
//	}, retrylimit.DefaultRetryConfig())
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// Limiter
// =============================================================================

// NewWindowLimiter returns a token bucket that allows n events per window,
// with the full n available as an initial burst.
func NewWindowLimiter(n int, window time.Duration) *rate.Limiter {
	if n < 1 {
		n = 1
	}
	if window <= 0 {
		return rate.NewLimiter(rate.Inf, n)
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(n)), n)
}

// =============================================================================
// Errors
// =============================================================================

// FatalError wraps errors that should stop retries immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal marks err as not worth retrying.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// ErrMaxAttempts is returned once every attempt has failed.
var ErrMaxAttempts = errors.New("max attempts exceeded")

// =============================================================================
// Retry
// =============================================================================

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts  int                                                // 0 = until the context ends
	InitialDelay time.Duration                                      // delay after the first failure
	MaxDelay     time.Duration                                      // backoff ceiling
	Multiplier   float64                                            // delay multiplier for exponential backoff
	Jitter       bool                                               // add up to 25% random jitter
	OnRetry      func(attempt int, err error, delay time.Duration) // optional callback before sleeping
}

// DefaultRetryConfig retries forever, backing off from 1s up to 1m.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// WithRetry executes fn with exponential backoff. It stops when:
//   - fn returns nil (success)
//   - fn returns a FatalError (the wrapped error is returned)
//   - ctx is cancelled or expires
//   - MaxAttempts is reached
func WithRetry(ctx context.Context, fn func() error, cfg RetryConfig) error {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	delay := cfg.InitialDelay

	for attempt := 1; cfg.MaxAttempts == 0 || attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		var fatal *FatalError
		if errors.As(err, &fatal) {
			return fatal.Err
		}

		if cfg.MaxAttempts != 0 && attempt == cfg.MaxAttempts {
			return fmt.Errorf("%w (%d): %w", ErrMaxAttempts, cfg.MaxAttempts, err)
		}

		nextDelay := delay
		if cfg.Jitter {
			nextDelay = addJitter(delay)
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, nextDelay)
		}

		timer := time.NewTimer(nextDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return ErrMaxAttempts
}

// addJitter adds random jitter (0-25% of delay) to prevent thundering herd problem.
func addJitter(delay time.Duration) time.Duration {
	if delay < 4 {
		return delay
	}
	return delay + time.Duration(rand.Int63n(int64(delay/4)))
}
