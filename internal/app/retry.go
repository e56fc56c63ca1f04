package app

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default retry configuration values.
const (
	DefaultRetryInitialInterval = 500 * time.Millisecond
	DefaultRetryMaxInterval     = 10 * time.Second
	DefaultRetryMaxElapsedTime  = time.Minute
)

// RetryConfig decides what happens to a batch whose dispatch failed.
// With Enabled false the batch is dropped after the first failure and the
// failure is reported; otherwise it is retried with exponential backoff
// until it succeeds, a permanent error occurs or a limit is reached.
// Retries happen in the worker, so later batches wait behind them.
type RetryConfig struct {
	Enabled bool

	// InitialInterval is the wait after the first failure.
	InitialInterval time.Duration

	// MaxInterval caps the wait between attempts.
	MaxInterval time.Duration

	// MaxElapsedTime bounds the total time spent on one batch. 0 means no limit.
	MaxElapsedTime time.Duration

	// MaxAttempts bounds the number of sends per batch, the first included.
	// 0 means no limit.
	MaxAttempts int
}

// DefaultRetryConfig returns a disabled RetryConfig with sensible intervals.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:         false,
		InitialInterval: DefaultRetryInitialInterval,
		MaxInterval:     DefaultRetryMaxInterval,
		MaxElapsedTime:  DefaultRetryMaxElapsedTime,
	}
}

// newBackOff builds the backoff schedule for one batch. It stops when ctx
// is canceled.
func (c RetryConfig) newBackOff(ctx context.Context) backoff.BackOff {
	// Do not use NewExponentialBackOff since it calls Reset before our
	// intervals are set.
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         c.MaxInterval,
		MaxElapsedTime:      c.MaxElapsedTime,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = DefaultRetryInitialInterval
	}
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = DefaultRetryMaxInterval
	}
	exp.Reset()

	var b backoff.BackOff = exp
	if c.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(c.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}
