package crm

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// retryConfig configures the exponential backoff applied to idempotent CRM
// reads. Mutations never retry automatically: a timed-out create call may
// or may not have applied on the CRM side, and retrying blind risks a
// duplicate contact/appointment/task. Mutation dedup is handled separately
// via fingerprinting, not via this retry loop.
type retryConfig struct {
	MaxAttempts int
	Initial     time.Duration
	Factor      float64
	Max         time.Duration
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		MaxAttempts: 3,
		Initial:     1 * time.Second,
		Factor:      2,
		Max:         10 * time.Second,
	}
}

func withRetry(ctx context.Context, cfg retryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt >= cfg.MaxAttempts {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffFor(cfg, attempt)):
		}
	}
	return lastErr
}

func backoffFor(cfg retryConfig, attempt int) time.Duration {
	d := float64(cfg.Initial) * math.Pow(cfg.Factor, float64(attempt-1))
	if d > float64(cfg.Max) {
		d = float64(cfg.Max)
	}
	jitter := d * 0.1 * (rand.Float64()*2 - 1) //nolint:gosec // jitter, not security sensitive
	return time.Duration(d + jitter)
}
