package pipeline

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the per-step retry configuration. The extraction service and
// the storage transport are both assumed to fail transiently under load, so
// they share the same policy; retry is scoped to the step, never to the whole
// run.
type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries up to 5 attempts with delays 1s, 2s, 4s, 8s;
// MaxInterval caps any computed delay at 16s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		Multiplier:      2.0,
		MaxInterval:     16 * time.Second,
	}
}

// Do runs op under the policy. Wrap an error with backoff.Permanent to stop
// retrying a non-retryable logic failure.
func (p RetryPolicy) Do(ctx context.Context, op backoff.Operation) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.RandomizationFactor = 0
	bo.Multiplier = p.Multiplier
	bo.MaxInterval = p.MaxInterval
	bo.MaxElapsedTime = 0

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, p.MaxAttempts-1), ctx))
}
