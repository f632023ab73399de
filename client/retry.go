package client

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryRateLimited calls fn up to attempts times, waiting baseDelay*2^n
// after the nth rate-limited failure. Any other error stops immediately.
func RetryRateLimited(ctx context.Context, attempts int, baseDelay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = baseDelay << attempts
	policy.MaxElapsedTime = 0

	operation := func() error {
		err := fn(ctx)
		if err != nil && !errors.Is(err, ErrRateLimited) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx))
}
