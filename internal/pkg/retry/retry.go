package retry

import (
	"collection-ledger/internal/pkg/apperrors"
	"context"
	"time"
)

// Policy bounds how often an operation failing with a concurrency conflict is
// attempted again.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

var NoRetry = Policy{MaxAttempts: 1}

// Do runs fn until it succeeds, fails with a non-retryable error, or the policy is
// exhausted. Backoff doubles after every attempt.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := p.Backoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !apperrors.IsRetryable(err) || attempt == attempts {
			return err
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
			wait *= 2
		}
	}
	return err
}
