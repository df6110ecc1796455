package chain

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy governs bounded retry with exponential backoff and jitter for
// idempotent reads. Submissions must never be wrapped in a policy: a
// broadcast transaction cannot be safely re-sent.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Retryable decides whether an error is worth another attempt. A nil
	// predicate retries everything except context cancellation.
	Retryable func(error) bool
}

// DefaultReadPolicy is the policy applied to contract reads.
func DefaultReadPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Do runs fn under the policy, sleeping an exponentially growing, jittered
// delay between attempts. The last error is returned when attempts are
// exhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.backoff(attempt)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
	}
	return err
}

// backoff returns the delay before the given attempt (1-based), doubling
// from BaseDelay and jittered ±25% to avoid thundering herds.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if delay <= 0 {
		return 0
	}
	half := int64(delay) / 2
	if half <= 0 {
		// Too small to jitter (Int63n requires a positive bound).
		return delay
	}
	jitter := time.Duration(rand.Int63n(half))
	return delay*3/4 + jitter
}
