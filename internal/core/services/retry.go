package services

import (
	"context"
	"math/rand/v2"
	"time"
)

// maxBackoff caps the delay between embedding attempts.
const maxBackoff = 8 * time.Second

// RetryPolicy controls how failed calls are retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// Backoff returns the delay before the given retry (1-based).
	Backoff func(retry int) time.Duration

	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns a policy with jittered exponential backoff.
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		Backoff:    ExponentialBackoff,
		Sleep:      sleepContext,
	}
}

// ExponentialBackoff returns min(8s, 2^(retry-1)s + jitter) with jitter
// drawn uniformly from [100ms, 700ms).
func ExponentialBackoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	base := time.Second << min(retry-1, 4)
	jitter := 100*time.Millisecond + rand.N(600*time.Millisecond)
	return min(maxBackoff, base+jitter)
}

// Do calls fn until it succeeds or the retry budget is spent. It returns
// the number of attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) (int, error) {
	backoff := p.Backoff
	if backoff == nil {
		backoff = ExponentialBackoff
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	attempt := 0
	for {
		attempt++
		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if attempt > p.MaxRetries {
			return attempt, err
		}
		if serr := sleep(ctx, backoff(attempt)); serr != nil {
			return attempt, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
