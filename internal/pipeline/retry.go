package pipeline

import (
	"context"
	"errors"
	"time"

	"pressline/internal/services"
)

// retryPolicy bounds how often a failing stage call is re-attempted and how
// long to back off between attempts. Delays double per attempt.
type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
}

func newRetryPolicy(attempts, baseDelayMS int) retryPolicy {
	if attempts <= 0 {
		attempts = 3
	}
	baseDelay := time.Duration(baseDelayMS) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return retryPolicy{attempts: attempts, baseDelay: baseDelay}
}

// run invokes op until it succeeds, fails permanently, the attempt budget is
// exhausted, or the context ends. It returns the number of attempts made and
// the final error.
func (p retryPolicy) run(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	var lastErr error
	delay := p.baseDelay
	for attempt := 1; attempt <= p.attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return attempt, lastErr
		}
		if !services.IsTransient(lastErr) {
			return attempt, lastErr
		}
		if attempt == p.attempts {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return p.attempts, lastErr
}
