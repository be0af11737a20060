package providers

import (
	"context"
	"time"

	"github.com/haasonsaas/mnemos/internal/backoff"
)

// streamRetryAttempts bounds retries when opening a completion stream.
const streamRetryAttempts = 3

var transientPolicy = backoff.Policy{
	Initial: 500 * time.Millisecond,
	Max:     10 * time.Second,
	Factor:  2,
	Jitter:  0.5,
}

// retryTransient runs op, retrying while the failure classifies as
// transient (rate limit, timeout, server error) with backoff between
// tries. Non-transient failures surface immediately.
func retryTransient(ctx context.Context, attempts int, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == attempts {
			return err
		}
		if err := backoff.Sleep(ctx, transientPolicy, attempt); err != nil {
			return err
		}
	}
	return lastErr
}
