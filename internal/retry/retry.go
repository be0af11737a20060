// Package retry runs an operation repeatedly until it succeeds, a
// permanent error surfaces, or the attempt budget runs out.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/mnemos/internal/backoff"
)

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts counts the first try too.
	MaxAttempts int

	// InitialDelay is the wait after the first failure.
	InitialDelay time.Duration

	// MaxDelay caps the growing delay.
	MaxDelay time.Duration

	// Factor multiplies the delay per attempt.
	Factor float64

	// Jitter randomizes delays when true.
	Jitter bool
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Factor <= 0 {
		c.Factor = 2
	}
	return c
}

func (c Config) policy() backoff.Policy {
	jitter := 0.0
	if c.Jitter {
		jitter = 0.5
	}
	return backoff.Policy{
		Initial: c.InitialDelay,
		Max:     c.MaxDelay,
		Factor:  c.Factor,
		Jitter:  jitter,
	}
}

// Result reports how a retry loop ended.
type Result struct {
	// Attempts made, including the successful one.
	Attempts int

	// Err is the last error, nil on success.
	Err error
}

// Do retries op until success, a permanent error, context cancellation, or
// MaxAttempts.
func Do(ctx context.Context, config Config, op func() error) Result {
	_, result := DoWithValue(ctx, config, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return result
}

// DoWithValue is Do for operations that produce a value.
func DoWithValue[T any](ctx context.Context, config Config, op func() (T, error)) (T, Result) {
	config = config.withDefaults()
	policy := config.policy()

	var zero T
	result := Result{}
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt
		value, err := op()
		if err == nil {
			return value, result
		}
		result.Err = err
		if IsPermanent(err) || attempt == config.MaxAttempts {
			return zero, result
		}
		if err := backoff.Sleep(ctx, policy, attempt); err != nil {
			result.Err = err
			return zero, result
		}
	}
	return zero, result
}

// PermanentError wraps an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
