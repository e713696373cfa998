// Package retry executes fallible operations with bounded attempts and
// exponential backoff. Whether a failure is worth another attempt is decided
// by a pluggable predicate, so call sites keep their own policy (network
// errors yes, validation failures no).
package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultMaxAttempts   = 3
	defaultBaseDelay     = 1 * time.Second
	defaultMaxDelay      = 10 * time.Second
	defaultBackoffFactor = 2.0
)

// Options configures a retried call. Zero values take the defaults above;
// a nil RetryIf retries every failure.
type Options struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	RetryIf       func(error) bool
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	if o.BackoffFactor <= 0 {
		o.BackoffFactor = defaultBackoffFactor
	}
	if o.RetryIf == nil {
		o.RetryIf = func(error) bool { return true }
	}
	return o
}

// Error reports retry exhaustion: the operation failed MaxAttempts times.
type Error struct {
	Attempts int
	Last     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap exposes the last underlying failure.
func (e *Error) Unwrap() error { return e.Last }

// Do runs op until it succeeds, fails a non-retryable way, or exhausts
// MaxAttempts. A non-retryable failure is returned as-is with no further
// attempts; exhaustion is returned as *Error wrapping the last failure.
// The backoff sleep respects ctx cancellation.
func Do[T any](ctx context.Context, opts Options, op func(context.Context) (T, error)) (T, error) {
	var zero T
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !opts.RetryIf(err) {
			return zero, err
		}
		if attempt == opts.MaxAttempts {
			break
		}
		if err := sleep(ctx, backoff(opts, attempt)); err != nil {
			return zero, err
		}
	}
	return zero, &Error{Attempts: opts.MaxAttempts, Last: lastErr}
}

// backoff returns baseDelay * factor^(attempt-1), capped at MaxDelay.
func backoff(opts Options, attempt int) time.Duration {
	d := float64(opts.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= opts.BackoffFactor
	}
	if d > float64(opts.MaxDelay) {
		return opts.MaxDelay
	}
	return time.Duration(d)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
