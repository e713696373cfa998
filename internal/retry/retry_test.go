package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient failure")

func fastOpts() Options {
	return Options{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastOpts(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Errorf("got %q after %d calls, want \"ok\" after 1", got, calls)
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastOpts(), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastOpts(), func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}

	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *retry.Error, got %T: %v", err, err)
	}
	if rerr.Attempts != 3 {
		t.Errorf("attempts: got %d, want 3", rerr.Attempts)
	}
	if !errors.Is(err, errTransient) {
		t.Error("retry.Error must unwrap to the last underlying failure")
	}
}

func TestDo_NonRetryableShortCircuits(t *testing.T) {
	terminal := errors.New("validation failed")
	calls := 0
	opts := fastOpts()
	opts.RetryIf = func(err error) bool { return !errors.Is(err, terminal) }

	_, err := Do(context.Background(), opts, func(context.Context) (int, error) {
		calls++
		return 0, terminal
	})
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	// The original error comes back unwrapped, not a retry.Error.
	if !errors.Is(err, terminal) {
		t.Errorf("got %v, want the terminal error itself", err)
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		t.Error("non-retryable failure must not be wrapped in retry.Error")
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	opts := Options{MaxAttempts: 3, BaseDelay: time.Hour}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, opts, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1 (cancelled during first backoff)", calls)
	}
}

func TestBackoff_ExponentialWithCap(t *testing.T) {
	opts := Options{BaseDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}.withDefaults()

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
		{8, 10 * time.Second},
	}
	for _, tc := range cases {
		if got := backoff(opts, tc.attempt); got != tc.want {
			t.Errorf("backoff(attempt=%d): got %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.MaxAttempts != 3 || o.BaseDelay != time.Second || o.MaxDelay != 10*time.Second || o.BackoffFactor != 2 {
		t.Errorf("defaults: got %+v", o)
	}
	if o.RetryIf == nil || !o.RetryIf(errTransient) {
		t.Error("default RetryIf must retry everything")
	}
}
