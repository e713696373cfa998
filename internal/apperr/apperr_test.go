package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew_CodeDefaults(t *testing.T) {
	cases := []struct {
		code      string
		kind      Kind
		retryable bool
		status    int
	}{
		{CodeNoConnection, KindNetwork, true, 503},
		{CodeRateLimited, KindNetwork, true, 429},
		{CodeUnauthorized, KindAuthentication, false, 401},
		{CodeForbidden, KindAuthentication, false, 403},
		{CodeContentBlocked, KindAIProcessing, false, 422},
		{CodeQuotaExceeded, KindAIProcessing, true, 429},
		{CodeServiceUnavailable, KindAIProcessing, true, 503},
		{CodePaymentCancelled, KindPayment, false, 400},
		{CodeInsufficientFunds, KindPayment, false, 402},
		{CodePaymentFailed, KindPayment, true, 502},
		{CodeFileTooLarge, KindFileProcessing, false, 413},
		{CodeInsufficientCredits, KindInsufficientCredits, false, 402},
		{CodeDuplicateTransaction, KindPayment, false, 409},
		{CodeUnknown, KindUnknown, false, 500},
	}
	for _, tc := range cases {
		e := New(tc.code, "technical detail")
		if e.Kind != tc.kind {
			t.Errorf("%s: kind got %s, want %s", tc.code, e.Kind, tc.kind)
		}
		if e.Retryable != tc.retryable {
			t.Errorf("%s: retryable got %v, want %v", tc.code, e.Retryable, tc.retryable)
		}
		if e.StatusCode != tc.status {
			t.Errorf("%s: status got %d, want %d", tc.code, e.StatusCode, tc.status)
		}
		if e.UserMessage == "" || e.UserMessage == e.Message {
			t.Errorf("%s: user message must exist and differ from the technical message", tc.code)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("%s: timestamp must be set", tc.code)
		}
	}
}

func TestClassify_Priorities(t *testing.T) {
	// Already classified: passes through unchanged.
	original := New(CodeContentBlocked, "safety")
	if got := Classify(fmt.Errorf("wrapped: %w", original)); got != original {
		t.Error("an already-classified error must pass through unchanged")
	}

	// HTTP status wins next.
	if got := Classify(&StatusError{Status: 503, Message: "upstream down"}); got.Code != CodeServerError || !got.Retryable {
		t.Errorf("503: got %s retryable=%v", got.Code, got.Retryable)
	}
	if got := Classify(&StatusError{Status: 429}); got.Code != CodeRateLimited {
		t.Errorf("429: got %s", got.Code)
	}
	if got := Classify(&StatusError{Status: 401}); got.Code != CodeUnauthorized || got.Retryable {
		t.Errorf("401: got %s retryable=%v", got.Code, got.Retryable)
	}
	// Classified status carries the original status code.
	if got := Classify(&StatusError{Status: 502}); got.StatusCode != 502 {
		t.Errorf("status carried: got %d, want 502", got.StatusCode)
	}

	// Message heuristics as last resort.
	if got := Classify(errors.New("dial tcp: connection refused")); got.Code != CodeNoConnection || !got.Retryable {
		t.Errorf("connection refused: got %s retryable=%v", got.Code, got.Retryable)
	}
	if got := Classify(errors.New("request timed out after 30s")); got.Code != CodeNoConnection {
		t.Errorf("timeout: got %s", got.Code)
	}
	if got := Classify(errors.New("content blocked by safety system")); got.Code != CodeContentBlocked || got.Retryable {
		t.Errorf("safety: got %s retryable=%v", got.Code, got.Retryable)
	}

	// Everything else is UNKNOWN, not retryable.
	got := Classify(errors.New("some bug"))
	if got.Code != CodeUnknown || got.Retryable || got.Kind != KindUnknown {
		t.Errorf("fallback: got %s/%s retryable=%v", got.Kind, got.Code, got.Retryable)
	}

	if Classify(nil) != nil {
		t.Error("Classify(nil) must be nil")
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("pq: connection reset")
	e := Wrap(CodeDatabaseError, cause)
	if !errors.Is(e, cause) {
		t.Error("Wrap must keep the cause reachable via errors.Is")
	}
	if e.Message != cause.Error() {
		t.Errorf("message: got %q, want cause text", e.Message)
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("context: %w", New(CodeDuplicateTransaction, "tx1 seen"))
	if !Is(err, CodeDuplicateTransaction) {
		t.Error("Is must match through wrapping")
	}
	if Is(err, CodeInvalidProduct) {
		t.Error("Is must not match a different code")
	}
	if Is(errors.New("plain"), CodeUnknown) {
		t.Error("Is must not match unclassified errors")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(New(CodeServiceUnavailable, "down")) {
		t.Error("SERVICE_UNAVAILABLE is retryable")
	}
	if Retryable(New(CodeContentBlocked, "blocked")) {
		t.Error("CONTENT_BLOCKED is never retryable")
	}
	if Retryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestWithDetailsAndOverrides(t *testing.T) {
	e := New(CodeInsufficientCredits, "balance 2 < 5").
		WithDetails(map[string]any{"required": 5, "available": 2})
	if e.Details["required"] != 5 || e.Details["available"] != 2 {
		t.Errorf("details: got %v", e.Details)
	}

	o := New(CodeUnknown, "maybe transient").WithRetryable(true)
	if !o.Retryable {
		t.Error("WithRetryable must override the default")
	}
}
