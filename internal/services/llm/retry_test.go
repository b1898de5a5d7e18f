package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"trackmeta/internal/services"
)

func TestRetryPolicyBackoffDoublesAndCaps(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, expected := range want {
		if got := p.Backoff(i + 1); got != expected {
			t.Fatalf("attempt %d: got %s want %s", i+1, got, expected)
		}
	}
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := RetryPolicy{Attempts: 3, Sleeper: noSleep}.Do(context.Background(), func(context.Context) error {
		calls++
		return services.Wrap(services.ErrConfiguration, "", "gemini", "api key required", nil)
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRetryPolicyRetriesTransientUntilExhausted(t *testing.T) {
	calls := 0
	var delays []time.Duration
	policy := RetryPolicy{
		Attempts:  3,
		BaseDelay: time.Second,
		MaxDelay:  8 * time.Second,
		Sleeper:   noSleep,
		OnRetry:   func(_ int, d time.Duration, _ error) { delays = append(delays, d) },
	}
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return &StatusError{StatusCode: http.StatusServiceUnavailable}
	})
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Fatalf("unexpected delays %v", delays)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected wrapped status error, got %v", err)
	}
}

func TestRetryPolicyAttemptTimeoutIsRetried(t *testing.T) {
	calls := 0
	policy := RetryPolicy{Attempts: 2, AttemptTimeout: 10 * time.Millisecond, Sleeper: noSleep}
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on second attempt, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryPolicyHonoursParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryPolicy{Attempts: 5, Sleeper: noSleep}.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return services.Wrap(services.ErrTransient, "", "", "flaky", nil)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestTransientClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &StatusError{StatusCode: 429}, true},
		{"500", &StatusError{StatusCode: 500}, true},
		{"400", &StatusError{StatusCode: 400}, false},
		{"empty content", &EmptyContentError{Op: "x"}, true},
		{"timeout marker", services.Wrap(services.ErrTimeout, "", "", "", nil), true},
		{"validation", services.Wrap(services.ErrValidation, "", "", "", nil), false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Fatalf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := ParseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("unexpected delta parse: %v %v", d, ok)
	}
	if _, ok := ParseRetryAfter("-1"); ok {
		t.Fatal("negative retry-after should be rejected")
	}
	if _, ok := ParseRetryAfter("soon"); ok {
		t.Fatal("garbage retry-after should be rejected")
	}
}
