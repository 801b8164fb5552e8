package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelcast/internal/services"
)

var fastPolicy = services.RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond, Max: 5 * time.Millisecond}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	err := services.Retry(context.Background(), fastPolicy, func(context.Context) error {
		calls++
		if calls < 3 {
			return services.Wrap(services.ErrProviderRateLimit, "tts", "synthesize", "slow down", nil)
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsAtAttemptCap(t *testing.T) {
	calls := 0
	var notified []int
	err := services.Retry(context.Background(), fastPolicy, func(context.Context) error {
		calls++
		return services.Wrap(services.ErrProviderTimeout, "avatar", "poll", "timed out", nil)
	}, func(_ error, attempt int, _ time.Duration) {
		notified = append(notified, attempt)
	})
	if !errors.Is(err, services.ErrProviderTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(notified) != 2 {
		t.Fatalf("expected 2 retry notifications, got %v", notified)
	}
}

func TestRetryDoesNotRetryFatalKinds(t *testing.T) {
	for _, marker := range []error{services.ErrProviderAuth, services.ErrProviderMalformed, services.ErrValidation} {
		calls := 0
		err := services.Retry(context.Background(), fastPolicy, func(context.Context) error {
			calls++
			return services.Wrap(marker, "narrative", "generate", "rejected", nil)
		}, nil)
		if !errors.Is(err, marker) {
			t.Fatalf("expected %v, got %v", marker, err)
		}
		if calls != 1 {
			t.Fatalf("%v: expected a single attempt, got %d", marker, calls)
		}
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := services.Retry(ctx, services.RetryPolicy{MaxAttempts: 10, Initial: time.Hour, Max: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return services.Wrap(services.ErrProviderTransient, "tts", "synthesize", "flaky", nil)
	}, nil)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected one attempt, got %d", calls)
	}
}
