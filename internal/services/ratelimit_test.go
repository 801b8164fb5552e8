package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelcast/internal/config"
	"reelcast/internal/services"
)

func TestLimitersBlockAfterBurst(t *testing.T) {
	limiters := services.NewLimiters(config.RateLimits{TTSPerMinute: 1})
	var waited []string
	limiters.OnWait(func(api string) { waited = append(waited, api) })

	if err := limiters.Wait(context.Background(), services.APITTS); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := limiters.Wait(ctx, services.APITTS)
	if err == nil {
		t.Fatal("expected second call to exceed the per-minute budget")
	}
	if services.KindOf(err) != services.KindProviderRateLimit || !services.Retryable(err) {
		t.Fatalf("kind = %s, want rate limit: %v", services.KindOf(err), err)
	}
	if len(waited) != 1 || waited[0] != services.APITTS {
		t.Fatalf("expected wait callback for tts, got %v", waited)
	}
}

func TestLimitersDisabledAndPerPlatform(t *testing.T) {
	limiters := services.NewLimiters(config.RateLimits{PlatformPerMinute: 1})
	for i := 0; i < 5; i++ {
		if err := limiters.Wait(context.Background(), services.APITextGen); err != nil {
			t.Fatalf("disabled limiter should never block: %v", err)
		}
	}

	if err := limiters.Wait(context.Background(), services.PlatformAPI("youtube")); err != nil {
		t.Fatalf("youtube first call: %v", err)
	}
	if err := limiters.Wait(context.Background(), services.PlatformAPI("tiktok")); err != nil {
		t.Fatalf("platforms should have independent buckets: %v", err)
	}
}

func TestNilLimitersAreNoop(t *testing.T) {
	var limiters *services.Limiters
	if err := limiters.Wait(context.Background(), services.APIAvatar); err != nil {
		t.Fatalf("nil limiters should not block: %v", err)
	}
}

func TestLimitersReturnCancellationUnwrapped(t *testing.T) {
	limiters := services.NewLimiters(config.RateLimits{AvatarPerMinute: 1})
	if err := limiters.Wait(context.Background(), services.APIAvatar); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := limiters.Wait(ctx, services.APIAvatar)
	if !errors.Is(err, context.Canceled) || services.KindOf(err) != services.KindCanceled {
		t.Fatalf("expected plain cancellation, got %v (%s)", err, services.KindOf(err))
	}
}
