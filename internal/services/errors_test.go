package services_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"reelcast/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrProviderTransient, "synthesis", "synthesize", "tts call failed", base)
	if !errors.Is(err, services.ErrProviderTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"synthesis", "synthesize", "tts call failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
	details := services.Details(err)
	if details.Kind != services.KindProviderTransient || details.Operation != "synthesize" {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestKindOfUsesOutermostMarker(t *testing.T) {
	inner := services.Wrap(services.ErrProviderAuth, "tts", "synthesize", "denied", nil)
	outer := services.Wrap(services.ErrStoreWrite, "store", "update log", "write failed", inner)
	if kind := services.KindOf(outer); kind != services.KindStoreWrite {
		t.Fatalf("expected outer classification, got %s", kind)
	}
	if kind := services.KindOf(fmt.Errorf("context: %w", inner)); kind != services.KindProviderAuth {
		t.Fatalf("expected classification through fmt wrapping, got %s", kind)
	}
	if kind := services.KindOf(errors.New("plain")); kind != services.KindUnknown {
		t.Fatalf("expected unknown, got %s", kind)
	}
	if kind := services.KindOf(context.Canceled); kind != services.KindCanceled {
		t.Fatalf("expected canceled, got %s", kind)
	}
}

func TestClassifyHTTP(t *testing.T) {
	tests := []struct {
		status    int
		want      services.Kind
		retryable bool
	}{
		{http.StatusUnauthorized, services.KindProviderAuth, false},
		{http.StatusForbidden, services.KindProviderAuth, false},
		{http.StatusTooManyRequests, services.KindProviderRateLimit, true},
		{http.StatusBadRequest, services.KindProviderMalformed, false},
		{http.StatusUnprocessableEntity, services.KindProviderMalformed, false},
		{http.StatusGatewayTimeout, services.KindProviderTimeout, true},
		{http.StatusBadGateway, services.KindProviderTransient, true},
	}
	for _, tt := range tests {
		err := services.ClassifyHTTP("avatar", "submit job", tt.status, "", []byte("nope"))
		if got := services.KindOf(err); got != tt.want {
			t.Errorf("status %d: got %s want %s", tt.status, got, tt.want)
		}
		if got := services.Retryable(err); got != tt.retryable {
			t.Errorf("status %d: retryable=%v want %v", tt.status, got, tt.retryable)
		}
	}
}

func TestClassifyHTTPCarriesRetryAfter(t *testing.T) {
	err := services.ClassifyHTTP("textgen", "generate", http.StatusTooManyRequests, "7", nil)
	if got := services.Details(err).RetryAfter; got != 7*time.Second {
		t.Fatalf("expected 7s retry-after, got %s", got)
	}
	if services.Details(err).Hint == "" {
		t.Fatal("expected rate-limit hint")
	}
}

func TestClassifyTransport(t *testing.T) {
	if err := services.ClassifyTransport("tts", "synthesize", context.Canceled); !errors.Is(err, context.Canceled) || services.KindOf(err) != services.KindCanceled {
		t.Fatalf("expected cancellation to pass through, got %v", err)
	}
	if err := services.ClassifyTransport("tts", "synthesize", context.DeadlineExceeded); services.KindOf(err) != services.KindProviderTimeout {
		t.Fatalf("expected timeout classification, got %v", err)
	}
	if err := services.ClassifyTransport("tts", "synthesize", errors.New("connection reset")); services.KindOf(err) != services.KindProviderTransient {
		t.Fatalf("expected transient classification, got %v", err)
	}
}
