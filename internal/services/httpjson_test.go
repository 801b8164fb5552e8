package services_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelcast/internal/services"
)

func TestDoJSONClassifiesResponses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind services.Kind
	}{
		{"success", http.StatusOK, `{"id":"x"}`, ""},
		{"auth", http.StatusUnauthorized, `{"error":"bad key"}`, services.KindProviderAuth},
		{"rate limit", http.StatusTooManyRequests, `slow down`, services.KindProviderRateLimit},
		{"bad request", http.StatusBadRequest, `{"error":"missing text"}`, services.KindProviderMalformed},
		{"server error", http.StatusBadGateway, ``, services.KindProviderTransient},
		{"gateway timeout", http.StatusGatewayTimeout, ``, services.KindProviderTimeout},
		{"garbage body", http.StatusOK, `not json`, services.KindProviderMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer secret" {
					t.Errorf("Authorization = %q", got)
				}
				if tt.status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", "3")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var out struct {
				ID string `json:"id"`
			}
			err := services.DoJSON(context.Background(), server.Client(), services.JSONCall{
				Component: "test", Operation: "call", Method: http.MethodPost, URL: server.URL,
				Token: "secret", Body: map[string]string{"k": "v"},
			}, &out)
			if tt.wantKind == "" {
				if err != nil || out.ID != "x" {
					t.Fatalf("expected success, got %v (%+v)", err, out)
				}
				return
			}
			if got := services.KindOf(err); got != tt.wantKind {
				t.Fatalf("kind = %s, want %s (err=%v)", got, tt.wantKind, err)
			}
			if tt.wantKind == services.KindProviderRateLimit {
				if delay := services.Details(err).RetryAfter; delay != 3*time.Second {
					t.Fatalf("RetryAfter = %v, want 3s", delay)
				}
			}
		})
	}
}

func TestDoJSONTransportTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := &http.Client{Timeout: 20 * time.Millisecond}
	err := services.DoJSON(context.Background(), client, services.JSONCall{
		Component: "test", Operation: "slow", Method: http.MethodGet, URL: server.URL,
	}, nil)
	if !errors.Is(err, services.ErrProviderTimeout) {
		t.Fatalf("expected provider timeout, got %v", err)
	}
}
