package textgen_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelcast/internal/config"
	"reelcast/internal/services"
	"reelcast/internal/services/textgen"
)

func TestCompleteReturnsFirstChoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "writer" {
			t.Errorf("model = %v", req["model"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "  A sharp script.  "}}},
		})
	}))
	defer server.Close()

	client := textgen.NewClient(config.Provider{BaseURL: server.URL + "/v1", APIKey: "k", Model: "writer"})
	got, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "A sharp script." {
		t.Fatalf("Complete = %q", got)
	}
}

func TestCompleteEmptyChoicesIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""},"finish_reason":"length"}]}`))
	}))
	defer server.Close()

	client := textgen.NewClient(config.Provider{BaseURL: server.URL, APIKey: "k"})
	_, err := client.Complete(context.Background(), "system", "user")
	if services.KindOf(err) != services.KindProviderMalformed {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestMissingAPIKeyIsAuthFailure(t *testing.T) {
	client := textgen.NewClient(config.Provider{BaseURL: "http://127.0.0.1:1"})
	if err := client.HealthCheck(context.Background()); services.KindOf(err) != services.KindProviderAuth {
		t.Fatalf("expected provider-auth, got %v", err)
	}
}
