package platform_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelcast/internal/config"
	"reelcast/internal/services"
	"reelcast/internal/services/platform"
)

func TestClientCapabilities(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /posts", func(w http.ResponseWriter, r *http.Request) {
		var post platform.Post
		if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
			t.Errorf("decode post: %v", err)
		}
		if post.Title != "Round 7" || post.DurationSeconds != 60 {
			t.Errorf("unexpected post %+v", post)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "unit-key" {
			t.Errorf("Idempotency-Key = %q", got)
		}
		_, _ = w.Write([]byte(`{"id":"p-1","url":"https://video.example.com/p-1"}`))
	})
	mux.HandleFunc("GET /posts/p-1/comments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"comments":[{"id":"c-1","author":"ann","text":"Great game!"}]}`))
	})
	mux.HandleFunc("POST /comments/c-1/replies", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Idempotency-Key"); got != "" {
			t.Errorf("reply should carry no Idempotency-Key, got %q", got)
		}
		_, _ = w.Write([]byte(`{"id":"r-1"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := platform.NewClient(config.Platform{Name: "YouTube", BaseURL: server.URL, Token: "t"})
	if client.Name() != "youtube" {
		t.Fatalf("Name = %q", client.Name())
	}
	ctx := context.Background()

	result, err := client.CreatePost(ctx, platform.Post{Title: "Round 7", DurationSeconds: 60, IdempotencyKey: "unit-key"})
	if err != nil || result.ExternalID != "p-1" {
		t.Fatalf("CreatePost: %+v %v", result, err)
	}
	comments, err := client.ListComments(ctx, "p-1")
	if err != nil || len(comments) != 1 || comments[0].PostID != "p-1" {
		t.Fatalf("ListComments: %+v %v", comments, err)
	}
	replyID, err := client.Reply(ctx, "c-1", "Thanks!")
	if err != nil || replyID != "r-1" {
		t.Fatalf("Reply: %q %v", replyID, err)
	}
}

func TestCreatePostClassifiesFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := platform.NewClient(config.Platform{Name: "tiktok", BaseURL: server.URL})
	_, err := client.CreatePost(context.Background(), platform.Post{Text: "hi"})
	if services.KindOf(err) != services.KindProviderAuth {
		t.Fatalf("expected provider-auth, got %v", err)
	}
}
