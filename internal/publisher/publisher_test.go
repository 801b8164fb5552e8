package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelcast/internal/config"
	"reelcast/internal/logging"
	"reelcast/internal/publisher"
	"reelcast/internal/services"
	"reelcast/internal/services/platform"
	"reelcast/internal/store"
)

func TestPublishSendsShapedPost(t *testing.T) {
	var (
		got    platform.Post
		gotKey string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/posts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"p-1","url":"https://yt/p-1"}`))
	}))
	defer server.Close()

	registry := publisher.NewRegistry(platform.NewClient(config.Platform{Name: "YouTube", BaseURL: server.URL}))
	pub := publisher.New(registry, logging.NewNop())
	unit := &store.ScheduledUnit{
		ID:         4,
		Platform:   "youtube",
		PayloadURL: "https://cdn/v.mp4",
		Metadata: store.UnitMetadata{
			Title:                   "Final round",
			PlatformDurationSeconds: 60,
			Aspect:                  "9:16",
			Format:                  "mp4",
		},
	}

	receipt, err := pub.Publish(context.Background(), unit)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if receipt.ExternalID != "p-1" || receipt.URL != "https://yt/p-1" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if got.VideoURL != "https://cdn/v.mp4" || got.DurationSeconds != 60 || got.Title != "Final round" {
		t.Fatalf("unexpected post %+v", got)
	}
	if gotKey == "" || gotKey != publisher.IdempotencyKey(unit) {
		t.Fatalf("Idempotency-Key = %q", gotKey)
	}
}

func TestIdempotencyKeyIsStablePerUnit(t *testing.T) {
	unit := &store.ScheduledUnit{ID: 9, Platform: "youtube", Metadata: store.UnitMetadata{ContentHash: "abc"}}
	again := &store.ScheduledUnit{ID: 9, Platform: "YouTube", Metadata: store.UnitMetadata{ContentHash: "abc", Title: "edited"}}
	requeued := &store.ScheduledUnit{ID: 10, Platform: "youtube", Metadata: store.UnitMetadata{ContentHash: "abc"}}
	otherItem := &store.ScheduledUnit{ID: 9, Platform: "youtube", Metadata: store.UnitMetadata{ContentHash: "def"}}

	key := publisher.IdempotencyKey(unit)
	if key != publisher.IdempotencyKey(again) {
		t.Fatal("same unit must keep its key")
	}
	if key == publisher.IdempotencyKey(requeued) || key == publisher.IdempotencyKey(otherItem) {
		t.Fatal("distinct units must not share a key")
	}
}

type failingPlatform struct{ err error }

func (f failingPlatform) Name() string { return "tiktok" }
func (f failingPlatform) CreatePost(context.Context, platform.Post) (platform.PostResult, error) {
	return platform.PostResult{}, f.err
}
func (f failingPlatform) ListComments(context.Context, string) ([]platform.Comment, error) {
	return nil, nil
}
func (f failingPlatform) Reply(context.Context, string, string) (string, error) { return "", nil }

func TestPublishClassifiesFailures(t *testing.T) {
	rateLimited := services.Wrap(services.ErrProviderRateLimit, "platform/tiktok", "create post", "slow down", nil)
	tests := []struct {
		name string
		pub  *publisher.Publisher
		unit *store.ScheduledUnit
	}{
		{
			name: "unknown platform",
			pub:  publisher.New(publisher.NewRegistry(), logging.NewNop()),
			unit: &store.ScheduledUnit{ID: 1, Platform: "myspace", PayloadURL: "https://cdn/v.mp4"},
		},
		{
			name: "platform error",
			pub:  publisher.New(publisher.NewRegistry(failingPlatform{err: rateLimited}), logging.NewNop()),
			unit: &store.ScheduledUnit{ID: 2, Platform: "tiktok", PayloadURL: "https://cdn/v.mp4"},
		},
		{
			name: "text-only without text",
			pub:  publisher.New(publisher.NewRegistry(failingPlatform{}), logging.NewNop()),
			unit: &store.ScheduledUnit{ID: 3, Platform: "tiktok", Metadata: store.UnitMetadata{TextOnly: true}},
		},
	}
	for _, tt := range tests {
		_, err := tt.pub.Publish(context.Background(), tt.unit)
		if !errors.Is(err, services.ErrPublishFailed) {
			t.Fatalf("%s: expected publish failure, got %v", tt.name, err)
		}
		if services.KindOf(err) != services.KindPublishFailed {
			t.Fatalf("%s: kind = %s", tt.name, services.KindOf(err))
		}
	}
}

func TestRegistryNamesAreNormalized(t *testing.T) {
	registry := publisher.NewRegistry(
		platform.NewClient(config.Platform{Name: " TikTok "}),
		platform.NewClient(config.Platform{Name: "youtube"}),
	)
	if _, ok := registry.Get("TIKTOK"); !ok {
		t.Fatal("expected case-insensitive lookup")
	}
	names := registry.Names()
	if len(names) != 2 || names[0] != "tiktok" || names[1] != "youtube" {
		t.Fatalf("unexpected names %v", names)
	}
}
