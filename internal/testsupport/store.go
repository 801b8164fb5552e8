package testsupport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"reelcast/internal/config"
	"reelcast/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewItem stores a content item with the given title and score.
func NewItem(t testing.TB, st *store.Store, title string, score float64) *store.ContentItem {
	t.Helper()

	sum := sha256.Sum256([]byte(title))
	item := &store.ContentItem{
		Title:          title,
		Body:           "Body for " + title,
		Source:         store.SourceRef{Name: "test", Kind: "rss", TrustWeight: 0.5},
		CanonicalURL:   "https://example.com/" + hex.EncodeToString(sum[:4]),
		PublishDate:    time.Now().UTC().Add(-time.Hour),
		ContentHash:    hex.EncodeToString(sum[:]),
		RelevanceScore: score,
		Category:       store.CategoryGame,
	}
	if err := st.InsertItem(context.Background(), item); err != nil {
		t.Fatalf("store.InsertItem: %v", err)
	}
	return item
}

// CompletedArtifact stores a completed artifact for a stage.
func CompletedArtifact(t testing.TB, st *store.Store, itemID int64, stage store.StageName, parentID int64, mutate func(*store.StageArtifact)) *store.StageArtifact {
	t.Helper()

	ctx := context.Background()
	artifact, err := st.CreateArtifact(ctx, itemID, stage, parentID)
	if err != nil {
		t.Fatalf("store.CreateArtifact: %v", err)
	}
	if mutate != nil {
		mutate(artifact)
	}
	if err := st.CompleteArtifact(ctx, artifact); err != nil {
		t.Fatalf("store.CompleteArtifact: %v", err)
	}
	return artifact
}
