package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelcast/internal/services"
	"reelcast/internal/store"
	"reelcast/internal/testsupport"
)

func TestInsertItemRejectsDuplicateHash(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewItem(t, st, "Carlsen wins", 80)
	if first.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}

	dup := &store.ContentItem{
		Title:       "Carlsen wins (mirror)",
		Body:        "other",
		Source:      store.SourceRef{Name: "mirror", Kind: "html", TrustWeight: 0.9},
		ContentHash: first.ContentHash,
		Category:    store.CategoryNews,
	}
	err := st.InsertItem(ctx, dup)
	if !errors.Is(err, services.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	stored, err := st.GetItem(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if stored.Source.Name != "test" || stored.Title != "Carlsen wins" {
		t.Fatalf("duplicate insert must not modify stored item, got %+v", stored)
	}

	found, err := st.ExistingHashes(ctx, []string{first.ContentHash, "missing"})
	if err != nil {
		t.Fatalf("ExistingHashes: %v", err)
	}
	if !found[first.ContentHash] || found["missing"] {
		t.Fatalf("unexpected hash lookup: %v", found)
	}
}

func TestItemRoundTripsPayloadAndLists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := &store.ContentItem{
		Title:       "Round 5",
		Body:        "1. e4 e5 2. Nf3 Nc6 1-0",
		Source:      store.SourceRef{Name: "games", Kind: "json", TrustWeight: 0.9},
		Payload:     &store.Payload{Kind: "pgn", Moves: "1. e4 e5 2. Nf3 Nc6", Result: "1-0"},
		PublishDate: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ContentHash: "hash-round5",
		Category:    store.CategoryGame,
		Tags:        []string{"candidates"},
		Event:       "Candidates",
		Entities:    []string{"Nakamura", "Caruana"},
	}
	if err := st.InsertItem(ctx, item); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	got, err := st.GetItem(ctx, item.ID)
	if err != nil || got == nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Payload == nil || got.Payload.Result != "1-0" {
		t.Fatalf("expected payload round trip, got %+v", got.Payload)
	}
	if len(got.Entities) != 2 || got.Event != "Candidates" || !got.PublishDate.Equal(item.PublishDate) {
		t.Fatalf("unexpected item: %+v", got)
	}
	missing, err := st.GetItem(ctx, 9999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing item, got %v, %v", missing, err)
	}
}

func TestEligibleItemsOrderAndExclusion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	low := testsupport.NewItem(t, st, "low", 20)
	mid := testsupport.NewItem(t, st, "mid", 60)
	high := testsupport.NewItem(t, st, "high", 90)
	processed := testsupport.NewItem(t, st, "processed", 95)
	if _, err := st.CreateLog(ctx, processed.ID, "run"); err != nil {
		t.Fatalf("CreateLog: %v", err)
	}

	items, err := st.EligibleItems(ctx, 40, 10)
	if err != nil {
		t.Fatalf("EligibleItems: %v", err)
	}
	if len(items) != 2 || items[0].ID != high.ID || items[1].ID != mid.ID {
		t.Fatalf("expected [high, mid], got %d items", len(items))
	}
	for _, item := range items {
		if item.ID == low.ID {
			t.Fatal("item below min score must not be eligible")
		}
	}

	limited, err := st.EligibleItems(ctx, 0, 1)
	if err != nil {
		t.Fatalf("EligibleItems: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != high.ID {
		t.Fatalf("expected limit to keep highest score, got %+v", limited)
	}
}

func TestContentLogNeverLeavesTerminalState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewItem(t, st, "state machine", 70)
	log, err := st.CreateLog(ctx, item.ID, "run-1")
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}
	artifact := testsupport.CompletedArtifact(t, st, item.ID, store.StageNarrative, 0, nil)
	if err := st.RecordStage(ctx, log, store.StageNarrative, artifact.ID, 2*time.Second); err != nil {
		t.Fatalf("RecordStage: %v", err)
	}
	if err := st.CompleteLog(ctx, log); err != nil {
		t.Fatalf("CompleteLog: %v", err)
	}

	if err := st.FailLog(ctx, log, "provider-auth", "late failure"); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition from completed, got %v", err)
	}
	if err := st.RecordStage(ctx, log, store.StageSynthesis, artifact.ID, time.Second); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected terminal log to reject stage updates, got %v", err)
	}
	if err := st.CompleteLog(ctx, log); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected completing twice to fail, got %v", err)
	}

	stored, err := st.LogForItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("LogForItem: %v", err)
	}
	if stored.Status != store.LogCompleted || stored.ErrorKind != "" {
		t.Fatalf("expected completed log untouched, got %+v", stored)
	}
	if stored.ArtifactID(store.StageNarrative) != artifact.ID || stored.ProcessingTime != 2*time.Second {
		t.Fatalf("unexpected stored log: %+v", stored)
	}
}

func TestArtifactTerminalStatesAreImmutable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewItem(t, st, "artifact", 70)
	artifact, err := st.CreateArtifact(ctx, item.ID, store.StageSynthesis, 0)
	if err != nil {
		t.Fatalf("CreateArtifact: %v", err)
	}
	if err := st.FailArtifact(ctx, artifact, "provider-timeout", "tts timed out"); err != nil {
		t.Fatalf("FailArtifact: %v", err)
	}
	artifact.PayloadRef = "https://cdn.example.com/audio.mp3"
	if err := st.CompleteArtifact(ctx, artifact); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected failed artifact to stay failed, got %v", err)
	}
	stored, err := st.GetArtifact(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if stored.Status != store.ArtifactFailed || stored.PayloadRef != "" {
		t.Fatalf("unexpected artifact: %+v", stored)
	}
}

func TestFailInterruptedAndDeleteTerminalLog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewItem(t, st, "interrupted", 70)
	if _, err := st.CreateLog(ctx, item.ID, "run"); err != nil {
		t.Fatalf("CreateLog: %v", err)
	}
	if removed, err := st.DeleteTerminalLog(ctx, item.ID); err != nil || removed {
		t.Fatalf("processing log must not be deleted, removed=%v err=%v", removed, err)
	}
	count, err := st.FailInterrupted(ctx, "daemon restarted")
	if err != nil || count != 1 {
		t.Fatalf("FailInterrupted: count=%d err=%v", count, err)
	}
	log, _ := st.LogForItem(ctx, item.ID)
	if log.Status != store.LogFailed || log.ErrorKind != "interrupted" {
		t.Fatalf("unexpected log after interruption: %+v", log)
	}
	removed, err := st.DeleteTerminalLog(ctx, item.ID)
	if err != nil || !removed {
		t.Fatalf("expected terminal log removal, removed=%v err=%v", removed, err)
	}
	eligible, err := st.EligibleItems(ctx, 0, 0)
	if err != nil || len(eligible) != 1 {
		t.Fatalf("expected item eligible again, got %d (%v)", len(eligible), err)
	}
}

func TestScheduledUnitLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewItem(t, st, "units", 70)
	render := testsupport.CompletedArtifact(t, st, item.ID, store.StageRender, 0, nil)
	now := time.Now().UTC().Truncate(time.Second)
	past := &store.ScheduledUnit{ItemID: item.ID, RenderArtifactID: render.ID, Platform: "youtube", ScheduledTime: now.Add(-time.Minute)}
	future := &store.ScheduledUnit{ItemID: item.ID, RenderArtifactID: render.ID, Platform: "tiktok", ScheduledTime: now.Add(time.Hour),
		Metadata: store.UnitMetadata{Title: "t", PlatformDurationSeconds: 30}}
	if err := st.CreateUnits(ctx, []*store.ScheduledUnit{past, future}); err != nil {
		t.Fatalf("CreateUnits: %v", err)
	}

	clash := &store.ScheduledUnit{ItemID: item.ID, RenderArtifactID: render.ID, Platform: "tiktok", ScheduledTime: future.ScheduledTime}
	if err := st.CreateUnits(ctx, []*store.ScheduledUnit{clash}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected occupied slot rejection, got %v", err)
	}

	due, err := st.DueUnits(ctx, now, 0)
	if err != nil {
		t.Fatalf("DueUnits: %v", err)
	}
	if len(due) != 1 || due[0].ID != past.ID {
		t.Fatalf("expected only the past unit due, got %d", len(due))
	}

	occupied, err := st.OccupiedSlots(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("OccupiedSlots: %v", err)
	}
	if !occupied[future.ScheduledTime] || len(occupied) != 1 {
		t.Fatalf("unexpected occupied slots: %v", occupied)
	}

	if err := st.MarkUnitFailed(ctx, due[0], "platform-publish-failure", "500"); err != nil {
		t.Fatalf("MarkUnitFailed: %v", err)
	}
	if err := st.MarkPublished(ctx, due[0], "ext", "https://x"); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("failed unit must never revert, got %v", err)
	}

	stored, err := st.GetUnit(ctx, future.ID)
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if stored.Metadata.PlatformDurationSeconds != 30 || !stored.ScheduledTime.Equal(future.ScheduledTime) {
		t.Fatalf("unexpected stored unit: %+v", stored)
	}
	failed, err := st.ListUnits(ctx, store.UnitFilter{Statuses: []store.UnitStatus{store.UnitFailed}})
	if err != nil || len(failed) != 1 {
		t.Fatalf("expected one failed unit, got %d (%v)", len(failed), err)
	}
}

func TestRecordInteractionIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	record := &store.InteractionRecord{Platform: "youtube", ExternalPostID: "p1", ExternalCommentID: "c1", Sentiment: store.SentimentPositive}
	inserted, err := st.RecordInteraction(ctx, record)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}
	replay := &store.InteractionRecord{Platform: "youtube", ExternalPostID: "p1", ExternalCommentID: "c1", Sentiment: store.SentimentPositive}
	inserted, err = st.RecordInteraction(ctx, replay)
	if err != nil || inserted {
		t.Fatalf("replay must be ignored: inserted=%v err=%v", inserted, err)
	}
	other := &store.InteractionRecord{Platform: "tiktok", ExternalPostID: "p1", ExternalCommentID: "c1", Sentiment: store.SentimentNeutral}
	if inserted, err := st.RecordInteraction(ctx, other); err != nil || !inserted {
		t.Fatalf("same comment id on another platform is distinct: inserted=%v err=%v", inserted, err)
	}

	record.ReplyStatus = store.ReplySent
	record.GeneratedResponse = "Thanks!"
	record.ResponseExternalID = "r1"
	if err := st.UpdateReply(ctx, record); err != nil {
		t.Fatalf("UpdateReply: %v", err)
	}
	if err := st.UpdateReply(ctx, record); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected second reply update to be rejected, got %v", err)
	}
	count, err := st.CountRepliesSince(ctx, "youtube", time.Now().Add(-time.Hour))
	if err != nil || count != 1 {
		t.Fatalf("expected one reply counted, got %d (%v)", count, err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Interactions != 2 || stats.Replies != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestActivityLog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, outcome := range []string{"success", "failure"} {
		if err := st.RecordActivity(ctx, &store.Activity{Operation: "stage.narrative", Subject: "item:1", Outcome: outcome, DurationMS: 12}); err != nil {
			t.Fatalf("RecordActivity: %v", err)
		}
	}
	rows, err := st.ListActivity(ctx, store.ActivityFilter{Outcome: "failure"})
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(rows) != 1 || rows[0].Operation != "stage.narrative" || rows[0].DurationMS != 12 {
		t.Fatalf("unexpected activity rows: %+v", rows)
	}
	if health := st.CheckHealth(ctx); health.Error != "" || health.SchemaVersion != 1 || health.Integrity != "ok" {
		t.Fatalf("unexpected health: %+v", health)
	}
}
