package metadata_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"reelcast/internal/logging"
	"reelcast/internal/metadata"
	"reelcast/internal/services"
	"reelcast/internal/stage"
	"reelcast/internal/store"
)

type stubGenerator struct {
	reply string
	user  string
}

func (s *stubGenerator) Complete(_ context.Context, _, user string) (string, error) {
	s.user = user
	return s.reply, nil
}

func (s *stubGenerator) HealthCheck(context.Context) error { return nil }

func newJob(t *testing.T) *stage.Job {
	t.Helper()
	narrative := &store.StageArtifact{Stage: store.StageNarrative, Status: store.ArtifactCompleted}
	video := &store.StageArtifact{Stage: store.StageRender, Status: store.ArtifactCompleted}
	if err := stage.Encode(narrative, stage.Narrative{Script: "Ding finds a study-like draw."}); err != nil {
		t.Fatal(err)
	}
	if err := stage.Encode(video, stage.Render{VideoURL: "https://cdn/v.mp4", DurationSeconds: 30}); err != nil {
		t.Fatal(err)
	}
	return &stage.Job{
		Item: &store.ContentItem{
			ID:       3,
			Title:    "Ding escapes",
			Category: store.CategoryGame,
			Tags:     []string{"Endgame", "chess"},
		},
		Previous:  video,
		Artifacts: map[store.StageName]*store.StageArtifact{store.StageNarrative: narrative, store.StageRender: video},
		Output:    &store.StageArtifact{Stage: store.StageMetadata},
	}
}

func TestExecuteNormalizesModelOutput(t *testing.T) {
	tags := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		tags = append(tags, fmt.Sprintf("\"#Tag%d\"", i))
	}
	reply := "```json\n{\"title\": \"" + strings.Repeat("Long ", 40) + "\", \"description\": \"A draw.\", \"tags\": [\"#Chess\", " + strings.Join(tags, ",") + "]}\n```"
	gen := &stubGenerator{reply: reply}
	st := metadata.New(gen, logging.NewNop())
	job := newJob(t)

	if err := st.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := st.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(gen.user, "Ding finds a study-like draw.") || !strings.Contains(gen.user, "Category: Game") {
		t.Fatalf("prompt missing context: %q", gen.user)
	}
	var data stage.Metadata
	if err := job.Output.DecodeData(&data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n := len([]rune(data.Title)); n > 100 || n == 0 {
		t.Fatalf("title length %d", n)
	}
	if len(data.Tags) != 15 {
		t.Fatalf("tags = %d, want 15", len(data.Tags))
	}
	if data.Tags[0] != "chess" {
		t.Fatalf("tags not normalized: %v", data.Tags)
	}
}

func TestExecuteRejectsUnreadableResponse(t *testing.T) {
	st := metadata.New(&stubGenerator{reply: "I cannot help with that."}, logging.NewNop())
	err := st.Execute(context.Background(), newJob(t))
	if !errors.Is(err, services.ErrProviderMalformed) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestPrepareRequiresRender(t *testing.T) {
	st := metadata.New(&stubGenerator{}, logging.NewNop())
	job := newJob(t)
	job.Previous = nil
	if err := st.Prepare(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
