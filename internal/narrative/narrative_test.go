package narrative_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reelcast/internal/config"
	"reelcast/internal/logging"
	"reelcast/internal/narrative"
	"reelcast/internal/services"
	"reelcast/internal/stage"
	"reelcast/internal/store"
	"reelcast/internal/style"
)

type stubGenerator struct {
	reply  string
	err    error
	system string
	user   string
}

func (s *stubGenerator) Complete(_ context.Context, system, user string) (string, error) {
	s.system, s.user = system, user
	return s.reply, s.err
}

func (s *stubGenerator) HealthCheck(context.Context) error { return nil }

func newJob() *stage.Job {
	return &stage.Job{
		Item: &store.ContentItem{
			ID:       1,
			Title:    "Carlsen wins in Wijk aan Zee",
			Body:     "A sharp Sicilian decided the final round.",
			Event:    "Tata Steel",
			Entities: []string{"Magnus Carlsen"},
			Payload:  &store.Payload{Kind: "pgn", Moves: "1. e4 c5 2. Nf3 d6", Result: "1-0"},
			Category: store.CategoryTournament,
		},
		Style:  style.Style{Category: store.CategoryTournament, Tone: "urgent", Voice: "anchor"},
		Output: &store.StageArtifact{Stage: store.StageNarrative},
	}
}

func TestExecuteWritesStyledScript(t *testing.T) {
	gen := &stubGenerator{reply: "```\"Magnus Carlsen closed out the event with a crushing win in the final round.\"```"}
	st := narrative.New(gen, config.Pipeline{MaxScriptChars: 2000, MinScriptChars: 20}, logging.NewNop())
	job := newJob()

	if err := st.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := st.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(gen.system, "urgent tone") {
		t.Fatalf("system prompt missing tone: %q", gen.system)
	}
	for _, want := range []string{"Event: Tata Steel", "Players: Magnus Carlsen", "Moves: 1. e4 c5", "Result: 1-0"} {
		if !strings.Contains(gen.user, want) {
			t.Fatalf("user prompt missing %q: %q", want, gen.user)
		}
	}
	var data stage.Narrative
	if err := job.Output.DecodeData(&data); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if strings.ContainsAny(data.Script, "`\"") {
		t.Fatalf("script not cleaned: %q", data.Script)
	}
	if data.Tone != "urgent" || data.Words == 0 {
		t.Fatalf("unexpected narrative data %+v", data)
	}
}

func TestExecuteTruncatesAtSentenceBoundary(t *testing.T) {
	reply := strings.Repeat("The knight lands on f5. ", 10)
	gen := &stubGenerator{reply: reply}
	st := narrative.New(gen, config.Pipeline{MaxScriptChars: 60, MinScriptChars: 10}, logging.NewNop())
	job := newJob()
	if err := st.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var data stage.Narrative
	_ = job.Output.DecodeData(&data)
	if len([]rune(data.Script)) > 60 {
		t.Fatalf("script too long: %d", len(data.Script))
	}
	if !strings.HasSuffix(data.Script, ".") {
		t.Fatalf("expected sentence boundary, got %q", data.Script)
	}
}

func TestExecuteFailures(t *testing.T) {
	authErr := services.Wrap(services.ErrProviderAuth, "textgen", "complete", "bad key", nil)
	tests := []struct {
		name string
		gen  *stubGenerator
		want services.Kind
	}{
		{"short script", &stubGenerator{reply: "Too short."}, services.KindProviderMalformed},
		{"provider error passes through", &stubGenerator{err: authErr}, services.KindProviderAuth},
	}
	for _, tt := range tests {
		st := narrative.New(tt.gen, config.Pipeline{MaxScriptChars: 2000, MinScriptChars: 40}, logging.NewNop())
		err := st.Execute(context.Background(), newJob())
		if got := services.KindOf(err); got != tt.want {
			t.Fatalf("%s: kind = %s, want %s (err %v)", tt.name, got, tt.want, err)
		}
	}
}

func TestPrepareRejectsEmptyItem(t *testing.T) {
	st := narrative.New(&stubGenerator{}, config.Pipeline{}, logging.NewNop())
	job := newJob()
	job.Item.Body = "  "
	if err := st.Prepare(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
