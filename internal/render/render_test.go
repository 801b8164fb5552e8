package render_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelcast/internal/logging"
	"reelcast/internal/render"
	"reelcast/internal/services"
	"reelcast/internal/services/avatar"
	"reelcast/internal/stage"
	"reelcast/internal/store"
	"reelcast/internal/style"
)

type stubRenderer struct {
	job   avatar.Job
	err   error
	req   avatar.Request
	calls int
}

func (s *stubRenderer) Render(_ context.Context, req avatar.Request) (avatar.Job, error) {
	s.calls++
	s.req = req
	return s.job, s.err
}

func (s *stubRenderer) MaxDuration() time.Duration       { return 120 * time.Second }
func (s *stubRenderer) HealthCheck(context.Context) error { return nil }

func completed(t *testing.T, stageName store.StageName, v any) *store.StageArtifact {
	t.Helper()
	a := &store.StageArtifact{Stage: stageName, Status: store.ArtifactCompleted}
	if err := stage.Encode(a, v); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return a
}

func newJob(t *testing.T, seconds float64) *stage.Job {
	narrative := completed(t, store.StageNarrative, stage.Narrative{Script: "Rook lift decides it."})
	audio := completed(t, store.StageSynthesis, stage.Synthesis{AudioURL: "https://cdn/a.mp3", DurationSeconds: seconds})
	return &stage.Job{
		Item:      &store.ContentItem{ID: 1},
		Style:     style.Style{Background: "chessboard"},
		Previous:  audio,
		Artifacts: map[store.StageName]*store.StageArtifact{store.StageNarrative: narrative, store.StageSynthesis: audio},
		Output:    &store.StageArtifact{Stage: store.StageRender},
	}
}

func TestExecuteRendersPortraitVideo(t *testing.T) {
	r := &stubRenderer{job: avatar.Job{ID: "job-9", Status: avatar.StatusCompleted, VideoURL: "https://cdn/v.mp4", DurationSeconds: 44, SizeBytes: 2048}}
	st := render.New(r, logging.NewNop())
	job := newJob(t, 44)

	if err := st.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := st.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.req.Aspect != render.Aspect || r.req.Background != "chessboard" || r.req.Script != "Rook lift decides it." {
		t.Fatalf("unexpected request %+v", r.req)
	}
	if job.Output.PayloadRef != "https://cdn/v.mp4" || job.Output.DurationSeconds != 44 {
		t.Fatalf("unexpected output %+v", job.Output)
	}
	var data stage.Render
	if err := job.Output.DecodeData(&data); err != nil || data.JobID != "job-9" {
		t.Fatalf("unexpected render data %+v (%v)", data, err)
	}
}

func TestPrepareValidatesAudio(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
	}{
		{"zero duration", 0},
		{"over provider limit", 121},
	}
	for _, tt := range tests {
		r := &stubRenderer{}
		st := render.New(r, logging.NewNop())
		if err := st.Prepare(context.Background(), newJob(t, tt.seconds)); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tt.name, err)
		}
		if r.calls != 0 {
			t.Fatalf("%s: provider should not be called", tt.name)
		}
	}
}

func TestExecutePropagatesProviderTimeout(t *testing.T) {
	r := &stubRenderer{err: services.Wrap(services.ErrProviderTimeout, "avatar", "render", "job did not finish", nil)}
	st := render.New(r, logging.NewNop())
	err := st.Execute(context.Background(), newJob(t, 30))
	if !services.Retryable(err) {
		t.Fatalf("expected retryable timeout, got %v", err)
	}
}
