package synthesis_test

import (
	"context"
	"errors"
	"testing"

	"reelcast/internal/config"
	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/services/tts"
	"reelcast/internal/stage"
	"reelcast/internal/store"
	"reelcast/internal/style"
	"reelcast/internal/synthesis"
)

type stubTTS struct {
	audio tts.Audio
	err   error
	req   tts.Request
}

func (s *stubTTS) Synthesize(_ context.Context, req tts.Request) (tts.Audio, error) {
	s.req = req
	return s.audio, s.err
}

func (s *stubTTS) HealthCheck(context.Context) error { return nil }

func newJob(t *testing.T, script string) *stage.Job {
	t.Helper()
	prev := &store.StageArtifact{ID: 7, Stage: store.StageNarrative, Status: store.ArtifactCompleted}
	if err := stage.Encode(prev, stage.Narrative{Script: script}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return &stage.Job{
		Item:     &store.ContentItem{ID: 1},
		Style:    style.Style{Tone: "calm", Voice: "teacher"},
		Previous: prev,
		Output:   &store.StageArtifact{Stage: store.StageSynthesis},
	}
}

func TestExecuteStoresAudio(t *testing.T) {
	synth := &stubTTS{audio: tts.Audio{URL: "https://cdn/a.mp3", DurationSeconds: 42, SizeBytes: 900}}
	st := synthesis.New(synth, config.Pipeline{MaxAudioSeconds: 180}, logging.NewNop())
	job := newJob(t, "The Najdorf remains the sharpest reply to 1.e4.")

	if err := st.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := st.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if synth.req.Voice != "teacher" || synth.req.Tone != "calm" {
		t.Fatalf("style not applied: %+v", synth.req)
	}
	if job.Output.PayloadRef != "https://cdn/a.mp3" || job.Output.DurationSeconds != 42 {
		t.Fatalf("unexpected output %+v", job.Output)
	}
}

func TestExecuteRejectsLongAudio(t *testing.T) {
	synth := &stubTTS{audio: tts.Audio{URL: "https://cdn/a.mp3", DurationSeconds: 200}}
	st := synthesis.New(synth, config.Pipeline{MaxAudioSeconds: 180}, logging.NewNop())
	err := st.Execute(context.Background(), newJob(t, "script"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.Details(err).Hint == "" {
		t.Fatal("expected a hint on the duration failure")
	}
}

func TestPrepareRequiresCompletedNarrative(t *testing.T) {
	st := synthesis.New(&stubTTS{}, config.Pipeline{}, logging.NewNop())
	tests := []struct {
		name string
		job  *stage.Job
	}{
		{"missing predecessor", &stage.Job{Output: &store.StageArtifact{}}},
		{"empty script", newJob(t, "   ")},
	}
	for _, tt := range tests {
		if err := st.Prepare(context.Background(), tt.job); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tt.name, err)
		}
	}
}
