// Package synthesis implements the audio stage: it turns a narrative script
// into speech through the TTS provider.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reelcast/internal/config"
	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/services/tts"
	"reelcast/internal/stage"
	"reelcast/internal/store"
)

// Synthesizer is the speech synthesis capability.
type Synthesizer interface {
	Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error)
	HealthCheck(ctx context.Context) error
}

// Stage produces narration audio.
type Stage struct {
	tts        Synthesizer
	maxSeconds float64
	logger     *slog.Logger
}

// New builds the synthesis stage.
func New(synth Synthesizer, cfg config.Pipeline, logger *slog.Logger) *Stage {
	return &Stage{
		tts:        synth,
		maxSeconds: float64(cfg.MaxAudioSeconds),
		logger:     logging.NewComponentLogger(logger, "synthesis"),
	}
}

func (s *Stage) Name() store.StageName { return store.StageSynthesis }

func (s *Stage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Prepare requires a completed narrative with a non-empty script.
func (s *Stage) Prepare(_ context.Context, job *stage.Job) error {
	narrative, err := stage.Decode[stage.Narrative](job.Previous, store.StageSynthesis)
	if err != nil {
		return err
	}
	if strings.TrimSpace(narrative.Script) == "" {
		return services.Wrap(services.ErrValidation, "synthesis", "prepare", "narrative script is empty", nil)
	}
	return nil
}

// Execute synthesizes the script with the item's style voice.
func (s *Stage) Execute(ctx context.Context, job *stage.Job) error {
	narrative, err := stage.Decode[stage.Narrative](job.Previous, store.StageSynthesis)
	if err != nil {
		return err
	}
	audio, err := s.tts.Synthesize(ctx, tts.Request{
		Text:  narrative.Script,
		Voice: job.Style.Voice,
		Tone:  job.Style.Tone,
	})
	if err != nil {
		return err
	}
	if s.maxSeconds > 0 && audio.DurationSeconds > s.maxSeconds {
		return services.WithHint(
			services.Wrap(services.ErrValidation, "synthesis", "check duration",
				fmt.Sprintf("audio runs %.1fs, limit is %.0fs", audio.DurationSeconds, s.maxSeconds), nil),
			"lower pipeline.max_script_chars or raise pipeline.max_audio_seconds",
		)
	}
	s.logger.Debug("audio synthesized",
		logging.String("voice", job.Style.Voice),
		logging.Float64("duration_seconds", audio.DurationSeconds),
	)

	job.Output.PayloadRef = audio.URL
	job.Output.DurationSeconds = audio.DurationSeconds
	job.Output.SizeBytes = audio.SizeBytes
	return stage.Encode(job.Output, stage.Synthesis{
		AudioURL:        audio.URL,
		Voice:           job.Style.Voice,
		DurationSeconds: audio.DurationSeconds,
	})
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.tts == nil {
		return stage.Unhealthy(string(store.StageSynthesis), "tts client not configured")
	}
	return stage.FromError(string(store.StageSynthesis), s.tts.HealthCheck(ctx))
}
