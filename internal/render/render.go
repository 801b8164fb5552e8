// Package render implements the video stage: it submits narration audio to
// the avatar provider and waits for the finished clip.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/services/avatar"
	"reelcast/internal/stage"
	"reelcast/internal/store"
)

// Aspect is the portrait framing every render uses; platforms adapt later.
const Aspect = "9:16"

// Renderer is the avatar video capability.
type Renderer interface {
	Render(ctx context.Context, req avatar.Request) (avatar.Job, error)
	MaxDuration() time.Duration
	HealthCheck(ctx context.Context) error
}

// Stage renders avatar videos.
type Stage struct {
	renderer Renderer
	logger   *slog.Logger
}

// New builds the render stage.
func New(renderer Renderer, logger *slog.Logger) *Stage {
	return &Stage{renderer: renderer, logger: logging.NewComponentLogger(logger, "render")}
}

func (s *Stage) Name() store.StageName { return store.StageRender }

func (s *Stage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Prepare checks the audio exists and fits the provider's duration limit.
func (s *Stage) Prepare(_ context.Context, job *stage.Job) error {
	_, _, err := s.inputs(job)
	return err
}

// Execute submits the render and waits for completion.
func (s *Stage) Execute(ctx context.Context, job *stage.Job) error {
	audio, script, err := s.inputs(job)
	if err != nil {
		return err
	}
	result, err := s.renderer.Render(ctx, avatar.Request{
		Script:     script,
		AudioURL:   audio.AudioURL,
		Background: job.Style.Background,
		Aspect:     Aspect,
	})
	if err != nil {
		return err
	}
	s.logger.Info("render completed",
		logging.String("job_id", result.ID),
		logging.Float64("duration_seconds", result.DurationSeconds),
	)

	job.Output.PayloadRef = result.VideoURL
	job.Output.DurationSeconds = result.DurationSeconds
	job.Output.SizeBytes = result.SizeBytes
	return stage.Encode(job.Output, stage.Render{
		JobID:           result.ID,
		VideoURL:        result.VideoURL,
		ThumbnailURL:    result.ThumbnailURL,
		Background:      job.Style.Background,
		DurationSeconds: result.DurationSeconds,
	})
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.renderer == nil {
		return stage.Unhealthy(string(store.StageRender), "avatar client not configured")
	}
	return stage.FromError(string(store.StageRender), s.renderer.HealthCheck(ctx))
}

func (s *Stage) inputs(job *stage.Job) (stage.Synthesis, string, error) {
	audio, err := stage.Decode[stage.Synthesis](job.Previous, store.StageRender)
	if err != nil {
		return audio, "", err
	}
	narrative, err := stage.Decode[stage.Narrative](job.Artifact(store.StageNarrative), store.StageRender)
	if err != nil {
		return audio, "", err
	}
	if strings.TrimSpace(audio.AudioURL) == "" {
		return audio, "", services.Wrap(services.ErrValidation, "render", "prepare", "audio url is empty", nil)
	}
	if audio.DurationSeconds <= 0 {
		return audio, "", services.Wrap(services.ErrValidation, "render", "prepare", "audio duration must be positive", nil)
	}
	if limit := s.renderer.MaxDuration(); limit > 0 && audio.DurationSeconds > limit.Seconds() {
		return audio, "", services.Wrap(services.ErrValidation, "render", "prepare",
			fmt.Sprintf("audio runs %.1fs, avatar limit is %s", audio.DurationSeconds, limit), nil)
	}
	return audio, narrative.Script, nil
}
