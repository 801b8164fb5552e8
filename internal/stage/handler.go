package stage

import (
	"context"
	"log/slog"

	"reelcast/internal/store"
	"reelcast/internal/style"
)

// Handler describes the contract the orchestrator needs from each stage
// transformer. Prepare validates the job without calling the provider;
// Execute performs the single external call and fills job.Output.
type Handler interface {
	Name() store.StageName
	Prepare(context.Context, *Job) error
	Execute(context.Context, *Job) error
	HealthCheck(context.Context) Health
}

// LoggerAware handlers receive the per-item stage logger before Prepare.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// Job is the envelope passed to a stage. Previous is the predecessor stage's
// completed artifact (nil for the first stage); Artifacts holds every completed
// artifact for the item so far, keyed by stage.
type Job struct {
	Item      *store.ContentItem
	Log       *store.ContentLog
	Style     style.Style
	Previous  *store.StageArtifact
	Artifacts map[store.StageName]*store.StageArtifact
	Output    *store.StageArtifact
}

// Artifact returns the completed artifact for stage, or nil.
func (j *Job) Artifact(stage store.StageName) *store.StageArtifact {
	if j == nil || j.Artifacts == nil {
		return nil
	}
	return j.Artifacts[stage]
}
