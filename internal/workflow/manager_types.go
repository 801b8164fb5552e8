package workflow

import (
	"time"

	"reelcast/internal/stage"
	"reelcast/internal/store"
)

// StageSet bundles the concrete stage handlers the manager orchestrates.
type StageSet struct {
	Narrative stage.Handler
	Synthesis stage.Handler
	Render    stage.Handler
	Metadata  stage.Handler
}

type pipelineStage struct {
	name    store.StageName
	handler stage.Handler
}

// RunSummary describes one pipeline run.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Duration       time.Duration `json:"duration"`
	Fetched        int           `json:"fetched"`
	Unique         int           `json:"unique"`
	SourceFailures int           `json:"source_failures"`
	Processed      int           `json:"processed"`
	Completed      int           `json:"completed"`
	Failed         int           `json:"failed"`
	Scheduled      int           `json:"scheduled_units"`
	Interrupted    bool          `json:"interrupted"`
	Error          string        `json:"error,omitempty"`
}
