package stage

import (
	"encoding/json"
	"fmt"

	"reelcast/internal/services"
	"reelcast/internal/store"
)

// Typed payloads stored in StageArtifact.Data by each stage.

// Narrative is the script written for an item.
type Narrative struct {
	Script string `json:"script"`
	Tone   string `json:"tone"`
	Words  int    `json:"words"`
}

// Synthesis is the audio produced from a narrative.
type Synthesis struct {
	AudioURL        string  `json:"audio_url"`
	Voice           string  `json:"voice"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Render is the finished avatar video.
type Render struct {
	JobID           string  `json:"job_id"`
	VideoURL        string  `json:"video_url"`
	ThumbnailURL    string  `json:"thumbnail_url"`
	Background      string  `json:"background"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Metadata is the publication copy shared by every platform variant.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Encode stores v as the artifact's JSON data column.
func Encode(artifact *store.StageArtifact, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", artifact.Stage, err)
	}
	artifact.Data = string(data)
	return nil
}

// Decode reads the typed payload of a predecessor artifact. A missing or
// unreadable predecessor is a validation failure.
func Decode[T any](artifact *store.StageArtifact, stage store.StageName) (T, error) {
	var out T
	if artifact == nil || artifact.Status != store.ArtifactCompleted {
		return out, services.Wrap(services.ErrValidation, string(stage), "load input", "completed predecessor artifact required", nil)
	}
	if err := artifact.DecodeData(&out); err != nil {
		return out, services.Wrap(services.ErrValidation, string(stage), "load input",
			fmt.Sprintf("decode %s artifact %d", artifact.Stage, artifact.ID), err)
	}
	return out, nil
}
