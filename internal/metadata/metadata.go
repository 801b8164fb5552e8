// Package metadata implements the final stage: it writes the title,
// description and tags shared by every platform variant.
package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/services/textgen"
	"reelcast/internal/stage"
	"reelcast/internal/store"
	"reelcast/internal/style"
)

const (
	maxTitleChars       = 100
	maxDescriptionChars = 5000
	maxTags             = 15
)

const systemPrompt = `You write publication metadata for short chess videos.
Respond with a single JSON object: {"title": string, "description": string, "tags": [string]}.
The title must be under 100 characters. Use at most 15 short lowercase tags without '#'.`

// Generator is the text generation capability.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Stage writes publication metadata.
type Stage struct {
	gen    Generator
	logger *slog.Logger
}

// New builds the metadata stage.
func New(gen Generator, logger *slog.Logger) *Stage {
	return &Stage{gen: gen, logger: logging.NewComponentLogger(logger, "metadata")}
}

func (s *Stage) Name() store.StageName { return store.StageMetadata }

func (s *Stage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Prepare requires a completed render and its narrative.
func (s *Stage) Prepare(_ context.Context, job *stage.Job) error {
	if _, err := stage.Decode[stage.Render](job.Previous, store.StageMetadata); err != nil {
		return err
	}
	_, err := stage.Decode[stage.Narrative](job.Artifact(store.StageNarrative), store.StageMetadata)
	return err
}

// Execute asks the model for metadata and bounds every field.
func (s *Stage) Execute(ctx context.Context, job *stage.Job) error {
	narrative, err := stage.Decode[stage.Narrative](job.Artifact(store.StageNarrative), store.StageMetadata)
	if err != nil {
		return err
	}
	content, err := s.gen.Complete(ctx, systemPrompt, userPrompt(job, narrative.Script))
	if err != nil {
		return err
	}
	var out stage.Metadata
	if err := textgen.DecodeJSON(content, &out); err != nil {
		return services.Wrap(services.ErrProviderMalformed, "metadata", "decode", "model returned unreadable metadata", err)
	}
	out = normalize(out, job)
	if out.Title == "" {
		return services.Wrap(services.ErrProviderMalformed, "metadata", "decode", "model returned an empty title", nil)
	}
	s.logger.Debug("metadata generated", logging.String("title", out.Title), logging.Int("tags", len(out.Tags)))
	return stage.Encode(job.Output, out)
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.gen == nil {
		return stage.Unhealthy(string(store.StageMetadata), "text generation client not configured")
	}
	return stage.FromError(string(store.StageMetadata), s.gen.HealthCheck(ctx))
}

func userPrompt(job *stage.Job, script string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", style.DisplayName(job.Item.Category))
	fmt.Fprintf(&b, "Headline: %s\n", job.Item.Title)
	if job.Item.Event != "" {
		fmt.Fprintf(&b, "Event: %s\n", job.Item.Event)
	}
	if job.Item.CanonicalURL != "" {
		fmt.Fprintf(&b, "Source: %s\n", job.Item.CanonicalURL)
	}
	fmt.Fprintf(&b, "\nScript:\n%s", script)
	return b.String()
}

// normalize trims fields to platform-safe bounds and falls back to item data
// where the model left a field empty.
func normalize(m stage.Metadata, job *stage.Job) stage.Metadata {
	m.Title = truncate(strings.Join(strings.Fields(m.Title), " "), maxTitleChars)
	if m.Title == "" {
		m.Title = truncate(job.Item.Title, maxTitleChars)
	}
	m.Description = truncate(strings.TrimSpace(m.Description), maxDescriptionChars)

	seen := make(map[string]struct{}, len(m.Tags))
	tags := make([]string, 0, len(m.Tags))
	for _, tag := range append(m.Tags, job.Item.Tags...) {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}
	m.Tags = tags
	return m
}

func truncate(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return strings.TrimSpace(string([]rune(value)[:limit]))
}
