// Package narrative implements the first pipeline stage: it turns a content
// item into a narration script through the text generation provider.
package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"reelcast/internal/config"
	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/stage"
	"reelcast/internal/store"
)

const maxSourceChars = 4000

// Generator is the text generation capability.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Stage writes scripts.
type Stage struct {
	gen      Generator
	maxChars int
	minChars int
	logger   *slog.Logger
}

// New builds the narrative stage.
func New(gen Generator, cfg config.Pipeline, logger *slog.Logger) *Stage {
	return &Stage{
		gen:      gen,
		maxChars: cfg.MaxScriptChars,
		minChars: cfg.MinScriptChars,
		logger:   logging.NewComponentLogger(logger, "narrative"),
	}
}

func (s *Stage) Name() store.StageName { return store.StageNarrative }

func (s *Stage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Prepare checks the item carries text to narrate.
func (s *Stage) Prepare(_ context.Context, job *stage.Job) error {
	if job == nil || job.Item == nil {
		return services.Wrap(services.ErrValidation, "narrative", "prepare", "content item required", nil)
	}
	if strings.TrimSpace(job.Item.Title) == "" || strings.TrimSpace(job.Item.Body) == "" {
		return services.Wrap(services.ErrValidation, "narrative", "prepare", "item title and body required", nil)
	}
	return nil
}

// Execute generates the script and bounds it to the configured length.
func (s *Stage) Execute(ctx context.Context, job *stage.Job) error {
	raw, err := s.gen.Complete(ctx, s.systemPrompt(job), userPrompt(job.Item))
	if err != nil {
		return err
	}
	script := cleanScript(raw)
	if s.maxChars > 0 && utf8.RuneCountInString(script) > s.maxChars {
		script = truncateAtSentence(script, s.maxChars)
		s.logger.Debug("script truncated", logging.Int("max_chars", s.maxChars))
	}
	if length := utf8.RuneCountInString(script); length < s.minChars {
		return services.Wrap(services.ErrProviderMalformed, "narrative", "generate",
			fmt.Sprintf("script has %d characters, need at least %d", length, s.minChars), nil)
	}

	job.Output.SizeBytes = int64(len(script))
	return stage.Encode(job.Output, stage.Narrative{
		Script: script,
		Tone:   job.Style.Tone,
		Words:  len(strings.Fields(script)),
	})
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.gen == nil {
		return stage.Unhealthy(string(store.StageNarrative), "text generation client not configured")
	}
	return stage.FromError(string(store.StageNarrative), s.gen.HealthCheck(ctx))
}

func (s *Stage) systemPrompt(job *stage.Job) string {
	var b strings.Builder
	b.WriteString("You write narration scripts for short chess videos read aloud by an avatar presenter. ")
	b.WriteString(job.Style.Instructions())
	if s.maxChars > 0 {
		fmt.Fprintf(&b, " Keep the script under %d characters.", s.maxChars)
	}
	b.WriteString(" Return only the spoken script with no headings, stage directions or markdown.")
	return b.String()
}

func userPrompt(item *store.ContentItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", item.Title)
	if item.Event != "" {
		fmt.Fprintf(&b, "Event: %s\n", item.Event)
	}
	if len(item.Entities) > 0 {
		fmt.Fprintf(&b, "Players: %s\n", strings.Join(item.Entities, ", "))
	}
	if item.Payload != nil {
		if item.Payload.Moves != "" {
			fmt.Fprintf(&b, "Moves: %s\n", item.Payload.Moves)
		}
		if item.Payload.Result != "" {
			fmt.Fprintf(&b, "Result: %s\n", item.Payload.Result)
		}
	}
	body := item.Body
	if utf8.RuneCountInString(body) > maxSourceChars {
		body = string([]rune(body)[:maxSourceChars])
	}
	fmt.Fprintf(&b, "\n%s", body)
	return b.String()
}

func cleanScript(raw string) string {
	script := strings.TrimSpace(raw)
	script = strings.TrimPrefix(script, "```")
	script = strings.TrimSuffix(script, "```")
	script = strings.Trim(script, "\"' \n")
	return strings.Join(strings.Fields(script), " ")
}

// truncateAtSentence cuts script to at most limit runes, preferring the last
// sentence end inside the limit.
func truncateAtSentence(script string, limit int) string {
	runes := []rune(script)
	if len(runes) <= limit {
		return script
	}
	cut := string(runes[:limit])
	if idx := strings.LastIndexAny(cut, ".!?"); idx > len(cut)/2 {
		return strings.TrimSpace(cut[:idx+1])
	}
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		return strings.TrimSpace(cut[:idx])
	}
	return cut
}
