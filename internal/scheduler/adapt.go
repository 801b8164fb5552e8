package scheduler

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"reelcast/internal/config"
	"reelcast/internal/stage"
	"reelcast/internal/store"
)

// Converter is the format-conversion hook invoked for every variant. The
// transcode itself happens outside reelcast; a converter records the target
// constraints and the expected output shape on the variant.
type Converter interface {
	Plan(platform config.Platform, variant store.UnitMetadata) (store.UnitMetadata, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(config.Platform, store.UnitMetadata) (store.UnitMetadata, error)

func (f ConverterFunc) Plan(p config.Platform, v store.UnitMetadata) (store.UnitMetadata, error) {
	return f(p, v)
}

// PlanConverter describes the conversion steps a downstream transcoder must
// apply, without touching media.
type PlanConverter struct{}

func (PlanConverter) Plan(_ config.Platform, v store.UnitMetadata) (store.UnitMetadata, error) {
	if v.TextOnly {
		v.Conversion = "none"
		return v, nil
	}
	var steps []string
	switch {
	case v.PlatformDurationSeconds > v.SourceDurationSeconds:
		steps = append(steps, fmt.Sprintf("pad %.1fs->%.0fs", v.SourceDurationSeconds, v.PlatformDurationSeconds))
	case v.PlatformDurationSeconds < v.SourceDurationSeconds:
		steps = append(steps, fmt.Sprintf("trim %.1fs->%.0fs", v.SourceDurationSeconds, v.PlatformDurationSeconds))
	}
	if v.Aspect != "" && v.Aspect != sourceAspect {
		steps = append(steps, fmt.Sprintf("reframe %s->%s", sourceAspect, v.Aspect))
	}
	if v.Format != "" && v.Format != sourceFormat {
		steps = append(steps, fmt.Sprintf("remux %s->%s", sourceFormat, v.Format))
	}
	if len(steps) == 0 {
		v.Conversion = "none"
	} else {
		v.Conversion = strings.Join(steps, "; ")
	}
	return v, nil
}

const (
	sourceAspect = "9:16"
	sourceFormat = "mp4"
)

// Adapt builds the platform variant of a finished artifact.
func Adapt(p config.Platform, video stage.Render, meta stage.Metadata) store.UnitMetadata {
	variant := store.UnitMetadata{
		Title:       meta.Title,
		Description: meta.Description,
		Tags:        append([]string(nil), meta.Tags...),
		Format:      p.Format,
	}
	if p.TextOnly {
		variant.TextOnly = true
		variant.Text = composeText(meta, p.MaxTextChars)
		return variant
	}
	variant.VideoURL = video.VideoURL
	variant.ThumbnailURL = video.ThumbnailURL
	variant.SourceDurationSeconds = video.DurationSeconds
	variant.PlatformDurationSeconds = ClampDuration(video.DurationSeconds, p.MinDurationSeconds, p.MaxDurationSeconds)
	variant.Aspect = p.Aspect
	return variant
}

// ClampDuration bounds seconds to [min, max]. A zero bound is open.
func ClampDuration(seconds float64, minSeconds, maxSeconds int) float64 {
	if minSeconds > 0 && seconds < float64(minSeconds) {
		return float64(minSeconds)
	}
	if maxSeconds > 0 && seconds > float64(maxSeconds) {
		return float64(maxSeconds)
	}
	return seconds
}

func composeText(meta stage.Metadata, limit int) string {
	text := strings.TrimSpace(meta.Title)
	if desc := strings.TrimSpace(meta.Description); desc != "" {
		text += "\n\n" + desc
	}
	text = truncateText(text, limit)
	for _, tag := range meta.Tags {
		candidate := text + " #" + strings.ReplaceAll(tag, " ", "")
		if limit > 0 && utf8.RuneCountInString(candidate) > limit {
			break
		}
		text = candidate
	}
	return text
}

func truncateText(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
