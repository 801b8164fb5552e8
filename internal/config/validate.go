package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	sourceKinds = map[string]struct{}{"rss": {}, "html": {}, "json": {}, "article": {}}
	categories  = map[string]struct{}{
		"tournament": {}, "game": {}, "analysis": {}, "news": {}, "educational": {},
	}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validatePlatforms(); err != nil {
		return err
	}
	if err := c.validateInteraction(); err != nil {
		return err
	}
	if err := c.validateStyles(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateSources() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name must be set", i)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("sources[%d].name %q is duplicated", i, src.Name)
		}
		seen[src.Name] = struct{}{}
		if _, ok := sourceKinds[src.Kind]; !ok {
			return fmt.Errorf("sources[%d].kind %q must be one of rss, html, json, article", i, src.Kind)
		}
		if !strings.HasPrefix(src.URL, "http://") && !strings.HasPrefix(src.URL, "https://") {
			return fmt.Errorf("sources[%d].url must be an http(s) URL", i)
		}
		if src.TrustWeight < 0 || src.TrustWeight > 1 {
			return fmt.Errorf("sources[%d].trust_weight must be between 0 and 1", i)
		}
		if src.Category != "" {
			if _, ok := categories[src.Category]; !ok {
				return fmt.Errorf("sources[%d].category %q is not a known category", i, src.Category)
			}
		}
		if (src.Kind == "html" || src.Kind == "article") && strings.TrimSpace(src.Selectors.Item) == "" {
			return fmt.Errorf("sources[%d].selectors.item must be set for %s sources", i, src.Kind)
		}
		if src.Kind == "json" && strings.TrimSpace(src.Fields.Title) == "" {
			return fmt.Errorf("sources[%d].fields.title must be set for json sources", i)
		}
		if src.Limit < 0 {
			return fmt.Errorf("sources[%d].limit must be >= 0", i)
		}
	}
	return nil
}

func (c *Config) validateScoring() error {
	if c.Scoring.MinScore < 0 || c.Scoring.MinScore > 100 {
		return errors.New("scoring.min_score must be between 0 and 100")
	}
	if c.Scoring.NearDuplicateThreshold < 0 || c.Scoring.NearDuplicateThreshold > 1 {
		return errors.New("scoring.near_duplicate_threshold must be between 0 and 1")
	}
	if c.Scoring.KeywordBonus < 0 || c.Scoring.MaxKeywordBonus < 0 {
		return errors.New("scoring keyword bonuses must be >= 0")
	}
	for name, weight := range c.Scoring.CategoryWeights {
		if _, ok := categories[name]; !ok {
			return fmt.Errorf("scoring.category_weights has unknown category %q", name)
		}
		if weight < 0 {
			return fmt.Errorf("scoring.category_weights.%s must be >= 0", name)
		}
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"pipeline.interval_minutes":              c.Pipeline.IntervalMinutes,
		"pipeline.max_items_per_run":             c.Pipeline.MaxItemsPerRun,
		"pipeline.stage_timeout":                 c.Pipeline.StageTimeout,
		"pipeline.fetch_timeout":                 c.Pipeline.FetchTimeout,
		"pipeline.max_script_chars":              c.Pipeline.MaxScriptChars,
		"pipeline.max_audio_seconds":             c.Pipeline.MaxAudioSeconds,
		"retry.max_attempts":                     c.Retry.MaxAttempts,
		"retry.initial_backoff_ms":               c.Retry.InitialBackoffMS,
		"retry.max_backoff_seconds":              c.Retry.MaxBackoffSeconds,
		"notifications.request_timeout":          c.Notifications.RequestTimeout,
		"providers.textgen.timeout_seconds":      c.Providers.TextGen.TimeoutSeconds,
		"providers.tts.timeout_seconds":          c.Providers.TTS.TimeoutSeconds,
		"providers.avatar.timeout_seconds":       c.Providers.Avatar.TimeoutSeconds,
		"providers.avatar.poll_interval_seconds": c.Providers.Avatar.PollIntervalSeconds,
		"providers.avatar.job_timeout_seconds":   c.Providers.Avatar.JobTimeoutSeconds,
		"providers.avatar.max_duration_seconds":  c.Providers.Avatar.MaxDurationSeconds,
	}); err != nil {
		return err
	}
	if c.Pipeline.MinScriptChars < 0 || c.Pipeline.MinScriptChars >= c.Pipeline.MaxScriptChars {
		return errors.New("pipeline.min_script_chars must be >= 0 and below pipeline.max_script_chars")
	}
	limits := map[string]int{
		"rate_limits.sources_per_minute":  c.RateLimits.SourcesPerMinute,
		"rate_limits.textgen_per_minute":  c.RateLimits.TextGenPerMinute,
		"rate_limits.tts_per_minute":      c.RateLimits.TTSPerMinute,
		"rate_limits.avatar_per_minute":   c.RateLimits.AvatarPerMinute,
		"rate_limits.platform_per_minute": c.RateLimits.PlatformPerMinute,
	}
	for name, value := range limits {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0 (0 disables the limiter)", name)
		}
	}
	return nil
}

func (c *Config) validateScheduler() error {
	seen := make(map[string]struct{}, len(c.Scheduler.Slots))
	for _, slot := range c.Scheduler.Slots {
		if _, _, err := ParseSlot(slot); err != nil {
			return fmt.Errorf("scheduler.slots: %w", err)
		}
		if _, dup := seen[slot]; dup {
			return fmt.Errorf("scheduler.slots: %q is duplicated", slot)
		}
		seen[slot] = struct{}{}
	}
	return ensurePositiveMap(map[string]int{
		"scheduler.slots_ahead":    c.Scheduler.SlotsAhead,
		"scheduler.tick_seconds":   c.Scheduler.TickSeconds,
		"scheduler.max_days_ahead": c.Scheduler.MaxDaysAhead,
	})
}

func (c *Config) validatePlatforms() error {
	seen := make(map[string]struct{}, len(c.Platforms))
	for i, p := range c.Platforms {
		if p.Name == "" {
			return fmt.Errorf("platforms[%d].name must be set", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("platforms[%d].name %q is duplicated", i, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.TextOnly {
			if p.MaxTextChars <= 0 {
				return fmt.Errorf("platforms.%s.max_text_chars must be positive for text-only platforms", p.Name)
			}
		} else {
			if p.MinDurationSeconds <= 0 {
				return fmt.Errorf("platforms.%s.min_duration_seconds must be positive", p.Name)
			}
			if p.MaxDurationSeconds < p.MinDurationSeconds {
				return fmt.Errorf("platforms.%s.max_duration_seconds must be >= min_duration_seconds", p.Name)
			}
		}
		if p.Enabled && p.BaseURL == "" {
			return fmt.Errorf("platforms.%s.base_url must be set when the platform is enabled", p.Name)
		}
	}
	return nil
}

func (c *Config) validateInteraction() error {
	if c.Interaction.RepliesPerHour < 0 {
		return errors.New("interaction.replies_per_hour must be >= 0")
	}
	if c.Interaction.PollIntervalSeconds <= 0 {
		return errors.New("interaction.poll_interval_seconds must be positive")
	}
	if c.Interaction.LookbackHours <= 0 {
		return errors.New("interaction.lookback_hours must be positive")
	}
	for name := range c.Interaction.Templates {
		switch name {
		case "positive", "question", "thoughtful":
		default:
			return fmt.Errorf("interaction.templates.%s: replies are only sent for positive, question, and thoughtful comments", name)
		}
	}
	return nil
}

func (c *Config) validateStyles() error {
	for i, s := range c.Styles {
		if _, ok := categories[s.Category]; !ok {
			return fmt.Errorf("styles[%d].category %q is not a known category", i, s.Category)
		}
		if s.Tone == "" || s.Voice == "" {
			return fmt.Errorf("styles.%s must set tone and voice", s.Category)
		}
	}
	return nil
}

// ParseSlot parses an "HH:MM" UTC slot.
func ParseSlot(value string) (int, int, error) {
	hourText, minuteText, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, 0, fmt.Errorf("slot %q must use HH:MM", value)
	}
	hour, err := strconv.Atoi(hourText)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("slot %q has an invalid hour", value)
	}
	minute, err := strconv.Atoi(minuteText)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("slot %q has an invalid minute", value)
	}
	return hour, minute, nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
