package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeAPI()
	c.normalizeSources()
	c.normalizeScoring()
	c.normalizeProviders()
	c.normalizeScheduler()
	c.normalizePlatforms()
	c.normalizeInteraction()
	c.normalizeStyles()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func (c *Config) normalizeSources() {
	for i := range c.Sources {
		src := &c.Sources[i]
		src.Name = strings.TrimSpace(src.Name)
		src.Kind = strings.ToLower(strings.TrimSpace(src.Kind))
		src.URL = strings.TrimSpace(src.URL)
		src.Category = strings.ToLower(strings.TrimSpace(src.Category))
		src.Entities = trimList(src.Entities)
		if src.Kind == "" {
			src.Kind = "rss"
		}
	}
}

func (c *Config) normalizeScoring() {
	c.Scoring.Keywords = lowerList(c.Scoring.Keywords)
	if len(c.Scoring.CategoryWeights) == 0 {
		c.Scoring.CategoryWeights = Default().Scoring.CategoryWeights
	}
	weights := make(map[string]float64, len(c.Scoring.CategoryWeights))
	for k, v := range c.Scoring.CategoryWeights {
		weights[strings.ToLower(strings.TrimSpace(k))] = v
	}
	c.Scoring.CategoryWeights = weights
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if value, ok := os.LookupEnv("REELCAST_API_TOKEN"); ok {
		c.API.Token = value
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
}

func (c *Config) normalizeProviders() {
	p := &c.Providers
	p.TextGen.BaseURL = strings.TrimRight(strings.TrimSpace(p.TextGen.BaseURL), "/")
	p.TTS.BaseURL = strings.TrimRight(strings.TrimSpace(p.TTS.BaseURL), "/")
	p.Avatar.BaseURL = strings.TrimRight(strings.TrimSpace(p.Avatar.BaseURL), "/")

	if value, ok := os.LookupEnv("REELCAST_TEXTGEN_API_KEY"); ok {
		p.TextGen.APIKey = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("REELCAST_TTS_API_KEY"); ok {
		p.TTS.APIKey = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("REELCAST_AVATAR_API_KEY"); ok {
		p.Avatar.APIKey = strings.TrimSpace(value)
	}
	p.TextGen.APIKey = strings.TrimSpace(p.TextGen.APIKey)
	p.TTS.APIKey = strings.TrimSpace(p.TTS.APIKey)
	p.Avatar.APIKey = strings.TrimSpace(p.Avatar.APIKey)
}

func (c *Config) normalizeScheduler() {
	c.Scheduler.Slots = trimList(c.Scheduler.Slots)
	if len(c.Scheduler.Slots) == 0 {
		c.Scheduler.Slots = append([]string(nil), defaultSlots...)
	}
	sort.Strings(c.Scheduler.Slots)
}

func (c *Config) normalizePlatforms() {
	if len(c.Platforms) == 0 {
		c.Platforms = Default().Platforms
	}
	known := make(map[string]Platform)
	for _, p := range Default().Platforms {
		known[p.Name] = p
	}
	for i := range c.Platforms {
		p := &c.Platforms[i]
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
		p.Aspect = strings.TrimSpace(p.Aspect)
		p.Format = strings.ToLower(strings.TrimSpace(p.Format))
		if guide, ok := known[p.Name]; ok {
			if p.MinDurationSeconds == 0 && p.MaxDurationSeconds == 0 && !p.TextOnly {
				p.MinDurationSeconds = guide.MinDurationSeconds
				p.MaxDurationSeconds = guide.MaxDurationSeconds
				p.TextOnly = guide.TextOnly
			}
			if p.Aspect == "" {
				p.Aspect = guide.Aspect
			}
			if p.Format == "" {
				p.Format = guide.Format
			}
			if p.MaxTextChars == 0 {
				p.MaxTextChars = guide.MaxTextChars
			}
		}
		if p.TextOnly && p.MaxTextChars == 0 {
			p.MaxTextChars = defaultTextPlatformMaxChars
		}
		envKey := "REELCAST_PLATFORM_" + strings.ToUpper(strings.ReplaceAll(p.Name, "-", "_")) + "_TOKEN"
		if value, ok := os.LookupEnv(envKey); ok {
			p.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeInteraction() {
	defaults := Default().Interaction.Templates
	if c.Interaction.Templates == nil {
		c.Interaction.Templates = map[string][]string{}
	}
	normalized := make(map[string][]string, len(defaults))
	for k, v := range c.Interaction.Templates {
		normalized[strings.ToLower(strings.TrimSpace(k))] = trimList(v)
	}
	for k, v := range defaults {
		if len(normalized[k]) == 0 {
			normalized[k] = v
		}
	}
	c.Interaction.Templates = normalized
}

func (c *Config) normalizeStyles() {
	if len(c.Styles) == 0 {
		c.Styles = Default().Styles
	}
	for i := range c.Styles {
		s := &c.Styles[i]
		s.Category = strings.ToLower(strings.TrimSpace(s.Category))
		s.Tone = strings.TrimSpace(s.Tone)
		s.Voice = strings.TrimSpace(s.Voice)
		s.Background = strings.TrimSpace(s.Background)
	}
}

func trimList(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func lowerList(values []string) []string {
	out := trimList(values)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}
