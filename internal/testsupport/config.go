package testsupport

import (
	"path/filepath"
	"testing"

	"reelcast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retries are shortened so failure paths stay fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Retry.InitialBackoffMS = 1
	cfgVal.Retry.MaxBackoffSeconds = 1
	cfgVal.RateLimits = config.RateLimits{}
	cfgVal.Providers.Avatar.PollIntervalSeconds = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithPlatforms enables the named default platforms against baseURL.
func WithPlatforms(baseURL string, names ...string) ConfigOption {
	return func(b *configBuilder) {
		enabled := make(map[string]bool, len(names))
		for _, name := range names {
			enabled[name] = true
		}
		for i := range b.cfg.Platforms {
			p := &b.cfg.Platforms[i]
			if enabled[p.Name] {
				p.Enabled = true
				p.BaseURL = baseURL
			}
		}
	}
}

// WithProviders points every generation provider at baseURL.
func WithProviders(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Providers.TextGen.BaseURL = baseURL
		b.cfg.Providers.TextGen.APIKey = "test"
		b.cfg.Providers.TTS.BaseURL = baseURL
		b.cfg.Providers.TTS.APIKey = "test"
		b.cfg.Providers.Avatar.BaseURL = baseURL
		b.cfg.Providers.Avatar.APIKey = "test"
	}
}

// WithRepliesPerHour sets the interaction reply quota.
func WithRepliesPerHour(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Interaction.RepliesPerHour = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
