package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reelcast/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "reelcast")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "reelcast.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.API.Bind != "127.0.0.1:7491" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
	if len(cfg.Platforms) != 4 {
		t.Fatalf("expected default platform guideline table, got %d entries", len(cfg.Platforms))
	}
	if len(cfg.EnabledPlatforms()) != 0 {
		t.Fatal("expected platforms disabled by default")
	}
	if got := cfg.Scheduler.Slots; len(got) != 3 || got[0] != "09:00" {
		t.Fatalf("unexpected default slots: %v", got)
	}
	if cfg.Interaction.RepliesPerHour != 5 {
		t.Fatalf("unexpected reply quota: %d", cfg.Interaction.RepliesPerHour)
	}
}

func TestLoadCustomPathMergesPlatformGuidelines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reelcast.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"

[scheduler]
slots = ["18:00", "07:30"]

[[platforms]]
name = "youtube"
enabled = true
base_url = "https://publish.example.com/youtube/"

[[platforms]]
name = "mastodon"
enabled = true
text_only = true
base_url = "https://publish.example.com/mastodon"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", path, resolved, exists)
	}
	if len(cfg.Platforms) != 2 {
		t.Fatalf("expected file platforms to replace defaults, got %d", len(cfg.Platforms))
	}
	yt, ok := cfg.PlatformByName("youtube")
	if !ok {
		t.Fatal("expected youtube platform")
	}
	if yt.MinDurationSeconds != 60 || yt.MaxDurationSeconds != 90 || yt.Aspect != "9:16" {
		t.Fatalf("expected youtube guidelines filled from defaults, got %+v", yt)
	}
	if yt.BaseURL != "https://publish.example.com/youtube" {
		t.Fatalf("expected trailing slash trimmed, got %q", yt.BaseURL)
	}
	masto, _ := cfg.PlatformByName("mastodon")
	if masto.MaxTextChars != 280 {
		t.Fatalf("expected default text limit for text-only platform, got %d", masto.MaxTextChars)
	}
	if got := cfg.Scheduler.Slots; got[0] != "07:30" || got[1] != "18:00" {
		t.Fatalf("expected sorted slots, got %v", got)
	}
	if len(cfg.Styles) != 5 {
		t.Fatalf("expected default styles retained, got %d", len(cfg.Styles))
	}
}

func TestEnvVarOverridesSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reelcast.toml")
	content := `
[providers.tts]
api_key = "file-key"

[[platforms]]
name = "tiktok"
token = "file-token"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REELCAST_TTS_API_KEY", "env-key")
	t.Setenv("REELCAST_PLATFORM_TIKTOK_TOKEN", "env-token")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Providers.TTS.APIKey != "env-key" {
		t.Errorf("expected TTS key from env, got %q", cfg.Providers.TTS.APIKey)
	}
	p, _ := cfg.PlatformByName("tiktok")
	if p.Token != "env-token" {
		t.Errorf("expected platform token from env, got %q", p.Token)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[[platforms]]") {
		t.Fatalf("sample config missing platform table: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if len(cfg.Sources) != 2 || cfg.Sources[1].Fields.Payload != "pgn" {
		t.Fatalf("unexpected sample sources: %+v", cfg.Sources)
	}

	loaded, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
	if !strings.Contains(loaded.Paths.DataDir, "reelcast") {
		t.Fatalf("expected data dir to contain reelcast, got %q", loaded.Paths.DataDir)
	}
}

func TestStyleForFallsBackToNews(t *testing.T) {
	cfg := config.Default()
	style, ok := cfg.StyleFor("Game")
	if !ok || style.Tone != "dramatic" {
		t.Fatalf("unexpected game style: %+v ok=%v", style, ok)
	}
	style, ok = cfg.StyleFor("unknown")
	if !ok || style.Category != "news" {
		t.Fatalf("expected news fallback, got %+v ok=%v", style, ok)
	}
}

func TestParseSlot(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{in: "09:00", hour: 9},
		{in: "23:59", hour: 23, minute: 59},
		{in: "24:00", wantErr: true},
		{in: "9", wantErr: true},
		{in: "12:60", wantErr: true},
	}
	for _, tt := range tests {
		hour, minute, err := config.ParseSlot(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSlot(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || hour != tt.hour || minute != tt.minute {
			t.Errorf("ParseSlot(%q) = %d, %d, %v", tt.in, hour, minute, err)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"non-positive max items", func(c *config.Config) { c.Pipeline.MaxItemsPerRun = 0 }},
		{"min score out of range", func(c *config.Config) { c.Scoring.MinScore = 120 }},
		{"bad slot", func(c *config.Config) { c.Scheduler.Slots = []string{"25:00"} }},
		{"duplicate slot", func(c *config.Config) { c.Scheduler.Slots = []string{"09:00", "09:00"} }},
		{"inverted duration window", func(c *config.Config) { c.Platforms[0].MaxDurationSeconds = 10 }},
		{"enabled platform without url", func(c *config.Config) { c.Platforms[0].Enabled = true }},
		{"unknown source kind", func(c *config.Config) {
			c.Sources = []config.Source{{Name: "x", Kind: "ftp", URL: "https://example.com"}}
		}},
		{"trust weight out of range", func(c *config.Config) {
			c.Sources = []config.Source{{Name: "x", Kind: "rss", URL: "https://example.com", TrustWeight: 2}}
		}},
		{"html source without selector", func(c *config.Config) {
			c.Sources = []config.Source{{Name: "x", Kind: "html", URL: "https://example.com"}}
		}},
		{"template for suppressed sentiment", func(c *config.Config) {
			c.Interaction.Templates["negative"] = []string{"no"}
		}},
	}

	base := config.Default()
	if err := base.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
