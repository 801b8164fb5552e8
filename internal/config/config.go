package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains on-disk locations used by the daemon.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// API contains the operational HTTP surface settings.
// An empty token leaves the API unauthenticated.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic       string `toml:"ntfy_topic"`
	RequestTimeout  int    `toml:"request_timeout"`
	RunSummary      bool   `toml:"run_summary"`
	PublishFailures bool   `toml:"publish_failures"`
	Errors          bool   `toml:"errors"`
}

// Selectors configures goquery extraction for html and article sources.
type Selectors struct {
	Item       string `toml:"item"`
	Title      string `toml:"title"`
	Body       string `toml:"body"`
	Link       string `toml:"link"`
	Date       string `toml:"date"`
	DateLayout string `toml:"date_layout"`
}

// Fields configures dotted field paths for json sources.
type Fields struct {
	Items    string `toml:"items"`
	Title    string `toml:"title"`
	Body     string `toml:"body"`
	URL      string `toml:"url"`
	Date     string `toml:"date"`
	Payload  string `toml:"payload"`
	Category string `toml:"category"`
	Event    string `toml:"event"`
	Entities string `toml:"entities"`
	Tags     string `toml:"tags"`
}

// Source describes one intake endpoint and how to extract items from it.
type Source struct {
	Name        string    `toml:"name"`
	Kind        string    `toml:"kind"`
	URL         string    `toml:"url"`
	TrustWeight float64   `toml:"trust_weight"`
	Category    string    `toml:"category"`
	Event       string    `toml:"event"`
	Entities    []string  `toml:"entities"`
	Limit       int       `toml:"limit"`
	Selectors   Selectors `toml:"selectors"`
	Fields      Fields    `toml:"fields"`
}

// Scoring contains relevance scoring knobs.
type Scoring struct {
	MinScore        float64            `toml:"min_score"`
	Keywords        []string           `toml:"keywords"`
	KeywordBonus    float64            `toml:"keyword_bonus"`
	MaxKeywordBonus float64            `toml:"max_keyword_bonus"`
	CategoryWeights map[string]float64 `toml:"category_weights"`

	// NearDuplicateThreshold drops items whose text is at least this
	// cosine-similar to a preferred item in the same batch. Zero disables it.
	NearDuplicateThreshold float64 `toml:"near_duplicate_threshold"`
}

// Pipeline contains orchestrator limits and timings.
type Pipeline struct {
	IntervalMinutes int `toml:"interval_minutes"`
	MaxItemsPerRun  int `toml:"max_items_per_run"`
	StageTimeout    int `toml:"stage_timeout"`
	FetchTimeout    int `toml:"fetch_timeout"`
	MaxScriptChars  int `toml:"max_script_chars"`
	MinScriptChars  int `toml:"min_script_chars"`
	MaxAudioSeconds int `toml:"max_audio_seconds"`
}

// Retry contains the backoff policy for retryable failures.
type Retry struct {
	MaxAttempts       int `toml:"max_attempts"`
	InitialBackoffMS  int `toml:"initial_backoff_ms"`
	MaxBackoffSeconds int `toml:"max_backoff_seconds"`
}

// Provider contains connection settings for a generation provider.
type Provider struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Avatar contains settings for the avatar video provider.
type Avatar struct {
	BaseURL             string `toml:"base_url"`
	APIKey              string `toml:"api_key"`
	AvatarID            string `toml:"avatar_id"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	JobTimeoutSeconds   int    `toml:"job_timeout_seconds"`
	MaxDurationSeconds  int    `toml:"max_duration_seconds"`
}

// Providers groups the external generation providers.
type Providers struct {
	TextGen Provider `toml:"textgen"`
	TTS     Provider `toml:"tts"`
	Avatar  Avatar   `toml:"avatar"`
}

// RateLimits caps outbound calls per external API (requests per minute).
type RateLimits struct {
	SourcesPerMinute  int `toml:"sources_per_minute"`
	TextGenPerMinute  int `toml:"textgen_per_minute"`
	TTSPerMinute      int `toml:"tts_per_minute"`
	AvatarPerMinute   int `toml:"avatar_per_minute"`
	PlatformPerMinute int `toml:"platform_per_minute"`
}

// Scheduler contains publication slot settings.
type Scheduler struct {
	Slots        []string `toml:"slots"`
	SlotsAhead   int      `toml:"slots_ahead"`
	TickSeconds  int      `toml:"tick_seconds"`
	MaxDaysAhead int      `toml:"max_days_ahead"`
}

// Platform describes one publication target and its guidelines.
type Platform struct {
	Name               string `toml:"name"`
	Enabled            bool   `toml:"enabled"`
	TextOnly           bool   `toml:"text_only"`
	BaseURL            string `toml:"base_url"`
	Token              string `toml:"token"`
	MinDurationSeconds int    `toml:"min_duration_seconds"`
	MaxDurationSeconds int    `toml:"max_duration_seconds"`
	Aspect             string `toml:"aspect"`
	Format             string `toml:"format"`
	MaxTextChars       int    `toml:"max_text_chars"`
}

// Interaction contains interaction-bot settings.
type Interaction struct {
	Enabled             bool                `toml:"enabled"`
	PollIntervalSeconds int                 `toml:"poll_interval_seconds"`
	RepliesPerHour      int                 `toml:"replies_per_hour"`
	LookbackHours       int                 `toml:"lookback_hours"`
	Templates           map[string][]string `toml:"templates"`
}

// Style maps a content category to deterministic narration settings.
type Style struct {
	Category   string `toml:"category"`
	Tone       string `toml:"tone"`
	Voice      string `toml:"voice"`
	Background string `toml:"background"`
}

// Config encapsulates all configuration values for reelcast.
//
// Configuration sections by subsystem:
//   - Paths, API, Logging, Notifications: daemon plumbing
//   - Sources, Scoring: intake and relevance ranking
//   - Pipeline, Retry, Providers, RateLimits, Styles: stage processing
//   - Scheduler, Platforms: publication
//   - Interaction: comment monitoring and replies
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	Sources       []Source      `toml:"sources"`
	Scoring       Scoring       `toml:"scoring"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Retry         Retry         `toml:"retry"`
	Providers     Providers     `toml:"providers"`
	RateLimits    RateLimits    `toml:"rate_limits"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Platforms     []Platform    `toml:"platforms"`
	Interaction   Interaction   `toml:"interaction"`
	Styles        []Style       `toml:"styles"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelcast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Array tables replace the defaults rather than appending to them.
		cfg.Platforms = nil
		cfg.Styles = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelcast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "reelcast.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "reelcastd.lock")
}

// EnabledPlatforms returns the platforms that receive scheduled units, in configuration order.
func (c *Config) EnabledPlatforms() []Platform {
	out := make([]Platform, 0, len(c.Platforms))
	for _, p := range c.Platforms {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// PlatformByName returns the named platform configuration.
func (c *Config) PlatformByName(name string) (Platform, bool) {
	for _, p := range c.Platforms {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Platform{}, false
}

// StyleFor returns the style row for a category, falling back to the "news" row.
func (c *Config) StyleFor(category string) (Style, bool) {
	category = strings.ToLower(strings.TrimSpace(category))
	var fallback Style
	var hasFallback bool
	for _, s := range c.Styles {
		if s.Category == category {
			return s, true
		}
		if s.Category == "news" {
			fallback, hasFallback = s, true
		}
	}
	return fallback, hasFallback
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
