package preflight

import (
	"context"
	"fmt"
	"strings"

	"reelcast/internal/config"
)

// minFreeBytes is the free space the data directory needs for the database
// and its WAL to keep growing.
const minFreeBytes = 256 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the local checks: directories, disk space, and credentials
// for every configured provider and enabled platform.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckFreeSpace("Data directory space", cfg.Paths.DataDir, minFreeBytes),
	}
	if cfg.Paths.LogDir != "" && cfg.Paths.LogDir != cfg.Paths.DataDir {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if len(cfg.Sources) == 0 {
		results = append(results, Result{Name: "Sources", Detail: "no [[sources]] configured"})
	}

	results = append(results,
		CheckCredentials("Text generation", cfg.Providers.TextGen.BaseURL, cfg.Providers.TextGen.APIKey),
		CheckCredentials("Speech synthesis", cfg.Providers.TTS.BaseURL, cfg.Providers.TTS.APIKey),
		CheckCredentials("Avatar video", cfg.Providers.Avatar.BaseURL, cfg.Providers.Avatar.APIKey),
	)
	for _, p := range cfg.EnabledPlatforms() {
		results = append(results, CheckCredentials("Platform "+p.Name, p.BaseURL, p.Token))
	}
	return results
}

// RunConnectivity probes every configured provider and enabled platform
// endpoint over HTTP.
func RunConnectivity(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result
	for _, target := range []struct{ name, url string }{
		{"Text generation", cfg.Providers.TextGen.BaseURL},
		{"Speech synthesis", cfg.Providers.TTS.BaseURL},
		{"Avatar video", cfg.Providers.Avatar.BaseURL},
	} {
		if strings.TrimSpace(target.url) == "" {
			continue
		}
		results = append(results, CheckEndpoint(ctx, target.name, target.url))
	}
	for _, p := range cfg.EnabledPlatforms() {
		results = append(results, CheckEndpoint(ctx, "Platform "+p.Name, p.BaseURL))
	}
	return results
}

// Failures returns "name: detail" for every failed result.
func Failures(results []Result) []string {
	var failures []string
	for _, r := range results {
		if !r.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	return failures
}
