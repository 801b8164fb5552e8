// Package config loads, normalizes, and validates reelcast configuration.
//
// Configuration lives in TOML (default ~/.config/reelcast/config.toml) and
// covers source definitions, relevance scoring, pipeline limits, provider
// endpoints, client-side rate limits, publication slots, per-platform
// guidelines, and the interaction bot. Secrets may be supplied through
// environment variables instead of the file.
//
// Add new settings to Config, give them a default in defaults.go, and teach
// normalize/validate about them so every consumer sees a ready-to-use value.
package config
