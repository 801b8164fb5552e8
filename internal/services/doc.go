// Package services defines shared utilities consumed by the pipeline stages,
// the fetcher, the scheduler, and the external provider clients.
//
// Key responsibilities:
//   - Context helpers that stamp content item IDs, stage names, platforms, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper. Every failure carries one
//     of the pipeline error kinds (source-unreachable, provider-auth,
//     provider-rate-limit, ...) so callers can pick a retry policy and persist
//     a postmortem-friendly classification.
//   - HTTP response classification for provider and platform clients.
//   - The shared exponential backoff policy and per-API client-side rate limiters.
package services
