// Package notifications delivers pipeline events via ntfy.
//
// The service publishes to the topic configured in [notifications] and
// degrades to a no-op when no topic is set. Events are enumerated so the
// orchestrator, scheduler and daemon emit consistent messages without
// duplicating HTTP glue; per-event toggles in the config suppress categories
// an operator does not want on their phone.
package notifications
