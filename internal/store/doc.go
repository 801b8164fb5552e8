// Package store persists the content pipeline in SQLite and is the single
// system of record shared by the fetcher, orchestrator, scheduler, publisher,
// and interaction monitor.
//
// Tables mirror the pipeline entities: content_items (unique content_hash),
// stage_artifacts (one row per stage attempt, terminal rows are never
// rewritten), content_logs (the per-item state machine), scheduled_units
// (one row per platform variant), interaction_records (unique per platform and
// external comment), and activity_log (postmortem trail).
//
// State transitions are enforced in SQL with status guards so a terminal row
// cannot be mutated even by concurrent writers. Schema changes bump the
// version in schema.go; operators delete the database to adopt a new schema.
package store
