// Package workflow is the pipeline orchestrator.
//
// A run fetches new content, selects the highest-scoring eligible items, and
// drives each one through the configured stage handlers (narrative,
// synthesis, render, metadata) in order. Every item gets a ContentLog that is
// updated after each stage, so partial progress survives a crash; the first
// unrecoverable stage error fails the log and the run moves on to the next
// item. Retryable provider and store errors are retried with the shared
// backoff policy before a stage is declared failed.
//
// Completed items are handed to the scheduler for publication. The Manager
// also owns the interval loop used by the daemon and reports run status for
// the status API.
package workflow
