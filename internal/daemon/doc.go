// Package daemon coordinates the long-running reelcast process.
//
// It owns the single-instance flock, starts the pipeline interval loop, the
// dispatch loop, and the interaction poll loop as independent goroutines,
// serves the HTTP status API, and shuts everything down in order: loops
// first, then the API, then the lock. Logs left processing by a crash are
// failed at startup so every log ends in a terminal state.
//
// Keep orchestration logic here: pipeline steps live in their own packages
// while the daemon focuses on startup, shutdown, and high-level coordination.
package daemon
