// Package scheduler turns finished renders into platform-targeted scheduled
// units and dispatches them when their slot arrives.
//
// Slots are fixed daily UTC times from [scheduler].slots. Each slot holds one
// artifact; the fan-out for that artifact (one unit per enabled platform)
// shares the slot. When a slot is taken the search moves to the next one,
// spilling into later days up to max_days_ahead, and never overwrites an
// existing unit.
//
// The dispatch loop publishes due units exactly once. A failed publish marks
// the unit failed and stays failed; Requeue creates a fresh unit for an
// operator-driven second attempt.
package scheduler
