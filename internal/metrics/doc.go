// Package metrics records pipeline activity for postmortems and monitoring.
//
// Every fetch, stage call, publish, poll and reply flows through a Recorder,
// which appends a row to the store's activity log and updates the Prometheus
// collectors served on /metrics. A nil *Recorder is valid and records nothing.
package metrics
