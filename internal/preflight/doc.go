// Package preflight provides readiness checks for the filesystem paths and
// external endpoints reelcast depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll before each pipeline run. If any
//     check fails, the run is skipped rather than failing every item.
//   - The daemon status API and "reelcast status --probe" report the same
//     results, the latter adding CheckEndpoint reachability probes.
//
// Provider checks are skipped for components with nothing configured.
package preflight
