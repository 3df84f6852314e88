// Package state persists the machine-readable records of a deployment.
//
// Each scenario instance directory carries three JSON records:
//   - scenario_assignments.json: the allocation that produced the instance
//   - provenance.json: batch id, creation time and file checksums
//   - run_result.json: the outcome of the last solve
//
// Batch records summarizing a whole deploy run live under the state
// directory, one file per batch id. All writes are atomic.
package state
