// Package planner handles the planning phase of a deployment.
//
// The planner expands feeders × mixes into an ordered list of jobs, detects
// instance directories that already exist, and turns each rewritten
// instance into the filesystem operations that materialize it. Plans are
// deterministic: the same inputs always give the same job and operation
// order.
//
// Key responsibilities:
//   - Generate DeployPlan with ordered jobs
//   - Detect conflicts (existing instances, files in the way, duplicates)
//   - Generate MaterializePlan with ordered write/copy operations
//   - Validate path safety before operations
package planner
