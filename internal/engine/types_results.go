package engine

import (
	"github.com/danieljhkim/gridmix/internal/mix"
	"github.com/danieljhkim/gridmix/internal/planner"
	"github.com/danieljhkim/gridmix/internal/rewrite"
	"github.com/danieljhkim/gridmix/internal/solver"
	"github.com/danieljhkim/gridmix/internal/state"
)

// DeployResult represents the result of a deploy batch.
type DeployResult struct {
	// BatchID identifies the batch in provenance and batch records
	BatchID string

	// Plan is the generated plan
	Plan *planner.DeployPlan

	// Instances lists prepared instances in plan order (empty if DryRun)
	Instances []InstanceResult

	// Failures lists jobs that failed, in plan order
	Failures []JobFailure

	// AuditFiles are the written heating audit files
	AuditFiles []string
}

// InstanceResult describes one prepared instance.
type InstanceResult struct {
	Instance string
	Dir      string
	Files    int
	Report   rewrite.Report

	// Run is set when the instance was solved
	Run *solver.RunResult

	master string
}

// JobFailure records why a job produced no instance.
type JobFailure struct {
	Instance string
	Err      error
}

// PlanResult represents a resolved allocation.
type PlanResult struct {
	Manifest *state.Manifest

	// Coverage counts required curves found per category
	Coverage map[mix.Category]int

	// RequiredCurves is the number of curve files the template needs
	RequiredCurves int

	// Skipped lists elements the rewrite could not synthesize
	Skipped []rewrite.Skip
}

// RunBatchResult represents the result of solving instances.
type RunBatchResult struct {
	// Results are per-instance outcomes sorted by instance
	Results []solver.RunResult

	// Failed counts runs that errored or did not converge
	Failed int
}

// CheckResult represents the result of the export check.
type CheckResult struct {
	// Rows are per-instance outcomes sorted by instance
	Rows []CheckRow

	// ReportPath is the written CSV report
	ReportPath string

	// FailingPath is the written list of failing instances, if any
	FailingPath string
}

// CheckRow is one instance's export check.
type CheckRow struct {
	Instance string
	Pass     bool
	Reasons  []string
}

// MixesResult lists resolved mixes.
type MixesResult struct {
	Mixes []mix.Mix
}
