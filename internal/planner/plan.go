package planner

import (
	"fmt"

	"github.com/danieljhkim/gridmix/internal/mix"
)

// Feeder is one feeder template discovered under a substation.
type Feeder struct {
	Substation string
	Name       string
	Dir        string
	Circuit    int
}

// Job is one (feeder, mix) pair to deploy.
type Job struct {
	Feeder Feeder
	Mix    mix.Mix

	// Instance is the instance directory name.
	Instance string

	// Dir is the absolute instance directory.
	Dir string

	// Replace is set when an existing instance directory is overwritten.
	Replace bool
}

// DeployPlan represents the jobs of one deploy run.
type DeployPlan struct {
	// OutputDir is the directory instances are created in
	OutputDir string

	// Jobs is the ordered list of jobs to execute
	Jobs []Job

	// Conflicts is a list of jobs that will not run (empty if no conflicts)
	Conflicts []Conflict
}

// Conflict represents an instance the plan refuses to create.
type Conflict struct {
	// Instance is the instance name
	Instance string

	// Path is the instance directory
	Path string

	// Reason is a human-readable explanation of the conflict
	Reason string

	// Existing describes what currently exists at the path
	Existing string
}

// Operation represents a single filesystem operation to execute.
type Operation struct {
	// Type is the operation type: "write", "copy", "remove"
	Type string

	// SourcePath is the source file for copies (absolute)
	SourcePath string

	// DestPath is the destination path (absolute, for FS operations)
	DestPath string

	// RelPath is the path relative to the instance root
	RelPath string

	// Data is the content for writes
	Data []byte
}

// Operation type constants
const (
	OpWrite  = "write"
	OpCopy   = "copy"
	OpRemove = "remove"
)

// NewDeployPlan creates a new empty DeployPlan.
func NewDeployPlan(outputDir string) *DeployPlan {
	return &DeployPlan{
		OutputDir: outputDir,
		Jobs:      []Job{},
		Conflicts: []Conflict{},
	}
}

// HasConflicts returns true if the plan has any conflicts.
func (p *DeployPlan) HasConflicts() bool {
	return len(p.Conflicts) > 0
}

// AddJob adds a job to the plan.
func (p *DeployPlan) AddJob(job Job) {
	p.Jobs = append(p.Jobs, job)
}

// AddConflict adds a conflict to the plan.
func (p *DeployPlan) AddConflict(conflict Conflict) {
	p.Conflicts = append(p.Conflicts, conflict)
}

// InstanceName returns the directory name of a scenario instance:
// <substation>_circuit_<n>_<mix>.
func InstanceName(substation string, circuit int, mixName string) string {
	return fmt.Sprintf("%s_circuit_%d_%s", substation, circuit, mixName)
}
