package engine

import (
	"io"
	"time"

	"github.com/danieljhkim/gridmix/internal/config"
)

// DeployRequest represents a request to prepare scenario instances.
type DeployRequest struct {
	// Config is the validated deploy config
	Config *config.DeployConfig

	// Mixes limits the batch to these mix names (empty means all)
	Mixes []string

	// Feeders limits the batch to these feeder names (empty means all)
	Feeders []string

	// Force replaces existing instance directories
	Force bool

	// DryRun performs planning only without making changes
	DryRun bool

	// Run solves each instance after it is prepared
	Run bool

	// Progress receives a progress bar when non-nil
	Progress io.Writer
}

// PlanRequest represents a request to resolve one allocation.
type PlanRequest struct {
	// Config is the validated deploy config
	Config *config.DeployConfig

	// Substation and Feeder select the template
	Substation string
	Feeder     string

	// Mix is the mix name
	Mix string
}

// RunRequest represents a request to solve prepared instances.
type RunRequest struct {
	// OutputDir is the directory holding instance directories
	OutputDir string

	// CWD resolves relative instance paths
	CWD string

	// Instances are instance names or paths (empty means all)
	Instances []string

	// Pattern filters instance names with a glob (empty means all)
	Pattern string

	// Workers bounds concurrent solves
	Workers int

	// Timeout bounds each solve (zero selects the solver default)
	Timeout time.Duration

	// Progress receives a progress bar when non-nil
	Progress io.Writer
}

// CheckRequest represents a request to verify solver exports.
type CheckRequest struct {
	// OutputDir is the directory holding instance directories
	OutputDir string

	// Pattern filters instance names with a glob (empty means all)
	Pattern string
}

// MixesRequest represents a request to list mix declarations.
type MixesRequest struct {
	// MixFile is the declaration file
	MixFile string

	// Defaults fill in omitted parameters
	Defaults config.MixDefaults
}
