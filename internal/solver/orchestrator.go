package solver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/danieljhkim/gridmix/internal/clock"
	"github.com/danieljhkim/gridmix/internal/fsops"
)

// DefaultTimeout bounds a single solve.
const DefaultTimeout = 10 * time.Minute

// Factory creates a fresh engine for one run.
type Factory func() Engine

// RunResult is the terminal record of one instance solve.
type RunResult struct {
	Instance  string    `json:"instance"`
	Master    string    `json:"master"`
	Mode      Mode      `json:"mode"`
	Converged bool      `json:"converged"`
	Err       string    `json:"error,omitempty"`
	Exports   []string  `json:"exports,omitempty"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

// Orchestrator solves prepared instances, one engine per run.
type Orchestrator struct {
	newEngine Factory
	fs        fsops.FS
	clock     clock.Clock
	timeout   time.Duration
	mode      Mode
}

// NewOrchestrator creates an Orchestrator that solves in the daily mode.
// A non-positive timeout selects DefaultTimeout.
func NewOrchestrator(newEngine Factory, fs fsops.FS, clk clock.Clock, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{
		newEngine: newEngine,
		fs:        fs,
		clock:     clk,
		timeout:   timeout,
		mode:      Daily(),
	}
}

// Run compiles and solves master for instance. The returned result is
// always populated; err is non-nil when the run failed or did not converge.
func (o *Orchestrator) Run(ctx context.Context, instance, master string) (RunResult, error) {
	res := RunResult{
		Instance: instance,
		Master:   master,
		Mode:     o.mode,
		Started:  o.clock.Now(),
	}
	err := o.run(ctx, master, &res)
	res.Finished = o.clock.Now()
	if err != nil {
		res.Err = err.Error()
	}
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, master string, res *RunResult) (err error) {
	eng := o.newEngine()
	defer func() {
		if cerr := eng.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close solver: %w", cerr)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	h, err := eng.Compile(ctx, master)
	if err != nil {
		return fmt.Errorf("failed to compile %s: %w", master, err)
	}

	converged, err := eng.Solve(ctx, h, o.mode)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("solve timed out after %s: %w", o.timeout, err)
		}
		return fmt.Errorf("failed to solve: %w", err)
	}
	res.Converged = converged

	exports, err := o.exports(h.Dir)
	if err != nil {
		return err
	}
	res.Exports = exports

	if !converged {
		return ErrNotConverged
	}
	return nil
}

// exports lists the CSV files the solve left in dir, sorted.
func (o *Orchestrator) exports(dir string) ([]string, error) {
	entries, err := o.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
