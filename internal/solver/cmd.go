package solver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/danieljhkim/gridmix/internal/dss"
)

// DefaultBinary is the command-line OpenDSS executable.
const DefaultBinary = "opendsscmd"

// scriptName is the run script written next to the master file.
const scriptName = "gridmix_run.dss"

var (
	solvedStatus = regexp.MustCompile(`(?i)status\s*=\s*solved`)
	compileError = regexp.MustCompile(`(?im)^\s*(error|\*\*\*\s*error)\b.*$`)
)

// CmdEngine runs the solver binary on a generated script. The master file
// carries its own Solve command; CmdEngine verifies it matches the
// requested mode and reads convergence from the solution summary.
type CmdEngine struct {
	Binary string

	closed bool
}

// NewCmdEngine creates a CmdEngine for binary, or DefaultBinary when empty.
func NewCmdEngine(binary string) *CmdEngine {
	if binary == "" {
		binary = DefaultBinary
	}
	return &CmdEngine{Binary: binary}
}

// Compile checks that the solver binary and the master file are available.
func (e *CmdEngine) Compile(ctx context.Context, master string) (Handle, error) {
	if e.closed {
		return Handle{}, ErrClosed
	}
	if _, err := exec.LookPath(e.Binary); err != nil {
		return Handle{}, fmt.Errorf("solver binary %q not found: %w", e.Binary, err)
	}
	abs, err := filepath.Abs(master)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return Handle{}, fmt.Errorf("%w: %v", ErrCompile, err)
	}
	return Handle{Master: abs, Dir: filepath.Dir(abs)}, nil
}

// Solve writes the run script and executes the solver in the master's
// directory.
func (e *CmdEngine) Solve(ctx context.Context, h Handle, mode Mode) (bool, error) {
	if e.closed {
		return false, ErrClosed
	}
	if err := checkMode(h.Master, mode); err != nil {
		return false, err
	}

	script := filepath.Join(h.Dir, scriptName)
	body := fmt.Sprintf("Compile [%s]\nSummary\n", filepath.Base(h.Master))
	if err := os.WriteFile(script, []byte(body), 0644); err != nil {
		return false, fmt.Errorf("failed to write run script: %w", err)
	}
	defer os.Remove(script)

	cmd := exec.CommandContext(ctx, e.Binary, scriptName)
	cmd.Dir = h.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("%w: %v\nstderr: %s", ErrCompile, err, strings.TrimSpace(stderr.String()))
	}
	return parseSummary(stdout.String())
}

// Close marks the engine unusable.
func (e *CmdEngine) Close() error {
	e.closed = true
	return nil
}

// parseSummary reads solver output and reports convergence.
func parseSummary(out string) (bool, error) {
	if m := compileError.FindString(out); m != "" {
		return false, fmt.Errorf("%w: %s", ErrCompile, strings.TrimSpace(m))
	}
	return solvedStatus.MatchString(out), nil
}

// checkMode verifies that the last Solve statement in master selects mode.
func checkMode(master string, mode Mode) error {
	data, err := os.ReadFile(master)
	if err != nil {
		return fmt.Errorf("failed to read master: %w", err)
	}
	f, err := dss.Parse(filepath.Base(master), data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCompile, err)
	}
	var last *dss.Statement
	for _, st := range f.Statements() {
		if st.Is("solve") {
			last = st
		}
	}
	if last == nil {
		return fmt.Errorf("%w: no Solve statement", ErrModeMismatch)
	}
	name, _ := last.Get("mode")
	step, _ := last.Get("stepsize")
	number, _ := last.Get("number")
	if !mode.Matches(name, step, number) {
		return fmt.Errorf("%w: want %s, got %q", ErrModeMismatch, mode, last.String())
	}
	return nil
}
