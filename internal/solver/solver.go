// Package solver drives the external power-flow solver over prepared
// scenario instances.
//
// An Engine compiles one master file and solves it. Engines hold per-job
// state and are never shared between goroutines; the Orchestrator creates
// one per run.
package solver

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCompile is returned when the solver rejects the circuit definition.
	ErrCompile = errors.New("circuit failed to compile")

	// ErrNotConverged is returned when the solve finished without converging.
	ErrNotConverged = errors.New("solution did not converge")

	// ErrModeMismatch is returned when the master file does not solve in the
	// requested mode.
	ErrModeMismatch = errors.New("master solve mode mismatch")

	// ErrClosed is returned by engines used after Close.
	ErrClosed = errors.New("engine closed")
)

// Mode is a time-series solve configuration.
type Mode struct {
	Name     string `json:"name" yaml:"name"`
	StepSize string `json:"stepsize" yaml:"stepsize"`
	Number   int    `json:"number" yaml:"number"`
}

// Daily is the 96-step, 15-minute daily solve every instance is retargeted to.
func Daily() Mode {
	return Mode{Name: "daily", StepSize: "15m", Number: 96}
}

// String renders the mode as DSS solve properties.
func (m Mode) String() string {
	return fmt.Sprintf("mode=%s stepsize=%s number=%d", m.Name, m.StepSize, m.Number)
}

// Matches reports whether a solve statement's properties select this mode.
func (m Mode) Matches(name, stepSize, number string) bool {
	return strings.EqualFold(name, m.Name) &&
		strings.EqualFold(stepSize, m.StepSize) &&
		number == fmt.Sprint(m.Number)
}

// Handle identifies a compiled circuit within an engine.
type Handle struct {
	// Master is the absolute path of the compiled master file.
	Master string
	// Dir is the directory the solver runs in; exports land here.
	Dir string
}

// Engine compiles and solves one circuit at a time.
type Engine interface {
	// Compile loads the circuit described by master.
	Compile(ctx context.Context, master string) (Handle, error)

	// Solve runs the compiled circuit in mode and reports convergence.
	Solve(ctx context.Context, h Handle, mode Mode) (bool, error)

	// Close releases the engine.
	Close() error
}
