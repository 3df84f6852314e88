package solver

import (
	"context"
	"path/filepath"
)

// FakeEngine implements Engine with scripted outcomes for testing.
type FakeEngine struct {
	Converged  bool
	CompileErr error
	SolveErr   error
	CloseErr   error

	// OnSolve runs during Solve, before the outcome is returned. Tests use
	// it to drop export files or to block until the context ends.
	OnSolve func(ctx context.Context, h Handle) error

	Compiled []string
	Solved   []Mode
	Closed   bool
}

// NewFakeEngine creates a FakeEngine whose solves converge.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{Converged: true}
}

// Compile records master and returns its handle.
func (e *FakeEngine) Compile(ctx context.Context, master string) (Handle, error) {
	if e.Closed {
		return Handle{}, ErrClosed
	}
	e.Compiled = append(e.Compiled, master)
	if e.CompileErr != nil {
		return Handle{}, e.CompileErr
	}
	return Handle{Master: master, Dir: filepath.Dir(master)}, nil
}

// Solve records mode and returns the scripted outcome.
func (e *FakeEngine) Solve(ctx context.Context, h Handle, mode Mode) (bool, error) {
	if e.Closed {
		return false, ErrClosed
	}
	e.Solved = append(e.Solved, mode)
	if e.OnSolve != nil {
		if err := e.OnSolve(ctx, h); err != nil {
			return false, err
		}
	}
	if e.SolveErr != nil {
		return false, e.SolveErr
	}
	return e.Converged, nil
}

// Close marks the engine closed.
func (e *FakeEngine) Close() error {
	e.Closed = true
	return e.CloseErr
}
