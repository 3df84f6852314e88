// Package engine provides the core business logic for gridmix operations.
//
// The engine package acts as the orchestration layer between CLI commands and
// lower-level operations. It coordinates feeder discovery, allocation,
// rewriting, materialization of instance directories, and solver runs.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Deploy: Prepares one instance per (feeder, mix) job
//   - Plan: Resolves one allocation without writing anything
//   - Run/Check: Solves prepared instances and verifies their exports
package engine

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/danieljhkim/gridmix/internal/clock"
	"github.com/danieljhkim/gridmix/internal/fsops"
	"github.com/danieljhkim/gridmix/internal/hash"
	"github.com/danieljhkim/gridmix/internal/planner"
	"github.com/danieljhkim/gridmix/internal/solver"
	"github.com/danieljhkim/gridmix/internal/state"
)

// Version is recorded in instance provenance.
var Version = "dev"

// Engine orchestrates all gridmix operations.
// It is the main API surface called by the CLI.
type Engine struct {
	store     state.ManifestStore
	fs        fsops.FS
	hasher    hash.Hasher
	clock     clock.Clock
	newSolver solver.Factory
	logger    *slog.Logger
	newID     func() string
}

// New creates a new Engine with the given dependencies. A nil logger
// discards log output.
func New(
	store state.ManifestStore,
	fs fsops.FS,
	hasher hash.Hasher,
	clk clock.Clock,
	newSolver solver.Factory,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		store:     store,
		fs:        fs,
		hasher:    hasher,
		clock:     clk,
		newSolver: newSolver,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// executeOperation executes a single operation.
func (e *Engine) executeOperation(op planner.Operation) error {
	switch op.Type {
	case planner.OpRemove:
		return e.executeRemove(op)
	case planner.OpWrite:
		return e.executeWrite(op)
	case planner.OpCopy:
		return e.executeCopy(op)
	default:
		return fmt.Errorf("unknown operation type: %s", op.Type)
	}
}

// executeRemove removes a path.
func (e *Engine) executeRemove(op planner.Operation) error {
	exists, err := e.fs.Exists(op.DestPath)
	if err != nil {
		return fmt.Errorf("failed to check if path exists: %w", err)
	}
	if !exists {
		return nil
	}
	if err := e.fs.RemoveAll(op.DestPath); err != nil {
		return fmt.Errorf("failed to remove path: %w", err)
	}

	return nil
}

// executeWrite writes generated content.
func (e *Engine) executeWrite(op planner.Operation) error {
	if err := e.fs.AtomicWrite(op.DestPath, op.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", op.RelPath, err)
	}

	return nil
}

// executeCopy copies a file.
func (e *Engine) executeCopy(op planner.Operation) error {
	if err := e.fs.Copy(op.SourcePath, op.DestPath); err != nil {
		return fmt.Errorf("failed to copy %s: %w", op.RelPath, err)
	}

	return nil
}
