package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/danieljhkim/gridmix/internal/feeder"
	"github.com/danieljhkim/gridmix/internal/solver"
	"github.com/danieljhkim/gridmix/internal/state"
)

// instanceRef is a prepared instance located on disk.
type instanceRef struct {
	name     string
	dir      string
	manifest *state.Manifest
}

// Run solves prepared instances, one engine per instance, and writes each
// run_result.json. Failed or non-converged runs are counted, not returned.
func (e *Engine) Run(ctx context.Context, req *RunRequest) (*RunBatchResult, error) {
	refs, err := e.selectInstances(req.OutputDir, req.CWD, req.Instances, req.Pattern)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no instances under %s", ErrNotFound, req.OutputDir)
	}

	workers := req.Workers
	if workers < 1 {
		workers = 1
	}
	orch := solver.NewOrchestrator(e.newSolver, e.fs, e.clock, req.Timeout)
	results := make([]solver.RunResult, len(refs))
	bar := newProgress(req.Progress, len(refs), "run ")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ref := range refs {
		g.Go(func() error {
			defer bar.Increment()

			master, err := e.findMaster(ref)
			if err != nil {
				results[i] = solver.RunResult{Instance: ref.name, Err: err.Error()}
				return nil
			}
			rr, err := orch.Run(gctx, ref.name, master)
			if err != nil {
				e.logger.Warn("solve failed", "instance", ref.name, "error", err)
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
			results[i] = rr
			if err := e.store.SaveRunResult(ref.dir, &rr); err != nil {
				return fmt.Errorf("failed to save run result for %s: %w", ref.name, err)
			}
			return nil
		})
	}
	err = g.Wait()
	bar.Finish()
	if err != nil {
		return nil, err
	}

	out := &RunBatchResult{Results: results}
	for _, r := range results {
		if !r.Converged {
			out.Failed++
		}
	}
	return out, nil
}

// selectInstances returns the named instances, or every managed instance
// directory under outputDir whose name matches pattern, sorted by name.
func (e *Engine) selectInstances(outputDir, cwd string, names []string, pattern string) ([]instanceRef, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("%w: output directory is required", ErrValidation)
	}
	if pattern != "" {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrValidation, pattern, err)
		}
	}

	var dirs []string
	if len(names) > 0 {
		for _, n := range names {
			dir, err := resolveWithin(n, cwd, outputDir)
			if err != nil {
				return nil, err
			}
			dirs = append(dirs, dir)
		}
	} else {
		entries, err := e.fs.ReadDir(outputDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read output directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				dirs = append(dirs, filepath.Join(outputDir, entry.Name()))
			}
		}
	}

	var refs []instanceRef
	for _, dir := range dirs {
		name := filepath.Base(dir)
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, name); !ok {
				continue
			}
		}
		m, err := e.store.LoadManifest(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				if len(names) > 0 {
					return nil, fmt.Errorf("%w: %s is not a gridmix instance", ErrNotFound, dir)
				}
				continue
			}
			return nil, fmt.Errorf("instance %s: %w", name, err)
		}
		refs = append(refs, instanceRef{name: name, dir: dir, manifest: m})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].name < refs[j].name })
	return refs, nil
}

// findMaster locates the master file in the instance's feeder directory.
func (e *Engine) findMaster(ref instanceRef) (string, error) {
	feederDir := filepath.Join(ref.dir, ref.manifest.Feeder)
	entries, err := e.fs.ReadDir(feederDir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", feederDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), feeder.MasterName) {
			return filepath.Join(feederDir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: no %s in %s", ErrNotFound, feeder.MasterName, feederDir)
}
