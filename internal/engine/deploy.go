package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/danieljhkim/gridmix/internal/allocate"
	"github.com/danieljhkim/gridmix/internal/audit"
	"github.com/danieljhkim/gridmix/internal/curves"
	"github.com/danieljhkim/gridmix/internal/dss"
	"github.com/danieljhkim/gridmix/internal/feeder"
	"github.com/danieljhkim/gridmix/internal/planner"
	"github.com/danieljhkim/gridmix/internal/rewrite"
	"github.com/danieljhkim/gridmix/internal/solver"
	"github.com/danieljhkim/gridmix/internal/state"
)

// Algorithm steps:
// 1. Load mixes and discover feeders
// 2. Build the deploy plan (existing instances become conflicts unless Force)
// 3. Return early on DryRun
// 4. Fan jobs out over a bounded worker pool
// 5. Flush the heating audit and persist the batch record
// 6. Return result
func (e *Engine) Deploy(ctx context.Context, req *DeployRequest) (*DeployResult, error) {
	cfg := req.Config
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrValidation)
	}

	mixes, err := e.loadMixes(cfg, req.Mixes)
	if err != nil {
		return nil, fmt.Errorf("failed to load mixes: %w", err)
	}
	feeders, err := e.discoverFeeders(cfg, req.Feeders)
	if err != nil {
		return nil, err
	}
	if len(feeders) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoFeeders, cfg.TemplateRoot)
	}

	plan, err := planner.BuildDeployPlan(feeders, mixes, cfg.OutputDir, e.fs, req.Force)
	if err != nil {
		return nil, fmt.Errorf("failed to build deploy plan: %w", err)
	}
	for _, c := range plan.Conflicts {
		e.logger.Warn("instance skipped", "instance", c.Instance, "reason", c.Reason)
	}

	result := &DeployResult{
		BatchID:   e.newID(),
		Plan:      plan,
		Instances: []InstanceResult{},
		Failures:  []JobFailure{},
	}
	if req.DryRun {
		return result, nil
	}

	inputs, err := e.newBatchInputs(cfg)
	if err != nil {
		return nil, err
	}
	batch := state.NewBatchRecord(result.BatchID, e.clock.Now())
	batch.OutputDir = cfg.OutputDir
	batch.MixFile = cfg.MixFile
	batch.Season = cfg.Season

	var orch *solver.Orchestrator
	if req.Run {
		orch = solver.NewOrchestrator(e.newSolver, e.fs, e.clock, cfg.Solver.Timeout)
	}

	sink := audit.NewSink()
	instances := make([]*InstanceResult, len(plan.Jobs))
	failures := make([]error, len(plan.Jobs))
	bar := newProgress(req.Progress, len(plan.Jobs), "deploy ")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, job := range plan.Jobs {
		g.Go(func() error {
			defer bar.Increment()

			inst, err := e.deployJob(gctx, inputs, sink, result.BatchID, job)
			if err != nil {
				if isFatal(err) {
					return err
				}
				e.logger.Error("job failed", "instance", job.Instance, "error", err)
				failures[i] = err
				return nil
			}
			if orch != nil {
				e.solveInstance(gctx, orch, job.Dir, inst)
			}
			instances[i] = inst
			return nil
		})
	}
	err = g.Wait()
	bar.Finish()
	if err != nil {
		return nil, err
	}

	for i, job := range plan.Jobs {
		if failures[i] != nil {
			result.Failures = append(result.Failures, JobFailure{Instance: job.Instance, Err: failures[i]})
			batch.Failures[job.Instance] = failures[i].Error()
			continue
		}
		result.Instances = append(result.Instances, *instances[i])
		batch.Instances = append(batch.Instances, job.Instance)
	}
	sort.Strings(batch.Instances)
	for _, c := range plan.Conflicts {
		batch.Skipped = append(batch.Skipped, c.Instance)
	}

	if sink.Len() > 0 {
		result.AuditFiles, err = sink.Flush(e.fs, cfg.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("failed to write heating audit: %w", err)
		}
	}

	batch.FinishedAt = e.clock.Now()
	if err := e.store.SaveBatch(batch); err != nil {
		return nil, fmt.Errorf("failed to save batch record: %w", err)
	}

	if len(result.Failures) > 0 {
		return result, fmt.Errorf("%w: %d of %d", ErrJobsFailed, len(result.Failures), len(plan.Jobs))
	}
	return result, nil
}

// deployJob prepares one instance: parse, allocate, rewrite, materialize,
// then persist its manifest and provenance.
func (e *Engine) deployJob(ctx context.Context, in *batchInputs, sink *audit.Sink, batchID string, job planner.Job) (*InstanceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := in.cfg
	f := job.Feeder

	m, err := feeder.Load(e.fs, f.Dir, f.Substation, f.Name)
	if err != nil {
		if errors.Is(err, feeder.ErrUnresolvedShape) || errors.Is(err, dss.ErrSyntax) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrTemplateUnreadable, f.Dir, err)
	}

	bucket := curves.Bucket(cfg.State, f.Circuit, cfg.Season)
	set, err := in.curveSet(bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to index curves for %s: %w", bucket, err)
	}

	alloc := allocate.Resolve(m, job.Mix)
	inst, err := rewrite.Rewrite(rewrite.Input{
		Model:    m,
		Mix:      job.Mix,
		Alloc:    alloc,
		Curves:   set,
		Season:   cfg.Season,
		EVDemand: in.evDemand,
		EVParams: cfg.EV.Params(),
	}, cfg.Sizing)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite %s: %w", job.Instance, err)
	}
	for _, s := range inst.Report.Skipped {
		e.logger.Warn("element skipped", "instance", job.Instance, "kind", s.Kind, "target", s.Target, "reason", s.Reason)
	}

	mp, err := planner.BuildMaterializePlan(job.Dir, inst, job.Replace)
	if err != nil {
		return nil, err
	}
	for _, op := range mp.Operations {
		if err := e.executeOperation(op); err != nil {
			return nil, fmt.Errorf("failed to materialize %s: %w", job.Instance, err)
		}
	}

	manifest := state.NewManifest(state.ManifestInput{
		Instance: job.Instance,
		Circuit:  f.Circuit,
		Season:   cfg.Season,
		Bucket:   bucket,
		Model:    m,
		Mix:      job.Mix,
		Alloc:    alloc,
		Report:   inst.Report,
	})
	if err := e.store.SaveManifest(job.Dir, manifest); err != nil {
		return nil, err
	}

	prov, err := e.provenance(batchID, job, mp.RelPaths(), cfg.MixFile)
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveProvenance(job.Dir, prov); err != nil {
		return nil, err
	}

	sink.Record(audit.Summary{
		Substation:  f.Substation,
		Feeder:      f.Name,
		Instance:    job.Instance,
		Mix:         job.Mix.Name,
		Season:      cfg.Season,
		Shares:      alloc.Heating.Shares,
		ShapeCounts: alloc.Heating.ShapeCounts(),
		BaseCounts:  alloc.Heating.Counts,
	}, alloc.Heating.ShapeCategory)

	e.logger.Debug("instance prepared", "instance", job.Instance, "files", len(mp.Operations))
	return &InstanceResult{
		Instance: job.Instance,
		Dir:      job.Dir,
		Files:    len(mp.RelPaths()),
		Report:   inst.Report,
		master:   inst.Master,
	}, nil
}

// provenance checksums every materialized file plus the manifest.
func (e *Engine) provenance(batchID string, job planner.Job, rels []string, mixFile string) (*state.Provenance, error) {
	p := &state.Provenance{
		BatchID:   batchID,
		Instance:  job.Instance,
		CreatedAt: e.clock.Now(),
		Template:  job.Feeder.Dir,
		MixFile:   mixFile,
		Version:   Version,
		Checksums: make(map[string]string, len(rels)+1),
	}
	for _, rel := range append(rels, state.ManifestFile) {
		data, err := e.fs.ReadFile(filepath.Join(job.Dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("failed to checksum %s: %w", rel, err)
		}
		p.Checksums[rel] = e.hasher.HashBytes(data)
	}
	return p, nil
}

// solveInstance runs a freshly prepared instance and records the outcome.
// Solve failures are recorded, never returned.
func (e *Engine) solveInstance(ctx context.Context, orch *solver.Orchestrator, dir string, inst *InstanceResult) {
	if inst.master == "" {
		e.logger.Warn("instance has no master file", "instance", inst.Instance)
		return
	}
	rr, err := orch.Run(ctx, inst.Instance, filepath.Join(dir, filepath.FromSlash(inst.master)))
	if err != nil {
		e.logger.Warn("solve failed", "instance", inst.Instance, "error", err)
	}
	inst.Run = &rr
	if err := e.store.SaveRunResult(dir, &rr); err != nil {
		e.logger.Error("failed to save run result", "instance", inst.Instance, "error", err)
	}
}

func isFatal(err error) bool {
	return errors.Is(err, ErrTemplateUnreadable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
