package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/danieljhkim/gridmix/internal/allocate"
	"github.com/danieljhkim/gridmix/internal/curves"
	"github.com/danieljhkim/gridmix/internal/feeder"
	"github.com/danieljhkim/gridmix/internal/planner"
	"github.com/danieljhkim/gridmix/internal/rewrite"
	"github.com/danieljhkim/gridmix/internal/state"
)

// Plan resolves the allocation of one feeder and mix and rewrites it in
// memory. Nothing is written.
func (e *Engine) Plan(ctx context.Context, req *PlanRequest) (*PlanResult, error) {
	cfg := req.Config
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrValidation)
	}
	if req.Feeder == "" || req.Mix == "" {
		return nil, fmt.Errorf("%w: feeder and mix are required", ErrValidation)
	}

	mixes, err := e.loadMixes(cfg, []string{req.Mix})
	if err != nil {
		return nil, err
	}
	feeders, err := e.discoverFeeders(cfg, []string{req.Feeder})
	if err != nil {
		return nil, err
	}
	var f *planner.Feeder
	for i := range feeders {
		if req.Substation == "" || strings.EqualFold(feeders[i].Substation, req.Substation) {
			f = &feeders[i]
			break
		}
	}
	if f == nil {
		return nil, fmt.Errorf("%w: feeder %q", ErrNotFound, req.Feeder)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := feeder.Load(e.fs, f.Dir, f.Substation, f.Name)
	if err != nil {
		return nil, err
	}

	inputs, err := e.newBatchInputs(cfg)
	if err != nil {
		return nil, err
	}
	bucket := curves.Bucket(cfg.State, f.Circuit, cfg.Season)
	set, err := inputs.curveSet(bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to index curves for %s: %w", bucket, err)
	}

	mx := mixes[0]
	alloc := allocate.Resolve(m, mx)
	inst, err := rewrite.Rewrite(rewrite.Input{
		Model:    m,
		Mix:      mx,
		Alloc:    alloc,
		Curves:   set,
		Season:   cfg.Season,
		EVDemand: inputs.evDemand,
		EVParams: cfg.EV.Params(),
	}, cfg.Sizing)
	if err != nil {
		return nil, err
	}

	return &PlanResult{
		Manifest: state.NewManifest(state.ManifestInput{
			Instance: planner.InstanceName(f.Substation, f.Circuit, mx.Name),
			Circuit:  f.Circuit,
			Season:   cfg.Season,
			Bucket:   bucket,
			Model:    m,
			Mix:      mx,
			Alloc:    alloc,
			Report:   inst.Report,
		}),
		Coverage:       inst.Report.Coverage,
		RequiredCurves: inst.Report.RequiredCurves,
		Skipped:        inst.Report.Skipped,
	}, nil
}
