package engine

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/danieljhkim/gridmix/internal/config"
	"github.com/danieljhkim/gridmix/internal/curves"
	"github.com/danieljhkim/gridmix/internal/evprofile"
	"github.com/danieljhkim/gridmix/internal/feeder"
	"github.com/danieljhkim/gridmix/internal/mix"
	"github.com/danieljhkim/gridmix/internal/planner"
)

// discoverFeeders lists feeder templates under cfg.TemplateRoot. A feeder
// is a directory two levels down holding a Loads.dss. Circuit numbers come
// from the circuit map or, failing that, the feeder's sorted position
// among its substation's templates, so the skip list and filters never
// renumber circuits.
func (e *Engine) discoverFeeders(cfg *config.DeployConfig, only []string) ([]planner.Feeder, error) {
	subs, err := e.listDirs(cfg.TemplateRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read template root: %w", err)
	}

	wantSub := lowerSet(cfg.Substations)
	wantFeeder := lowerSet(only)

	var out []planner.Feeder
	for _, sub := range subs {
		if len(wantSub) > 0 && !wantSub[strings.ToLower(sub)] {
			continue
		}
		subDir := filepath.Join(cfg.TemplateRoot, sub)
		names, err := e.listDirs(subDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read substation %s: %w", sub, err)
		}

		position := 0
		for _, name := range names {
			dir := filepath.Join(subDir, name)
			ok, err := e.hasLoads(dir)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			position++

			if cfg.Skipped(name) {
				e.logger.Info("skipping feeder", "substation", sub, "feeder", name)
				continue
			}
			if len(wantFeeder) > 0 && !wantFeeder[strings.ToLower(name)] {
				continue
			}
			out = append(out, planner.Feeder{
				Substation: sub,
				Name:       name,
				Dir:        dir,
				Circuit:    circuitNumber(cfg.CircuitMap, name, position),
			})
		}
	}

	if cfg.MaxFeeders > 0 && len(out) > cfg.MaxFeeders {
		out = out[:cfg.MaxFeeders]
	}
	return out, nil
}

func (e *Engine) listDirs(dir string) ([]string, error) {
	entries, err := e.fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (e *Engine) hasLoads(dir string) (bool, error) {
	entries, err := e.fs.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("failed to read feeder directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(entry.Name(), feeder.LoadsName) {
			return true, nil
		}
	}
	return false, nil
}

func circuitNumber(circuits map[string]int, name string, position int) int {
	if n, ok := circuits[name]; ok {
		return n
	}
	for k, n := range circuits {
		if strings.EqualFold(k, name) {
			return n
		}
	}
	return position
}

func lowerSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, s := range items {
		out[strings.ToLower(s)] = true
	}
	return out
}

// loadMixes reads the mix declaration and keeps the requested names.
func (e *Engine) loadMixes(cfg *config.DeployConfig, names []string) ([]mix.Mix, error) {
	all, err := e.readMixes(cfg.MixFile, cfg.MixDefaults.Defaults())
	if err != nil {
		return nil, err
	}
	mixes := mix.Filter(all, names)
	found := make(map[string]bool, len(mixes))
	for _, m := range mixes {
		found[m.Name] = true
	}
	for _, n := range names {
		if !found[n] {
			return nil, fmt.Errorf("%w: mix %q", ErrNotFound, n)
		}
	}
	if len(mixes) == 0 {
		return nil, fmt.Errorf("%w: no mixes declared in %s", ErrValidation, cfg.MixFile)
	}
	return mixes, nil
}

// batchInputs holds the read-only inputs shared by every job of a batch.
// Curve sets are built lazily, once per bucket.
type batchInputs struct {
	e        *Engine
	cfg      *config.DeployConfig
	evDemand []float64

	mu     sync.Mutex
	curves map[string]*curveEntry
}

type curveEntry struct {
	once sync.Once
	set  *curves.Set
	err  error
}

func (e *Engine) newBatchInputs(cfg *config.DeployConfig) (*batchInputs, error) {
	b := &batchInputs{e: e, cfg: cfg, curves: make(map[string]*curveEntry)}
	if cfg.EVDemand == "" {
		b.evDemand = evprofile.DefaultAverageDemand()
		return b, nil
	}
	data, err := e.fs.ReadFile(cfg.EVDemand)
	if err != nil {
		return nil, fmt.Errorf("failed to read EV demand: %w", err)
	}
	b.evDemand, err = evprofile.ParseAverageDemand(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.EVDemand, err)
	}
	return b, nil
}

// curveSet returns the curve set for a bucket, building it on first use.
func (b *batchInputs) curveSet(bucket string) (*curves.Set, error) {
	b.mu.Lock()
	entry, ok := b.curves[bucket]
	if !ok {
		entry = &curveEntry{}
		b.curves[bucket] = entry
	}
	b.mu.Unlock()

	entry.once.Do(func() {
		entry.set, entry.err = curves.NewSet(b.e.fs, b.cfg.Curves.Roots(), bucket)
		if entry.err == nil {
			b.e.logger.Debug("indexed curves", "bucket", bucket, "sizes", entry.set.Size())
		}
	})
	return entry.set, entry.err
}
