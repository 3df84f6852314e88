package state

import (
	"sort"

	"github.com/danieljhkim/gridmix/internal/allocate"
	"github.com/danieljhkim/gridmix/internal/feeder"
	"github.com/danieljhkim/gridmix/internal/mix"
	"github.com/danieljhkim/gridmix/internal/rewrite"
)

// ManifestInput identifies the job a manifest is built for.
type ManifestInput struct {
	Instance string
	Circuit  int
	Season   string
	Bucket   string
	Model    *feeder.Model
	Mix      mix.Mix
	Alloc    *allocate.Result
	Report   rewrite.Report
}

// NewManifest flattens an allocation and its rewrite report into a Manifest.
func NewManifest(in ManifestInput) *Manifest {
	h := in.Alloc.Heating
	ev := in.Alloc.EV
	res := in.Alloc.Resources

	m := &Manifest{
		Instance:   in.Instance,
		Substation: in.Model.Substation,
		Feeder:     in.Model.Feeder,
		Circuit:    in.Circuit,
		Mix:        in.Mix.Name,
		Season:     in.Season,
		Bucket:     in.Bucket,
		Heating: HeatingManifest{
			Shares:      h.Shares,
			Seed:        in.Mix.Seeds.Heating,
			BaseCounts:  categoryCounts(h.Counts),
			ShapeCounts: categoryCounts(h.ShapeCounts()),
			Assignment:  make(map[string]string, len(h.Assignment)),
		},
		EV: EVManifest{
			Perc:       in.Mix.EVPercentage,
			Level2Perc: in.Mix.EVLevel2,
			Seed:       in.Mix.Seeds.EV,
			Requested:  ev.Requested,
			Bumped:     ev.Bumped,
		},
		EVSplit: ev.Split,
		Storage: ResourceManifest{
			Perc3ph:   in.Mix.StoragePercentage,
			Seed:      in.Mix.Seeds.Storage,
			Eligible:  res.Eligible,
			Requested: res.RequestedStorage,
			Bases:     orEmpty(res.StorageBases),
		},
		PV: ResourceManifest{
			Perc3ph:   in.Mix.PVPercentage,
			Seed:      in.Mix.Seeds.PV,
			Eligible:  res.Eligible,
			Requested: res.RequestedPV,
			Bases:     orEmpty(res.PVBases),
		},
		DisjointSets:        in.Mix.DisjointSets,
		DisjointRelaxed:     res.DisjointRelaxed,
		EVLoadsUncontrolled: orEmpty(in.Report.EVUncontrolled),
		EVLoadsControlled:   orEmpty(in.Report.EVControlled),
		StorageTargets:      orEmpty(res.StorageTargets),
		PVTargets:           orEmpty(res.PVTargets),
		Rewrite:             in.Report,
	}
	for base, c := range h.Assignment {
		m.Heating.Assignment[base] = c.Code()
	}

	all := append(append([]string{}, m.EVLoadsUncontrolled...), m.EVLoadsControlled...)
	sort.Strings(all)
	m.EVLoads = all
	return m
}

func categoryCounts(in map[mix.Category]int) map[string]int {
	out := make(map[string]int, len(mix.Categories))
	for _, c := range mix.Categories {
		out[c.Code()] = in[c]
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
