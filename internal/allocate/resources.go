package allocate

import (
	"github.com/danieljhkim/gridmix/internal/feeder"
	"github.com/danieljhkim/gridmix/internal/mix"
)

// Resources is the storage and PV placement for one feeder and mix.
type Resources struct {
	// Eligible is the number of three-phase customers.
	Eligible int

	// RequestedStorage and RequestedPV are the counts derived from the
	// mix percentages before pool limits apply.
	RequestedStorage int
	RequestedPV      int

	// StorageBases and PVBases are the chosen customers, sorted.
	StorageBases []string
	PVBases      []string

	// StorageTargets and PVTargets are the anchor loads (the first
	// three-phase load of each chosen customer), sorted.
	StorageTargets []string
	PVTargets      []string

	// DisjointRelaxed is set when disjoint placement was requested but the
	// PV pool was empty after removing storage hosts, so PV was drawn from
	// the full pool instead.
	DisjointRelaxed bool
}

// AllocateResources picks storage and PV hosts among three-phase customers.
func AllocateResources(m *feeder.Model, mx mix.Mix) Resources {
	pool := m.ThreePhaseBases()
	res := Resources{
		Eligible:         len(pool),
		RequestedStorage: roundCount(mx.StoragePercentage, len(pool)),
		RequestedPV:      roundCount(mx.PVPercentage, len(pool)),
	}

	rs := newRand(mx.Seeds.Storage, m.Substation, m.Feeder, "storage")
	res.StorageBases = take(rs, pool, res.RequestedStorage)

	pvPool := pool
	if mx.DisjointSets {
		taken := make(map[string]bool, len(res.StorageBases))
		for _, b := range res.StorageBases {
			taken[b] = true
		}
		pvPool = nil
		for _, b := range pool {
			if !taken[b] {
				pvPool = append(pvPool, b)
			}
		}
		if len(pvPool) == 0 && res.RequestedPV > 0 {
			pvPool = pool
			res.DisjointRelaxed = true
		}
	}

	rp := newRand(mx.Seeds.PV, m.Substation, m.Feeder, "pv")
	res.PVBases = take(rp, pvPool, res.RequestedPV)

	res.StorageTargets = anchors(m, res.StorageBases)
	res.PVTargets = anchors(m, res.PVBases)
	return res
}

func anchors(m *feeder.Model, bases []string) []string {
	var out []string
	for _, b := range bases {
		if full, ok := m.ThreePhaseAnchor(b); ok {
			out = append(out, full)
		}
	}
	return out
}
