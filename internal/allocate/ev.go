package allocate

import (
	"math"

	"github.com/danieljhkim/gridmix/internal/feeder"
	"github.com/danieljhkim/gridmix/internal/mix"
)

// EV is the EV charging host selection for one feeder and mix.
type EV struct {
	// Requested is round(ev_perc × population) with the minimum-one rule.
	Requested int

	// Bumped is set when a single requested host was raised to two so
	// that both charging groups could be populated.
	Bumped bool

	// Split is the normalized controlled/uncontrolled fraction.
	Split mix.Split

	// Hosts is the selected customers in shuffled order. The first
	// len(Uncontrolled) are uncontrolled; the rest are controlled.
	Hosts        []string
	Uncontrolled []string
	Controlled   []string
}

// SplitCounts divides n hosts into uncontrolled and controlled groups.
// When n ≥ 2 and both fractions are positive, neither group is left empty.
func SplitCounts(n int, split mix.Split) (uncontrolled, controlled int) {
	if n <= 0 {
		return 0, 0
	}
	s := split.Normalize()
	controlled = int(math.Round(float64(n) * s.Controlled))
	controlled = min(max(controlled, 0), n)
	uncontrolled = n - controlled

	if n >= 2 && s.Controlled > 0 && s.Uncontrolled > 0 {
		switch {
		case controlled == 0:
			controlled, uncontrolled = 1, n-1
		case uncontrolled == 0:
			uncontrolled, controlled = 1, n-1
		}
	}
	return uncontrolled, controlled
}

// AllocateEV selects EV hosts among all customers and splits them into
// uncontrolled and controlled charging groups.
func AllocateEV(m *feeder.Model, mx mix.Mix) EV {
	pool := m.Bases()
	ev := EV{
		Requested: roundCount(mx.EVPercentage, len(pool)),
		Split:     mx.EVSplit.Normalize(),
	}

	n := ev.Requested
	if n == 1 && len(pool) >= 2 && ev.Split.Controlled > 0 && ev.Split.Uncontrolled > 0 {
		n = 2
		ev.Bumped = true
	}
	if n == 0 {
		return ev
	}

	r := newRand(mx.Seeds.EV, m.Substation, m.Feeder, "ev")
	hosts := shuffled(r, pool)
	if n < len(hosts) {
		hosts = hosts[:n]
	}
	ev.Hosts = hosts

	un, _ := SplitCounts(len(hosts), ev.Split)
	ev.Uncontrolled = append([]string(nil), hosts[:un]...)
	ev.Controlled = append([]string(nil), hosts[un:]...)
	return ev
}
