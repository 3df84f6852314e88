// Package allocate decides, for one feeder and one mix, which customers
// fall into each heating category and which host storage, PV and EV
// charging. All randomness is seeded from the mix seeds and the feeder
// identity, so the same inputs always produce the same allocation.
package allocate

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/danieljhkim/gridmix/internal/hash"
)

// Apportion splits n units across shares with the largest-remainder method.
//
// Shares are normalized first; a non-positive total sends everything to
// index 0. Remainder ties are broken by index order. Every positive share
// receives at least one unit when n allows, taking it from the index with
// the most units (lowest index on ties) among those holding more than one.
func Apportion(n int, shares []float64) []int {
	counts := make([]int, len(shares))
	if n <= 0 || len(shares) == 0 {
		return counts
	}

	norm := make([]float64, len(shares))
	total := 0.0
	for i, s := range shares {
		norm[i] = math.Max(s, 0)
		total += norm[i]
	}
	if total <= 0 {
		counts[0] = n
		return counts
	}
	for i := range norm {
		norm[i] /= total
	}

	frac := make([]float64, len(shares))
	assigned := 0
	for i, s := range norm {
		raw := s * float64(n)
		counts[i] = int(math.Floor(raw))
		frac[i] = raw - float64(counts[i])
		assigned += counts[i]
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return frac[order[a]] > frac[order[b]]
	})
	for k := 0; assigned < n; k++ {
		counts[order[k%len(order)]]++
		assigned++
	}

	for i, s := range norm {
		if s <= 0 || counts[i] > 0 {
			continue
		}
		donor := -1
		for j := range counts {
			if j == i || counts[j] <= 1 {
				continue
			}
			if donor == -1 || counts[j] > counts[donor] {
				donor = j
			}
		}
		if donor == -1 {
			continue
		}
		counts[donor]--
		counts[i]++
	}
	return counts
}

// roundCount converts a fraction of a population to a unit count with the
// minimum-one rule: a positive fraction of a non-empty population yields at
// least one unit. The result never exceeds the population.
func roundCount(pct float64, population int) int {
	if pct <= 0 || population <= 0 {
		return 0
	}
	n := int(math.Round(pct * float64(population)))
	if n < 1 {
		n = 1
	}
	if n > population {
		n = population
	}
	return n
}

// newRand returns a generator seeded from a user seed and identity parts.
func newRand(seed int64, parts ...string) *rand.Rand {
	s := hash.Seed(seed, parts...)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// shuffled returns a shuffled copy of items.
func shuffled(r *rand.Rand, items []string) []string {
	out := append([]string(nil), items...)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// take returns the first k items of a seeded shuffle of the sorted pool.
func take(r *rand.Rand, pool []string, k int) []string {
	if k <= 0 || len(pool) == 0 {
		return nil
	}
	sorted := append([]string(nil), pool...)
	sort.Strings(sorted)
	out := shuffled(r, sorted)
	if k < len(out) {
		out = out[:k]
	}
	sort.Strings(out)
	return out
}
