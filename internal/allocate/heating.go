package allocate

import (
	"github.com/danieljhkim/gridmix/internal/feeder"
	"github.com/danieljhkim/gridmix/internal/mix"
)

// Heating is the heating category assignment for one feeder and mix.
type Heating struct {
	// Shares are the normalized requested shares.
	Shares mix.Shares

	// Counts is the apportioned number of customers per category.
	Counts map[mix.Category]int

	// Assignment maps every base name to its category.
	Assignment map[string]mix.Category

	// ShapeCategory maps each daily load shape name to the category of the
	// customer that owns it.
	ShapeCategory map[string]mix.Category
}

// ShapeCounts returns the number of distinct shapes per category.
func (h Heating) ShapeCounts() map[mix.Category]int {
	out := make(map[mix.Category]int, len(mix.Categories))
	for _, c := range mix.Categories {
		out[c] = 0
	}
	for _, c := range h.ShapeCategory {
		out[c]++
	}
	return out
}

// CategoryOf returns the category of shape, defaulting to baseline.
func (h Heating) CategoryOf(shape string) mix.Category {
	if c, ok := h.ShapeCategory[shape]; ok {
		return c
	}
	return mix.Baseline
}

// AssignHeating apportions the feeder's customers across heating categories
// and places them by shuffling the sorted base names and the category label
// sequence independently, then pairing them up.
func AssignHeating(m *feeder.Model, mx mix.Mix) Heating {
	shares := mx.Shares.Normalize()
	bases := m.Bases()
	alloc := Apportion(len(bases), shares.Slice())

	h := Heating{
		Shares:        shares,
		Counts:        make(map[mix.Category]int, len(mix.Categories)),
		Assignment:    make(map[string]mix.Category, len(bases)),
		ShapeCategory: make(map[string]mix.Category),
	}

	labels := make([]string, 0, len(bases))
	for i, c := range mix.Categories {
		h.Counts[c] = alloc[i]
		for k := 0; k < alloc[i]; k++ {
			labels = append(labels, string(c))
		}
	}

	r := newRand(mx.Seeds.Heating, m.Substation, m.Feeder, "heating")
	labels = shuffled(r, labels)
	order := shuffled(r, bases)

	for i, base := range order {
		cat := mix.Category(labels[i])
		h.Assignment[base] = cat
		for _, shape := range m.Loads[base].ShapeNames {
			h.ShapeCategory[shape] = cat
		}
	}
	return h
}
