// Package mix loads scenario mix declarations: the heating category shares
// and the EV, storage and PV penetration parameters that each scenario
// instance is generated from.
package mix

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrMalformed is returned for mix files that cannot be decoded into a
// name → parameters mapping.
var ErrMalformed = errors.New("malformed mix declaration")

// Category is a heating category.
type Category string

const (
	Baseline      Category = "baseline"
	DemandManaged Category = "demand_managed"
	Uncontrolled  Category = "uncontrolled"
)

// Categories lists the heating categories in their stable order. Ties in
// apportionment are always broken in this order.
var Categories = []Category{Baseline, DemandManaged, Uncontrolled}

// Code returns the short label used in declarations and audit tables:
// "baseline", "dm" or "un".
func (c Category) Code() string {
	switch c {
	case DemandManaged:
		return "dm"
	case Uncontrolled:
		return "un"
	default:
		return "baseline"
	}
}

// Shares are the requested heating category fractions.
type Shares struct {
	Baseline      float64 `yaml:"baseline" json:"baseline"`
	DemandManaged float64 `yaml:"dm" json:"dm"`
	Uncontrolled  float64 `yaml:"un" json:"un"`
}

// Slice returns the shares in Categories order.
func (s Shares) Slice() []float64 {
	return []float64{s.Baseline, s.DemandManaged, s.Uncontrolled}
}

// Of returns the share of category c.
func (s Shares) Of(c Category) float64 {
	switch c {
	case DemandManaged:
		return s.DemandManaged
	case Uncontrolled:
		return s.Uncontrolled
	default:
		return s.Baseline
	}
}

// Normalize clips negative shares to zero and rescales to sum to one.
// Shares with no positive mass become 100% baseline.
func (s Shares) Normalize() Shares {
	b, d, u := max(s.Baseline, 0), max(s.DemandManaged, 0), max(s.Uncontrolled, 0)
	total := b + d + u
	if total <= 0 {
		return Shares{Baseline: 1}
	}
	return Shares{Baseline: b / total, DemandManaged: d / total, Uncontrolled: u / total}
}

// Split is the requested controlled/uncontrolled EV fraction.
type Split struct {
	Controlled   float64 `json:"controlled"`
	Uncontrolled float64 `json:"uncontrolled"`
}

// Normalize clips negatives to zero and rescales; a zero split becomes 50/50.
func (s Split) Normalize() Split {
	c, u := max(s.Controlled, 0), max(s.Uncontrolled, 0)
	total := c + u
	if total <= 0 {
		return Split{Controlled: 0.5, Uncontrolled: 0.5}
	}
	return Split{Controlled: c / total, Uncontrolled: u / total}
}

// Seeds are the user seeds for each randomized allocation.
type Seeds struct {
	Heating int64
	EV      int64
	Storage int64
	PV      int64
}

// Mix is a fully resolved scenario mix.
type Mix struct {
	Name              string
	Shares            Shares
	EVPercentage      float64
	EVLevel2          float64
	EVSplit           Split
	StoragePercentage float64
	PVPercentage      float64
	DisjointSets      bool
	Seeds             Seeds
}

// Defaults fill in parameters a declaration leaves out.
type Defaults struct {
	HeatingSeed  int64
	EVLevel2     float64
	EVSplit      Split
	DisjointSets bool
}

// DefaultDefaults returns the stock defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		HeatingSeed:  123,
		EVLevel2:     0.80,
		EVSplit:      Split{Controlled: 0.5, Uncontrolled: 0.5},
		DisjointSets: true,
	}
}

// declaration mirrors the on-disk form. Pointers distinguish absent keys
// from explicit zeros.
type declaration struct {
	Shares         Shares   `yaml:"shares"`
	HeatingSeed    *int64   `yaml:"heating_seed"`
	EVPerc         *float64 `yaml:"ev_perc"`
	EVLevel2Perc   *float64 `yaml:"ev_lvl2_perc"`
	EVSeed         *int64   `yaml:"ev_seed"`
	StoragePerc3ph *float64 `yaml:"storage_perc_3ph"`
	StorageSeed    *int64   `yaml:"storage_seed"`
	PVPerc3ph      *float64 `yaml:"pv_perc_3ph"`
	PVSeed         *int64   `yaml:"pv_seed"`
	DisjointSets   *bool    `yaml:"disjoint_sets"`
	EVSplit        *struct {
		Controlled   *float64 `yaml:"controlled"`
		Uncontrolled *float64 `yaml:"uncontrolled"`
	} `yaml:"ev_split"`
}

// Parse decodes a mix declaration. Mixes are returned in declaration order.
func Parse(data []byte, defaults Defaults) ([]Mix, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must map mix names to parameters", ErrMalformed)
	}

	var out []Mix
	seen := make(map[string]bool)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		name := doc.Content[i].Value
		body := doc.Content[i+1]
		if name == "" {
			return nil, fmt.Errorf("%w: empty mix name", ErrMalformed)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate mix %q", ErrMalformed, name)
		}
		seen[name] = true
		if body.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: mix %q must be a mapping", ErrMalformed, name)
		}

		var d declaration
		if err := body.Decode(&d); err != nil {
			return nil, fmt.Errorf("%w: mix %q: %v", ErrMalformed, name, err)
		}
		out = append(out, resolve(name, d, defaults))
	}
	return out, nil
}

func resolve(name string, d declaration, defaults Defaults) Mix {
	m := Mix{
		Name:         name,
		Shares:       d.Shares,
		EVLevel2:     defaults.EVLevel2,
		EVSplit:      defaults.EVSplit,
		DisjointSets: defaults.DisjointSets,
	}

	m.Seeds.Heating = defaults.HeatingSeed
	if d.HeatingSeed != nil {
		m.Seeds.Heating = *d.HeatingSeed
	}
	m.Seeds.EV = orSeed(d.EVSeed, m.Seeds.Heating)
	m.Seeds.Storage = orSeed(d.StorageSeed, m.Seeds.Heating)
	m.Seeds.PV = orSeed(d.PVSeed, m.Seeds.Heating)

	if d.EVPerc != nil {
		m.EVPercentage = *d.EVPerc
	}
	if d.EVLevel2Perc != nil {
		m.EVLevel2 = *d.EVLevel2Perc
	}
	if d.StoragePerc3ph != nil {
		m.StoragePercentage = *d.StoragePerc3ph
	}
	if d.PVPerc3ph != nil {
		m.PVPercentage = *d.PVPerc3ph
	}
	if d.DisjointSets != nil {
		m.DisjointSets = *d.DisjointSets
	}
	if d.EVSplit != nil {
		if d.EVSplit.Controlled != nil {
			m.EVSplit.Controlled = *d.EVSplit.Controlled
		}
		if d.EVSplit.Uncontrolled != nil {
			m.EVSplit.Uncontrolled = *d.EVSplit.Uncontrolled
		} else if d.EVSplit.Controlled != nil {
			m.EVSplit.Uncontrolled = 1 - *d.EVSplit.Controlled
		}
	}
	return m
}

func orSeed(v *int64, fallback int64) int64 {
	if v != nil {
		return *v
	}
	return fallback
}

// Filter keeps only the named mixes, preserving declaration order. An empty
// names list keeps everything.
func Filter(mixes []Mix, names []string) []Mix {
	if len(names) == 0 {
		return mixes
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Mix
	for _, m := range mixes {
		if want[m.Name] {
			out = append(out, m)
		}
	}
	return out
}
