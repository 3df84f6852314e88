package mix

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlMixes = `
hp_heavy:
  shares: {baseline: 0.55, dm: 0.25, un: 0.20}
  heating_seed: 7
  ev_perc: 0.10
  ev_split: {controlled: 0.3}
  storage_perc_3ph: 0.5
  pv_perc_3ph: 0.25
  pv_seed: 99
all_base:
  shares: {baseline: 1}
  disjoint_sets: false
`

func TestParseYAML(t *testing.T) {
	mixes, err := Parse([]byte(yamlMixes), DefaultDefaults())
	require.NoError(t, err)
	require.Len(t, mixes, 2)

	hp := mixes[0]
	assert.Equal(t, "hp_heavy", hp.Name)
	assert.Equal(t, Shares{Baseline: 0.55, DemandManaged: 0.25, Uncontrolled: 0.20}, hp.Shares)
	assert.Equal(t, int64(7), hp.Seeds.Heating)
	assert.Equal(t, int64(7), hp.Seeds.EV, "ev seed defaults to heating seed")
	assert.Equal(t, int64(7), hp.Seeds.Storage)
	assert.Equal(t, int64(99), hp.Seeds.PV)
	assert.InDelta(t, 0.80, hp.EVLevel2, 1e-12)
	assert.InDelta(t, 0.3, hp.EVSplit.Controlled, 1e-12)
	assert.InDelta(t, 0.7, hp.EVSplit.Uncontrolled, 1e-12)
	assert.True(t, hp.DisjointSets)

	base := mixes[1]
	assert.Equal(t, "all_base", base.Name)
	assert.Equal(t, int64(123), base.Seeds.Heating)
	assert.False(t, base.DisjointSets)
	assert.Equal(t, Split{Controlled: 0.5, Uncontrolled: 0.5}, base.EVSplit)
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{"m2": {"shares": {"baseline": 0.2, "dm": 0.8, "un": 0}, "ev_perc": 0.5}, "m1": {"shares": {"un": 1}}}`)
	mixes, err := Parse(data, DefaultDefaults())
	require.NoError(t, err)
	require.Len(t, mixes, 2)
	assert.Equal(t, "m2", mixes[0].Name, "declaration order is preserved")
	assert.Equal(t, "m1", mixes[1].Name)
	assert.InDelta(t, 0.5, mixes[0].EVPercentage, 1e-12)
}

func TestParseMalformed(t *testing.T) {
	cases := map[string]string{
		"list at top":     "- a\n- b\n",
		"scalar mix body": "m1: 3\n",
		"bad yaml":        "m1: {shares: [\n",
		"bad field type":  "m1: {ev_perc: lots}\n",
		"duplicate name":  "m1: {}\nm1: {}\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src), DefaultDefaults())
			assert.True(t, errors.Is(err, ErrMalformed), "err = %v", err)
		})
	}
}

func TestSharesNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Shares
		want Shares
	}{
		{"already normalized", Shares{0.5, 0.25, 0.25}, Shares{0.5, 0.25, 0.25}},
		{"rescaled", Shares{2, 1, 1}, Shares{0.5, 0.25, 0.25}},
		{"all zero", Shares{}, Shares{Baseline: 1}},
		{"all negative", Shares{-1, -2, 0}, Shares{Baseline: 1}},
		{"negative clipped", Shares{-1, 1, 1}, Shares{0, 0.5, 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.InDelta(t, tt.want.Baseline, got.Baseline, 1e-12)
			assert.InDelta(t, tt.want.DemandManaged, got.DemandManaged, 1e-12)
			assert.InDelta(t, tt.want.Uncontrolled, got.Uncontrolled, 1e-12)
		})
	}
}

func TestSplitNormalize(t *testing.T) {
	assert.Equal(t, Split{0.5, 0.5}, Split{}.Normalize())
	assert.Equal(t, Split{0.5, 0.5}, Split{-1, -1}.Normalize())
	assert.Equal(t, Split{1, 0}, Split{2, -3}.Normalize())
	assert.Equal(t, Split{0.25, 0.75}, Split{1, 3}.Normalize())
}

func TestParseAndFilter(t *testing.T) {
	mixes, err := Parse([]byte(yamlMixes), DefaultDefaults())
	require.NoError(t, err)

	only := Filter(mixes, []string{"all_base"})
	require.Len(t, only, 1)
	assert.Equal(t, "all_base", only[0].Name)
	assert.Len(t, Filter(mixes, nil), 2)
}

func TestCategoryCode(t *testing.T) {
	assert.Equal(t, "baseline", Baseline.Code())
	assert.Equal(t, "dm", DemandManaged.Code())
	assert.Equal(t, "un", Uncontrolled.Code())
}
