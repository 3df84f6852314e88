package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/gridmix/internal/allocate"
	"github.com/danieljhkim/gridmix/internal/dss"
	"github.com/danieljhkim/gridmix/internal/feeder"
	"github.com/danieljhkim/gridmix/internal/fsops"
	"github.com/danieljhkim/gridmix/internal/mix"
	"github.com/danieljhkim/gridmix/internal/rewrite"
	"github.com/danieljhkim/gridmix/internal/solver"
)

const testLoads = `New Load.res1_1 bus1=b1.1 phases=1 kV=0.12 kW=2 yearly=s1
New Load.res1_2 bus1=b1.2 phases=1 kV=0.12 kW=2 yearly=s1
New Load.res2_1 bus1=b2.1 phases=1 kV=0.12 kW=2 yearly=s2
New Load.com1_1 bus1=c1.1.2.3 phases=3 kV=0.208 kW=20 yearly=s3
`

const testShapes = `New Loadshape.s1 npts=8760 mult=(file=s1.csv)
New Loadshape.s2 npts=8760 mult=(file=s2.csv)
New Loadshape.s3 npts=8760 mult=(file=s3.csv)
`

func testModel(t *testing.T) *feeder.Model {
	t.Helper()
	lf, err := dss.Parse(feeder.LoadsName, []byte(testLoads))
	require.NoError(t, err)
	sf, err := dss.Parse(feeder.ShapesName, []byte(testShapes))
	require.NoError(t, err)
	m, err := feeder.Parse("p1u", "p1udt1", lf, sf, nil)
	require.NoError(t, err)
	return m
}

func testMix() mix.Mix {
	return mix.Mix{
		Name:              "ev50",
		Shares:            mix.Shares{Baseline: 0.5, DemandManaged: 0.5},
		EVPercentage:      0.5,
		EVLevel2:          0.8,
		EVSplit:           mix.Split{Controlled: 0.5, Uncontrolled: 0.5},
		StoragePercentage: 1,
		PVPercentage:      1,
		DisjointSets:      true,
		Seeds:             mix.Seeds{Heating: 123, EV: 1, Storage: 2, PV: 3},
	}
}

func TestNewManifest(t *testing.T) {
	m := testModel(t)
	mx := testMix()
	alloc := allocate.Resolve(m, mx)
	report := rewrite.Report{
		EVUncontrolled: []string{"EVu_res2_1", "EVu_res2_2"},
		EVControlled:   []string{"EVc_res1_1", "EVc_res1_2"},
	}

	got := NewManifest(ManifestInput{
		Instance: "p1u_circuit_1_ev50",
		Circuit:  1,
		Season:   "winter",
		Bucket:   "P1U_circuit_1_winter",
		Model:    m,
		Mix:      mx,
		Alloc:    alloc,
		Report:   report,
	})

	assert.Equal(t, "p1u", got.Substation)
	assert.Equal(t, "p1udt1", got.Feeder)
	assert.Equal(t, "ev50", got.Mix)
	assert.Equal(t, []string{"EVc_res1_1", "EVc_res1_2", "EVu_res2_1", "EVu_res2_2"}, got.EVLoads)
	assert.Equal(t, []string{"com1_1"}, got.StorageTargets)
	assert.Equal(t, 0.5, got.EVSplit.Controlled)
	assert.Equal(t, int64(2), got.Storage.Seed)
	assert.Equal(t, 1, got.Storage.Eligible)

	// a single three-phase customer cannot host disjoint storage and PV
	assert.True(t, got.DisjointRelaxed)
	assert.Equal(t, []string{"com1_1"}, got.PVTargets)

	assert.Len(t, got.Heating.Assignment, 3)
	total := 0
	for _, code := range []string{"baseline", "dm", "un"} {
		total += got.Heating.BaseCounts[code]
	}
	assert.Equal(t, 3, total)
	for _, code := range got.Heating.Assignment {
		assert.Contains(t, []string{"baseline", "dm", "un"}, code)
	}
}

func TestNewManifestEmptyListsEncodeAsArrays(t *testing.T) {
	m := testModel(t)
	mx := testMix()
	mx.EVPercentage, mx.StoragePercentage, mx.PVPercentage = 0, 0, 0

	got := NewManifest(ManifestInput{Model: m, Mix: mx, Alloc: allocate.Resolve(m, mx)})
	assert.NotNil(t, got.EVLoads)
	assert.NotNil(t, got.EVLoadsControlled)
	assert.NotNil(t, got.StorageTargets)
	assert.NotNil(t, got.PVTargets)
	assert.Empty(t, got.StorageTargets)
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileManifestStore(fsops.NewRealFS(), filepath.Join(dir, "batches"))

	m := testModel(t)
	mx := testMix()
	want := NewManifest(ManifestInput{Instance: "p1u_circuit_1_ev50", Model: m, Mix: mx, Alloc: allocate.Resolve(m, mx)})

	inst := filepath.Join(dir, "p1u_circuit_1_ev50")
	require.NoError(t, store.SaveManifest(inst, want))

	data, err := os.ReadFile(filepath.Join(inst, ManifestFile))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "}\n"))
	assert.Contains(t, string(data), `"disjoint_relaxed": true`)
	assert.Contains(t, string(data), `"lvl2_perc": 0.8`)

	got, err := store.LoadManifest(inst)
	require.NoError(t, err)
	assert.Equal(t, want.Heating.Assignment, got.Heating.Assignment)
	assert.Equal(t, want.StorageTargets, got.StorageTargets)
}

func TestManifestBytesDeterministic(t *testing.T) {
	dir := t.TempDir()
	store := NewFileManifestStore(fsops.NewRealFS(), dir)
	m := testModel(t)
	mx := testMix()

	var outputs []string
	for i := 0; i < 2; i++ {
		inst := filepath.Join(dir, "run", string(rune('a'+i)))
		require.NoError(t, store.SaveManifest(inst, NewManifest(ManifestInput{Model: m, Mix: mx, Alloc: allocate.Resolve(m, mx)})))
		data, err := os.ReadFile(filepath.Join(inst, ManifestFile))
		require.NoError(t, err)
		outputs = append(outputs, string(data))
	}
	assert.Equal(t, outputs[0], outputs[1])
}

func TestLoadMissingRecords(t *testing.T) {
	dir := t.TempDir()
	store := NewFileManifestStore(fsops.NewRealFS(), dir)

	_, err := store.LoadManifest(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = store.LoadProvenance(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = store.LoadRunResult(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = store.LoadBatch("nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCorruptManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("{not json"), 0644))

	store := NewFileManifestStore(fsops.NewRealFS(), dir)
	_, err := store.LoadManifest(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal manifest")
}

func TestProvenanceAndRunResult(t *testing.T) {
	dir := t.TempDir()
	store := NewFileManifestStore(fsops.NewRealFS(), dir)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	p := &Provenance{
		BatchID:   "b-1",
		Instance:  "p1u_circuit_1_ev50",
		CreatedAt: now,
		Checksums: map[string]string{"p1udt1/Loads.dss": "abc"},
	}
	require.NoError(t, store.SaveProvenance(dir, p))
	gotP, err := store.LoadProvenance(dir)
	require.NoError(t, err)
	assert.Equal(t, p.Checksums, gotP.Checksums)
	assert.True(t, now.Equal(gotP.CreatedAt))

	r := &solver.RunResult{Instance: "p1u_circuit_1_ev50", Mode: solver.Daily(), Converged: true, Exports: []string{"m1.csv"}}
	require.NoError(t, store.SaveRunResult(dir, r))
	gotR, err := store.LoadRunResult(dir)
	require.NoError(t, err)
	assert.True(t, gotR.Converged)
	assert.Equal(t, solver.Daily(), gotR.Mode)
	assert.Equal(t, []string{"m1.csv"}, gotR.Exports)
}

func TestBatchRecord(t *testing.T) {
	dir := t.TempDir()
	store := NewFileManifestStore(fsops.NewRealFS(), filepath.Join(dir, "batches"))

	b := NewBatchRecord("7f0c", time.Unix(0, 0).UTC())
	b.Instances = append(b.Instances, "p1u_circuit_1_ev50")
	b.Failures["p1u_circuit_2_ev50"] = "boom"
	require.NoError(t, store.SaveBatch(b))

	got, err := store.LoadBatch("7f0c")
	require.NoError(t, err)
	assert.Equal(t, b.Instances, got.Instances)
	assert.Equal(t, "boom", got.Failures["p1u_circuit_2_ev50"])

	assert.Error(t, store.SaveBatch(&BatchRecord{ID: "../escape"}))
}
