package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/gridmix/internal/audit"
	"github.com/danieljhkim/gridmix/internal/clock"
	"github.com/danieljhkim/gridmix/internal/config"
	"github.com/danieljhkim/gridmix/internal/fsops"
	"github.com/danieljhkim/gridmix/internal/hash"
	"github.com/danieljhkim/gridmix/internal/solver"
	"github.com/danieljhkim/gridmix/internal/state"
)

const testLoads = `New Load.res1_1 conn=wye bus1=b1.1 phases=1 kV=0.12 kW=2 kvar=0.5 yearly=res_kw_1
New Load.res1_2 conn=wye bus1=b1.2 phases=1 kV=0.12 kW=2 kvar=0.5 yearly=res_kw_1
New Load.res2_1 conn=wye bus1=b2.1 phases=1 kV=0.12 kW=2 kvar=0.5 yearly=res_kw_2
New Load.res2_2 conn=wye bus1=b2.2 phases=1 kV=0.12 kW=2 kvar=0.5 yearly=res_kw_2
New Load.com1_1 conn=wye bus1=b3.1.2.3 phases=3 kV=0.208 kW=20 kvar=2 yearly=com_kw_1
`

const testShapes = `New Loadshape.res_kw_1 npts=8760 interval=1 mult=(file=res_kw_1.csv) qmult=(file=res_kvar_1.csv)
New Loadshape.res_kw_2 npts=8760 interval=1 mult=(file=res_kw_2.csv)
New Loadshape.com_kw_1 npts=8760 interval=1 mult=(file=com_kw_1.csv)
`

const testMaster = `Clear
New Circuit.test basekv=12.47
Redirect LoadShapes.dss
Redirect Lines.dss
Redirect Loads.dss
New Monitor.m1 element=Line.l1 terminal=1 mode=1
New Monitor.m2 element=Line.l1 terminal=1 mode=0
Solve mode=yearly stepsize=15m number=35040
Export monitors m1
Export monitors m2
`

const testMixes = `base:
  shares: {baseline: 1}
ev:
  shares: {baseline: 0.5, dm: 0.5}
  ev_perc: 0.5
  storage_perc_3ph: 1
  pv_perc_3ph: 1
`

type testEnv struct {
	root    string
	cfg     *config.DeployConfig
	batches string
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func writeFeeder(t *testing.T, dir, loads string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "Loads.dss"), loads)
	writeFile(t, filepath.Join(dir, "LoadShapes.dss"), testShapes)
	writeFile(t, filepath.Join(dir, "Master.dss"), testMaster)
	writeFile(t, filepath.Join(dir, "Lines.dss"), "New Line.l1 bus1=src bus2=b1\n")
}

// newTestEnv lays out templates p1u/{p1udt1, p1udt2, p1udt9, notes} where
// p1udt2 is mapped to circuit 7, p1udt9 is skipped and notes holds no loads.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	templates := filepath.Join(root, "templates")

	writeFeeder(t, filepath.Join(templates, "p1u", "p1udt1"), testLoads)
	writeFeeder(t, filepath.Join(templates, "p1u", "p1udt2"), testLoads)
	writeFeeder(t, filepath.Join(templates, "p1u", "p1udt9"), testLoads)
	writeFile(t, filepath.Join(templates, "p1u", "notes", "README.txt"), "not a feeder")

	bucket := filepath.Join(root, "curves", "baseline", "daily_csvs", "P1U_circuit_1_winter")
	writeFile(t, filepath.Join(bucket, "res_kw_1.csv"), "1\n2\n3\n")
	writeFile(t, filepath.Join(bucket, "res_kvar_1.csv"), "0.1\n0.2\n0.3\n")
	writeFile(t, filepath.Join(root, "mixes.yaml"), testMixes)

	cfg := config.Default()
	cfg.TemplateRoot = templates
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.MixFile = filepath.Join(root, "mixes.yaml")
	cfg.State = "p1u"
	cfg.Curves.Baseline = filepath.Join(root, "curves", "baseline")
	cfg.CircuitMap = map[string]int{"p1udt2": 7}
	cfg.Skip = []string{"p1udt9"}
	cfg.Workers = 2
	require.NoError(t, cfg.Validate())

	return &testEnv{root: root, cfg: cfg, batches: filepath.Join(root, "batches")}
}

func (env *testEnv) engine(factory solver.Factory) *Engine {
	fs := fsops.NewRealFS()
	store := state.NewFileManifestStore(fs, env.batches)
	clk := clock.NewFakeClock(time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC))
	e := New(store, fs, hash.NewSHA256Hasher(), clk, factory, nil)
	e.newID = func() string { return "batch-1" }
	return e
}

// exportingSolver converges and drops m1/m2 monitor exports of size bytes.
func exportingSolver(size int) solver.Factory {
	return func() solver.Engine {
		fe := solver.NewFakeEngine()
		fe.OnSolve = func(ctx context.Context, h solver.Handle) error {
			body := []byte(strings.Repeat("x", size))
			for _, name := range []string{"test_Mon_m1_1.csv", "test_Mon_m2_1.csv"} {
				if err := os.WriteFile(filepath.Join(h.Dir, name), body, 0644); err != nil {
					return err
				}
			}
			return nil
		}
		return fe
	}
}

func instanceNames(res *DeployResult) []string {
	var out []string
	for _, inst := range res.Instances {
		out = append(out, inst.Instance)
	}
	return out
}

func TestDiscoverFeeders(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(nil)

	feeders, err := e.discoverFeeders(env.cfg, nil)
	require.NoError(t, err)
	require.Len(t, feeders, 2)
	assert.Equal(t, "p1udt1", feeders[0].Name)
	assert.Equal(t, 1, feeders[0].Circuit)
	assert.Equal(t, "p1udt2", feeders[1].Name)
	assert.Equal(t, 7, feeders[1].Circuit)

	env.cfg.MaxFeeders = 1
	feeders, err = e.discoverFeeders(env.cfg, nil)
	require.NoError(t, err)
	assert.Len(t, feeders, 1)

	env.cfg.MaxFeeders = 0
	feeders, err = e.discoverFeeders(env.cfg, []string{"P1UDT2"})
	require.NoError(t, err)
	require.Len(t, feeders, 1)
	assert.Equal(t, 7, feeders[0].Circuit)
}

func TestDeployCreatesInstances(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(nil)

	res, err := e.Deploy(context.Background(), &DeployRequest{Config: env.cfg})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"p1u_circuit_1_base", "p1u_circuit_1_ev",
		"p1u_circuit_7_base", "p1u_circuit_7_ev",
	}, instanceNames(res))
	assert.Empty(t, res.Failures)

	inst := filepath.Join(env.cfg.OutputDir, "p1u_circuit_1_ev")
	for _, rel := range []string{
		"p1udt1/Loads.dss",
		"p1udt1/Loads_original.dss",
		"p1udt1/LoadShapes_original.dss",
		"p1udt1/Master.dss",
		"p1udt1/Lines.dss",
		"p1udt1/Storage.dss",
		"p1udt1/PVSystems.dss",
		"p1udt1/LoadShapes_EV.dss",
		"profiles/res_kw_1.csv",
		"profiles/res_kvar_1.csv",
		state.ManifestFile,
		state.ProvenanceFile,
	} {
		assert.FileExists(t, filepath.Join(inst, rel))
	}

	master, err := os.ReadFile(filepath.Join(inst, "p1udt1", "Master.dss"))
	require.NoError(t, err)
	assert.Contains(t, string(master), "Solve mode=daily stepsize=15m number=96")
	assert.Contains(t, string(master), "Redirect Storage.dss")

	// only circuit 1 has curves; circuit 7 falls back to flat shapes
	flat, err := os.ReadFile(filepath.Join(env.cfg.OutputDir, "p1u_circuit_7_base", "p1udt2", "LoadShapes.dss"))
	require.NoError(t, err)
	assert.NotContains(t, string(flat), "file=")

	for _, name := range []string{audit.SummaryFile, audit.FullFile, audit.FullJSONFile} {
		assert.FileExists(t, filepath.Join(env.cfg.OutputDir, name))
	}
	assert.Len(t, res.AuditFiles, 3)

	batch, err := e.store.LoadBatch("batch-1")
	require.NoError(t, err)
	assert.Equal(t, instanceNames(res), batch.Instances)
	assert.Empty(t, batch.Failures)
}

func TestDeployManifestAndProvenance(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(nil)

	_, err := e.Deploy(context.Background(), &DeployRequest{Config: env.cfg, Mixes: []string{"ev"}})
	require.NoError(t, err)

	inst := filepath.Join(env.cfg.OutputDir, "p1u_circuit_1_ev")
	m, err := e.store.LoadManifest(inst)
	require.NoError(t, err)
	assert.Equal(t, "p1udt1", m.Feeder)
	assert.Equal(t, "P1U_circuit_1_winter", m.Bucket)
	assert.Equal(t, []string{"com1_1"}, m.StorageTargets)
	assert.Equal(t, []string{"com1_1"}, m.PVTargets)
	assert.True(t, m.DisjointRelaxed)
	assert.Equal(t, 2, m.EV.Requested)
	assert.Len(t, m.EVLoads, 4)

	p, err := e.store.LoadProvenance(inst)
	require.NoError(t, err)
	assert.Equal(t, "batch-1", p.BatchID)
	assert.Equal(t, Version, p.Version)

	data, err := os.ReadFile(filepath.Join(inst, "p1udt1", "Loads.dss"))
	require.NoError(t, err)
	assert.Equal(t, hash.NewSHA256Hasher().HashBytes(data), p.Checksums["p1udt1/Loads.dss"])
	assert.Contains(t, p.Checksums, state.ManifestFile)
}

func TestDeployDeterministic(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(nil)

	outA := env.cfg.OutputDir
	_, err := e.Deploy(context.Background(), &DeployRequest{Config: env.cfg})
	require.NoError(t, err)

	env.cfg.OutputDir = filepath.Join(env.root, "out2")
	_, err = e.Deploy(context.Background(), &DeployRequest{Config: env.cfg})
	require.NoError(t, err)

	for _, rel := range []string{
		"p1u_circuit_1_ev/p1udt1/Loads.dss",
		"p1u_circuit_1_ev/p1udt1/Storage.dss",
		"p1u_circuit_1_ev/p1udt1/LoadShapes_EV.dss",
		"p1u_circuit_1_ev/" + state.ManifestFile,
		audit.FullFile,
	} {
		a, err := os.ReadFile(filepath.Join(outA, rel))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(env.cfg.OutputDir, rel))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), rel)
	}
}

func TestDeployDryRun(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(nil)

	res, err := e.Deploy(context.Background(), &DeployRequest{Config: env.cfg, DryRun: true})
	require.NoError(t, err)
	assert.Len(t, res.Plan.Jobs, 4)
	assert.Empty(t, res.Instances)
	assert.NoDirExists(t, env.cfg.OutputDir)
}

func TestDeploySkipsExistingUnlessForced(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(nil)
	ctx := context.Background()

	_, err := e.Deploy(ctx, &DeployRequest{Config: env.cfg})
	require.NoError(t, err)

	stale := filepath.Join(env.cfg.OutputDir, "p1u_circuit_1_base", "stale.txt")
	writeFile(t, stale, "left over")

	res, err := e.Deploy(ctx, &DeployRequest{Config: env.cfg})
	require.NoError(t, err)
	assert.Empty(t, res.Instances)
	assert.Len(t, res.Plan.Conflicts, 4)
	assert.FileExists(t, stale)

	res, err = e.Deploy(ctx, &DeployRequest{Config: env.cfg, Force: true})
	require.NoError(t, err)
	assert.Len(t, res.Instances, 4)
	assert.NoFileExists(t, stale)
}

func TestDeployUnresolvedShapeFailsOnlyThatFeeder(t *testing.T) {
	env := newTestEnv(t)
	writeFile(t, filepath.Join(env.cfg.TemplateRoot, "p1u", "p1udt2", "Loads.dss"),
		testLoads+"New Load.bad_1 bus1=b9.1 phases=1 kV=0.12 kW=1 yearly=missing_shape\n")
	e := env.engine(nil)

	res, err := e.Deploy(context.Background(), &DeployRequest{Config: env.cfg})
	require.ErrorIs(t, err, ErrJobsFailed)
	require.NotNil(t, res)
	assert.Equal(t, []string{"p1u_circuit_1_base", "p1u_circuit_1_ev"}, instanceNames(res))
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "p1u_circuit_7_base", res.Failures[0].Instance)

	batch, err := e.store.LoadBatch("batch-1")
	require.NoError(t, err)
	assert.Contains(t, batch.Failures, "p1u_circuit_7_ev")
}

func TestDeployUnknownMix(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(nil)

	_, err := e.Deploy(context.Background(), &DeployRequest{Config: env.cfg, Mixes: []string{"nope"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeployNoFeeders(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Substations = []string{"p9u"}
	e := env.engine(nil)

	_, err := e.Deploy(context.Background(), &DeployRequest{Config: env.cfg})
	assert.ErrorIs(t, err, ErrNoFeeders)
}

func TestDeployWithRunAndCheck(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(exportingSolver(2048))

	res, err := e.Deploy(context.Background(), &DeployRequest{Config: env.cfg, Run: true})
	require.NoError(t, err)
	for _, inst := range res.Instances {
		require.NotNil(t, inst.Run, inst.Instance)
		assert.True(t, inst.Run.Converged)
		assert.Equal(t, []string{"test_Mon_m1_1.csv", "test_Mon_m2_1.csv"}, inst.Run.Exports)
		assert.FileExists(t, filepath.Join(inst.Dir, state.RunResultFile))
	}

	check, err := e.Check(&CheckRequest{OutputDir: env.cfg.OutputDir})
	require.NoError(t, err)
	require.Len(t, check.Rows, 4)
	for _, row := range check.Rows {
		assert.True(t, row.Pass, row.Instance)
	}
	report, err := os.ReadFile(check.ReportPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(report), "circuit_folder,status,reasons\n"))
	assert.Contains(t, string(report), "p1u_circuit_1_base,PASS,\n")
	assert.Empty(t, check.FailingPath)
}

func TestCheckFailures(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(exportingSolver(100))

	_, err := e.Deploy(context.Background(), &DeployRequest{Config: env.cfg, Run: true, Mixes: []string{"base"}})
	require.NoError(t, err)

	// circuit 7 loses its m2 export; circuit 1 keeps undersized exports
	require.NoError(t, os.Remove(filepath.Join(env.cfg.OutputDir, "p1u_circuit_7_base", "p1udt2", "test_Mon_m2_1.csv")))

	check, err := e.Check(&CheckRequest{OutputDir: env.cfg.OutputDir})
	require.ErrorIs(t, err, ErrCheckFailed)
	require.Len(t, check.Rows, 2)

	assert.False(t, check.Rows[0].Pass)
	assert.Contains(t, strings.Join(check.Rows[0].Reasons, " "), "m1 CSV too small")
	assert.Contains(t, check.Rows[1].Reasons, "No m2 CSV found.")

	failing, err := os.ReadFile(check.FailingPath)
	require.NoError(t, err)
	assert.Equal(t, "p1u_circuit_1_base\np1u_circuit_7_base", string(failing))
}

func TestRunPreparedInstances(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(exportingSolver(2048))
	ctx := context.Background()

	_, err := e.Deploy(ctx, &DeployRequest{Config: env.cfg})
	require.NoError(t, err)

	res, err := e.Run(ctx, &RunRequest{OutputDir: env.cfg.OutputDir, Pattern: "*_ev", Workers: 2})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "p1u_circuit_1_ev", res.Results[0].Instance)
	assert.Equal(t, "p1u_circuit_7_ev", res.Results[1].Instance)
	assert.Zero(t, res.Failed)

	rr, err := e.store.LoadRunResult(filepath.Join(env.cfg.OutputDir, "p1u_circuit_1_ev"))
	require.NoError(t, err)
	assert.True(t, rr.Converged)
	assert.Equal(t, solver.Daily(), rr.Mode)

	_, err = e.store.LoadRunResult(filepath.Join(env.cfg.OutputDir, "p1u_circuit_1_base"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunNotConverged(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(func() solver.Engine {
		fe := solver.NewFakeEngine()
		fe.Converged = false
		return fe
	})
	ctx := context.Background()

	_, err := e.Deploy(ctx, &DeployRequest{Config: env.cfg, Mixes: []string{"base"}})
	require.NoError(t, err)

	res, err := e.Run(ctx, &RunRequest{OutputDir: env.cfg.OutputDir, Instances: []string{"p1u_circuit_1_base"}})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Results[0].Err, "did not converge")
}

func TestRunErrors(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(exportingSolver(2048))
	ctx := context.Background()

	_, err := e.Run(ctx, &RunRequest{OutputDir: env.cfg.OutputDir})
	assert.Error(t, err)

	require.NoError(t, os.MkdirAll(env.cfg.OutputDir, 0755))
	_, err = e.Run(ctx, &RunRequest{OutputDir: env.cfg.OutputDir})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.Run(ctx, &RunRequest{OutputDir: env.cfg.OutputDir, Instances: []string{"../elsewhere"}, CWD: env.cfg.OutputDir})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.Run(ctx, &RunRequest{OutputDir: env.cfg.OutputDir, Pattern: "["})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPlan(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(nil)

	res, err := e.Plan(context.Background(), &PlanRequest{Config: env.cfg, Feeder: "p1udt1", Mix: "ev"})
	require.NoError(t, err)
	assert.Equal(t, "p1u_circuit_1_ev", res.Manifest.Instance)
	assert.Equal(t, []string{"com1_1"}, res.Manifest.StorageTargets)
	assert.Equal(t, 6, res.RequiredCurves)
	assert.NoDirExists(t, env.cfg.OutputDir)

	_, err = e.Plan(context.Background(), &PlanRequest{Config: env.cfg, Feeder: "p1udt9", Mix: "ev"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.Plan(context.Background(), &PlanRequest{Config: env.cfg, Feeder: "p1udt1"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMixes(t *testing.T) {
	env := newTestEnv(t)
	e := env.engine(nil)

	res, err := e.Mixes(&MixesRequest{MixFile: env.cfg.MixFile, Defaults: env.cfg.MixDefaults})
	require.NoError(t, err)
	require.Len(t, res.Mixes, 2)
	assert.Equal(t, "base", res.Mixes[0].Name)
	assert.Equal(t, 0.5, res.Mixes[1].Shares.DemandManaged)
	assert.Equal(t, 0.8, res.Mixes[1].EVLevel2)

	_, err = e.Mixes(&MixesRequest{})
	assert.ErrorIs(t, err, ErrValidation)
}
