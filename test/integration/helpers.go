package integration

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danieljhkim/gridmix/internal/clock"
	"github.com/danieljhkim/gridmix/internal/config"
	"github.com/danieljhkim/gridmix/internal/engine"
	"github.com/danieljhkim/gridmix/internal/fsops"
	"github.com/danieljhkim/gridmix/internal/hash"
	"github.com/danieljhkim/gridmix/internal/solver"
	"github.com/danieljhkim/gridmix/internal/state"
)

// testFS is a filesystem implementation that tracks files in memory for testing.
// Parent directories are created implicitly on write.
type testFS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

func newTestFS() *testFS {
	return &testFS{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

func (m *testFS) addParents(path string) {
	for dir := filepath.Dir(path); !m.dirs[dir]; dir = filepath.Dir(dir) {
		m.dirs[dir] = true
	}
}

// write stores a file, for fixtures.
func (m *testFS) write(path, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = []byte(body)
	m.addParents(path)
}

func (m *testFS) Stat(path string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.files[path]; ok {
		return &mockFileInfo{name: filepath.Base(path), size: int64(len(data))}, nil
	}
	if m.dirs[path] {
		return &mockFileInfo{name: filepath.Base(path), isDir: true, mode: fs.ModeDir}, nil
	}
	return nil, os.ErrNotExist
}

func (m *testFS) ReadDir(path string) ([]os.DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirs[path] {
		return nil, os.ErrNotExist
	}
	var out []os.DirEntry
	for p, data := range m.files {
		if filepath.Dir(p) == path {
			out = append(out, fs.FileInfoToDirEntry(&mockFileInfo{name: filepath.Base(p), size: int64(len(data))}))
		}
	}
	for p := range m.dirs {
		if p != path && filepath.Dir(p) == path {
			out = append(out, fs.FileInfoToDirEntry(&mockFileInfo{name: filepath.Base(p), isDir: true, mode: fs.ModeDir}))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (m *testFS) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[path] = true
	m.addParents(path)
	return nil
}

func (m *testFS) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := path + string(filepath.Separator)
	for p := range m.files {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(m.files, p)
		}
	}
	for p := range m.dirs {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(m.dirs, p)
		}
	}
	return nil
}

func (m *testFS) Copy(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[src]
	if !ok {
		return os.ErrNotExist
	}
	m.files[dst] = append([]byte(nil), data...)
	m.addParents(dst)
	return nil
}

func (m *testFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), data...)
	m.addParents(path)
	return nil
}

func (m *testFS) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.files[path]; ok {
		return append([]byte(nil), data...), nil
	}
	return nil, os.ErrNotExist
}

func (m *testFS) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, isFile := m.files[path]
	return isFile || m.dirs[path], nil
}

func (m *testFS) ValidateRelPath(relPath string) error { return fsops.ValidateRelPath(relPath) }
func (m *testFS) ValidateIdentifier(id string) error   { return fsops.ValidateIdentifier(id) }

func (m *testFS) read(t *testing.T, path string) string {
	t.Helper()
	data, err := m.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return string(data)
}

// mockFileInfo implements os.FileInfo
type mockFileInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	isDir bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return time.Time{} }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() interface{}   { return nil }

const (
	templateRoot = "/templates"
	outputDir    = "/out"
	mixFile      = "/mixes.yaml"
	curveRoot    = "/curves/baseline"
	batchesDir   = "/gridmix/batches"
)

const feederLoads = `New Load.res1_1 conn=wye bus1=b1.1 phases=1 kV=0.12 kW=2 kvar=0.5 yearly=res_kw_1
New Load.res1_2 conn=wye bus1=b1.2 phases=1 kV=0.12 kW=2 kvar=0.5 yearly=res_kw_1
New Load.res2_1 conn=wye bus1=b2.1 phases=1 kV=0.12 kW=2 kvar=0.5 yearly=res_kw_2
New Load.res2_2 conn=wye bus1=b2.2 phases=1 kV=0.12 kW=2 kvar=0.5 yearly=res_kw_2
New Load.com1_1 conn=wye bus1=b3.1.2.3 phases=3 kV=0.208 kW=20 kvar=2 yearly=com_kw_1
New Load.com2_1 conn=delta bus1=b4.1.2.3 phases=3 kV=0.208 kW=30 kvar=3 yearly=com_kw_1
`

const feederShapes = `New Loadshape.res_kw_1 npts=8760 interval=1 mult=(file=res_kw_1.csv) qmult=(file=res_kvar_1.csv)
New Loadshape.res_kw_2 npts=8760 interval=1 mult=(file=res_kw_2.csv)
New Loadshape.com_kw_1 npts=8760 interval=1 mult=(file=com_kw_1.csv)
`

const feederMaster = `Clear
New Circuit.test basekv=12.47
Redirect LoadShapes.dss
Redirect Loads.dss
New Monitor.m1 element=Line.l1 terminal=1 mode=1
New Monitor.m2 element=Line.l1 terminal=1 mode=0
Solve mode=yearly stepsize=15m number=35040
Export monitors m1
Export monitors m2
Plot monitor object=m1
`

const scenarioMixes = `base:
  shares: {baseline: 1}
electrified:
  shares: {baseline: 0.4, dm: 0.3, un: 0.3}
  heating_seed: 7
  ev_perc: 0.5
  storage_perc_3ph: 0.5
  pv_perc_3ph: 1
`

type testHarness struct {
	eng *engine.Engine
	fs  *testFS
	cfg *config.DeployConfig

	// solves counts fake solver runs.
	mu     sync.Mutex
	solves int
}

// setupTestEngine builds an engine over an in-memory filesystem holding
// substation p2u with feeders p2udt1 and p2udt2, baseline curves for
// circuit 1, and a fake solver that exports m1/m2 monitors of exportSize
// bytes into the instance's feeder directory.
func setupTestEngine(t *testing.T, exportSize int) *testHarness {
	t.Helper()
	mem := newTestFS()
	for _, name := range []string{"p2udt1", "p2udt2"} {
		dir := filepath.Join(templateRoot, "p2u", name)
		mem.write(filepath.Join(dir, "Loads.dss"), feederLoads)
		mem.write(filepath.Join(dir, "LoadShapes.dss"), feederShapes)
		mem.write(filepath.Join(dir, "Master.dss"), feederMaster)
		mem.write(filepath.Join(dir, "Lines.dss"), "New Line.l1 bus1=src bus2=b1\n")
	}
	bucket := filepath.Join(curveRoot, "daily_csvs", "P2U_circuit_1_winter")
	mem.write(filepath.Join(bucket, "res_kw_1.csv"), "1\n2\n3\n")
	mem.write(filepath.Join(bucket, "res_kvar_1.csv"), "0.1\n0.2\n0.3\n")
	mem.write(mixFile, scenarioMixes)

	cfg := config.Default()
	cfg.TemplateRoot = templateRoot
	cfg.OutputDir = outputDir
	cfg.MixFile = mixFile
	cfg.State = "p2u"
	cfg.Curves.Baseline = curveRoot
	cfg.Workers = 3
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	h := &testHarness{fs: mem, cfg: cfg}
	factory := func() solver.Engine {
		fe := solver.NewFakeEngine()
		fe.OnSolve = func(ctx context.Context, hd solver.Handle) error {
			h.mu.Lock()
			h.solves++
			h.mu.Unlock()
			body := strings.Repeat("0", exportSize)
			mem.write(filepath.Join(hd.Dir, "test_Mon_m1_1.csv"), body)
			mem.write(filepath.Join(hd.Dir, "test_Mon_m2_1.csv"), body)
			return nil
		}
		return fe
	}

	store := state.NewFileManifestStore(mem, batchesDir)
	clk := clock.NewSteppingClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), time.Second)
	h.eng = engine.New(store, mem, hash.NewFakeHasher(), clk, factory, nil)
	return h
}
