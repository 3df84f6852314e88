// Package rewrite turns a feeder template plus an allocation into the file
// set of one scenario instance.
//
// The template is never edited in place: each DSS file is cloned, the
// allocation is applied to the parsed statements, and fresh text is
// serialized. Rewrite has no side effects; the caller materializes the
// returned Instance.
package rewrite

import (
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/danieljhkim/gridmix/internal/allocate"
	"github.com/danieljhkim/gridmix/internal/curves"
	"github.com/danieljhkim/gridmix/internal/dss"
	"github.com/danieljhkim/gridmix/internal/evprofile"
	"github.com/danieljhkim/gridmix/internal/feeder"
	"github.com/danieljhkim/gridmix/internal/mix"
)

// Fixed daily resolution every rewritten load shape is forced to.
const (
	DailyPoints   = 96
	DailyInterval = 0.25
)

// ProfilesDir is the instance subdirectory holding copied curve CSVs.
const ProfilesDir = "profiles"

// Synthesized file names.
const (
	StorageFile    = "Storage.dss"
	PVSystemsFile  = "PVSystems.dss"
	PVShapesFile   = "LoadShapes_PV.dss"
	EVShapesFile   = "LoadShapes_EV.dss"
	backupSuffix   = "_original.dss"
	controllerName = "sc_combined"
)

// Sizing holds the knobs for synthesized storage, PV and EV elements.
type Sizing struct {
	StorageKWPerPeak    float64 `yaml:"storage_kw_per_peak"`
	StorageMinKW        float64 `yaml:"storage_min_kw"`
	StorageHours        float64 `yaml:"storage_hours"`
	StoragePF           float64 `yaml:"storage_pf"`
	StorageInitialSOC   float64 `yaml:"storage_initial_soc"`
	StorageEffCharge    float64 `yaml:"storage_eff_charge"`
	StorageEffDischarge float64 `yaml:"storage_eff_discharge"`

	ControllerTargetFactor float64 `yaml:"controller_target_factor"`
	ControllerMinTarget    float64 `yaml:"controller_min_target"`
	ControllerTargetLow    float64 `yaml:"controller_target_low"`
	ControllerReserve      float64 `yaml:"controller_reserve"`
	ControllerElement      string  `yaml:"controller_element"`

	PVKWPerPeak float64 `yaml:"pv_kw_per_peak"`
	PVMinKW     float64 `yaml:"pv_min_kw"`
	PVKVAFactor float64 `yaml:"pv_kva_factor"`
	PVEffCurve  string  `yaml:"pv_eff_curve"`

	EVLegKW float64 `yaml:"ev_leg_kw"`

	FallbackPeakKW float64 `yaml:"fallback_peak_kw"`
}

// DefaultSizing returns the stock sizing rules.
func DefaultSizing() Sizing {
	return Sizing{
		StorageKWPerPeak:       0.75,
		StorageMinKW:           5,
		StorageHours:           4,
		StoragePF:              0.9,
		StorageInitialSOC:      0.2,
		StorageEffCharge:       95,
		StorageEffDischarge:    95,
		ControllerTargetFactor: 0.8,
		ControllerMinTarget:    50,
		ControllerTargetLow:    0,
		ControllerReserve:      20,
		PVKWPerPeak:            0.30,
		PVMinKW:                10,
		PVKVAFactor:            1.1,
		EVLegKW:                0.5,
		FallbackPeakKW:         10,
	}
}

// Input is everything one rewrite needs.
type Input struct {
	Model    *feeder.Model
	Mix      mix.Mix
	Alloc    *allocate.Result
	Curves   *curves.Set
	Season   string
	EVDemand []float64
	EVParams evprofile.Params
}

// Skip records a target that could not be synthesized.
type Skip struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// Report summarizes what a rewrite did.
type Report struct {
	Substituted       []string             `json:"substituted_shapes"`
	FlatShapes        []string             `json:"flat_shapes"`
	Coverage          map[mix.Category]int `json:"coverage"`
	RequiredCurves    int                  `json:"required_curves"`
	Storage           []string             `json:"storage_elements"`
	PV                []string             `json:"pv_elements"`
	EVUncontrolled    []string             `json:"ev_loads_uncontrolled"`
	EVControlled      []string             `json:"ev_loads_controlled"`
	ControllerElement string               `json:"controller_element,omitempty"`
	MasterRetargeted  bool                 `json:"master_retargeted"`
	PlotsDisabled     int                  `json:"plots_disabled"`
	Skipped           []Skip               `json:"skipped,omitempty"`
}

// Instance is the materializable file set of one scenario instance. Paths
// are relative to the instance directory.
type Instance struct {
	// FeederDir is the subdirectory holding the feeder's DSS files.
	FeederDir string

	// Files maps relative paths to generated content.
	Files map[string][]byte

	// Copies maps relative destination paths to source paths.
	Copies map[string]string

	// Master is the relative path of the master file, empty if the
	// template has none.
	Master string

	Report Report
}

func (inst *Instance) feederPath(name string) string {
	return path.Join(inst.FeederDir, name)
}

// rewriter carries per-call state between the rewrite steps.
type rewriter struct {
	in   Input
	sz   Sizing
	inst *Instance

	// kwCurve maps substituted shape names to their source kW curve.
	kwCurve map[string]string
	flat    map[string]bool

	shapesFiles []string
	objectFiles []string
	exports     []string
}

// Rewrite builds the instance file set for in.
func Rewrite(in Input, sz Sizing) (*Instance, error) {
	if in.Model == nil || in.Alloc == nil || in.Curves == nil {
		return nil, fmt.Errorf("rewrite: model, allocation and curves are required")
	}

	m := in.Model
	rw := &rewriter{
		in: in,
		sz: sz,
		inst: &Instance{
			FeederDir: m.Feeder,
			Files:     make(map[string][]byte),
			Copies:    make(map[string]string),
		},
		kwCurve: make(map[string]string),
		flat:    make(map[string]bool),
	}

	for _, name := range m.Siblings {
		rw.inst.Copies[rw.inst.feederPath(name)] = path.Join(m.Dir, name)
	}

	var shapes, loads *dss.File
	if m.ShapesFile != "" {
		orig := m.Files[m.ShapesFile]
		rw.inst.Files[rw.inst.feederPath(backupName(m.ShapesFile))] = orig.Bytes()
		shapes = orig.Clone()
		rw.substituteShapes(shapes)
		rw.inst.Files[rw.inst.feederPath(m.ShapesFile)] = shapes.Bytes()
	}
	if m.LoadsFile != "" {
		orig := m.Files[m.LoadsFile]
		rw.inst.Files[rw.inst.feederPath(backupName(m.LoadsFile))] = orig.Bytes()
		loads = orig.Clone()
		rw.normalizeLoads(loads)
		rw.addEV(loads)
		rw.inst.Files[rw.inst.feederPath(m.LoadsFile)] = loads.Bytes()
	}

	rw.addStorage()
	rw.addPV()

	if m.MasterFile != "" {
		master := m.Files[m.MasterFile].Clone()
		rw.patchMaster(master)
		rw.inst.Master = rw.inst.feederPath(m.MasterFile)
		rw.inst.Files[rw.inst.Master] = master.Bytes()
	}
	return rw.inst, nil
}

func (rw *rewriter) skip(kind, target, reason string) {
	rw.inst.Report.Skipped = append(rw.inst.Report.Skipped, Skip{Kind: kind, Target: target, Reason: reason})
}

// peakKW returns the sizing peak for a load: the peak of its customer's
// first substituted daily curve, else its nominal kW, else the fallback.
func (rw *rewriter) peakKW(full string) float64 {
	m := rw.in.Model
	if rec, ok := m.Loads[feeder.BaseName(full)]; ok {
		for _, shape := range rec.ShapeNames {
			src, ok := rw.kwCurve[shape]
			if !ok {
				continue
			}
			values, err := rw.in.Curves.Read(src)
			if err == nil {
				return curves.Peak(values)
			}
		}
	}
	if el, ok := m.Elements[full]; ok && el.HasKW {
		return el.KW
	}
	return rw.sz.FallbackPeakKW
}

// busFor returns the bus connection for a synthesized element anchored at el.
func busFor(el feeder.Element) string {
	if el.Phases == 3 {
		return el.BusName() + ".1.2.3"
	}
	return el.Bus
}

func backupName(file string) string {
	return strings.TrimSuffix(file, path.Ext(file)) + backupSuffix
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func num(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func fixed(x float64, places int) string {
	return strconv.FormatFloat(x, 'f', places, 64)
}
