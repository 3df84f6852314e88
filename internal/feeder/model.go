// Package feeder builds the in-memory view of one feeder template: its
// loads grouped by customer, their electrical attributes, the load shapes
// they reference, and the DSS files the scenario rewriter edits.
package feeder

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/danieljhkim/gridmix/internal/dss"
)

// ErrUnresolvedShape is returned when a load references a load shape that
// the template does not declare.
var ErrUnresolvedShape = errors.New("load shape not declared")

// excludedBase is the literal customer name some templates use for
// placeholder loads; it never joins the heating population.
const excludedBase = "load"

var legSuffix = regexp.MustCompile(`_\d+$`)

// BaseName strips a trailing "_<digits>" suffix from a load name.
func BaseName(full string) string {
	return legSuffix.ReplaceAllString(full, "")
}

// Element holds the attributes of one "New Load." statement.
type Element struct {
	Name    string
	Bus     string
	KV      string
	Phases  int
	Conn    string
	KW      float64
	KVar    float64
	HasKW   bool
	HasKVar bool
	Shape   string
}

// Complete reports whether the element carries bus, voltage and phase count.
// Incomplete elements are excluded from attribute lookups.
func (e Element) Complete() bool {
	return e.Bus != "" && e.KV != "" && e.Phases > 0
}

// BusName returns the bus without its phase suffix.
func (e Element) BusName() string {
	name, _, _ := strings.Cut(e.Bus, ".")
	return name
}

// LoadRecord groups the electrical loads that belong to one customer.
type LoadRecord struct {
	BaseName   string
	FullNames  []string
	ShapeNames []string
}

// Magnitude is a mean nominal kW/kvar pair.
type Magnitude struct {
	KW   float64
	KVar float64
}

// Model is the parsed template of one feeder.
type Model struct {
	Substation string
	Feeder     string
	Dir        string

	// Loads is keyed by base name. Loads whose base is the literal "load"
	// are absent.
	Loads map[string]*LoadRecord

	// Elements holds every complete load element by full name.
	Elements map[string]Element

	// Order lists every load full name in file order, complete or not.
	Order []string

	// ThreePhase lists the full names of complete three-phase loads in file order.
	ThreePhase []string

	// Shapes holds declared load shape names, lower-cased, to their declared spelling.
	Shapes map[string]string

	// Files are the template's DSS files keyed by file name.
	Files map[string]*dss.File

	// LoadsFile, ShapesFile and MasterFile name the entries of Files that
	// play those roles.
	LoadsFile  string
	ShapesFile string
	MasterFile string

	// Siblings are non-DSS or unedited files in the feeder directory.
	Siblings []string

	shapeMeans map[string]Magnitude
	globalMean Magnitude
}

// Parse builds a model from the template's load and load shape files.
// master may be nil.
func Parse(substation, feederName string, loads, shapes, master *dss.File) (*Model, error) {
	m := &Model{
		Substation: substation,
		Feeder:     feederName,
		Loads:      make(map[string]*LoadRecord),
		Elements:   make(map[string]Element),
		Shapes:     make(map[string]string),
		Files:      make(map[string]*dss.File),
		shapeMeans: make(map[string]Magnitude),
	}

	if shapes != nil {
		m.ShapesFile = shapes.Name
		m.Files[shapes.Name] = shapes
		for _, st := range shapes.Objects("loadshape") {
			m.Shapes[strings.ToLower(st.Name)] = st.Name
		}
	}
	if master != nil {
		m.MasterFile = master.Name
		m.Files[master.Name] = master
	}
	if loads == nil {
		return m, nil
	}
	m.LoadsFile = loads.Name
	m.Files[loads.Name] = loads

	type acc struct{ kw, kvar []float64 }
	perShape := make(map[string]*acc)
	var allKW, allKVar []float64

	for _, st := range loads.Objects("load") {
		el := elementFrom(st)
		m.Order = append(m.Order, el.Name)
		allKW = append(allKW, el.KW)
		allKVar = append(allKVar, el.KVar)

		if el.Complete() {
			m.Elements[el.Name] = el
			if el.Phases == 3 {
				m.ThreePhase = append(m.ThreePhase, el.Name)
			}
		}

		if el.Shape != "" {
			// m.Shapes is empty when the template has no load shape file
			declared, ok := m.Shapes[strings.ToLower(el.Shape)]
			if !ok {
				return nil, fmt.Errorf("%w: load %s references %q", ErrUnresolvedShape, el.Name, el.Shape)
			}
			el.Shape = declared
			if el.Complete() {
				m.Elements[el.Name] = el
			}
			a, ok := perShape[el.Shape]
			if !ok {
				a = &acc{}
				perShape[el.Shape] = a
			}
			a.kw = append(a.kw, el.KW)
			a.kvar = append(a.kvar, el.KVar)
		}

		base := BaseName(el.Name)
		if base == excludedBase {
			continue
		}
		rec, ok := m.Loads[base]
		if !ok {
			rec = &LoadRecord{BaseName: base}
			m.Loads[base] = rec
		}
		rec.FullNames = append(rec.FullNames, el.Name)
		if el.Shape != "" && !contains(rec.ShapeNames, el.Shape) {
			rec.ShapeNames = append(rec.ShapeNames, el.Shape)
		}
	}

	for _, rec := range m.Loads {
		sort.Strings(rec.FullNames)
		sort.Strings(rec.ShapeNames)
	}
	for name, a := range perShape {
		m.shapeMeans[name] = Magnitude{KW: stat.Mean(a.kw, nil), KVar: stat.Mean(a.kvar, nil)}
	}
	if len(allKW) > 0 {
		m.globalMean = Magnitude{KW: stat.Mean(allKW, nil), KVar: stat.Mean(allKVar, nil)}
	} else {
		m.globalMean = Magnitude{KW: 1.0, KVar: 0.0}
	}
	return m, nil
}

func elementFrom(st *dss.Statement) Element {
	el := Element{Name: st.Name}
	el.Bus, _ = st.Get("bus1")
	el.KV, _ = st.Get("kv")
	if v, ok := st.Get("phases"); ok {
		el.Phases, _ = strconv.Atoi(v)
	}
	el.Conn, _ = st.Get("conn")
	if v, ok := st.Get("kw"); ok {
		el.KW, el.HasKW = parseFloat(v), true
	}
	if v, ok := st.Get("kvar"); ok {
		el.KVar, el.HasKVar = parseFloat(v), true
	}
	if v, ok := st.Get("daily"); ok {
		el.Shape = v
	} else if v, ok := st.Get("yearly"); ok {
		el.Shape = v
	}
	return el
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Bases returns the heating population: every base name, sorted.
func (m *Model) Bases() []string {
	out := make([]string, 0, len(m.Loads))
	for b := range m.Loads {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// ThreePhaseBases returns the sorted, distinct base names that own at least
// one complete three-phase load.
func (m *Model) ThreePhaseBases() []string {
	seen := make(map[string]bool)
	var out []string
	for _, full := range m.ThreePhase {
		b := BaseName(full)
		if b == excludedBase || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// ThreePhaseAnchor returns the first three-phase full name, in file order,
// that belongs to base.
func (m *Model) ThreePhaseAnchor(base string) (string, bool) {
	for _, full := range m.ThreePhase {
		if BaseName(full) == base {
			return full, true
		}
	}
	return "", false
}

// SinglePhase returns the full names of complete single-phase loads in file order.
func (m *Model) SinglePhase() []string {
	var out []string
	for _, full := range m.Order {
		if el, ok := m.Elements[full]; ok && el.Phases == 1 {
			out = append(out, full)
		}
	}
	return out
}

// CanonicalShape returns the declared spelling of a load shape name, or
// name itself when the template does not declare it.
func (m *Model) CanonicalShape(name string) string {
	if declared, ok := m.Shapes[strings.ToLower(name)]; ok {
		return declared
	}
	return name
}

// ShapeMean returns the mean nominal magnitude of the loads that reference
// shape. ok is false when no load references it.
func (m *Model) ShapeMean(shape string) (Magnitude, bool) {
	mag, ok := m.shapeMeans[shape]
	return mag, ok
}

// GlobalMean returns the mean nominal magnitude over every load statement,
// or 1 kW / 0 kvar when the template has none.
func (m *Model) GlobalMean() Magnitude {
	return m.globalMean
}
