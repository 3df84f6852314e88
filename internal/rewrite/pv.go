package rewrite

import (
	"fmt"
	"strings"
)

// addPV writes PVSystems.dss and LoadShapes_PV.dss: one PV system per PV
// target, each with its own copy of the season's irradiance shape.
func (rw *rewriter) addPV() {
	targets := rw.in.Alloc.Resources.PVTargets
	if len(targets) == 0 {
		return
	}
	m := rw.in.Model
	sz := rw.sz

	profile := Irradiance(rw.in.Season)
	parts := make([]string, len(profile))
	for i, v := range profile {
		parts[i] = num(v)
	}
	mult := strings.Join(parts, " ")

	var systems, shapes strings.Builder
	systems.WriteString("! PV SYSTEMS\n\n")
	shapes.WriteString("! PV LoadShapes\n\n")

	var names []string
	for i, full := range targets {
		el, ok := m.Elements[full]
		if !ok {
			rw.skip("pv", full, "load attributes incomplete")
			continue
		}
		pmpp := max(sz.PVMinKW, round(sz.PVKWPerPeak*rw.peakKW(full), 1))
		shape := fmt.Sprintf("PVShape_%d", i)
		name := "pv_" + full

		fmt.Fprintf(&shapes, "New Loadshape.%s npts=%d interval=%s mult=(%s)\n", shape, DailyPoints, num(DailyInterval), mult)

		fmt.Fprintf(&systems, "New PVSystem.%s phases=%d bus1=%s kV=%s kVA=%s pmpp=%s pf=1 %%Cutin=0.1 %%Cutout=0.1",
			name, el.Phases, busFor(el), el.KV, fixed(pmpp*sz.PVKVAFactor, 1), fixed(pmpp, 1))
		if sz.PVEffCurve != "" {
			fmt.Fprintf(&systems, " effcurve=%s", sz.PVEffCurve)
		}
		fmt.Fprintf(&systems, " daily=%s irradiance=1\n\n", shape)
		names = append(names, name)
	}
	if len(names) == 0 {
		return
	}
	rw.inst.Report.PV = names

	rw.inst.Files[rw.inst.feederPath(PVShapesFile)] = []byte(shapes.String())
	rw.inst.Files[rw.inst.feederPath(PVSystemsFile)] = []byte(systems.String())
	rw.shapesFiles = append(rw.shapesFiles, PVShapesFile)
	rw.objectFiles = append(rw.objectFiles, PVSystemsFile)
}
