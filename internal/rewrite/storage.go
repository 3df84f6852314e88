package rewrite

import (
	"fmt"
	"strings"
)

// addStorage writes Storage.dss: one battery per storage target with power
// and state-of-charge monitors, plus a peak-shaving controller over the
// whole fleet.
func (rw *rewriter) addStorage() {
	targets := rw.in.Alloc.Resources.StorageTargets
	if len(targets) == 0 {
		return
	}
	m := rw.in.Model
	sz := rw.sz

	var b strings.Builder
	b.WriteString("! ==========================\n! STORAGE ELEMENTS\n! ==========================\n\n")

	var names []string
	var totalKW float64
	for _, full := range targets {
		el, ok := m.Elements[full]
		if !ok {
			rw.skip("storage", full, "load attributes incomplete")
			continue
		}
		kw := max(sz.StorageMinKW, round(sz.StorageKWPerPeak*rw.peakKW(full), 3))
		kwh := round(kw*sz.StorageHours, 3)
		kva := round(kw/max(sz.StoragePF, 1e-3), 3)
		name := "storage_" + full

		fmt.Fprintf(&b, "New Storage.%s phases=%d bus1=%s kV=%s kVA=%s\n", name, el.Phases, busFor(el), el.KV, num(kva))
		fmt.Fprintf(&b, "~ kWRated=%s kWhRated=%s kWhStored=%s State=IDLE\n", num(kw), num(kwh), fixed(sz.StorageInitialSOC*kwh, 3))
		fmt.Fprintf(&b, "~ %%EffCharge=%s %%EffDischarge=%s Balanced=yes varFollowInverter=yes\n\n", num(sz.StorageEffCharge), num(sz.StorageEffDischarge))

		power, soc := "mon_"+name+"_power", "mon_"+name+"_soc"
		fmt.Fprintf(&b, "New Monitor.%s element=Storage.%s mode=1\n", power, name)
		fmt.Fprintf(&b, "New Monitor.%s element=Storage.%s mode=3\n\n", soc, name)
		rw.exports = append(rw.exports, "Export Monitors "+power, "Export Monitors "+soc)

		names = append(names, name)
		totalKW += kw
	}
	if len(names) == 0 {
		return
	}
	rw.inst.Report.Storage = names

	anchor := rw.controllerAnchor()
	if anchor == "" {
		rw.skip("controller", controllerName, "no monitor, energy meter or configured element to anchor on")
	} else {
		rw.inst.Report.ControllerElement = anchor
		target := max(sz.ControllerMinTarget, round(totalKW*sz.ControllerTargetFactor, 3))

		b.WriteString("\n! ==========================\n! STORAGE CONTROLLER\n! ==========================\n\n")
		fmt.Fprintf(&b, "New StorageController.%s element=%s\n", controllerName, anchor)
		fmt.Fprintf(&b, "~ terminal=1 modeDischarge=PeakShave kWTarget=%s\n", num(target))
		fmt.Fprintf(&b, "~ modeCharge=PeakShaveLow kWTargetLow=%s\n", num(sz.ControllerTargetLow))
		fmt.Fprintf(&b, "~ %%Reserve=%s MonPhase=AVG EventLog=yes\n", num(sz.ControllerReserve))
		fmt.Fprintf(&b, "~ elementList=(%s)\n", strings.Join(names, " "))
	}

	rw.inst.Files[rw.inst.feederPath(StorageFile)] = []byte(b.String())
	rw.objectFiles = append(rw.objectFiles, StorageFile)
}

// controllerAnchor finds the element the storage controller watches: the
// element of Monitor m1 or m2 in the master file, else the first energy
// meter's element, else the configured default.
func (rw *rewriter) controllerAnchor() string {
	m := rw.in.Model
	if master, ok := m.Files[m.MasterFile]; ok && master != nil {
		for _, st := range master.Objects("monitor") {
			if !strings.EqualFold(st.Name, "m1") && !strings.EqualFold(st.Name, "m2") {
				continue
			}
			if el, ok := st.Get("element"); ok && el != "" {
				return el
			}
		}
		for _, st := range master.Objects("energymeter") {
			if el, ok := st.Get("element"); ok && el != "" {
				return el
			}
			if len(st.Args) > 0 {
				return st.Args[0]
			}
		}
	}
	return rw.sz.ControllerElement
}
