package rewrite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danieljhkim/gridmix/internal/dss"
	"github.com/danieljhkim/gridmix/internal/evprofile"
	"github.com/danieljhkim/gridmix/internal/feeder"
)

const (
	evUncontrolledPrefix = "EVu_"
	evControlledPrefix   = "EVc_"
)

// evLegs are the leg suffixes each EV host gets one load for.
var evLegs = []string{"_1", "_2"}

// addEV synthesizes EV charging profiles and appends one EV load per leg of
// every host to loads.
func (rw *rewriter) addEV(loads *dss.File) {
	ev := rw.in.Alloc.EV
	if len(ev.Hosts) == 0 {
		return
	}

	m := rw.in.Model
	avg := rw.in.EVDemand
	if len(avg) == 0 {
		avg = evprofile.DefaultAverageDemand()
	}
	n := max(evprofile.HostCount(len(m.Bases()), rw.in.Mix.EVPercentage, rw.in.Mix.EVLevel2), len(ev.Hosts))
	uncontrolled := evprofile.Generate(avg, n, rw.in.EVParams)
	controlled := evprofile.EqualEnergy(uncontrolled)

	rowsU := evprofile.EnsureRows(uncontrolled, len(ev.Uncontrolled))
	rowsC := evprofile.EnsureRows(controlled, len(ev.Controlled))

	var shapes strings.Builder
	shapes.WriteString("! EV LoadShapes (uncontrolled + controlled)\n\n")
	writeEVShapes(&shapes, evUncontrolledPrefix, rowsU)
	writeEVShapes(&shapes, evControlledPrefix, rowsC)
	rw.inst.Files[rw.inst.feederPath(EVShapesFile)] = []byte(shapes.String())
	rw.shapesFiles = append(rw.shapesFiles, EVShapesFile)

	loads.AppendText("")
	loads.AppendText("! EV Loads (mixed types)")
	loads.AppendText("")
	rw.inst.Report.EVUncontrolled = rw.appendEVLoads(loads, evUncontrolledPrefix, ev.Uncontrolled)
	rw.inst.Report.EVControlled = rw.appendEVLoads(loads, evControlledPrefix, ev.Controlled)
}

func writeEVShapes(b *strings.Builder, prefix string, rows [][]float64) {
	for i, row := range rows {
		fmt.Fprintf(b, "New Loadshape.%s%d npts=%d interval=%s mult=(%s)\n",
			prefix, i, len(row), num(DailyInterval), evprofile.FormatRow(row))
	}
}

// appendEVLoads adds the EV loads for hosts and returns their names. The
// i-th host draws the i-th profile of the group.
func (rw *rewriter) appendEVLoads(loads *dss.File, prefix string, hosts []string) []string {
	var names []string
	for i, base := range hosts {
		legs, ok := rw.evAnchors(base)
		if !ok {
			rw.skip("ev", base, "no single-phase load to anchor on")
			continue
		}
		shape := prefix + strconv.Itoa(i)
		for j, el := range legs {
			name := prefix + base + evLegs[j]
			conn := el.Conn
			if conn == "" {
				conn = "wye"
			}
			loads.Append(dss.NewStatement("New", "Load", name,
				dss.P("conn", conn),
				dss.P("bus1", el.Bus),
				dss.P("kV", el.KV),
				dss.P("Vminpu", "0.8"),
				dss.P("Vmaxpu", "1.2"),
				dss.P("model", "1"),
				dss.P("phases", strconv.Itoa(el.Phases)),
				dss.P("kW", num(rw.sz.EVLegKW)),
				dss.P("pf", "1"),
				dss.P("daily", shape),
			))
			names = append(names, name)
		}
	}
	return names
}

// evAnchors returns the elements the two EV legs of base copy their
// connection from: base_1 and base_2 when both exist, else the first
// single-phase load of the feeder and its _2 sibling (or itself).
func (rw *rewriter) evAnchors(base string) ([]feeder.Element, bool) {
	m := rw.in.Model
	l1, ok1 := m.Elements[base+evLegs[0]]
	l2, ok2 := m.Elements[base+evLegs[1]]
	if ok1 && ok2 {
		return []feeder.Element{l1, l2}, true
	}

	candidates := m.SinglePhase()
	if len(candidates) == 0 {
		return nil, false
	}
	l1 = m.Elements[candidates[0]]
	l2, ok2 = m.Elements[feeder.BaseName(candidates[0])+evLegs[1]]
	if !ok2 {
		l2 = l1
	}
	return []feeder.Element{l1, l2}, true
}
