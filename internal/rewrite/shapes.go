package rewrite

import (
	"path"
	"sort"
	"strings"

	"github.com/danieljhkim/gridmix/internal/curves"
	"github.com/danieljhkim/gridmix/internal/dss"
)

// substituteShapes points every file-backed load shape at its category's
// daily curve, or at a flat unity profile when no curve pair exists.
func (rw *rewriter) substituteShapes(f *dss.File) {
	heating := rw.in.Alloc.Heating
	var required []string

	for _, st := range f.Objects("loadshape") {
		mult, _ := st.Get("mult")
		if !strings.Contains(strings.ToLower(mult), "file=") {
			continue
		}
		name := st.Name
		kwFile := curves.ShapeFile(name)
		required = append(required, kwFile, curves.KVarName(kwFile))

		src, ok := rw.in.Curves.Resolve(heating.CategoryOf(name), name)
		if ok {
			kvFile := curves.KVarName(kwFile)
			rw.inst.Copies[path.Join(ProfilesDir, kwFile)] = src.KW
			rw.inst.Copies[path.Join(ProfilesDir, kvFile)] = src.KVar
			st.Set("mult", "(file=../"+ProfilesDir+"/"+kwFile+")")
			if st.Has("qmult") {
				st.Set("qmult", "(file=../"+ProfilesDir+"/"+kvFile+")")
			}
			rw.kwCurve[name] = src.KW
			rw.inst.Report.Substituted = append(rw.inst.Report.Substituted, name)
		} else {
			ones := flatUnity(DailyPoints)
			st.Set("mult", ones)
			if st.Has("qmult") {
				st.Set("qmult", ones)
			}
			rw.flat[name] = true
			rw.inst.Report.FlatShapes = append(rw.inst.Report.FlatShapes, name)
		}
		forceDaily(st)
	}

	sort.Strings(rw.inst.Report.Substituted)
	sort.Strings(rw.inst.Report.FlatShapes)
	rw.inst.Report.RequiredCurves = len(required)
	rw.inst.Report.Coverage = rw.in.Curves.Coverage(required)
}

// forceDaily normalizes a load shape to 96 points at 15 minutes.
func forceDaily(st *dss.Statement) {
	st.Delete("sinterval")
	st.Set("npts", num(DailyPoints))
	st.Set("interval", num(DailyInterval))
	st.Set("useactual", "no")
}

func flatUnity(n int) string {
	ones := make([]string, n)
	for i := range ones {
		ones[i] = "1"
	}
	return "(" + strings.Join(ones, " ") + ")"
}
