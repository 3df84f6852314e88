package rewrite

import (
	"github.com/danieljhkim/gridmix/internal/dss"
)

// normalizeLoads switches loads to daily shapes and fixes their nominal
// magnitudes: loads on a flat shape keep the template's mean magnitude for
// that shape, loads on a substituted curve are scaled to 1 so the curve
// carries absolute kW/kvar.
func (rw *rewriter) normalizeLoads(f *dss.File) {
	m := rw.in.Model
	for _, st := range f.Objects("load") {
		st.Rename("yearly", "daily")
		raw, ok := st.Get("daily")
		if !ok {
			continue
		}
		shape := m.CanonicalShape(raw)

		switch {
		case rw.flat[shape]:
			mag, ok := m.ShapeMean(shape)
			if !ok {
				mag = m.GlobalMean()
			}
			st.Set("kW", fixed(mag.KW, 6))
			st.Set("kvar", fixed(mag.KVar, 6))
		case rw.kwCurve[shape] != "":
			if st.Has("kw") {
				st.Set("kW", "1")
			}
			if st.Has("kvar") {
				st.Set("kvar", "1")
			}
		}
	}
}
