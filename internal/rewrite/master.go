package rewrite

import (
	"path"
	"strings"

	"github.com/danieljhkim/gridmix/internal/dss"
)

// managedRedirects are the redirects the rewriter owns in a master file.
var managedRedirects = []string{EVShapesFile, PVShapesFile, StorageFile, PVSystemsFile}

var redirectComments = map[string]string{
	EVShapesFile:  "! Added EV files",
	PVShapesFile:  "! Added PV loadshape",
	StorageFile:   "! Added Storage file",
	PVSystemsFile: "! Added PV items",
}

// patchMaster wires the synthesized files into the master file, retargets
// the yearly solve to a single day and disables plotting.
func (rw *rewriter) patchMaster(master *dss.File) {
	m := rw.in.Model
	kept := master.Entries[:0:0]
	for _, e := range master.Entries {
		if e.Stmt != nil && e.Stmt.Is("redirect") && isManaged(redirectTarget(e.Stmt)) {
			continue
		}
		kept = append(kept, e)
	}
	master.Entries = kept

	for i, e := range master.Entries {
		st := e.Stmt
		if st == nil {
			continue
		}
		switch {
		case st.Is("solve") && isYearlySolve(st):
			master.Entries[i] = dss.Entry{Stmt: &dss.Statement{
				Verb:  "Solve",
				Props: []dss.Property{dss.P("mode", "daily"), dss.P("stepsize", "15m"), dss.P("number", num(DailyPoints))},
			}}
			rw.inst.Report.MasterRetargeted = true
		case st.Is("plot"):
			lines := strings.Split(st.String(), "\n")
			master.Entries[i] = dss.Entry{Text: "! " + strings.Join(lines, "\n! ") + "   (disabled by deploy)"}
			rw.inst.Report.PlotsDisabled++
		}
	}

	insertRedirects(master, rw.shapesFiles, afterRedirect(master, shapesTarget(m.ShapesFile)))
	insertRedirects(master, rw.objectFiles, afterRedirect(master, m.LoadsFile))

	if len(rw.exports) > 0 {
		master.AppendText("")
		master.AppendText("! Export monitor data for storage")
		for _, line := range rw.exports {
			fields := strings.Fields(line)
			master.Append(&dss.Statement{Verb: fields[0], Args: fields[1:]})
		}
	}
}

func shapesTarget(name string) string {
	if name == "" {
		return "LoadShapes.dss"
	}
	return name
}

// afterRedirect returns the entry index just after the first redirect to
// file, or before the first Solve, or the end of the file.
func afterRedirect(f *dss.File, file string) int {
	if file != "" {
		for i, e := range f.Entries {
			if e.Stmt != nil && e.Stmt.Is("redirect") && strings.EqualFold(redirectTarget(e.Stmt), file) {
				return i + 1
			}
		}
	}
	for i, e := range f.Entries {
		if e.Stmt != nil && e.Stmt.Is("solve") {
			return i
		}
	}
	return len(f.Entries)
}

func insertRedirects(f *dss.File, files []string, at int) {
	if len(files) == 0 {
		return
	}
	var block []dss.Entry
	for _, name := range files {
		block = append(block,
			dss.Entry{Text: ""},
			dss.Entry{Text: redirectComments[name]},
			dss.Entry{Stmt: &dss.Statement{Verb: "Redirect", Args: []string{name}}},
		)
	}
	f.Insert(at, block...)
}

func redirectTarget(st *dss.Statement) string {
	if len(st.Args) == 0 {
		return ""
	}
	return path.Base(strings.ReplaceAll(st.Args[0], `\`, "/"))
}

func isManaged(file string) bool {
	for _, name := range managedRedirects {
		if strings.EqualFold(file, name) {
			return true
		}
	}
	return false
}

func isYearlySolve(st *dss.Statement) bool {
	mode, _ := st.Get("mode")
	step, _ := st.Get("stepsize")
	n, _ := st.Get("number")
	return strings.EqualFold(mode, "yearly") && strings.EqualFold(step, "15m") && n == "35040"
}
