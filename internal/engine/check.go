package engine

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Check output file names, written into the output directory.
const (
	CheckReportFile  = "circuit_check_report.csv"
	CheckFailingFile = "failing_circuits.txt"
)

// minExportBytes is the size an m1/m2 export must exceed.
const minExportBytes = 1024

// Monitor tokens match "m1"/"m2" without hitting "m12" or "m20".
var (
	m1Token = regexp.MustCompile(`(?i)(^|[^A-Za-z0-9])m1([^A-Za-z0-9]|$)`)
	m2Token = regexp.MustCompile(`(?i)(^|[^A-Za-z0-9])m2([^A-Za-z0-9]|$)`)
)

// Check verifies that every solved instance exported exactly one m1 and one
// m2 monitor CSV larger than 1 KiB, and writes a CSV report.
func (e *Engine) Check(req *CheckRequest) (*CheckResult, error) {
	refs, err := e.selectInstances(req.OutputDir, "", nil, req.Pattern)
	if err != nil {
		return nil, err
	}

	res := &CheckResult{Rows: []CheckRow{}}
	var failing []string
	for _, ref := range refs {
		row := e.checkInstance(ref)
		res.Rows = append(res.Rows, row)
		if !row.Pass {
			failing = append(failing, row.Instance)
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"circuit_folder", "status", "reasons"})
	for _, row := range res.Rows {
		status := "PASS"
		if !row.Pass {
			status = "FAIL"
		}
		_ = w.Write([]string{row.Instance, status, strings.Join(row.Reasons, "; ")})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode check report: %w", err)
	}

	res.ReportPath = filepath.Join(req.OutputDir, CheckReportFile)
	if err := e.fs.AtomicWrite(res.ReportPath, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("failed to write check report: %w", err)
	}

	if len(failing) == 0 {
		return res, nil
	}
	res.FailingPath = filepath.Join(req.OutputDir, CheckFailingFile)
	if err := e.fs.AtomicWrite(res.FailingPath, []byte(strings.Join(failing, "\n")), 0644); err != nil {
		return nil, fmt.Errorf("failed to write failing list: %w", err)
	}
	return res, fmt.Errorf("%w: %d of %d instances", ErrCheckFailed, len(failing), len(refs))
}

func (e *Engine) checkInstance(ref instanceRef) CheckRow {
	row := CheckRow{Instance: ref.name, Pass: true}
	fail := func(format string, args ...any) {
		row.Pass = false
		row.Reasons = append(row.Reasons, fmt.Sprintf(format, args...))
	}

	dir := filepath.Join(ref.dir, ref.manifest.Feeder)
	entries, err := e.fs.ReadDir(dir)
	if err != nil {
		fail("Missing %s/", ref.manifest.Feeder)
		return row
	}

	var m1, m2 []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		if m1Token.MatchString(name) {
			m1 = append(m1, name)
		}
		if m2Token.MatchString(name) {
			m2 = append(m2, name)
		}
	}

	for _, mon := range []struct {
		label string
		files []string
	}{{"m1", m1}, {"m2", m2}} {
		switch len(mon.files) {
		case 0:
			fail("No %s CSV found.", mon.label)
		case 1:
			info, err := e.fs.Stat(filepath.Join(dir, mon.files[0]))
			if err != nil {
				fail("Cannot stat %s: %v", mon.files[0], err)
			} else if info.Size() <= minExportBytes {
				fail("%s CSV too small (%s: %d B <= %d B).", mon.label, mon.files[0], info.Size(), minExportBytes)
			}
		default:
			fail("Multiple %s CSVs found: %s", mon.label, strings.Join(mon.files, ", "))
		}
	}
	return row
}
