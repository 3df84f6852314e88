// Package audit collects heating assignment records across a batch and
// writes them once, after every job has finished.
package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"sync"

	"github.com/danieljhkim/gridmix/internal/fsops"
	"github.com/danieljhkim/gridmix/internal/mix"
)

// Output file names.
const (
	SummaryFile  = "heating_assignment__SUMMARY.csv"
	FullFile     = "heating_assignment__FULL.csv"
	FullJSONFile = "heating_assignment__FULL.json"
)

// utf8BOM prefixes the CSV files so spreadsheet tools detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Summary is the per (feeder, mix) count of realized heating categories.
type Summary struct {
	Substation string
	Feeder     string
	Instance   string
	Mix        string
	Season     string
	Shares     mix.Shares

	// ShapeCounts counts distinct load shapes per category; BaseCounts
	// counts customers.
	ShapeCounts map[mix.Category]int
	BaseCounts  map[mix.Category]int
}

// Assignment is one load shape's category in one instance.
type Assignment struct {
	Substation string
	Feeder     string
	Instance   string
	Mix        string
	Season     string
	Shape      string
	Category   mix.Category
}

// Sink accumulates audit rows from concurrent jobs.
type Sink struct {
	mu          sync.Mutex
	summaries   []Summary
	assignments []Assignment
}

// NewSink creates an empty Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Record adds one job's summary and its shape assignments.
func (s *Sink) Record(sum Summary, shapes map[string]mix.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries = append(s.summaries, sum)
	for shape, c := range shapes {
		s.assignments = append(s.assignments, Assignment{
			Substation: sum.Substation,
			Feeder:     sum.Feeder,
			Instance:   sum.Instance,
			Mix:        sum.Mix,
			Season:     sum.Season,
			Shape:      shape,
			Category:   c,
		})
	}
}

// Len returns the number of recorded summaries.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.summaries)
}

// Flush writes the summary CSV, the full assignment CSV and the compact
// JSON map into dir and returns their paths. Files already in dir are
// merged: rows of instances recorded here replace their old rows, rows of
// other instances are kept. Rows are sorted so output does not depend on
// job scheduling. The JSON file is written only when there is at least
// one assignment.
func (s *Sink) Flush(fs fsops.FS, dir string) ([]string, error) {
	s.mu.Lock()
	summaries := append([]Summary(nil), s.summaries...)
	assignments := append([]Assignment(nil), s.assignments...)
	s.mu.Unlock()

	fresh := make(map[string]bool, len(summaries))
	for _, r := range summaries {
		fresh[r.Instance] = true
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := fs.AtomicWrite(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	kept, err := carryOver(fs, filepath.Join(dir, SummaryFile), summaryHeader, fresh)
	if err != nil {
		return nil, err
	}
	records := append(kept, summaryRecords(summaries)...)
	sortRecords(records, 0, 1, 3, instanceColumn)
	data, err := encodeCSV(summaryHeader, records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := write(SummaryFile, data); err != nil {
		return nil, err
	}

	kept, err = carryOver(fs, filepath.Join(dir, FullFile), fullHeader, fresh)
	if err != nil {
		return nil, err
	}
	records = append(kept, fullRecords(assignments)...)
	sortRecords(records, 0, 1, 3, 5, instanceColumn)
	data, err = encodeCSV(fullHeader, records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assignments: %w", err)
	}
	if err := write(FullFile, data); err != nil {
		return nil, err
	}

	if len(records) > 0 {
		data, err = compactJSON(records)
		if err != nil {
			return nil, err
		}
		if err := write(FullJSONFile, data); err != nil {
			return nil, err
		}
	}
	return written, nil
}

var summaryHeader = []string{
	"substation", "feeder_name", "circuit_folder", "mix", "season",
	"share_baseline", "share_dm", "share_un",
	"n_daily_baseline", "n_daily_dm", "n_daily_un", "N_daily_total",
	"n_base_baseline", "n_base_dm", "n_base_un", "N_base_total",
}

var fullHeader = []string{"substation", "feeder_name", "circuit_folder", "mix", "season", "daily_name", "scenario"}

// instanceColumn is the circuit_folder column in both CSV files.
const instanceColumn = 2

func summaryRecords(rows []Summary) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := []string{r.Substation, r.Feeder, r.Instance, r.Mix, r.Season,
			ratio(r.Shares.Baseline), ratio(r.Shares.DemandManaged), ratio(r.Shares.Uncontrolled)}
		rec = append(rec, counts(r.ShapeCounts)...)
		rec = append(rec, counts(r.BaseCounts)...)
		out = append(out, rec)
	}
	return out
}

func fullRecords(rows []Assignment) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Substation, r.Feeder, r.Instance, r.Mix, r.Season, r.Shape, r.Category.Code()})
	}
	return out
}

// carryOver returns the rows of an existing audit CSV whose instance is not
// in fresh. A missing file, or one written with a different header, yields
// no rows.
func carryOver(fs fsops.FS, path string, header []string, fresh map[string]bool) ([][]string, error) {
	ok, err := fs.Exists(path)
	if err != nil || !ok {
		return nil, err
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM))).ReadAll()
	if err != nil || len(records) == 0 || !slices.Equal(records[0], header) {
		return nil, nil
	}
	var out [][]string
	for _, rec := range records[1:] {
		if len(rec) == len(header) && !fresh[rec[instanceColumn]] {
			out = append(out, rec)
		}
	}
	return out, nil
}

// sortRecords orders records by the given columns.
func sortRecords(records [][]string, cols ...int) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, c := range cols {
			if records[i][c] != records[j][c] {
				return records[i][c] < records[j][c]
			}
		}
		return false
	})
}

func encodeCSV(header []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// compactJSON renders {instance: {mix: {shape: category}}} from full
// assignment records.
func compactJSON(records [][]string) ([]byte, error) {
	out := make(map[string]map[string]map[string]string)
	for _, r := range records {
		instance, mixName, shape, code := r[instanceColumn], r[3], r[5], r[6]
		byMix, ok := out[instance]
		if !ok {
			byMix = make(map[string]map[string]string)
			out[instance] = byMix
		}
		shapes, ok := byMix[mixName]
		if !ok {
			shapes = make(map[string]string)
			byMix[mixName] = shapes
		}
		shapes[shape] = code
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal assignment map: %w", err)
	}
	return append(data, '\n'), nil
}

// counts renders per-category counts in category order followed by the total.
func counts(m map[mix.Category]int) []string {
	out := make([]string, 0, len(mix.Categories)+1)
	total := 0
	for _, c := range mix.Categories {
		out = append(out, strconv.Itoa(m[c]))
		total += m[c]
	}
	return append(out, strconv.Itoa(total))
}

func ratio(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
