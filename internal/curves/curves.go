// Package curves locates and reads the category-specific daily load curve
// CSVs that replace a template's annual load shapes.
//
// Curves live under <category root>/daily_csvs/<bucket>/**/*.csv where the
// bucket is "<STATE>_circuit_<n>_<season>". Each kW curve has a companion
// kvar curve whose file name swaps "_kw_" for "_kvar_".
package curves

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/danieljhkim/gridmix/internal/fsops"
	"github.com/danieljhkim/gridmix/internal/mix"
)

// ErrEmptyCurve is returned for curve files without numeric values.
var ErrEmptyCurve = errors.New("curve has no values")

// Bucket returns the curve bucket name for a circuit.
func Bucket(state string, circuit int, season string) string {
	return fmt.Sprintf("%s_circuit_%d_%s", strings.ToUpper(state), circuit, strings.ToLower(season))
}

// KVarName returns the companion kvar curve file name for a kW curve file name.
func KVarName(kwName string) string {
	return strings.ReplaceAll(kwName, "_kw_", "_kvar_")
}

// ShapeFile returns the curve file name a load shape is expected to use.
func ShapeFile(shape string) string {
	return shape + ".csv"
}

// Index maps curve file names to their paths. The first file found in
// lexical walk order wins.
type Index map[string]string

// BuildIndex walks <root>/daily_csvs/<bucket>. An empty bucket indexes every
// bucket. A missing directory yields an empty index.
func BuildIndex(fs fsops.FS, root, bucket string) (Index, error) {
	dir := filepath.Join(root, "daily_csvs")
	if bucket != "" {
		dir = filepath.Join(dir, bucket)
	}
	idx := make(Index)
	ok, err := fs.Exists(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat curve directory: %w", err)
	}
	if !ok {
		return idx, nil
	}
	err = fsops.Walk(fs, dir, func(path string) error {
		name := filepath.Base(path)
		if !strings.EqualFold(filepath.Ext(name), ".csv") {
			return nil
		}
		if _, seen := idx[name]; !seen {
			idx[name] = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index curves under %s: %w", dir, err)
	}
	return idx, nil
}

// Source is a resolved kW/kvar curve pair.
type Source struct {
	Category mix.Category
	KW       string
	KVar     string
}

// Set holds one index per heating category.
type Set struct {
	fs      fsops.FS
	indexes map[mix.Category]Index
}

// NewSet builds a curve set from per-category roots for one bucket.
// Categories without a configured root get an empty index.
func NewSet(fs fsops.FS, roots map[mix.Category]string, bucket string) (*Set, error) {
	s := &Set{fs: fs, indexes: make(map[mix.Category]Index, len(mix.Categories))}
	for _, c := range mix.Categories {
		root, ok := roots[c]
		if !ok || root == "" {
			s.indexes[c] = Index{}
			continue
		}
		idx, err := BuildIndex(fs, root, bucket)
		if err != nil {
			return nil, err
		}
		s.indexes[c] = idx
	}
	return s, nil
}

// Size returns the number of indexed curves per category.
func (s *Set) Size() map[mix.Category]int {
	out := make(map[mix.Category]int, len(s.indexes))
	for c, idx := range s.indexes {
		out[c] = len(idx)
	}
	return out
}

// Resolve finds the curves for shape in category c. Missing kW or kvar
// files fall back to the baseline index independently. ok is false unless
// both files were found.
func (s *Set) Resolve(c mix.Category, shape string) (Source, bool) {
	kw := ShapeFile(shape)
	kvar := KVarName(kw)

	src := Source{Category: c}
	src.KW = s.indexes[c][kw]
	src.KVar = s.indexes[c][kvar]
	if c != mix.Baseline {
		if src.KW == "" {
			src.KW = s.indexes[mix.Baseline][kw]
		}
		if src.KVar == "" {
			src.KVar = s.indexes[mix.Baseline][kvar]
		}
	}
	return src, src.KW != "" && src.KVar != ""
}

// Read loads the first numeric column of a curve CSV.
func (s *Set) Read(path string) ([]float64, error) {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curve: %w", err)
	}
	return Parse(data)
}

// Parse reads the first numeric column of CSV data, skipping header and
// other non-numeric rows.
func Parse(data []byte) ([]float64, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var out []float64
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse curve: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, ErrEmptyCurve
	}
	return out, nil
}

// Peak returns the maximum of values, or 0 for an empty slice.
func Peak(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Max(values)
}

// Coverage counts, per category, how many of the named curve files its
// own index holds.
func (s *Set) Coverage(files []string) map[mix.Category]int {
	out := make(map[mix.Category]int, len(s.indexes))
	for c, idx := range s.indexes {
		n := 0
		for _, f := range files {
			if _, ok := idx[f]; ok {
				n++
			}
		}
		out[c] = n
	}
	return out
}
