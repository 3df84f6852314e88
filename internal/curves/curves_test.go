package curves

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/gridmix/internal/fsops"
	"github.com/danieljhkim/gridmix/internal/mix"
)

func writeCurve(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestBucket(t *testing.T) {
	assert.Equal(t, "NC_circuit_3_summer", Bucket("nc", 3, "Summer"))
}

func TestKVarName(t *testing.T) {
	assert.Equal(t, "res_kvar_12.csv", KVarName("res_kw_12.csv"))
	assert.Equal(t, "plain.csv", KVarName("plain.csv"))
}

func TestBuildIndexFirstWins(t *testing.T) {
	root := t.TempDir()
	bucket := Bucket("NC", 1, "summer")
	writeCurve(t, filepath.Join(root, "daily_csvs", bucket, "a", "res_kw_1.csv"), "1\n")
	writeCurve(t, filepath.Join(root, "daily_csvs", bucket, "b", "res_kw_1.csv"), "2\n")
	writeCurve(t, filepath.Join(root, "daily_csvs", bucket, "b", "notes.txt"), "x")
	writeCurve(t, filepath.Join(root, "daily_csvs", "NC_circuit_2_summer", "res_kw_9.csv"), "9\n")

	idx, err := BuildIndex(fsops.NewRealFS(), root, bucket)
	require.NoError(t, err)
	assert.Len(t, idx, 1)
	assert.Equal(t, filepath.Join(root, "daily_csvs", bucket, "a", "res_kw_1.csv"), idx["res_kw_1.csv"])

	all, err := BuildIndex(fsops.NewRealFS(), root, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	missing, err := BuildIndex(fsops.NewRealFS(), filepath.Join(root, "nope"), bucket)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestSetResolveFallsBackToBaseline(t *testing.T) {
	base := t.TempDir()
	dm := t.TempDir()
	bucket := "NC_circuit_1_winter"
	writeCurve(t, filepath.Join(base, "daily_csvs", bucket, "res_kw_1.csv"), "1\n")
	writeCurve(t, filepath.Join(base, "daily_csvs", bucket, "res_kvar_1.csv"), "0.1\n")
	writeCurve(t, filepath.Join(dm, "daily_csvs", bucket, "res_kw_1.csv"), "3\n")

	set, err := NewSet(fsops.NewRealFS(), map[mix.Category]string{mix.Baseline: base, mix.DemandManaged: dm}, bucket)
	require.NoError(t, err)

	src, ok := set.Resolve(mix.DemandManaged, "res_kw_1")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dm, "daily_csvs", bucket, "res_kw_1.csv"), src.KW)
	assert.Equal(t, filepath.Join(base, "daily_csvs", bucket, "res_kvar_1.csv"), src.KVar)

	src, ok = set.Resolve(mix.Uncontrolled, "res_kw_1")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(base, "daily_csvs", bucket, "res_kw_1.csv"), src.KW)

	_, ok = set.Resolve(mix.Baseline, "res_kw_404")
	assert.False(t, ok)

	assert.Equal(t, map[mix.Category]int{mix.Baseline: 2, mix.DemandManaged: 1, mix.Uncontrolled: 0}, set.Size())
}

func TestParse(t *testing.T) {
	values, err := Parse([]byte("kw,other\n1.5,9\n 2.5 ,9\n\n0.25\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5, 0.25}, values)
	assert.InDelta(t, 2.5, Peak(values), 1e-12)

	_, err = Parse([]byte("header\n"))
	assert.True(t, errors.Is(err, ErrEmptyCurve))
	assert.Zero(t, Peak(nil))
}

func TestCoverage(t *testing.T) {
	root := t.TempDir()
	writeCurve(t, filepath.Join(root, "daily_csvs", "b", "x_kw_1.csv"), "1\n")
	writeCurve(t, filepath.Join(root, "daily_csvs", "b", "x_kvar_1.csv"), "1\n")

	set, err := NewSet(fsops.NewRealFS(), map[mix.Category]string{mix.Baseline: root}, "b")
	require.NoError(t, err)

	cov := set.Coverage([]string{"x_kw_1.csv", "x_kvar_1.csv", "x_kw_2.csv"})
	assert.Equal(t, 2, cov[mix.Baseline])
	assert.Equal(t, 0, cov[mix.Uncontrolled])
}
