package solver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/gridmix/internal/clock"
	"github.com/danieljhkim/gridmix/internal/fsops"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func writeMaster(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Master.dss")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func newOrchestrator(eng *FakeEngine, timeout time.Duration) *Orchestrator {
	return NewOrchestrator(func() Engine { return eng }, fsops.NewRealFS(), clock.NewFakeClock(epoch), timeout)
}

func TestModeMatches(t *testing.T) {
	m := Daily()
	assert.True(t, m.Matches("Daily", "15M", "96"))
	assert.False(t, m.Matches("yearly", "15m", "96"))
	assert.False(t, m.Matches("daily", "15m", "35040"))
	assert.Equal(t, "mode=daily stepsize=15m number=96", m.String())
}

func TestParseSummary(t *testing.T) {
	ok, err := parseSummary("Circuit summary\nStatus = SOLVED\nSolution Mode = Daily\n")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = parseSummary("Status = NOT Solved\n")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = parseSummary("Error 265: bus not found\n")
	assert.True(t, errors.Is(err, ErrCompile))
}

func TestCheckMode(t *testing.T) {
	good := writeMaster(t, "Redirect Loads.dss\nSolve mode=daily stepsize=15m number=96\n")
	assert.NoError(t, checkMode(good, Daily()))

	yearly := writeMaster(t, "Solve mode=yearly stepsize=15m number=35040\n")
	assert.True(t, errors.Is(checkMode(yearly, Daily()), ErrModeMismatch))

	none := writeMaster(t, "Redirect Loads.dss\n")
	assert.True(t, errors.Is(checkMode(none, Daily()), ErrModeMismatch))
}

func TestCmdEngineMissingBinary(t *testing.T) {
	eng := NewCmdEngine("gridmix-no-such-solver")
	_, err := eng.Compile(context.Background(), writeMaster(t, "Solve\n"))
	assert.Error(t, err)

	require.NoError(t, eng.Close())
	_, err = eng.Compile(context.Background(), "Master.dss")
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestOrchestratorConverged(t *testing.T) {
	master := writeMaster(t, "Solve mode=daily stepsize=15m number=96\n")
	eng := NewFakeEngine()
	eng.OnSolve = func(ctx context.Context, h Handle) error {
		for _, name := range []string{"ckt_Mon_m2_1.csv", "ckt_Mon_m1_1.csv", "notes.txt"} {
			if err := os.WriteFile(filepath.Join(h.Dir, name), []byte("x"), 0644); err != nil {
				return err
			}
		}
		return nil
	}

	res, err := newOrchestrator(eng, time.Second).Run(context.Background(), "sub_circuit_1_m1", master)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Empty(t, res.Err)
	assert.Equal(t, []string{"ckt_Mon_m1_1.csv", "ckt_Mon_m2_1.csv"}, res.Exports)
	assert.Equal(t, Daily(), res.Mode)
	assert.Equal(t, epoch, res.Started)
	assert.Equal(t, []Mode{Daily()}, eng.Solved)
	assert.True(t, eng.Closed)
}

func TestOrchestratorNotConverged(t *testing.T) {
	eng := NewFakeEngine()
	eng.Converged = false

	res, err := newOrchestrator(eng, time.Second).Run(context.Background(), "i", writeMaster(t, "Solve\n"))
	assert.True(t, errors.Is(err, ErrNotConverged))
	assert.False(t, res.Converged)
	assert.Equal(t, ErrNotConverged.Error(), res.Err)
}

func TestOrchestratorCompileFailure(t *testing.T) {
	eng := NewFakeEngine()
	eng.CompileErr = ErrCompile

	res, err := newOrchestrator(eng, time.Second).Run(context.Background(), "i", "missing/Master.dss")
	assert.True(t, errors.Is(err, ErrCompile))
	assert.NotEmpty(t, res.Err)
	assert.Empty(t, eng.Solved)
	assert.True(t, eng.Closed)
}

func TestOrchestratorCloseFailure(t *testing.T) {
	eng := NewFakeEngine()
	eng.CloseErr = errors.New("solver process still running")

	res, err := newOrchestrator(eng, time.Second).Run(context.Background(), "i", writeMaster(t, "Solve\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to close solver")
	assert.Equal(t, err.Error(), res.Err)
	assert.True(t, eng.Closed)

	// a run that already failed keeps its own error
	eng = NewFakeEngine()
	eng.Converged = false
	eng.CloseErr = errors.New("solver process still running")
	_, err = newOrchestrator(eng, time.Second).Run(context.Background(), "i", writeMaster(t, "Solve\n"))
	assert.True(t, errors.Is(err, ErrNotConverged))
}

func TestOrchestratorTimeout(t *testing.T) {
	eng := NewFakeEngine()
	eng.OnSolve = func(ctx context.Context, h Handle) error {
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := newOrchestrator(eng, 10*time.Millisecond).Run(context.Background(), "i", writeMaster(t, "Solve\n"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
