package integration

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danieljhkim/gridmix/internal/engine"
)

func deployAll(t *testing.T, h *testHarness) {
	t.Helper()
	if _, err := h.eng.Deploy(context.Background(), &engine.DeployRequest{Config: h.cfg}); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
}

func TestRunAndCheck_Pass(t *testing.T) {
	h := setupTestEngine(t, 2048)
	deployAll(t, h)

	result, err := h.eng.Run(context.Background(), &engine.RunRequest{OutputDir: outputDir, Workers: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Failed != 0 || len(result.Results) != 4 {
		t.Fatalf("Run() = %d results, %d failed", len(result.Results), result.Failed)
	}
	if h.solves != 4 {
		t.Errorf("solver ran %d times, want 4", h.solves)
	}
	for _, r := range result.Results {
		if len(r.Exports) != 2 {
			t.Errorf("%s exports = %v, want m1 and m2", r.Instance, r.Exports)
		}
	}

	check, err := h.eng.Check(&engine.CheckRequest{OutputDir: outputDir})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	for _, row := range check.Rows {
		if !row.Pass {
			t.Errorf("%s failed: %v", row.Instance, row.Reasons)
		}
	}
	report := h.fs.read(t, filepath.Join(outputDir, engine.CheckReportFile))
	if !strings.HasPrefix(report, "circuit_folder,status,reasons\n") || strings.Count(report, ",PASS,") != 4 {
		t.Errorf("unexpected report:\n%s", report)
	}
	if ok, _ := h.fs.Exists(filepath.Join(outputDir, engine.CheckFailingFile)); ok {
		t.Error("failing list written for a passing batch")
	}
}

func TestRunAndCheck_TruncatedExports(t *testing.T) {
	h := setupTestEngine(t, 10)
	deployAll(t, h)

	if _, err := h.eng.Run(context.Background(), &engine.RunRequest{
		OutputDir: outputDir,
		Pattern:   "*_base",
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	check, err := h.eng.Check(&engine.CheckRequest{OutputDir: outputDir})
	if !errors.Is(err, engine.ErrCheckFailed) {
		t.Fatalf("Check() error = %v, want ErrCheckFailed", err)
	}

	reasons := make(map[string]string)
	for _, row := range check.Rows {
		reasons[row.Instance] = strings.Join(row.Reasons, " ")
	}
	if !strings.Contains(reasons["p2u_circuit_1_base"], "m1 CSV too small") {
		t.Errorf("solved instance reasons = %q", reasons["p2u_circuit_1_base"])
	}
	if !strings.Contains(reasons["p2u_circuit_1_electrified"], "No m1 CSV found.") {
		t.Errorf("unsolved instance reasons = %q", reasons["p2u_circuit_1_electrified"])
	}

	failing := h.fs.read(t, filepath.Join(outputDir, engine.CheckFailingFile))
	if len(strings.Split(failing, "\n")) != 4 {
		t.Errorf("failing list = %q, want all four instances", failing)
	}
}
