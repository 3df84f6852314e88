package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/danieljhkim/gridmix/internal/clock"
	"github.com/danieljhkim/gridmix/internal/config"
	"github.com/danieljhkim/gridmix/internal/engine"
	"github.com/danieljhkim/gridmix/internal/fsops"
	"github.com/danieljhkim/gridmix/internal/hash"
	"github.com/danieljhkim/gridmix/internal/solver"
	"github.com/danieljhkim/gridmix/internal/state"
)

// errNoConfig is returned when no deploy config can be located.
var errNoConfig = errors.New("no deploy config found")

// newEngine creates a new engine with real implementations of all
// dependencies. binary selects the solver executable.
func newEngine(binary string) (*engine.Engine, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get config paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	fs := fsops.NewRealFS()
	hasher := hash.NewSHA256Hasher()
	clk := clock.RealClock{}
	store := state.NewFileManifestStore(fs, paths.Batches)
	newSolver := func() solver.Engine { return solver.NewCmdEngine(binary) }

	return engine.New(store, fs, hasher, clk, newSolver, newLogger(os.Stderr)), nil
}

// newLogger returns a text logger at warn level, or debug with --verbose.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads .env and then the deploy config: the --config flag,
// ./gridmix.yaml, or the fallback under the gridmix root, in that order.
func loadConfig() (*config.DeployConfig, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	path, err := locateConfig()
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func locateConfig() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	candidates := []string{config.DefaultConfigFile}
	if paths, err := config.DefaultPaths(); err == nil {
		candidates = append(candidates, paths.Config)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: pass --config or create %s", errNoConfig, config.DefaultConfigFile)
}

// outputDir returns override when set, else the configured output directory.
func outputDir(override string) (string, *config.DeployConfig, error) {
	if override != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", nil, fmt.Errorf("failed to resolve output directory: %w", err)
		}
		cfg, err := loadConfig()
		if err != nil {
			cfg = config.Default()
		}
		return abs, cfg, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", nil, err
	}
	return cfg.OutputDir, cfg, nil
}

// formatJSON formats a value as JSON.
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// formatError formats an error for display.
func formatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON outputs a value as JSON.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progressWriter returns where progress bars go: stderr, unless JSON
// output is requested.
func progressWriter() io.Writer {
	if jsonOutput {
		return nil
	}
	return os.Stderr
}
