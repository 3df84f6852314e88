package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/gridmix/internal/evprofile"
	"github.com/danieljhkim/gridmix/internal/mix"
	"github.com/danieljhkim/gridmix/internal/rewrite"
	"github.com/danieljhkim/gridmix/internal/solver"
)

// DefaultConfigFile is the deploy config looked up in the working directory.
const DefaultConfigFile = "gridmix.yaml"

// Environment overrides applied after the config file.
const (
	EnvState        = "GRIDMIX_STATE"
	EnvSeason       = "GRIDMIX_SEASON"
	EnvEVController = "GRIDMIX_EV_SPLIT_CONTROLLED"
	EnvSolver       = "GRIDMIX_SOLVER"
)

// ErrInvalidConfig is returned when a deploy config fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Seasons a deployment can target.
const (
	SeasonWinter = "winter"
	SeasonSummer = "summer"
)

// DeployConfig is the contents of gridmix.yaml.
type DeployConfig struct {
	// TemplateRoot holds <substation>/<feeder>/ template directories.
	TemplateRoot string `yaml:"template_root"`

	// Substations limits discovery; empty means every substation.
	Substations []string `yaml:"substations"`

	OutputDir string `yaml:"output_dir"`
	MixFile   string `yaml:"mix_file"`

	// State and Season select the curve bucket <STATE>_circuit_<n>_<season>.
	State  string `yaml:"state"`
	Season string `yaml:"season"`

	Curves CurveRoots `yaml:"curves"`

	// EVDemand is an optional average per-vehicle demand CSV.
	EVDemand string   `yaml:"ev_demand"`
	EV       EVConfig `yaml:"ev"`

	// CircuitMap assigns circuit numbers to feeder names. Unmapped feeders
	// are numbered by their sorted position within the substation.
	CircuitMap map[string]int `yaml:"circuit_map"`

	// Skip lists feeder names never deployed.
	Skip []string `yaml:"skip"`

	MaxFeeders int `yaml:"max_feeders"`
	Workers    int `yaml:"workers"`

	Solver      SolverConfig   `yaml:"solver"`
	Sizing      rewrite.Sizing `yaml:"sizing"`
	MixDefaults MixDefaults    `yaml:"mix_defaults"`

	// dir is the config file's directory; relative paths resolve against it.
	dir string
}

// CurveRoots are the per-category curve trees.
type CurveRoots struct {
	Baseline      string `yaml:"baseline"`
	DemandManaged string `yaml:"demand_managed"`
	Uncontrolled  string `yaml:"uncontrolled"`
}

// Roots returns the curve roots keyed by heating category.
func (c CurveRoots) Roots() map[mix.Category]string {
	return map[mix.Category]string{
		mix.Baseline:      c.Baseline,
		mix.DemandManaged: c.DemandManaged,
		mix.Uncontrolled:  c.Uncontrolled,
	}
}

// EVConfig tunes the charging-session generator.
type EVConfig struct {
	NominalKW float64 `yaml:"nominal_kw"`
	MinFactor float64 `yaml:"min_factor"`
	MaxEvents int     `yaml:"max_events"`
	Seed      uint64  `yaml:"seed"`
}

// Params converts the config to generator parameters.
func (e EVConfig) Params() evprofile.Params {
	return evprofile.Params{
		NominalKW: e.NominalKW,
		MinFactor: e.MinFactor,
		MaxEvents: e.MaxEvents,
		Seed:      e.Seed,
	}
}

// SolverConfig selects the external solver.
type SolverConfig struct {
	Binary  string        `yaml:"binary"`
	Timeout time.Duration `yaml:"timeout"`
}

// MixDefaults fill in what mix declarations leave out.
type MixDefaults struct {
	HeatingSeed       int64   `yaml:"heating_seed"`
	EVLevel2          float64 `yaml:"ev_level2"`
	EVSplitControlled float64 `yaml:"ev_split_controlled"`
	DisjointSets      bool    `yaml:"disjoint_sets"`
}

// Defaults converts the config to mix defaults.
func (d MixDefaults) Defaults() mix.Defaults {
	return mix.Defaults{
		HeatingSeed: d.HeatingSeed,
		EVLevel2:    d.EVLevel2,
		EVSplit: mix.Split{
			Controlled:   d.EVSplitControlled,
			Uncontrolled: 1 - d.EVSplitControlled,
		},
		DisjointSets: d.DisjointSets,
	}
}

// Default returns a config with every knob at its stock value and no paths.
func Default() *DeployConfig {
	md := mix.DefaultDefaults()
	ev := evprofile.DefaultParams()
	return &DeployConfig{
		Season:  SeasonWinter,
		Workers: 4,
		EV: EVConfig{
			NominalKW: ev.NominalKW,
			MinFactor: ev.MinFactor,
			MaxEvents: ev.MaxEvents,
			Seed:      ev.Seed,
		},
		Solver: SolverConfig{
			Binary:  solver.DefaultBinary,
			Timeout: solver.DefaultTimeout,
		},
		Sizing: rewrite.DefaultSizing(),
		MixDefaults: MixDefaults{
			HeatingSeed:       md.HeatingSeed,
			EVLevel2:          md.EVLevel2,
			EVSplitControlled: md.EVSplit.Controlled,
			DisjointSets:      md.DisjointSets,
		},
	}
}

// LoadEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the deploy config at path on top of Default, applies
// environment overrides and validates the result.
func Load(path string) (*DeployConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	cfg.dir = filepath.Dir(abs)
	cfg.resolvePaths()

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GRIDMIX_* environment variables.
func (c *DeployConfig) ApplyEnv() error {
	if v := os.Getenv(EnvState); v != "" {
		c.State = v
	}
	if v := os.Getenv(EnvSeason); v != "" {
		c.Season = v
	}
	if v := os.Getenv(EnvSolver); v != "" {
		c.Solver.Binary = v
	}
	if v := os.Getenv(EnvEVController); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvEVController, v)
		}
		c.MixDefaults.EVSplitControlled = f
	}
	return nil
}

// Validate checks required fields and ranges.
func (c *DeployConfig) Validate() error {
	var problems []string
	if c.TemplateRoot == "" {
		problems = append(problems, "template_root is required")
	}
	if c.OutputDir == "" {
		problems = append(problems, "output_dir is required")
	}
	if c.MixFile == "" {
		problems = append(problems, "mix_file is required")
	}

	c.Season = strings.ToLower(strings.TrimSpace(c.Season))
	if c.Season != SeasonWinter && c.Season != SeasonSummer {
		problems = append(problems, fmt.Sprintf("season must be %q or %q, got %q", SeasonWinter, SeasonSummer, c.Season))
	}
	if c.Workers < 1 {
		problems = append(problems, "workers must be at least 1")
	}
	if c.MaxFeeders < 0 {
		problems = append(problems, "max_feeders must not be negative")
	}
	if s := c.MixDefaults.EVSplitControlled; s < 0 || s > 1 {
		problems = append(problems, fmt.Sprintf("ev_split_controlled must be within [0, 1], got %g", s))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Skipped reports whether feeder is on the skip list.
func (c *DeployConfig) Skipped(feeder string) bool {
	for _, s := range c.Skip {
		if strings.EqualFold(s, feeder) {
			return true
		}
	}
	return false
}

func (c *DeployConfig) resolvePaths() {
	for _, p := range []*string{
		&c.TemplateRoot,
		&c.OutputDir,
		&c.MixFile,
		&c.EVDemand,
		&c.Curves.Baseline,
		&c.Curves.DemandManaged,
		&c.Curves.Uncontrolled,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(c.dir, *p)
		}
	}
}
