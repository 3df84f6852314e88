package state

import (
	"time"

	"github.com/danieljhkim/gridmix/internal/mix"
	"github.com/danieljhkim/gridmix/internal/rewrite"
)

// Record file names inside an instance directory.
const (
	ManifestFile   = "scenario_assignments.json"
	ProvenanceFile = "provenance.json"
	RunResultFile  = "run_result.json"
)

// Manifest records how one scenario instance was allocated.
type Manifest struct {
	Instance   string `json:"instance"`
	Substation string `json:"substation"`
	Feeder     string `json:"feeder"`
	Circuit    int    `json:"circuit"`
	Mix        string `json:"mix"`
	Season     string `json:"season"`
	Bucket     string `json:"bucket"`

	Heating HeatingManifest  `json:"heating"`
	EV      EVManifest       `json:"ev"`
	EVSplit mix.Split        `json:"ev_split"`
	Storage ResourceManifest `json:"storage"`
	PV      ResourceManifest `json:"pv"`

	DisjointSets    bool `json:"disjoint_sets"`
	DisjointRelaxed bool `json:"disjoint_relaxed"`

	EVLoadsUncontrolled []string `json:"ev_loads_uncontrolled"`
	EVLoadsControlled   []string `json:"ev_loads_controlled"`
	EVLoads             []string `json:"ev_loads"`
	StorageTargets      []string `json:"storage_targets"`
	PVTargets           []string `json:"pv_targets"`

	Rewrite rewrite.Report `json:"rewrite"`
}

// HeatingManifest is the heating category outcome.
type HeatingManifest struct {
	Shares      mix.Shares     `json:"shares"`
	Seed        int64          `json:"seed"`
	BaseCounts  map[string]int `json:"base_counts"`
	ShapeCounts map[string]int `json:"shape_counts"`

	// Assignment maps each customer base name to its category code.
	Assignment map[string]string `json:"assignment"`
}

// EVManifest is the EV host selection outcome.
type EVManifest struct {
	Perc       float64 `json:"perc"`
	Level2Perc float64 `json:"lvl2_perc"`
	Seed       int64   `json:"seed"`
	Requested  int     `json:"requested"`
	Bumped     bool    `json:"bumped"`
}

// ResourceManifest is a storage or PV placement outcome.
type ResourceManifest struct {
	Perc3ph   float64  `json:"perc_3ph"`
	Seed      int64    `json:"seed"`
	Eligible  int      `json:"eligible"`
	Requested int      `json:"requested"`
	Bases     []string `json:"bases"`
}

// Provenance ties an instance to the batch and inputs that produced it.
type Provenance struct {
	BatchID   string    `json:"batch_id"`
	Instance  string    `json:"instance"`
	CreatedAt time.Time `json:"created_at"`
	Template  string    `json:"template"`
	MixFile   string    `json:"mix_file"`
	Version   string    `json:"version"`

	// Checksums maps instance-relative paths to SHA-256 digests.
	Checksums map[string]string `json:"checksums"`
}

// BatchRecord summarizes one deploy run.
type BatchRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	OutputDir  string    `json:"output_dir"`
	MixFile    string    `json:"mix_file"`
	Season     string    `json:"season"`

	// Instances lists prepared instance names, sorted.
	Instances []string `json:"instances"`

	// Skipped lists instances left untouched because they already existed.
	Skipped []string `json:"skipped,omitempty"`

	// Failures maps job names to error text.
	Failures map[string]string `json:"failures,omitempty"`
}

// NewBatchRecord creates an empty BatchRecord.
func NewBatchRecord(id string, started time.Time) *BatchRecord {
	return &BatchRecord{
		ID:        id,
		StartedAt: started,
		Instances: []string{},
		Failures:  make(map[string]string),
	}
}
