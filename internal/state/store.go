package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danieljhkim/gridmix/internal/fsops"
	"github.com/danieljhkim/gridmix/internal/solver"
)

// ManifestStore persists instance and batch records.
type ManifestStore interface {
	// SaveManifest writes the instance's scenario_assignments.json.
	SaveManifest(instanceDir string, m *Manifest) error

	// LoadManifest reads scenario_assignments.json.
	// Returns os.ErrNotExist if the instance has none.
	LoadManifest(instanceDir string) (*Manifest, error)

	// SaveProvenance writes provenance.json.
	SaveProvenance(instanceDir string, p *Provenance) error

	// LoadProvenance reads provenance.json.
	// Returns os.ErrNotExist if the instance has none.
	LoadProvenance(instanceDir string) (*Provenance, error)

	// SaveRunResult writes run_result.json.
	SaveRunResult(instanceDir string, r *solver.RunResult) error

	// LoadRunResult reads run_result.json.
	// Returns os.ErrNotExist if the instance has not been run.
	LoadRunResult(instanceDir string) (*solver.RunResult, error)

	// SaveBatch writes a batch record into the batches directory.
	SaveBatch(b *BatchRecord) error

	// LoadBatch reads the batch record with the given id.
	// Returns os.ErrNotExist if it does not exist.
	LoadBatch(id string) (*BatchRecord, error)
}

// FileManifestStore implements ManifestStore with indented JSON files.
type FileManifestStore struct {
	fs         fsops.FS
	batchesDir string
}

// NewFileManifestStore creates a FileManifestStore keeping batch records
// in batchesDir.
func NewFileManifestStore(fs fsops.FS, batchesDir string) *FileManifestStore {
	return &FileManifestStore{fs: fs, batchesDir: batchesDir}
}

func (s *FileManifestStore) SaveManifest(instanceDir string, m *Manifest) error {
	return s.save(filepath.Join(instanceDir, ManifestFile), "manifest", m)
}

func (s *FileManifestStore) LoadManifest(instanceDir string) (*Manifest, error) {
	var m Manifest
	if err := s.load(filepath.Join(instanceDir, ManifestFile), "manifest", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *FileManifestStore) SaveProvenance(instanceDir string, p *Provenance) error {
	return s.save(filepath.Join(instanceDir, ProvenanceFile), "provenance", p)
}

func (s *FileManifestStore) LoadProvenance(instanceDir string) (*Provenance, error) {
	var p Provenance
	if err := s.load(filepath.Join(instanceDir, ProvenanceFile), "provenance", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *FileManifestStore) SaveRunResult(instanceDir string, r *solver.RunResult) error {
	return s.save(filepath.Join(instanceDir, RunResultFile), "run result", r)
}

func (s *FileManifestStore) LoadRunResult(instanceDir string) (*solver.RunResult, error) {
	var r solver.RunResult
	if err := s.load(filepath.Join(instanceDir, RunResultFile), "run result", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *FileManifestStore) SaveBatch(b *BatchRecord) error {
	if err := s.fs.ValidateIdentifier(b.ID); err != nil {
		return fmt.Errorf("invalid batch id: %w", err)
	}
	return s.save(filepath.Join(s.batchesDir, b.ID+".json"), "batch record", b)
}

func (s *FileManifestStore) LoadBatch(id string) (*BatchRecord, error) {
	if err := s.fs.ValidateIdentifier(id); err != nil {
		return nil, fmt.Errorf("invalid batch id: %w", err)
	}
	var b BatchRecord
	if err := s.load(filepath.Join(s.batchesDir, id+".json"), "batch record", &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *FileManifestStore) save(path, what string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", what, err)
	}
	data = append(data, '\n')

	if err := s.fs.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", what, err)
	}
	return nil
}

func (s *FileManifestStore) load(path, what string, v any) error {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return fmt.Errorf("failed to read %s: %w", what, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", what, err)
	}
	return nil
}
