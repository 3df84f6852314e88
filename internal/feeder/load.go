package feeder

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/gridmix/internal/dss"
	"github.com/danieljhkim/gridmix/internal/fsops"
)

// Conventional template file names, matched case-insensitively.
const (
	LoadsName  = "Loads.dss"
	ShapesName = "LoadShapes.dss"
	MasterName = "Master.dss"
)

// Load reads the feeder template in dir. The loads, load shapes and master
// files are parsed; every other file is recorded as a sibling to be copied
// verbatim into each instance.
func Load(fs fsops.FS, dir, substation, feederName string) (*Model, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeder directory: %w", err)
	}

	var loadsPath, shapesPath, masterPath string
	var siblings []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(e.Name()) {
		case strings.ToLower(LoadsName):
			loadsPath = filepath.Join(dir, e.Name())
		case strings.ToLower(ShapesName):
			shapesPath = filepath.Join(dir, e.Name())
		case strings.ToLower(MasterName):
			masterPath = filepath.Join(dir, e.Name())
		default:
			if !IsSkippable(e.Name()) {
				siblings = append(siblings, e.Name())
			}
		}
	}

	loads, err := readOptional(fs, loadsPath)
	if err != nil {
		return nil, err
	}
	shapes, err := readOptional(fs, shapesPath)
	if err != nil {
		return nil, err
	}
	master, err := readOptional(fs, masterPath)
	if err != nil {
		return nil, err
	}

	m, err := Parse(substation, feederName, loads, shapes, master)
	if err != nil {
		return nil, fmt.Errorf("feeder %s/%s: %w", substation, feederName, err)
	}
	m.Dir = dir
	m.Siblings = siblings
	return m, nil
}

func readOptional(fs fsops.FS, path string) (*dss.File, error) {
	if path == "" {
		return nil, nil
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	f, err := dss.Parse(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// IsSkippable reports whether a directory entry is a template artifact that
// should not be copied into instances, such as earlier rewrite backups.
func IsSkippable(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, "_original.dss") || strings.HasPrefix(lower, ".gridmix-tmp-")
}
