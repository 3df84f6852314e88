// Package config manages gridmix configuration and filesystem paths.
//
// Configuration has two layers: the locations of gridmix's own data
// directories, which can be customized via environment variables, and the
// deploy configuration read from gridmix.yaml. The default root is
// ~/.gridmix/ containing batches/ and config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the filesystem paths used by gridmix.
type Paths struct {
	// Root is the base directory for all gridmix data (default: ~/.gridmix)
	Root string

	// Batches is the directory containing batch records
	Batches string

	// Config is the path to the fallback deploy config file
	Config string
}

// DefaultPaths returns the default paths for gridmix.
// Paths can be overridden with environment variables:
// - GRIDMIX_ROOT: Override the root directory
func DefaultPaths() (*Paths, error) {
	root := os.Getenv("GRIDMIX_ROOT")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".gridmix")
	}

	return &Paths{
		Root:    root,
		Batches: filepath.Join(root, "batches"),
		Config:  filepath.Join(root, "config.yaml"),
	}, nil
}

// EnsureDirectories creates all necessary directories if they don't exist.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.Root,
		p.Batches,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
