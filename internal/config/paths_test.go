package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPaths(t *testing.T) {
	t.Run("returns paths based on home directory", func(t *testing.T) {
		t.Setenv("GRIDMIX_ROOT", "")

		paths, err := DefaultPaths()
		if err != nil {
			t.Fatalf("DefaultPaths failed: %v", err)
		}

		if paths.Root == "" {
			t.Error("Root should not be empty")
		}
		if paths.Batches != filepath.Join(paths.Root, "batches") {
			t.Errorf("Batches path incorrect: got %s", paths.Batches)
		}
		if paths.Config != filepath.Join(paths.Root, "config.yaml") {
			t.Errorf("Config path incorrect: got %s", paths.Config)
		}
		if filepath.Base(paths.Root) != ".gridmix" {
			t.Errorf("Root should end with .gridmix, got: %s", paths.Root)
		}
	})

	t.Run("respects GRIDMIX_ROOT environment variable", func(t *testing.T) {
		customRoot := "/custom/gridmix/path"
		t.Setenv("GRIDMIX_ROOT", customRoot)

		paths, err := DefaultPaths()
		if err != nil {
			t.Fatalf("DefaultPaths failed: %v", err)
		}
		if paths.Root != customRoot {
			t.Errorf("Root = %s, want %s", paths.Root, customRoot)
		}
		if paths.Batches != filepath.Join(customRoot, "batches") {
			t.Errorf("Batches path incorrect: got %s", paths.Batches)
		}
	})
}

func TestEnsureDirectories(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gridmix")
	paths := &Paths{Root: root, Batches: filepath.Join(root, "batches")}

	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{paths.Root, paths.Batches} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("directory %s missing: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}

	// idempotent
	if err := paths.EnsureDirectories(); err != nil {
		t.Errorf("second EnsureDirectories failed: %v", err)
	}
}
