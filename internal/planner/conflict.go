package planner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/danieljhkim/gridmix/internal/fsops"
	"github.com/danieljhkim/gridmix/internal/state"
)

// ConflictChecker checks instance directories before a deploy.
type ConflictChecker struct {
	fs    fsops.FS
	force bool
}

// NewConflictChecker creates a new ConflictChecker.
func NewConflictChecker(fs fsops.FS, force bool) *ConflictChecker {
	return &ConflictChecker{fs: fs, force: force}
}

// CheckInstance checks the instance directory dir.
// Returns a Conflict if the job must not run, and whether an existing
// directory will be replaced.
func (c *ConflictChecker) CheckInstance(instance, dir string) (*Conflict, bool) {
	info, err := c.fs.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false
		}
		return &Conflict{
			Instance: instance,
			Path:     dir,
			Reason:   fmt.Sprintf("Failed to check path: %v", err),
			Existing: "unknown",
		}, false
	}

	if !info.IsDir() {
		// a plain file is never replaced, even with force
		return &Conflict{
			Instance: instance,
			Path:     dir,
			Reason:   "A file exists where the instance directory belongs",
			Existing: "file",
		}, false
	}

	if !c.IsManaged(dir) {
		if !c.force {
			return &Conflict{
				Instance: instance,
				Path:     dir,
				Reason:   "Unmanaged directory exists at destination",
				Existing: "unmanaged",
			}, false
		}
		return nil, true
	}

	if !c.force {
		return &Conflict{
			Instance: instance,
			Path:     dir,
			Reason:   "Instance already exists (use --force to replace)",
			Existing: "instance",
		}, false
	}
	return nil, true
}

// IsManaged reports whether dir holds a scenario manifest.
func (c *ConflictChecker) IsManaged(dir string) bool {
	ok, err := c.fs.Exists(filepath.Join(dir, state.ManifestFile))
	return err == nil && ok
}
