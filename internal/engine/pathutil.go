package engine

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolveWithin resolves a user-provided instance path (absolute, relative
// to cwd, or a bare instance name under root) to a clean absolute path. It
// rejects paths that escape root or resolve to root itself.
func resolveWithin(userPath, cwd, root string) (string, error) {
	root = filepath.Clean(root)

	var absPath string
	switch {
	case filepath.IsAbs(userPath):
		absPath = userPath
	case !strings.ContainsAny(userPath, `/\`) && userPath != "." && userPath != "..":
		absPath = filepath.Join(root, userPath)
	default:
		absPath = filepath.Join(cwd, userPath)
	}
	absPath = filepath.Clean(absPath)

	relPath, err := filepath.Rel(root, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to compute output-relative path for %q: %w", userPath, err)
	}

	// Reject paths outside the output directory
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q resolves to %q which is outside %s", ErrValidation, userPath, absPath, root)
	}

	// Reject the output directory itself
	if relPath == "." {
		return "", fmt.Errorf("%w: path %q resolves to the output directory, not an instance", ErrValidation, userPath)
	}

	return absPath, nil
}
