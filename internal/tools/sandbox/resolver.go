// Package sandbox resolves user-supplied relative paths against a
// configured workspace root and rejects anything that escapes it, per
// spec.md §4.3's workspace sandbox contract.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscapesWorkspace is returned when a resolved path is not a descendant
// of the workspace root.
var ErrEscapesWorkspace = errors.New("path escapes workspace root")

// Resolver resolves and validates workspace-relative paths.
type Resolver struct {
	Root string
}

// Resolve returns the canonicalized absolute path for the given (possibly
// relative, possibly symlinked) path, or ErrEscapesWorkspace if it is not a
// descendant of the root once both are fully resolved.
func (r Resolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}

	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := canonicalize(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}

	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}

	// Resolve symlinks on the deepest existing ancestor: the target itself
	// may not exist yet (e.g. a file about to be written), but every
	// existing ancestor directory must be canonicalized so a symlinked
	// parent directory cannot be used to escape the root.
	targetAbs, err := canonicalizeClosestExisting(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", ErrEscapesWorkspace
	}
	return targetAbs, nil
}

// canonicalize resolves symlinks for a path that is expected to exist.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", err
	}
	return resolved, nil
}

// canonicalizeClosestExisting walks up from path until it finds an existing
// ancestor, resolves symlinks on that ancestor, then rejoins the remaining
// (non-existent) path components verbatim.
func canonicalizeClosestExisting(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	var suffix []string
	cur := abs
	for {
		if _, err := os.Lstat(cur); err == nil {
			resolved, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached filesystem root without finding an existing ancestor.
			for i := len(suffix) - 1; i >= 0; i-- {
				parent = filepath.Join(parent, suffix[i])
			}
			return parent, nil
		}
		suffix = append(suffix, filepath.Base(cur))
		cur = parent
	}
}
