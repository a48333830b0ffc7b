package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithinRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hi"), 0o644))

	r := Resolver{Root: root}
	resolved, err := r.Resolve("a.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a.txt"), resolved)
}

func TestResolveRejectsDotDotEscape(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Root: root}

	_, err := r.Resolve("../etc/passwd")
	assert.ErrorIs(t, err, ErrEscapesWorkspace)
}

func TestResolveRejectsAbsoluteEscape(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Root: root}

	_, err := r.Resolve("/etc/passwd")
	assert.ErrorIs(t, err, ErrEscapesWorkspace)
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("nope"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	r := Resolver{Root: root}
	_, err := r.Resolve("escape/secret.txt")
	assert.ErrorIs(t, err, ErrEscapesWorkspace)
}

func TestResolveAllowsNonexistentWriteTarget(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Root: root}

	resolved, err := r.Resolve("new/nested/file.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "new", "nested", "file.txt"), resolved)
}
