package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceSetup_CreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Shared")

	w, err := NewWorkspace(root)
	require.NoError(t, err)

	require.NoError(t, w.Setup())
	t.Cleanup(func() { _ = w.Unlock() })

	assert.DirExists(t, w.Root)
	assert.DirExists(t, w.MetadataDir)
	assert.DirExists(t, w.LogsDir)
	assert.Equal(t, filepath.Join(w.Root, ".trsync", "state.db"), w.StatePath)
	assert.Equal(t, filepath.Join(w.Root, ".trsyncignore"), w.IgnorePath)
	assert.Equal(t, filepath.Join(w.LogsDir, "trsync.log"), w.LogFile())
}

func TestWorkspaceSetup_ResolvesSymlinks(t *testing.T) {
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	target := filepath.Join(base, "target")
	require.NoError(t, os.Mkdir(target, 0o755))
	link := filepath.Join(base, "link")
	require.NoError(t, os.Symlink(target, link))

	w, err := NewWorkspace(link)
	require.NoError(t, err)
	require.NoError(t, w.Setup())
	t.Cleanup(func() { _ = w.Unlock() })

	assert.Equal(t, target, w.Root)
	assert.DirExists(t, filepath.Join(target, ".trsync"))
}

func TestWorkspaceLocking_SingleInstance(t *testing.T) {
	root := t.TempDir()

	w1, err := NewWorkspace(root)
	require.NoError(t, err)
	w2, err := NewWorkspace(root)
	require.NoError(t, err)

	require.NoError(t, w1.Lock())

	err = w2.Lock()
	require.ErrorIs(t, err, ErrWorkspaceLocked)

	lockPath := filepath.Join(root, ".trsync", "trsync.lock")
	assert.FileExists(t, lockPath)

	require.NoError(t, w1.Unlock())
	_, statErr := os.Stat(lockPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)

	require.NoError(t, w2.Lock())
	t.Cleanup(func() { _ = w2.Unlock() })
}

func TestWorkspace_Paths(t *testing.T) {
	root := t.TempDir()
	w, err := NewWorkspace(root)
	require.NoError(t, err)

	rel, err := w.RelPath(filepath.Join(w.Root, "Folder", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Folder/a.txt", rel)
	assert.Equal(t, filepath.Join(w.Root, "Folder", "a.txt"), w.AbsPath("Folder/a.txt"))

	_, err = w.RelPath(filepath.Dir(w.Root))
	assert.Error(t, err)
}
