package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/trsync/internal/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHiddenName(t *testing.T) {
	for _, name := range []string{".git", "~lock", "#draft#", "notes.txt~"} {
		assert.True(t, IsHiddenName(name), name)
	}
	for _, name := range []string{"a.txt", "Folder", "a~b.txt", ""} {
		assert.False(t, IsHiddenName(name), name)
	}
}

func TestList_IgnoredPath(t *testing.T) {
	list, err := New([]string{"build/", "*.bak"}, []string{"Archives/**"})
	require.NoError(t, err)

	ignored := []string{
		".trsyncignore",
		"Folder/.hidden/a.txt",
		"Folder/a.txt~",
		"build/out.bin",
		"Folder/old.bak",
		"Archives/2020/report.pdf",
	}
	for _, p := range ignored {
		assert.True(t, list.IgnoredPath(p), p)
	}

	kept := []string{
		"a.txt",
		"Folder/a.txt",
		"Folder/report.document.html",
		"Archive.txt",
		"report.tmp",
		"Thumbs.db",
		"Folder/draft.part",
	}
	for _, p := range kept {
		assert.False(t, list.IgnoredPath(p), p)
	}
}

func TestList_IgnoredID(t *testing.T) {
	list, err := New([]string{"#12", "# a comment", "#7  ", "*.bak"}, nil)
	require.NoError(t, err)

	assert.True(t, list.IgnoredID(12))
	assert.True(t, list.IgnoredID(7))
	assert.False(t, list.IgnoredID(1))
	assert.ElementsMatch(t, []content.ID{7, 12}, list.IDs())
}

func TestLoad(t *testing.T) {
	root := t.TempDir()

	list, err := Load(root, nil)
	require.NoError(t, err)
	assert.Empty(t, list.IDs())

	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("#3\nsecret/\n"), 0o644))
	list, err = Load(root, nil)
	require.NoError(t, err)
	assert.True(t, list.IgnoredID(3))
	assert.True(t, list.IgnoredPath("secret/plan.txt"))

	_, err = New(nil, []string{"[unclosed"})
	assert.Error(t, err)
}
