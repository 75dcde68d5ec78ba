package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsSelfParent(t *testing.T) {
	_, err := New(3, 1, "a.txt", 3, KindFile)
	assert.ErrorIs(t, err, ErrSelfParent)

	_, err = New(0, 1, "a.txt", 0, KindFile)
	assert.ErrorIs(t, err, ErrInvalidID)

	c, err := New(3, 1, "a.txt", 2, KindFile)
	require.NoError(t, err)
	assert.True(t, c.HasParent())
}

func TestKind_ParseAndFillable(t *testing.T) {
	for _, name := range []string{"file", "folder", "html-document"} {
		k, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, name, k.String())
	}

	_, err := ParseKind("thread")
	assert.ErrorIs(t, err, ErrUnknownKind)

	assert.True(t, KindFile.Fillable())
	assert.True(t, KindRichDocument.Fillable())
	assert.False(t, KindFolder.Fillable())
}

func TestKindOfPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Folder"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.document.html"), []byte("<p>"), 0o644))

	k, err := KindOfPath(filepath.Join(dir, "Folder"))
	require.NoError(t, err)
	assert.Equal(t, KindFolder, k)

	k, err = KindOfPath(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, KindFile, k)

	k, err = KindOfPath(filepath.Join(dir, "notes.document.html"))
	require.NoError(t, err)
	assert.Equal(t, KindRichDocument, k)

	_, err = KindOfPath(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
