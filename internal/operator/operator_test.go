package operator

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/event"
	"github.com/openmined/trsync/internal/ignore"
	"github.com/openmined/trsync/internal/remote"
	"github.com/openmined/trsync/internal/state"
	"github.com/openmined/trsync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	root   string
	state  *state.MemoryState
	client *remote.MockClient
	op     *Operator
}

func newFixture(t *testing.T, ignoreLines ...string) *fixture {
	t.Helper()
	// macos is funny =)
	// tmpdir lives in /var/folders but it's actually symlink to /private/var/folders
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	list, err := ignore.New(ignoreLines, nil)
	require.NoError(t, err)

	f := &fixture{
		root:   root,
		state:  state.NewMemoryState(),
		client: remote.NewMockClient(),
	}
	f.op = New(root, f.state, f.client, list, WithRetryDelay(0))
	return f
}

// synced creates a content on both sides and tracks it, as after a sync.
func (f *fixture) synced(t *testing.T, name string, kind content.Kind, parent content.ID, data string) content.ID {
	t.Helper()
	id := f.client.Seed(name, kind, parent, []byte(data))

	parentPath := ""
	if parent != 0 {
		p, err := f.state.Path(parent)
		require.NoError(t, err)
		parentPath = p
	}
	rel := state.JoinPath(parentPath, name)
	absPath := utils.AbsPath(f.root, rel)
	if kind == content.KindFolder {
		require.NoError(t, os.Mkdir(absPath, 0o755))
	} else {
		require.NoError(t, os.WriteFile(absPath, []byte(data), 0o644))
	}

	rc, err := f.client.Get(t.Context(), id)
	require.NoError(t, err)
	c, err := rc.Content()
	require.NoError(t, err)
	ts, err := content.ModTimestamp(absPath)
	require.NoError(t, err)
	require.NoError(t, f.state.Apply(state.Add{Content: c, Path: rel, Timestamp: ts}))
	f.client.ResetCalls()
	return id
}

func (f *fixture) write(t *testing.T, rel, data string) {
	t.Helper()
	absPath := utils.AbsPath(f.root, rel)
	require.NoError(t, os.WriteFile(absPath, []byte(data), 0o644))
	// make sure the modification time moves
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(absPath, later, later))
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(utils.AbsPath(f.root, rel))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) onDisk(t *testing.T) []string {
	t.Helper()
	var paths []string
	require.NoError(t, filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || p == f.root {
			return err
		}
		rel, err := utils.RelPath(f.root, p)
		paths = append(paths, rel)
		return err
	}))
	slices.Sort(paths)
	return paths
}

func (f *fixture) tracked(t *testing.T) []string {
	t.Helper()
	contents, err := f.state.Contents()
	require.NoError(t, err)
	var paths []string
	for _, c := range contents {
		p, err := f.state.Path(c.ID)
		require.NoError(t, err)
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func remoteEvent(t event.RemoteType, id content.ID) event.Remote {
	return event.Remote{Type: t, ContentID: id}
}

func TestOperator_RemoteCreated(t *testing.T) {
	t.Run("file at the root", func(t *testing.T) {
		f := newFixture(t)
		id := f.client.Seed("a.txt", content.KindFile, 0, []byte("hello"))
		require.Equal(t, content.ID(1), id)

		require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteCreated, id)))

		assert.Equal(t, []string{"a.txt"}, f.onDisk(t))
		assert.Equal(t, []string{"a.txt"}, f.tracked(t))
		assert.Equal(t, "hello", f.read(t, "a.txt"))
		p, err := f.state.Path(1)
		require.NoError(t, err)
		assert.Equal(t, "a.txt", p)
		assert.Empty(t, f.client.Calls())
	})

	t.Run("scratch file name", func(t *testing.T) {
		f := newFixture(t)
		id := f.client.Seed("report.tmp", content.KindFile, 0, []byte("draft"))

		require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteCreated, id)))

		assert.Equal(t, []string{"report.tmp"}, f.onDisk(t))
		assert.Equal(t, []string{"report.tmp"}, f.tracked(t))
		assert.Equal(t, "draft", f.read(t, "report.tmp"))
	})

	t.Run("folder then file inside", func(t *testing.T) {
		f := newFixture(t)
		folder := f.client.Seed("Folder", content.KindFolder, 0, nil)
		file := f.client.Seed("a.txt", content.KindFile, folder, []byte("x"))

		err := f.op.Operate(t.Context(), remoteEvent(event.RemoteCreated, file))
		require.ErrorIs(t, err, ErrMissingParent)
		assert.Empty(t, f.onDisk(t))

		require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteCreated, folder)))
		require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteCreated, file)))
		assert.Equal(t, []string{"Folder", "Folder/a.txt"}, f.onDisk(t))
		assert.Equal(t, []string{"Folder", "Folder/a.txt"}, f.tracked(t))
	})

	t.Run("rich document", func(t *testing.T) {
		f := newFixture(t)
		id := f.client.Seed("Notes"+content.RichDocumentSuffix, content.KindRichDocument, 0, []byte("<p>hi</p>"))

		require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteCreated, id)))
		assert.Equal(t, "<p>hi</p>", f.read(t, "Notes"+content.RichDocumentSuffix))
	})

	t.Run("under an ignored folder", func(t *testing.T) {
		f := newFixture(t, "#1")
		folder := f.client.Seed("Private", content.KindFolder, 0, nil)
		require.Equal(t, content.ID(1), folder)
		file := f.client.Seed("a.txt", content.KindFile, folder, nil)

		require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteCreated, file)))
		assert.Empty(t, f.onDisk(t))
		assert.Empty(t, f.tracked(t))
	})

	t.Run("attachment", func(t *testing.T) {
		f := newFixture(t)
		doc := f.synced(t, "thread.txt", content.KindFile, 0, "talk")
		attachment := f.client.Seed("picture.png", content.KindFile, doc, []byte("png"))

		require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteCreated, attachment)))
		assert.Equal(t, []string{"thread.txt"}, f.onDisk(t))
		assert.Equal(t, []string{"thread.txt"}, f.tracked(t))
	})

	t.Run("already trashed", func(t *testing.T) {
		f := newFixture(t)
		id := f.client.Seed("a.txt", content.KindFile, 0, nil)
		require.NoError(t, f.client.Trash(t.Context(), id))

		require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteCreated, id)))
		assert.Empty(t, f.onDisk(t))
	})
}

func TestOperator_RemoteDeleted(t *testing.T) {
	f := newFixture(t)
	folder := f.synced(t, "Folder", content.KindFolder, 0, "")
	f.synced(t, "a.txt", content.KindFile, folder, "a")
	f.synced(t, "b.txt", content.KindFile, 0, "b")

	require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteDeleted, folder)))
	assert.Equal(t, []string{"b.txt"}, f.onDisk(t))
	assert.Equal(t, []string{"b.txt"}, f.tracked(t))

	// unknown content
	require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteDeleted, 42)))
	assert.Equal(t, []string{"b.txt"}, f.tracked(t))
}

func TestOperator_RemoteDeletedGoneOnBothSides(t *testing.T) {
	f := newFixture(t)
	id := f.synced(t, "a.txt", content.KindFile, 0, "a")
	require.NoError(t, os.Remove(filepath.Join(f.root, "a.txt")))
	require.NoError(t, f.client.Trash(t.Context(), id))
	f.client.ResetCalls()

	require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteDeleted, id)))
	assert.Empty(t, f.onDisk(t))
	assert.Empty(t, f.tracked(t))
	assert.Empty(t, f.client.Calls())
}

func TestOperator_RemoteUpdated(t *testing.T) {
	t.Run("new bytes", func(t *testing.T) {
		f := newFixture(t)
		id := f.synced(t, "a.txt", content.KindFile, 0, "old")
		f.client.SetData(id, []byte("new"))

		require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteUpdated, id)))
		assert.Equal(t, "new", f.read(t, "a.txt"))

		rc, err := f.client.Get(t.Context(), id)
		require.NoError(t, err)
		c, err := f.state.Get(id)
		require.NoError(t, err)
		assert.Equal(t, rc.RevisionID, c.Revision)
	})

	t.Run("renamed and moved", func(t *testing.T) {
		f := newFixture(t)
		id := f.synced(t, "a.txt", content.KindFile, 0, "a")
		folder := f.synced(t, "Folder", content.KindFolder, 0, "")
		f.client.Mutate(id, func(rc *remote.RemoteContent) {
			rc.FileName = "x.txt"
			rc.ParentID = folder
		})

		require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteRenamed, id)))
		assert.Equal(t, []string{"Folder", "Folder/x.txt"}, f.onDisk(t))
		assert.Equal(t, []string{"Folder", "Folder/x.txt"}, f.tracked(t))
		assert.Equal(t, "a", f.read(t, "Folder/x.txt"))
	})

	t.Run("unknown content is created", func(t *testing.T) {
		f := newFixture(t)
		id := f.client.Seed("moved-in.txt", content.KindFile, 0, []byte("x"))

		require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteUpdated, id)))
		assert.Equal(t, []string{"moved-in.txt"}, f.tracked(t))
	})

	t.Run("moved under an ignored folder", func(t *testing.T) {
		f := newFixture(t, "#2")
		id := f.synced(t, "a.txt", content.KindFile, 0, "a")
		private := f.client.Seed("Private", content.KindFolder, 0, nil)
		require.Equal(t, content.ID(2), private)
		f.client.Mutate(id, func(rc *remote.RemoteContent) { rc.ParentID = private })

		require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteUpdated, id)))
		assert.Empty(t, f.onDisk(t))
		assert.Empty(t, f.tracked(t))
	})
}

func TestOperator_LocalCreated(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		f := newFixture(t)
		f.write(t, "a.txt", "hello")

		require.NoError(t, f.op.Operate(t.Context(), event.Created("a.txt")))
		assert.Equal(t, []string{"create a.txt", "fill_remote 1"}, f.client.Calls())
		assert.Equal(t, "hello", string(f.client.Data(1)))
		assert.Equal(t, []string{"a.txt"}, f.tracked(t))
	})

	t.Run("folder", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, os.Mkdir(filepath.Join(f.root, "Folder"), 0o755))

		require.NoError(t, f.op.Operate(t.Context(), event.Created("Folder")))
		assert.Equal(t, []string{"create Folder"}, f.client.Calls())
	})

	t.Run("before its folder is known", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, os.Mkdir(filepath.Join(f.root, "Folder"), 0o755))
		f.write(t, "Folder/a.txt", "a")

		err := f.op.Operate(t.Context(), event.Created("Folder/a.txt"))
		require.ErrorIs(t, err, ErrMissingParent)
		assert.Empty(t, f.client.Calls())

		require.NoError(t, f.op.Operate(t.Context(), event.Created("Folder")))
		require.NoError(t, f.op.Operate(t.Context(), event.Created("Folder/a.txt")))

		contents, err := f.state.Contents()
		require.NoError(t, err)
		require.Len(t, contents, 2)
		assert.Equal(t, "Folder", contents[0].FileName)
		assert.Equal(t, "a.txt", contents[1].FileName)
		assert.Equal(t, contents[0].ID, contents[1].Parent)
	})

	t.Run("adopts same bytes without upload", func(t *testing.T) {
		f := newFixture(t)
		existing := f.client.Seed("a.txt", content.KindFile, 0, []byte("same"))
		f.client.ResetCalls()
		f.write(t, "a.txt", "same")

		require.NoError(t, f.op.Operate(t.Context(), event.Created("a.txt")))
		assert.Equal(t, []string{"create a.txt"}, f.client.Calls())
		id, err := f.state.ContentIDForPath("a.txt")
		require.NoError(t, err)
		assert.Equal(t, existing, id)
	})

	t.Run("adopts and uploads different bytes", func(t *testing.T) {
		f := newFixture(t)
		existing := f.client.Seed("a.txt", content.KindFile, 0, []byte("remote"))
		f.write(t, "a.txt", "local")

		require.NoError(t, f.op.Operate(t.Context(), event.Created("a.txt")))
		assert.Equal(t, []string{"create a.txt", "fill_remote 1"}, f.client.Calls())
		assert.Equal(t, "local", string(f.client.Data(existing)))
	})

	t.Run("vanished before being handled", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.op.Operate(t.Context(), event.Created("gone.txt")))
		assert.Empty(t, f.client.Calls())
	})

	t.Run("already tracked path is a modification", func(t *testing.T) {
		f := newFixture(t)
		f.synced(t, "a.txt", content.KindFile, 0, "old")
		f.write(t, "a.txt", "new")

		require.NoError(t, f.op.Operate(t.Context(), event.Created("a.txt")))
		assert.Equal(t, []string{"fill_remote 1"}, f.client.Calls())
	})
}

func TestOperator_LocalDeleted(t *testing.T) {
	f := newFixture(t)
	id := f.synced(t, "a.txt", content.KindFile, 0, "a")
	f.synced(t, "b.txt", content.KindFile, 0, "b")
	require.NoError(t, os.Remove(filepath.Join(f.root, "a.txt")))

	require.NoError(t, f.op.Operate(t.Context(), event.Deleted("a.txt")))
	assert.Equal(t, []string{"trash 1"}, f.client.Calls())
	assert.Equal(t, []string{"b.txt"}, f.tracked(t))
	rc, err := f.client.Get(t.Context(), id)
	require.NoError(t, err)
	assert.True(t, rc.Gone())

	// the remote side is already gone
	f.client.FailNext("trash", remote.ErrNotFound)
	require.NoError(t, os.Remove(filepath.Join(f.root, "b.txt")))
	require.NoError(t, f.op.Operate(t.Context(), event.Deleted("b.txt")))
	assert.Empty(t, f.tracked(t))

	// never tracked
	f.client.ResetCalls()
	require.NoError(t, f.op.Operate(t.Context(), event.Deleted("c.txt")))
	assert.Empty(t, f.client.Calls())
}

func TestOperator_LocalModified(t *testing.T) {
	t.Run("uploads new bytes", func(t *testing.T) {
		f := newFixture(t)
		id := f.synced(t, "a.txt", content.KindFile, 0, "old")
		f.write(t, "a.txt", "new")

		require.NoError(t, f.op.Operate(t.Context(), event.Modified("a.txt")))
		assert.Equal(t, []string{"fill_remote 1"}, f.client.Calls())
		assert.Equal(t, "new", string(f.client.Data(id)))

		// same timestamp as last upload
		f.client.ResetCalls()
		require.NoError(t, f.op.Operate(t.Context(), event.Modified("a.txt")))
		assert.Empty(t, f.client.Calls())
	})

	t.Run("restores a trashed content", func(t *testing.T) {
		f := newFixture(t)
		id := f.synced(t, "a.txt", content.KindFile, 0, "old")
		require.NoError(t, f.client.Trash(t.Context(), id))
		f.client.ResetCalls()
		f.write(t, "a.txt", "new")

		require.NoError(t, f.op.Operate(t.Context(), event.Modified("a.txt")))
		assert.Equal(t, []string{"fill_remote 1", "restore 1", "fill_remote 1"}, f.client.Calls())
		rc, err := f.client.Get(t.Context(), id)
		require.NoError(t, err)
		assert.False(t, rc.Gone())
	})

	t.Run("at a new path", func(t *testing.T) {
		f := newFixture(t)
		f.synced(t, "a.txt", content.KindFile, 0, "old")
		require.NoError(t, os.Rename(filepath.Join(f.root, "a.txt"), filepath.Join(f.root, "b.txt")))
		f.write(t, "b.txt", "new")

		ev := event.Disk{Tracking: "a.txt", Event: event.Modified("b.txt")}
		require.NoError(t, f.op.Operate(t.Context(), ev))
		assert.Equal(t, []string{"set_label 1 b.txt", "fill_remote 1"}, f.client.Calls())
		assert.Equal(t, []string{"b.txt"}, f.tracked(t))
	})

	t.Run("a folder cannot be uploaded", func(t *testing.T) {
		f := newFixture(t)
		f.synced(t, "Folder", content.KindFolder, 0, "")

		err := f.op.Operate(t.Context(), event.Modified("Folder"))
		assert.ErrorIs(t, err, ErrProgrammatic)
	})
}

func TestOperator_LocalRenamed(t *testing.T) {
	t.Run("label only", func(t *testing.T) {
		f := newFixture(t)
		f.synced(t, "a.txt", content.KindFile, 0, "a")
		require.NoError(t, os.Rename(filepath.Join(f.root, "a.txt"), filepath.Join(f.root, "b.txt")))

		require.NoError(t, f.op.Operate(t.Context(), event.Renamed("a.txt", "b.txt")))
		assert.Equal(t, []string{"set_label 1 b.txt"}, f.client.Calls())
		p, err := f.state.Path(1)
		require.NoError(t, err)
		assert.Equal(t, "b.txt", p)
	})

	t.Run("parent only", func(t *testing.T) {
		f := newFixture(t)
		folder := f.synced(t, "Folder", content.KindFolder, 0, "")
		id := f.synced(t, "a.txt", content.KindFile, 0, "a")
		require.NoError(t, os.Rename(filepath.Join(f.root, "a.txt"), filepath.Join(f.root, "Folder", "a.txt")))

		require.NoError(t, f.op.Operate(t.Context(), event.Renamed("a.txt", "Folder/a.txt")))
		assert.Equal(t, []string{"set_parent 2 1"}, f.client.Calls())
		c, err := f.state.Get(id)
		require.NoError(t, err)
		assert.Equal(t, folder, c.Parent)
	})

	t.Run("folder carries its children", func(t *testing.T) {
		f := newFixture(t)
		folder := f.synced(t, "Folder", content.KindFolder, 0, "")
		f.synced(t, "a.txt", content.KindFile, folder, "a")
		require.NoError(t, os.Rename(filepath.Join(f.root, "Folder"), filepath.Join(f.root, "Renamed")))

		require.NoError(t, f.op.Operate(t.Context(), event.Renamed("Folder", "Renamed")))
		assert.Equal(t, []string{"Renamed", "Renamed/a.txt"}, f.tracked(t))
	})

	t.Run("destination taken remotely", func(t *testing.T) {
		f := newFixture(t)
		f.synced(t, "a.txt", content.KindFile, 0, "a")
		taken := f.client.Seed("b.txt", content.KindFile, 0, []byte("b"))
		f.client.ResetCalls()
		require.NoError(t, os.Rename(filepath.Join(f.root, "a.txt"), filepath.Join(f.root, "b.txt")))

		require.NoError(t, f.op.Operate(t.Context(), event.Renamed("a.txt", "b.txt")))
		assert.Equal(t, []string{"set_label 1 b.txt", "trash 2", "set_label 1 b.txt"}, f.client.Calls())
		rc, err := f.client.Get(t.Context(), taken)
		require.NoError(t, err)
		assert.True(t, rc.Gone())
	})

	t.Run("over a tracked file", func(t *testing.T) {
		f := newFixture(t)
		f.synced(t, "a.txt", content.KindFile, 0, "a")
		f.synced(t, "b.txt", content.KindFile, 0, "b")
		require.NoError(t, os.Rename(filepath.Join(f.root, "a.txt"), filepath.Join(f.root, "b.txt")))

		require.NoError(t, f.op.Operate(t.Context(), event.Renamed("a.txt", "b.txt")))
		assert.Equal(t, []string{"trash 2", "set_label 1 b.txt"}, f.client.Calls())
		assert.Equal(t, []string{"b.txt"}, f.tracked(t))
	})

	t.Run("into an unknown folder", func(t *testing.T) {
		f := newFixture(t)
		f.synced(t, "a.txt", content.KindFile, 0, "a")
		require.NoError(t, os.Mkdir(filepath.Join(f.root, "New"), 0o755))
		require.NoError(t, os.Rename(filepath.Join(f.root, "a.txt"), filepath.Join(f.root, "New", "a.txt")))

		err := f.op.Operate(t.Context(), event.Renamed("a.txt", "New/a.txt"))
		assert.ErrorIs(t, err, ErrMissingParent)
	})
}

func TestOperator_EchoIsSwallowedExactlyOnce(t *testing.T) {
	f := newFixture(t)
	id := f.synced(t, "a.txt", content.KindFile, 0, "a")

	f.op.Expect(remoteEvent(event.RemoteDeleted, id))
	require.Equal(t, 1, f.op.Expected())

	require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteDeleted, id)))
	assert.Zero(t, f.op.Expected())
	assert.Equal(t, []string{"a.txt"}, f.onDisk(t))

	require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteDeleted, id)))
	assert.Empty(t, f.onDisk(t))
	assert.Empty(t, f.tracked(t))
}

func TestOperator_OwnSideEffectsAreEchoes(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "hello")

	require.NoError(t, f.op.Operate(t.Context(), event.Created("a.txt")))
	assert.Equal(t, 2, f.op.Expected())

	// what the remote stream reports back
	f.client.ResetCalls()
	require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteCreated, 1)))
	require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteUpdated, 1)))
	assert.Zero(t, f.op.Expected())
	assert.Empty(t, f.client.Calls())

	id := f.client.Seed("b.txt", content.KindFile, 0, []byte("b"))
	require.NoError(t, f.op.Operate(t.Context(), remoteEvent(event.RemoteCreated, id)))
	require.NoError(t, f.op.Operate(t.Context(), event.Track(event.Created("b.txt"))))
	assert.Zero(t, f.op.Expected())
	assert.Empty(t, f.client.Calls())
}

func TestOperator_RetriesTimeouts(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "a")

	f.client.FailNext("create", remote.ErrTimeout, remote.ErrTimeout)
	require.NoError(t, f.op.Operate(t.Context(), event.Created("a.txt")))
	assert.Equal(t, []string{"a.txt"}, f.tracked(t))

	f.write(t, "b.txt", "b")
	f.client.FailNext("create", remote.ErrTimeout, remote.ErrTimeout, remote.ErrTimeout, remote.ErrTimeout, remote.ErrTimeout)
	err := f.op.Operate(t.Context(), event.Created("b.txt"))
	assert.ErrorIs(t, err, ErrMaximumRetryCount)
	assert.ErrorIs(t, err, remote.ErrTimeout)
	assert.Equal(t, []string{"a.txt"}, f.tracked(t))

	// other errors are not retried
	f.client.FailNext("create", remote.ErrUnauthorized, remote.ErrUnauthorized)
	err = f.op.Operate(t.Context(), event.Created("b.txt"))
	assert.ErrorIs(t, err, remote.ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrMaximumRetryCount)
}
