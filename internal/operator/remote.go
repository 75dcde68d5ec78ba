package operator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"

	"github.com/dustin/go-humanize"
	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/event"
	"github.com/openmined/trsync/internal/remote"
	"github.com/openmined/trsync/internal/state"
	"github.com/openmined/trsync/internal/utils"
)

// RemoteCreated creates a remote content from a new disk entry. A remote
// content already holding that name is adopted instead.
type RemoteCreated struct {
	Path string
}

func (RemoteCreated) Name() string { return "remote-created" }

func (x RemoteCreated) Execute(ctx context.Context, env *Env) ([]state.Modification, error) {
	absPath := env.abs(x.Path)
	kind, err := content.KindOfPath(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("sync", "op", x.Name(), "path", x.Path, "message", "file vanished")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	name := path.Base(x.Path)
	parent, err := env.localParent(x.Path)
	if err != nil {
		return nil, err
	}

	adopted := false
	id, err := env.client.CreateContent(ctx, name, kind, parent)
	switch {
	case err == nil:
		env.expectRemote(event.RemoteCreated, id)
	case errors.Is(err, remote.ErrAlreadyExists):
		existing, err := env.client.FindOne(ctx, name, parent)
		if err != nil {
			return nil, fmt.Errorf("find existing %s: %w", x.Path, err)
		}
		if existing.ContentType != kind.String() {
			return nil, fmt.Errorf("%s exists remotely as a %s: %w", x.Path, existing.ContentType, remote.ErrAlreadyExists)
		}
		id, adopted = existing.ContentID, true
		slog.Info("sync", "op", x.Name(), "path", x.Path, "adopted", id)
	default:
		return nil, fmt.Errorf("create %s: %w", x.Path, err)
	}

	if kind.Fillable() {
		upload := true
		if adopted {
			same, err := sameBytes(ctx, env, id, kind, absPath)
			if err != nil {
				return nil, err
			}
			upload = !same
		}
		if upload {
			if _, err := env.client.FillRemote(ctx, id, absPath); err != nil {
				return nil, fmt.Errorf("upload %s: %w", x.Path, err)
			}
			env.expectRemote(event.RemoteUpdated, id)
		}
	}

	rc, err := env.client.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get created content %d: %w", id, err)
	}
	c, err := rc.Content()
	if err != nil {
		return nil, programmatic("created content %d: %v", id, err)
	}
	// State derives paths from names, the disk one is authoritative here
	c.FileName = name

	ts, err := env.timestamp(x.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("sync", "op", x.Name(), "id", id, "path", x.Path, "size", humanize.Bytes(utils.FileSize(absPath)))
	return []state.Modification{state.Add{Content: c, Path: x.Path, Timestamp: ts}}, nil
}

// sameBytes compares a remote content with the local file at absPath.
func sameBytes(ctx context.Context, env *Env, id content.ID, kind content.Kind, absPath string) (bool, error) {
	if kind == content.KindRichDocument {
		rc, err := env.client.Get(ctx, id)
		if err != nil {
			return false, fmt.Errorf("get content %d: %w", id, err)
		}
		local, err := os.ReadFile(absPath)
		if err != nil {
			return false, err
		}
		return rc.RawContent == string(local), nil
	}

	tmp, err := os.CreateTemp("", "trsync-compare-*")
	if err != nil {
		return false, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := env.client.FillLocal(ctx, id, tmpPath); err != nil {
		return false, fmt.Errorf("download %d for comparison: %w", id, err)
	}
	remoteSum, err := utils.FileHash(tmpPath)
	if err != nil {
		return false, err
	}
	localSum, err := utils.FileHash(absPath)
	if err != nil {
		return false, err
	}
	return remoteSum == localSum, nil
}

// RemoteAbsent trashes the remote content of a deleted disk entry.
type RemoteAbsent struct {
	ID content.ID
}

func (RemoteAbsent) Name() string { return "remote-absent" }

func (x RemoteAbsent) Execute(ctx context.Context, env *Env) ([]state.Modification, error) {
	if err := trash(ctx, env, x.ID); err != nil {
		return nil, err
	}
	slog.Info("sync", "op", x.Name(), "id", x.ID)
	return []state.Modification{state.Forgot{ID: x.ID}}, nil
}

// trash tolerates a content already gone.
func trash(ctx context.Context, env *Env, id content.ID) error {
	err := env.client.Trash(ctx, id)
	switch {
	case err == nil:
		env.expectRemote(event.RemoteDeleted, id)
		return nil
	case errors.Is(err, remote.ErrNotFound), errors.Is(err, remote.ErrDeletedOrArchived):
		slog.Debug("sync", "op", "trash", "id", id, "message", "already gone")
		return nil
	default:
		return fmt.Errorf("trash %d: %w", id, err)
	}
}

// RemoteModified uploads the bytes found at Path.
type RemoteModified struct {
	ID   content.ID
	Path string
}

func (RemoteModified) Name() string { return "remote-modified" }

func (x RemoteModified) Execute(ctx context.Context, env *Env) ([]state.Modification, error) {
	known, err := env.state.Get(x.ID)
	if err != nil {
		return nil, err
	}
	if known == nil {
		return nil, programmatic("modified content %d is not tracked", x.ID)
	}
	if !known.Kind.Fillable() {
		return nil, programmatic("cannot upload bytes into %s %d", known.Kind, x.ID)
	}

	absPath := env.abs(x.Path)
	ts, err := content.ModTimestamp(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("sync", "op", x.Name(), "path", x.Path, "message", "file vanished")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	previous, err := env.state.Timestamp(x.ID)
	if err != nil {
		return nil, err
	}
	if ts == previous {
		slog.Debug("sync", "op", x.Name(), "path", x.Path, "message", "contents unchanged")
		return nil, nil
	}

	rev, err := env.client.FillRemote(ctx, x.ID, absPath)
	switch {
	case errors.Is(err, remote.ErrDeletedOrArchived):
		if err := env.client.Restore(ctx, x.ID); err != nil {
			return nil, fmt.Errorf("restore %d: %w", x.ID, err)
		}
		env.expectRemote(event.RemoteCreated, x.ID)
		slog.Info("sync", "op", x.Name(), "id", x.ID, "restored", true)
		rev, err = env.client.FillRemote(ctx, x.ID, absPath)
		if err != nil {
			return nil, fmt.Errorf("upload %s after restore: %w", x.Path, err)
		}
	case errors.Is(err, remote.ErrNotFound):
		// purged remotely, start over with a new content
		mods, err := RemoteCreated{Path: x.Path}.Execute(ctx, env)
		if err != nil {
			return nil, err
		}
		return append([]state.Modification{state.Forgot{ID: x.ID}}, mods...), nil
	case err != nil:
		return nil, fmt.Errorf("upload %s: %w", x.Path, err)
	}
	env.expectRemote(event.RemoteUpdated, x.ID)
	slog.Info("sync", "op", x.Name(), "id", x.ID, "path", x.Path, "size", humanize.Bytes(utils.FileSize(absPath)))

	return []state.Modification{state.Update{
		ID:        x.ID,
		FileName:  known.FileName,
		Revision:  rev,
		Parent:    known.Parent,
		Timestamp: ts,
	}}, nil
}

// RemoteNamed applies a disk rename or move to the remote content.
type RemoteNamed struct {
	ID   content.ID
	Path string
}

func (RemoteNamed) Name() string { return "remote-named" }

func (x RemoteNamed) Execute(ctx context.Context, env *Env) ([]state.Modification, error) {
	known, err := env.state.Get(x.ID)
	if err != nil {
		return nil, err
	}
	if known == nil {
		return nil, programmatic("renamed content %d is not tracked", x.ID)
	}

	absPath := env.abs(x.Path)
	kind, statErr := content.KindOfPath(absPath)
	if statErr == nil && kind != known.Kind {
		return nil, programmatic("rename of %d to %s changes kind from %s to %s", x.ID, x.Path, known.Kind, kind)
	}

	name := path.Base(x.Path)
	parent, err := env.localParent(x.Path)
	if err != nil {
		return nil, err
	}

	var mods []state.Modification
	// the move replaced a tracked entry on disk
	if other, err := env.state.ContentIDForPath(x.Path); err == nil && other != x.ID {
		if err := trash(ctx, env, other); err != nil {
			return nil, err
		}
		mods = append(mods, state.Forgot{ID: other})
	} else if err != nil && !errors.Is(err, state.ErrUnknownPath) {
		return nil, err
	}

	rev := known.Revision
	labelLater := false
	if name != known.FileName {
		r, err := env.client.SetLabel(ctx, x.ID, known.Kind, name)
		switch {
		case err == nil:
			rev = r
			env.expectRemote(event.RemoteUpdated, x.ID)
		case errors.Is(err, remote.ErrAlreadyExists) && parent != known.Parent:
			// taken in the folder it leaves, name it once moved
			labelLater = true
		case errors.Is(err, remote.ErrAlreadyExists):
			r, err := x.retryAfterTrash(ctx, env, name, parent, func() (content.Revision, error) {
				return env.client.SetLabel(ctx, x.ID, known.Kind, name)
			})
			if err != nil {
				return nil, err
			}
			rev = r
		default:
			return nil, fmt.Errorf("set label of %d: %w", x.ID, err)
		}
	}

	if parent != known.Parent {
		r, err := env.client.SetParent(ctx, x.ID, parent)
		switch {
		case err == nil:
			rev = r
			env.expectRemote(event.RemoteUpdated, x.ID)
		case errors.Is(err, remote.ErrAlreadyExists) && !labelLater:
			r, err := x.retryAfterTrash(ctx, env, name, parent, func() (content.Revision, error) {
				return env.client.SetParent(ctx, x.ID, parent)
			})
			if err != nil {
				return nil, err
			}
			rev = r
		default:
			return nil, fmt.Errorf("set parent of %d: %w", x.ID, err)
		}
	}

	if labelLater {
		r, err := env.client.SetLabel(ctx, x.ID, known.Kind, name)
		if errors.Is(err, remote.ErrAlreadyExists) {
			r, err = x.retryAfterTrash(ctx, env, name, parent, func() (content.Revision, error) {
				return env.client.SetLabel(ctx, x.ID, known.Kind, name)
			})
		} else if err == nil {
			env.expectRemote(event.RemoteUpdated, x.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("set label of %d: %w", x.ID, err)
		}
		rev = r
	}

	// bytes are not looked at here, their timestamp stays the one last uploaded
	ts, err := env.state.Timestamp(x.ID)
	if err != nil {
		return nil, err
	}
	slog.Info("sync", "op", x.Name(), "id", x.ID, "path", x.Path)
	return append(mods, state.Update{
		ID:        x.ID,
		FileName:  name,
		Revision:  rev,
		Parent:    parent,
		Timestamp: ts,
	}), nil
}

// retryAfterTrash trashes the remote content standing at the destination
// and calls op once more.
func (x RemoteNamed) retryAfterTrash(ctx context.Context, env *Env, name string, parent content.ID, op func() (content.Revision, error)) (content.Revision, error) {
	conflict, err := env.client.FindOne(ctx, name, parent)
	switch {
	case err == nil:
		slog.Warn("sync", "op", x.Name(), "id", x.ID, "path", x.Path, "trashing", conflict.ContentID)
		if err := trash(ctx, env, conflict.ContentID); err != nil {
			return 0, err
		}
	case !errors.Is(err, remote.ErrNotFound):
		return 0, fmt.Errorf("find conflicting %s: %w", name, err)
	}

	rev, err := op()
	if err != nil {
		return 0, fmt.Errorf("rename %d to %s: %w", x.ID, x.Path, err)
	}
	env.expectRemote(event.RemoteUpdated, x.ID)
	return rev, nil
}
