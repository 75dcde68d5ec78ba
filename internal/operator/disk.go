package operator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/event"
	"github.com/openmined/trsync/internal/remote"
	"github.com/openmined/trsync/internal/state"
	"github.com/openmined/trsync/internal/utils"
)

// DiskPresent materializes a remote content on disk.
type DiskPresent struct {
	ID content.ID
}

func (DiskPresent) Name() string { return "disk-present" }

func (x DiskPresent) Execute(ctx context.Context, env *Env) ([]state.Modification, error) {
	rc, err := env.client.Get(ctx, x.ID)
	if errors.Is(err, remote.ErrNotFound) {
		slog.Debug("sync", "op", x.Name(), "id", x.ID, "message", "content vanished")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content %d: %w", x.ID, err)
	}
	if rc.Gone() {
		return nil, nil
	}
	c, err := rc.Content()
	if err != nil {
		return nil, programmatic("materialize %d: %v", x.ID, err)
	}

	parentPath, leaves, err := env.remoteParentPath(ctx, c.Parent)
	if err != nil {
		return nil, err
	}
	if leaves {
		slog.Debug("sync", "op", x.Name(), "id", x.ID, "message", "outside of synchronized tree")
		return nil, nil
	}
	rel := state.JoinPath(parentPath, c.FileName)
	if env.ignore.IgnoredPath(rel) {
		slog.Debug("sync", "op", x.Name(), "id", x.ID, "path", rel, "message", "ignored")
		return nil, nil
	}

	mods, err := replacing(env, rel, c.ID)
	if err != nil {
		return nil, err
	}
	if err := materialize(ctx, env, c, rel); err != nil {
		return nil, err
	}
	ts, err := env.timestamp(rel)
	if err != nil {
		return nil, err
	}
	slog.Info("sync", "op", x.Name(), "id", c.ID, "path", rel)
	return append(mods, state.Add{Content: c, Path: rel, Timestamp: ts}), nil
}

// DiskAbsent removes a tracked content from disk. Absence is not an error.
type DiskAbsent struct {
	ID content.ID
}

func (DiskAbsent) Name() string { return "disk-absent" }

func (x DiskAbsent) Execute(_ context.Context, env *Env) ([]state.Modification, error) {
	rel, err := env.state.Path(x.ID)
	if errors.Is(err, state.ErrUnknownContent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	absPath := env.abs(rel)
	if utils.PathExists(absPath) {
		if err := os.RemoveAll(absPath); err != nil {
			return nil, fmt.Errorf("failed to delete %s: %w", rel, err)
		}
		env.expectDisk(event.Deleted(rel))
		slog.Info("sync", "op", x.Name(), "id", x.ID, "path", rel)
	} else {
		slog.Debug("sync", "op", x.Name(), "id", x.ID, "path", rel, "message", "already deleted")
	}
	return []state.Modification{state.Forgot{ID: x.ID}}, nil
}

// DiskUpdated follows a remote rename or move on disk and, with Download,
// fetches the remote bytes again.
type DiskUpdated struct {
	ID       content.ID
	Download bool
}

func (x DiskUpdated) Name() string {
	if x.Download {
		return "disk-updated"
	}
	return "disk-renamed"
}

func (x DiskUpdated) Execute(ctx context.Context, env *Env) ([]state.Modification, error) {
	known, err := env.state.Get(x.ID)
	if err != nil {
		return nil, err
	}
	if known == nil {
		return DiskPresent{ID: x.ID}.Execute(ctx, env)
	}

	rc, err := env.client.Get(ctx, x.ID)
	if errors.Is(err, remote.ErrNotFound) {
		return DiskAbsent{ID: x.ID}.Execute(ctx, env)
	}
	if err != nil {
		return nil, fmt.Errorf("get content %d: %w", x.ID, err)
	}
	if rc.Gone() {
		return DiskAbsent{ID: x.ID}.Execute(ctx, env)
	}
	c, err := rc.Content()
	if err != nil {
		return nil, programmatic("update %d: %v", x.ID, err)
	}
	if c.Kind != known.Kind {
		return nil, programmatic("content %d changed kind from %s to %s", x.ID, known.Kind, c.Kind)
	}

	parentPath, leaves, err := env.remoteParentPath(ctx, c.Parent)
	if err != nil {
		return nil, err
	}
	after := state.JoinPath(parentPath, c.FileName)
	if leaves || env.ignore.IgnoredPath(after) {
		// moved out of what is synchronized
		return DiskAbsent{ID: x.ID}.Execute(ctx, env)
	}
	before, err := env.state.Path(x.ID)
	if err != nil {
		return nil, err
	}

	var mods []state.Modification
	beforeAbs, afterAbs := env.abs(before), env.abs(after)
	fetched := false
	switch {
	case before != after && utils.PathExists(beforeAbs):
		mods, err = replacing(env, after, x.ID)
		if err != nil {
			return nil, err
		}
		if utils.PathExists(afterAbs) {
			if err := os.RemoveAll(afterAbs); err != nil {
				return nil, fmt.Errorf("failed to clear %s: %w", after, err)
			}
			env.expectDisk(event.Deleted(after))
		}
		if err := os.Rename(beforeAbs, afterAbs); err != nil {
			return nil, fmt.Errorf("failed to move %s to %s: %w", before, after, err)
		}
		env.expectDisk(event.Renamed(before, after))
		slog.Info("sync", "op", x.Name(), "id", x.ID, "from", before, "to", after)

	case !utils.PathExists(afterAbs):
		// vanished from disk in the meantime
		if err := materialize(ctx, env, c, after); err != nil {
			return nil, err
		}
		fetched = true
	}

	if x.Download && c.Kind.Fillable() && !fetched {
		if err := env.client.FillLocal(ctx, x.ID, afterAbs); err != nil {
			return nil, fmt.Errorf("download %d to %s: %w", x.ID, after, err)
		}
		env.expectDisk(event.Modified(after))
		slog.Info("sync", "op", x.Name(), "id", x.ID, "path", after, "size", humanize.Bytes(utils.FileSize(afterAbs)))
	}

	ts, err := env.timestamp(after)
	if err != nil {
		return nil, err
	}
	return append(mods, state.Update{
		ID:        x.ID,
		FileName:  c.FileName,
		Revision:  c.Revision,
		Parent:    c.Parent,
		Timestamp: ts,
	}), nil
}

// replacing forgets whatever else State tracks at rel, about to be replaced by id.
func replacing(env *Env, rel string, id content.ID) ([]state.Modification, error) {
	other, err := env.state.ContentIDForPath(rel)
	if errors.Is(err, state.ErrUnknownPath) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if other == id {
		return nil, nil
	}
	slog.Debug("sync", "path", rel, "replaced", other, "by", id)
	return []state.Modification{state.Forgot{ID: other}}, nil
}

// materialize creates rel for c and fills it with the remote bytes.
func materialize(ctx context.Context, env *Env, c content.Content, rel string) error {
	absPath := env.abs(rel)
	existing, statErr := content.KindOfPath(absPath)
	exists := statErr == nil
	if exists && (existing == content.KindFolder) != (c.Kind == content.KindFolder) {
		if err := os.RemoveAll(absPath); err != nil {
			return fmt.Errorf("failed to clear %s: %w", rel, err)
		}
		env.expectDisk(event.Deleted(rel))
		exists = false
	}

	if c.Kind == content.KindFolder {
		if exists {
			return nil
		}
		if err := os.MkdirAll(absPath, 0o755); err != nil {
			return fmt.Errorf("failed to create folder %s: %w", rel, err)
		}
		env.expectDisk(event.Created(rel))
		return nil
	}

	if err := env.client.FillLocal(ctx, c.ID, absPath); err != nil {
		return fmt.Errorf("download %d to %s: %w", c.ID, rel, err)
	}
	if exists {
		env.expectDisk(event.Modified(rel))
	} else {
		env.expectDisk(event.Created(rel))
	}
	slog.Info("sync", "op", "download", "id", c.ID, "path", rel, "size", humanize.Bytes(utils.FileSize(absPath)))
	return nil
}
