package operator

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/event"
	"github.com/openmined/trsync/internal/ignore"
	"github.com/openmined/trsync/internal/remote"
	"github.com/openmined/trsync/internal/state"
	"github.com/openmined/trsync/internal/utils"
)

// Executor performs one side effect and reports how State must change.
// It never mutates State itself.
type Executor interface {
	Name() string
	Execute(ctx context.Context, env *Env) ([]state.Modification, error)
}

// Env is what executors work with. State is read only from here.
type Env struct {
	root   string
	state  state.State
	client remote.Client
	ignore *ignore.List
	echoes *echoes
}

func (e *Env) abs(rel string) string {
	return utils.AbsPath(e.root, rel)
}

// expectDisk registers the notification a side effect on disk causes.
func (e *Env) expectDisk(l event.Local) {
	e.echoes.push(event.Track(l))
}

func (e *Env) expectRemote(t event.RemoteType, id content.ID) {
	e.echoes.push(event.Remote{Type: t, ContentID: id})
}

func (e *Env) timestamp(rel string) (content.DiskTimestamp, error) {
	ts, err := content.ModTimestamp(e.abs(rel))
	if err != nil {
		return 0, fmt.Errorf("disk timestamp of %s: %w", rel, err)
	}
	return ts, nil
}

// localParent resolves the tracked folder holding rel, 0 for the workspace root.
func (e *Env) localParent(rel string) (content.ID, error) {
	parentPath := state.ParentPath(rel)
	if parentPath == "" {
		return 0, nil
	}
	id, err := e.state.ContentIDForPath(parentPath)
	if errors.Is(err, state.ErrUnknownPath) {
		return 0, fmt.Errorf("%w: %s", ErrMissingParent, parentPath)
	}
	return id, err
}

// remoteParentPath resolves where the children of a remote folder live on disk.
// leaves is set when the parent chain leads out of what is synchronized:
// an ignored, trashed or vanished ancestor.
func (e *Env) remoteParentPath(ctx context.Context, parent content.ID) (p string, leaves bool, err error) {
	if parent == 0 {
		return "", false, nil
	}
	p, err = e.state.Path(parent)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, state.ErrUnknownContent) {
		return "", false, err
	}

	seen := mapset.NewThreadUnsafeSet[content.ID]()
	for id := parent; id != 0; {
		if e.ignore.IgnoredID(id) || !seen.Add(id) {
			return "", true, nil
		}
		rc, err := e.client.Get(ctx, id)
		if errors.Is(err, remote.ErrNotFound) {
			return "", true, nil
		}
		if err != nil {
			return "", false, err
		}
		if rc.Gone() || rc.ContentType != content.KindFolder.String() {
			return "", true, nil
		}
		id = rc.ParentID
	}
	return "", false, fmt.Errorf("%w: %d", ErrMissingParent, parent)
}

func programmatic(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProgrammatic, fmt.Sprintf(format, args...))
}
