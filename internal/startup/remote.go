package startup

import (
	"context"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/event"
	"github.com/openmined/trsync/internal/ignore"
	"github.com/openmined/trsync/internal/remote"
	"github.com/openmined/trsync/internal/state"
)

// RemoteScanner diffs the remote workspace against State.
type RemoteScanner struct {
	client remote.Client
	state  state.State
	ignore *ignore.List
}

func NewRemoteScanner(client remote.Client, st state.State, ignoreList *ignore.List) *RemoteScanner {
	return &RemoteScanner{client: client, state: st, ignore: ignoreList}
}

// Snapshot lists the live remote tree into a MemoryState. Trashed or archived
// contents are dropped together with everything below them, as are ignored
// ids, ignored paths and contents whose ancestor chain is broken.
func (s *RemoteScanner) Snapshot(ctx context.Context) (*state.MemoryState, error) {
	listing, err := s.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote contents: %w", err)
	}

	byID := make(map[content.ID]remote.RemoteContent, len(listing))
	for _, rc := range listing {
		byID[rc.ContentID] = rc
	}

	var contents []content.Content
	for _, rc := range listing {
		if !s.alive(byID, rc) {
			continue
		}
		c, err := rc.Content()
		if err != nil {
			slog.Warn("remote scan skip", "id", rc.ContentID, "error", err)
			continue
		}
		contents = append(contents, c)
	}

	snapshot, err := state.NewMemoryStateFrom(contents)
	if err != nil {
		return nil, fmt.Errorf("build remote snapshot: %w", err)
	}
	if err := s.dropIgnoredPaths(snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// alive walks the ancestors of rc, which must all be live folders.
func (s *RemoteScanner) alive(byID map[content.ID]remote.RemoteContent, rc remote.RemoteContent) bool {
	seen := mapset.NewThreadUnsafeSet[content.ID]()
	current := rc
	for {
		if current.Gone() || s.ignore.IgnoredID(current.ContentID) {
			return false
		}
		if !seen.Add(current.ContentID) {
			slog.Warn("remote scan parent cycle", "id", rc.ContentID)
			return false
		}
		if current.ParentID == 0 {
			return true
		}
		parent, ok := byID[current.ParentID]
		if !ok || parent.ContentType != content.KindFolder.String() {
			// missing ancestor, or an attachment
			return false
		}
		current = parent
	}
}

func (s *RemoteScanner) dropIgnoredPaths(snapshot *state.MemoryState) error {
	contents, err := snapshot.Contents()
	if err != nil {
		return err
	}
	for _, c := range contents {
		known, _ := snapshot.Known(c.ID)
		if !known {
			// an ignored ancestor took it away
			continue
		}
		p, err := snapshot.Path(c.ID)
		if err != nil {
			return err
		}
		if s.ignore.IgnoredPath(p) {
			slog.Debug("remote scan ignore", "id", c.ID, "path", p)
			if err := snapshot.Apply(state.Forgot{ID: c.ID}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Changes compares the remote snapshot with State. New contents carry their
// remote path, Updated and Disappear the path State knows them by.
func (s *RemoteScanner) Changes(ctx context.Context) ([]event.Change, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return diffRemote(snapshot, s.state)
}

func diffRemote(snapshot, durable state.State) ([]event.Change, error) {
	var changes []event.Change

	live, err := snapshot.Contents()
	if err != nil {
		return nil, err
	}
	for _, c := range live {
		previous, err := durable.Get(c.ID)
		if err != nil {
			return nil, err
		}
		if previous == nil {
			p, err := snapshot.Path(c.ID)
			if err != nil {
				return nil, err
			}
			changes = append(changes, event.RemoteNew(c.ID, p))
			continue
		}
		if previous.Revision != c.Revision || previous.FileName != c.FileName || previous.Parent != c.Parent {
			p, err := durable.Path(c.ID)
			if err != nil {
				return nil, err
			}
			changes = append(changes, event.RemoteUpdatedChange(c.ID, p))
		}
	}

	known, err := durable.Contents()
	if err != nil {
		return nil, err
	}
	gone := mapset.NewThreadUnsafeSet[content.ID]()
	for _, c := range known {
		present, err := snapshot.Known(c.ID)
		if err != nil {
			return nil, err
		}
		if present {
			continue
		}
		gone.Add(c.ID)
		if gone.Contains(c.Parent) {
			continue
		}
		p, err := durable.Path(c.ID)
		if err != nil {
			return nil, err
		}
		changes = append(changes, event.RemoteDisappear(c.ID, p))
	}
	return changes, nil
}
