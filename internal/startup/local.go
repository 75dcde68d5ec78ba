package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/event"
	"github.com/openmined/trsync/internal/ignore"
	"github.com/openmined/trsync/internal/state"
	"github.com/openmined/trsync/internal/utils"
)

// LocalScanner diffs the workspace folder against State.
type LocalScanner struct {
	root   string
	state  state.State
	ignore *ignore.List
}

func NewLocalScanner(root string, st state.State, ignoreList *ignore.List) *LocalScanner {
	return &LocalScanner{root: root, state: st, ignore: ignoreList}
}

type tracked struct {
	content content.Content
	path    string
}

// Changes walks the folder parents first. Unknown paths are New, known files
// whose modification time moved are Updated and tracked paths no longer on
// disk are Disappear. Folder timestamps are never compared.
func (s *LocalScanner) Changes() ([]event.Change, error) {
	ordered, known, err := s.trackedContents()
	if err != nil {
		return nil, err
	}

	var changes []event.Change
	onDisk := mapset.NewThreadUnsafeSet[string]()

	err = filepath.WalkDir(s.root, func(absPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// vanished while walking
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("walk error: %w", walkErr)
		}
		if absPath == s.root {
			return nil
		}

		rel, err := utils.RelPath(s.root, absPath)
		if err != nil {
			return fmt.Errorf("walk rel path: %w", err)
		}
		if s.ignore.IgnoredPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			slog.Debug("local scan skip", "path", rel, "mode", d.Type())
			return nil
		}

		onDisk.Add(rel)
		t, ok := known[rel]
		if !ok {
			changes = append(changes, event.LocalNew(rel))
			return nil
		}

		isFolder := d.IsDir()
		if isFolder != (t.content.Kind == content.KindFolder) {
			// same name, other kind: the tracked one is gone
			changes = append(changes, event.LocalDisappear(rel), event.LocalNew(rel))
			return nil
		}
		if isFolder {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("stat %s: %w", rel, err)
		}
		previous, err := s.state.Timestamp(t.content.ID)
		if err != nil {
			return err
		}
		if content.TimestampOf(info.ModTime()) != previous {
			changes = append(changes, event.LocalUpdated(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local scan failed: %w", err)
	}

	changes = append(changes, s.disappeared(ordered, onDisk)...)
	return changes, nil
}

// trackedContents lists State contents with their paths, folders first and parents
// before children.
func (s *LocalScanner) trackedContents() ([]tracked, map[string]tracked, error) {
	contents, err := s.state.Contents()
	if err != nil {
		return nil, nil, fmt.Errorf("read state: %w", err)
	}
	ordered := make([]tracked, 0, len(contents))
	byPath := make(map[string]tracked, len(contents))
	for _, c := range contents {
		p, err := s.state.Path(c.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("path of %d: %w", c.ID, err)
		}
		t := tracked{content: c, path: p}
		ordered = append(ordered, t)
		byPath[p] = t
	}
	return ordered, byPath, nil
}

// disappeared lists tracked paths missing from disk. Only the topmost missing
// path is reported: forgetting it forgets its descendants.
func (s *LocalScanner) disappeared(ordered []tracked, onDisk mapset.Set[string]) []event.Change {
	missing := mapset.NewThreadUnsafeSet[string]()
	var changes []event.Change
	for _, t := range ordered {
		if onDisk.Contains(t.path) || s.ignore.IgnoredPath(t.path) {
			continue
		}
		missing.Add(t.path)
		if missing.Contains(state.ParentPath(t.path)) {
			continue
		}
		changes = append(changes, event.LocalDisappear(t.path))
	}
	return changes
}
