package state

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/openmined/trsync/internal/content"
)

var (
	ErrUnknownContent = errors.New("state: unknown content")
	ErrUnknownPath    = errors.New("state: unknown path")
	ErrParentCycle    = errors.New("state: parent cycle")
	// ErrDuplicateContent and ErrDuplicatePath guard the one row per id, one row per path index.
	ErrDuplicateContent = errors.New("state: content already tracked")
	ErrDuplicatePath    = errors.New("state: path already tracked")
)

// State records every tracked content and where it lives on disk.
// Paths are workspace relative and slash separated.
type State interface {
	// Known reports whether the content is tracked.
	Known(id content.ID) (bool, error)
	// Get returns nil when the content is not tracked.
	Get(id content.ID) (*content.Content, error)
	// ContentIDForPath fails with ErrUnknownPath when nothing is tracked at path.
	ContentIDForPath(path string) (content.ID, error)
	// Path walks the parent chain. It fails with ErrUnknownContent.
	Path(id content.ID) (string, error)
	// Timestamp returns the last known disk modification time.
	Timestamp(id content.ID) (content.DiskTimestamp, error)
	// Contents lists every tracked content, folders first, parents before children.
	Contents() ([]content.Content, error)
	ChildrenIDs(parent content.ID) ([]content.ID, error)
	// Apply is the only way to mutate a State.
	Apply(m Modification) error
}

// ParentPath returns the parent directory of a relative path, "" for the root.
func ParentPath(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// JoinPath joins a parent relative path and a file name.
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

type getter func(id content.ID) (*content.Content, error)

// buildPath derives the path of id from the parent chain.
// vacant fails with ErrDuplicatePath when a content other than id is tracked at p.
func vacant(s State, id content.ID, p string) error {
	other, err := s.ContentIDForPath(p)
	switch {
	case errors.Is(err, ErrUnknownPath):
		return nil
	case err != nil:
		return err
	case other != id:
		return fmt.Errorf("%w: %s (content %d)", ErrDuplicatePath, p, other)
	}
	return nil
}

func buildPath(get getter, id content.ID) (string, error) {
	var names []string
	seen := map[content.ID]struct{}{}

	current := id
	for current != 0 {
		if _, ok := seen[current]; ok {
			return "", fmt.Errorf("%w at %d", ErrParentCycle, current)
		}
		seen[current] = struct{}{}

		c, err := get(current)
		if err != nil {
			return "", err
		}
		if c == nil {
			return "", fmt.Errorf("%w: %d", ErrUnknownContent, current)
		}
		names = append(names, c.FileName)
		current = c.Parent
	}

	slices.Reverse(names)
	return strings.Join(names, "/"), nil
}

// forgetOrder lists root and every descendant, children before their parent.
// It walks with an explicit stack so deep trees do not grow the call stack.
func forgetOrder(children func(content.ID) ([]content.ID, error), root content.ID) ([]content.ID, error) {
	var order []content.ID
	stack := []content.ID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, id)

		ids, err := children(id)
		if err != nil {
			return nil, err
		}
		stack = append(stack, ids...)
	}
	slices.Reverse(order)
	return order, nil
}

// sortContents orders folders first, shallow before deep, then files by path.
func sortContents(contents []content.Content, paths map[content.ID]string) {
	slices.SortStableFunc(contents, func(a, b content.Content) int {
		af, bf := a.Kind == content.KindFolder, b.Kind == content.KindFolder
		if af != bf {
			if af {
				return -1
			}
			return 1
		}
		pa, pb := paths[a.ID], paths[b.ID]
		if da, db := strings.Count(pa, "/"), strings.Count(pb, "/"); da != db {
			return da - db
		}
		return strings.Compare(pa, pb)
	})
}
