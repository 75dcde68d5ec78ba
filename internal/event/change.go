package event

import (
	"fmt"

	"github.com/openmined/trsync/internal/content"
)

type Side int

const (
	SideLocal Side = iota
	SideRemote
	SideNone
)

func (s Side) String() string {
	switch s {
	case SideLocal:
		return "local"
	case SideRemote:
		return "remote"
	default:
		return "none"
	}
}

type ChangeType int

const (
	ChangeNew ChangeType = iota
	ChangeUpdated
	ChangeDisappear
	ChangeRenamed
	ChangeExit
)

func (t ChangeType) String() string {
	switch t {
	case ChangeNew:
		return "new"
	case ChangeUpdated:
		return "updated"
	case ChangeDisappear:
		return "disappear"
	case ChangeRenamed:
		return "renamed"
	case ChangeExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Change is a difference found by a startup scan between State and one side.
// Remote changes carry the content id and the path they conflict on; local
// renames carry the source path in Before.
type Change struct {
	Side      Side       `yaml:"side"`
	Type      ChangeType `yaml:"type"`
	Path      string     `yaml:"path,omitempty"`
	Before    string     `yaml:"before,omitempty"`
	ContentID content.ID `yaml:"content_id,omitempty"`
}

func LocalNew(path string) Change {
	return Change{Side: SideLocal, Type: ChangeNew, Path: path}
}

func LocalUpdated(path string) Change {
	return Change{Side: SideLocal, Type: ChangeUpdated, Path: path}
}

func LocalDisappear(path string) Change {
	return Change{Side: SideLocal, Type: ChangeDisappear, Path: path}
}

func LocalRenamedChange(before, after string) Change {
	return Change{Side: SideLocal, Type: ChangeRenamed, Path: after, Before: before}
}

func RemoteNew(id content.ID, path string) Change {
	return Change{Side: SideRemote, Type: ChangeNew, Path: path, ContentID: id}
}

func RemoteUpdatedChange(id content.ID, path string) Change {
	return Change{Side: SideRemote, Type: ChangeUpdated, Path: path, ContentID: id}
}

func RemoteDisappear(id content.ID, path string) Change {
	return Change{Side: SideRemote, Type: ChangeDisappear, Path: path, ContentID: id}
}

// Exit ends a single-shot session once every preceding change is applied.
func Exit() Change {
	return Change{Side: SideNone, Type: ChangeExit}
}

func (c Change) IsExit() bool {
	return c.Type == ChangeExit
}

// Key is the path a change is matched on by the conflict resolver.
func (c Change) Key() string {
	if c.Type == ChangeRenamed {
		return c.Before
	}
	return c.Path
}

// Event converts a change into the operational event applying it. Exit has none.
func (c Change) Event() (Event, bool) {
	switch c.Side {
	case SideLocal:
		switch c.Type {
		case ChangeNew:
			return Track(Created(c.Path)), true
		case ChangeUpdated:
			return Track(Modified(c.Path)), true
		case ChangeDisappear:
			return Track(Deleted(c.Path)), true
		case ChangeRenamed:
			return Track(Renamed(c.Before, c.Path)), true
		}
	case SideRemote:
		switch c.Type {
		case ChangeNew:
			return Remote{Type: RemoteCreated, ContentID: c.ContentID}, true
		case ChangeUpdated:
			return Remote{Type: RemoteUpdated, ContentID: c.ContentID}, true
		case ChangeDisappear:
			return Remote{Type: RemoteDeleted, ContentID: c.ContentID}, true
		}
	}
	return nil, false
}

func (c Change) String() string {
	switch {
	case c.IsExit():
		return "exit"
	case c.Side == SideRemote:
		return fmt.Sprintf("remote %s #%d %s", c.Type, c.ContentID, c.Path)
	case c.Type == ChangeRenamed:
		return fmt.Sprintf("local renamed %s -> %s", c.Before, c.Path)
	default:
		return fmt.Sprintf("local %s %s", c.Type, c.Path)
	}
}

// MarshalYAML renders enums by name.
func (t ChangeType) MarshalYAML() (any, error) { return t.String(), nil }

// MarshalYAML renders enums by name.
func (s Side) MarshalYAML() (any, error) { return s.String(), nil }
