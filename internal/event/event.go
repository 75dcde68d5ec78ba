package event

import (
	"fmt"

	"github.com/openmined/trsync/internal/content"
)

// Event is either a Remote event or a local one (Local, or Disk once reduced).
type Event interface {
	isEvent()
	String() string
}

type RemoteType int

const (
	RemoteCreated RemoteType = iota
	RemoteUpdated
	RemoteDeleted
	RemoteRenamed
)

func (t RemoteType) String() string {
	switch t {
	case RemoteCreated:
		return "created"
	case RemoteUpdated:
		return "updated"
	case RemoteDeleted:
		return "deleted"
	case RemoteRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

type Remote struct {
	Type      RemoteType
	ContentID content.ID
}

func (Remote) isEvent() {}

func (r Remote) String() string {
	return fmt.Sprintf("remote %s #%d", r.Type, r.ContentID)
}

type LocalType int

const (
	LocalCreated LocalType = iota
	LocalModified
	LocalDeleted
	LocalRenamed
)

func (t LocalType) String() string {
	switch t {
	case LocalCreated:
		return "created"
	case LocalModified:
		return "modified"
	case LocalDeleted:
		return "deleted"
	case LocalRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Local is a disk event on a workspace relative, slash separated path.
// Before is only set for LocalRenamed and holds the source path.
type Local struct {
	Type   LocalType
	Path   string
	Before string
}

func (Local) isEvent() {}

func (l Local) String() string {
	if l.Type == LocalRenamed {
		return fmt.Sprintf("local renamed %s -> %s", l.Before, l.Path)
	}
	return fmt.Sprintf("local %s %s", l.Type, l.Path)
}

// Origin is the path the event was first observed under.
func (l Local) Origin() string {
	if l.Type == LocalRenamed {
		return l.Before
	}
	return l.Path
}

func Created(path string) Local  { return Local{Type: LocalCreated, Path: path} }
func Modified(path string) Local { return Local{Type: LocalModified, Path: path} }
func Deleted(path string) Local  { return Local{Type: LocalDeleted, Path: path} }

func Renamed(before, after string) Local {
	return Local{Type: LocalRenamed, Path: after, Before: before}
}

// Disk is a reduced local event: Tracking is the path the folded burst started
// from, which is the one State still knows, and Event is the net effect.
type Disk struct {
	Tracking string
	Event    Local
}

func (Disk) isEvent() {}

func (d Disk) String() string {
	return fmt.Sprintf("%s (tracking %s)", d.Event, d.Tracking)
}

// Track wraps a bare local event as if it was never folded.
func Track(l Local) Disk {
	return Disk{Tracking: l.Origin(), Event: l}
}
