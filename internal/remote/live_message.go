package remote

import (
	"context"
	"strings"

	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/event"
)

// LiveMessage is one entry of the server push stream.
// A zero EventID marks a keep-alive.
type LiveMessage struct {
	EventID   int64  `json:"event_id"`
	EventType string `json:"event_type"`
	Fields    struct {
		Content *struct {
			ContentID content.ID `json:"content_id"`
			ParentID  content.ID `json:"parent_id"`
		} `json:"content,omitempty"`
		Workspace *struct {
			WorkspaceID int64 `json:"workspace_id"`
		} `json:"workspace,omitempty"`
	} `json:"fields"`
}

// Listener opens the push stream and forwards its messages until ctx is done
// or the stream breaks. Every call opens a fresh connection.
type Listener interface {
	Listen(ctx context.Context, messages chan<- LiveMessage) error
}

func (m LiveMessage) KeepAlive() bool {
	return m.EventID == 0
}

func (m LiveMessage) ContentID() content.ID {
	if m.Fields.Content == nil {
		return 0
	}
	return m.Fields.Content.ContentID
}

func (m LiveMessage) ParentID() content.ID {
	if m.Fields.Content == nil {
		return 0
	}
	return m.Fields.Content.ParentID
}

func (m LiveMessage) WorkspaceID() int64 {
	if m.Fields.Workspace == nil {
		return 0
	}
	return m.Fields.Workspace.WorkspaceID
}

// RemoteType maps event types like "content.modified.file" onto a remote event.
// Only content events on synchronized kinds are kept.
func (m LiveMessage) RemoteType() (event.RemoteType, bool) {
	parts := strings.SplitN(m.EventType, ".", 3)
	if len(parts) != 3 || parts[0] != "content" {
		return 0, false
	}
	if _, err := content.ParseKind(parts[2]); err != nil {
		return 0, false
	}
	switch parts[1] {
	case "created", "undeleted":
		return event.RemoteCreated, true
	case "modified":
		return event.RemoteUpdated, true
	case "deleted":
		return event.RemoteDeleted, true
	}
	return 0, false
}
