package remote

import (
	"context"
	"fmt"

	"github.com/openmined/trsync/internal/content"
)

// Client is the remote content service as consumed by the sync engine.
type Client interface {
	// CreateContent creates an empty content named name under parent (0 for the workspace root).
	CreateContent(ctx context.Context, name string, kind content.Kind, parent content.ID) (content.ID, error)
	// SetLabel renames a content.
	SetLabel(ctx context.Context, id content.ID, kind content.Kind, name string) (content.Revision, error)
	// SetParent moves a content under parent (0 for the workspace root).
	SetParent(ctx context.Context, id content.ID, parent content.ID) (content.Revision, error)
	Trash(ctx context.Context, id content.ID) error
	Restore(ctx context.Context, id content.ID) error
	// Get returns deleted and archived contents too, flagged.
	Get(ctx context.Context, id content.ID) (*RemoteContent, error)
	// List returns every content of the workspace.
	List(ctx context.Context) ([]RemoteContent, error)
	// FillLocal writes the remote bytes of id into absPath.
	FillLocal(ctx context.Context, id content.ID, absPath string) error
	// FillRemote uploads absPath as the new bytes of id.
	FillRemote(ctx context.Context, id content.ID, absPath string) (content.Revision, error)
	// FindOne looks a live content up by name under parent. It fails with ErrNotFound.
	FindOne(ctx context.Context, name string, parent content.ID) (*RemoteContent, error)
}

// RemoteContent describes a content as the service reports it.
type RemoteContent struct {
	ContentID   content.ID       `json:"content_id"`
	RevisionID  content.Revision `json:"current_revision_id"`
	ParentID    content.ID       `json:"parent_id"`
	ContentType string           `json:"content_type"`
	FileName    string           `json:"filename"`
	Label       string           `json:"label"`
	IsDeleted   bool             `json:"is_deleted"`
	IsArchived  bool             `json:"is_archived"`
	RawContent  string           `json:"raw_content,omitempty"`
	Modified    string           `json:"modified,omitempty"`
}

func (r RemoteContent) Kind() (content.Kind, error) {
	return content.ParseKind(r.ContentType)
}

// Gone reports a trashed or archived content.
func (r RemoteContent) Gone() bool {
	return r.IsDeleted || r.IsArchived
}

// Content converts the descriptor into the tracked form.
func (r RemoteContent) Content() (content.Content, error) {
	kind, err := r.Kind()
	if err != nil {
		return content.Content{}, fmt.Errorf("content %d: %w", r.ContentID, err)
	}
	return content.New(r.ContentID, r.RevisionID, r.FileName, r.ParentID, kind)
}
