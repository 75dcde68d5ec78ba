package tracimsdk

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/remote"
)

type createContentRequest struct {
	ContentType string      `json:"content_type"`
	Label       string      `json:"label"`
	ParentID    *content.ID `json:"parent_id"`
}

type renameRequest struct {
	Label    string `json:"label"`
	FileName string `json:"file_name,omitempty"`
}

type moveRequest struct {
	NewParentID    content.ID `json:"new_parent_id"`
	NewWorkspaceID int64      `json:"new_workspace_id"`
}

type revisionResponse struct {
	RevisionID content.Revision `json:"current_revision_id"`
}

type listResponse struct {
	Items         []remote.RemoteContent `json:"items"`
	HasNext       bool                   `json:"has_next"`
	NextPageToken string                 `json:"next_page_token"`
}

func parentRef(parent content.ID) *content.ID {
	if parent == 0 {
		return nil
	}
	return &parent
}

// labelOf strips the extension Tracim derives from the content type.
func labelOf(name string, kind content.Kind) string {
	switch kind {
	case content.KindFolder:
		return name
	case content.KindRichDocument:
		return strings.TrimSuffix(name, content.RichDocumentSuffix)
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

func kindPath(kind content.Kind) string {
	switch kind {
	case content.KindFolder:
		return "folders"
	case content.KindRichDocument:
		return "html-documents"
	}
	return "files"
}

func (c *Client) CreateContent(ctx context.Context, name string, kind content.Kind, parent content.ID) (content.ID, error) {
	var created remote.RemoteContent
	op := fmt.Sprintf("create %s %q", kind, name)

	r := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&created)

	var err error
	if kind == content.KindFile {
		r.SetFileReader("files", name, bytes.NewReader(nil))
		if parent != 0 {
			r.SetFormData(map[string]string{"parent_id": fmt.Sprint(parent)})
		}
		resp, reqErr := r.Post(c.workspacePath("files"))
		err = handleAPIError(resp, reqErr, op)
	} else {
		resp, reqErr := r.
			SetBody(&createContentRequest{
				ContentType: kind.String(),
				Label:       labelOf(name, kind),
				ParentID:    parentRef(parent),
			}).
			Post(c.workspacePath("contents"))
		err = handleAPIError(resp, reqErr, op)
	}
	if err != nil {
		return 0, err
	}

	slog.Debug("remote content created", "id", created.ContentID, "name", name, "parent", parent)
	return created.ContentID, nil
}

func (c *Client) SetLabel(ctx context.Context, id content.ID, kind content.Kind, name string) (content.Revision, error) {
	var rev revisionResponse
	body := &renameRequest{Label: labelOf(name, kind)}
	if kind == content.KindFile {
		body.FileName = name
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetSuccessResult(&rev).
		Put(c.workspacePath("%s/%d", kindPath(kind), id))

	if err := handleAPIError(resp, err, fmt.Sprintf("rename %d to %q", id, name)); err != nil {
		return 0, err
	}
	return rev.RevisionID, nil
}

func (c *Client) SetParent(ctx context.Context, id content.ID, parent content.ID) (content.Revision, error) {
	var rev revisionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&moveRequest{NewParentID: parent, NewWorkspaceID: c.config.WorkspaceID}).
		SetSuccessResult(&rev).
		Put(c.workspacePath("contents/%d/move", id))

	if err := handleAPIError(resp, err, fmt.Sprintf("move %d under %d", id, parent)); err != nil {
		return 0, err
	}
	return rev.RevisionID, nil
}

func (c *Client) Trash(ctx context.Context, id content.ID) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Put(c.workspacePath("contents/%d/trashed", id))
	return handleAPIError(resp, err, fmt.Sprintf("trash %d", id))
}

// Restore undoes both trash and archive.
func (c *Client) Restore(ctx context.Context, id content.ID) error {
	for _, state := range []string{"trashed", "archived"} {
		resp, err := c.http.R().
			SetContext(ctx).
			Put(c.workspacePath("contents/%d/%s/restore", id, state))
		if err := handleAPIError(resp, err, fmt.Sprintf("restore %s %d", state, id)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Get(ctx context.Context, id content.ID) (*remote.RemoteContent, error) {
	var rc remote.RemoteContent
	resp, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&rc).
		Get(c.workspacePath("contents/%d", id))

	if err := handleAPIError(resp, err, fmt.Sprintf("get %d", id)); err != nil {
		return nil, err
	}
	if rc.ContentType == content.KindRichDocument.String() && rc.RawContent == "" {
		if err := c.fetchRawContent(ctx, &rc); err != nil {
			return nil, err
		}
	}
	return &rc, nil
}

func (c *Client) fetchRawContent(ctx context.Context, rc *remote.RemoteContent) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(rc).
		Get(c.workspacePath("html-documents/%d", rc.ContentID))
	return handleAPIError(resp, err, fmt.Sprintf("get document %d", rc.ContentID))
}

func (c *Client) List(ctx context.Context) ([]remote.RemoteContent, error) {
	return c.list(ctx, nil)
}

func (c *Client) list(ctx context.Context, parent *content.ID) ([]remote.RemoteContent, error) {
	var out []remote.RemoteContent
	pageToken := ""
	for {
		var page listResponse
		r := c.http.R().
			SetContext(ctx).
			SetQueryParam("count", "1000").
			SetSuccessResult(&page)
		if parent != nil {
			r.SetQueryParam("parent_ids", fmt.Sprint(*parent))
		}
		if pageToken != "" {
			r.SetQueryParam("page_token", pageToken)
		}

		resp, err := r.Get(c.workspacePath("contents"))
		if err := handleAPIError(resp, err, "list contents"); err != nil {
			return nil, err
		}

		for _, rc := range page.Items {
			if _, err := rc.Kind(); err != nil {
				continue
			}
			out = append(out, rc)
		}
		if !page.HasNext || page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) FindOne(ctx context.Context, name string, parent content.ID) (*remote.RemoteContent, error) {
	siblings, err := c.list(ctx, &parent)
	if err != nil {
		return nil, err
	}
	for _, rc := range siblings {
		if rc.FileName == name && rc.ParentID == parent && !rc.Gone() {
			return &rc, nil
		}
	}
	return nil, fmt.Errorf("find %q under %d: %w", name, parent, remote.ErrNotFound)
}
