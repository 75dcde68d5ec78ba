package tracimsdk

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/imroc/req/v3"
	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/utils"
)

type documentRequest struct {
	Label      string `json:"label"`
	RawContent string `json:"raw_content"`
}

// FillLocal downloads the bytes of id, then writes them over absPath in place.
// The download lands in a temp file first so an error body never reaches the workspace.
func (c *Client) FillLocal(ctx context.Context, id content.ID, absPath string) error {
	rc, err := c.Get(ctx, id)
	if err != nil {
		return err
	}

	if rc.ContentType == content.KindRichDocument.String() {
		if err := os.WriteFile(absPath, []byte(rc.RawContent), 0o644); err != nil {
			return fmt.Errorf("download %d: %w", id, err)
		}
		return nil
	}

	tmp, err := os.CreateTemp("", "trsync-download-*")
	if err != nil {
		return fmt.Errorf("download %d: %w", id, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	resp, err := c.http.R().
		SetContext(ctx).
		SetOutputFile(tmpPath).
		Get(c.workspacePath("files/%d/raw/%s", id, url.PathEscape(rc.FileName)))
	if err := handleAPIError(resp, err, fmt.Sprintf("download %d", id)); err != nil {
		return err
	}

	if err := copyFile(tmpPath, absPath); err != nil {
		return fmt.Errorf("download %d: %w", id, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// FillRemote uploads absPath as the new revision of id.
func (c *Client) FillRemote(ctx context.Context, id content.ID, absPath string) (content.Revision, error) {
	name := filepath.Base(absPath)
	op := fmt.Sprintf("upload %d", id)

	if content.KindOfName(name) == content.KindRichDocument {
		raw, err := os.ReadFile(absPath)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		var rev revisionResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(&documentRequest{
				Label:      labelOf(name, content.KindRichDocument),
				RawContent: string(raw),
			}).
			SetSuccessResult(&rev).
			Put(c.workspacePath("html-documents/%d", id))
		if err := handleAPIError(resp, err, op); err != nil {
			return 0, err
		}
		return rev.RevisionID, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetRetryCount(0).
		SetFileUpload(req.FileUpload{
			ParamName:   "files",
			FileName:    name,
			ContentType: utils.DetectContentType(name),
			GetFileContent: func() (io.ReadCloser, error) {
				return os.Open(absPath)
			},
		}).
		Put(c.workspacePath("files/%d/raw/%s", id, url.PathEscape(name)))
	if err := handleAPIError(resp, err, op); err != nil {
		return 0, err
	}

	// the upload answers with no body, the new revision is read back
	rc, err := c.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return rc.RevisionID, nil
}
