package content

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrSelfParent  = errors.New("content: parent is the content itself")
	ErrInvalidID   = errors.New("content: invalid id")
	ErrUnknownKind = errors.New("content: unknown kind")
)

// RichDocumentSuffix marks a rich document on disk.
const RichDocumentSuffix = ".document.html"

// ID identifies a content in the remote store. Zero means "no content" (workspace root).
type ID int64

// Revision is the remote revision counter of a content.
type Revision int64

// DiskTimestamp is a file modification time in milliseconds since epoch.
type DiskTimestamp int64

type Kind int

const (
	KindFile Kind = iota
	KindFolder
	KindRichDocument
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	case KindRichDocument:
		return "html-document"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Fillable reports whether the kind carries bytes.
func (k Kind) Fillable() bool {
	return k == KindFile || k == KindRichDocument
}

// ParseKind maps a remote content type onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "file":
		return KindFile, nil
	case "folder":
		return KindFolder, nil
	case "html-document":
		return KindRichDocument, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// KindOfName guesses a non-folder kind from a file name.
func KindOfName(name string) Kind {
	if strings.HasSuffix(name, RichDocumentSuffix) {
		return KindRichDocument
	}
	return KindFile
}

// KindOfPath inspects the disk entry at absPath.
func KindOfPath(absPath string) (Kind, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return KindFolder, nil
	}
	return KindOfName(info.Name()), nil
}

// Content is one tracked unit of the remote store.
type Content struct {
	ID       ID
	Revision Revision
	FileName string
	Parent   ID
	Kind     Kind
}

// New builds a validated Content. A zero parent means the content lives at the workspace root.
func New(id ID, revision Revision, fileName string, parent ID, kind Kind) (Content, error) {
	c := Content{ID: id, Revision: revision, FileName: fileName, Parent: parent, Kind: kind}
	if err := c.Validate(); err != nil {
		return Content{}, err
	}
	return c, nil
}

func (c Content) Validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, c.ID)
	}
	if c.Parent == c.ID {
		return fmt.Errorf("%w: %d", ErrSelfParent, c.ID)
	}
	if c.FileName == "" {
		return fmt.Errorf("content %d: empty file name", c.ID)
	}
	return nil
}

func (c Content) HasParent() bool {
	return c.Parent != 0
}

func (c Content) String() string {
	return fmt.Sprintf("%s#%d(rev=%d,name=%q,parent=%d)", c.Kind, c.ID, c.Revision, c.FileName, c.Parent)
}
