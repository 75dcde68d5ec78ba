package state

import (
	"fmt"

	"github.com/openmined/trsync/internal/content"
)

// Modification is one of Add, Update or Forgot.
type Modification interface {
	isModification()
	String() string
}

// Add starts tracking a content materialized at Path.
type Add struct {
	Content   content.Content
	Path      string
	Timestamp content.DiskTimestamp
}

// Update changes name, revision, parent and timestamp of a tracked content.
type Update struct {
	ID        content.ID
	FileName  string
	Revision  content.Revision
	Parent    content.ID
	Timestamp content.DiskTimestamp
}

// Forgot stops tracking a content and all of its descendants.
type Forgot struct {
	ID content.ID
}

func (Add) isModification()    {}
func (Update) isModification() {}
func (Forgot) isModification() {}

func (m Add) String() string {
	return fmt.Sprintf("add %s at %s", m.Content, m.Path)
}

func (m Update) String() string {
	return fmt.Sprintf("update #%d (rev=%d,name=%q,parent=%d)", m.ID, m.Revision, m.FileName, m.Parent)
}

func (m Forgot) String() string {
	return fmt.Sprintf("forgot #%d", m.ID)
}
