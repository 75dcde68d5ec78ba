package state

import (
	"errors"
	"fmt"

	"github.com/openmined/trsync/internal/content"
)

// MemoryState is a volatile State. Startup scans use it to describe a live
// tree without touching the persisted one.
type MemoryState struct {
	contents   map[content.ID]content.Content
	timestamps map[content.ID]content.DiskTimestamp
}

func NewMemoryState() *MemoryState {
	return &MemoryState{
		contents:   make(map[content.ID]content.Content),
		timestamps: make(map[content.ID]content.DiskTimestamp),
	}
}

// NewMemoryStateFrom builds a MemoryState from already known contents.
func NewMemoryStateFrom(contents []content.Content) (*MemoryState, error) {
	s := NewMemoryState()
	for _, c := range contents {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		s.contents[c.ID] = c
	}
	return s, nil
}

func (s *MemoryState) Known(id content.ID) (bool, error) {
	_, ok := s.contents[id]
	return ok, nil
}

func (s *MemoryState) Get(id content.ID) (*content.Content, error) {
	c, ok := s.contents[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryState) ContentIDForPath(p string) (content.ID, error) {
	for id := range s.contents {
		candidate, err := s.Path(id)
		if errors.Is(err, ErrUnknownContent) {
			// parent not added yet
			continue
		}
		if err != nil {
			return 0, err
		}
		if candidate == p {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownPath, p)
}

func (s *MemoryState) Path(id content.ID) (string, error) {
	return buildPath(s.Get, id)
}

func (s *MemoryState) Timestamp(id content.ID) (content.DiskTimestamp, error) {
	if _, ok := s.contents[id]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownContent, id)
	}
	return s.timestamps[id], nil
}

func (s *MemoryState) Contents() ([]content.Content, error) {
	contents := make([]content.Content, 0, len(s.contents))
	paths := make(map[content.ID]string, len(s.contents))
	for id, c := range s.contents {
		p, err := s.Path(id)
		if err != nil {
			return nil, err
		}
		paths[id] = p
		contents = append(contents, c)
	}
	sortContents(contents, paths)
	return contents, nil
}

// pathOf is where c lands once tracked, fallback when its parent is not known yet.
func (s *MemoryState) pathOf(c content.Content, fallback string) string {
	if c.Parent == 0 {
		return c.FileName
	}
	parent, err := s.Path(c.Parent)
	if err != nil {
		return fallback
	}
	return JoinPath(parent, c.FileName)
}

func (s *MemoryState) ChildrenIDs(parent content.ID) ([]content.ID, error) {
	var ids []content.ID
	for id, c := range s.contents {
		if c.Parent == parent {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryState) Apply(m Modification) error {
	switch m := m.(type) {
	case Add:
		if err := m.Content.Validate(); err != nil {
			return err
		}
		if _, ok := s.contents[m.Content.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateContent, m.Content.ID)
		}
		if err := vacant(s, m.Content.ID, s.pathOf(m.Content, m.Path)); err != nil {
			return err
		}
		s.contents[m.Content.ID] = m.Content
		s.timestamps[m.Content.ID] = m.Timestamp
	case Update:
		c, ok := s.contents[m.ID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownContent, m.ID)
		}
		c.FileName = m.FileName
		c.Revision = m.Revision
		c.Parent = m.Parent
		if err := c.Validate(); err != nil {
			return err
		}
		if err := vacant(s, m.ID, s.pathOf(c, c.FileName)); err != nil {
			return err
		}
		s.contents[m.ID] = c
		s.timestamps[m.ID] = m.Timestamp
	case Forgot:
		ids, err := forgetOrder(s.ChildrenIDs, m.ID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			delete(s.contents, id)
			delete(s.timestamps, id)
		}
	default:
		return fmt.Errorf("state: unsupported modification %T", m)
	}
	return nil
}

var _ State = (*MemoryState)(nil)
