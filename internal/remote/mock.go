package remote

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/openmined/trsync/internal/content"
)

// MockClient is an in-memory Client used by tests of the engine.
type MockClient struct {
	mu       sync.Mutex
	contents map[content.ID]*RemoteContent
	data     map[content.ID][]byte
	nextID   content.ID
	nextRev  content.Revision
	calls    []string
	failures map[string][]error
}

var _ Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{
		contents: make(map[content.ID]*RemoteContent),
		data:     make(map[content.ID][]byte),
		nextID:   1,
		nextRev:  1,
		failures: make(map[string][]error),
	}
}

// Seed places a live content in the store and returns its id.
func (m *MockClient) Seed(name string, kind content.Kind, parent content.ID, data []byte) content.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.newContent(name, kind, parent)
	if kind.Fillable() {
		m.data[id] = slices.Clone(data)
	}
	return id
}

// Mutate lets tests change a content behind the engine's back.
func (m *MockClient) Mutate(id content.ID, fn func(rc *RemoteContent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rc, ok := m.contents[id]; ok {
		fn(rc)
		rc.RevisionID = m.revision()
	}
}

// SetData replaces the bytes of id as if someone uploaded them.
func (m *MockClient) SetData(id content.ID, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rc, ok := m.contents[id]; ok {
		m.data[id] = slices.Clone(data)
		rc.RevisionID = m.revision()
	}
}

// FailNext queues errors returned by the next calls to method, one per call.
func (m *MockClient) FailNext(method string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = append(m.failures[method], errs...)
}

// Calls returns the recorded mutating calls, e.g. "create a.txt" or "set_label 3 b.txt".
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

func (m *MockClient) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Data returns the bytes stored for id.
func (m *MockClient) Data(id content.ID) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data[id])
}

func (m *MockClient) CreateContent(_ context.Context, name string, kind content.Kind, parent content.ID) (content.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create"); err != nil {
		return 0, err
	}
	m.record("create %s", name)
	if err := m.checkParent(parent); err != nil {
		return 0, err
	}
	if m.sibling(name, parent, 0) != nil {
		return 0, fmt.Errorf("create %q: %w", name, ErrAlreadyExists)
	}
	id := m.newContent(name, kind, parent)
	if kind.Fillable() {
		m.data[id] = nil
	}
	return id, nil
}

func (m *MockClient) SetLabel(_ context.Context, id content.ID, _ content.Kind, name string) (content.Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("set_label"); err != nil {
		return 0, err
	}
	m.record("set_label %d %s", id, name)
	rc, err := m.live(id)
	if err != nil {
		return 0, err
	}
	if m.sibling(name, rc.ParentID, id) != nil {
		return 0, fmt.Errorf("rename %d to %q: %w", id, name, ErrAlreadyExists)
	}
	rc.FileName, rc.Label = name, name
	rc.RevisionID = m.revision()
	return rc.RevisionID, nil
}

func (m *MockClient) SetParent(_ context.Context, id content.ID, parent content.ID) (content.Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("set_parent"); err != nil {
		return 0, err
	}
	m.record("set_parent %d %d", id, parent)
	rc, err := m.live(id)
	if err != nil {
		return 0, err
	}
	if err := m.checkParent(parent); err != nil {
		return 0, err
	}
	if m.sibling(rc.FileName, parent, id) != nil {
		return 0, fmt.Errorf("move %d under %d: %w", id, parent, ErrAlreadyExists)
	}
	rc.ParentID = parent
	rc.RevisionID = m.revision()
	return rc.RevisionID, nil
}

func (m *MockClient) Trash(_ context.Context, id content.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("trash"); err != nil {
		return err
	}
	m.record("trash %d", id)
	rc, ok := m.contents[id]
	if !ok {
		return fmt.Errorf("trash %d: %w", id, ErrNotFound)
	}
	m.trashTree(rc)
	return nil
}

// trashTree marks rc and everything below it deleted, as the service does.
func (m *MockClient) trashTree(rc *RemoteContent) {
	rc.IsDeleted = true
	rc.RevisionID = m.revision()
	for _, child := range m.contents {
		if child.ParentID == rc.ContentID && !child.IsDeleted {
			m.trashTree(child)
		}
	}
}

func (m *MockClient) Restore(_ context.Context, id content.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("restore"); err != nil {
		return err
	}
	m.record("restore %d", id)
	rc, ok := m.contents[id]
	if !ok {
		return fmt.Errorf("restore %d: %w", id, ErrNotFound)
	}
	rc.IsDeleted, rc.IsArchived = false, false
	rc.RevisionID = m.revision()
	return nil
}

func (m *MockClient) Get(_ context.Context, id content.ID) (*RemoteContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get"); err != nil {
		return nil, err
	}
	rc, ok := m.contents[id]
	if !ok {
		return nil, fmt.Errorf("get %d: %w", id, ErrNotFound)
	}
	cp := *rc
	if cp.ContentType == content.KindRichDocument.String() {
		cp.RawContent = string(m.data[id])
	}
	return &cp, nil
}

func (m *MockClient) List(_ context.Context) ([]RemoteContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list"); err != nil {
		return nil, err
	}
	out := make([]RemoteContent, 0, len(m.contents))
	for _, rc := range m.contents {
		out = append(out, *rc)
	}
	slices.SortFunc(out, func(a, b RemoteContent) int { return int(a.ContentID - b.ContentID) })
	return out, nil
}

func (m *MockClient) FillLocal(_ context.Context, id content.ID, absPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("fill_local"); err != nil {
		return err
	}
	if _, ok := m.contents[id]; !ok {
		return fmt.Errorf("download %d: %w", id, ErrNotFound)
	}
	return os.WriteFile(absPath, m.data[id], 0o644)
}

func (m *MockClient) FillRemote(_ context.Context, id content.ID, absPath string) (content.Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("fill_remote"); err != nil {
		return 0, err
	}
	m.record("fill_remote %d", id)
	rc, ok := m.contents[id]
	if !ok {
		return 0, fmt.Errorf("upload %d: %w", id, ErrNotFound)
	}
	if rc.Gone() {
		return 0, fmt.Errorf("upload %d: %w", id, ErrDeletedOrArchived)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return 0, err
	}
	m.data[id] = data
	rc.RevisionID = m.revision()
	return rc.RevisionID, nil
}

func (m *MockClient) FindOne(_ context.Context, name string, parent content.ID) (*RemoteContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("find_one"); err != nil {
		return nil, err
	}
	rc := m.sibling(name, parent, 0)
	if rc == nil {
		return nil, fmt.Errorf("find %q under %d: %w", name, parent, ErrNotFound)
	}
	cp := *rc
	return &cp, nil
}

func (m *MockClient) newContent(name string, kind content.Kind, parent content.ID) content.ID {
	id := m.nextID
	m.nextID++
	m.contents[id] = &RemoteContent{
		ContentID:   id,
		RevisionID:  m.revision(),
		ParentID:    parent,
		ContentType: kind.String(),
		FileName:    name,
		Label:       name,
	}
	return id
}

func (m *MockClient) revision() content.Revision {
	rev := m.nextRev
	m.nextRev++
	return rev
}

func (m *MockClient) live(id content.ID) (*RemoteContent, error) {
	rc, ok := m.contents[id]
	if !ok {
		return nil, fmt.Errorf("content %d: %w", id, ErrNotFound)
	}
	if rc.Gone() {
		return nil, fmt.Errorf("content %d: %w", id, ErrDeletedOrArchived)
	}
	return rc, nil
}

func (m *MockClient) checkParent(parent content.ID) error {
	if parent == 0 {
		return nil
	}
	rc, err := m.live(parent)
	if err != nil {
		return err
	}
	if rc.ContentType != content.KindFolder.String() {
		return fmt.Errorf("parent %d is a %s: %w", parent, rc.ContentType, ErrNotFound)
	}
	return nil
}

func (m *MockClient) sibling(name string, parent, except content.ID) *RemoteContent {
	for _, rc := range m.contents {
		if rc.ContentID != except && !rc.Gone() && rc.ParentID == parent && rc.FileName == name {
			return rc
		}
	}
	return nil
}

func (m *MockClient) fail(method string) error {
	queued := m.failures[method]
	if len(queued) == 0 {
		return nil
	}
	m.failures[method] = queued[1:]
	return queued[0]
}

func (m *MockClient) record(format string, args ...any) {
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}
