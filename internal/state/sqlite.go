package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/trsync/internal/content"
	"github.com/openmined/trsync/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS file (
    relative_path TEXT PRIMARY KEY,
    content_id INTEGER NOT NULL,
    revision_id INTEGER NOT NULL,
    parent_id INTEGER,
    kind TEXT NOT NULL DEFAULT 'file',
    last_modified_timestamp INTEGER NOT NULL -- milliseconds
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_file_relative_path ON file(relative_path);
CREATE UNIQUE INDEX IF NOT EXISTS idx_file_content_id ON file(content_id);
CREATE INDEX IF NOT EXISTS idx_file_parent_id ON file(parent_id);
`

const selectColumns = "relative_path, content_id, revision_id, parent_id, kind, last_modified_timestamp"

type fileRow struct {
	RelativePath string        `db:"relative_path"`
	ContentID    int64         `db:"content_id"`
	RevisionID   int64         `db:"revision_id"`
	ParentID     sql.NullInt64 `db:"parent_id"`
	Kind         string        `db:"kind"`
	Timestamp    int64         `db:"last_modified_timestamp"`
}

func (r fileRow) content() (content.Content, error) {
	kind, err := content.ParseKind(r.Kind)
	if err != nil {
		return content.Content{}, err
	}
	return content.Content{
		ID:       content.ID(r.ContentID),
		Revision: content.Revision(r.RevisionID),
		FileName: path.Base(r.RelativePath),
		Parent:   content.ID(r.ParentID.Int64),
		Kind:     kind,
	}, nil
}

func nullParent(id content.ID) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(id), Valid: id != 0}
}

// SqliteState is the persisted State, one row per tracked content.
type SqliteState struct {
	db     *sqlx.DB
	dbPath string
}

// NewSqliteState prepares a state backed by dbPath. Use ":memory:" for tests.
func NewSqliteState(dbPath string) *SqliteState {
	return &SqliteState{dbPath: dbPath}
}

// Open the underlying database and create the schema.
func (s *SqliteState) Open() error {
	if s.db != nil {
		return fmt.Errorf("state already open")
	}

	conn, err := db.Open(s.dbPath, schema)
	if err != nil {
		return fmt.Errorf("failed to open state: %w", err)
	}

	s.db = conn
	return nil
}

func (s *SqliteState) Close() error {
	if s.db == nil {
		return fmt.Errorf("state not open")
	}
	if err := s.db.Close(); err != nil {
		slog.Error("state close", "error", err)
		return err
	}
	s.db = nil
	slog.Debug("state closed")
	return nil
}

// Destroy closes the state and removes its database files.
func (s *SqliteState) Destroy() error {
	if s.db != nil {
		if err := s.Close(); err != nil {
			return err
		}
	}
	if s.dbPath == ":memory:" {
		return nil
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", s.dbPath+suffix, err)
		}
	}
	return nil
}

func (s *SqliteState) row(id content.ID) (*fileRow, error) {
	var r fileRow
	err := s.db.Get(&r, "SELECT "+selectColumns+" FROM file WHERE content_id = ?", int64(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query content %d: %w", id, err)
	}
	return &r, nil
}

func (s *SqliteState) Known(id content.ID) (bool, error) {
	r, err := s.row(id)
	return r != nil, err
}

func (s *SqliteState) Get(id content.ID) (*content.Content, error) {
	r, err := s.row(id)
	if err != nil || r == nil {
		return nil, err
	}
	c, err := r.content()
	if err != nil {
		return nil, fmt.Errorf("content %d: %w", id, err)
	}
	return &c, nil
}

func (s *SqliteState) ContentIDForPath(p string) (content.ID, error) {
	var id int64
	err := s.db.Get(&id, "SELECT content_id FROM file WHERE relative_path = ?", p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrUnknownPath, p)
		}
		return 0, fmt.Errorf("failed to query path %s: %w", p, err)
	}
	return content.ID(id), nil
}

func (s *SqliteState) Path(id content.ID) (string, error) {
	return buildPath(s.Get, id)
}

func (s *SqliteState) Timestamp(id content.ID) (content.DiskTimestamp, error) {
	r, err := s.row(id)
	if err != nil {
		return 0, err
	}
	if r == nil {
		return 0, fmt.Errorf("%w: %d", ErrUnknownContent, id)
	}
	return content.DiskTimestamp(r.Timestamp), nil
}

func (s *SqliteState) Contents() ([]content.Content, error) {
	var rows []fileRow
	if err := s.db.Select(&rows, "SELECT "+selectColumns+" FROM file"); err != nil {
		return nil, fmt.Errorf("failed to query contents: %w", err)
	}

	contents := make([]content.Content, 0, len(rows))
	paths := make(map[content.ID]string, len(rows))
	for _, r := range rows {
		c, err := r.content()
		if err != nil {
			return nil, fmt.Errorf("content %d: %w", r.ContentID, err)
		}
		contents = append(contents, c)
		paths[c.ID] = r.RelativePath
	}
	sortContents(contents, paths)
	return contents, nil
}

func (s *SqliteState) ChildrenIDs(parent content.ID) ([]content.ID, error) {
	var ids []content.ID
	var err error
	if parent == 0 {
		err = s.db.Select(&ids, "SELECT content_id FROM file WHERE parent_id IS NULL")
	} else {
		err = s.db.Select(&ids, "SELECT content_id FROM file WHERE parent_id = ?", int64(parent))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query children of %d: %w", parent, err)
	}
	return ids, nil
}

func (s *SqliteState) Count() (int, error) {
	var count int
	if err := s.db.Get(&count, "SELECT COUNT(*) FROM file"); err != nil {
		return 0, fmt.Errorf("failed to count contents: %w", err)
	}
	return count, nil
}

func (s *SqliteState) Apply(m Modification) error {
	var err error
	switch m := m.(type) {
	case Add:
		err = s.add(m)
	case Update:
		err = s.update(m)
	case Forgot:
		err = s.forgot(m)
	default:
		err = fmt.Errorf("state: unsupported modification %T", m)
	}
	if err != nil {
		return err
	}
	slog.Debug("state apply", "modification", m)
	return nil
}

func (s *SqliteState) add(m Add) error {
	if err := m.Content.Validate(); err != nil {
		return err
	}
	known, err := s.Known(m.Content.ID)
	if err != nil {
		return err
	}
	if known {
		return fmt.Errorf("%w: %d", ErrDuplicateContent, m.Content.ID)
	}
	if err := vacant(s, m.Content.ID, m.Path); err != nil {
		return err
	}
	row := fileRow{
		RelativePath: m.Path,
		ContentID:    int64(m.Content.ID),
		RevisionID:   int64(m.Content.Revision),
		ParentID:     nullParent(m.Content.Parent),
		Kind:         m.Content.Kind.String(),
		Timestamp:    int64(m.Timestamp),
	}
	query := `INSERT INTO file (relative_path, content_id, revision_id, parent_id, kind, last_modified_timestamp)
	          VALUES (:relative_path, :content_id, :revision_id, :parent_id, :kind, :last_modified_timestamp)`
	if _, err := s.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("failed to add content %d at %s: %w", m.Content.ID, m.Path, err)
	}
	return nil
}

func (s *SqliteState) update(m Update) error {
	current, err := s.row(m.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %d", ErrUnknownContent, m.ID)
	}
	if m.Parent == m.ID {
		return fmt.Errorf("%w: %d", content.ErrSelfParent, m.ID)
	}

	parentPath := ""
	if m.Parent != 0 {
		if parentPath, err = s.Path(m.Parent); err != nil {
			return fmt.Errorf("update %d: %w", m.ID, err)
		}
	}
	newPath := JoinPath(parentPath, m.FileName)
	if err := vacant(s, m.ID, newPath); err != nil {
		return err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin update of %d: %w", m.ID, err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(
		`UPDATE file SET relative_path = ?, revision_id = ?, parent_id = ?, last_modified_timestamp = ? WHERE content_id = ?`,
		newPath, int64(m.Revision), nullParent(m.Parent), int64(m.Timestamp), int64(m.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update content %d: %w", m.ID, err)
	}

	if newPath != current.RelativePath {
		if err := relocateDescendants(tx, m.ID, newPath); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// relocateDescendants rewrites the stored path of every descendant of id after
// id moved to newPath, so that the path index keeps answering lookups.
func relocateDescendants(tx *sqlx.Tx, id content.ID, newPath string) error {
	type pending struct {
		id   content.ID
		path string
	}
	stack := []pending{{id, newPath}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var children []fileRow
		if err := tx.Select(&children, "SELECT "+selectColumns+" FROM file WHERE parent_id = ?", int64(p.id)); err != nil {
			return fmt.Errorf("failed to query children of %d: %w", p.id, err)
		}
		for _, child := range children {
			childPath := JoinPath(p.path, path.Base(child.RelativePath))
			if _, err := tx.Exec("UPDATE file SET relative_path = ? WHERE content_id = ?", childPath, child.ContentID); err != nil {
				return fmt.Errorf("failed to relocate content %d: %w", child.ContentID, err)
			}
			stack = append(stack, pending{content.ID(child.ContentID), childPath})
		}
	}
	return nil
}

func (s *SqliteState) forgot(m Forgot) error {
	ids, err := forgetOrder(s.ChildrenIDs, m.ID)
	if err != nil {
		return err
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin forgot of %d: %w", m.ID, err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, id := range ids {
		if _, err := tx.Exec("DELETE FROM file WHERE content_id = ?", int64(id)); err != nil {
			return fmt.Errorf("failed to forget content %d: %w", id, err)
		}
	}
	return tx.Commit()
}

var _ State = (*SqliteState)(nil)
