package db

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/trsync/internal/utils"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

// The state database has exactly one writer: the sync process holding the
// workspace lock. One connection keeps ":memory:" shared across queries and
// lets every write go through without busy retries.
const statePragma = `
PRAGMA journal_mode=WAL;
PRAGMA synchronous=NORMAL;
PRAGMA foreign_keys=ON;
PRAGMA busy_timeout=5000;
`

// Open connects to the database at path, creating its parent directory, and
// brings it to the latest of migrations. migrations[i] moves the database from
// user_version i to i+1; already applied steps are skipped.
func Open(path string, migrations ...string) (*sqlx.DB, error) {
	dsn := Memory
	if path != Memory {
		if err := utils.EnsureParent(path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", path)
	}

	conn, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(statePragma); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	from, err := migrate(conn, migrations)
	if err != nil {
		conn.Close()
		return nil, err
	}

	slog.Debug("db open", "driver", driverID, "path", path, "from", from, "version", len(migrations))
	return conn, nil
}

// Version reports the schema version recorded in the database.
func Version(conn *sqlx.DB) (int, error) {
	var v int
	if err := conn.Get(&v, "PRAGMA user_version"); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func migrate(conn *sqlx.DB, migrations []string) (int, error) {
	current, err := Version(conn)
	if err != nil {
		return 0, err
	}
	if current > len(migrations) {
		return current, fmt.Errorf("database schema version %d is newer than this build (%d)", current, len(migrations))
	}

	for v := current; v < len(migrations); v++ {
		tx, err := conn.Beginx()
		if err != nil {
			return current, err
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return current, fmt.Errorf("migrate schema to version %d: %w", v+1, err)
		}
		// PRAGMA does not take bind parameters
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", v+1)); err != nil {
			tx.Rollback()
			return current, fmt.Errorf("record schema version %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return current, err
		}
	}
	return current, nil
}
