package engine

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// OpenDB opens the SQLite database at the given path.
// A single connection keeps sqlite's writer model simple: store operations
// are serialized by the pool rather than by busy-retry loops.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// OpenTestDB creates a database in a temporary directory.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatal(err)
	}
	return db
}

// MustMigrate applies a migration, panicking on error.
// Modules call this from their constructors with their embedded schema.
func MustMigrate(db *sql.DB, migration string) {
	if _, err := db.Exec(migration); err != nil {
		panic(fmt.Errorf("error while migrating database: %s", err))
	}
}
