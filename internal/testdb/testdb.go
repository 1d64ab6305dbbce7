// Package testdb provisions throwaway SQLite databases for tests.
package testdb

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// TestDB is a SQLite database file that only lives for one test.
type TestDB struct {
	Path string
	DB   *sql.DB
}

// New creates an empty database in a fresh file under t.TempDir() and closes
// it when the test ends.
func New(t testing.TB) *TestDB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("ledgermigrator-%s.db", uuid.NewString()))
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return &TestDB{Path: path, DB: db}
}

// Open opens the SQLite database at path with foreign keys enforced. A single
// connection keeps every statement on the same transaction view.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// TableExists reports whether the table exists.
func (d *TestDB) TableExists(t testing.TB, table string) bool {
	t.Helper()

	var count int
	err := d.DB.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&count)
	if err != nil {
		t.Fatalf("check table %s: %v", table, err)
	}
	return count > 0
}
