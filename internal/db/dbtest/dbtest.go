// Package dbtest opens throwaway SQLite databases laid out like production:
// a migrated WAL file, a one-connection writer pool and a reader pool.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/BrandonDHaskell/Lockbox/server/internal/db"
)

// DB bundles the pools and the worker for one test database.
type DB struct {
	Path   string
	Writer *sql.DB
	Reader *sql.DB
	Worker *db.Worker
}

// Open creates a migrated database under t.TempDir. Everything is closed
// when the test ends.
func Open(t testing.TB) *DB {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lockbox.db")

	w, err := sql.Open(db.DriverName, db.DSN(path))
	if err != nil {
		t.Fatalf("dbtest: open writer: %v", err)
	}
	db.Configure(w)
	if _, err := db.Migrate(ctx, w); err != nil {
		w.Close()
		t.Fatalf("dbtest: migrate: %v", err)
	}

	r, err := db.OpenReader(ctx, db.Config{Path: path, ReadConns: 8})
	if err != nil {
		w.Close()
		t.Fatalf("dbtest: open reader: %v", err)
	}

	worker := db.NewWorker(w)
	t.Cleanup(func() {
		worker.Close()
		r.Close()
		w.Close()
	})
	return &DB{Path: path, Writer: w, Reader: r, Worker: worker}
}
