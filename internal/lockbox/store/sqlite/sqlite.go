// Package sqlite implements store.Store on SQLite. Reads use a pooled
// query-only handle; every write runs as one transaction on the db.Worker.
package sqlite

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	dbpkg "github.com/BrandonDHaskell/Lockbox/server/internal/db"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
)

var _ store.Store = (*Store)(nil)

func init() {
	sqlx.BindDriver(dbpkg.DriverName, sqlx.QUESTION)
}

type Store struct {
	db     *sqlx.DB // readers
	writer *dbpkg.Worker
	locks  store.KeyedMutex
}

// New reads through reader and writes through writer. They may share a
// *sql.DB only when it has more than one connection.
func New(reader *sql.DB, writer *dbpkg.Worker) *Store {
	return &Store{db: sqlx.NewDb(reader, dbpkg.DriverName), writer: writer}
}

// txx lets sqlx scan inside a transaction owned by the worker.
func (s *Store) txx(tx *sql.Tx) *sqlx.Tx {
	return &sqlx.Tx{Tx: tx, Mapper: s.db.Mapper}
}

func msOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func nowMs() int64 { return time.Now().UTC().UnixMilli() }

func timeFromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func timePtrFromMs(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := timeFromMs(v.Int64)
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
