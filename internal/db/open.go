package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const DriverName = "sqlite"

type Config struct {
	Path string // e.g. "./data/lockbox.db"
	Env  string // "dev" | "prod"

	// ReadConns sizes the reader pool returned by OpenReader. Defaults to 4.
	ReadConns int
}

// Open opens the SQLite database, verifies it answers, and migrates it.
func Open(ctx context.Context, cfg Config, logger logrus.FieldLogger) (*sql.DB, error) {
	if cfg.Path == "" {
		cfg.Path = "./data/lockbox.db"
	}
	if cfg.Env == "" {
		cfg.Env = "dev"
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open(DriverName, DSN(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	Configure(db)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	applied, err := Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, name := range applied {
		logger.WithField("migration", name).Info("applied migration")
	}

	return db, nil
}

// OpenReader opens a query-only pool on an already migrated database.
// WAL lets these connections read while the Worker's connection writes.
func OpenReader(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		cfg.Path = "./data/lockbox.db"
	}
	db, err := sql.Open(DriverName, ReaderDSN(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("sql.Open reader: %w", err)
	}
	ConfigureReader(db, cfg.ReadConns)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reader ping: %w", err)
	}
	return db, nil
}

// DSN builds a modernc.org/sqlite DSN with per-connection PRAGMAs:
// foreign keys on, WAL, synchronous NORMAL, and a busy timeout.
func DSN(path string) string {
	return fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)
}

// ReaderDSN is DSN for connections that never write. The journal mode is
// left alone; WAL is a property of the file once the writer has set it.
func ReaderDSN(path string) string {
	return fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=query_only(1)",
		path,
	)
}

// Configure pins the writer pool to one connection. Every write goes
// through the Worker on it.
func Configure(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
}

// ConfigureReader sizes a reader pool. n <= 0 means 4.
func ConfigureReader(db *sql.DB, n int) {
	if n <= 0 {
		n = 4
	}
	db.SetMaxOpenConns(n)
	db.SetMaxIdleConns(n)
	db.SetConnMaxIdleTime(5 * time.Minute)
}
