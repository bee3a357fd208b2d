package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Lockbox/server/internal/db/dbtest"
	sqlitestore "github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store/sqlite"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

// newTestStore returns a store over a fresh migrated database file, plus
// the writer connection for direct assertions.
func newTestStore(t *testing.T) (*sqlitestore.Store, *sql.DB) {
	t.Helper()
	d := dbtest.Open(t)
	return sqlitestore.New(d.Reader, d.Worker), d.Writer
}

func seedUser(t *testing.T, s *sqlitestore.Store, id string, status types.Status) types.User {
	t.Helper()
	u := types.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "pw",
		Status:       status,
		Role:         types.RoleUser,
		PINHash:      "pin-" + id,
		CreatedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seedUser %s: %v", id, err)
	}
	return u
}
