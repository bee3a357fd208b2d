// Package memory is an in-process implementation of store.Store intended for
// tests and dev environments.
package memory

import (
	"sync"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

var _ store.Store = (*Store)(nil)

// Store keeps every table in maps guarded by mu. Per-user critical sections
// (attempts and user updates) are serialised by locks; lock order is always
// the per-user lock first, then mu.
type Store struct {
	mu      sync.RWMutex
	users   map[string]types.User
	byEmail map[string]string
	windows map[int64]types.AccessWindow
	logs    []types.AccessLog

	nextWindowID int64
	nextLogID    int64

	appendErr error
	locks     store.KeyedMutex
}

func New() *Store {
	return &Store{
		users:   make(map[string]types.User),
		byEmail: make(map[string]string),
		windows: make(map[int64]types.AccessWindow),
	}
}

// FailAppends makes every subsequent AppendLog return err (nil restores
// normal behaviour). Test-only hook for storage failures.
func (s *Store) FailAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

// Logs returns a copy of every committed audit entry in append order.
// Test-only helper.
func (s *Store) Logs() []types.AccessLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.AccessLog, len(s.logs))
	copy(out, s.logs)
	return out
}
