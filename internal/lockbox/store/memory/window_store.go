package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

func (s *Store) CreateWindow(_ context.Context, w types.AccessWindow) (int64, error) {
	if err := w.Validate(); err != nil {
		return 0, fmt.Errorf("CreateWindow: %v: %w", err, store.ErrInvalidValue)
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !w.IsWildcard() {
		if _, ok := s.users[w.UserID]; !ok {
			return 0, fmt.Errorf("CreateWindow user %s: %w", w.UserID, store.ErrNotFound)
		}
	}
	s.nextWindowID++
	w.ID = s.nextWindowID
	s.windows[w.ID] = w
	return w.ID, nil
}

func (s *Store) DeleteWindow(_ context.Context, windowID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.windows[windowID]; !ok {
		return store.ErrNotFound
	}
	delete(s.windows, windowID)
	return nil
}

func (s *Store) ListWindows(_ context.Context, userID string) ([]types.AccessWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectWindows(func(w types.AccessWindow) bool {
		return userID == "" || w.UserID == userID
	}), nil
}

func (s *Store) WindowsFor(_ context.Context, userID string) ([]types.AccessWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.windowsFor(userID), nil
}

// windowsFor requires mu to be held.
func (s *Store) windowsFor(userID string) []types.AccessWindow {
	return s.collectWindows(func(w types.AccessWindow) bool {
		return w.IsWildcard() || w.UserID == userID
	})
}

func (s *Store) collectWindows(keep func(types.AccessWindow) bool) []types.AccessWindow {
	var out []types.AccessWindow
	for _, w := range s.windows {
		if keep(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
