package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

func (s *Store) CreateUser(_ context.Context, u types.User) error {
	if strings.TrimSpace(u.ID) == "" || strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("CreateUser: id and email required: %w", store.ErrInvalidValue)
	}
	if !u.Status.Valid() || !u.Role.Valid() {
		return fmt.Errorf("CreateUser: status/role: %w", store.ErrInvalidValue)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("CreateUser %s: %w", u.ID, store.ErrConflict)
	}
	if _, ok := s.byEmail[u.Email]; ok {
		return store.ErrEmailTaken
	}
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]types.User, error) {
	s.mu.RLock()
	out := make([]types.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, userID string, fn func(u *types.User) error) (types.User, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[userID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	next := cur
	if err := fn(&next); err != nil {
		return types.User{}, err
	}
	if !next.Status.Valid() || !next.Role.Valid() {
		return types.User{}, fmt.Errorf("UpdateUser %s: %w", userID, store.ErrInvalidValue)
	}
	// Identity columns are immutable.
	next.ID = cur.ID
	next.Email = cur.Email
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now().UTC()

	s.users[userID] = next
	return next, nil
}

func (s *Store) ActivePINHashes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, u := range s.users {
		if u.Status == types.StatusActive && u.PINHash != "" {
			out = append(out, u.PINHash)
		}
	}
	return out, nil
}
