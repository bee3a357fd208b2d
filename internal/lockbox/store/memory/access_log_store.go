package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

// RunAttempt holds the claimed user's lock for the whole evaluation, so two
// attempts for the same user never interleave while different users run in
// parallel.
func (s *Store) RunAttempt(ctx context.Context, claimedUserID string, fn store.AttemptFn) error {
	unlock := s.locks.Lock(claimedUserID)
	defer unlock()

	s.mu.RLock()
	u, found := s.users[claimedUserID]
	s.mu.RUnlock()

	return fn(ctx, &attemptTx{s: s, user: u, found: found})
}

type pendingThrottle struct {
	userID     string
	prev, next types.ThrottleState
}

type attemptTx struct {
	s         *Store
	user      types.User
	found     bool
	throttle  *pendingThrottle
	committed bool
}

func (tx *attemptTx) User() (types.User, bool) { return tx.user, tx.found }

func (tx *attemptTx) WindowsFor(_ context.Context, userID string) ([]types.AccessWindow, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.s.windowsFor(userID), nil
}

func (tx *attemptTx) SaveThrottle(_ context.Context, userID string, prev, next types.ThrottleState) error {
	tx.throttle = &pendingThrottle{userID: userID, prev: prev, next: next}
	return nil
}

// AppendLog applies the staged throttle change and the entry under mu, so
// readers see both or neither.
func (tx *attemptTx) AppendLog(_ context.Context, entry types.AccessLog) (int64, error) {
	if tx.committed {
		return 0, store.ErrCommitted
	}

	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return 0, fmt.Errorf("AppendLog: %w", s.appendErr)
	}
	if p := tx.throttle; p != nil {
		u, ok := s.users[p.userID]
		if !ok {
			return 0, fmt.Errorf("AppendLog throttle %s: %w", p.userID, store.ErrNotFound)
		}
		if u.FailedAttempts != p.prev.FailedAttempts {
			return 0, fmt.Errorf("AppendLog throttle %s: %w", p.userID, store.ErrConflict)
		}
		u.ThrottleState = p.next
		s.users[u.ID] = u
	}

	s.nextLogID++
	entry.ID = s.nextLogID
	s.logs = append(s.logs, entry)
	tx.committed = true
	return entry.ID, nil
}

func (s *Store) QueryLogs(_ context.Context, f types.LogFilter) ([]types.AccessLog, error) {
	s.mu.RLock()
	var out []types.AccessLog
	for _, l := range s.logs {
		if matches(l, f) {
			out = append(out, l)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(l types.AccessLog, f types.LogFilter) bool {
	if f.From != nil && l.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && l.OccurredAt.After(*f.To) {
		return false
	}
	if f.UserID != "" && (l.UserID == nil || *l.UserID != f.UserID) {
		return false
	}
	if f.Outcome != 0 && l.Outcome != f.Outcome {
		return false
	}
	if f.Reason != 0 && l.Reason != f.Reason {
		return false
	}
	return true
}
