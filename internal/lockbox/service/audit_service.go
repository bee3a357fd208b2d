package service

import (
	"context"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

const DefaultLogLimit = 500

// AuditService is the read side of the access log.
type AuditService struct {
	users store.UserStore
	logs  store.AccessLogStore
	now   func() time.Time
}

func NewAuditService(users store.UserStore, logs store.AccessLogStore) *AuditService {
	return &AuditService{users: users, logs: logs, now: time.Now}
}

func (s *AuditService) SetClock(now func() time.Time) { s.now = now }

// QueryForUser returns userID's own history, newest first. A non-positive
// limit returns all of it. Asking for someone else's is refused before
// storage is read, admin or not.
func (s *AuditService) QueryForUser(ctx context.Context, requesterID, userID string, limit int) ([]types.AccessLog, error) {
	if requesterID == "" || requesterID != userID {
		return nil, ErrForbidden
	}
	if limit < 0 {
		limit = 0
	}
	logs, err := s.logs.QueryLogs(ctx, types.LogFilter{UserID: userID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", userID, err)
	}
	return logs, nil
}

// QueryAll is the admin log view. A non-positive limit means DefaultLogLimit.
func (s *AuditService) QueryAll(ctx context.Context, actorID string, f types.LogFilter) ([]types.AccessLog, error) {
	if _, err := requireAdmin(ctx, s.users, actorID, s.now()); err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLogLimit
	}
	logs, err := s.logs.QueryLogs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	return logs, nil
}

// recentAttempts is how many entries the admin dashboard shows.
const recentAttempts = 10

// Dashboard is the admin landing view.
type Dashboard struct {
	// PendingApprovals counts confirmed accounts waiting for a PIN.
	PendingApprovals int               `json:"pending_approvals"`
	RecentAttempts   []types.AccessLog `json:"recent_attempts"`
}

func (s *AuditService) Dashboard(ctx context.Context, actorID string) (Dashboard, error) {
	if _, err := requireAdmin(ctx, s.users, actorID, s.now()); err != nil {
		return Dashboard{}, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list users: %w", err)
	}
	var d Dashboard
	for _, u := range users {
		if u.Status == types.StatusInactive && u.EmailConfirmed() {
			d.PendingApprovals++
		}
	}
	d.RecentAttempts, err = s.logs.QueryLogs(ctx, types.LogFilter{Limit: recentAttempts})
	if err != nil {
		return Dashboard{}, fmt.Errorf("query recent attempts: %w", err)
	}
	return d, nil
}
