package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/credential"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/throttle"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

// AdminStore is what AdminService needs from persistence.
type AdminStore interface {
	store.UserStore
	store.WindowStore
}

// AdminService holds every admin-gated operation. Each call re-checks the
// actor's rights, so an expired temporary admin is refused immediately.
type AdminService struct {
	st     AdminStore
	hasher *credential.Hasher
	policy throttle.Policy
	logger logrus.FieldLogger
	now    func() time.Time

	// approveMu spans the PIN uniqueness check and the write that issues
	// the PIN.
	approveMu sync.Mutex
}

func NewAdminService(st AdminStore, hasher *credential.Hasher, policy throttle.Policy, logger logrus.FieldLogger) *AdminService {
	return &AdminService{st: st, hasher: hasher, policy: policy.WithDefaults(), logger: logger, now: time.Now}
}

// UserView is a user as shown to admins, with any active lockout.
type UserView struct {
	types.User
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

func (s *AdminService) SetClock(now func() time.Time) { s.now = now }

// ApproveUser activates a confirmed account and issues it a fresh PIN. The
// plaintext PIN is returned once and never stored. Approving an ACTIVE user
// reissues its PIN.
func (s *AdminService) ApproveUser(ctx context.Context, actorID, userID string) (string, error) {
	actor, err := requireAdmin(ctx, s.st, actorID, s.now())
	if err != nil {
		return "", err
	}

	s.approveMu.Lock()
	defer s.approveMu.Unlock()

	existing, err := s.st.ActivePINHashes(ctx)
	if err != nil {
		return "", fmt.Errorf("load active PIN hashes: %w", err)
	}
	pin, err := s.hasher.NewPIN(existing)
	if err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(pin)
	if err != nil {
		return "", err
	}

	_, err = s.st.UpdateUser(ctx, userID, func(u *types.User) error {
		if u.Status == types.StatusPending || !u.EmailConfirmed() {
			return ErrEmailNotConfirmed
		}
		u.Status = types.StatusActive
		u.PINHash = hash
		u.ThrottleState = types.ThrottleState{}
		return nil
	})
	if err != nil {
		return "", mapUserErr(err)
	}

	s.logger.WithFields(logrus.Fields{"actor": actor.ID, "user_id": userID}).Info("user approved")
	return pin, nil
}

func (s *AdminService) DeactivateUser(ctx context.Context, actorID, userID string) error {
	actor, err := requireAdmin(ctx, s.st, actorID, s.now())
	if err != nil {
		return err
	}
	_, err = s.st.UpdateUser(ctx, userID, func(u *types.User) error {
		u.Status = types.StatusDeactivated
		return nil
	})
	if err != nil {
		return mapUserErr(err)
	}
	s.logger.WithFields(logrus.Fields{"actor": actor.ID, "user_id": userID}).Info("user deactivated")
	return nil
}

// SetRoleExpiry makes userID an admin until expiresAt, or permanently when
// expiresAt is nil. An expiry that is not in the future is rejected.
func (s *AdminService) SetRoleExpiry(ctx context.Context, actorID, userID string, expiresAt *time.Time) error {
	now := s.now()
	actor, err := requireAdmin(ctx, s.st, actorID, now)
	if err != nil {
		return err
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return fmt.Errorf("role expiry %s is in the past: %w", expiresAt.Format(time.RFC3339), ErrInvalidTransition)
	}

	var exp *time.Time
	if expiresAt != nil {
		t := expiresAt.UTC()
		exp = &t
	}
	_, err = s.st.UpdateUser(ctx, userID, func(u *types.User) error {
		u.Role = types.RoleAdmin
		u.RoleExpiresAt = exp
		return nil
	})
	if err != nil {
		return mapUserErr(err)
	}
	s.logger.WithFields(logrus.Fields{"actor": actor.ID, "user_id": userID, "expires_at": exp}).Info("admin role granted")
	return nil
}

func (s *AdminService) ClearAdmin(ctx context.Context, actorID, userID string) error {
	actor, err := requireAdmin(ctx, s.st, actorID, s.now())
	if err != nil {
		return err
	}
	_, err = s.st.UpdateUser(ctx, userID, func(u *types.User) error {
		u.Role = types.RoleUser
		u.RoleExpiresAt = nil
		return nil
	})
	if err != nil {
		return mapUserErr(err)
	}
	s.logger.WithFields(logrus.Fields{"actor": actor.ID, "user_id": userID}).Info("admin role cleared")
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context, actorID string) ([]UserView, error) {
	now := s.now()
	if _, err := requireAdmin(ctx, s.st, actorID, now); err != nil {
		return nil, err
	}
	users, err := s.st.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserView, len(users))
	for i, u := range users {
		out[i] = UserView{User: u}
		if until := s.policy.LockedUntil(u.ThrottleState, now); !until.IsZero() {
			out[i].LockedUntil = &until
		}
	}
	return out, nil
}

func (s *AdminService) CreateWindow(ctx context.Context, actorID string, w types.AccessWindow) (int64, error) {
	if _, err := requireAdmin(ctx, s.st, actorID, s.now()); err != nil {
		return 0, err
	}
	if err := w.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}
	id, err := s.st.CreateWindow(ctx, w)
	if err != nil {
		return 0, mapUserErr(err)
	}
	return id, nil
}

func (s *AdminService) DeleteWindow(ctx context.Context, actorID string, windowID int64) error {
	if _, err := requireAdmin(ctx, s.st, actorID, s.now()); err != nil {
		return err
	}
	err := s.st.DeleteWindow(ctx, windowID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrWindowNotFound
	}
	return err
}

// ListWindows lists every window when userID is empty.
func (s *AdminService) ListWindows(ctx context.Context, actorID, userID string) ([]types.AccessWindow, error) {
	if _, err := requireAdmin(ctx, s.st, actorID, s.now()); err != nil {
		return nil, err
	}
	return s.st.ListWindows(ctx, userID)
}
