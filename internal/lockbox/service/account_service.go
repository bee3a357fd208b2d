package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/credential"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/window"
)

const minPasswordLen = 8

// AccountService covers self-service registration and sign-in.
type AccountService struct {
	users   store.UserStore
	windows *window.Registry
	hasher  *credential.Hasher
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewAccountService(users store.UserStore, windows *window.Registry, hasher *credential.Hasher, logger logrus.FieldLogger) *AccountService {
	return &AccountService{users: users, windows: windows, hasher: hasher, logger: logger, now: time.Now}
}

func (s *AccountService) SetClock(now func() time.Time) { s.now = now }

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreatePendingUser registers a PENDING account and returns its id.
func (s *AccountService) CreatePendingUser(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return "", ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return "", ErrInvalidPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	u := types.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Status:       types.StatusPending,
		Role:         types.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return "", err
	}
	s.logger.WithField("user_id", u.ID).Info("user registered")
	return u.ID, nil
}

// ConfirmEmail moves a PENDING account to INACTIVE, where it waits for an
// admin. Confirming twice is a no-op.
func (s *AccountService) ConfirmEmail(ctx context.Context, userID string) error {
	_, err := s.users.UpdateUser(ctx, userID, func(u *types.User) error {
		if u.EmailConfirmed() {
			return nil
		}
		if u.Status != types.StatusPending {
			return ErrInvalidTransition
		}
		t := s.now().UTC()
		u.EmailConfirmedAt = &t
		u.Status = types.StatusInactive
		return nil
	})
	if err != nil {
		return mapUserErr(err)
	}
	return nil
}

// Authenticate checks an email/password pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	u, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrBadCredentials
	}
	if err != nil {
		return types.User{}, fmt.Errorf("load user by email: %w", err)
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return types.User{}, ErrBadCredentials
	}
	if !u.EmailConfirmed() {
		return types.User{}, ErrEmailNotConfirmed
	}
	if u.Status == types.StatusDeactivated {
		return types.User{}, ErrForbidden
	}
	return u, nil
}

// MyWindows returns the windows that apply to userID and whether now falls
// inside one of them.
func (s *AccountService) MyWindows(ctx context.Context, userID string) ([]types.AccessWindow, bool, error) {
	ws, err := s.windows.Windows(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	within, err := s.windows.IsWithinWindow(ctx, userID, s.now())
	if err != nil {
		return nil, false, err
	}
	return ws, within, nil
}
