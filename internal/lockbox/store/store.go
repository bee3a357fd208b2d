package store

import (
	"context"
	"errors"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrConflict     = errors.New("concurrent update conflict")
	ErrInvalidValue = errors.New("invalid value")
	ErrCommitted    = errors.New("attempt already committed")
)

type UserStore interface {
	CreateUser(ctx context.Context, u types.User) error
	GetUser(ctx context.Context, userID string) (types.User, error)
	GetUserByEmail(ctx context.Context, email string) (types.User, error)
	ListUsers(ctx context.Context) ([]types.User, error)

	// UpdateUser runs a read-modify-write of one user row in its own
	// transaction. Returning an error from fn aborts without writing.
	UpdateUser(ctx context.Context, userID string, fn func(u *types.User) error) (types.User, error)

	// ActivePINHashes lists the PIN hashes of every ACTIVE user.
	ActivePINHashes(ctx context.Context) ([]string, error)
}

type WindowStore interface {
	CreateWindow(ctx context.Context, w types.AccessWindow) (int64, error)
	DeleteWindow(ctx context.Context, windowID int64) error

	// ListWindows returns every window when userID is empty, otherwise
	// the windows owned by userID (use types.WildcardUserID for role-wide).
	ListWindows(ctx context.Context, userID string) ([]types.AccessWindow, error)

	// WindowsFor returns the windows that apply to userID: its own plus
	// every wildcard window.
	WindowsFor(ctx context.Context, userID string) ([]types.AccessWindow, error)
}

// AccessLogStore is the read side of the audit log. Entries are only ever
// written through AttemptTx.AppendLog.
type AccessLogStore interface {
	QueryLogs(ctx context.Context, f types.LogFilter) ([]types.AccessLog, error)
}

// AttemptStore runs one access evaluation as an atomic unit for the
// claimed user id.
type AttemptStore interface {
	// RunAttempt holds the claimed user's lock while fn runs. Attempts for
	// other users proceed in parallel. fn ends with AppendLog, which is the
	// only write; if fn returns before AppendLog succeeds nothing is
	// persisted.
	RunAttempt(ctx context.Context, claimedUserID string, fn AttemptFn) error
}

type AttemptFn func(ctx context.Context, tx AttemptTx) error

type AttemptTx interface {
	// User is the claimed user as loaded once the lock was taken.
	User() (types.User, bool)
	WindowsFor(ctx context.Context, userID string) ([]types.AccessWindow, error)

	// SaveThrottle stages a compare-and-set of the user's counter from prev
	// to next. It is applied by AppendLog.
	SaveThrottle(ctx context.Context, userID string, prev, next types.ThrottleState) error

	// AppendLog commits the staged throttle change and entry together and
	// returns the entry id. A lost compare-and-set returns ErrConflict and
	// writes nothing. It may be called once per attempt.
	AppendLog(ctx context.Context, entry types.AccessLog) (int64, error)
}

// Store bundles every persistence concern the services need.
type Store interface {
	UserStore
	WindowStore
	AccessLogStore
	AttemptStore
}
