package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

const userColumns = `
  user_id, email, password_hash, status, role, role_expires_at_ms, pin_hash,
  failed_pin_attempts, last_failed_at_ms, email_confirmed_at_ms,
  created_at_ms, updated_at_ms`

type userRow struct {
	UserID             string         `db:"user_id"`
	Email              string         `db:"email"`
	PasswordHash       string         `db:"password_hash"`
	Status             string         `db:"status"`
	Role               string         `db:"role"`
	RoleExpiresAtMs    sql.NullInt64  `db:"role_expires_at_ms"`
	PINHash            sql.NullString `db:"pin_hash"`
	FailedPINAttempts  int            `db:"failed_pin_attempts"`
	LastFailedAtMs     sql.NullInt64  `db:"last_failed_at_ms"`
	EmailConfirmedAtMs sql.NullInt64  `db:"email_confirmed_at_ms"`
	CreatedAtMs        int64          `db:"created_at_ms"`
	UpdatedAtMs        int64          `db:"updated_at_ms"`
}

func (r userRow) toUser() (types.User, error) {
	status, err := types.ParseStatus(r.Status)
	if err != nil {
		return types.User{}, err
	}
	role, err := types.ParseRole(r.Role)
	if err != nil {
		return types.User{}, err
	}
	return types.User{
		ID:               r.UserID,
		Email:            r.Email,
		PasswordHash:     r.PasswordHash,
		Status:           status,
		Role:             role,
		RoleExpiresAt:    timePtrFromMs(r.RoleExpiresAtMs),
		PINHash:          r.PINHash.String,
		EmailConfirmedAt: timePtrFromMs(r.EmailConfirmedAtMs),
		CreatedAt:        timeFromMs(r.CreatedAtMs),
		UpdatedAt:        timeFromMs(r.UpdatedAtMs),
		ThrottleState: types.ThrottleState{
			FailedAttempts: r.FailedPINAttempts,
			LastFailedAt:   timePtrFromMs(r.LastFailedAtMs),
		},
	}, nil
}

func (s *Store) CreateUser(ctx context.Context, u types.User) error {
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

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE user_id = ?;`, u.ID).Scan(&exists)
		if err == nil {
			return fmt.Errorf("CreateUser %s: %w", u.ID, store.ErrConflict)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("CreateUser check id: %w", err)
		}
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ?;`, u.Email).Scan(&exists)
		if err == nil {
			return store.ErrEmailTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("CreateUser check email: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO users(`+userColumns+`
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			u.ID, u.Email, u.PasswordHash, u.Status.String(), u.Role.String(),
			msOrNil(u.RoleExpiresAt), nullString(u.PINHash),
			u.FailedAttempts, msOrNil(u.LastFailedAt), msOrNil(u.EmailConfirmedAt),
			u.CreatedAt.UTC().UnixMilli(), u.UpdatedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("CreateUser insert: %w", err)
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, userID string) (types.User, error) {
	return getUser(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE user_id = ?;`, userID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (types.User, error) {
	return getUser(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE email = ?;`, email)
}

func getUser(ctx context.Context, q sqlx.QueryerContext, query string, arg any) (types.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, q, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return types.User{}, store.ErrNotFound
	}
	if err != nil {
		return types.User{}, fmt.Errorf("get user: %w", err)
	}
	return row.toUser()
}

func (s *Store) ListUsers(ctx context.Context) ([]types.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+userColumns+` FROM users ORDER BY created_at_ms DESC, user_id;`,
	); err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	out := make([]types.User, 0, len(rows))
	for _, r := range rows {
		u, err := r.toUser()
		if err != nil {
			return nil, fmt.Errorf("ListUsers %s: %w", r.UserID, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, userID string, fn func(u *types.User) error) (types.User, error) {
	var updated types.User
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := getUser(ctx, s.txx(tx), `SELECT `+userColumns+` FROM users WHERE user_id = ?;`, userID)
		if err != nil {
			return err
		}
		next := cur
		if err := fn(&next); err != nil {
			return err
		}
		if !next.Status.Valid() || !next.Role.Valid() {
			return fmt.Errorf("UpdateUser %s: %w", userID, store.ErrInvalidValue)
		}
		next.ID, next.Email, next.CreatedAt = cur.ID, cur.Email, cur.CreatedAt
		next.UpdatedAt = time.Now().UTC()

		if _, err := tx.ExecContext(ctx, `
UPDATE users
SET password_hash         = ?,
    status                = ?,
    role                  = ?,
    role_expires_at_ms    = ?,
    pin_hash              = ?,
    failed_pin_attempts   = ?,
    last_failed_at_ms     = ?,
    email_confirmed_at_ms = ?,
    updated_at_ms         = ?
WHERE user_id = ?;
`,
			next.PasswordHash, next.Status.String(), next.Role.String(),
			msOrNil(next.RoleExpiresAt), nullString(next.PINHash),
			next.FailedAttempts, msOrNil(next.LastFailedAt), msOrNil(next.EmailConfirmedAt),
			next.UpdatedAt.UnixMilli(), userID,
		); err != nil {
			return fmt.Errorf("UpdateUser %s: %w", userID, err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return types.User{}, err
	}
	return updated, nil
}

func (s *Store) ActivePINHashes(ctx context.Context) ([]string, error) {
	var hashes []string
	if err := s.db.SelectContext(ctx, &hashes, `
SELECT pin_hash FROM users
WHERE status = 'ACTIVE' AND pin_hash IS NOT NULL;
`); err != nil {
		return nil, fmt.Errorf("ActivePINHashes: %w", err)
	}
	return hashes, nil
}
