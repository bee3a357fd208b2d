package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedDevOptions struct {
	// Bootstrap admin. Skipped when AdminEmail is empty. Hashes are
	// produced by the caller; plaintext never reaches this package.
	AdminID           string
	AdminEmail        string
	AdminPasswordHash string
	AdminPINHash      string

	// OpenAllHours adds a wildcard window covering every minute of every day.
	OpenAllHours bool
}

// SeedResult reports what SeedDev actually inserted.
type SeedResult struct {
	AdminCreated bool
}

// SeedDev makes a fresh dev database usable: one permanent ACTIVE admin and,
// optionally, an always-open wildcard window. Re-running it is a no-op.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) (SeedResult, error) {
	var res SeedResult
	now := time.Now().UTC().UnixMilli()
	email := strings.ToLower(strings.TrimSpace(opt.AdminEmail))

	if email != "" {
		r, err := db.ExecContext(ctx, `
INSERT INTO users(
  user_id, email, password_hash, status, role, pin_hash,
  email_confirmed_at_ms, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, 'ACTIVE', 'ADMIN', NULLIF(?, ''), ?, ?, ?)
ON CONFLICT(email) DO NOTHING;
`, opt.AdminID, email, opt.AdminPasswordHash, opt.AdminPINHash, now, now, now)
		if err != nil {
			return res, fmt.Errorf("seed admin: %w", err)
		}
		if n, err := r.RowsAffected(); err == nil && n > 0 {
			res.AdminCreated = true
		}
	}

	if opt.OpenAllHours {
		if _, err := db.ExecContext(ctx, `
INSERT INTO access_windows(user_id, kind, start_minute, end_minute, weekday_mask, created_at_ms)
SELECT NULL, 'RECURRING', 0, 1440, 0, ?
WHERE NOT EXISTS (
  SELECT 1 FROM access_windows
  WHERE user_id IS NULL AND kind = 'RECURRING' AND start_minute = 0 AND end_minute = 1440
);
`, now); err != nil {
			return res, fmt.Errorf("seed wildcard window: %w", err)
		}
	}

	return res, nil
}
