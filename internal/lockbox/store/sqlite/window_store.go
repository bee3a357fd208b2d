package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

const windowColumns = `
  window_id, user_id, kind, start_minute, end_minute,
  starts_at_ms, ends_at_ms, weekday_mask, created_at_ms`

type windowRow struct {
	WindowID    int64          `db:"window_id"`
	UserID      sql.NullString `db:"user_id"`
	Kind        string         `db:"kind"`
	StartMinute sql.NullInt64  `db:"start_minute"`
	EndMinute   sql.NullInt64  `db:"end_minute"`
	StartsAtMs  sql.NullInt64  `db:"starts_at_ms"`
	EndsAtMs    sql.NullInt64  `db:"ends_at_ms"`
	WeekdayMask int            `db:"weekday_mask"`
	CreatedAtMs int64          `db:"created_at_ms"`
}

func (r windowRow) toWindow() (types.AccessWindow, error) {
	kind, err := types.ParseWindowKind(r.Kind)
	if err != nil {
		return types.AccessWindow{}, err
	}
	w := types.AccessWindow{
		ID:          r.WindowID,
		UserID:      types.WildcardUserID,
		Kind:        kind,
		StartMinute: int(r.StartMinute.Int64),
		EndMinute:   int(r.EndMinute.Int64),
		StartsAt:    timePtrFromMs(r.StartsAtMs),
		EndsAt:      timePtrFromMs(r.EndsAtMs),
		Weekdays:    types.WeekdayMask(r.WeekdayMask),
		CreatedAt:   timeFromMs(r.CreatedAtMs),
	}
	if r.UserID.Valid {
		w.UserID = r.UserID.String
	}
	return w, nil
}

func toWindows(rows []windowRow) ([]types.AccessWindow, error) {
	out := make([]types.AccessWindow, 0, len(rows))
	for _, r := range rows {
		w, err := r.toWindow()
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", r.WindowID, err)
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *Store) CreateWindow(ctx context.Context, w types.AccessWindow) (int64, error) {
	if err := w.Validate(); err != nil {
		return 0, fmt.Errorf("CreateWindow: %v: %w", err, store.ErrInvalidValue)
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	var userID any
	if !w.IsWildcard() {
		userID = w.UserID
	}
	var startMin, endMin any
	if w.Kind == types.WindowRecurring {
		startMin, endMin = w.StartMinute, w.EndMinute
	}

	var id int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if userID != nil {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE user_id = ?;`, userID).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("CreateWindow user %s: %w", w.UserID, store.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("CreateWindow check user: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO access_windows(
  user_id, kind, start_minute, end_minute, starts_at_ms, ends_at_ms, weekday_mask, created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			userID, w.Kind.String(), startMin, endMin,
			msOrNil(w.StartsAt), msOrNil(w.EndsAt), int(w.Weekdays), w.CreatedAt.UTC().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("CreateWindow insert: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) DeleteWindow(ctx context.Context, windowID int64) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM access_windows WHERE window_id = ?;`, windowID)
		if err != nil {
			return fmt.Errorf("DeleteWindow %d: %w", windowID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *Store) ListWindows(ctx context.Context, userID string) ([]types.AccessWindow, error) {
	var (
		rows []windowRow
		err  error
	)
	switch userID {
	case "":
		err = s.db.SelectContext(ctx, &rows,
			`SELECT `+windowColumns+` FROM access_windows ORDER BY window_id;`)
	case types.WildcardUserID:
		err = s.db.SelectContext(ctx, &rows,
			`SELECT `+windowColumns+` FROM access_windows WHERE user_id IS NULL ORDER BY window_id;`)
	default:
		err = s.db.SelectContext(ctx, &rows,
			`SELECT `+windowColumns+` FROM access_windows WHERE user_id = ? ORDER BY window_id;`, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("ListWindows: %w", err)
	}
	return toWindows(rows)
}

func (s *Store) WindowsFor(ctx context.Context, userID string) ([]types.AccessWindow, error) {
	return windowsFor(ctx, s.db, userID)
}

func windowsFor(ctx context.Context, q sqlx.QueryerContext, userID string) ([]types.AccessWindow, error) {
	var rows []windowRow
	if err := sqlx.SelectContext(ctx, q, &rows, `
SELECT `+windowColumns+` FROM access_windows
WHERE user_id IS NULL OR user_id = ?
ORDER BY window_id;
`, userID); err != nil {
		return nil, fmt.Errorf("WindowsFor %s: %w", userID, err)
	}
	return toWindows(rows)
}
