package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

// RunAttempt holds the claimed user's lock while fn decides. The user and
// windows come from the reader pool, so only the final AppendLog touches
// the worker and attempts for different users overlap.
func (s *Store) RunAttempt(ctx context.Context, claimedUserID string, fn store.AttemptFn) error {
	unlock := s.locks.Lock(claimedUserID)
	defer unlock()

	u, err := getUser(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE user_id = ?;`, claimedUserID)
	found := true
	if errors.Is(err, store.ErrNotFound) {
		found, err = false, nil
	}
	if err != nil {
		return fmt.Errorf("RunAttempt load %s: %w", claimedUserID, err)
	}
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

func (a *attemptTx) User() (types.User, bool) { return a.user, a.found }

func (a *attemptTx) WindowsFor(ctx context.Context, userID string) ([]types.AccessWindow, error) {
	return windowsFor(ctx, a.s.db, userID)
}

func (a *attemptTx) SaveThrottle(_ context.Context, userID string, prev, next types.ThrottleState) error {
	a.throttle = &pendingThrottle{userID: userID, prev: prev, next: next}
	return nil
}

// AppendLog writes the staged throttle compare-and-set and the log row in
// one worker transaction.
func (a *attemptTx) AppendLog(ctx context.Context, e types.AccessLog) (int64, error) {
	if a.committed {
		return 0, store.ErrCommitted
	}

	var userID any
	if e.UserID != nil {
		userID = *e.UserID
	}

	var logID int64
	err := a.s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if p := a.throttle; p != nil {
			if err := saveThrottle(ctx, tx, p); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO access_logs(user_id, claimed_user_id, occurred_at_ms, outcome, reason, source_ip)
VALUES (?, ?, ?, ?, ?, ?);
`, userID, e.ClaimedUserID, e.OccurredAt.UTC().UnixMilli(),
			e.Outcome.String(), e.Reason.String(), nullString(e.SourceIP))
		if err != nil {
			return fmt.Errorf("AppendLog insert: %w", err)
		}
		logID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	a.committed = true
	return logID, nil
}

func saveThrottle(ctx context.Context, tx *sql.Tx, p *pendingThrottle) error {
	res, err := tx.ExecContext(ctx, `
UPDATE users
SET failed_pin_attempts = ?,
    last_failed_at_ms   = ?,
    updated_at_ms       = ?
WHERE user_id = ? AND failed_pin_attempts = ?;
`, p.next.FailedAttempts, msOrNil(p.next.LastFailedAt), nowMs(), p.userID, p.prev.FailedAttempts)
	if err != nil {
		return fmt.Errorf("SaveThrottle %s: %w", p.userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("SaveThrottle %s: %w", p.userID, store.ErrConflict)
	}
	return nil
}

type logRow struct {
	LogID         int64          `db:"log_id"`
	UserID        sql.NullString `db:"user_id"`
	ClaimedUserID string         `db:"claimed_user_id"`
	OccurredAtMs  int64          `db:"occurred_at_ms"`
	Outcome       string         `db:"outcome"`
	Reason        string         `db:"reason"`
	SourceIP      sql.NullString `db:"source_ip"`
}

func (s *Store) QueryLogs(ctx context.Context, f types.LogFilter) ([]types.AccessLog, error) {
	var (
		where []string
		args  []any
	)
	if f.From != nil {
		where = append(where, "occurred_at_ms >= ?")
		args = append(args, f.From.UTC().UnixMilli())
	}
	if f.To != nil {
		where = append(where, "occurred_at_ms <= ?")
		args = append(args, f.To.UTC().UnixMilli())
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Outcome != 0 {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome.String())
	}
	if f.Reason != 0 {
		where = append(where, "reason = ?")
		args = append(args, f.Reason.String())
	}

	q := `SELECT log_id, user_id, claimed_user_id, occurred_at_ms, outcome, reason, source_ip FROM access_logs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY occurred_at_ms DESC, log_id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var rows []logRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("QueryLogs: %w", err)
	}

	out := make([]types.AccessLog, 0, len(rows))
	for _, r := range rows {
		outcome, err := types.ParseOutcome(r.Outcome)
		if err != nil {
			return nil, fmt.Errorf("QueryLogs log %d: %w", r.LogID, err)
		}
		reason, err := types.ParseReason(r.Reason)
		if err != nil {
			return nil, fmt.Errorf("QueryLogs log %d: %w", r.LogID, err)
		}
		l := types.AccessLog{
			ID:            r.LogID,
			ClaimedUserID: r.ClaimedUserID,
			OccurredAt:    timeFromMs(r.OccurredAtMs),
			Outcome:       outcome,
			Reason:        reason,
			SourceIP:      r.SourceIP.String,
		}
		if r.UserID.Valid {
			id := r.UserID.String
			l.UserID = &id
		}
		out = append(out, l)
	}
	return out, nil
}
