package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/credential"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/throttle"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/window"
)

// AccessService is the decision engine. Each Submit evaluates the attempt
// and appends exactly one audit entry inside a single store transaction.
type AccessService struct {
	attempts store.AttemptStore
	hasher   *credential.Hasher
	policy   throttle.Policy
	loc      *time.Location
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewAccessService(
	attempts store.AttemptStore,
	hasher *credential.Hasher,
	policy throttle.Policy,
	loc *time.Location,
	logger logrus.FieldLogger,
) *AccessService {
	if loc == nil {
		loc = time.UTC
	}
	return &AccessService{
		attempts: attempts,
		hasher:   hasher,
		policy:   policy.WithDefaults(),
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the clock used when an attempt carries no timestamp.
func (s *AccessService) SetClock(now func() time.Time) { s.now = now }

// Submit decides an access attempt. Blank ids and codes are rejected before
// evaluation and are not logged. When the attempt cannot be recorded the
// returned decision is DENIED alongside the error.
func (s *AccessService) Submit(ctx context.Context, a types.AccessAttempt) (types.Decision, error) {
	userID := strings.TrimSpace(a.UserID)
	if userID == "" {
		return types.Decision{Outcome: types.OutcomeDenied}, ErrInvalidUserID
	}
	if strings.TrimSpace(a.Code) == "" {
		return types.Decision{Outcome: types.OutcomeDenied}, ErrInvalidCode
	}

	at := a.At
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	var dec types.Decision
	// A started attempt always runs to completion.
	err := s.attempts.RunAttempt(context.WithoutCancel(ctx), userID, func(ctx context.Context, tx store.AttemptTx) error {
		reason, err := s.evaluate(ctx, tx, a.Code, at)
		if err != nil {
			return err
		}

		entry := types.AccessLog{
			ClaimedUserID: userID,
			OccurredAt:    at,
			Outcome:       reason.Outcome(),
			Reason:        reason,
			SourceIP:      a.SourceIP,
		}
		if u, ok := tx.User(); ok {
			id := u.ID
			entry.UserID = &id
		}

		logID, err := tx.AppendLog(ctx, entry)
		if err != nil {
			return err
		}
		dec = types.Decision{Outcome: reason.Outcome(), Reason: reason, LogID: logID, At: at}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("claimed_user_id", userID).Error("access attempt failed")
		return types.Decision{Outcome: types.OutcomeDenied, At: at}, fmt.Errorf("submit attempt: %w", err)
	}

	fields := logrus.Fields{
		"claimed_user_id": userID,
		"reason":          dec.Reason.String(),
		"log_id":          dec.LogID,
	}
	if dec.Granted() {
		s.logger.WithFields(fields).Info("access granted")
	} else {
		s.logger.WithFields(fields).Warn("access denied")
	}
	return dec, nil
}

// evaluate applies the checks in order and persists any throttle change.
func (s *AccessService) evaluate(ctx context.Context, tx store.AttemptTx, code string, at time.Time) (types.Reason, error) {
	u, ok := tx.User()
	if !ok {
		return types.ReasonUnknownUser, nil
	}
	if u.Status != types.StatusActive {
		return types.ReasonInactiveUser, nil
	}

	prev := u.ThrottleState
	st := s.policy.Settle(prev, at)

	var reason types.Reason
	if s.policy.IsLockedOut(st, at) {
		reason = types.ReasonLockedOut
	} else {
		ws, err := tx.WindowsFor(ctx, u.ID)
		if err != nil {
			return 0, fmt.Errorf("load windows for %s: %w", u.ID, err)
		}
		switch {
		case !window.AnyContains(ws, at, s.loc):
			reason = types.ReasonOutsideAccessWindow
		case !s.hasher.Verify(u.PINHash, code):
			reason = types.ReasonBadPIN
			st = s.policy.RecordFailure(st, at)
		default:
			reason = types.ReasonOK
			st = s.policy.RecordSuccess(st)
		}
	}

	if !throttle.Equal(prev, st) {
		if err := tx.SaveThrottle(ctx, u.ID, prev, st); err != nil {
			return 0, err
		}
	}
	return reason, nil
}
