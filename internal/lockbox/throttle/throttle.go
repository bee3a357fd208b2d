// Package throttle implements the consecutive-failure lockout policy.
//
// A user is locked out while FailedAttempts >= Threshold and the last
// failure is younger than Cooldown. Once the cooldown has elapsed the
// counter is zeroed the next time the user is evaluated (Settle), whatever
// the outcome of that evaluation.
package throttle

import (
	"time"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

const (
	DefaultThreshold = 5
	DefaultCooldown  = 15 * time.Minute
)

type Policy struct {
	Threshold int
	Cooldown  time.Duration
}

// WithDefaults fills non-positive fields.
func (p Policy) WithDefaults() Policy {
	if p.Threshold <= 0 {
		p.Threshold = DefaultThreshold
	}
	if p.Cooldown <= 0 {
		p.Cooldown = DefaultCooldown
	}
	return p
}

// Settle applies the lazy reset: a counter whose last failure is at least
// Cooldown old is cleared.
func (p Policy) Settle(st types.ThrottleState, now time.Time) types.ThrottleState {
	if st.FailedAttempts == 0 && st.LastFailedAt == nil {
		return st
	}
	if st.LastFailedAt == nil || now.Sub(*st.LastFailedAt) >= p.Cooldown {
		return types.ThrottleState{}
	}
	return st
}

func (p Policy) IsLockedOut(st types.ThrottleState, now time.Time) bool {
	if st.FailedAttempts < p.Threshold || st.LastFailedAt == nil {
		return false
	}
	return now.Sub(*st.LastFailedAt) < p.Cooldown
}

func (p Policy) RecordFailure(st types.ThrottleState, now time.Time) types.ThrottleState {
	t := now.UTC()
	return types.ThrottleState{FailedAttempts: st.FailedAttempts + 1, LastFailedAt: &t}
}

func (p Policy) RecordSuccess(types.ThrottleState) types.ThrottleState {
	return types.ThrottleState{}
}

// LockedUntil returns when an active lockout ends, or the zero time.
func (p Policy) LockedUntil(st types.ThrottleState, now time.Time) time.Time {
	if !p.IsLockedOut(st, now) {
		return time.Time{}
	}
	return st.LastFailedAt.Add(p.Cooldown)
}

// Equal compares two states including the optional timestamp.
func Equal(a, b types.ThrottleState) bool {
	if a.FailedAttempts != b.FailedAttempts {
		return false
	}
	if a.LastFailedAt == nil || b.LastFailedAt == nil {
		return a.LastFailedAt == nil && b.LastFailedAt == nil
	}
	return a.LastFailedAt.Equal(*b.LastFailedAt)
}
