// Package window decides whether a moment falls inside a user's access
// windows. Windows are deny-by-default: no applicable window means no access.
package window

import (
	"context"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

// Source loads the windows that apply to a user (own plus wildcard).
type Source interface {
	WindowsFor(ctx context.Context, userID string) ([]types.AccessWindow, error)
}

type Registry struct {
	src Source
	loc *time.Location
}

// NewRegistry evaluates recurring windows in loc (UTC when nil).
func NewRegistry(src Source, loc *time.Location) *Registry {
	if loc == nil {
		loc = time.UTC
	}
	return &Registry{src: src, loc: loc}
}

// Windows lists the windows that apply to userID.
func (r *Registry) Windows(ctx context.Context, userID string) ([]types.AccessWindow, error) {
	ws, err := r.src.WindowsFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load windows for %s: %w", userID, err)
	}
	return ws, nil
}

func (r *Registry) IsWithinWindow(ctx context.Context, userID string, t time.Time) (bool, error) {
	ws, err := r.src.WindowsFor(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load windows for %s: %w", userID, err)
	}
	return AnyContains(ws, t, r.loc), nil
}

// AnyContains reports whether t is inside at least one window.
func AnyContains(ws []types.AccessWindow, t time.Time, loc *time.Location) bool {
	for _, w := range ws {
		if Contains(w, t, loc) {
			return true
		}
	}
	return false
}

// Contains reports whether t falls in w's half-open range on a permitted
// weekday.
func Contains(w types.AccessWindow, t time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)

	switch w.Kind {
	case types.WindowFixed:
		if w.StartsAt == nil || w.EndsAt == nil {
			return false
		}
		if t.Before(*w.StartsAt) || !t.Before(*w.EndsAt) {
			return false
		}
		return w.Weekdays.Has(local.Weekday())

	case types.WindowRecurring:
		return recurringContains(w, local)
	}
	return false
}

func recurringContains(w types.AccessWindow, local time.Time) bool {
	tod := secondsOfDay(local)
	start := w.StartMinute * 60
	end := w.EndMinute * 60

	if start < end {
		return tod >= start && tod < end && w.Weekdays.Has(local.Weekday())
	}

	// Wraps midnight: the evening half belongs to today, the early-morning
	// half to the window that opened yesterday.
	if tod >= start {
		return w.Weekdays.Has(local.Weekday())
	}
	if tod < end {
		return w.Weekdays.Has(previousDay(local.Weekday()))
	}
	return false
}

func secondsOfDay(t time.Time) int {
	h, m, s := t.Clock()
	return h*3600 + m*60 + s
}

func previousDay(d time.Weekday) time.Weekday {
	return (d + 6) % 7
}
