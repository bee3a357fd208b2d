package types

import (
	"fmt"
	"strings"
	"time"
)

// WildcardUserID marks a window that applies to every user.
const WildcardUserID = "*"

const MinutesPerDay = 24 * 60

type WindowKind uint8

const (
	// WindowRecurring repeats every matching weekday between two times of day.
	WindowRecurring WindowKind = iota + 1
	// WindowFixed is a single absolute range.
	WindowFixed
)

func (k WindowKind) String() string {
	switch k {
	case WindowRecurring:
		return "RECURRING"
	case WindowFixed:
		return "FIXED"
	default:
		return fmt.Sprintf("WindowKind(%d)", uint8(k))
	}
}

func ParseWindowKind(v string) (WindowKind, error) {
	switch strings.ToUpper(v) {
	case "RECURRING":
		return WindowRecurring, nil
	case "FIXED":
		return WindowFixed, nil
	default:
		return 0, fmt.Errorf("unknown window kind %q", v)
	}
}

func (k WindowKind) MarshalText() ([]byte, error) {
	if k != WindowRecurring && k != WindowFixed {
		return nil, fmt.Errorf("invalid window kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *WindowKind) UnmarshalText(b []byte) error {
	v, err := ParseWindowKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// WeekdayMask has bit (1 << time.Weekday) set for each permitted day.
// Zero means every day.
type WeekdayMask uint8

const AllWeekdays WeekdayMask = 0x7f

func MaskOf(days ...time.Weekday) WeekdayMask {
	var m WeekdayMask
	for _, d := range days {
		m |= 1 << uint(d)
	}
	return m
}

func (m WeekdayMask) Has(d time.Weekday) bool {
	if m == 0 {
		return true
	}
	return m&(1<<uint(d)) != 0
}

type AccessWindow struct {
	ID     int64      `json:"window_id"`
	UserID string     `json:"user_id"` // WildcardUserID for role-wide windows
	Kind   WindowKind `json:"kind"`

	// Recurring windows, minutes since local midnight. EndMinute <
	// StartMinute wraps past midnight.
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`

	// Fixed windows.
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`

	Weekdays  WeekdayMask `json:"weekday_mask"`
	CreatedAt time.Time   `json:"created_at"`
}

func (w AccessWindow) IsWildcard() bool { return w.UserID == WildcardUserID }

// Validate checks the shape of a window before it is stored.
func (w AccessWindow) Validate() error {
	if strings.TrimSpace(w.UserID) == "" {
		return fmt.Errorf("window user_id is required")
	}
	if w.Weekdays > AllWeekdays {
		return fmt.Errorf("weekday mask %#x out of range", uint8(w.Weekdays))
	}
	switch w.Kind {
	case WindowRecurring:
		// EndMinute may be MinutesPerDay to mean "until midnight".
		if w.StartMinute < 0 || w.StartMinute >= MinutesPerDay ||
			w.EndMinute < 0 || w.EndMinute > MinutesPerDay {
			return fmt.Errorf("window minutes out of range")
		}
		if w.StartMinute == w.EndMinute {
			return fmt.Errorf("window start and end must differ")
		}
	case WindowFixed:
		if w.StartsAt == nil || w.EndsAt == nil {
			return fmt.Errorf("fixed window needs starts_at and ends_at")
		}
		if !w.EndsAt.After(*w.StartsAt) {
			return fmt.Errorf("end time must be after start time")
		}
	default:
		return fmt.Errorf("invalid window kind %d", uint8(w.Kind))
	}
	return nil
}
