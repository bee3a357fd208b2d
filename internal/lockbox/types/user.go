package types

import (
	"fmt"
	"time"
)

// Status is the account lifecycle state. The zero value is not a valid
// status; stores reject it.
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusInactive
	StatusActive
	StatusDeactivated
)

var statusNames = map[Status]string{
	StatusPending:     "PENDING",
	StatusInactive:    "INACTIVE",
	StatusActive:      "ACTIVE",
	StatusDeactivated: "DEACTIVATED",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func ParseStatus(v string) (Status, error) {
	for s, n := range statusNames {
		if n == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown user status %q", v)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid user status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Role uint8

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "USER"
	case RoleAdmin:
		return "ADMIN"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

func ParseRole(v string) (Role, error) {
	switch v {
	case "USER":
		return RoleUser, nil
	case "ADMIN":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown user role %q", v)
	}
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid user role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ThrottleState is the per-user failure counter persisted alongside the
// user row.
type ThrottleState struct {
	FailedAttempts int        `json:"failed_pin_attempts"`
	LastFailedAt   *time.Time `json:"last_failed_at,omitempty"`
}

type User struct {
	ID               string     `json:"user_id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Status           Status     `json:"status"`
	Role             Role       `json:"role"`
	RoleExpiresAt    *time.Time `json:"role_expires_at,omitempty"`
	PINHash          string     `json:"-"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	ThrottleState
}

// HasAdminAccess reports whether u may run admin-gated operations at now.
// An admin whose role has expired is treated exactly like a USER.
func (u User) HasAdminAccess(now time.Time) bool {
	if u.Role != RoleAdmin {
		return false
	}
	return u.RoleExpiresAt == nil || now.Before(*u.RoleExpiresAt)
}

func (u User) EmailConfirmed() bool { return u.EmailConfirmedAt != nil }
