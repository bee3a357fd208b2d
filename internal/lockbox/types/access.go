package types

import (
	"fmt"
	"time"
)

type Outcome uint8

const (
	OutcomeGranted Outcome = iota + 1
	OutcomeDenied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGranted:
		return "GRANTED"
	case OutcomeDenied:
		return "DENIED"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

func ParseOutcome(v string) (Outcome, error) {
	switch v {
	case "GRANTED":
		return OutcomeGranted, nil
	case "DENIED":
		return OutcomeDenied, nil
	default:
		return 0, fmt.Errorf("unknown outcome %q", v)
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	if o != OutcomeGranted && o != OutcomeDenied {
		return nil, fmt.Errorf("invalid outcome %d", uint8(o))
	}
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Reason is the audit reason code attached to every decision.
type Reason uint8

const (
	ReasonUnknownUser Reason = iota + 1
	ReasonInactiveUser
	ReasonLockedOut
	ReasonOutsideAccessWindow
	ReasonBadPIN
	ReasonOK
)

var reasonNames = map[Reason]string{
	ReasonUnknownUser:         "UNKNOWN_USER",
	ReasonInactiveUser:        "INACTIVE_USER",
	ReasonLockedOut:           "LOCKED_OUT",
	ReasonOutsideAccessWindow: "OUTSIDE_ACCESS_WINDOW",
	ReasonBadPIN:              "BAD_PIN",
	ReasonOK:                  "OK",
}

func (r Reason) String() string {
	if n, ok := reasonNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Reason(%d)", uint8(r))
}

func ParseReason(v string) (Reason, error) {
	for r, n := range reasonNames {
		if n == v {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown reason %q", v)
}

func (r Reason) MarshalText() ([]byte, error) {
	if _, ok := reasonNames[r]; !ok {
		return nil, fmt.Errorf("invalid reason %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Reason) UnmarshalText(b []byte) error {
	v, err := ParseReason(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Outcome maps a reason to its verdict; only ReasonOK grants.
func (r Reason) Outcome() Outcome {
	if r == ReasonOK {
		return OutcomeGranted
	}
	return OutcomeDenied
}

// PublicMessage is the generic text end users see. Admins read the
// reason code from the audit log.
func (r Reason) PublicMessage() string {
	if r == ReasonOK {
		return "Access granted."
	}
	return "Access denied."
}

type AccessAttempt struct {
	UserID   string
	Code     string
	At       time.Time // zero means "now"
	SourceIP string
}

type Decision struct {
	Outcome Outcome   `json:"outcome"`
	Reason  Reason    `json:"reason"`
	LogID   int64     `json:"log_id"`
	At      time.Time `json:"at"`
}

func (d Decision) Granted() bool { return d.Outcome == OutcomeGranted }

// AccessLog is one immutable audit entry.
type AccessLog struct {
	ID            int64     `json:"log_id"`
	UserID        *string   `json:"user_id"` // nil when the claimed id matched no user
	ClaimedUserID string    `json:"claimed_user_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Outcome       Outcome   `json:"outcome"`
	Reason        Reason    `json:"reason"`
	SourceIP      string    `json:"source_ip,omitempty"`
}

// LogFilter narrows admin log queries. Zero fields are ignored.
type LogFilter struct {
	From    *time.Time
	To      *time.Time
	UserID  string
	Outcome Outcome
	Reason  Reason
	Limit   int
}
