package httpapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

// ── Access ───────────────────────────────────────────────────────────────────

type accessRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

type accessResponse struct {
	Granted    bool   `json:"granted"`
	Message    string `json:"message"`
	ServerTime string `json:"server_time"`
}

func accessRequestFromProto(p *structpb.Struct) accessRequest {
	f := p.GetFields()
	return accessRequest{
		UserID: f["user_id"].GetStringValue(),
		Code:   f["code"].GetStringValue(),
	}
}

func accessResponseToProto(r accessResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"granted":     r.Granted,
		"message":     r.Message,
		"server_time": r.ServerTime,
	})
}

func accessResponseFrom(d types.Decision) accessResponse {
	return accessResponse{
		Granted:    d.Granted(),
		Message:    d.Reason.PublicMessage(),
		ServerTime: d.At.UTC().Format(time.RFC3339Nano),
	}
}

// ── Windows ──────────────────────────────────────────────────────────────────

type windowRequest struct {
	UserID      string     `json:"user_id"`
	Kind        string     `json:"kind"`
	StartMinute int        `json:"start_minute"`
	EndMinute   int        `json:"end_minute"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Weekdays    []string   `json:"weekdays"`
}

var weekdayNames = map[string]time.Weekday{
	"SUN": time.Sunday, "MON": time.Monday, "TUE": time.Tuesday, "WED": time.Wednesday,
	"THU": time.Thursday, "FRI": time.Friday, "SAT": time.Saturday,
}

// parseWeekday accepts "MON", "Monday", "mon" and so on.
func parseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if len(name) < 3 {
		return 0, false
	}
	d, ok := weekdayNames[name[:3]]
	return d, ok
}

func (req windowRequest) toWindow() (types.AccessWindow, error) {
	kind, err := types.ParseWindowKind(req.Kind)
	if err != nil {
		return types.AccessWindow{}, err
	}
	days := make([]time.Weekday, 0, len(req.Weekdays))
	for _, name := range req.Weekdays {
		d, ok := parseWeekday(name)
		if !ok {
			return types.AccessWindow{}, fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, d)
	}
	w := types.AccessWindow{
		UserID:   strings.TrimSpace(req.UserID),
		Kind:     kind,
		Weekdays: types.MaskOf(days...),
	}
	switch kind {
	case types.WindowRecurring:
		w.StartMinute, w.EndMinute = req.StartMinute, req.EndMinute
	case types.WindowFixed:
		w.StartsAt, w.EndsAt = req.StartsAt, req.EndsAt
	}
	return w, nil
}

// ── Log filters ──────────────────────────────────────────────────────────────

// logFilterFromQuery parses from, to (RFC3339), user_id, outcome, reason and
// limit.
func logFilterFromQuery(q url.Values) (types.LogFilter, error) {
	var f types.LogFilter
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := strings.TrimSpace(q.Get(p.key))
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%s: %w", p.key, err)
		}
		*p.dst = &t
	}

	f.UserID = strings.TrimSpace(q.Get("user_id"))

	if v := strings.TrimSpace(q.Get("outcome")); v != "" {
		o, err := types.ParseOutcome(strings.ToUpper(v))
		if err != nil {
			return f, err
		}
		f.Outcome = o
	}
	if v := strings.TrimSpace(q.Get("reason")); v != "" {
		r, err := types.ParseReason(strings.ToUpper(v))
		if err != nil {
			return f, err
		}
		f.Reason = r
	}
	n, err := limitFromQuery(q)
	if err != nil {
		return f, err
	}
	f.Limit = n
	return f, nil
}

// limitFromQuery reads ?limit=. Absent means 0.
func limitFromQuery(q url.Values) (int, error) {
	v := strings.TrimSpace(q.Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit: must be a non-negative integer")
	}
	return n, nil
}
