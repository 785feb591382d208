package recurrence

import (
	"fmt"
	"strconv"
	"strings"
)

type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

func (p Period) Known() bool {
	switch p {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24h clock; single-digit hours allowed).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	raw := strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	if len(mm) != 2 || hh == "" || len(hh) > 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	t := TimeOfDay{Hour: h, Minute: m}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Rule describes a recurrence.
//
// Weekday (0=Sunday..6) is used by weekly rules, DayOfMonth (1..31) by monthly
// and yearly rules, Month (1..12) by yearly rules. Unused anchors are ignored.
type Rule struct {
	Period     Period    `json:"period"`
	Weekday    int       `json:"weekday,omitempty"`
	DayOfMonth int       `json:"day_of_month,omitempty"`
	Month      int       `json:"month,omitempty"`
	At         TimeOfDay `json:"at"`
}

func (r Rule) String() string {
	switch r.Period {
	case Weekly:
		return fmt.Sprintf("weekly wd=%d at %s", r.Weekday, r.At)
	case Monthly:
		return fmt.Sprintf("monthly day=%d at %s", r.DayOfMonth, r.At)
	case Yearly:
		return fmt.Sprintf("yearly %02d-%02d at %s", r.Month, r.DayOfMonth, r.At)
	default:
		return fmt.Sprintf("%s at %s", r.Period, r.At)
	}
}

// FieldError reports an invalid rule field. Field uses the JSON names.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// Validate checks the anchors the period needs.
func Validate(r Rule) error {
	if !r.Period.Known() {
		return &FieldError{Field: "period", Reason: fmt.Sprintf("unknown period %q", r.Period)}
	}
	if !r.At.Valid() {
		return &FieldError{Field: "at", Reason: fmt.Sprintf("time of day %02d:%02d out of range", r.At.Hour, r.At.Minute)}
	}
	switch r.Period {
	case Weekly:
		if r.Weekday < 0 || r.Weekday > 6 {
			return &FieldError{Field: "weekday", Reason: "must be 0..6 (0 = Sunday)"}
		}
	case Monthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return &FieldError{Field: "day_of_month", Reason: "must be 1..31"}
		}
	case Yearly:
		if r.Month < 1 || r.Month > 12 {
			return &FieldError{Field: "month", Reason: "must be 1..12"}
		}
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return &FieldError{Field: "day_of_month", Reason: "must be 1..31"}
		}
	}
	return nil
}
