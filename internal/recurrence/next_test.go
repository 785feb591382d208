package recurrence

import (
	"errors"
	"testing"
	"time"
)

func at(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.ParseInLocation("2006-01-02T15:04", s, time.UTC)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestNext(t *testing.T) {
	t.Parallel()
	ten := TimeOfDay{Hour: 10}
	tests := []struct {
		name string
		rule Rule
		ref  string
		want string
	}{
		{name: "daily", rule: Rule{Period: Daily, At: ten}, ref: "2024-05-10T08:00", want: "2024-05-11T10:00"},
		{name: "daily late ref", rule: Rule{Period: Daily, At: TimeOfDay{Hour: 0, Minute: 5}}, ref: "2024-12-31T23:59", want: "2025-01-01T00:05"},
		// 2024-05-06 is a Monday; weekday 3 is Wednesday.
		{name: "weekly ahead", rule: Rule{Period: Weekly, Weekday: 3, At: ten}, ref: "2024-05-06T12:00", want: "2024-05-08T10:00"},
		{name: "weekly same weekday", rule: Rule{Period: Weekly, Weekday: 1, At: ten}, ref: "2024-05-06T09:00", want: "2024-05-13T10:00"},
		{name: "weekly behind", rule: Rule{Period: Weekly, Weekday: 0, At: ten}, ref: "2024-05-10T12:00", want: "2024-05-12T10:00"},
		{name: "monthly later this month", rule: Rule{Period: Monthly, DayOfMonth: 15, At: ten}, ref: "2024-05-10T12:00", want: "2024-05-15T10:00"},
		{name: "monthly passed", rule: Rule{Period: Monthly, DayOfMonth: 5, At: ten}, ref: "2024-05-10T12:00", want: "2024-06-05T10:00"},
		{name: "monthly same instant", rule: Rule{Period: Monthly, DayOfMonth: 10, At: ten}, ref: "2024-05-10T10:00", want: "2024-06-10T10:00"},
		{name: "monthly overflow", rule: Rule{Period: Monthly, DayOfMonth: 31, At: ten}, ref: "2024-01-31T10:00", want: "2024-03-02T10:00"},
		{name: "monthly overflow april", rule: Rule{Period: Monthly, DayOfMonth: 31, At: ten}, ref: "2024-04-05T10:00", want: "2024-05-01T10:00"},
		{name: "monthly december", rule: Rule{Period: Monthly, DayOfMonth: 1, At: ten}, ref: "2024-12-20T10:00", want: "2025-01-01T10:00"},
		{name: "yearly later", rule: Rule{Period: Yearly, Month: 7, DayOfMonth: 4, At: ten}, ref: "2024-05-10T12:00", want: "2024-07-04T10:00"},
		{name: "yearly passed", rule: Rule{Period: Yearly, Month: 3, DayOfMonth: 1, At: ten}, ref: "2024-05-10T12:00", want: "2025-03-01T10:00"},
		{name: "yearly leap day in leap year", rule: Rule{Period: Yearly, Month: 2, DayOfMonth: 29, At: ten}, ref: "2024-01-10T12:00", want: "2024-02-29T10:00"},
		{name: "yearly leap day in common year", rule: Rule{Period: Yearly, Month: 2, DayOfMonth: 29, At: ten}, ref: "2024-02-29T10:00", want: "2025-03-01T10:00"},
		{name: "unknown period advances daily", rule: Rule{Period: "fortnightly", At: ten}, ref: "2024-05-10T12:00", want: "2024-05-11T10:00"},
		{name: "empty period advances daily", rule: Rule{At: ten}, ref: "2024-05-10T08:00", want: "2024-05-11T10:00"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Next(tt.rule, at(t, tt.ref))
			if want := at(t, tt.want); !got.Equal(want) {
				t.Fatalf("Next(%s, %s) = %s, want %s", tt.rule, tt.ref, got.Format(time.RFC3339), want.Format(time.RFC3339))
			}
		})
	}
}

func TestNextWeeklySequence(t *testing.T) {
	t.Parallel()
	rule := Rule{Period: Weekly, Weekday: 5, At: TimeOfDay{Hour: 9, Minute: 30}}
	ref := at(t, "2024-05-06T00:00")
	want := []string{"2024-05-10T09:30", "2024-05-17T09:30", "2024-05-24T09:30", "2024-05-31T09:30"}
	for i, w := range want {
		ref = Next(rule, ref)
		if !ref.Equal(at(t, w)) {
			t.Fatalf("step %d = %s, want %s", i, ref.Format(time.RFC3339), w)
		}
	}
}

func TestNextAlwaysAfterRef(t *testing.T) {
	t.Parallel()
	rules := []Rule{
		{Period: Daily, At: TimeOfDay{Hour: 23, Minute: 59}},
		{Period: Weekly, Weekday: 6},
		{Period: Monthly, DayOfMonth: 31, At: TimeOfDay{Hour: 12}},
		{Period: Monthly, DayOfMonth: 1},
		{Period: Yearly, Month: 2, DayOfMonth: 29},
		{Period: Yearly, Month: 12, DayOfMonth: 31, At: TimeOfDay{Hour: 23, Minute: 59}},
		// Out-of-range anchors never slip behind ref.
		{Period: Monthly, DayOfMonth: 0},
		{Period: Weekly, Weekday: 9},
	}
	start := at(t, "2023-01-01T00:00")
	for _, r := range rules {
		ref := start
		for i := 0; i < 800; i++ {
			next := Next(r, ref)
			if !next.After(ref) {
				t.Fatalf("Next(%s, %s) = %s, not after ref", r, ref, next)
			}
			// Probe refs between occurrences as well as on them.
			if i%2 == 0 {
				ref = next
			} else {
				ref = ref.Add(17*time.Hour + 13*time.Minute)
			}
		}
	}
}

func TestNextDeterministicAndLocationAware(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+3", 3*60*60)
	rule := Rule{Period: Daily, At: TimeOfDay{Hour: 1}}
	ref := time.Date(2024, 5, 10, 23, 0, 0, 0, loc)

	a, b := Next(rule, ref), Next(rule, ref)
	if !a.Equal(b) {
		t.Fatalf("Next not deterministic: %s vs %s", a, b)
	}
	want := time.Date(2024, 5, 11, 1, 0, 0, 0, loc)
	if !a.Equal(want) || a.Location() != loc {
		t.Fatalf("Next = %s, want %s in %s", a, want, loc)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	good := []Rule{
		{Period: Daily, At: TimeOfDay{Hour: 23, Minute: 59}},
		{Period: Weekly, Weekday: 0},
		{Period: Monthly, DayOfMonth: 31},
		{Period: Yearly, Month: 2, DayOfMonth: 29},
	}
	for _, r := range good {
		if err := Validate(r); err != nil {
			t.Fatalf("Validate(%s) = %v", r, err)
		}
	}

	bad := []struct {
		rule  Rule
		field string
	}{
		{Rule{Period: "hourly"}, "period"},
		{Rule{Period: Daily, At: TimeOfDay{Hour: 24}}, "at"},
		{Rule{Period: Weekly, Weekday: 7}, "weekday"},
		{Rule{Period: Monthly, DayOfMonth: 0}, "day_of_month"},
		{Rule{Period: Yearly, Month: 13, DayOfMonth: 1}, "month"},
		{Rule{Period: Yearly, Month: 1, DayOfMonth: 32}, "day_of_month"},
	}
	for _, tc := range bad {
		err := Validate(tc.rule)
		var fe *FieldError
		if !errors.As(err, &fe) {
			t.Fatalf("Validate(%s) = %v, want *FieldError", tc.rule, err)
		}
		if fe.Field != tc.field {
			t.Fatalf("Validate(%s) field = %q, want %q", tc.rule, fe.Field, tc.field)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	got, err := ParseTimeOfDay("9:05")
	if err != nil {
		t.Fatalf("ParseTimeOfDay error: %v", err)
	}
	if got != (TimeOfDay{Hour: 9, Minute: 5}) || got.String() != "09:05" {
		t.Fatalf("ParseTimeOfDay = %+v (%s)", got, got)
	}

	for _, raw := range []string{"", "12", "24:00", "12:60", "1:5", "aa:bb", "123:00"} {
		if _, err := ParseTimeOfDay(raw); err == nil {
			t.Fatalf("ParseTimeOfDay(%q) expected error", raw)
		}
	}
}
