package recurrence

import "time"

// Next returns the first instant strictly after ref at which the rule fires.
//
// Anchors that do not exist in a month (day 31 in April, Feb 29 in a common
// year) overflow into the following month the way time.Date normalizes them.
// Rules with an unknown period advance daily.
func Next(r Rule, ref time.Time) time.Time {
	loc := ref.Location()
	y, m, d := ref.Date()
	h, mi := clamp(r.At.Hour, 0, 23), clamp(r.At.Minute, 0, 59)

	switch r.Period {
	case Weekly:
		offset := (clamp(r.Weekday, 0, 6) - int(ref.Weekday()) + 7) % 7
		if offset == 0 {
			offset = 7
		}
		return time.Date(y, m, d+offset, h, mi, 0, 0, loc)

	case Monthly:
		day := clamp(r.DayOfMonth, 1, 31)
		next := time.Date(y, m, day, h, mi, 0, 0, loc)
		if !next.After(ref) {
			next = time.Date(y, m+1, day, h, mi, 0, 0, loc)
		}
		return next

	case Yearly:
		month := time.Month(clamp(r.Month, 1, 12))
		day := clamp(r.DayOfMonth, 1, 31)
		next := time.Date(y, month, day, h, mi, 0, 0, loc)
		if !next.After(ref) {
			next = time.Date(y+1, month, day, h, mi, 0, 0, loc)
		}
		return next

	default:
		return time.Date(y, m, d+1, h, mi, 0, 0, loc)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
