package recurrence

import (
	"fmt"
	"time"

	"github.com/taskflow/taskflow-api/internal/domain"
)

// Advance adds n repeat units to t, preserving wall-clock time in t's
// location.
//
// Month and year arithmetic clamps to the last valid day of the target
// month instead of rolling over:
//   - 2024-01-31 + 1 month = 2024-02-29
//   - 2023-01-31 + 1 month = 2023-02-28
//   - 2024-02-29 + 1 year  = 2025-02-28
//
// Daily and weekly arithmetic uses calendar days, so a 09:00 task stays at
// 09:00 across DST transitions.
func Advance(t time.Time, unit domain.RepeatType, n int) (time.Time, error) {
	switch unit {
	case domain.RepeatDaily:
		return t.AddDate(0, 0, n), nil
	case domain.RepeatWeekly:
		return t.AddDate(0, 0, 7*n), nil
	case domain.RepeatMonthly:
		return addMonthsClamped(t, n), nil
	case domain.RepeatYearly:
		return addMonthsClamped(t, 12*n), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidRepeatType, unit)
	}
}

// addMonthsClamped moves t by n months and clamps the day of month.
func addMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()

	// time.Date normalizes month overflow, day 1 always exists
	target := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())

	if last := daysInMonth(target.Year(), target.Month()); day > last {
		day = last
	}

	return time.Date(
		target.Year(), target.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		t.Location(),
	)
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// estimateIndex returns an occurrence index k >= 1 that is guaranteed not to
// overshoot the first occurrence after `after`. The caller walks forward
// from it.
func estimateIndex(origin, after time.Time, unit domain.RepeatType, interval int) int {
	if !after.After(origin) {
		return 1
	}

	var units int
	switch unit {
	case domain.RepeatDaily:
		units = int(after.Sub(origin).Hours() / 24)
	case domain.RepeatWeekly:
		units = int(after.Sub(origin).Hours() / (24 * 7))
	case domain.RepeatMonthly:
		units = (after.Year()-origin.Year())*12 + int(after.Month()) - int(origin.Month())
	case domain.RepeatYearly:
		units = after.Year() - origin.Year()
	}

	k := units/interval - 1
	if k < 1 {
		k = 1
	}
	return k
}
