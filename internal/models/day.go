package models

import (
	"fmt"
	"time"
)

// DayLayout is the layout of a day key
const DayLayout = "2006-01-02"

// DayKey returns the calendar day of t in loc. A nil loc means UTC.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// PreviousDay returns the day key immediately before day
func PreviousDay(day string) (string, error) {
	d, err := time.Parse(DayLayout, day)
	if err != nil {
		return "", fmt.Errorf("invalid day key %q: %w", day, err)
	}
	return d.AddDate(0, 0, -1).Format(DayLayout), nil
}

// NextStreak returns the streak after a first completion on day, given the
// previous streak and the day of the previous completion.
func NextStreak(current int64, lastDay *string, day string) int64 {
	if lastDay == nil || *lastDay == "" {
		return 1
	}
	if *lastDay == day {
		if current < 1 {
			return 1
		}
		return current
	}
	prev, err := PreviousDay(day)
	if err == nil && *lastDay == prev {
		return current + 1
	}
	return 1
}
