// Package settlement computes the weekly windows rewards are paid against.
// Weeks run Saturday 00:00 through the following Friday 23:59 UTC.
package settlement

import (
	"errors"
	"time"
)

var ErrInvalidDateRange = errors.New("invalid_date_range")

const weekSpan = 6*24*time.Hour + 23*time.Hour + 59*time.Minute

// Window is an inclusive [Start, End] interval.
type Window struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// LastSaturday returns midnight UTC of the most recent Saturday on or before t.
func LastSaturday(t time.Time) time.Time {
	day := truncateDay(t)
	daysSince := (int(day.Weekday()) + 1) % 7
	return day.AddDate(0, 0, -daysSince)
}

// WeekContaining returns the settlement week that t falls in.
func WeekContaining(t time.Time) Window {
	start := LastSaturday(t)
	return Window{Start: start, End: start.Add(weekSpan)}
}

// PreviousWeek returns the settlement week immediately before the one
// containing t.
func PreviousWeek(t time.Time) Window {
	return WeekContaining(LastSaturday(t).AddDate(0, 0, -1))
}

// DayRange spans whole calendar days: start at 00:00 through the last
// microsecond of end.
func DayRange(start, end time.Time) (Window, error) {
	from := truncateDay(start)
	to := truncateDay(end)
	if to.Before(from) {
		return Window{}, ErrInvalidDateRange
	}
	return Window{Start: from, End: to.AddDate(0, 0, 1).Add(-time.Microsecond)}, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
