package service

import (
	"fmt"
	"time"

	"icu-bed-management/internal/models"
)

const dateLayout = "2006-01-02"

// Window is an inclusive time range the dashboard aggregates over
type Window struct {
	Start time.Time
	End   time.Time
}

// WeeklyWindow spans the calendar week containing now, Sunday through Saturday
func WeeklyWindow(now time.Time) Window {
	start := models.Day(now).AddDate(0, 0, -int(now.Weekday()))
	return Window{Start: start, End: start.AddDate(0, 0, 7).Add(-time.Nanosecond)}
}

// MonthlyWindow spans the calendar month containing now
func MonthlyWindow(now time.Time) Window {
	y, m, _ := now.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	return Window{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

// DayRangeWindow spans whole days from..to given as YYYY-MM-DD, both inclusive
func DayRangeWindow(from, to string, loc *time.Location) (Window, error) {
	start, err := time.ParseInLocation(dateLayout, from, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: bad from date %q", ErrInvalidWindow, from)
	}
	end, err := time.ParseInLocation(dateLayout, to, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: bad to date %q", ErrInvalidWindow, to)
	}
	if start.After(end) {
		return Window{}, fmt.Errorf("%w: from %s is after to %s", ErrInvalidWindow, from, to)
	}
	return Window{Start: start, End: end.AddDate(0, 0, 1).Add(-time.Nanosecond)}, nil
}

// ParseWindow resolves the dashboard query parameters. An explicit from/to range wins
// over period; period is "weekly" (default) or "monthly".
func ParseWindow(period, from, to string, now time.Time) (Window, error) {
	if from != "" || to != "" {
		if from == "" || to == "" {
			return Window{}, fmt.Errorf("%w: from and to must be given together", ErrInvalidWindow)
		}
		return DayRangeWindow(from, to, now.Location())
	}

	switch period {
	case "", "weekly", "week":
		return WeeklyWindow(now), nil
	case "monthly", "month":
		return MonthlyWindow(now), nil
	default:
		return Window{}, fmt.Errorf("%w: unknown period %q", ErrInvalidWindow, period)
	}
}
