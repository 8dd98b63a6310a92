package finance

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used on the wire and by the provider.
const DateLayout = "2006-01-02"

// DefaultWindowDays is the length of the trailing transaction window.
const DefaultWindowDays = 30

var ErrInvalidDateRange = errors.New("invalid date range")

// DateRange is an inclusive calendar-date window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// TrailingWindow returns [today - days, today], where today is now's UTC date.
func TrailingWindow(now time.Time, days int) DateRange {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return DateRange{Start: today.AddDate(0, 0, -days), End: today}
}

// DefaultRange is the trailing 30-day window used when callers supply none.
func DefaultRange(now time.Time) DateRange {
	return TrailingWindow(now, DefaultWindowDays)
}

// ParseDateRange parses optional YYYY-MM-DD bounds. A missing bound takes its
// value from the default window; start after end is rejected.
func ParseDateRange(start, end string, now time.Time) (DateRange, error) {
	r := DefaultRange(now)

	if start != "" {
		t, err := time.ParseInLocation(DateLayout, start, time.UTC)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: start_date %q", ErrInvalidDateRange, start)
		}
		r.Start = t
	}
	if end != "" {
		t, err := time.ParseInLocation(DateLayout, end, time.UTC)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: end_date %q", ErrInvalidDateRange, end)
		}
		r.End = t
	}

	if r.Start.After(r.End) {
		return DateRange{}, fmt.Errorf("%w: start_date after end_date", ErrInvalidDateRange)
	}
	return r, nil
}

func (r DateRange) StartDate() string { return r.Start.Format(DateLayout) }
func (r DateRange) EndDate() string   { return r.End.Format(DateLayout) }
