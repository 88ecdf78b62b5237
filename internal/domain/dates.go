package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// DefaultWindowDays is how far before the fire start and after the fire end
// imagery is searched.
const DefaultWindowDays = 30

// DateRange is a half-open [Start, End) interval of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s → %s", r.Start.Format(DateLayout), r.End.Format(DateLayout))
}

// ParseDate parses a YYYY-MM-DD date in UTC. field names the input in errors.
func ParseDate(s, field string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: '%s' must be in YYYY-MM-DD format, got %q", ErrInvalidRequest, field, s)
	}
	return t, nil
}

// ExpandDates derives the pre-fire and post-fire search windows from the fire
// start and end dates. The pre-fire window ends at start; the post-fire window
// begins at end.
func ExpandDates(start, end time.Time, days int) (before, after DateRange) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	before = DateRange{Start: start.AddDate(0, 0, -days), End: start}
	after = DateRange{Start: end, End: end.AddDate(0, 0, days)}
	return before, after
}
