package recurrence

import (
	"strings"
	"time"

	"github.com/cyp0633/eventcal/event"
)

// Intersects reports whether an occurrence [occStart, occEnd] falls inside,
// surrounds or touches the window [winStart, winEnd]. Both edges are
// inclusive. The roles are not interchangeable: the window is the
// reference, so callers convert occurrence instants before comparing.
func Intersects(occStart, occEnd, winStart, winEnd time.Time) bool {
	return !occEnd.Before(winStart) && !occStart.After(winEnd)
}

// Granularity is the span of a calendar view.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// ParseGranularity reads a view mode, defaulting to Month.
func ParseGranularity(s string) Granularity {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Day, Week, Month, Year:
		return g
	default:
		return Month
	}
}

// ViewWindow returns the window of the day, week, month or year view that
// contains at, in at's location. Weeks begin on weekStart.
func ViewWindow(mode Granularity, at time.Time, weekStart time.Weekday) Window {
	y, m, d := at.Date()
	loc := at.Location()

	var first, last time.Time
	switch mode {
	case Day:
		first = time.Date(y, m, d, 0, 0, 0, 0, loc)
		last = first
	case Week:
		back := (int(at.Weekday()) - int(weekStart) + 7) % 7
		first = time.Date(y, m, d-back, 0, 0, 0, 0, loc)
		last = time.Date(y, m, d-back+6, 0, 0, 0, 0, loc)
	case Year:
		first = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		last = time.Date(y, time.December, 31, 0, 0, 0, 0, loc)
	default:
		first = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		last = time.Date(y, m+1, 0, 0, 0, 0, 0, loc)
	}

	ly, lm, ld := last.Date()
	return Window{
		After:  first,
		Before: time.Date(ly, lm, ld, 23, 59, 59, 0, loc),
	}
}

// Overlaps reports whether ev has an occurrence in the mode view around at.
// For a non-recurring event this is the plain instant comparison; the mode
// only shapes the window.
func (e *Engine) Overlaps(ev event.Event, at time.Time, mode Granularity) bool {
	win := ViewWindow(mode, at.In(e.config.Location), e.config.WeekStart)
	if !ev.IsRecurring() {
		start, end, err := e.Resolve(ev)
		if err != nil {
			return false
		}
		return Intersects(start, end, win.After, win.Before)
	}
	return e.HasOccurrenceInRange(ev, win)
}
