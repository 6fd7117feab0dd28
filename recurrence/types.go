package recurrence

import (
	"time"

	"github.com/cyp0633/eventcal/event"
)

// MaxOccurrences is the hard ceiling on occurrences produced by a single
// expansion, whatever the rule or window.
const MaxOccurrences = 500

// Window bounds an expansion. A zero After or Before leaves that side open.
type Window struct {
	After  time.Time
	Before time.Time
}

// Intersects reports whether [start, end] touches the window, inclusive on
// both edges.
func (w Window) Intersects(start, end time.Time) bool {
	if !w.After.IsZero() && end.Before(w.After) {
		return false
	}
	if !w.Before.IsZero() && start.After(w.Before) {
		return false
	}
	return true
}

// Boundary is one step of a recurrence: its instants, 1-based position in
// the full sequence and stable identifier.
type Boundary struct {
	Start        time.Time
	End          time.Time
	Sequence     int
	RecurrenceID string
}

// Result is the outcome of Engine.Expand.
type Result struct {
	Occurrences []event.Occurrence
	// Truncated is set when more occurrences matched than MaxOccurrences.
	Truncated bool
}
