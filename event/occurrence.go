package event

import (
	"time"
)

// RecurrenceIDLayout formats the start instant inside a recurrence identifier.
const RecurrenceIDLayout = "20060102T150405Z"

// Occurrence is one concrete instance of an Event. Event is a copy of the
// definition with Start and End replaced by this instance's civil
// boundaries; the definition it came from is never modified.
type Occurrence struct {
	Event        Event     `json:"event"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
	Sequence     int       `json:"sequence"`
	RecurrenceID string    `json:"recurrence_id"`
}

// NewOccurrence builds the occurrence of ev spanning [start, end].
func NewOccurrence(ev Event, start, end time.Time, sequence int) Occurrence {
	ev.Start = FormatCivil(start)
	ev.End = FormatCivil(end)
	if ev.Meta != nil {
		meta := make(map[string]string, len(ev.Meta))
		for k, v := range ev.Meta {
			meta[k] = v
		}
		ev.Meta = meta
	}
	return Occurrence{
		Event:        ev,
		StartAt:      start,
		EndAt:        end,
		Sequence:     sequence,
		RecurrenceID: RecurrenceID(ev.ID, start),
	}
}

// RecurrenceID is the stable key of the occurrence of id starting at start.
func RecurrenceID(id string, start time.Time) string {
	return id + ":" + start.UTC().Format(RecurrenceIDLayout)
}

// IsPast reports whether the occurrence ended at or before now.
func (o Occurrence) IsPast(now time.Time) bool {
	return !o.EndAt.After(now)
}

// IsUpcoming reports whether the occurrence starts at or after now.
func (o Occurrence) IsUpcoming(now time.Time) bool {
	return !o.StartAt.Before(now)
}

// IsInProgress reports whether now falls within the occurrence, inclusive.
func (o Occurrence) IsInProgress(now time.Time) bool {
	return !o.StartAt.After(now) && !o.EndAt.Before(now)
}
