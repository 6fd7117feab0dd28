// Package feed renders occurrence lists as public calendar feeds
// (iCalendar and xCal) and imports event definitions from iCalendar.
package feed

import (
	"time"

	"github.com/google/uuid"

	"github.com/cyp0633/eventcal/event"
	"github.com/cyp0633/eventcal/timezone"
)

// ProductID identifies eventcal in generated calendars.
const ProductID = "-//eventcal//NONSGML v1.0//EN"

// uidNamespace seeds the name-based UUIDs of occurrences.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/cyp0633/eventcal"))

// UID returns a stable identifier for o: the same occurrence of the same
// event always gets the same UID.
func UID(o event.Occurrence) string {
	return uuid.NewSHA1(uidNamespace, []byte(o.RecurrenceID)).String()
}

// entry is an occurrence flattened to what a feed item carries.
type entry struct {
	uid         string
	summary     string
	description string
	allDay      bool
	start, end  time.Time
}

func newEntry(o event.Occurrence) entry {
	e := entry{
		uid:         UID(o),
		summary:     o.Event.Title,
		description: o.Event.Content,
		allDay:      o.Event.IsAllDay(),
		start:       o.StartAt.UTC(),
		end:         o.EndAt.UTC(),
	}
	if !e.allDay {
		return e
	}
	// All-day items are dates; the end date is exclusive.
	start, err := timezone.ZonedInstant(o.Event.Start, time.UTC)
	if err != nil {
		start = o.StartAt
	}
	end, err := timezone.ZonedInstant(o.Event.End, time.UTC)
	if err != nil {
		end = o.EndAt
	}
	e.start = dateOf(start)
	e.end = dateOf(end).AddDate(0, 0, 1)
	return e
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
