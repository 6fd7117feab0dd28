package event

import (
	"strconv"
	"strings"
	"time"
)

// DateTimeLayout is the storage form of every civil datetime in an Event.
const DateTimeLayout = "2006-01-02 15:04:05"

// ZeroDateTime marks an unset datetime column.
const ZeroDateTime = "0000-00-00 00:00:00"

const (
	midnight       = "00:00:00"
	almostMidnight = "23:59:59"
)

// Recurrence is the repeat frequency of an event.
type Recurrence string

const (
	None    Recurrence = ""
	Daily   Recurrence = "daily"
	Weekly  Recurrence = "weekly"
	Monthly Recurrence = "monthly"
	Yearly  Recurrence = "yearly"
)

// ParseRecurrence maps a stored frequency onto a known Recurrence.
// Anything unrecognized is treated as non-recurring.
func ParseRecurrence(s string) Recurrence {
	switch Recurrence(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily
	case Weekly:
		return Weekly
	case Monthly:
		return Monthly
	case Yearly:
		return Yearly
	default:
		return None
	}
}

// Event is one stored calendar entry. Start and End are naive civil
// datetimes in DateTimeLayout; an empty zone means the value is floating.
type Event struct {
	ID            string `json:"id"`
	ObjectID      string `json:"object_id"`
	ObjectType    string `json:"object_type"`
	ObjectSubtype string `json:"object_subtype"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Status        string `json:"status"`

	Start   string `json:"start"`
	End     string `json:"end"`
	StartTZ string `json:"start_tz"`
	EndTZ   string `json:"end_tz"`
	AllDay  bool   `json:"all_day"`

	Recurrence         Recurrence `json:"recurrence"`
	RecurrenceInterval int        `json:"recurrence_interval"`
	RecurrenceCount    int        `json:"recurrence_count"`
	RecurrenceEnd      string     `json:"recurrence_end"`
	RecurrenceEndTZ    string     `json:"recurrence_end_tz"`

	// Meta holds extension fields that have no typed column.
	Meta map[string]string `json:"meta"`
}

// Default returns the sentinel handed out when a lookup finds nothing.
// Its boundaries span a whole (zero) day, so IsAllDay reports true.
func Default() Event {
	return Event{
		Start:         ZeroDateTime,
		End:           "0000-00-00 " + almostMidnight,
		RecurrenceEnd: ZeroDateTime,
	}
}

// IsEmpty reports whether e is the not-found sentinel or otherwise unsaved.
func (e Event) IsEmpty() bool {
	return e.ID == ""
}

// IsAllDay reports whether the event covers whole days, either by flag or
// because it runs from 00:00:00 to 23:59:59.
func (e Event) IsAllDay() bool {
	if e.AllDay {
		return true
	}
	return clockOf(e.Start) == midnight && clockOf(e.End) == almostMidnight
}

// IsFloating reports whether neither boundary carries a zone.
func (e Event) IsFloating() bool {
	return e.StartTZ == "" && e.EndTZ == ""
}

// IsRecurring reports whether the event has a known repeat frequency.
func (e Event) IsRecurring() bool {
	return ParseRecurrence(string(e.Recurrence)) != None
}

// Interval is the step between occurrences; unset or non-positive means 1.
func (e Event) Interval() int {
	if e.RecurrenceInterval < 1 {
		return 1
	}
	return e.RecurrenceInterval
}

// HasRecurrenceEnd reports whether an end-by date is set.
func (e Event) HasRecurrenceEnd() bool {
	return !isZeroDateTime(e.RecurrenceEnd)
}

// Get looks a field up by its storage name, falling back to Meta for
// anything without a typed column.
func (e Event) Get(key string) (string, bool) {
	switch key {
	case "id":
		return e.ID, true
	case "object_id":
		return e.ObjectID, true
	case "object_type":
		return e.ObjectType, true
	case "object_subtype":
		return e.ObjectSubtype, true
	case "title":
		return e.Title, true
	case "content":
		return e.Content, true
	case "status":
		return e.Status, true
	case "start":
		return e.Start, true
	case "end":
		return e.End, true
	case "start_tz":
		return e.StartTZ, true
	case "end_tz":
		return e.EndTZ, true
	case "all_day":
		return strconv.FormatBool(e.AllDay), true
	case "recurrence":
		return string(e.Recurrence), true
	case "recurrence_interval":
		return strconv.Itoa(e.RecurrenceInterval), true
	case "recurrence_count":
		return strconv.Itoa(e.RecurrenceCount), true
	case "recurrence_end":
		return e.RecurrenceEnd, true
	case "recurrence_end_tz":
		return e.RecurrenceEndTZ, true
	}
	v, ok := e.Meta[key]
	return v, ok
}

// FormatCivil renders t's wall clock in DateTimeLayout.
func FormatCivil(t time.Time) string {
	return t.Format(DateTimeLayout)
}

func clockOf(value string) string {
	_, clock, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok {
		return ""
	}
	return clock
}

func isZeroDateTime(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || strings.HasPrefix(value, "0000-00-00")
}
