package feed

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/cyp0633/eventcal/event"
)

// Calendar builds a VCALENDAR holding one VEVENT per occurrence, stamped
// with now.
func Calendar(occs []event.Occurrence, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	for _, o := range occs {
		e := newEntry(o)
		vevent := ical.NewEvent()
		vevent.Props.SetText(ical.PropUID, e.uid)
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
		if e.allDay {
			vevent.Props.SetDate(ical.PropDateTimeStart, e.start)
			vevent.Props.SetDate(ical.PropDateTimeEnd, e.end)
		} else {
			vevent.Props.SetDateTime(ical.PropDateTimeStart, e.start)
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, e.end)
		}
		vevent.Props.SetText(ical.PropSummary, e.summary)
		if e.description != "" {
			vevent.Props.SetText(ical.PropDescription, e.description)
		}
		cal.Children = append(cal.Children, vevent.Component)
	}
	return cal
}

// WriteICS encodes occs as an iCalendar stream.
func WriteICS(w io.Writer, occs []event.Occurrence, now time.Time) error {
	if err := ical.NewEncoder(w).Encode(Calendar(occs, now)); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

var icalFrequencies = map[rrule.Frequency]event.Recurrence{
	rrule.DAILY:   event.Daily,
	rrule.WEEKLY:  event.Weekly,
	rrule.MONTHLY: event.Monthly,
	rrule.YEARLY:  event.Yearly,
}

// ReadICS imports every master VEVENT of every calendar in r. Overridden
// instances (with a RECURRENCE-ID) are skipped.
func ReadICS(r io.Reader) ([]event.Event, error) {
	dec := ical.NewDecoder(r)
	var events []event.Event
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode calendar: %w", err)
		}
		for _, vevent := range cal.Events() {
			if vevent.Props.Get("RECURRENCE-ID") != nil {
				continue
			}
			ev, err := FromComponent(vevent.Component)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

// FromComponent converts a VEVENT into an event definition. Only the
// FREQ, INTERVAL, COUNT and UNTIL parts of an RRULE are kept; rules with
// other frequencies import as non-recurring. The VEVENT UID is kept in
// Meta["ical_uid"].
func FromComponent(comp *ical.Component) (event.Event, error) {
	ev := event.Event{
		Status:     "publish",
		ObjectType: "ical",
	}
	if uid, err := comp.Props.Text(ical.PropUID); err == nil && uid != "" {
		ev.Meta = map[string]string{"ical_uid": uid}
	}
	ev.Title, _ = comp.Props.Text(ical.PropSummary)
	ev.Content, _ = comp.Props.Text(ical.PropDescription)

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return event.Event{}, fmt.Errorf("vevent %q: missing DTSTART", ev.Title)
	}
	start, startTZ, err := civil(startProp)
	if err != nil {
		return event.Event{}, fmt.Errorf("vevent %q: DTSTART: %w", ev.Title, err)
	}
	ev.StartTZ = startTZ
	ev.AllDay = startProp.ValueType() == ical.ValueDate

	end, endTZ := start, startTZ
	switch {
	case comp.Props.Get(ical.PropDateTimeEnd) != nil:
		end, endTZ, err = civil(comp.Props.Get(ical.PropDateTimeEnd))
		if err != nil {
			return event.Event{}, fmt.Errorf("vevent %q: DTEND: %w", ev.Title, err)
		}
	case comp.Props.Get(ical.PropDuration) != nil:
		d, err := comp.Props.Get(ical.PropDuration).Duration()
		if err != nil {
			return event.Event{}, fmt.Errorf("vevent %q: DURATION: %w", ev.Title, err)
		}
		end = start.Add(d)
	case ev.AllDay:
		end = start.AddDate(0, 0, 1)
	}

	if ev.AllDay {
		// DTEND of a date is exclusive; the stored end is the last second
		// of the previous day.
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
		last := end.Add(-time.Second)
		ev.Start = event.FormatCivil(start)
		ev.End = event.FormatCivil(last)
		ev.StartTZ, ev.EndTZ = "", ""
	} else {
		ev.Start = event.FormatCivil(start)
		ev.End = event.FormatCivil(end)
		ev.EndTZ = endTZ
	}

	if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil && prop.Value != "" {
		applyRule(&ev, prop.Value, start.Location())
	}
	return ev, nil
}

// civil reads a date or date-time property as a wall-clock time in its own
// zone, plus the zone spec to store with it.
func civil(prop *ical.Prop) (time.Time, string, error) {
	t, err := prop.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, "", err
	}
	switch {
	case prop.ValueType() == ical.ValueDate:
		return t, "", nil
	case prop.Params.Get(ical.ParamTimezoneID) != "":
		return t, prop.Params.Get(ical.ParamTimezoneID), nil
	case strings.HasSuffix(prop.Value, "Z"):
		return t, "UTC", nil
	default:
		return t, "", nil
	}
}

func applyRule(ev *event.Event, value string, loc *time.Location) {
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return
	}
	freq, ok := icalFrequencies[opt.Freq]
	if !ok {
		return
	}
	ev.Recurrence = freq
	ev.RecurrenceInterval = opt.Interval
	ev.RecurrenceCount = opt.Count
	if !opt.Until.IsZero() {
		until := opt.Until
		if ev.StartTZ != "" {
			until = until.In(loc)
		}
		ev.RecurrenceEnd = event.FormatCivil(until)
		ev.RecurrenceEndTZ = ev.StartTZ
	}
}
