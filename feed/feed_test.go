package feed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/eventcal/event"
	"github.com/cyp0633/eventcal/recurrence"
)

var stamp = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testOccurrences() []event.Occurrence {
	standup := event.Event{ID: "1", Title: "Standup", Content: "Daily sync", Start: "2024-06-16 09:00:00", End: "2024-06-16 09:15:00", Recurrence: event.Daily}
	holiday := event.Event{ID: "2", Title: "Holiday", Start: "2024-12-25 00:00:00", End: "2024-12-25 23:59:59", AllDay: true}

	return []event.Occurrence{
		event.NewOccurrence(standup,
			time.Date(2024, 6, 16, 9, 0, 0, 0, time.UTC),
			time.Date(2024, 6, 16, 9, 15, 0, 0, time.UTC), 16),
		event.NewOccurrence(holiday,
			time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 12, 25, 23, 59, 59, 0, time.UTC), 1),
	}
}

func TestUID(t *testing.T) {
	occs := testOccurrences()

	assert.Equal(t, UID(occs[0]), UID(occs[0]))
	assert.NotEqual(t, UID(occs[0]), UID(occs[1]))

	next := event.NewOccurrence(occs[0].Event,
		time.Date(2024, 6, 17, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 17, 9, 15, 0, 0, time.UTC), 17)
	assert.NotEqual(t, UID(occs[0]), UID(next))
	assert.Len(t, UID(next), 36)
}

func TestWriteICS(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteICS(&buf, testOccurrences(), stamp))

	out := buf.String()
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "PRODID:"+ProductID)
	assert.Contains(t, out, "SUMMARY:Standup")
	assert.Contains(t, out, "DESCRIPTION:Daily sync")
	assert.Contains(t, out, "DTSTART:20240616T090000Z")
	assert.Contains(t, out, "DTEND:20240616T091500Z")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20241225")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20241226")
	assert.Contains(t, out, "DTSTAMP:20240615T120000Z")

	cal, err := ical.NewDecoder(strings.NewReader(out)).Decode()
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)
	uid, err := events[0].Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, UID(testOccurrences()[0]), uid)
}

func TestWriteXCal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXCal(&buf, testOccurrences(), stamp))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))

	root := doc.SelectElement("icalendar")
	require.NotNil(t, root)
	assert.Equal(t, XCalNamespace, root.SelectAttrValue("xmlns", ""))

	prodid := root.FindElement("./vcalendar/properties/prodid/text")
	require.NotNil(t, prodid)
	assert.Equal(t, ProductID, prodid.Text())

	vevents := root.FindElements("./vcalendar/components/vevent")
	require.Len(t, vevents, 2)

	start := vevents[0].FindElement("./properties/dtstart/date-time")
	require.NotNil(t, start)
	assert.Equal(t, "2024-06-16T09:00:00Z", start.Text())

	end := vevents[1].FindElement("./properties/dtend/date")
	require.NotNil(t, end)
	assert.Equal(t, "2024-12-26", end.Text())

	summary := vevents[1].FindElement("./properties/summary/text")
	require.NotNil(t, summary)
	assert.Equal(t, "Holiday", summary.Text())
	assert.Nil(t, vevents[1].FindElement("./properties/description"))
}

const importICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:planning@test
DTSTAMP:20240101T000000Z
DTSTART;TZID=America/Chicago:20240305T090000
DTEND;TZID=America/Chicago:20240305T100000
RRULE:FREQ=WEEKLY;INTERVAL=2;COUNT=4
SUMMARY:Planning
END:VEVENT
BEGIN:VEVENT
UID:review@test
DTSTAMP:20240101T000000Z
DTSTART:20240131T090000
DURATION:PT1H30M
RRULE:FREQ=MONTHLY;UNTIL=20240531T090000
SUMMARY:Review
DESCRIPTION:Month-end review
END:VEVENT
BEGIN:VEVENT
UID:review@test
DTSTAMP:20240101T000000Z
RECURRENCE-ID:20240229T090000
DTSTART:20240229T110000
DTEND:20240229T120000
SUMMARY:Review (moved)
END:VEVENT
BEGIN:VEVENT
UID:xmas@test
DTSTAMP:20240101T000000Z
DTSTART;VALUE=DATE:20241225
DTEND;VALUE=DATE:20241226
RRULE:FREQ=YEARLY
SUMMARY:Christmas
END:VEVENT
BEGIN:VEVENT
UID:ping@test
DTSTAMP:20240101T000000Z
DTSTART:20240601T080000Z
DTEND:20240601T080500Z
RRULE:FREQ=HOURLY;COUNT=3
SUMMARY:Ping
END:VEVENT
END:VCALENDAR
`

func TestReadICS(t *testing.T) {
	events, err := ReadICS(strings.NewReader(strings.ReplaceAll(importICS, "\n", "\r\n")))
	require.NoError(t, err)
	require.Len(t, events, 4)

	planning := events[0]
	assert.Equal(t, "Planning", planning.Title)
	assert.Equal(t, "2024-03-05 09:00:00", planning.Start)
	assert.Equal(t, "2024-03-05 10:00:00", planning.End)
	assert.Equal(t, "America/Chicago", planning.StartTZ)
	assert.Equal(t, "America/Chicago", planning.EndTZ)
	assert.Equal(t, event.Weekly, planning.Recurrence)
	assert.Equal(t, 2, planning.RecurrenceInterval)
	assert.Equal(t, 4, planning.RecurrenceCount)
	assert.Equal(t, "planning@test", planning.Meta["ical_uid"])

	review := events[1]
	assert.Equal(t, "2024-01-31 09:00:00", review.Start)
	assert.Equal(t, "2024-01-31 10:30:00", review.End)
	assert.True(t, review.IsFloating())
	assert.Equal(t, event.Monthly, review.Recurrence)
	assert.Equal(t, "2024-05-31 09:00:00", review.RecurrenceEnd)
	assert.Equal(t, "Month-end review", review.Content)

	xmas := events[2]
	assert.True(t, xmas.AllDay)
	assert.True(t, xmas.IsAllDay())
	assert.Equal(t, "2024-12-25 00:00:00", xmas.Start)
	assert.Equal(t, "2024-12-25 23:59:59", xmas.End)
	assert.Equal(t, event.Yearly, xmas.Recurrence)

	ping := events[3]
	assert.Equal(t, "UTC", ping.StartTZ)
	assert.False(t, ping.IsRecurring())
}

func TestReadICS_ExpandImported(t *testing.T) {
	events, err := ReadICS(strings.NewReader(strings.ReplaceAll(importICS, "\n", "\r\n")))
	require.NoError(t, err)

	res := recurrence.NewEngine().Expand(events[1], recurrence.Window{})
	var starts []string
	for _, o := range res.Occurrences {
		starts = append(starts, o.Event.Start)
	}
	assert.Equal(t, []string{
		"2024-01-31 09:00:00",
		"2024-02-29 09:00:00",
		"2024-03-31 09:00:00",
		"2024-04-30 09:00:00",
		"2024-05-31 09:00:00",
	}, starts)

	planning := recurrence.NewEngine().Expand(events[0], recurrence.Window{})
	require.Len(t, planning.Occurrences, 4)
	assert.Equal(t, "2024-04-16 09:00:00", planning.Occurrences[3].Event.Start)
}

func TestReadICS_MissingStart(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\nBEGIN:VEVENT\r\nUID:x\r\nSUMMARY:No start\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	_, err := ReadICS(strings.NewReader(ics))
	assert.Error(t, err)
}
