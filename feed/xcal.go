package feed

import (
	"fmt"
	"io"
	"time"

	"github.com/beevik/etree"

	"github.com/cyp0633/eventcal/event"
)

// XCalNamespace is the RFC 6321 namespace.
const XCalNamespace = "urn:ietf:params:xml:ns:icalendar-2.0"

const (
	xcalDateTime = "2006-01-02T15:04:05Z"
	xcalDate     = "2006-01-02"
)

// XCal builds the xCal document for occs, stamped with now.
func XCal(occs []event.Occurrence, now time.Time) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	root := doc.CreateElement("icalendar")
	root.CreateAttr("xmlns", XCalNamespace)

	vcalendar := root.CreateElement("vcalendar")
	props := vcalendar.CreateElement("properties")
	textProp(props, "prodid", ProductID)
	textProp(props, "version", "2.0")

	components := vcalendar.CreateElement("components")
	for _, o := range occs {
		e := newEntry(o)
		vevent := components.CreateElement("vevent").CreateElement("properties")
		textProp(vevent, "uid", e.uid)
		vevent.CreateElement("dtstamp").CreateElement("date-time").SetText(now.UTC().Format(xcalDateTime))
		if e.allDay {
			vevent.CreateElement("dtstart").CreateElement("date").SetText(e.start.Format(xcalDate))
			vevent.CreateElement("dtend").CreateElement("date").SetText(e.end.Format(xcalDate))
		} else {
			vevent.CreateElement("dtstart").CreateElement("date-time").SetText(e.start.Format(xcalDateTime))
			vevent.CreateElement("dtend").CreateElement("date-time").SetText(e.end.Format(xcalDateTime))
		}
		textProp(vevent, "summary", e.summary)
		if e.description != "" {
			textProp(vevent, "description", e.description)
		}
	}

	doc.Indent(2)
	return doc
}

func textProp(parent *etree.Element, name, value string) {
	parent.CreateElement(name).CreateElement("text").SetText(value)
}

// WriteXCal writes occs as an xCal document.
func WriteXCal(w io.Writer, occs []event.Occurrence, now time.Time) error {
	if _, err := XCal(occs, now).WriteTo(w); err != nil {
		return fmt.Errorf("write xcal: %w", err)
	}
	return nil
}
