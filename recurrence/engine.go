package recurrence

import (
	"fmt"
	"iter"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/cyp0633/eventcal/event"
	"github.com/cyp0633/eventcal/timezone"
)

var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

var rruleFrequencies = map[event.Recurrence]rrule.Frequency{
	event.Daily:   rrule.DAILY,
	event.Weekly:  rrule.WEEKLY,
	event.Monthly: rrule.MONTHLY,
	event.Yearly:  rrule.YEARLY,
}

// Engine expands stored events into concrete occurrences.
type Engine struct {
	config EngineConfig
}

// NewEngine creates a new recurrence engine instance
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig)
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// anchor is an event's first occurrence resolved to instants, plus what is
// needed to derive every later one.
type anchor struct {
	start, end time.Time
	endLoc     *time.Location
	// civil keeps the wall-clock span per step; otherwise the absolute
	// duration is kept.
	civil     bool
	civilSpan time.Duration
	duration  time.Duration
	until     time.Time
}

func (a anchor) endFor(start time.Time) time.Time {
	if !a.civil {
		return start.Add(a.duration)
	}
	wall := wallClock(start).Add(a.civilSpan)
	return time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), 0, a.endLoc)
}

// wallClock moves t's clock reading onto UTC so spans can be measured
// without zone transitions.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// zoneSpec picks the location a boundary is read in. All-day and floating
// boundaries are wall clock in the engine's display zone.
func (e *Engine) zoneSpec(ev event.Event, spec string) (string, *time.Location) {
	if ev.IsAllDay() || spec == timezone.Floating {
		return timezone.Floating, e.config.Location
	}
	return spec, timezone.ZoneOrUTC(spec)
}

// Resolve returns the instants of ev's own (first) occurrence.
func (e *Engine) Resolve(ev event.Event) (time.Time, time.Time, error) {
	a, err := e.resolve(ev)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return a.start, a.end, nil
}

func (e *Engine) resolve(ev event.Event) (anchor, error) {
	startSpec, startLoc := e.zoneSpec(ev, ev.StartTZ)
	endTZ := ev.EndTZ
	if endTZ == timezone.Floating {
		endTZ = ev.StartTZ
	}
	endSpec, endLoc := e.zoneSpec(ev, endTZ)

	start, err := timezone.ZonedInstant(ev.Start, startLoc)
	if err != nil {
		return anchor{}, fmt.Errorf("event %s: start: %w", ev.ID, err)
	}
	end, err := timezone.ZonedInstant(ev.End, endLoc)
	if err != nil {
		return anchor{}, fmt.Errorf("event %s: end: %w", ev.ID, err)
	}

	a := anchor{
		start:     start,
		end:       end,
		endLoc:    endLoc,
		civil:     startSpec == endSpec,
		civilSpan: wallClock(end).Sub(wallClock(start)),
		duration:  end.Sub(start),
	}

	if ev.HasRecurrenceEnd() {
		untilTZ := ev.RecurrenceEndTZ
		if untilTZ == timezone.Floating {
			untilTZ = ev.StartTZ
		}
		_, untilLoc := e.zoneSpec(ev, untilTZ)
		// An unreadable end-by date leaves the event recurring forever.
		if until, err := timezone.ZonedInstant(ev.RecurrenceEnd, untilLoc); err == nil {
			a.until = until
		}
	}
	return a, nil
}

// rule builds the rrule for a recurring event starting at dtstart, a step
// of the full sequence; count is what remains of the event's count. Month
// and year steps clamp to the last valid day of the anchor's day, so the
// 31st lands on the 29th of a leap February.
func (e *Engine) rule(ev event.Event, a anchor, dtstart time.Time, count int) (*rrule.RRule, error) {
	freq := event.ParseRecurrence(string(ev.Recurrence))
	opt := rrule.ROption{
		Freq:     rruleFrequencies[freq],
		Interval: ev.Interval(),
		Dtstart:  dtstart,
		Wkst:     rruleWeekdays[e.config.WeekStart],
	}

	// The end-by date wins over the count when both are set.
	switch {
	case !a.until.IsZero():
		opt.Until = a.until
	case count > 0:
		opt.Count = count
	}

	if day := a.start.Day(); day > 28 && (freq == event.Monthly || freq == event.Yearly) {
		opt.Bymonthday = []int{day, -1}
		opt.Bysetpos = []int{1}
		if freq == event.Yearly {
			opt.Bymonth = []int{int(a.start.Month())}
		}
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("event %s: build rule: %w", ev.ID, err)
	}
	return r, nil
}

// stepper locates steps of a recurring event by index, so expansion can
// begin next to a window instead of at the event's own start.
type stepper struct {
	freq     event.Recurrence
	interval int
	start    time.Time
	// count is the event's count; zero when unbounded or when the end-by
	// date takes precedence.
	count int
	until time.Time
}

func newStepper(ev event.Event, a anchor) stepper {
	s := stepper{
		freq:     event.ParseRecurrence(string(ev.Recurrence)),
		interval: ev.Interval(),
		start:    a.start,
		until:    a.until,
	}
	if a.until.IsZero() && ev.RecurrenceCount > 0 {
		s.count = ev.RecurrenceCount
	}
	return s
}

// at returns the start of step n, counted from zero.
func (s stepper) at(n int) time.Time {
	switch s.freq {
	case event.Weekly:
		return s.start.AddDate(0, 0, 7*n*s.interval)
	case event.Monthly:
		return addMonthsClamped(s.start, n*s.interval)
	case event.Yearly:
		return addMonthsClamped(s.start, 12*n*s.interval)
	default:
		return s.start.AddDate(0, 0, n*s.interval)
	}
}

// exists reports whether step n is part of the sequence.
func (s stepper) exists(n int) bool {
	if s.count > 0 && n >= s.count {
		return false
	}
	return s.until.IsZero() || !s.at(n).After(s.until)
}

// indexAtOrBefore returns the last step starting at or before limit, or -1
// when even the first step starts later.
func (s stepper) indexAtOrBefore(limit time.Time) int {
	l := limit.In(s.start.Location())
	var k int
	switch s.freq {
	case event.Monthly, event.Yearly:
		months := (l.Year()-s.start.Year())*12 + int(l.Month()) - int(s.start.Month())
		per := s.interval
		if s.freq == event.Yearly {
			per *= 12
		}
		k = months / per
	default:
		days := int(dayNumber(l) - dayNumber(s.start))
		per := s.interval
		if s.freq == event.Weekly {
			per *= 7
		}
		k = days / per
	}
	if k < 0 {
		k = 0
	}
	for k > 0 && s.at(k).After(limit) {
		k--
	}
	if s.at(k).After(limit) {
		return -1
	}
	for !s.at(k + 1).After(limit) {
		k++
	}
	return k
}

func addMonthsClamped(t time.Time, months int) time.Time {
	total := int(t.Month()) - 1 + months
	year := t.Year() + total/12
	month := time.Month(total%12 + 1)
	day := t.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// dayNumber counts civil days since the Unix epoch without going through
// time.Duration, which cannot span more than about 292 years.
func dayNumber(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// firstRelevant returns the index of a step no later than the first one
// that can touch win. Every earlier step ends before win.After.
func (e *Engine) firstRelevant(a anchor, s stepper, win Window) int {
	if win.After.IsZero() {
		return 0
	}
	span := a.duration
	if a.civilSpan > span {
		span = a.civilSpan
	}
	if k := s.indexAtOrBefore(win.After.Add(-(span + time.Hour))); k > 0 {
		return k
	}
	return 0
}

// walk yields the boundaries intersecting win from step from onward. An
// rrule iterator gives up about 292 years past its start, so the rule is
// rebuilt from the next step whenever one runs dry before the sequence
// has ended.
func (e *Engine) walk(ev event.Event, a anchor, s stepper, from int, win Window) iter.Seq[Boundary] {
	return func(yield func(Boundary) bool) {
		n := from
		for s.exists(n) {
			dtstart := s.at(n)
			if !win.Before.IsZero() && dtstart.After(win.Before) {
				return
			}
			remaining := 0
			if s.count > 0 {
				remaining = s.count - n
			}
			r, err := e.rule(ev, a, dtstart, remaining)
			if err != nil {
				return
			}

			next := r.Iterator()
			produced := 0
			for {
				start, ok := next()
				if !ok {
					break
				}
				produced++
				if !win.Before.IsZero() && start.After(win.Before) {
					return
				}
				end := a.endFor(start)
				if !win.Intersects(start, end) {
					continue
				}
				b := Boundary{
					Start:        start,
					End:          end,
					Sequence:     n + produced,
					RecurrenceID: event.RecurrenceID(ev.ID, start),
				}
				if !yield(b) {
					return
				}
			}
			if produced == 0 {
				return
			}
			n += produced
		}
	}
}

// steps yields every boundary of ev intersecting win, without the ceiling.
// Callers must stop consuming; an unbounded rule over an open window never
// ends on its own.
func (e *Engine) steps(ev event.Event, win Window) iter.Seq[Boundary] {
	return func(yield func(Boundary) bool) {
		a, err := e.resolve(ev)
		if err != nil {
			return
		}

		if !ev.IsRecurring() {
			if win.Intersects(a.start, a.end) {
				yield(Boundary{
					Start:        a.start,
					End:          a.end,
					Sequence:     1,
					RecurrenceID: event.RecurrenceID(ev.ID, a.start),
				})
			}
			return
		}

		if e.config.Pruning && e.cannotReach(a, win) {
			return
		}

		s := newStepper(ev, a)
		for b := range e.walk(ev, a, s, e.firstRelevant(a, s, win), win) {
			if !yield(b) {
				return
			}
		}
	}
}

// cannotReach reports whether no step of a recurring event can touch win.
// It only answers true when that is certain.
func (e *Engine) cannotReach(a anchor, win Window) bool {
	if !win.Before.IsZero() && a.start.After(win.Before) {
		return true
	}
	if a.until.IsZero() || win.After.IsZero() {
		return false
	}
	// The latest possible step starts at until; give it the longer of the
	// two spans to be safe across zone transitions.
	span := a.duration
	if a.civilSpan > span {
		span = a.civilSpan
	}
	return a.until.Add(span + time.Hour).Before(win.After)
}

// Sequence lazily yields the boundaries of ev that intersect win, at most
// MaxOccurrences of them.
func (e *Engine) Sequence(ev event.Event, win Window) iter.Seq[Boundary] {
	return func(yield func(Boundary) bool) {
		emitted := 0
		for b := range e.steps(ev, win) {
			if !yield(b) {
				return
			}
			emitted++
			if emitted >= MaxOccurrences {
				return
			}
		}
	}
}

// Expand materializes the earliest occurrences of ev that intersect win.
// A non-recurring event yields itself; unknown frequencies count as
// non-recurring.
func (e *Engine) Expand(ev event.Event, win Window) Result {
	var res Result
	for b := range e.steps(ev, win) {
		if len(res.Occurrences) == MaxOccurrences {
			res.Truncated = true
			break
		}
		res.Occurrences = append(res.Occurrences, e.occurrence(ev, b))
	}
	return res
}

// ExpandLatest is Expand keeping the latest MaxOccurrences matches instead
// of the earliest. It needs a closed upper edge; with an open one it is
// Expand.
func (e *Engine) ExpandLatest(ev event.Event, win Window) Result {
	if win.Before.IsZero() || !ev.IsRecurring() {
		return e.Expand(ev, win)
	}
	a, err := e.resolve(ev)
	if err != nil || (e.config.Pruning && e.cannotReach(a, win)) {
		return Result{}
	}

	s := newStepper(ev, a)
	from := e.firstRelevant(a, s, win)
	var res Result

	// Skip to shortly before the tail when the steps in between all start
	// inside the window: more than MaxOccurrences of them match anyway.
	edge := win.Before
	if !s.until.IsZero() && s.until.Before(edge) {
		edge = s.until
	}
	if last := s.indexAtOrBefore(edge); last >= 0 {
		if s.count > 0 && last >= s.count {
			last = s.count - 1
		}
		if tail := last - MaxOccurrences - 1; tail > from && !s.at(tail).Before(win.After) {
			from = tail
			res.Truncated = true
		}
	}

	ring := make([]Boundary, 0, MaxOccurrences)
	head, seen := 0, 0
	for b := range e.walk(ev, a, s, from, win) {
		seen++
		if len(ring) < MaxOccurrences {
			ring = append(ring, b)
			continue
		}
		ring[head] = b
		head = (head + 1) % MaxOccurrences
	}
	if seen > MaxOccurrences {
		res.Truncated = true
	}

	res.Occurrences = make([]event.Occurrence, 0, len(ring))
	for i := range ring {
		res.Occurrences = append(res.Occurrences, e.occurrence(ev, ring[(head+i)%len(ring)]))
	}
	return res
}

func (e *Engine) occurrence(ev event.Event, b Boundary) event.Occurrence {
	if !ev.IsRecurring() {
		return event.Occurrence{
			Event:        ev,
			StartAt:      b.Start,
			EndAt:        b.End,
			Sequence:     b.Sequence,
			RecurrenceID: b.RecurrenceID,
		}
	}
	return event.NewOccurrence(ev, b.Start, b.End, b.Sequence)
}

// HasOccurrenceInRange checks if ev has any occurrence touching win
// without expanding further than the first match.
func (e *Engine) HasOccurrenceInRange(ev event.Event, win Window) bool {
	for range e.steps(ev, win) {
		return true
	}
	return false
}
