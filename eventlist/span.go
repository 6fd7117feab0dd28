package eventlist

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Span is a calendar-aware length of time such as "100 years" or
// "1 month 2 days". Years, months and days move the calendar; Clock is
// added as an absolute duration.
type Span struct {
	Years  int
	Months int
	Days   int
	Clock  time.Duration
}

var spanUnits = map[string]func(*Span, int){
	"second": func(s *Span, n int) { s.Clock += time.Duration(n) * time.Second },
	"minute": func(s *Span, n int) { s.Clock += time.Duration(n) * time.Minute },
	"hour":   func(s *Span, n int) { s.Clock += time.Duration(n) * time.Hour },
	"day":    func(s *Span, n int) { s.Days += n },
	"week":   func(s *Span, n int) { s.Days += 7 * n },
	"month":  func(s *Span, n int) { s.Months += n },
	"year":   func(s *Span, n int) { s.Years += n },
}

// ParseSpan reads one or more "N unit" pairs, units singular or plural.
// Plain Go durations like "15m" are accepted too.
func ParseSpan(text string) (Span, error) {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return Span{}, fmt.Errorf("empty span")
	}
	if d, err := time.ParseDuration(text); err == nil {
		return Span{Clock: d}, nil
	}

	fields := strings.Fields(text)
	if len(fields)%2 != 0 {
		return Span{}, fmt.Errorf("span %q: want pairs of number and unit", text)
	}

	var span Span
	for i := 0; i < len(fields); i += 2 {
		n, err := strconv.Atoi(fields[i])
		if err != nil || n < 0 {
			return Span{}, fmt.Errorf("span %q: bad count %q", text, fields[i])
		}
		unit := strings.TrimSuffix(strings.TrimSuffix(fields[i+1], ","), "s")
		add, ok := spanUnits[unit]
		if !ok {
			return Span{}, fmt.Errorf("span %q: unknown unit %q", text, fields[i+1])
		}
		add(&span, n)
	}
	return span, nil
}

// IsZero reports whether the span has no length.
func (s Span) IsZero() bool {
	return s == Span{}
}

// After returns t moved forward by the span.
func (s Span) After(t time.Time) time.Time {
	return t.AddDate(s.Years, s.Months, s.Days).Add(s.Clock)
}

// Before returns t moved back by the span.
func (s Span) Before(t time.Time) time.Time {
	return t.AddDate(-s.Years, -s.Months, -s.Days).Add(-s.Clock)
}

// Approx converts the span to a fixed duration with 30-day months and
// 365-day years.
func (s Span) Approx() time.Duration {
	days := s.Years*365 + s.Months*30 + s.Days
	return time.Duration(days)*24*time.Hour + s.Clock
}

// Round truncates t down to a multiple of the span. Spans under a second
// round to the second.
func (s Span) Round(t time.Time) time.Time {
	bucket := s.Approx()
	if bucket < time.Second {
		bucket = time.Second
	}
	return t.Truncate(bucket)
}
