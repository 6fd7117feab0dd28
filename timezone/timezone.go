// Package timezone turns stored zone specs into locations and compares
// instants across zones.
//
// A zone spec is one of:
//   - "" (floating: no zone, compared as wall clock in the caller's zone)
//   - "UTC"
//   - an IANA identifier such as "America/Chicago"
//   - a manual offset "UTC+5.75", "UTC-3.5", "UTC+0"
package timezone

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/shopspring/decimal"
)

// Floating is the zone spec of a datetime without a zone.
const Floating = ""

const manualPrefix = "UTC"

var secondsPerHour = decimal.NewFromInt(3600)

// manualOffsets lists the accepted manual offsets in hours, including the
// fractional offsets used by real zones (India, Nepal, Chatham, ...).
var manualOffsets = []string{
	"-12", "-11.5", "-11", "-10.5", "-10", "-9.5", "-9", "-8.5", "-8", "-7.5",
	"-7", "-6.5", "-6", "-5.5", "-5", "-4.5", "-4", "-3.5", "-3", "-2.5",
	"-2", "-1.5", "-1", "-0.5", "0", "0.5", "1", "1.5", "2", "2.5",
	"3", "3.5", "4", "4.5", "5", "5.5", "5.75", "6", "6.5", "7",
	"7.5", "8", "8.5", "8.75", "9", "9.5", "10", "10.5", "11", "11.5",
	"12", "12.75", "13", "13.75", "14",
}

var manualOffsetSeconds = func() map[int64]struct{} {
	m := make(map[int64]struct{}, len(manualOffsets))
	for _, o := range manualOffsets {
		m[decimal.RequireFromString(o).Mul(secondsPerHour).IntPart()] = struct{}{}
	}
	return m
}()

// ManualOffsets returns every accepted manual offset spec, west to east.
func ManualOffsets() []string {
	specs := make([]string, 0, len(manualOffsets))
	for _, o := range manualOffsets {
		if strings.HasPrefix(o, "-") {
			specs = append(specs, manualPrefix+o)
		} else {
			specs = append(specs, manualPrefix+"+"+o)
		}
	}
	return specs
}

// ParseManualOffset decodes "UTC±H[.FF]" into seconds east of UTC. Only
// offsets from the manual table are accepted.
func ParseManualOffset(spec string) (int, bool) {
	rest, ok := strings.CutPrefix(spec, manualPrefix)
	if !ok || len(rest) < 2 || (rest[0] != '+' && rest[0] != '-') {
		return 0, false
	}
	hours, err := decimal.NewFromString(rest[1:])
	if err != nil || hours.IsNegative() {
		return 0, false
	}
	seconds := hours.Mul(secondsPerHour)
	if !seconds.IsInteger() {
		return 0, false
	}
	if rest[0] == '-' {
		seconds = seconds.Neg()
	}
	if _, ok := manualOffsetSeconds[seconds.IntPart()]; !ok {
		return 0, false
	}
	return int(seconds.IntPart()), true
}

// ResolveZone returns the location for spec. Floating resolves to UTC, the
// storage zone; callers with floating semantics must check for it first.
// Unknown specs resolve to None.
func ResolveZone(spec string) mo.Option[*time.Location] {
	spec = strings.TrimSpace(spec)
	switch spec {
	case Floating, manualPrefix:
		return mo.Some(time.UTC)
	case "Local":
		return mo.None[*time.Location]()
	}
	if strings.HasPrefix(spec, manualPrefix+"+") || strings.HasPrefix(spec, manualPrefix+"-") {
		seconds, ok := ParseManualOffset(spec)
		if !ok {
			return mo.None[*time.Location]()
		}
		return mo.Some(time.FixedZone(spec, seconds))
	}
	loc, err := time.LoadLocation(spec)
	if err != nil {
		return mo.None[*time.Location]()
	}
	return mo.Some(loc)
}

// ZoneOrUTC resolves spec, falling back to UTC for anything invalid.
func ZoneOrUTC(spec string) *time.Location {
	return ResolveZone(spec).OrElse(time.UTC)
}

// IsValid reports whether spec is a known zone or manual offset. The
// floating spec is not a zone and is reported invalid.
func IsValid(spec string) bool {
	if strings.TrimSpace(spec) == Floating {
		return false
	}
	return ResolveZone(spec).IsPresent()
}

// ZonedInstant interprets a stored naive datetime as wall clock in loc.
func ZonedInstant(naive string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", strings.TrimSpace(naive), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", naive, err)
	}
	return t, nil
}

// OffsetBetween returns how many seconds a is ahead of b at the instant at.
func OffsetBetween(a, b *time.Location, at time.Time) int {
	_, offA := at.In(a).Zone()
	_, offB := at.In(b).Zone()
	return offA - offB
}

// HumanizeOffset renders an offset as signed decimal hours, e.g. "+2 hours"
// or "-3.5 hours".
func HumanizeOffset(seconds int) string {
	hours := decimal.NewFromInt(int64(seconds)).Div(secondsPerHour).Round(2)
	sign := "+"
	if hours.IsNegative() {
		sign = "-"
	}
	abs := hours.Abs()
	unit := "hours"
	if abs.Equal(decimal.NewFromInt(1)) {
		unit = "hour"
	}
	return sign + abs.String() + " " + unit
}
