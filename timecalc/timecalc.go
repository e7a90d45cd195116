/*
Package timecalc provides minute arithmetic for recorded work time.

PURPOSE:
  All durations in the engine are integer minutes. This package parses
  "HH:mm" clock strings, computes gross/break/net durations (overnight
  aware), enforces the German ArbZG minimum-break thresholds, converts
  to payroll "industrial hours" (decimal hours), and validates raw
  time-entry input.

KEY RULES:
  - Gross:   end − start, +24h when end ≤ start (no zero-length shifts)
  - Break:   break window if both bounds given, else the explicit value
  - Net:     max(0, gross − break)
  - ArbZG:   gross > 9h needs ≥45 min break, gross > 6h needs ≥30 min
  - Industrial hours: minutes/60 rounded half-up to 2 decimals

PRECISION:
  Industrial-hour conversion goes through decimal.Decimal so payroll
  values round deterministically instead of drifting through float64.

SEE ALSO:
  - calendar: surcharge flags combined with these durations
  - timesheet: applies LegalMinimumBreak on create and clock-out paths
*/
package timecalc

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PARSING
// =============================================================================

var hhmmRe = regexp.MustCompile(`^\d{2}:\d{2}$`)

// ValidHHMM reports whether s is a well-formed "HH:mm" clock string.
func ValidHHMM(s string) bool {
	if !hhmmRe.MatchString(s) {
		return false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	return h < 24 && m < 60
}

// ParseHHMM converts "HH:mm" to minutes since midnight. Input must have
// been validated; malformed strings yield 0.
func ParseHHMM(s string) int {
	if !hhmmRe.MatchString(s) {
		return 0
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	return h*60 + m
}

// FormatHHMM renders minutes since midnight as "HH:mm".
func FormatHHMM(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// =============================================================================
// DURATIONS
// =============================================================================

const MinutesPerDay = 24 * 60

// GrossMinutes is the span from start to end in minutes. When end ≤
// start the shift is assumed to cross midnight, so 24h are added: there
// is no way to encode a zero- or negative-duration shift.
func GrossMinutes(start, end string) int {
	s := ParseHHMM(start)
	e := ParseHHMM(end)
	if e <= s {
		e += MinutesPerDay
	}
	return e - s
}

// BreakMinutes resolves the break duration: the breakStart/breakEnd
// window when both are present, otherwise the explicit minute value.
func BreakMinutes(breakStart, breakEnd string, explicit int) int {
	if breakStart != "" && breakEnd != "" {
		return GrossMinutes(breakStart, breakEnd)
	}
	return explicit
}

// NetMinutes is gross minus break, floored at zero.
func NetMinutes(gross, brk int) int {
	if n := gross - brk; n > 0 {
		return n
	}
	return 0
}

// =============================================================================
// LEGAL MINIMUM BREAK (ArbZG §4)
// =============================================================================

// RequiredBreak returns the statutory minimum break for a gross working
// time: >9h → 45 min, >6h → 30 min, otherwise none.
func RequiredBreak(grossMinutes int) int {
	switch {
	case grossMinutes > 9*60:
		return 45
	case grossMinutes > 6*60:
		return 30
	default:
		return 0
	}
}

// LegalMinimumBreak raises an insufficient break to the statutory
// minimum. The engine fails open to the compliant value instead of
// rejecting; this is applied on the punch-clock and creation paths only.
func LegalMinimumBreak(grossMinutes, provided int) int {
	if req := RequiredBreak(grossMinutes); provided < req {
		return req
	}
	return provided
}

// =============================================================================
// INDUSTRIAL HOURS (decimal payroll hours)
// =============================================================================

var sixty = decimal.NewFromInt(60)

// ToIndustrialHours converts minutes to decimal hours rounded half-up
// to two places: 450 → 7.5, 455 → 7.58.
func ToIndustrialHours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(sixty).Round(2)
}

// FromIndustrialHours converts decimal hours back to whole hours and
// minutes: 8.5 → (8, 30).
func FromIndustrialHours(industrial decimal.Decimal) (hours, minutes int) {
	hours = int(industrial.IntPart())
	frac := industrial.Sub(decimal.NewFromInt(int64(hours)))
	minutes = int(frac.Mul(sixty).Round(0).IntPart())
	if minutes == 60 { // 7.995 and friends round up into a full hour
		hours++
		minutes = 0
	}
	return hours, minutes
}

// FormatIndustrial renders minutes as a German-locale decimal-hour
// string: 510 → "8,50".
func FormatIndustrial(minutes int) string {
	s := ToIndustrialHours(minutes).StringFixed(2)
	out := []byte(s)
	for i, c := range out {
		if c == '.' {
			out[i] = ','
		}
	}
	return string(out)
}

// =============================================================================
// ISO WEEK & CIVIL DATES
// =============================================================================

// ISOWeek returns the ISO 8601 week number (1..53) for a date.
func ISOWeek(d time.Time) int {
	_, week := d.ISOWeek()
	return week
}

// DateOnly truncates t to midnight UTC, the canonical entity date form.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekBounds returns the Monday and Sunday (both midnight UTC) of the
// ISO week containing d.
func WeekBounds(d time.Time) (monday, sunday time.Time) {
	d = DateOnly(d)
	offset := int(d.Weekday()+6) % 7 // Monday = 0
	monday = d.AddDate(0, 0, -offset)
	sunday = monday.AddDate(0, 0, 6)
	return monday, sunday
}

// MonthBounds returns the first and last day (midnight UTC) of a month.
func MonthBounds(year int, month time.Month) (first, last time.Time) {
	first = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last = first.AddDate(0, 1, -1)
	return first, last
}

// WeekdayCount counts Monday–Friday days in [from, to] inclusive.
func WeekdayCount(from, to time.Time) int {
	from, to = DateOnly(from), DateOnly(to)
	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}
