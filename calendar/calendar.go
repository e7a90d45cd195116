/*
Package calendar computes German public holidays and work-time surcharges.

PURPOSE:
  Pure, deterministic calendar rules for German workforce scheduling:
  which days are public holidays in which Bundesland, whether a shift
  touches the legal night window, and the resulting pay surcharge.

KEY CONCEPTS:
  - Holiday: a named holiday with its date and nationwide flag
  - Region:  a Bundesland code ("BY", "BE", ...); holiday sets differ
  - Surcharge: additive pay percentage for night/Sunday/holiday work

DESIGN PRINCIPLES:
  1. Purity: every function is deterministic for a (date, region) pair
  2. No global state: callers who loop over dates own a YearCache
  3. Closed-form moveable feasts: Easter via the Gauss algorithm,
     Buß- und Bettag via weekday arithmetic

USAGE:
  hs := calendar.Holidays(2025, "BY")
  ok, name := calendar.IsHoliday(date, "BY")
  pct := calendar.SurchargePercent(true, false, true) // night + holiday

SEE ALSO:
  - timecalc: minute arithmetic the surcharge flags are combined with
  - scheduling: stamps the derived flags onto shifts at creation time
*/
package calendar

import "time"

// =============================================================================
// REGIONS - The 16 German Bundesländer
// =============================================================================

// Regions maps Bundesland codes to display names.
var Regions = map[string]string{
	"BW": "Baden-Württemberg",
	"BY": "Bayern",
	"BE": "Berlin",
	"BB": "Brandenburg",
	"HB": "Bremen",
	"HH": "Hamburg",
	"HE": "Hessen",
	"MV": "Mecklenburg-Vorpommern",
	"NI": "Niedersachsen",
	"NW": "Nordrhein-Westfalen",
	"RP": "Rheinland-Pfalz",
	"SL": "Saarland",
	"SN": "Sachsen",
	"ST": "Sachsen-Anhalt",
	"SH": "Schleswig-Holstein",
	"TH": "Thüringen",
}

// ValidRegion reports whether code is a known Bundesland code.
func ValidRegion(code string) bool {
	_, ok := Regions[code]
	return ok
}

// =============================================================================
// HOLIDAY - A single public holiday
// =============================================================================

type Holiday struct {
	Name       string
	Date       time.Time // midnight UTC
	Nationwide bool
}

// rule describes one holiday: either a fixed month/day, an offset from
// Easter Sunday, or a special computation (Buß- und Bettag).
type rule struct {
	name         string
	month        time.Month
	day          int
	easterOffset int // used when month == 0
	special      func(year int) time.Time
	regions      []string // nil = nationwide
}

var rules = []rule{
	// Nationwide, fixed date
	{name: "Neujahr", month: time.January, day: 1},
	{name: "Tag der Arbeit", month: time.May, day: 1},
	{name: "Tag der Deutschen Einheit", month: time.October, day: 3},
	{name: "1. Weihnachtstag", month: time.December, day: 25},
	{name: "2. Weihnachtstag", month: time.December, day: 26},
	// Nationwide, Easter-based
	{name: "Karfreitag", easterOffset: -2},
	{name: "Ostermontag", easterOffset: 1},
	{name: "Christi Himmelfahrt", easterOffset: 39},
	{name: "Pfingstmontag", easterOffset: 50},
	// Regional, fixed date
	{name: "Heilige Drei Könige", month: time.January, day: 6, regions: []string{"BW", "BY", "ST"}},
	{name: "Internationaler Frauentag", month: time.March, day: 8, regions: []string{"BE", "MV"}},
	{name: "Mariä Himmelfahrt", month: time.August, day: 15, regions: []string{"BY", "SL"}},
	{name: "Weltkindertag", month: time.September, day: 20, regions: []string{"TH"}},
	{name: "Reformationstag", month: time.October, day: 31, regions: []string{"BB", "HB", "HH", "MV", "NI", "SN", "ST", "SH", "TH"}},
	{name: "Allerheiligen", month: time.November, day: 1, regions: []string{"BW", "BY", "NW", "RP", "SL"}},
	// Regional, Easter-based
	{name: "Fronleichnam", easterOffset: 60, regions: []string{"BW", "BY", "HE", "NW", "RP", "SL"}},
	// Regional, variable rule (not Easter-based)
	{name: "Buß- und Bettag", special: bussUndBettag, regions: []string{"SN"}},
}

// =============================================================================
// MOVEABLE FEASTS
// =============================================================================

// Easter returns Easter Sunday for the given year (Gauss algorithm).
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(year, time.Month(month), day)
}

// bussUndBettag is the Wednesday on or before November 22. It is eleven
// days before Totensonntag and never later than November 22.
func bussUndBettag(year int) time.Time {
	nov23 := date(year, time.November, 23)
	wd := int(nov23.Weekday())
	sub := (wd + 4) % 7
	if wd == int(time.Wednesday) {
		sub = 0
	}
	return nov23.AddDate(0, 0, -sub)
}

// =============================================================================
// HOLIDAY QUERIES
// =============================================================================

// Holidays returns all holidays observed in the given region for a year,
// nationwide ones included. An unknown region yields only the nationwide
// set. Results are in rule order, not sorted by date.
func Holidays(year int, region string) []Holiday {
	var out []Holiday
	for _, r := range rules {
		if r.regions != nil && !contains(r.regions, region) {
			continue
		}
		out = append(out, Holiday{
			Name:       r.name,
			Date:       r.resolve(year),
			Nationwide: r.regions == nil,
		})
	}
	return out
}

// IsHoliday reports whether d is a public holiday in the region, and the
// holiday name when it is.
func IsHoliday(d time.Time, region string) (bool, string) {
	y, m, day := d.Date()
	for _, r := range rules {
		if r.regions != nil && !contains(r.regions, region) {
			continue
		}
		hd := r.resolve(y)
		hy, hm, hday := hd.Date()
		if hy == y && hm == m && hday == day {
			return true, r.name
		}
	}
	return false, ""
}

// IsSunday reports whether d falls on a Sunday.
func IsSunday(d time.Time) bool {
	return d.Weekday() == time.Sunday
}

func (r rule) resolve(year int) time.Time {
	switch {
	case r.special != nil:
		return r.special(year)
	case r.month != 0:
		return date(year, r.month, r.day)
	default:
		return Easter(year).AddDate(0, 0, r.easterOffset)
	}
}

// =============================================================================
// YEAR CACHE - Caller-owned cache for loops
// =============================================================================

// YearCache memoizes holiday sets per (year, region). Recomputing the
// rule table is O(rules) per call; callers iterating many dates should
// hold one of these instead. Not safe for concurrent use.
type YearCache struct {
	sets map[yearRegion]map[string]string // date "2006-01-02" -> name
}

type yearRegion struct {
	year   int
	region string
}

func NewYearCache() *YearCache {
	return &YearCache{sets: make(map[yearRegion]map[string]string)}
}

// IsHoliday is the cached equivalent of the package-level IsHoliday.
func (c *YearCache) IsHoliday(d time.Time, region string) (bool, string) {
	k := yearRegion{year: d.Year(), region: region}
	set, ok := c.sets[k]
	if !ok {
		set = make(map[string]string)
		for _, h := range Holidays(k.year, region) {
			set[h.Date.Format("2006-01-02")] = h.Name
		}
		c.sets[k] = set
	}
	name, hit := set[d.Format("2006-01-02")]
	return hit, name
}

// =============================================================================
// NIGHT SHIFTS & SURCHARGES
// =============================================================================

const (
	nightWindowStart = 23 * 60 // 23:00
	nightWindowEnd   = 6 * 60  // 06:00

	SurchargeNight   = 25
	SurchargeSunday  = 50
	SurchargeHoliday = 150
)

// IsNightShift reports whether a shift from start to end ("HH:mm")
// overlaps the 23:00–06:00 night window. Overnight shifts (end ≤ start)
// always do.
func IsNightShift(start, end string) bool {
	s := hhmm(start)
	e := hhmm(end)
	if e <= s {
		return true // crosses midnight, always inside the window
	}
	if s < nightWindowEnd {
		return true
	}
	if e > nightWindowStart {
		return true
	}
	return false
}

// SurchargePercent returns the additive pay surcharge for a shift:
// night +25, Sunday +50, holiday +150 (max 225).
func SurchargePercent(night, sunday, holiday bool) int {
	pct := 0
	if night {
		pct += SurchargeNight
	}
	if sunday {
		pct += SurchargeSunday
	}
	if holiday {
		pct += SurchargeHoliday
	}
	return pct
}

// =============================================================================
// HELPERS
// =============================================================================

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func hhmm(t string) int {
	if len(t) < 5 {
		return 0
	}
	h := int(t[0]-'0')*10 + int(t[1]-'0')
	m := int(t[3]-'0')*10 + int(t[4]-'0')
	return h*60 + m
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
