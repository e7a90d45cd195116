package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schichtwerk/shift-engine/calendar"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// EASTER & MOVEABLE FEASTS
// =============================================================================

func TestEaster_KnownYears(t *testing.T) {
	cases := map[int]time.Time{
		2024: day(2024, time.March, 31),
		2025: day(2025, time.April, 20),
		2026: day(2026, time.April, 5),
	}
	for year, want := range cases {
		assert.Equal(t, want, calendar.Easter(year), "Easter %d", year)
	}
}

func TestHolidays_EasterDerived2025(t *testing.T) {
	// GIVEN: Easter Sunday 2025 is April 20
	// THEN: Karfreitag is April 18 and Ostermontag is April 21
	byName := holidayMap(t, 2025, "BY")

	assert.Equal(t, day(2025, time.April, 18), byName["Karfreitag"])
	assert.Equal(t, day(2025, time.April, 21), byName["Ostermontag"])
	assert.Equal(t, day(2025, time.May, 29), byName["Christi Himmelfahrt"])
	assert.Equal(t, day(2025, time.June, 9), byName["Pfingstmontag"])
}

func TestHolidays_RegionalDifferences(t *testing.T) {
	// Fronleichnam (Easter+60) is observed in BY but not in BE.
	by := holidayMap(t, 2025, "BY")
	be := holidayMap(t, 2025, "BE")

	assert.Equal(t, day(2025, time.June, 19), by["Fronleichnam"])
	assert.NotContains(t, be, "Fronleichnam")

	// Frauentag is BE/MV only.
	assert.Contains(t, be, "Internationaler Frauentag")
	assert.NotContains(t, by, "Internationaler Frauentag")
}

func TestHolidays_BussUndBettag(t *testing.T) {
	// Wednesday on/before Nov 22, Sachsen only.
	sn := holidayMap(t, 2025, "SN")
	d, ok := sn["Buß- und Bettag"]
	require.True(t, ok)
	assert.Equal(t, time.Wednesday, d.Weekday())
	assert.Equal(t, day(2025, time.November, 19), d)

	// 2026: Nov 23 is a Monday, so the Wednesday before is Nov 18.
	sn26 := holidayMap(t, 2026, "SN")
	assert.Equal(t, day(2026, time.November, 18), sn26["Buß- und Bettag"])

	assert.NotContains(t, holidayMap(t, 2025, "BY"), "Buß- und Bettag")
}

func TestIsHoliday(t *testing.T) {
	ok, name := calendar.IsHoliday(day(2025, time.December, 25), "BE")
	assert.True(t, ok)
	assert.Equal(t, "1. Weihnachtstag", name)

	ok, _ = calendar.IsHoliday(day(2025, time.June, 19), "BE")
	assert.False(t, ok, "Fronleichnam is not observed in Berlin")

	ok, _ = calendar.IsHoliday(day(2025, time.June, 2), "BY")
	assert.False(t, ok, "an ordinary Monday is no holiday")
}

func TestYearCache_MatchesDirectLookup(t *testing.T) {
	cache := calendar.NewYearCache()
	dates := []time.Time{
		day(2025, time.January, 1),
		day(2025, time.April, 18),
		day(2025, time.June, 19),
		day(2025, time.July, 14),
		day(2026, time.December, 26),
	}
	for _, d := range dates {
		for _, region := range []string{"BY", "BE", "SN"} {
			wantOK, wantName := calendar.IsHoliday(d, region)
			gotOK, gotName := cache.IsHoliday(d, region)
			assert.Equal(t, wantOK, gotOK, "%s %s", d, region)
			assert.Equal(t, wantName, gotName, "%s %s", d, region)
		}
	}
}

// =============================================================================
// NIGHT SHIFTS & SURCHARGES
// =============================================================================

func TestIsNightShift(t *testing.T) {
	cases := []struct {
		start, end string
		want       bool
	}{
		{"08:00", "16:00", false},
		{"22:00", "06:00", true},  // overnight
		{"23:30", "23:45", true},  // inside window
		{"05:00", "09:00", true},  // starts before 06:00
		{"15:00", "23:30", true},  // ends after 23:00
		{"06:00", "23:00", false}, // exactly the day window
		{"09:00", "09:00", true},  // end == start is treated as overnight
	}
	for _, c := range cases {
		assert.Equal(t, c.want, calendar.IsNightShift(c.start, c.end), "%s-%s", c.start, c.end)
	}
}

func TestSurchargePercent_Additive(t *testing.T) {
	assert.Equal(t, 0, calendar.SurchargePercent(false, false, false))
	assert.Equal(t, 25, calendar.SurchargePercent(true, false, false))
	assert.Equal(t, 50, calendar.SurchargePercent(false, true, false))
	assert.Equal(t, 150, calendar.SurchargePercent(false, false, true))
	assert.Equal(t, 175, calendar.SurchargePercent(true, false, true))
	assert.Equal(t, 225, calendar.SurchargePercent(true, true, true))
}

func TestValidRegion(t *testing.T) {
	assert.True(t, calendar.ValidRegion("BY"))
	assert.True(t, calendar.ValidRegion("SH"))
	assert.False(t, calendar.ValidRegion("XX"))
}

func holidayMap(t *testing.T, year int, region string) map[string]time.Time {
	t.Helper()
	out := make(map[string]time.Time)
	for _, h := range calendar.Holidays(year, region) {
		out[h.Name] = h.Date
	}
	return out
}
