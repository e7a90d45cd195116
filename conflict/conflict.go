/*
Package conflict detects scheduling collisions before they are persisted.

PURPOSE:
  Answers one question: may this shift (or absence) exist for this
  employee? Three collision classes for shifts:

    OVERLAP      another active shift occupies an intersecting interval
    ABSENCE      a pending or approved absence covers the shift's date
    REST_PERIOD  less than 11 hours between this shift and a neighbor
                 (ArbZG §5)

  And one for absences: two blocking absences for the same employee may
  never intersect.

KEY CONCEPTS:
  - Overnight normalization: a shift whose end is at or before its start
    crosses midnight; its end gains 24h before interval math
  - Absolute timeline: intervals are compared in minutes since epoch, so
    a shift ending 02:00 Tuesday correctly collides with one starting
    01:00 Tuesday even though their calendar dates differ
  - Half-open intervals: [start, end) - back-to-back shifts (14:00-22:00
    then 22:00-06:00) do NOT overlap

DESIGN PRINCIPLES:
  1. Read-only: the detector never writes; callers decide what a
     conflict means (hard reject vs. warning)
  2. Narrow dependencies: the detector consumes two small read
     interfaces, not the full store

USAGE:
  det := conflict.NewDetector(store, store)
  conflicts, err := det.CheckShift(ctx, candidate)
  if len(conflicts) > 0 { ... }

SEE ALSO:
  - core/errors.go: Conflict and ConflictError shapes
  - scheduling/service.go: the main caller
*/
package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/timecalc"
)

// RestMinutes is the statutory minimum rest between shifts (ArbZG §5).
const RestMinutes = 11 * 60

// ShiftSource is the read surface the detector needs for shifts.
type ShiftSource interface {
	ListShifts(ctx context.Context, workspaceID string, f core.ShiftFilter) ([]*core.Shift, error)
}

// AbsenceSource is the read surface for blocking absences.
type AbsenceSource interface {
	ListBlockingAbsences(ctx context.Context, workspaceID, employeeID string, from, to time.Time) ([]*core.AbsenceRequest, error)
}

// Candidate is a shift that may not exist yet. ShiftID is empty for
// creations and set for updates, so a shift never conflicts with itself.
type Candidate struct {
	ShiftID     string
	WorkspaceID string
	EmployeeID  string
	Date        time.Time // midnight UTC
	StartTime   string    // "HH:mm"
	EndTime     string
}

type Detector struct {
	shifts   ShiftSource
	absences AbsenceSource
}

func NewDetector(shifts ShiftSource, absences AbsenceSource) *Detector {
	return &Detector{shifts: shifts, absences: absences}
}

// =============================================================================
// SHIFT CHECKS
// =============================================================================

// CheckShift returns every collision the candidate would cause. An
// unassigned candidate (empty EmployeeID) can collide with nothing.
func (d *Detector) CheckShift(ctx context.Context, c Candidate) ([]core.Conflict, error) {
	if c.EmployeeID == "" {
		return nil, nil
	}

	cStart, cEnd, err := absInterval(c.Date, c.StartTime, c.EndTime)
	if err != nil {
		return nil, err
	}

	var conflicts []core.Conflict

	// Neighbors one day either side cover overlap and rest-period for
	// any overnight combination: a gap below 11h keeps both shifts
	// within a 35h window.
	neighbors, err := d.shifts.ListShifts(ctx, c.WorkspaceID, core.ShiftFilter{
		EmployeeID: c.EmployeeID,
		From:       c.Date.AddDate(0, 0, -1),
		To:         c.Date.AddDate(0, 0, 1),
		Statuses:   []core.ShiftStatus{core.ShiftScheduled, core.ShiftCompleted},
	})
	if err != nil {
		return nil, fmt.Errorf("loading neighboring shifts: %w", err)
	}

	for _, n := range neighbors {
		if n.ID == c.ShiftID {
			continue
		}
		nStart, nEnd, err := absInterval(n.Date, n.StartTime, n.EndTime)
		if err != nil {
			return nil, fmt.Errorf("shift %s has malformed times: %w", n.ID, err)
		}
		switch {
		case cStart < nEnd && nStart < cEnd:
			conflicts = append(conflicts, core.Conflict{
				Kind:       core.ConflictOverlap,
				EmployeeID: c.EmployeeID,
				RefID:      n.ID,
				Detail: fmt.Sprintf("overlaps shift on %s %s-%s",
					n.Date.Format("2006-01-02"), n.StartTime, n.EndTime),
			})
		// Rest applies between working days; a same-day split shift is
		// contiguous work, not a rest violation.
		case !n.Date.Equal(timecalc.DateOnly(c.Date)) && gap(cStart, cEnd, nStart, nEnd) < RestMinutes:
			conflicts = append(conflicts, core.Conflict{
				Kind:       core.ConflictRestPeriod,
				EmployeeID: c.EmployeeID,
				RefID:      n.ID,
				Detail: fmt.Sprintf("only %dh%02dm rest to shift on %s, 11h required",
					gap(cStart, cEnd, nStart, nEnd)/60, gap(cStart, cEnd, nStart, nEnd)%60,
					n.Date.Format("2006-01-02")),
			})
		}
	}

	// Absences block the whole calendar date of the shift's start.
	blocking, err := d.absences.ListBlockingAbsences(ctx, c.WorkspaceID, c.EmployeeID, c.Date, c.Date)
	if err != nil {
		return nil, fmt.Errorf("loading absences: %w", err)
	}
	for _, a := range blocking {
		conflicts = append(conflicts, core.Conflict{
			Kind:       core.ConflictAbsence,
			EmployeeID: c.EmployeeID,
			RefID:      a.ID,
			Detail:     fmt.Sprintf("%s absence %s", a.Category, a.Status),
		})
	}

	return conflicts, nil
}

// =============================================================================
// ABSENCE CHECKS
// =============================================================================

// CheckAbsence returns the blocking absences the candidate absence
// would intersect. ExcludeID skips the record itself on updates.
func (d *Detector) CheckAbsence(ctx context.Context, workspaceID, employeeID string, from, to time.Time, excludeID string) ([]core.Conflict, error) {
	blocking, err := d.absences.ListBlockingAbsences(ctx, workspaceID, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading absences: %w", err)
	}
	var conflicts []core.Conflict
	for _, a := range blocking {
		if a.ID == excludeID {
			continue
		}
		conflicts = append(conflicts, core.Conflict{
			Kind:       core.ConflictAbsence,
			EmployeeID: employeeID,
			RefID:      a.ID,
			Detail: fmt.Sprintf("%s absence %s to %s is %s",
				a.Category, a.StartDate.Format("2006-01-02"),
				a.EndDate.Format("2006-01-02"), a.Status),
		})
	}
	return conflicts, nil
}

// =============================================================================
// INTERVAL MATH
// =============================================================================

// absInterval converts a dated shift window to half-open absolute
// minutes since epoch, normalizing overnight shifts.
func absInterval(date time.Time, start, end string) (int64, int64, error) {
	if !timecalc.ValidHHMM(start) || !timecalc.ValidHHMM(end) {
		return 0, 0, fmt.Errorf("%w: malformed shift times %q-%q", core.ErrValidation, start, end)
	}
	s := timecalc.ParseHHMM(start)
	e := timecalc.ParseHHMM(end)
	if e <= s {
		e += timecalc.MinutesPerDay
	}
	base := timecalc.DateOnly(date).Unix() / 60
	return base + int64(s), base + int64(e), nil
}

// gap is the distance in minutes between two non-overlapping intervals.
func gap(aStart, aEnd, bStart, bEnd int64) int {
	if aEnd <= bStart {
		return int(bStart - aEnd)
	}
	return int(aStart - bEnd)
}
