/*
absence.go - Absence auto-approval and cascade cancellation

Implements the AbsencePolicy hook consumed by the scheduling service:
sick leave is approved on the spot, everything else only when the
window holds no planned work. Approval cancels the shifts the absence
now covers and flags them for coverage.
*/
package automation

import (
	"context"
	"fmt"
	"log"

	"github.com/schichtwerk/shift-engine/core"
)

// AutoDecide approves a fresh PENDING absence when policy allows. It
// returns true when it decided; false leaves the request for a manager.
func (s *Service) AutoDecide(ctx context.Context, a *core.AbsenceRequest) (bool, error) {
	if a.Status != core.AbsencePending {
		return false, nil
	}

	note := ""
	switch {
	case a.Category == core.AbsenceSick:
		// Sick leave is a fact, not a request.
		note = "auto-approved (sick leave)"
	default:
		planned, err := s.plannedShiftsInWindow(ctx, a)
		if err != nil {
			return false, err
		}
		if len(planned) > 0 {
			return false, nil
		}
		note = "auto-approved (no planned shifts)"
	}

	now := s.now()
	a.Status = core.AbsenceApproved
	a.ReviewedBy = "system"
	a.ReviewedAt = &now
	a.ReviewNote = note
	a.UpdatedAt = now
	if err := s.store.UpdateAbsence(ctx, a); err != nil {
		return false, fmt.Errorf("persisting auto-approval: %w", err)
	}

	if a.Category == core.AbsenceSick && s.settingEnabled(ctx, a.WorkspaceID, core.SettingCascadeCancellation) {
		if _, err := s.CascadeApproval(ctx, a); err != nil {
			// The approval stands even when the cascade fails.
			log.Printf("[Automation] cascade after sick auto-approval of %s failed: %v", a.ID, err)
		}
	}
	return true, nil
}

// CascadeApproval cancels every shift of the employee inside the
// approved absence window and tells the managers to find coverage.
// Returns how many shifts it cancelled.
func (s *Service) CascadeApproval(ctx context.Context, a *core.AbsenceRequest) (int, error) {
	planned, err := s.plannedShiftsInWindow(ctx, a)
	if err != nil {
		return 0, err
	}
	if len(planned) == 0 {
		return 0, nil
	}

	now := s.now()
	cancelled := 0
	for _, shift := range planned {
		shift.Status = core.ShiftCancelled
		shift.UpdatedAt = now
		if err := s.store.UpdateShift(ctx, shift); err != nil {
			log.Printf("[Automation] cancelling shift %s for absence %s failed: %v", shift.ID, a.ID, err)
			continue
		}
		cancelled++
	}

	if cancelled > 0 {
		s.notifyManagers(ctx, a.WorkspaceID, core.Event{
			Kind:        core.EventShiftCancelled,
			WorkspaceID: a.WorkspaceID,
			SubjectID:   a.ID,
			Message: fmt.Sprintf("%d shift(s) cancelled for an approved absence (%s to %s), coverage needed",
				cancelled, a.StartDate.Format("2006-01-02"), a.EndDate.Format("2006-01-02")),
		})
	}
	return cancelled, nil
}

// plannedShiftsInWindow lists the employee's non-cancelled shifts
// inside the absence date range.
func (s *Service) plannedShiftsInWindow(ctx context.Context, a *core.AbsenceRequest) ([]*core.Shift, error) {
	shifts, err := s.store.ListShifts(ctx, a.WorkspaceID, core.ShiftFilter{
		EmployeeID: a.EmployeeID,
		From:       a.StartDate,
		To:         a.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("listing shifts in absence window: %w", err)
	}
	var out []*core.Shift
	for _, shift := range shifts {
		if shift.Active() && shift.Status != core.ShiftCompleted {
			out = append(out, shift)
		}
	}
	return out, nil
}
