/*
absence.go - Absence request lifecycle

Requests carry a weekday count as totalDays, minus 0.5 per half-day
flag. No two PENDING or APPROVED absences of one employee may overlap.
Fresh requests run through the automation policy first; what it does
not approve waits for a manager.
*/
package scheduling

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/timecalc"
)

type AbsenceInput struct {
	EmployeeID   string // defaults to the actor; managers may set others
	Category     core.AbsenceCategory
	StartDate    string // "2006-01-02"
	EndDate      string
	HalfDayStart bool
	HalfDayEnd   bool
	Reason       string
}

func validCategory(c core.AbsenceCategory) bool {
	switch c {
	case core.AbsenceVacation, core.AbsenceSick, core.AbsenceSpecial, core.AbsenceUnpaid:
		return true
	}
	return false
}

// CreateAbsence files a request and hands it to the automation policy.
func (s *Service) CreateAbsence(ctx context.Context, actor core.Actor, in AbsenceInput) (*core.AbsenceRequest, error) {
	employeeID := in.EmployeeID
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	if !actor.CanActFor(employeeID) {
		return nil, fmt.Errorf("cannot file absences for another employee: %w", core.ErrForbidden)
	}

	var fields []core.FieldError
	if !validCategory(in.Category) {
		fields = append(fields, core.FieldError{Field: "category", Message: "unknown absence category"})
	}
	start, err := time.Parse("2006-01-02", in.StartDate)
	if err != nil {
		fields = append(fields, core.FieldError{Field: "startDate", Message: "format must be YYYY-MM-DD"})
	}
	end, err := time.Parse("2006-01-02", in.EndDate)
	if err != nil {
		fields = append(fields, core.FieldError{Field: "endDate", Message: "format must be YYYY-MM-DD"})
	}
	if len(fields) > 0 {
		return nil, &core.ValidationError{Fields: fields}
	}
	start = timecalc.DateOnly(start)
	end = timecalc.DateOnly(end)
	if end.Before(start) {
		return nil, &core.ValidationError{Fields: []core.FieldError{
			{Field: "endDate", Message: "must not be before startDate"},
		}}
	}

	totalDays := float64(timecalc.WeekdayCount(start, end))
	if in.HalfDayStart {
		totalDays -= 0.5
	}
	if in.HalfDayEnd {
		totalDays -= 0.5
	}

	overlaps, err := s.detector.CheckAbsence(ctx, actor.WorkspaceID, employeeID, start, end, "")
	if err != nil {
		return nil, err
	}
	if len(overlaps) > 0 {
		return nil, fmt.Errorf("%d existing request(s) cover this period: %w",
			len(overlaps), core.ErrAbsenceOverlap)
	}

	now := s.now()
	absence := &core.AbsenceRequest{
		ID:           uuid.NewString(),
		WorkspaceID:  actor.WorkspaceID,
		EmployeeID:   employeeID,
		Category:     in.Category,
		StartDate:    start,
		EndDate:      end,
		HalfDayStart: in.HalfDayStart,
		HalfDayEnd:   in.HalfDayEnd,
		TotalDays:    totalDays,
		Reason:       in.Reason,
		Status:       core.AbsencePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAbsence(ctx, absence); err != nil {
		return nil, fmt.Errorf("persisting absence: %w", err)
	}

	if s.policy != nil && s.settingEnabled(ctx, actor.WorkspaceID, core.SettingAutoApproveAbsence) {
		approved, err := s.policy.AutoDecide(ctx, absence)
		if err != nil {
			log.Printf("[Scheduling] auto-decide failed for absence %s: %v", absence.ID, err)
		} else if approved {
			s.notify(ctx, core.Event{
				Kind:        core.EventAbsenceDecided,
				WorkspaceID: absence.WorkspaceID,
				RecipientID: absence.EmployeeID,
				SubjectID:   absence.ID,
				Message:     "absence request auto-approved",
			})
			return absence, nil
		}
	}

	s.notifyManagers(ctx, actor.WorkspaceID, core.Event{
		Kind:        core.EventAbsenceRequested,
		WorkspaceID: actor.WorkspaceID,
		SubjectID:   absence.ID,
		Message: fmt.Sprintf("absence requested (%s) %s to %s",
			absence.Category, in.StartDate, in.EndDate),
	})
	return absence, nil
}

// DecideAbsence approves or rejects a pending request. Approval runs the
// cascade policy, cancelling shifts the absence now covers.
func (s *Service) DecideAbsence(ctx context.Context, actor core.Actor, absenceID string, approve bool, note string) (*core.AbsenceRequest, error) {
	if !actor.Role.IsManagement() {
		return nil, fmt.Errorf("deciding absences requires a management role: %w", core.ErrForbidden)
	}
	absence, err := s.store.GetAbsence(ctx, actor.WorkspaceID, absenceID)
	if err != nil {
		return nil, err
	}
	target := core.AbsenceRejected
	if approve {
		target = core.AbsenceApproved
	}
	if absence.Status != core.AbsencePending {
		return nil, &core.TransitionError{Entity: "absence_request", From: string(absence.Status), To: string(target)}
	}

	now := s.now()
	absence.Status = target
	absence.ReviewedBy = actor.EmployeeID
	absence.ReviewedAt = &now
	absence.ReviewNote = note
	absence.UpdatedAt = now
	if err := s.store.UpdateAbsence(ctx, absence); err != nil {
		return nil, fmt.Errorf("persisting decision: %w", err)
	}

	message := "absence request rejected"
	if approve {
		message = "absence request approved"
		if s.policy != nil && s.settingEnabled(ctx, actor.WorkspaceID, core.SettingCascadeCancellation) {
			cancelled, err := s.policy.CascadeApproval(ctx, absence)
			if err != nil {
				log.Printf("[Scheduling] cascade failed for absence %s: %v", absence.ID, err)
			} else if cancelled > 0 {
				log.Printf("[Scheduling] cancelled %d shift(s) covered by absence %s", cancelled, absence.ID)
			}
		}
	}
	s.notify(ctx, core.Event{
		Kind:        core.EventAbsenceDecided,
		WorkspaceID: absence.WorkspaceID,
		RecipientID: absence.EmployeeID,
		SubjectID:   absence.ID,
		Message:     message,
	})
	return absence, nil
}

// CancelAbsence withdraws a pending request. Approved absences need a
// manager to cancel, which frees the blocked period again.
func (s *Service) CancelAbsence(ctx context.Context, actor core.Actor, absenceID string) (*core.AbsenceRequest, error) {
	absence, err := s.store.GetAbsence(ctx, actor.WorkspaceID, absenceID)
	if err != nil {
		return nil, err
	}
	if !actor.CanActFor(absence.EmployeeID) {
		return nil, fmt.Errorf("only the employee may cancel: %w", core.ErrForbidden)
	}
	switch absence.Status {
	case core.AbsencePending:
	case core.AbsenceApproved:
		if !actor.Role.IsManagement() {
			return nil, fmt.Errorf("cancelling an approved absence requires a management role: %w", core.ErrForbidden)
		}
	default:
		return nil, &core.TransitionError{Entity: "absence_request", From: string(absence.Status), To: string(core.AbsenceCancelled)}
	}
	absence.Status = core.AbsenceCancelled
	absence.UpdatedAt = s.now()
	if err := s.store.UpdateAbsence(ctx, absence); err != nil {
		return nil, fmt.Errorf("persisting cancellation: %w", err)
	}
	return absence, nil
}

func (s *Service) GetAbsence(ctx context.Context, actor core.Actor, absenceID string) (*core.AbsenceRequest, error) {
	return s.store.GetAbsence(ctx, actor.WorkspaceID, absenceID)
}

func (s *Service) ListAbsences(ctx context.Context, actor core.Actor, f core.AbsenceFilter) ([]*core.AbsenceRequest, error) {
	if !actor.Role.IsManagement() {
		f.EmployeeID = actor.EmployeeID
	}
	return s.store.ListAbsences(ctx, actor.WorkspaceID, f)
}
