/*
change.go - Shift change-request lifecycle

An employee asks for new attributes on their shift (date, times,
notes); a manager approves or rejects. Approval applies the diff,
re-derives the surcharge flags, re-runs the conflict check, and
commits the shift update together with the APPROVED status in one
storage transaction.
*/
package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/schichtwerk/shift-engine/calendar"
	"github.com/schichtwerk/shift-engine/conflict"
	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/timecalc"
)

type ChangeInput struct {
	ShiftID  string
	NewDate  string // "2006-01-02", empty = unchanged
	NewStart string // "HH:mm", empty = unchanged
	NewEnd   string
	NewNotes *string // nil = unchanged, empty string clears
	Reason   string
}

// RequestChange opens a change request for one of the actor's shifts.
func (s *Service) RequestChange(ctx context.Context, actor core.Actor, in ChangeInput) (*core.ChangeRequest, error) {
	shift, err := s.store.GetShift(ctx, actor.WorkspaceID, in.ShiftID)
	if err != nil {
		return nil, err
	}
	if shift.EmployeeID != actor.EmployeeID && !actor.Role.IsManagement() {
		return nil, fmt.Errorf("only the assigned employee may request changes: %w", core.ErrForbidden)
	}

	var fields []core.FieldError
	var newDate *time.Time
	if in.NewDate != "" {
		d, err := time.Parse("2006-01-02", in.NewDate)
		if err != nil {
			fields = append(fields, core.FieldError{Field: "newDate", Message: "format must be YYYY-MM-DD"})
		} else {
			d = timecalc.DateOnly(d)
			newDate = &d
		}
	}
	if in.NewStart != "" && !timecalc.ValidHHMM(in.NewStart) {
		fields = append(fields, core.FieldError{Field: "newStart", Message: "format must be HH:mm"})
	}
	if in.NewEnd != "" && !timecalc.ValidHHMM(in.NewEnd) {
		fields = append(fields, core.FieldError{Field: "newEnd", Message: "format must be HH:mm"})
	}
	if newDate == nil && in.NewStart == "" && in.NewEnd == "" && in.NewNotes == nil {
		fields = append(fields, core.FieldError{Field: "newDate", Message: "at least one change is required"})
	}
	if len(fields) > 0 {
		return nil, &core.ValidationError{Fields: fields}
	}

	now := s.now()
	req := &core.ChangeRequest{
		ID:          uuid.NewString(),
		WorkspaceID: actor.WorkspaceID,
		ShiftID:     in.ShiftID,
		RequesterID: shift.EmployeeID,
		NewDate:     newDate,
		NewStart:    in.NewStart,
		NewEnd:      in.NewEnd,
		NewNotes:    in.NewNotes,
		Reason:      in.Reason,
		Status:      core.RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateChange(ctx, req); err != nil {
		return nil, fmt.Errorf("persisting change request: %w", err)
	}
	s.notifyManagers(ctx, actor.WorkspaceID, core.Event{
		Kind:        core.EventChangeRequested,
		WorkspaceID: actor.WorkspaceID,
		SubjectID:   req.ID,
		Message:     fmt.Sprintf("shift change requested for %s", shift.Date.Format("2006-01-02")),
	})
	return req, nil
}

// ApproveChange applies the requested diff atomically with the status
// transition.
func (s *Service) ApproveChange(ctx context.Context, actor core.Actor, requestID, note string) (*core.ChangeRequest, error) {
	if !actor.Role.IsManagement() {
		return nil, fmt.Errorf("approving changes requires a management role: %w", core.ErrForbidden)
	}
	req, err := s.store.GetChange(ctx, actor.WorkspaceID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != core.RequestPending {
		return nil, &core.TransitionError{Entity: "change_request", From: string(req.Status), To: string(core.RequestApproved)}
	}
	shift, err := s.store.GetShift(ctx, actor.WorkspaceID, req.ShiftID)
	if err != nil {
		return nil, err
	}

	updated := *shift
	if req.NewDate != nil {
		updated.Date = *req.NewDate
	}
	if req.NewStart != "" {
		updated.StartTime = req.NewStart
	}
	if req.NewEnd != "" {
		updated.EndTime = req.NewEnd
	}
	if req.NewNotes != nil {
		updated.Notes = *req.NewNotes
	}

	if updated.EmployeeID != "" {
		conflicts, err := s.detector.CheckShift(ctx, conflict.Candidate{
			ShiftID:     updated.ID,
			WorkspaceID: actor.WorkspaceID,
			EmployeeID:  updated.EmployeeID,
			Date:        updated.Date,
			StartTime:   updated.StartTime,
			EndTime:     updated.EndTime,
		})
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			return nil, &core.ConflictError{Conflicts: conflicts}
		}
	}

	region, err := s.region(ctx, actor.WorkspaceID)
	if err != nil {
		return nil, err
	}
	deriveFlags(&updated, calendar.NewYearCache(), region)

	now := s.now()
	updated.UpdatedAt = now
	req.Status = core.RequestApproved
	req.ReviewedBy = actor.EmployeeID
	req.ReviewedAt = &now
	req.ReviewNote = note
	req.UpdatedAt = now

	if err := s.store.ApplyChange(ctx, actor.WorkspaceID, req, &updated); err != nil {
		return nil, fmt.Errorf("applying change: %w", err)
	}
	s.notify(ctx, core.Event{
		Kind:        core.EventChangeDecided,
		WorkspaceID: req.WorkspaceID,
		RecipientID: req.RequesterID,
		SubjectID:   req.ID,
		Message:     "shift change approved",
	})
	return req, nil
}

// RejectChange turns the request down.
func (s *Service) RejectChange(ctx context.Context, actor core.Actor, requestID, note string) (*core.ChangeRequest, error) {
	if !actor.Role.IsManagement() {
		return nil, fmt.Errorf("rejecting changes requires a management role: %w", core.ErrForbidden)
	}
	req, err := s.store.GetChange(ctx, actor.WorkspaceID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != core.RequestPending {
		return nil, &core.TransitionError{Entity: "change_request", From: string(req.Status), To: string(core.RequestRejected)}
	}
	now := s.now()
	req.Status = core.RequestRejected
	req.ReviewedBy = actor.EmployeeID
	req.ReviewedAt = &now
	req.ReviewNote = note
	req.UpdatedAt = now
	if err := s.store.UpdateChange(ctx, req); err != nil {
		return nil, fmt.Errorf("persisting rejection: %w", err)
	}
	s.notify(ctx, core.Event{
		Kind:        core.EventChangeDecided,
		WorkspaceID: req.WorkspaceID,
		RecipientID: req.RequesterID,
		SubjectID:   req.ID,
		Message:     "shift change rejected",
	})
	return req, nil
}

// CancelChange withdraws a pending request.
func (s *Service) CancelChange(ctx context.Context, actor core.Actor, requestID string) (*core.ChangeRequest, error) {
	req, err := s.store.GetChange(ctx, actor.WorkspaceID, requestID)
	if err != nil {
		return nil, err
	}
	if !actor.CanActFor(req.RequesterID) {
		return nil, fmt.Errorf("only the requester may cancel: %w", core.ErrForbidden)
	}
	if req.Status != core.RequestPending {
		return nil, &core.TransitionError{Entity: "change_request", From: string(req.Status), To: string(core.RequestCancelled)}
	}
	req.Status = core.RequestCancelled
	req.UpdatedAt = s.now()
	if err := s.store.UpdateChange(ctx, req); err != nil {
		return nil, fmt.Errorf("persisting cancellation: %w", err)
	}
	return req, nil
}

func (s *Service) ListChanges(ctx context.Context, actor core.Actor, f core.RequestFilter) ([]*core.ChangeRequest, error) {
	if !actor.Role.IsManagement() {
		f.EmployeeID = actor.EmployeeID
	}
	return s.store.ListChanges(ctx, actor.WorkspaceID, f)
}
