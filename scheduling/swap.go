/*
swap.go - Shift swap lifecycle

A swap hands the requester's shift to a colleague, optionally trading
for one of the colleague's shifts (two-way). The lifecycle:

  PENDING --accept--> ACCEPTED --approve--> COMPLETED
     |                    |
     +----reject/cancel---+--> REJECTED / CANCELLED

When the auto-approve setting is on, a clean conflict check at accept
time completes the swap without a manager. The reassignment of both
shifts and the COMPLETED status are one storage transaction; the swap
can never half-apply.
*/
package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/schichtwerk/shift-engine/conflict"
	"github.com/schichtwerk/shift-engine/core"
)

type SwapInput struct {
	ShiftID       string
	TargetID      string // colleague asked to take over
	TargetShiftID string // two-way swaps only
	Message       string
}

// RequestSwap opens a swap for one of the actor's own shifts.
func (s *Service) RequestSwap(ctx context.Context, actor core.Actor, in SwapInput) (*core.SwapRequest, error) {
	shift, err := s.store.GetShift(ctx, actor.WorkspaceID, in.ShiftID)
	if err != nil {
		return nil, err
	}
	if shift.EmployeeID != actor.EmployeeID && !actor.Role.IsManagement() {
		return nil, fmt.Errorf("only the assigned employee may offer this shift: %w", core.ErrForbidden)
	}
	if !shift.Active() || shift.Status == core.ShiftCompleted {
		return nil, fmt.Errorf("shift in status %s cannot be swapped: %w", shift.Status, core.ErrInvalidTransition)
	}
	if in.TargetID == "" {
		return nil, &core.ValidationError{Fields: []core.FieldError{{Field: "targetId", Message: "target employee is required"}}}
	}
	if in.TargetShiftID != "" {
		counter, err := s.store.GetShift(ctx, actor.WorkspaceID, in.TargetShiftID)
		if err != nil {
			return nil, err
		}
		if counter.EmployeeID != in.TargetID {
			return nil, &core.ValidationError{Fields: []core.FieldError{{Field: "targetShiftId", Message: "shift does not belong to the target employee"}}}
		}
	}

	now := s.now()
	req := &core.SwapRequest{
		ID:            uuid.NewString(),
		WorkspaceID:   actor.WorkspaceID,
		ShiftID:       in.ShiftID,
		RequesterID:   shift.EmployeeID,
		TargetID:      in.TargetID,
		TargetShiftID: in.TargetShiftID,
		Message:       in.Message,
		Status:        core.RequestPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateSwap(ctx, req); err != nil {
		return nil, fmt.Errorf("persisting swap request: %w", err)
	}
	s.notify(ctx, core.Event{
		Kind:        core.EventSwapRequested,
		WorkspaceID: actor.WorkspaceID,
		RecipientID: in.TargetID,
		SubjectID:   req.ID,
		Message:     fmt.Sprintf("shift swap offered for %s %s-%s", shift.Date.Format("2006-01-02"), shift.StartTime, shift.EndTime),
	})
	return req, nil
}

// AcceptSwap is the target employee saying yes. With auto-approve
// enabled and a clean conflict check in both directions, the swap
// completes immediately; otherwise it waits for a manager.
func (s *Service) AcceptSwap(ctx context.Context, actor core.Actor, requestID string) (*core.SwapRequest, error) {
	req, err := s.store.GetSwap(ctx, actor.WorkspaceID, requestID)
	if err != nil {
		return nil, err
	}
	if req.TargetID != actor.EmployeeID {
		return nil, fmt.Errorf("only the target employee may accept: %w", core.ErrForbidden)
	}
	if req.Status != core.RequestPending {
		return nil, &core.TransitionError{Entity: "swap_request", From: string(req.Status), To: string(core.RequestAccepted)}
	}

	req.Status = core.RequestAccepted
	req.UpdatedAt = s.now()
	if err := s.store.UpdateSwap(ctx, req); err != nil {
		return nil, fmt.Errorf("persisting acceptance: %w", err)
	}

	if s.settingEnabled(ctx, actor.WorkspaceID, core.SettingAutoApproveSwap) {
		clean, err := s.swapConflictFree(ctx, req)
		if err != nil {
			return nil, err
		}
		if clean {
			if err := s.completeSwap(ctx, req, core.System(actor.WorkspaceID)); err != nil {
				return nil, err
			}
			s.notifyManagers(ctx, req.WorkspaceID, core.Event{
				Kind:        core.EventSwapDecided,
				WorkspaceID: req.WorkspaceID,
				SubjectID:   req.ID,
				Message:     "shift swap auto-approved after acceptance",
			})
			return s.store.GetSwap(ctx, actor.WorkspaceID, requestID)
		}
	}

	s.notifyManagers(ctx, req.WorkspaceID, core.Event{
		Kind:        core.EventSwapRequested,
		WorkspaceID: req.WorkspaceID,
		SubjectID:   req.ID,
		Message:     "accepted shift swap awaits approval",
	})
	return req, nil
}

// ApproveSwap is the manager decision. The reassignment and the
// COMPLETED status commit atomically.
func (s *Service) ApproveSwap(ctx context.Context, actor core.Actor, requestID, note string) (*core.SwapRequest, error) {
	if !actor.Role.IsManagement() {
		return nil, fmt.Errorf("approving swaps requires a management role: %w", core.ErrForbidden)
	}
	req, err := s.store.GetSwap(ctx, actor.WorkspaceID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != core.RequestPending && req.Status != core.RequestAccepted {
		return nil, &core.TransitionError{Entity: "swap_request", From: string(req.Status), To: string(core.RequestApproved)}
	}

	clean, err := s.swapConflictFree(ctx, req)
	if err != nil {
		return nil, err
	}
	if !clean {
		return nil, &core.ConflictError{Conflicts: []core.Conflict{{
			Kind:       core.ConflictOverlap,
			EmployeeID: req.TargetID,
			RefID:      req.ShiftID,
			Detail:     "swap would create a scheduling conflict",
		}}}
	}

	req.ReviewNote = note
	if err := s.completeSwap(ctx, req, actor); err != nil {
		return nil, err
	}
	done, err := s.store.GetSwap(ctx, actor.WorkspaceID, requestID)
	if err != nil {
		return nil, err
	}
	for _, recipient := range []string{req.RequesterID, req.TargetID} {
		s.notify(ctx, core.Event{
			Kind:        core.EventSwapDecided,
			WorkspaceID: req.WorkspaceID,
			RecipientID: recipient,
			SubjectID:   req.ID,
			Message:     "shift swap approved",
		})
	}
	return done, nil
}

// RejectSwap turns the request down.
func (s *Service) RejectSwap(ctx context.Context, actor core.Actor, requestID, note string) (*core.SwapRequest, error) {
	if !actor.Role.IsManagement() {
		return nil, fmt.Errorf("rejecting swaps requires a management role: %w", core.ErrForbidden)
	}
	req, err := s.store.GetSwap(ctx, actor.WorkspaceID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, &core.TransitionError{Entity: "swap_request", From: string(req.Status), To: string(core.RequestRejected)}
	}
	now := s.now()
	req.Status = core.RequestRejected
	req.ReviewedBy = actor.EmployeeID
	req.ReviewedAt = &now
	req.ReviewNote = note
	req.UpdatedAt = now
	if err := s.store.UpdateSwap(ctx, req); err != nil {
		return nil, fmt.Errorf("persisting rejection: %w", err)
	}
	s.notify(ctx, core.Event{
		Kind:        core.EventSwapDecided,
		WorkspaceID: req.WorkspaceID,
		RecipientID: req.RequesterID,
		SubjectID:   req.ID,
		Message:     "shift swap rejected",
	})
	return req, nil
}

// CancelSwap withdraws the request. Only the requester (or management)
// may cancel, and only before a terminal state.
func (s *Service) CancelSwap(ctx context.Context, actor core.Actor, requestID string) (*core.SwapRequest, error) {
	req, err := s.store.GetSwap(ctx, actor.WorkspaceID, requestID)
	if err != nil {
		return nil, err
	}
	if !actor.CanActFor(req.RequesterID) {
		return nil, fmt.Errorf("only the requester may cancel: %w", core.ErrForbidden)
	}
	if req.Status.Terminal() {
		return nil, &core.TransitionError{Entity: "swap_request", From: string(req.Status), To: string(core.RequestCancelled)}
	}
	req.Status = core.RequestCancelled
	req.UpdatedAt = s.now()
	if err := s.store.UpdateSwap(ctx, req); err != nil {
		return nil, fmt.Errorf("persisting cancellation: %w", err)
	}
	return req, nil
}

func (s *Service) ListSwaps(ctx context.Context, actor core.Actor, f core.RequestFilter) ([]*core.SwapRequest, error) {
	if !actor.Role.IsManagement() {
		f.EmployeeID = actor.EmployeeID
	}
	return s.store.ListSwaps(ctx, actor.WorkspaceID, f)
}

// swapConflictFree checks both directions of the post-swap assignment.
func (s *Service) swapConflictFree(ctx context.Context, req *core.SwapRequest) (bool, error) {
	shift, err := s.store.GetShift(ctx, req.WorkspaceID, req.ShiftID)
	if err != nil {
		return false, err
	}
	candidates := []conflict.Candidate{{
		ShiftID:     shift.ID,
		WorkspaceID: req.WorkspaceID,
		EmployeeID:  req.TargetID,
		Date:        shift.Date,
		StartTime:   shift.StartTime,
		EndTime:     shift.EndTime,
	}}
	if req.TargetShiftID != "" {
		counter, err := s.store.GetShift(ctx, req.WorkspaceID, req.TargetShiftID)
		if err != nil {
			return false, err
		}
		candidates = append(candidates, conflict.Candidate{
			ShiftID:     counter.ID,
			WorkspaceID: req.WorkspaceID,
			EmployeeID:  req.RequesterID,
			Date:        counter.Date,
			StartTime:   counter.StartTime,
			EndTime:     counter.EndTime,
		})
	}
	for _, c := range candidates {
		// The two shifts trade owners, so each may ignore the other.
		conflicts, err := s.detector.CheckShift(ctx, c)
		if err != nil {
			return false, err
		}
		conflicts = dropSwapCounterpart(conflicts, req)
		if len(conflicts) > 0 {
			return false, nil
		}
	}
	return true, nil
}

// dropSwapCounterpart removes conflicts against the shift leaving the
// employee in the same swap.
func dropSwapCounterpart(conflicts []core.Conflict, req *core.SwapRequest) []core.Conflict {
	var out []core.Conflict
	for _, c := range conflicts {
		if c.RefID == req.ShiftID || (req.TargetShiftID != "" && c.RefID == req.TargetShiftID) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Service) completeSwap(ctx context.Context, req *core.SwapRequest, reviewer core.Actor) error {
	now := s.now()
	req.ReviewedBy = reviewer.EmployeeID
	req.ReviewedAt = &now
	req.UpdatedAt = now
	if err := s.store.UpdateSwap(ctx, req); err != nil {
		return fmt.Errorf("stamping review: %w", err)
	}
	counterEmployee := ""
	if req.TargetShiftID != "" {
		counterEmployee = req.RequesterID
	}
	if err := s.store.ReassignShifts(ctx, req.WorkspaceID, req.ID,
		req.ShiftID, req.TargetID, req.TargetShiftID, counterEmployee); err != nil {
		return fmt.Errorf("applying swap: %w", err)
	}
	return nil
}
