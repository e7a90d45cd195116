/*
Package timesheet owns recorded work time: the time-entry approval
state machine, manual entry CRUD, and the live punch clock.

PURPOSE:
  A time entry moves DRAFT -> SUBMITTED -> REVIEWED -> CONFIRMED, with
  two branches: a manager can send a SUBMITTED entry back as
  CORRECTION_REQUESTED (the employee fixes and resubmits), or reject a
  SUBMITTED/REVIEWED entry outright. CONFIRMED and REJECTED are
  terminal. Content edits are only possible in DRAFT and
  CORRECTION_REQUESTED.

KEY CONCEPTS:
  - Transition table: legal moves, the actor class each requires, and
    the audit action each produces, declared in one place (this file)
  - Month lock: every mutation first consults the payroll MonthClose
    record for the entry's month; LOCKED/EXPORTED freezes the entry
  - Diff-only audit: edits record exactly the fields that changed;
    an edit that changes nothing records nothing
  - Legal-break asymmetry: creation and clock-out silently raise a
    short break to the ArbZG minimum; editing recomputes totals but
    never re-applies the raise

DESIGN PRINCIPLES:
  1. The machine is pure: Apply mutates the entry in memory and reports
     the audit action; persistence and notification live in service.go
  2. Role checks sit in the table, not scattered through handlers

SEE ALSO:
  - service.go: create/edit/delete and persistence around the machine
  - clock.go: the live punch clock feeding DRAFT entries
  - core/types.go: EntryStatus and TimeEntryAudit
*/
package timesheet

import (
	"fmt"
	"time"

	"github.com/schichtwerk/shift-engine/core"
)

// Action is one approval-workflow move requested on a time entry.
type Action string

const (
	ActionSubmit            Action = "submit"
	ActionApprove           Action = "approve"
	ActionReject            Action = "reject"
	ActionRequestCorrection Action = "request_correction"
	ActionConfirm           Action = "confirm"
)

// ParseAction maps a wire string to an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionSubmit, ActionApprove, ActionReject, ActionRequestCorrection, ActionConfirm:
		return Action(s), nil
	}
	return "", fmt.Errorf("%w: unknown action %q", core.ErrValidation, s)
}

// =============================================================================
// TRANSITION TABLE
// =============================================================================

type transition struct {
	from       []core.EntryStatus
	to         core.EntryStatus
	management bool // false = the owning employee may also perform it
	audit      core.AuditAction
}

var transitions = map[Action]transition{
	ActionSubmit: {
		from:  []core.EntryStatus{core.EntryDraft, core.EntryCorrection},
		to:    core.EntrySubmitted,
		audit: core.AuditSubmitted,
	},
	ActionApprove: {
		from:       []core.EntryStatus{core.EntrySubmitted},
		to:         core.EntryReviewed,
		management: true,
		audit:      core.AuditApproved,
	},
	ActionReject: {
		from:       []core.EntryStatus{core.EntrySubmitted, core.EntryReviewed},
		to:         core.EntryRejected,
		management: true,
		audit:      core.AuditRejected,
	},
	ActionRequestCorrection: {
		from:       []core.EntryStatus{core.EntrySubmitted},
		to:         core.EntryCorrection,
		management: true,
		audit:      core.AuditCorrectionRequested,
	},
	ActionConfirm: {
		from:       []core.EntryStatus{core.EntryReviewed},
		to:         core.EntryConfirmed,
		management: true,
		audit:      core.AuditConfirmed,
	},
}

// Apply performs the action on the entry in memory. It checks the
// actor's permission and the current status, mutates status and
// stamps, and returns the audit action to record. The entry is
// untouched on error.
func Apply(e *core.TimeEntry, action Action, actor core.Actor, now time.Time) (core.AuditAction, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", core.ErrValidation, action)
	}

	if t.management {
		if !actor.Role.IsManagement() {
			return "", fmt.Errorf("%s requires a management role: %w", action, core.ErrForbidden)
		}
	} else if !actor.CanActFor(e.EmployeeID) {
		return "", fmt.Errorf("only the owning employee or management may %s: %w", action, core.ErrForbidden)
	}

	legal := false
	for _, from := range t.from {
		if e.Status == from {
			legal = true
			break
		}
	}
	if !legal {
		return "", &core.TransitionError{Entity: "time_entry", From: string(e.Status), To: string(t.to)}
	}

	e.Status = t.to
	e.UpdatedAt = now
	switch action {
	case ActionSubmit:
		stamp := now
		e.SubmittedAt = &stamp
	case ActionConfirm:
		stamp := now
		e.ConfirmedAt = &stamp
		e.ConfirmedBy = actor.EmployeeID
	}
	return t.audit, nil
}
