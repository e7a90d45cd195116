/*
service.go - Time-entry CRUD and workflow around the state machine

PURPOSE:
  Persists what machine.go decides. Creation validates, rejects
  same-day overlaps, applies the silent legal-break raise, and writes
  the CREATED audit row. Edits are restricted to editable states and
  record a diff-only audit. Every mutation is gated by the payroll
  month lock.

SEE ALSO:
  - machine.go: the transition table
  - clock.go: live punch-clock entries
  - automation/service.go: the account recalculation hooked on confirm
*/
package timesheet

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/timecalc"
)

// Store is the persistence surface this package needs.
type Store interface {
	core.TimeEntryStore
	core.AccountStore
	core.SettingsStore
	core.DirectoryStore
}

// AccountRecalculator refreshes an employee's time-account balance.
// Wired to the automation service; nil disables the hook.
type AccountRecalculator interface {
	Recalculate(ctx context.Context, workspaceID, employeeID string) error
}

type Service struct {
	store    Store
	notifier core.Notifier
	recalc   AccountRecalculator

	// Now and Location are overridable for tests. Zero values mean
	// time.Now and time.Local.
	Now      func() time.Time
	Location *time.Location
}

func NewService(store Store, notifier core.Notifier, recalc AccountRecalculator) *Service {
	return &Service{store: store, notifier: notifier, recalc: recalc}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

// =============================================================================
// CREATE
// =============================================================================

type CreateInput struct {
	EmployeeID   string
	ShiftID      string
	LocationID   string
	Date         string // "2006-01-02"
	StartTime    string // "HH:mm"
	EndTime      string
	BreakStart   string
	BreakEnd     string
	BreakMinutes int
	Remarks      string
}

// Create records a manual time entry in DRAFT. A break shorter than
// the ArbZG minimum is raised silently, never rejected.
func (s *Service) Create(ctx context.Context, actor core.Actor, in CreateInput) (*core.TimeEntry, error) {
	if !actor.CanActFor(in.EmployeeID) {
		return nil, fmt.Errorf("creating entries for other employees: %w", core.ErrForbidden)
	}

	errs := timecalc.ValidateEntryLenient(timecalc.EntryInput{
		Date: in.Date, StartTime: in.StartTime, EndTime: in.EndTime,
		BreakStart: in.BreakStart, BreakEnd: in.BreakEnd,
		BreakMinutes: in.BreakMinutes, EmployeeID: in.EmployeeID,
	})
	if len(errs) > 0 {
		return nil, &core.ValidationError{Fields: fieldErrors(errs)}
	}
	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return nil, &core.ValidationError{Fields: []core.FieldError{{Field: "date", Message: "format must be YYYY-MM-DD"}}}
	}
	date = timecalc.DateOnly(date)

	if err := s.ensureMonthOpen(ctx, actor.WorkspaceID, date); err != nil {
		return nil, err
	}
	if err := s.checkEntryOverlap(ctx, actor.WorkspaceID, in.EmployeeID, date, in.StartTime, in.EndTime, ""); err != nil {
		return nil, err
	}

	gross := timecalc.GrossMinutes(in.StartTime, in.EndTime)
	brk := timecalc.BreakMinutes(in.BreakStart, in.BreakEnd, in.BreakMinutes)
	if s.settingEnabled(ctx, actor.WorkspaceID, core.SettingLegalBreak) {
		brk = timecalc.LegalMinimumBreak(gross, brk)
	}

	now := s.now()
	entry := &core.TimeEntry{
		ID:           uuid.NewString(),
		WorkspaceID:  actor.WorkspaceID,
		EmployeeID:   in.EmployeeID,
		ShiftID:      in.ShiftID,
		LocationID:   in.LocationID,
		Date:         date,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		BreakStart:   in.BreakStart,
		BreakEnd:     in.BreakEnd,
		BreakMinutes: brk,
		GrossMinutes: gross,
		NetMinutes:   timecalc.NetMinutes(gross, brk),
		Remarks:      in.Remarks,
		Status:       core.EntryDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("persisting entry: %w", err)
	}
	s.audit(ctx, entry, core.AuditCreated, actor, "", nil)
	return entry, nil
}

// =============================================================================
// EDIT
// =============================================================================

// UpdateInput carries partial changes; nil fields stay untouched.
type UpdateInput struct {
	Date         *string
	StartTime    *string
	EndTime      *string
	BreakStart   *string
	BreakEnd     *string
	BreakMinutes *int
	Remarks      *string
	LocationID   *string
}

// Edit changes entry content in DRAFT or CORRECTION_REQUESTED. Totals
// are recomputed from the raw values; the legal-break floor is NOT
// re-applied, so a correction may record the break that was actually
// taken. The audit row holds exactly the changed fields.
func (s *Service) Edit(ctx context.Context, actor core.Actor, entryID string, in UpdateInput) (*core.TimeEntry, error) {
	entry, err := s.store.GetEntry(ctx, actor.WorkspaceID, entryID)
	if err != nil {
		return nil, err
	}
	if !actor.CanActFor(entry.EmployeeID) {
		return nil, fmt.Errorf("editing another employee's entry: %w", core.ErrForbidden)
	}
	if !entry.Status.Editable() {
		return nil, fmt.Errorf("entry in status %s cannot be edited: %w", entry.Status, core.ErrInvalidTransition)
	}
	if err := s.ensureMonthOpen(ctx, actor.WorkspaceID, entry.Date); err != nil {
		return nil, err
	}

	updated := *entry
	changes := map[string]core.FieldChange{}
	setStr := func(field string, dst *string, v *string) {
		if v != nil && *v != *dst {
			changes[field] = core.FieldChange{Old: *dst, New: *v}
			*dst = *v
		}
	}
	if in.Date != nil {
		d, err := time.Parse("2006-01-02", *in.Date)
		if err != nil {
			return nil, &core.ValidationError{Fields: []core.FieldError{{Field: "date", Message: "format must be YYYY-MM-DD"}}}
		}
		d = timecalc.DateOnly(d)
		if !d.Equal(updated.Date) {
			changes["date"] = core.FieldChange{Old: updated.Date.Format("2006-01-02"), New: *in.Date}
			updated.Date = d
		}
	}
	setStr("startTime", &updated.StartTime, in.StartTime)
	setStr("endTime", &updated.EndTime, in.EndTime)
	setStr("breakStart", &updated.BreakStart, in.BreakStart)
	setStr("breakEnd", &updated.BreakEnd, in.BreakEnd)
	setStr("remarks", &updated.Remarks, in.Remarks)
	setStr("locationId", &updated.LocationID, in.LocationID)
	if in.BreakMinutes != nil && *in.BreakMinutes != entry.BreakMinutes {
		changes["breakMinutes"] = core.FieldChange{
			Old: strconv.Itoa(entry.BreakMinutes),
			New: strconv.Itoa(*in.BreakMinutes),
		}
		updated.BreakMinutes = *in.BreakMinutes
	}

	if len(changes) == 0 {
		return entry, nil
	}

	errs := timecalc.ValidateEntryLenient(timecalc.EntryInput{
		Date: updated.Date.Format("2006-01-02"), StartTime: updated.StartTime,
		EndTime: updated.EndTime, BreakStart: updated.BreakStart,
		BreakEnd: updated.BreakEnd, BreakMinutes: updated.BreakMinutes,
		EmployeeID: updated.EmployeeID,
	})
	if len(errs) > 0 {
		return nil, &core.ValidationError{Fields: fieldErrors(errs)}
	}
	// The target month must be open too when the date moved.
	if err := s.ensureMonthOpen(ctx, actor.WorkspaceID, updated.Date); err != nil {
		return nil, err
	}
	if err := s.checkEntryOverlap(ctx, actor.WorkspaceID, updated.EmployeeID, updated.Date, updated.StartTime, updated.EndTime, entry.ID); err != nil {
		return nil, err
	}

	updated.GrossMinutes = timecalc.GrossMinutes(updated.StartTime, updated.EndTime)
	updated.BreakMinutes = timecalc.BreakMinutes(updated.BreakStart, updated.BreakEnd, updated.BreakMinutes)
	updated.NetMinutes = timecalc.NetMinutes(updated.GrossMinutes, updated.BreakMinutes)
	updated.UpdatedAt = s.now()

	if err := s.store.UpdateEntry(ctx, &updated); err != nil {
		return nil, fmt.Errorf("persisting edit: %w", err)
	}
	s.audit(ctx, &updated, core.AuditEdited, actor, "", changes)
	return &updated, nil
}

// Delete removes a DRAFT entry. Anything past DRAFT is part of the
// approval record and can only be rejected, not erased.
func (s *Service) Delete(ctx context.Context, actor core.Actor, entryID string) error {
	entry, err := s.store.GetEntry(ctx, actor.WorkspaceID, entryID)
	if err != nil {
		return err
	}
	if !actor.CanActFor(entry.EmployeeID) {
		return fmt.Errorf("deleting another employee's entry: %w", core.ErrForbidden)
	}
	if entry.Status != core.EntryDraft {
		return fmt.Errorf("only DRAFT entries can be deleted, this one is %s: %w", entry.Status, core.ErrInvalidTransition)
	}
	if err := s.ensureMonthOpen(ctx, actor.WorkspaceID, entry.Date); err != nil {
		return err
	}
	return s.store.DeleteEntry(ctx, actor.WorkspaceID, entryID)
}

// =============================================================================
// WORKFLOW TRANSITIONS
// =============================================================================

// Transition runs one approval-workflow action and its side effects:
// the audit row, notifications, and the account recalculation on
// confirm.
func (s *Service) Transition(ctx context.Context, actor core.Actor, entryID string, action Action, comment string) (*core.TimeEntry, error) {
	entry, err := s.store.GetEntry(ctx, actor.WorkspaceID, entryID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureMonthOpen(ctx, actor.WorkspaceID, entry.Date); err != nil {
		return nil, err
	}

	auditAction, err := Apply(entry, action, actor, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("persisting transition: %w", err)
	}
	s.audit(ctx, entry, auditAction, actor, comment, nil)

	switch action {
	case ActionSubmit:
		s.notifyManagers(ctx, entry.WorkspaceID, core.Event{
			Kind:        core.EventEntrySubmitted,
			WorkspaceID: entry.WorkspaceID,
			SubjectID:   entry.ID,
			Message:     fmt.Sprintf("time entry for %s submitted", entry.Date.Format("2006-01-02")),
		})
	default:
		s.notify(ctx, core.Event{
			Kind:        core.EventEntryDecided,
			WorkspaceID: entry.WorkspaceID,
			RecipientID: entry.EmployeeID,
			SubjectID:   entry.ID,
			Message:     fmt.Sprintf("time entry for %s is now %s", entry.Date.Format("2006-01-02"), entry.Status),
		})
	}

	if action == ActionConfirm && s.recalc != nil &&
		s.settingEnabled(ctx, entry.WorkspaceID, core.SettingAccountRecalculation) {
		if err := s.recalc.Recalculate(ctx, entry.WorkspaceID, entry.EmployeeID); err != nil {
			// Balance refresh must not fail the confirmation.
			log.Printf("[Timesheet] account recalculation for %s failed: %v", entry.EmployeeID, err)
		}
	}
	return entry, nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) Get(ctx context.Context, actor core.Actor, entryID string) (*core.TimeEntry, error) {
	entry, err := s.store.GetEntry(ctx, actor.WorkspaceID, entryID)
	if err != nil {
		return nil, err
	}
	if !actor.CanActFor(entry.EmployeeID) {
		return nil, fmt.Errorf("reading another employee's entry: %w", core.ErrForbidden)
	}
	return entry, nil
}

// List returns entries in the workspace. Unlike the shift board, time
// entries are private: non-management callers only ever see their own.
func (s *Service) List(ctx context.Context, actor core.Actor, f core.EntryFilter) ([]*core.TimeEntry, error) {
	if !actor.Role.IsManagement() {
		f.EmployeeID = actor.EmployeeID
	}
	return s.store.ListEntries(ctx, actor.WorkspaceID, f)
}

// Audits returns the full audit trail of one entry, oldest first.
func (s *Service) Audits(ctx context.Context, actor core.Actor, entryID string) ([]*core.TimeEntryAudit, error) {
	entry, err := s.store.GetEntry(ctx, actor.WorkspaceID, entryID)
	if err != nil {
		return nil, err
	}
	if !actor.CanActFor(entry.EmployeeID) {
		return nil, fmt.Errorf("reading another employee's audit trail: %w", core.ErrForbidden)
	}
	return s.store.ListAudit(ctx, actor.WorkspaceID, entryID)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// ensureMonthOpen rejects mutations inside a locked payroll month.
func (s *Service) ensureMonthOpen(ctx context.Context, workspaceID string, date time.Time) error {
	mc, err := s.store.GetMonthClose(ctx, workspaceID, date.Year(), int(date.Month()))
	if core.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking month close: %w", err)
	}
	if mc.Locked() {
		return fmt.Errorf("%04d-%02d: %w", mc.Year, mc.Month, core.ErrMonthLocked)
	}
	return nil
}

// checkEntryOverlap rejects a second entry occupying the same interval
// on the same day. Rejected entries don't count.
func (s *Service) checkEntryOverlap(ctx context.Context, workspaceID, employeeID string, date time.Time, start, end, excludeID string) error {
	existing, err := s.store.ListEntries(ctx, workspaceID, core.EntryFilter{
		EmployeeID: employeeID, From: date, To: date,
	})
	if err != nil {
		return fmt.Errorf("loading same-day entries: %w", err)
	}
	s0 := timecalc.ParseHHMM(start)
	e0 := timecalc.ParseHHMM(end)
	if e0 <= s0 {
		e0 += timecalc.MinutesPerDay
	}
	for _, other := range existing {
		if other.ID == excludeID || other.Status == core.EntryRejected || other.EndTime == "" {
			continue
		}
		s1 := timecalc.ParseHHMM(other.StartTime)
		e1 := timecalc.ParseHHMM(other.EndTime)
		if e1 <= s1 {
			e1 += timecalc.MinutesPerDay
		}
		if s0 < e1 && s1 < e0 {
			return &core.ConflictError{Conflicts: []core.Conflict{{
				Kind:       core.ConflictOverlap,
				EmployeeID: employeeID,
				RefID:      other.ID,
				Detail:     fmt.Sprintf("overlaps entry %s-%s", other.StartTime, other.EndTime),
			}}}
		}
	}
	return nil
}

func (s *Service) settingEnabled(ctx context.Context, workspaceID, key string) bool {
	settings, err := s.store.ListSettings(ctx, workspaceID)
	if err != nil {
		log.Printf("[Timesheet] loading settings for %s failed, assuming defaults: %v", workspaceID, err)
		return true
	}
	for _, st := range settings {
		if st.Key == key {
			return st.Enabled
		}
	}
	return true
}

func (s *Service) audit(ctx context.Context, e *core.TimeEntry, action core.AuditAction, actor core.Actor, comment string, changes map[string]core.FieldChange) {
	err := s.store.AppendAudit(ctx, &core.TimeEntryAudit{
		ID:          uuid.NewString(),
		TimeEntryID: e.ID,
		WorkspaceID: e.WorkspaceID,
		Action:      action,
		Changes:     changes,
		Comment:     comment,
		PerformedBy: actor.EmployeeID,
		PerformedAt: s.now(),
	})
	if err != nil {
		log.Printf("[Timesheet] audit write for entry %s failed: %v", e.ID, err)
	}
}

func (s *Service) notify(ctx context.Context, e core.Event) {
	if s.notifier == nil || !s.settingEnabled(ctx, e.WorkspaceID, core.SettingNotifications) {
		return
	}
	s.notifier.Notify(ctx, e)
}

func (s *Service) notifyManagers(ctx context.Context, workspaceID string, e core.Event) {
	if s.notifier == nil || !s.settingEnabled(ctx, workspaceID, core.SettingNotifications) {
		return
	}
	employees, err := s.store.ListEmployees(ctx, workspaceID)
	if err != nil {
		log.Printf("[Timesheet] listing managers for %s failed: %v", workspaceID, err)
		return
	}
	for _, emp := range employees {
		if emp.Role.IsManagement() {
			e.RecipientID = emp.ID
			s.notifier.Notify(ctx, e)
		}
	}
}

func fieldErrors(in []timecalc.FieldError) []core.FieldError {
	out := make([]core.FieldError, len(in))
	for i, fe := range in {
		out[i] = core.FieldError{Field: fe.Field, Message: fe.Message}
	}
	return out
}
