/*
payroll.go - Payroll month lock, unlock, and export

A LOCKED month freezes every time-entry mutation (enforced in the
timesheet service). Locking auto-confirms the entries a manager has
already reviewed, so payroll exports never contain half-approved time.
EXPORTED is terminal and only reachable from LOCKED.
*/
package automation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/timecalc"
)

// LockResult reports one month-lock run.
type LockResult struct {
	Year      int  `json:"year"`
	Month     int  `json:"month"`
	Confirmed int  `json:"confirmed"` // reviewed entries auto-confirmed
	Already   bool `json:"already"`   // month was locked before this run
}

// LockMonth locks a payroll month. Year/month zero means the previous
// calendar month, which is what the nightly sweep wants. Re-locking a
// locked month is a no-op.
func (s *Service) LockMonth(ctx context.Context, workspaceID, lockedBy string, year, month int) (*LockResult, error) {
	now := s.now()
	if year == 0 || month == 0 {
		prev := now.AddDate(0, -1, -now.Day()+1) // first day of previous month
		year, month = prev.Year(), int(prev.Month())
	}
	if month < 1 || month > 12 {
		return nil, &core.ValidationError{Fields: []core.FieldError{
			{Field: "month", Message: "must be 1..12"},
		}}
	}

	existing, err := s.store.GetMonthClose(ctx, workspaceID, year, month)
	if err != nil && !core.IsNotFound(err) {
		return nil, fmt.Errorf("loading month close: %w", err)
	}
	if existing != nil && existing.Locked() {
		return &LockResult{Year: year, Month: month, Already: true}, nil
	}

	mc := existing
	if mc == nil {
		mc = &core.MonthClose{
			ID:          uuid.NewString(),
			WorkspaceID: workspaceID,
			Year:        year,
			Month:       month,
			CreatedAt:   now,
		}
	}
	mc.Status = core.MonthLocked
	mc.LockedBy = lockedBy
	mc.LockedAt = &now
	if err := s.store.UpsertMonthClose(ctx, mc); err != nil {
		return nil, fmt.Errorf("persisting month lock: %w", err)
	}

	confirmed, err := s.confirmReviewed(ctx, workspaceID, year, month)
	if err != nil {
		return nil, err
	}

	s.notifyManagers(ctx, workspaceID, core.Event{
		Kind:        core.EventMonthLocked,
		WorkspaceID: workspaceID,
		SubjectID:   mc.ID,
		Message:     fmt.Sprintf("payroll month %04d-%02d locked, %d entries auto-confirmed", year, month, confirmed),
	})
	return &LockResult{Year: year, Month: month, Confirmed: confirmed}, nil
}

// AutoLockMonth is the scheduler's entry point: it locks the previous
// month, but only when the workspace has the auto-lock rule enabled.
// Manual locks through LockMonth ignore the setting.
func (s *Service) AutoLockMonth(ctx context.Context, workspaceID string) (*LockResult, error) {
	if !s.settingEnabled(ctx, workspaceID, core.SettingPayrollAutoLock) {
		return &LockResult{Already: true}, nil
	}
	return s.LockMonth(ctx, workspaceID, "system", 0, 0)
}

// UnlockMonthreopens a LOCKED month for corrections. Exported months
// stay closed for good.
func (s *Service) UnlockMonth(ctx context.Context, workspaceID string, year, month int) (*core.MonthClose, error) {
	mc, err := s.store.GetMonthClose(ctx, workspaceID, year, month)
	if err != nil {
		return nil, err
	}
	if mc.Status != core.MonthLocked {
		return nil, &core.TransitionError{Entity: "month_close", From: string(mc.Status), To: string(core.MonthOpen)}
	}
	mc.Status = core.MonthOpen
	mc.LockedBy = ""
	mc.LockedAt = nil
	if err := s.store.UpsertMonthClose(ctx, mc); err != nil {
		return nil, fmt.Errorf("persisting unlock: %w", err)
	}
	return mc, nil
}

// ExportMonth marks a locked month as handed to payroll.
func (s *Service) ExportMonth(ctx context.Context, workspaceID string, year, month int) (*core.MonthClose, error) {
	mc, err := s.store.GetMonthClose(ctx, workspaceID, year, month)
	if err != nil {
		return nil, err
	}
	if mc.Status != core.MonthLocked {
		return nil, &core.TransitionError{Entity: "month_close", From: string(mc.Status), To: string(core.MonthExported)}
	}
	now := s.now()
	mc.Status = core.MonthExported
	mc.ExportedAt = &now
	if err := s.store.UpsertMonthClose(ctx, mc); err != nil {
		return nil, fmt.Errorf("persisting export: %w", err)
	}
	return mc, nil
}

// ListMonthCloses returns the workspace's close records, newest first.
func (s *Service) ListMonthCloses(ctx context.Context, workspaceID string) ([]*core.MonthClose, error) {
	return s.store.ListMonthCloses(ctx, workspaceID)
}

// confirmReviewed flips the month's REVIEWED entries to CONFIRMED.
func (s *Service) confirmReviewed(ctx context.Context, workspaceID string, year, month int) (int, error) {
	first, last := timecalc.MonthBounds(year, time.Month(month))
	entries, err := s.store.ListEntries(ctx, workspaceID, core.EntryFilter{
		From: first, To: last,
		Statuses: []core.EntryStatus{core.EntryReviewed},
	})
	if err != nil {
		return 0, fmt.Errorf("listing reviewed entries: %w", err)
	}

	now := s.now()
	confirmed := 0
	for _, entry := range entries {
		entry.Status = core.EntryConfirmed
		entry.ConfirmedAt = &now
		entry.ConfirmedBy = "system"
		entry.UpdatedAt = now
		if err := s.store.UpdateEntry(ctx, entry); err != nil {
			log.Printf("[Automation] auto-confirm of entry %s failed: %v", entry.ID, err)
			continue
		}
		confirmed++
		if err := s.store.AppendAudit(ctx, &core.TimeEntryAudit{
			ID:          uuid.NewString(),
			TimeEntryID: entry.ID,
			WorkspaceID: workspaceID,
			Action:      core.AuditConfirmed,
			Comment:     "auto-confirmed at month lock",
			PerformedBy: "system",
			PerformedAt: now,
		}); err != nil {
			log.Printf("[Automation] audit write for entry %s failed: %v", entry.ID, err)
		}
	}
	return confirmed, nil
}
