/*
entries.go - Time-entry generation from past shifts

The nightly sweep turns yesterday's planned shifts into DRAFT time
entries mirroring the shift times, with the statutory break already
deducted, and marks the shifts COMPLETED. Two guards make the rule
idempotent: the shift-to-entry link, and a same-times duplicate check
for entries recorded by hand.
*/
package automation

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/timecalc"
)

// GenerateTimeEntries materializes entries for past assigned shifts
// that have none yet. Returns the number created.
func (s *Service) GenerateTimeEntries(ctx context.Context, workspaceID string) (int, error) {
	if !s.settingEnabled(ctx, workspaceID, core.SettingAutoCreateEntries) {
		return 0, nil
	}

	now := s.now()
	cutoff := timecalc.DateOnly(now)
	shifts, err := s.store.ListUncompletedPast(ctx, workspaceID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing past shifts: %w", err)
	}

	legalBreak := s.settingEnabled(ctx, workspaceID, core.SettingLegalBreak)
	created := 0
	for _, shift := range shifts {
		dup, err := s.handRecordedDuplicate(ctx, shift)
		if err != nil {
			return created, err
		}
		if !dup {
			gross := timecalc.GrossMinutes(shift.StartTime, shift.EndTime)
			brk := 0
			if legalBreak {
				brk = timecalc.LegalMinimumBreak(gross, 0)
			}
			entry := &core.TimeEntry{
				ID:           uuid.NewString(),
				WorkspaceID:  workspaceID,
				EmployeeID:   shift.EmployeeID,
				ShiftID:      shift.ID,
				LocationID:   shift.LocationID,
				Date:         shift.Date,
				StartTime:    shift.StartTime,
				EndTime:      shift.EndTime,
				BreakMinutes: brk,
				GrossMinutes: gross,
				NetMinutes:   timecalc.NetMinutes(gross, brk),
				Remarks:      "generated from shift plan",
				Status:       core.EntryDraft,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.store.CreateEntry(ctx, entry); err != nil {
				log.Printf("[Automation] generating entry for shift %s failed: %v", shift.ID, err)
				continue
			}
			created++
		}

		shift.Status = core.ShiftCompleted
		shift.UpdatedAt = now
		if err := s.store.UpdateShift(ctx, shift); err != nil {
			log.Printf("[Automation] completing shift %s failed: %v", shift.ID, err)
		}
	}
	return created, nil
}

// handRecordedDuplicate reports whether the employee already recorded
// an entry with the shift's exact times, without the shift link.
func (s *Service) handRecordedDuplicate(ctx context.Context, shift *core.Shift) (bool, error) {
	entries, err := s.store.ListEntries(ctx, shift.WorkspaceID, core.EntryFilter{
		EmployeeID: shift.EmployeeID,
		From:       shift.Date,
		To:         shift.Date,
	})
	if err != nil {
		return false, fmt.Errorf("checking for duplicate entries: %w", err)
	}
	for _, e := range entries {
		if e.Status == core.EntryRejected {
			continue
		}
		if e.StartTime == shift.StartTime && e.EndTime == shift.EndTime {
			return true, nil
		}
	}
	return false, nil
}
