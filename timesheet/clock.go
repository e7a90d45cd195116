/*
clock.go - Live punch clock

PURPOSE:
  Employees punch in and out from the terminal or their phone; the
  clock keeps one open live entry per employee and turns it into a
  normal DRAFT time entry at clock-out, ready for the approval
  workflow.

KEY CONCEPTS:
  - One open entry: a second clock-in while one is running is an error
  - Local calendar date: the entry's date is the clock-in date in the
    configured timezone, so a 23:30 clock-in lands on the right day
  - Open breaks close themselves at clock-out
  - The legal-break floor applies at clock-out, same as manual creation

SEE ALSO:
  - service.go: shared helpers (month lock, settings, audit)
*/
package timesheet

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/timecalc"
)

// ClockAction is one punch-clock move.
type ClockAction string

const (
	ClockIn    ClockAction = "in"
	ClockOut   ClockAction = "out"
	BreakStart ClockAction = "break_start"
	BreakEnd   ClockAction = "break_end"
)

// ClockInput carries the optional GPS stamp and location of a punch.
type ClockInput struct {
	Lat        *float64
	Lng        *float64
	LocationID string
}

// Clock dispatches one punch-clock action for the acting employee.
func (s *Service) Clock(ctx context.Context, actor core.Actor, action ClockAction, in ClockInput) (*core.TimeEntry, error) {
	switch action {
	case ClockIn:
		return s.clockIn(ctx, actor, in)
	case ClockOut:
		return s.clockOut(ctx, actor, in)
	case BreakStart:
		return s.breakStart(ctx, actor)
	case BreakEnd:
		return s.breakEnd(ctx, actor)
	}
	return nil, fmt.Errorf("%w: unknown clock action %q", core.ErrValidation, action)
}

// ClockStatus returns the employee's running live entry, or nil when
// not clocked in.
func (s *Service) ClockStatus(ctx context.Context, actor core.Actor) (*core.TimeEntry, error) {
	entry, err := s.store.FindOpenClock(ctx, actor.WorkspaceID, actor.EmployeeID)
	if core.IsNotFound(err) {
		return nil, nil
	}
	return entry, err
}

func (s *Service) clockIn(ctx context.Context, actor core.Actor, in ClockInput) (*core.TimeEntry, error) {
	if _, err := s.store.FindOpenClock(ctx, actor.WorkspaceID, actor.EmployeeID); err == nil {
		return nil, fmt.Errorf("already clocked in: %w", core.ErrClockState)
	} else if !core.IsNotFound(err) {
		return nil, fmt.Errorf("checking clock state: %w", err)
	}

	now := s.now()
	local := now.In(s.location())
	date := timecalc.DateOnly(local)
	if err := s.ensureMonthOpen(ctx, actor.WorkspaceID, date); err != nil {
		return nil, err
	}

	entry := &core.TimeEntry{
		ID:          uuid.NewString(),
		WorkspaceID: actor.WorkspaceID,
		EmployeeID:  actor.EmployeeID,
		LocationID:  in.LocationID,
		Date:        date,
		StartTime:   local.Format("15:04"),
		Status:      core.EntryDraft,
		IsLiveClock: true,
		ClockInAt:   &now,
		ClockInLat:  in.Lat,
		ClockInLng:  in.Lng,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("persisting clock-in: %w", err)
	}
	s.audit(ctx, entry, core.AuditCreated, actor, "clock-in", nil)
	return entry, nil
}

func (s *Service) breakStart(ctx context.Context, actor core.Actor) (*core.TimeEntry, error) {
	entry, err := s.openClock(ctx, actor)
	if err != nil {
		return nil, err
	}
	if entry.ActiveBreakStart != nil {
		return nil, fmt.Errorf("a break is already running: %w", core.ErrClockState)
	}
	now := s.now()
	entry.ActiveBreakStart = &now
	entry.UpdatedAt = now
	if err := s.store.UpdateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("persisting break start: %w", err)
	}
	return entry, nil
}

func (s *Service) breakEnd(ctx context.Context, actor core.Actor) (*core.TimeEntry, error) {
	entry, err := s.openClock(ctx, actor)
	if err != nil {
		return nil, err
	}
	if entry.ActiveBreakStart == nil {
		return nil, fmt.Errorf("no break is running: %w", core.ErrClockState)
	}
	now := s.now()
	entry.BreakMinutes += elapsedMinutes(*entry.ActiveBreakStart, now)
	entry.ActiveBreakStart = nil
	entry.UpdatedAt = now
	if err := s.store.UpdateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("persisting break end: %w", err)
	}
	return entry, nil
}

func (s *Service) clockOut(ctx context.Context, actor core.Actor, in ClockInput) (*core.TimeEntry, error) {
	entry, err := s.openClock(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := s.ensureMonthOpen(ctx, actor.WorkspaceID, entry.Date); err != nil {
		return nil, err
	}

	now := s.now()
	if entry.ActiveBreakStart != nil {
		// Forgotten breaks end at clock-out.
		entry.BreakMinutes += elapsedMinutes(*entry.ActiveBreakStart, now)
		entry.ActiveBreakStart = nil
	}

	local := now.In(s.location())
	entry.EndTime = local.Format("15:04")
	entry.GrossMinutes = timecalc.GrossMinutes(entry.StartTime, entry.EndTime)
	if s.settingEnabled(ctx, actor.WorkspaceID, core.SettingLegalBreak) {
		entry.BreakMinutes = timecalc.LegalMinimumBreak(entry.GrossMinutes, entry.BreakMinutes)
	}
	entry.NetMinutes = timecalc.NetMinutes(entry.GrossMinutes, entry.BreakMinutes)
	entry.ClockOutAt = &now
	entry.ClockOutLat = in.Lat
	entry.ClockOutLng = in.Lng
	entry.UpdatedAt = now

	if err := s.store.UpdateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("persisting clock-out: %w", err)
	}
	s.audit(ctx, entry, core.AuditEdited, actor, "clock-out", nil)
	return entry, nil
}

func (s *Service) openClock(ctx context.Context, actor core.Actor) (*core.TimeEntry, error) {
	entry, err := s.store.FindOpenClock(ctx, actor.WorkspaceID, actor.EmployeeID)
	if core.IsNotFound(err) {
		return nil, fmt.Errorf("not clocked in: %w", core.ErrClockState)
	}
	if err != nil {
		return nil, fmt.Errorf("checking clock state: %w", err)
	}
	return entry, nil
}

func elapsedMinutes(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Minutes()))
}
