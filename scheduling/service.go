/*
Package scheduling plans who works when: shift CRUD with recurrence,
the open-shift claim flow, swap requests, change requests, and absence
requests.

PURPOSE:
  Orchestrates shifts through their whole life. Creation derives the
  night/Sunday/holiday flags and the surcharge percentage once and
  stores them on the shift; claims are a storage-level compare-and-set
  so two employees can never win the same open shift; swap and change
  approvals commit their reassignment atomically.

KEY CONCEPTS:
  - Recurrence is best-effort: week 0 must be clean, later weeks that
    collide are skipped and reported, never silently dropped
  - Derived flags are computed at write time, not query time, so
    payroll reads are cheap and historical shifts keep the surcharge
    that was in force when they were planned
  - Every mutation that gives an employee a shift runs the conflict
    detector first

DESIGN PRINCIPLES:
  1. Hard 409 on manual paths, soft fallback on automated ones
  2. Storage resolves races, services decide semantics

SEE ALSO:
  - conflict/conflict.go: the detector
  - swap.go, change.go, absence.go: the request lifecycles
  - calendar/calendar.go: holiday and surcharge rules
*/
package scheduling

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/schichtwerk/shift-engine/calendar"
	"github.com/schichtwerk/shift-engine/conflict"
	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/timecalc"
)

// MaxRepeatWeeks caps recurrence expansion.
const MaxRepeatWeeks = 52

// Store is the persistence surface this package needs.
type Store interface {
	core.ShiftStore
	core.AbsenceStore
	core.RequestStore
	core.SettingsStore
	core.DirectoryStore
}

// AbsencePolicy is the automation hook consulted when an absence is
// created or approved. Nil means every request waits for a manager.
type AbsencePolicy interface {
	// AutoDecide may approve a fresh request on the spot. It returns
	// true when it did.
	AutoDecide(ctx context.Context, a *core.AbsenceRequest) (bool, error)

	// CascadeApproval cancels shifts overlapping an approved absence
	// and returns how many it cancelled.
	CascadeApproval(ctx context.Context, a *core.AbsenceRequest) (int, error)
}

type Service struct {
	store    Store
	detector *conflict.Detector
	notifier core.Notifier
	policy   AbsencePolicy

	// Now is overridable for tests; zero value means time.Now.
	Now func() time.Time
}

func NewService(store Store, detector *conflict.Detector, notifier core.Notifier, policy AbsencePolicy) *Service {
	return &Service{store: store, detector: detector, notifier: notifier, policy: policy}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// =============================================================================
// SHIFT CREATION
// =============================================================================

type CreateShiftInput struct {
	Date        string // "2006-01-02"
	StartTime   string // "HH:mm"
	EndTime     string
	EmployeeID  string // empty = open shift
	LocationID  string
	Notes       string
	RepeatWeeks int // 0 = single shift
}

// SkippedWeek reports one recurrence week that could not be planned.
type SkippedWeek struct {
	Week   int    `json:"week"`
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

type CreateResult struct {
	Created []*core.Shift `json:"created"`
	Skipped []SkippedWeek `json:"skipped,omitempty"`
}

// Create plans a shift, optionally repeated weekly. The first week must
// be conflict-free; later weeks are best-effort and report their skips.
func (s *Service) Create(ctx context.Context, actor core.Actor, in CreateShiftInput) (*CreateResult, error) {
	if !actor.Role.IsManagement() {
		return nil, fmt.Errorf("planning shifts requires a management role: %w", core.ErrForbidden)
	}
	if err := validateShiftInput(in.Date, in.StartTime, in.EndTime); err != nil {
		return nil, err
	}
	if in.RepeatWeeks < 0 || in.RepeatWeeks > MaxRepeatWeeks {
		return nil, &core.ValidationError{Fields: []core.FieldError{
			{Field: "repeatWeeks", Message: fmt.Sprintf("must be between 0 and %d", MaxRepeatWeeks)},
		}}
	}
	first, _ := time.Parse("2006-01-02", in.Date)
	first = timecalc.DateOnly(first)

	region, err := s.region(ctx, actor.WorkspaceID)
	if err != nil {
		return nil, err
	}
	cache := calendar.NewYearCache()

	result := &CreateResult{}
	for week := 0; week <= in.RepeatWeeks; week++ {
		date := first.AddDate(0, 0, 7*week)

		if in.EmployeeID != "" {
			conflicts, err := s.detector.CheckShift(ctx, conflict.Candidate{
				WorkspaceID: actor.WorkspaceID,
				EmployeeID:  in.EmployeeID,
				Date:        date,
				StartTime:   in.StartTime,
				EndTime:     in.EndTime,
			})
			if err != nil {
				return nil, err
			}
			if len(conflicts) > 0 {
				if week == 0 {
					return nil, &core.ConflictError{Conflicts: conflicts}
				}
				result.Skipped = append(result.Skipped, SkippedWeek{
					Week:   week,
					Date:   date.Format("2006-01-02"),
					Reason: conflicts[0].Detail,
				})
				continue
			}
		}

		now := s.now()
		shift := &core.Shift{
			ID:          uuid.NewString(),
			WorkspaceID: actor.WorkspaceID,
			Date:        date,
			StartTime:   in.StartTime,
			EndTime:     in.EndTime,
			EmployeeID:  in.EmployeeID,
			LocationID:  in.LocationID,
			Notes:       in.Notes,
			Status:      core.ShiftOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if in.EmployeeID != "" {
			shift.Status = core.ShiftScheduled
		}
		deriveFlags(shift, cache, region)

		if err := s.store.CreateShift(ctx, shift); err != nil {
			return nil, fmt.Errorf("persisting shift for %s: %w", date.Format("2006-01-02"), err)
		}
		result.Created = append(result.Created, shift)
	}

	if in.EmployeeID != "" && len(result.Created) > 0 {
		s.notify(ctx, core.Event{
			Kind:        core.EventShiftAssigned,
			WorkspaceID: actor.WorkspaceID,
			RecipientID: in.EmployeeID,
			SubjectID:   result.Created[0].ID,
			Message:     fmt.Sprintf("%d shift(s) assigned starting %s %s", len(result.Created), in.Date, in.StartTime),
		})
	}
	return result, nil
}

// =============================================================================
// CLAIM
// =============================================================================

// Claim gives an open shift to the acting employee. Losing the race
// returns ErrShiftTaken; the caller may offer another shift.
func (s *Service) Claim(ctx context.Context, actor core.Actor, shiftID string) (*core.Shift, error) {
	shift, err := s.store.GetShift(ctx, actor.WorkspaceID, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status != core.ShiftOpen {
		return nil, fmt.Errorf("shift %s: %w", shiftID, core.ErrShiftTaken)
	}

	conflicts, err := s.detector.CheckShift(ctx, conflict.Candidate{
		ShiftID:     shiftID,
		WorkspaceID: actor.WorkspaceID,
		EmployeeID:  actor.EmployeeID,
		Date:        shift.Date,
		StartTime:   shift.StartTime,
		EndTime:     shift.EndTime,
	})
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &core.ConflictError{Conflicts: conflicts}
	}

	return s.store.ClaimShift(ctx, actor.WorkspaceID, shiftID, actor.EmployeeID)
}

// =============================================================================
// UPDATE / CANCEL / DELETE
// =============================================================================

type UpdateShiftInput struct {
	Date       *string
	StartTime  *string
	EndTime    *string
	EmployeeID *string // empty string unassigns (back to OPEN)
	LocationID *string
	Notes      *string
}

func (s *Service) Update(ctx context.Context, actor core.Actor, shiftID string, in UpdateShiftInput) (*core.Shift, error) {
	if !actor.Role.IsManagement() {
		return nil, fmt.Errorf("editing shifts requires a management role: %w", core.ErrForbidden)
	}
	shift, err := s.store.GetShift(ctx, actor.WorkspaceID, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status == core.ShiftCancelled || shift.Status == core.ShiftCompleted {
		return nil, fmt.Errorf("shift in status %s cannot be edited: %w", shift.Status, core.ErrInvalidTransition)
	}

	timesChanged := false
	if in.Date != nil {
		d, err := time.Parse("2006-01-02", *in.Date)
		if err != nil {
			return nil, &core.ValidationError{Fields: []core.FieldError{{Field: "date", Message: "format must be YYYY-MM-DD"}}}
		}
		d = timecalc.DateOnly(d)
		if !d.Equal(shift.Date) {
			shift.Date = d
			timesChanged = true
		}
	}
	if in.StartTime != nil && *in.StartTime != shift.StartTime {
		if !timecalc.ValidHHMM(*in.StartTime) {
			return nil, &core.ValidationError{Fields: []core.FieldError{{Field: "startTime", Message: "format must be HH:mm"}}}
		}
		shift.StartTime = *in.StartTime
		timesChanged = true
	}
	if in.EndTime != nil && *in.EndTime != shift.EndTime {
		if !timecalc.ValidHHMM(*in.EndTime) {
			return nil, &core.ValidationError{Fields: []core.FieldError{{Field: "endTime", Message: "format must be HH:mm"}}}
		}
		shift.EndTime = *in.EndTime
		timesChanged = true
	}
	assigneeChanged := false
	if in.EmployeeID != nil && *in.EmployeeID != shift.EmployeeID {
		shift.EmployeeID = *in.EmployeeID
		assigneeChanged = true
		if shift.EmployeeID == "" {
			shift.Status = core.ShiftOpen
		} else {
			shift.Status = core.ShiftScheduled
		}
	}
	if in.LocationID != nil {
		shift.LocationID = *in.LocationID
	}
	if in.Notes != nil {
		shift.Notes = *in.Notes
	}

	if (timesChanged || assigneeChanged) && shift.EmployeeID != "" {
		conflicts, err := s.detector.CheckShift(ctx, conflict.Candidate{
			ShiftID:     shift.ID,
			WorkspaceID: actor.WorkspaceID,
			EmployeeID:  shift.EmployeeID,
			Date:        shift.Date,
			StartTime:   shift.StartTime,
			EndTime:     shift.EndTime,
		})
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			return nil, &core.ConflictError{Conflicts: conflicts}
		}
	}
	if timesChanged {
		region, err := s.region(ctx, actor.WorkspaceID)
		if err != nil {
			return nil, err
		}
		deriveFlags(shift, calendar.NewYearCache(), region)
	}

	shift.UpdatedAt = s.now()
	if err := s.store.UpdateShift(ctx, shift); err != nil {
		return nil, fmt.Errorf("persisting shift update: %w", err)
	}
	if assigneeChanged && shift.EmployeeID != "" {
		s.notify(ctx, core.Event{
			Kind:        core.EventShiftAssigned,
			WorkspaceID: actor.WorkspaceID,
			RecipientID: shift.EmployeeID,
			SubjectID:   shift.ID,
			Message:     fmt.Sprintf("shift on %s %s-%s assigned to you", shift.Date.Format("2006-01-02"), shift.StartTime, shift.EndTime),
		})
	}
	return shift, nil
}

// Cancel marks a shift CANCELLED, freeing its interval for conflicts.
func (s *Service) Cancel(ctx context.Context, actor core.Actor, shiftID string) (*core.Shift, error) {
	if !actor.Role.IsManagement() {
		return nil, fmt.Errorf("cancelling shifts requires a management role: %w", core.ErrForbidden)
	}
	shift, err := s.store.GetShift(ctx, actor.WorkspaceID, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.Status == core.ShiftCancelled {
		return shift, nil
	}
	shift.Status = core.ShiftCancelled
	shift.UpdatedAt = s.now()
	if err := s.store.UpdateShift(ctx, shift); err != nil {
		return nil, fmt.Errorf("persisting cancellation: %w", err)
	}
	if shift.EmployeeID != "" {
		s.notify(ctx, core.Event{
			Kind:        core.EventShiftCancelled,
			WorkspaceID: actor.WorkspaceID,
			RecipientID: shift.EmployeeID,
			SubjectID:   shift.ID,
			Message:     fmt.Sprintf("shift on %s %s-%s was cancelled", shift.Date.Format("2006-01-02"), shift.StartTime, shift.EndTime),
		})
	}
	return shift, nil
}

func (s *Service) Get(ctx context.Context, actor core.Actor, shiftID string) (*core.Shift, error) {
	return s.store.GetShift(ctx, actor.WorkspaceID, shiftID)
}

func (s *Service) List(ctx context.Context, actor core.Actor, f core.ShiftFilter) ([]*core.Shift, error) {
	// Employees see the whole plan; that is the point of a shift board.
	return s.store.ListShifts(ctx, actor.WorkspaceID, f)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// deriveFlags stamps the calendar-derived fields on the shift.
func deriveFlags(shift *core.Shift, cache *calendar.YearCache, region string) {
	shift.IsNightShift = calendar.IsNightShift(shift.StartTime, shift.EndTime)
	shift.IsSundayShift = calendar.IsSunday(shift.Date)
	holiday, _ := cache.IsHoliday(shift.Date, region)
	shift.IsHolidayShift = holiday
	shift.SurchargePercent = calendar.SurchargePercent(shift.IsNightShift, shift.IsSundayShift, shift.IsHolidayShift)
}

func (s *Service) region(ctx context.Context, workspaceID string) (string, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return "", fmt.Errorf("loading workspace region: %w", err)
	}
	return ws.Region, nil
}

func validateShiftInput(date, start, end string) error {
	var fields []core.FieldError
	if _, err := time.Parse("2006-01-02", date); err != nil {
		fields = append(fields, core.FieldError{Field: "date", Message: "format must be YYYY-MM-DD"})
	}
	if !timecalc.ValidHHMM(start) {
		fields = append(fields, core.FieldError{Field: "startTime", Message: "format must be HH:mm"})
	}
	if !timecalc.ValidHHMM(end) {
		fields = append(fields, core.FieldError{Field: "endTime", Message: "format must be HH:mm"})
	}
	if len(fields) > 0 {
		return &core.ValidationError{Fields: fields}
	}
	return nil
}

func (s *Service) settingEnabled(ctx context.Context, workspaceID, key string) bool {
	settings, err := s.store.ListSettings(ctx, workspaceID)
	if err != nil {
		log.Printf("[Scheduling] loading settings for %s failed, assuming defaults: %v", workspaceID, err)
		return true
	}
	for _, st := range settings {
		if st.Key == key {
			return st.Enabled
		}
	}
	return true
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
		log.Printf("[Scheduling] listing managers for %s failed: %v", workspaceID, err)
		return
	}
	for _, emp := range employees {
		if emp.Role.IsManagement() {
			e.RecipientID = emp.ID
			s.notifier.Notify(ctx, e)
		}
	}
}
