/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract:
  dates travel as "2006-01-02", clock times as "HH:mm", timestamps
  as RFC 3339, durations as minutes.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation lives in the services, not here. DTOs are pure carriers;
  the services return core.ValidationError with per-field detail and
  the handlers translate that to a 422.

SEE ALSO:
  - handlers.go: Uses these types
  - core/types.go: The domain model behind them
*/
package api

import (
	"time"

	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/timecalc"
)

// =============================================================================
// SHIFTS
// =============================================================================

type ShiftDTO struct {
	ID               string `json:"id"`
	Date             string `json:"date"`
	StartTime        string `json:"startTime"`
	EndTime          string `json:"endTime"`
	EmployeeID       string `json:"employeeId,omitempty"`
	LocationID       string `json:"locationId,omitempty"`
	Notes            string `json:"notes,omitempty"`
	Status           string `json:"status"`
	IsNightShift     bool   `json:"isNightShift"`
	IsSundayShift    bool   `json:"isSundayShift"`
	IsHolidayShift   bool   `json:"isHolidayShift"`
	SurchargePercent int    `json:"surchargePercent"`
	CreatedAt        string `json:"createdAt,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
}

type CreateShiftRequest struct {
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	EmployeeID  string `json:"employeeId"`
	LocationID  string `json:"locationId"`
	Notes       string `json:"notes"`
	RepeatWeeks int    `json:"repeatWeeks"`
}

type UpdateShiftRequest struct {
	Date       *string `json:"date"`
	StartTime  *string `json:"startTime"`
	EndTime    *string `json:"endTime"`
	EmployeeID *string `json:"employeeId"`
	LocationID *string `json:"locationId"`
	Notes      *string `json:"notes"`
}

// =============================================================================
// ABSENCES
// =============================================================================

type AbsenceDTO struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employeeId"`
	Category     string  `json:"category"`
	StartDate    string  `json:"startDate"`
	EndDate      string  `json:"endDate"`
	HalfDayStart bool    `json:"halfDayStart"`
	HalfDayEnd   bool    `json:"halfDayEnd"`
	TotalDays    float64 `json:"totalDays"`
	Reason       string  `json:"reason,omitempty"`
	Status       string  `json:"status"`
	ReviewedBy   string  `json:"reviewedBy,omitempty"`
	ReviewedAt   string  `json:"reviewedAt,omitempty"`
	ReviewNote   string  `json:"reviewNote,omitempty"`
	CreatedAt    string  `json:"createdAt,omitempty"`
}

type CreateAbsenceRequest struct {
	EmployeeID   string `json:"employeeId"`
	Category     string `json:"category"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	HalfDayStart bool   `json:"halfDayStart"`
	HalfDayEnd   bool   `json:"halfDayEnd"`
	Reason       string `json:"reason"`
}

// DecideRequest approves or rejects a pending absence.
type DecideRequest struct {
	Status string `json:"status"` // "APPROVED" or "REJECTED"
	Note   string `json:"note"`
}

// =============================================================================
// SWAP & CHANGE REQUESTS
// =============================================================================

type SwapDTO struct {
	ID            string `json:"id"`
	ShiftID       string `json:"shiftId"`
	RequesterID   string `json:"requesterId"`
	TargetID      string `json:"targetId,omitempty"`
	TargetShiftID string `json:"targetShiftId,omitempty"`
	Message       string `json:"message,omitempty"`
	Status        string `json:"status"`
	ReviewedBy    string `json:"reviewedBy,omitempty"`
	ReviewedAt    string `json:"reviewedAt,omitempty"`
	ReviewNote    string `json:"reviewNote,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

type CreateSwapRequest struct {
	ShiftID       string `json:"shiftId"`
	TargetID      string `json:"targetId"`
	TargetShiftID string `json:"targetShiftId"`
	Message       string `json:"message"`
}

type ChangeDTO struct {
	ID          string  `json:"id"`
	ShiftID     string  `json:"shiftId"`
	RequesterID string  `json:"requesterId"`
	NewDate     string  `json:"newDate,omitempty"`
	NewStart    string  `json:"newStart,omitempty"`
	NewEnd      string  `json:"newEnd,omitempty"`
	NewNotes    *string `json:"newNotes,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Status      string  `json:"status"`
	ReviewedBy  string  `json:"reviewedBy,omitempty"`
	ReviewedAt  string  `json:"reviewedAt,omitempty"`
	ReviewNote  string  `json:"reviewNote,omitempty"`
	CreatedAt   string  `json:"createdAt,omitempty"`
}

type CreateChangeRequest struct {
	ShiftID  string  `json:"shiftId"`
	NewDate  string  `json:"newDate"`
	NewStart string  `json:"newStart"`
	NewEnd   string  `json:"newEnd"`
	NewNotes *string `json:"newNotes"`
	Reason   string  `json:"reason"`
}

// ReviewRequest carries the optional note of an approve/reject call.
type ReviewRequest struct {
	Note string `json:"note"`
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

type EntryDTO struct {
	ID           string `json:"id"`
	EmployeeID   string `json:"employeeId"`
	ShiftID      string `json:"shiftId,omitempty"`
	LocationID   string `json:"locationId,omitempty"`
	Date         string `json:"date"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime,omitempty"`
	BreakStart   string `json:"breakStart,omitempty"`
	BreakEnd     string `json:"breakEnd,omitempty"`
	BreakMinutes int    `json:"breakMinutes"`
	GrossMinutes int    `json:"grossMinutes"`
	NetMinutes   int    `json:"netMinutes"`
	NetHours     string `json:"netHours"` // industrial, e.g. "9,25"
	Remarks      string `json:"remarks,omitempty"`
	Status       string `json:"status"`
	IsLiveClock  bool   `json:"isLiveClock,omitempty"`
	ClockInAt    string `json:"clockInAt,omitempty"`
	ClockOutAt   string `json:"clockOutAt,omitempty"`
	OnBreak      bool   `json:"onBreak,omitempty"`
	SubmittedAt  string `json:"submittedAt,omitempty"`
	ConfirmedAt  string `json:"confirmedAt,omitempty"`
	ConfirmedBy  string `json:"confirmedBy,omitempty"`
}

type CreateEntryRequest struct {
	EmployeeID   string `json:"employeeId"`
	ShiftID      string `json:"shiftId"`
	LocationID   string `json:"locationId"`
	Date         string `json:"date"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	BreakStart   string `json:"breakStart"`
	BreakEnd     string `json:"breakEnd"`
	BreakMinutes int    `json:"breakMinutes"`
	Remarks      string `json:"remarks"`
}

type UpdateEntryRequest struct {
	Date         *string `json:"date"`
	StartTime    *string `json:"startTime"`
	EndTime      *string `json:"endTime"`
	BreakStart   *string `json:"breakStart"`
	BreakEnd     *string `json:"breakEnd"`
	BreakMinutes *int    `json:"breakMinutes"`
	Remarks      *string `json:"remarks"`
	LocationID   *string `json:"locationId"`
}

// StatusRequest runs one approval-workflow action on an entry.
type StatusRequest struct {
	Action  string `json:"action"` // submit|approve|reject|request_correction|confirm
	Comment string `json:"comment"`
}

// ClockRequest is one punch.
type ClockRequest struct {
	Action     string   `json:"action"` // in|out|break_start|break_end
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
	LocationID string   `json:"locationId"`
}

type AuditDTO struct {
	ID          string                      `json:"id"`
	Action      string                      `json:"action"`
	Changes     map[string]core.FieldChange `json:"changes,omitempty"`
	Comment     string                      `json:"comment,omitempty"`
	PerformedBy string                      `json:"performedBy"`
	PerformedAt string                      `json:"performedAt"`
}

// =============================================================================
// AUTOMATION & PAYROLL
// =============================================================================

type SettingDTO struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

type UpdateSettingRequest struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

type MonthCloseDTO struct {
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Status     string `json:"status"`
	LockedBy   string `json:"lockedBy,omitempty"`
	LockedAt   string `json:"lockedAt,omitempty"`
	ExportedAt string `json:"exportedAt,omitempty"`
}

// MonthCloseRequest drives lock/unlock/export. Year/month zero on a
// lock means "previous month".
type MonthCloseRequest struct {
	Action string `json:"action"` // lock|unlock|export
	Year   int    `json:"year"`
	Month  int    `json:"month"`
}

// SweepResultDTO reports one workspace of a scheduler-secret sweep.
type SweepResultDTO struct {
	WorkspaceID string `json:"workspaceId"`
	Count       int    `json:"count"`
	Error       string `json:"error,omitempty"`
}

type HolidayDTO struct {
	Date       string `json:"date"`
	Name       string `json:"name"`
	Nationwide bool   `json:"nationwide"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Details   string            `json:"details,omitempty"`
	Fields    []core.FieldError `json:"fields,omitempty"`
	Conflicts []core.Conflict   `json:"conflicts,omitempty"`
}

// =============================================================================
// MAPPING
// =============================================================================

const dateFormat = "2006-01-02"

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func shiftDTO(s *core.Shift) ShiftDTO {
	return ShiftDTO{
		ID:               s.ID,
		Date:             s.Date.Format(dateFormat),
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		EmployeeID:       s.EmployeeID,
		LocationID:       s.LocationID,
		Notes:            s.Notes,
		Status:           string(s.Status),
		IsNightShift:     s.IsNightShift,
		IsSundayShift:    s.IsSundayShift,
		IsHolidayShift:   s.IsHolidayShift,
		SurchargePercent: s.SurchargePercent,
		CreatedAt:        s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        s.UpdatedAt.Format(time.RFC3339),
	}
}

func shiftDTOs(shifts []*core.Shift) []ShiftDTO {
	out := make([]ShiftDTO, len(shifts))
	for i, s := range shifts {
		out[i] = shiftDTO(s)
	}
	return out
}

func absenceDTO(a *core.AbsenceRequest) AbsenceDTO {
	return AbsenceDTO{
		ID:           a.ID,
		EmployeeID:   a.EmployeeID,
		Category:     string(a.Category),
		StartDate:    a.StartDate.Format(dateFormat),
		EndDate:      a.EndDate.Format(dateFormat),
		HalfDayStart: a.HalfDayStart,
		HalfDayEnd:   a.HalfDayEnd,
		TotalDays:    a.TotalDays,
		Reason:       a.Reason,
		Status:       string(a.Status),
		ReviewedBy:   a.ReviewedBy,
		ReviewedAt:   fmtTime(a.ReviewedAt),
		ReviewNote:   a.ReviewNote,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
}

func swapDTO(r *core.SwapRequest) SwapDTO {
	return SwapDTO{
		ID:            r.ID,
		ShiftID:       r.ShiftID,
		RequesterID:   r.RequesterID,
		TargetID:      r.TargetID,
		TargetShiftID: r.TargetShiftID,
		Message:       r.Message,
		Status:        string(r.Status),
		ReviewedBy:    r.ReviewedBy,
		ReviewedAt:    fmtTime(r.ReviewedAt),
		ReviewNote:    r.ReviewNote,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
}

func changeDTO(r *core.ChangeRequest) ChangeDTO {
	dto := ChangeDTO{
		ID:          r.ID,
		ShiftID:     r.ShiftID,
		RequesterID: r.RequesterID,
		NewStart:    r.NewStart,
		NewEnd:      r.NewEnd,
		NewNotes:    r.NewNotes,
		Reason:      r.Reason,
		Status:      string(r.Status),
		ReviewedBy:  r.ReviewedBy,
		ReviewedAt:  fmtTime(r.ReviewedAt),
		ReviewNote:  r.ReviewNote,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
	if r.NewDate != nil {
		dto.NewDate = r.NewDate.Format(dateFormat)
	}
	return dto
}

func entryDTO(e *core.TimeEntry) EntryDTO {
	return EntryDTO{
		ID:           e.ID,
		EmployeeID:   e.EmployeeID,
		ShiftID:      e.ShiftID,
		LocationID:   e.LocationID,
		Date:         e.Date.Format(dateFormat),
		StartTime:    e.StartTime,
		EndTime:      e.EndTime,
		BreakStart:   e.BreakStart,
		BreakEnd:     e.BreakEnd,
		BreakMinutes: e.BreakMinutes,
		GrossMinutes: e.GrossMinutes,
		NetMinutes:   e.NetMinutes,
		NetHours:     timecalc.FormatIndustrial(e.NetMinutes),
		Remarks:      e.Remarks,
		Status:       string(e.Status),
		IsLiveClock:  e.IsLiveClock,
		ClockInAt:    fmtTime(e.ClockInAt),
		ClockOutAt:   fmtTime(e.ClockOutAt),
		OnBreak:      e.ActiveBreakStart != nil,
		SubmittedAt:  fmtTime(e.SubmittedAt),
		ConfirmedAt:  fmtTime(e.ConfirmedAt),
		ConfirmedBy:  e.ConfirmedBy,
	}
}

func entryDTOs(entries []*core.TimeEntry) []EntryDTO {
	out := make([]EntryDTO, len(entries))
	for i, e := range entries {
		out[i] = entryDTO(e)
	}
	return out
}

func auditDTO(a *core.TimeEntryAudit) AuditDTO {
	return AuditDTO{
		ID:          a.ID,
		Action:      string(a.Action),
		Changes:     a.Changes,
		Comment:     a.Comment,
		PerformedBy: a.PerformedBy,
		PerformedAt: a.PerformedAt.Format(time.RFC3339),
	}
}

func monthCloseDTO(mc *core.MonthClose) MonthCloseDTO {
	return MonthCloseDTO{
		Year:       mc.Year,
		Month:      mc.Month,
		Status:     string(mc.Status),
		LockedBy:   mc.LockedBy,
		LockedAt:   fmtTime(mc.LockedAt),
		ExportedAt: fmtTime(mc.ExportedAt),
	}
}
