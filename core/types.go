/*
Package core defines the shared domain model of the time-compliance engine.

PURPOSE:
  Typed entity records, workspace-scoped store interfaces, the error
  taxonomy, role classes, and the notification-dispatch boundary. Every
  other package speaks in these types; no package reaches around them
  into storage or transport.

KEY CONCEPTS IN THIS FILE (types.go):
  - Shift:          a planned slot of work, with derived surcharge flags
  - AbsenceRequest: vacation/sick/etc. with an approval status
  - SwapRequest / ChangeRequest: shift reassignment and edit workflows
  - TimeEntry:      recorded work time with a six-state approval machine
  - TimeAccount:    per-employee running balance of worked vs owed time
  - MonthClose:     payroll period lock record
  - Workspace scoping: every record carries WorkspaceID; a query that
    ignores it is a correctness bug, not an authorization nit

DESIGN PRINCIPLES:
  1. Explicit records: no dynamic maps; each entity is a typed struct
  2. Denormalized shift flags: night/Sunday/holiday/surcharge are
     computed once at creation and stored for reporting
  3. Append-only audit: TimeEntryAudit rows are never updated or deleted

SEE ALSO:
  - store.go:  persistence interfaces over these records
  - errors.go: error taxonomy
  - actor.go:  role classes consulted by the state machines
*/
package core

import "time"

// =============================================================================
// SHIFT
// =============================================================================

type ShiftStatus string

const (
	ShiftOpen      ShiftStatus = "OPEN"      // no assignee, claimable
	ShiftScheduled ShiftStatus = "SCHEDULED" // assigned to an employee
	ShiftCancelled ShiftStatus = "CANCELLED"
	ShiftCompleted ShiftStatus = "COMPLETED" // in the past, time entry generated
)

type Shift struct {
	ID          string
	WorkspaceID string
	Date        time.Time // midnight UTC
	StartTime   string    // "HH:mm"
	EndTime     string    // "HH:mm"; overnight when ≤ StartTime
	EmployeeID  string    // empty = open shift
	LocationID  string
	Notes       string
	Status      ShiftStatus

	// Derived at creation from the calendar rules; refreshed explicitly
	// when the shift's date or times change.
	IsNightShift     bool
	IsSundayShift    bool
	IsHolidayShift   bool
	SurchargePercent int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assigned reports whether the shift has an employee.
func (s *Shift) Assigned() bool { return s.EmployeeID != "" }

// Active reports whether the shift still occupies its time window.
func (s *Shift) Active() bool { return s.Status != ShiftCancelled }

// =============================================================================
// ABSENCE REQUEST
// =============================================================================

type AbsenceStatus string

const (
	AbsencePending   AbsenceStatus = "PENDING"
	AbsenceApproved  AbsenceStatus = "APPROVED"
	AbsenceRejected  AbsenceStatus = "REJECTED"
	AbsenceCancelled AbsenceStatus = "CANCELLED"
)

type AbsenceCategory string

const (
	AbsenceVacation AbsenceCategory = "VACATION"
	AbsenceSick     AbsenceCategory = "SICK"
	AbsenceSpecial  AbsenceCategory = "SPECIAL"
	AbsenceUnpaid   AbsenceCategory = "UNPAID"
)

type AbsenceRequest struct {
	ID           string
	WorkspaceID  string
	EmployeeID   string
	Category     AbsenceCategory
	StartDate    time.Time
	EndDate      time.Time
	HalfDayStart bool
	HalfDayEnd   bool
	TotalDays    float64 // weekday count minus half-day adjustments
	Reason       string
	Status       AbsenceStatus

	ReviewedBy string
	ReviewedAt *time.Time
	ReviewNote string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Blocking reports whether the absence participates in the overlap
// invariant (no two PENDING/APPROVED absences may overlap).
func (a *AbsenceRequest) Blocking() bool {
	return a.Status == AbsencePending || a.Status == AbsenceApproved
}

// =============================================================================
// SWAP & CHANGE REQUESTS
// =============================================================================

type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestAccepted  RequestStatus = "ACCEPTED" // swap only: target said yes
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCompleted RequestStatus = "COMPLETED" // reassignment applied
	RequestCancelled RequestStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestCompleted || s == RequestCancelled
}

// SwapRequest asks to hand a shift to a colleague, optionally trading
// for one of theirs (two-way when TargetShiftID is set).
type SwapRequest struct {
	ID            string
	WorkspaceID   string
	ShiftID       string // the requester's shift
	RequesterID   string
	TargetID      string // employee taking over; set on accept at latest
	TargetShiftID string // two-way swaps only
	Message       string
	Status        RequestStatus

	ReviewedBy string
	ReviewedAt *time.Time
	ReviewNote string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChangeRequest asks for new attributes on an existing shift.
type ChangeRequest struct {
	ID          string
	WorkspaceID string
	ShiftID     string
	RequesterID string
	NewDate     *time.Time
	NewStart    string // empty = unchanged
	NewEnd      string
	NewNotes    *string // nil = unchanged (empty string clears)
	Reason      string
	Status      RequestStatus

	ReviewedBy string
	ReviewedAt *time.Time
	ReviewNote string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// TIME ENTRY
// =============================================================================

type EntryStatus string

const (
	EntryDraft      EntryStatus = "DRAFT"
	EntrySubmitted  EntryStatus = "SUBMITTED"
	EntryCorrection EntryStatus = "CORRECTION_REQUESTED"
	EntryReviewed   EntryStatus = "REVIEWED"
	EntryConfirmed  EntryStatus = "CONFIRMED"
	EntryRejected   EntryStatus = "REJECTED"
)

// Editable reports whether entry content may still change.
func (s EntryStatus) Editable() bool {
	return s == EntryDraft || s == EntryCorrection
}

// Terminal reports whether the approval workflow has ended.
func (s EntryStatus) Terminal() bool {
	return s == EntryConfirmed || s == EntryRejected
}

type TimeEntry struct {
	ID          string
	WorkspaceID string
	EmployeeID  string
	ShiftID     string // linked shift, when generated from one
	LocationID  string
	Date        time.Time
	StartTime   string // "HH:mm"
	EndTime     string
	BreakStart  string // optional window
	BreakEnd    string

	BreakMinutes int // effective break (post legal-minimum on create/clock-out)
	GrossMinutes int
	NetMinutes   int

	Remarks string
	Status  EntryStatus

	// Live punch-clock fields
	IsLiveClock      bool
	ClockInAt        *time.Time
	ClockOutAt       *time.Time
	ClockInLat       *float64
	ClockInLng       *float64
	ClockOutLat      *float64
	ClockOutLng      *float64
	ActiveBreakStart *time.Time // open break, nil when none

	SubmittedAt *time.Time
	ConfirmedAt *time.Time
	ConfirmedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// TIME ENTRY AUDIT - append-only
// =============================================================================

type AuditAction string

const (
	AuditCreated             AuditAction = "CREATED"
	AuditEdited              AuditAction = "EDITED"
	AuditSubmitted           AuditAction = "SUBMITTED"
	AuditApproved            AuditAction = "APPROVED"
	AuditRejected            AuditAction = "REJECTED"
	AuditCorrectionRequested AuditAction = "CORRECTION_REQUESTED"
	AuditConfirmed           AuditAction = "CONFIRMED"
)

// FieldChange records one field's old and new value in an edit diff.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type TimeEntryAudit struct {
	ID          string
	TimeEntryID string
	WorkspaceID string
	Action      AuditAction
	Changes     map[string]FieldChange // EDITED only: changed fields
	Comment     string
	PerformedBy string
	PerformedAt time.Time
}

// =============================================================================
// TIME ACCOUNT
// =============================================================================

// TimeAccount is a per-employee running balance. Worked/expected/balance
// are recomputed on demand; only the carry-over checkpoint and the last
// computed balance are stored.
type TimeAccount struct {
	ID               string
	WorkspaceID      string
	EmployeeID       string
	ContractHours    int       // weekly contract hours
	CarryoverMinutes int       // checkpoint from the previous period
	PeriodStart      time.Time // balance accumulates from here
	BalanceMinutes   int       // last computed balance
	LastCalculated   *time.Time
}

// =============================================================================
// MONTH CLOSE - payroll period lock
// =============================================================================

type MonthCloseStatus string

const (
	MonthOpen     MonthCloseStatus = "OPEN"
	MonthLocked   MonthCloseStatus = "LOCKED"
	MonthExported MonthCloseStatus = "EXPORTED" // terminal, from LOCKED only
)

type MonthClose struct {
	ID          string
	WorkspaceID string
	Year        int
	Month       int // 1..12
	Status      MonthCloseStatus
	LockedBy    string
	LockedAt    *time.Time
	ExportedAt  *time.Time
	CreatedAt   time.Time
}

// Locked reports whether time entries in this month are frozen.
func (m *MonthClose) Locked() bool {
	return m.Status == MonthLocked || m.Status == MonthExported
}

// =============================================================================
// AUTOMATION SETTING
// =============================================================================

// AutomationSetting overrides one automation default for a workspace.
// Absence of a row means "use the default" (enabled).
type AutomationSetting struct {
	WorkspaceID string
	Key         string
	Enabled     bool
	UpdatedAt   time.Time
}

// Automation setting keys. Every rule defaults to enabled.
const (
	SettingAutoApproveAbsence   = "autoApproveAbsence"
	SettingAutoApproveSwap      = "autoApproveSwap"
	SettingCascadeCancellation  = "cascadeAbsenceCancellation"
	SettingAutoCreateEntries    = "autoCreateTimeEntries"
	SettingLegalBreak           = "legalBreakEnforcement"
	SettingAccountRecalculation = "timeAccountRecalculation"
	SettingOvertimeAlerts       = "overtimeAlerts"
	SettingPayrollAutoLock      = "payrollAutoLock"
	SettingNotifications        = "notifications"
)

// SettingKeys lists every known key, in display order.
var SettingKeys = []string{
	SettingAutoApproveAbsence,
	SettingAutoApproveSwap,
	SettingCascadeCancellation,
	SettingAutoCreateEntries,
	SettingLegalBreak,
	SettingAccountRecalculation,
	SettingOvertimeAlerts,
	SettingPayrollAutoLock,
	SettingNotifications,
}

// =============================================================================
// EMPLOYEE & WORKSPACE - minimal collaborator records
// =============================================================================

// Employee is the slim record this engine needs: identity for audit
// trails, the workspace role, and notification routing. Full HR data
// lives outside the core.
type Employee struct {
	ID          string
	WorkspaceID string
	FirstName   string
	LastName    string
	Email       string
	Role        Role
	CreatedAt   time.Time
}

func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// Workspace is a tenant. The engine only needs its ID and holiday region.
type Workspace struct {
	ID        string
	Name      string
	Region    string // Bundesland code for holiday computation
	CreatedAt time.Time
}
