/*
store.go - Persistence interfaces between domain logic and the database

PURPOSE:
  Defines the interface each service depends on. The sqlite package
  implements all of them on one handle; tests may substitute narrower
  fakes. Every method is workspace-scoped: a record from another
  workspace behaves exactly like a missing record.

KEY INTERFACES:
  ShiftStore:      shift CRUD plus the atomic claim and reassignment ops
  AbsenceStore:    absence requests and the blocking-overlap query
  RequestStore:    swap and change requests
  TimeEntryStore:  entries, append-only audit, open-clock lookup
  AccountStore:    time accounts and month-close records
  SettingsStore:   automation toggles
  DirectoryStore:  employees and workspaces

ATOMIC OPERATIONS:
  The read-modify-write races in this domain are resolved in storage,
  not in services:
  - ClaimShift:     compare-and-set OPEN -> SCHEDULED
  - ReassignShifts: both legs of a swap in one transaction
  - ApplyChange:    shift update + request completion in one transaction
  A service never issues two dependent writes for these.

SEE ALSO:
  - store/sqlite/sqlite.go: the production implementation
  - types.go: the records moved through these interfaces
*/
package core

import (
	"context"
	"time"
)

// =============================================================================
// SHIFTS
// =============================================================================

// ShiftFilter narrows shift listings. Zero values mean "no constraint".
type ShiftFilter struct {
	EmployeeID string
	From       time.Time
	To         time.Time // inclusive date bound
	Statuses   []ShiftStatus
	OpenOnly   bool
}

type ShiftStore interface {
	CreateShift(ctx context.Context, s *Shift) error
	GetShift(ctx context.Context, workspaceID, id string) (*Shift, error)
	UpdateShift(ctx context.Context, s *Shift) error
	ListShifts(ctx context.Context, workspaceID string, f ShiftFilter) ([]*Shift, error)

	// ClaimShift atomically moves an OPEN shift to SCHEDULED for the
	// employee. Returns ErrShiftTaken when the shift is no longer open.
	ClaimShift(ctx context.Context, workspaceID, shiftID, employeeID string) (*Shift, error)

	// ReassignShifts applies a swap in one transaction: shiftID goes to
	// newEmployee, and counterShiftID (when set) goes to counterEmployee.
	// The swap request identified by requestID is marked COMPLETED in the
	// same transaction.
	ReassignShifts(ctx context.Context, workspaceID, requestID, shiftID, newEmployee, counterShiftID, counterEmployee string) error

	// ApplyChange updates the shift with the request's new attributes and
	// marks the change request APPROVED in one transaction.
	ApplyChange(ctx context.Context, workspaceID string, cr *ChangeRequest, updated *Shift) error

	// ListUncompletedPast returns SCHEDULED shifts whose date is before
	// cutoff and that have no linked time entry. Feeds entry generation.
	ListUncompletedPast(ctx context.Context, workspaceID string, cutoff time.Time) ([]*Shift, error)
}

// =============================================================================
// ABSENCES
// =============================================================================

type AbsenceFilter struct {
	EmployeeID string
	Statuses   []AbsenceStatus
	From       time.Time
	To         time.Time
}

type AbsenceStore interface {
	CreateAbsence(ctx context.Context, a *AbsenceRequest) error
	GetAbsence(ctx context.Context, workspaceID, id string) (*AbsenceRequest, error)
	UpdateAbsence(ctx context.Context, a *AbsenceRequest) error
	ListAbsences(ctx context.Context, workspaceID string, f AbsenceFilter) ([]*AbsenceRequest, error)

	// ListBlockingAbsences returns PENDING and APPROVED absences for the
	// employee whose date range intersects [from, to].
	ListBlockingAbsences(ctx context.Context, workspaceID, employeeID string, from, to time.Time) ([]*AbsenceRequest, error)
}

// =============================================================================
// SWAP & CHANGE REQUESTS
// =============================================================================

type RequestFilter struct {
	EmployeeID string // requester or target
	Statuses   []RequestStatus
}

type RequestStore interface {
	CreateSwap(ctx context.Context, r *SwapRequest) error
	GetSwap(ctx context.Context, workspaceID, id string) (*SwapRequest, error)
	UpdateSwap(ctx context.Context, r *SwapRequest) error
	ListSwaps(ctx context.Context, workspaceID string, f RequestFilter) ([]*SwapRequest, error)

	CreateChange(ctx context.Context, r *ChangeRequest) error
	GetChange(ctx context.Context, workspaceID, id string) (*ChangeRequest, error)
	UpdateChange(ctx context.Context, r *ChangeRequest) error
	ListChanges(ctx context.Context, workspaceID string, f RequestFilter) ([]*ChangeRequest, error)
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

type EntryFilter struct {
	EmployeeID string
	Statuses   []EntryStatus
	From       time.Time
	To         time.Time
}

type TimeEntryStore interface {
	CreateEntry(ctx context.Context, e *TimeEntry) error
	GetEntry(ctx context.Context, workspaceID, id string) (*TimeEntry, error)
	UpdateEntry(ctx context.Context, e *TimeEntry) error
	DeleteEntry(ctx context.Context, workspaceID, id string) error
	ListEntries(ctx context.Context, workspaceID string, f EntryFilter) ([]*TimeEntry, error)

	// FindOpenClock returns the employee's live entry without a clock-out,
	// or ErrNotFound.
	FindOpenClock(ctx context.Context, workspaceID, employeeID string) (*TimeEntry, error)

	// EntryExistsForShift reports whether any entry links to the shift.
	EntryExistsForShift(ctx context.Context, workspaceID, shiftID string) (bool, error)

	// SumNetMinutes totals net minutes of entries in [from, to] for the
	// employee, restricted to the given statuses.
	SumNetMinutes(ctx context.Context, workspaceID, employeeID string, from, to time.Time, statuses []EntryStatus) (int, error)

	// Audit rows are append-only. No update, no delete.
	AppendAudit(ctx context.Context, a *TimeEntryAudit) error
	ListAudit(ctx context.Context, workspaceID, entryID string) ([]*TimeEntryAudit, error)
}

// =============================================================================
// TIME ACCOUNTS & MONTH CLOSE
// =============================================================================

type AccountStore interface {
	GetAccount(ctx context.Context, workspaceID, employeeID string) (*TimeAccount, error)
	UpsertAccount(ctx context.Context, a *TimeAccount) error

	GetMonthClose(ctx context.Context, workspaceID string, year, month int) (*MonthClose, error)
	UpsertMonthClose(ctx context.Context, m *MonthClose) error
	ListMonthCloses(ctx context.Context, workspaceID string) ([]*MonthClose, error)
}

// =============================================================================
// AUTOMATION SETTINGS
// =============================================================================

type SettingsStore interface {
	// ListSettings returns the stored overrides; absent keys default to
	// enabled at the service layer.
	ListSettings(ctx context.Context, workspaceID string) ([]*AutomationSetting, error)
	UpsertSetting(ctx context.Context, s *AutomationSetting) error
}

// =============================================================================
// DIRECTORY - employees and workspaces
// =============================================================================

type DirectoryStore interface {
	CreateEmployee(ctx context.Context, e *Employee) error
	GetEmployee(ctx context.Context, workspaceID, id string) (*Employee, error)
	ListEmployees(ctx context.Context, workspaceID string) ([]*Employee, error)

	CreateWorkspace(ctx context.Context, w *Workspace) error
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)

	// ListWorkspaceIDs feeds the scheduler's all-workspaces sweeps.
	ListWorkspaceIDs(ctx context.Context) ([]string, error)
}

// Store is the full persistence surface. The sqlite implementation
// satisfies it on a single handle.
type Store interface {
	ShiftStore
	AbsenceStore
	RequestStore
	TimeEntryStore
	AccountStore
	SettingsStore
	DirectoryStore
}
