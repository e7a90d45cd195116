/*
Package sqlite provides the SQLite-backed implementation of the core
storage interfaces.

PURPOSE:
  Implements every interface in core/store.go on a single handle. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  workspaces, employees:  tenant directory
  shifts:                 planned work, with denormalized surcharge flags
  absences:               absence requests
  swap_requests, change_requests
  time_entries:           recorded work + live punch-clock state
  time_entry_audit:       append-only workflow trail
  time_accounts, month_closes, automation_settings

ATOMIC OPERATIONS:
  ClaimShift, ReassignShifts and ApplyChange resolve their races here:
  ClaimShift is a single conditional UPDATE (compare-and-set on the
  OPEN status); the other two run both writes inside one SQL
  transaction so a swap can never half-apply.

INDEXES:
  - idx_shifts_employee_date:    conflict detection (hot path)
  - idx_unique_open_clock:       one running live entry per employee
  - idx_unique_shift_entry:      entry generation idempotency
  - idx_unique_month_close:      one close record per workspace-month

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL, database-level
  concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: readers don't block, single writer, better crash
  recovery.

USAGE:
  store, err := sqlite.New("./data/shifts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - core/store.go: interface definitions
  - timesheet.go, records.go: the remaining record families
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/schichtwerk/shift-engine/core"
)

// Store implements all core storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ core.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and a pool would
	// give every ":memory:" connection its own empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		region TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_employees_workspace
		ON employees(workspace_id);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		employee_id TEXT NOT NULL DEFAULT '',
		location_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		is_night INTEGER NOT NULL DEFAULT 0,
		is_sunday INTEGER NOT NULL DEFAULT 0,
		is_holiday INTEGER NOT NULL DEFAULT 0,
		surcharge_percent INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	-- Conflict detection scans an employee's neighborhood of days.
	CREATE INDEX IF NOT EXISTS idx_shifts_employee_date
		ON shifts(workspace_id, employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_shifts_workspace_date
		ON shifts(workspace_id, date);

	CREATE TABLE IF NOT EXISTS absences (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		category TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		half_day_start INTEGER NOT NULL DEFAULT 0,
		half_day_end INTEGER NOT NULL DEFAULT 0,
		total_days REAL NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		reviewed_by TEXT NOT NULL DEFAULT '',
		reviewed_at TEXT,
		review_note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_absences_employee
		ON absences(workspace_id, employee_id, status);

	CREATE TABLE IF NOT EXISTS swap_requests (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		shift_id TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		target_id TEXT NOT NULL DEFAULT '',
		target_shift_id TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		reviewed_by TEXT NOT NULL DEFAULT '',
		reviewed_at TEXT,
		review_note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_swaps_workspace
		ON swap_requests(workspace_id, status);

	CREATE TABLE IF NOT EXISTS change_requests (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		shift_id TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		new_date TEXT,
		new_start TEXT NOT NULL DEFAULT '',
		new_end TEXT NOT NULL DEFAULT '',
		new_notes TEXT,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		reviewed_by TEXT NOT NULL DEFAULT '',
		reviewed_at TEXT,
		review_note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_changes_workspace
		ON change_requests(workspace_id, status);

	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		shift_id TEXT,
		location_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL DEFAULT '',
		break_start TEXT NOT NULL DEFAULT '',
		break_end TEXT NOT NULL DEFAULT '',
		break_minutes INTEGER NOT NULL DEFAULT 0,
		gross_minutes INTEGER NOT NULL DEFAULT 0,
		net_minutes INTEGER NOT NULL DEFAULT 0,
		remarks TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		is_live_clock INTEGER NOT NULL DEFAULT 0,
		clock_in_at TEXT,
		clock_out_at TEXT,
		clock_in_lat REAL,
		clock_in_lng REAL,
		clock_out_lat REAL,
		clock_out_lng REAL,
		active_break_start TEXT,
		submitted_at TEXT,
		confirmed_at TEXT,
		confirmed_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_employee_date
		ON time_entries(workspace_id, employee_id, date);

	-- CRITICAL: one running live entry per employee.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_open_clock
		ON time_entries(workspace_id, employee_id)
		WHERE is_live_clock = 1 AND clock_out_at IS NULL;

	-- CRITICAL: entry generation idempotency - one entry per shift.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_shift_entry
		ON time_entries(workspace_id, shift_id)
		WHERE shift_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS time_entry_audit (
		id TEXT PRIMARY KEY,
		time_entry_id TEXT NOT NULL,
		workspace_id TEXT NOT NULL,
		action TEXT NOT NULL,
		changes_json TEXT,
		comment TEXT NOT NULL DEFAULT '',
		performed_by TEXT NOT NULL,
		performed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_entry
		ON time_entry_audit(workspace_id, time_entry_id, performed_at);

	CREATE TABLE IF NOT EXISTS time_accounts (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		contract_hours INTEGER NOT NULL DEFAULT 0,
		carryover_minutes INTEGER NOT NULL DEFAULT 0,
		period_start TEXT NOT NULL,
		balance_minutes INTEGER NOT NULL DEFAULT 0,
		last_calculated TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_account
		ON time_accounts(workspace_id, employee_id);

	CREATE TABLE IF NOT EXISTS month_closes (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		status TEXT NOT NULL,
		locked_by TEXT NOT NULL DEFAULT '',
		locked_at TEXT,
		exported_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_month_close
		ON month_closes(workspace_id, year, month);

	CREATE TABLE IF NOT EXISTS automation_settings (
		workspace_id TEXT NOT NULL,
		key TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (workspace_id, key)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SHIFTS
// =============================================================================

const shiftColumns = `id, workspace_id, date, start_time, end_time, employee_id,
	location_id, notes, status, is_night, is_sunday, is_holiday,
	surcharge_percent, created_at, updated_at`

func (s *Store) CreateShift(ctx context.Context, sh *core.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sh.ID, sh.WorkspaceID, dateStr(sh.Date), sh.StartTime, sh.EndTime,
		sh.EmployeeID, sh.LocationID, sh.Notes, string(sh.Status),
		boolInt(sh.IsNightShift), boolInt(sh.IsSundayShift), boolInt(sh.IsHolidayShift),
		sh.SurchargePercent, timeStr(sh.CreatedAt), timeStr(sh.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting shift: %w", err)
	}
	return nil
}

func (s *Store) GetShift(ctx context.Context, workspaceID, id string) (*core.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getShift(ctx, workspaceID, id)
}

func (s *Store) getShift(ctx context.Context, workspaceID, id string) (*core.Shift, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+shiftColumns+` FROM shifts WHERE id = ? AND workspace_id = ?`,
		id, workspaceID)
	sh, err := scanShift(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "shift", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading shift: %w", err)
	}
	return sh, nil
}

func (s *Store) UpdateShift(ctx context.Context, sh *core.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE shifts SET date = ?, start_time = ?, end_time = ?, employee_id = ?,
			location_id = ?, notes = ?, status = ?, is_night = ?, is_sunday = ?,
			is_holiday = ?, surcharge_percent = ?, updated_at = ?
		WHERE id = ? AND workspace_id = ?`,
		dateStr(sh.Date), sh.StartTime, sh.EndTime, sh.EmployeeID,
		sh.LocationID, sh.Notes, string(sh.Status),
		boolInt(sh.IsNightShift), boolInt(sh.IsSundayShift), boolInt(sh.IsHolidayShift),
		sh.SurchargePercent, timeStr(sh.UpdatedAt),
		sh.ID, sh.WorkspaceID)
	if err != nil {
		return fmt.Errorf("updating shift: %w", err)
	}
	return requireRow(res, "shift", sh.ID)
}

func (s *Store) ListShifts(ctx context.Context, workspaceID string, f core.ShiftFilter) ([]*core.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE workspace_id = ?`
	args := []any{workspaceID}
	if f.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, f.EmployeeID)
	}
	if f.OpenOnly {
		query += ` AND status = ?`
		args = append(args, string(core.ShiftOpen))
	}
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, dateStr(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, dateStr(f.To))
	}
	if len(f.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(f.Statuses)) + `)`
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY date, start_time`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing shifts: %w", err)
	}
	defer rows.Close()

	var out []*core.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// ClaimShift is a compare-and-set: the UPDATE only fires while the
// shift is still OPEN, so exactly one concurrent claimer wins.
func (s *Store) ClaimShift(ctx context.Context, workspaceID, shiftID, employeeID string) (*core.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE shifts SET employee_id = ?, status = ?, updated_at = ?
		WHERE id = ? AND workspace_id = ? AND status = ?`,
		employeeID, string(core.ShiftScheduled), timeStr(time.Now().UTC()),
		shiftID, workspaceID, string(core.ShiftOpen))
	if err != nil {
		return nil, fmt.Errorf("claiming shift: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Distinguish a lost race from a missing shift.
		if _, err := s.getShift(ctx, workspaceID, shiftID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("shift %s: %w", shiftID, core.ErrShiftTaken)
	}
	return s.getShift(ctx, workspaceID, shiftID)
}

// ReassignShifts applies both legs of a swap and completes the request
// in one transaction.
func (s *Store) ReassignShifts(ctx context.Context, workspaceID, requestID, shiftID, newEmployee, counterShiftID, counterEmployee string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting reassignment: %w", err)
	}
	defer tx.Rollback()

	now := timeStr(time.Now().UTC())
	reassign := func(id, employee string) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE shifts SET employee_id = ?, status = ?, updated_at = ?
			WHERE id = ? AND workspace_id = ?`,
			employee, string(core.ShiftScheduled), now, id, workspaceID)
		if err != nil {
			return fmt.Errorf("reassigning shift %s: %w", id, err)
		}
		return requireRow(res, "shift", id)
	}
	if err := reassign(shiftID, newEmployee); err != nil {
		return err
	}
	if counterShiftID != "" {
		if err := reassign(counterShiftID, counterEmployee); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE swap_requests SET status = ?, updated_at = ?
		WHERE id = ? AND workspace_id = ?`,
		string(core.RequestCompleted), now, requestID, workspaceID)
	if err != nil {
		return fmt.Errorf("completing swap request: %w", err)
	}
	if err := requireRow(res, "swap_request", requestID); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyChange writes the updated shift and the approved request
// atomically.
func (s *Store) ApplyChange(ctx context.Context, workspaceID string, cr *core.ChangeRequest, updated *core.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting change application: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE shifts SET date = ?, start_time = ?, end_time = ?, notes = ?,
			is_night = ?, is_sunday = ?, is_holiday = ?, surcharge_percent = ?,
			updated_at = ?
		WHERE id = ? AND workspace_id = ?`,
		dateStr(updated.Date), updated.StartTime, updated.EndTime, updated.Notes,
		boolInt(updated.IsNightShift), boolInt(updated.IsSundayShift),
		boolInt(updated.IsHolidayShift), updated.SurchargePercent,
		timeStr(updated.UpdatedAt), updated.ID, workspaceID)
	if err != nil {
		return fmt.Errorf("applying shift change: %w", err)
	}
	if err := requireRow(res, "shift", updated.ID); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE change_requests SET status = ?, reviewed_by = ?, reviewed_at = ?,
			review_note = ?, updated_at = ?
		WHERE id = ? AND workspace_id = ?`,
		string(cr.Status), cr.ReviewedBy, nullTime(cr.ReviewedAt), cr.ReviewNote,
		timeStr(cr.UpdatedAt), cr.ID, workspaceID)
	if err != nil {
		return fmt.Errorf("approving change request: %w", err)
	}
	if err := requireRow(res, "change_request", cr.ID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListUncompletedPast(ctx context.Context, workspaceID string, cutoff time.Time) ([]*core.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shiftColumns+` FROM shifts
		WHERE workspace_id = ? AND status = ? AND employee_id != '' AND date < ?
		  AND NOT EXISTS (SELECT 1 FROM time_entries te WHERE te.shift_id = shifts.id)
		ORDER BY date`,
		workspaceID, string(core.ShiftScheduled), dateStr(cutoff))
	if err != nil {
		return nil, fmt.Errorf("listing uncompleted shifts: %w", err)
	}
	defer rows.Close()

	var out []*core.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func scanShift(row interface{ Scan(...any) error }) (*core.Shift, error) {
	var sh core.Shift
	var date, createdAt, updatedAt, status string
	var night, sunday, holiday int
	err := row.Scan(&sh.ID, &sh.WorkspaceID, &date, &sh.StartTime, &sh.EndTime,
		&sh.EmployeeID, &sh.LocationID, &sh.Notes, &status,
		&night, &sunday, &holiday, &sh.SurchargePercent, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sh.Status = core.ShiftStatus(status)
	sh.IsNightShift = night == 1
	sh.IsSundayShift = sunday == 1
	sh.IsHolidayShift = holiday == 1
	sh.Date = parseDate(date)
	sh.CreatedAt = parseTime(createdAt)
	sh.UpdatedAt = parseTime(updatedAt)
	return &sh, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func dateStr(t time.Time) string { return t.Format("2006-01-02") }
func timeStr(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: timeStr(*t), Valid: true}
}

func scanNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func scanNullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
