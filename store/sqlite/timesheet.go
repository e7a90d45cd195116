/*
timesheet.go - Time entries, audit trail, time accounts, month closes

The audit table is append-only: no UPDATE, no DELETE. The partial
unique indexes declared in sqlite.go back the clock and generation
idempotency guarantees.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"time"

	"github.com/schichtwerk/shift-engine/core"
)

// =============================================================================
// TIME ENTRIES
// =============================================================================

const entryColumns = `id, workspace_id, employee_id, shift_id, location_id, date,
	start_time, end_time, break_start, break_end, break_minutes, gross_minutes,
	net_minutes, remarks, status, is_live_clock, clock_in_at, clock_out_at,
	clock_in_lat, clock_in_lng, clock_out_lat, clock_out_lng, active_break_start,
	submitted_at, confirmed_at, confirmed_by, created_at, updated_at`

func (s *Store) CreateEntry(ctx context.Context, e *core.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.WorkspaceID, e.EmployeeID, nullStr(e.ShiftID), e.LocationID,
		dateStr(e.Date), e.StartTime, e.EndTime, e.BreakStart, e.BreakEnd,
		e.BreakMinutes, e.GrossMinutes, e.NetMinutes, e.Remarks, string(e.Status),
		boolInt(e.IsLiveClock), nullTime(e.ClockInAt), nullTime(e.ClockOutAt),
		nullFloat(e.ClockInLat), nullFloat(e.ClockInLng),
		nullFloat(e.ClockOutLat), nullFloat(e.ClockOutLng),
		nullTime(e.ActiveBreakStart), nullTime(e.SubmittedAt),
		nullTime(e.ConfirmedAt), e.ConfirmedBy,
		timeStr(e.CreatedAt), timeStr(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting time entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, workspaceID, id string) (*core.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM time_entries WHERE id = ? AND workspace_id = ?`,
		id, workspaceID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "time_entry", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading time entry: %w", err)
	}
	return e, nil
}

func (s *Store) UpdateEntry(ctx context.Context, e *core.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE time_entries SET employee_id = ?, shift_id = ?, location_id = ?,
			date = ?, start_time = ?, end_time = ?, break_start = ?, break_end = ?,
			break_minutes = ?, gross_minutes = ?, net_minutes = ?, remarks = ?,
			status = ?, is_live_clock = ?, clock_in_at = ?, clock_out_at = ?,
			clock_in_lat = ?, clock_in_lng = ?, clock_out_lat = ?, clock_out_lng = ?,
			active_break_start = ?, submitted_at = ?, confirmed_at = ?,
			confirmed_by = ?, updated_at = ?
		WHERE id = ? AND workspace_id = ?`,
		e.EmployeeID, nullStr(e.ShiftID), e.LocationID,
		dateStr(e.Date), e.StartTime, e.EndTime, e.BreakStart, e.BreakEnd,
		e.BreakMinutes, e.GrossMinutes, e.NetMinutes, e.Remarks,
		string(e.Status), boolInt(e.IsLiveClock), nullTime(e.ClockInAt), nullTime(e.ClockOutAt),
		nullFloat(e.ClockInLat), nullFloat(e.ClockInLng),
		nullFloat(e.ClockOutLat), nullFloat(e.ClockOutLng),
		nullTime(e.ActiveBreakStart), nullTime(e.SubmittedAt), nullTime(e.ConfirmedAt),
		e.ConfirmedBy, timeStr(e.UpdatedAt),
		e.ID, e.WorkspaceID)
	if err != nil {
		return fmt.Errorf("updating time entry: %w", err)
	}
	return requireRow(res, "time_entry", e.ID)
}

func (s *Store) DeleteEntry(ctx context.Context, workspaceID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM time_entries WHERE id = ? AND workspace_id = ?`, id, workspaceID)
	if err != nil {
		return fmt.Errorf("deleting time entry: %w", err)
	}
	return requireRow(res, "time_entry", id)
}

func (s *Store) ListEntries(ctx context.Context, workspaceID string, f core.EntryFilter) ([]*core.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE workspace_id = ?`
	args := []any{workspaceID}
	if f.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, f.EmployeeID)
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
		return nil, fmt.Errorf("listing time entries: %w", err)
	}
	defer rows.Close()

	var out []*core.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) FindOpenClock(ctx context.Context, workspaceID, employeeID string) (*core.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM time_entries
		WHERE workspace_id = ? AND employee_id = ?
		  AND is_live_clock = 1 AND clock_out_at IS NULL`,
		workspaceID, employeeID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "open_clock", ID: employeeID}
	}
	if err != nil {
		return nil, fmt.Errorf("loading open clock: %w", err)
	}
	return e, nil
}

func (s *Store) EntryExistsForShift(ctx context.Context, workspaceID, shiftID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM time_entries WHERE workspace_id = ? AND shift_id = ? LIMIT 1`,
		workspaceID, shiftID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking shift entry: %w", err)
	}
	return true, nil
}

func (s *Store) SumNetMinutes(ctx context.Context, workspaceID, employeeID string, from, to time.Time, statuses []core.EntryStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT COALESCE(SUM(net_minutes), 0) FROM time_entries
		WHERE workspace_id = ? AND employee_id = ? AND date >= ? AND date <= ?`
	args := []any{workspaceID, employeeID, dateStr(from), dateStr(to)}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}

	var sum int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("summing net minutes: %w", err)
	}
	return sum, nil
}

func scanEntry(row interface{ Scan(...any) error }) (*core.TimeEntry, error) {
	var e core.TimeEntry
	var date, createdAt, updatedAt, status string
	var shiftID, clockIn, clockOut, activeBreak, submitted, confirmed sql.NullString
	var inLat, inLng, outLat, outLng sql.NullFloat64
	var live int
	err := row.Scan(&e.ID, &e.WorkspaceID, &e.EmployeeID, &shiftID, &e.LocationID,
		&date, &e.StartTime, &e.EndTime, &e.BreakStart, &e.BreakEnd,
		&e.BreakMinutes, &e.GrossMinutes, &e.NetMinutes, &e.Remarks, &status,
		&live, &clockIn, &clockOut, &inLat, &inLng, &outLat, &outLng,
		&activeBreak, &submitted, &confirmed, &e.ConfirmedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.ShiftID = shiftID.String
	e.Status = core.EntryStatus(status)
	e.IsLiveClock = live == 1
	e.Date = parseDate(date)
	e.ClockInAt = scanNullTime(clockIn)
	e.ClockOutAt = scanNullTime(clockOut)
	e.ClockInLat = scanNullFloat(inLat)
	e.ClockInLng = scanNullFloat(inLng)
	e.ClockOutLat = scanNullFloat(outLat)
	e.ClockOutLng = scanNullFloat(outLng)
	e.ActiveBreakStart = scanNullTime(activeBreak)
	e.SubmittedAt = scanNullTime(submitted)
	e.ConfirmedAt = scanNullTime(confirmed)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// =============================================================================
// AUDIT - append-only
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, a *core.TimeEntryAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changes sql.NullString
	if len(a.Changes) > 0 {
		b, err := json.Marshal(a.Changes)
		if err != nil {
			return fmt.Errorf("encoding audit diff: %w", err)
		}
		changes = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_entry_audit
			(id, time_entry_id, workspace_id, action, changes_json, comment, performed_by, performed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TimeEntryID, a.WorkspaceID, string(a.Action), changes,
		a.Comment, a.PerformedBy, timeStr(a.PerformedAt))
	if err != nil {
		return fmt.Errorf("appending audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, workspaceID, entryID string) ([]*core.TimeEntryAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, time_entry_id, workspace_id, action, changes_json, comment, performed_by, performed_at
		FROM time_entry_audit
		WHERE workspace_id = ? AND time_entry_id = ?
		ORDER BY performed_at`,
		workspaceID, entryID)
	if err != nil {
		return nil, fmt.Errorf("listing audit: %w", err)
	}
	defer rows.Close()

	var out []*core.TimeEntryAudit
	for rows.Next() {
		var a core.TimeEntryAudit
		var action, performedAt string
		var changes sql.NullString
		if err := rows.Scan(&a.ID, &a.TimeEntryID, &a.WorkspaceID, &action,
			&changes, &a.Comment, &a.PerformedBy, &performedAt); err != nil {
			return nil, err
		}
		a.Action = core.AuditAction(action)
		a.PerformedAt = parseTime(performedAt)
		if changes.Valid {
			if err := json.Unmarshal([]byte(changes.String), &a.Changes); err != nil {
				return nil, fmt.Errorf("decoding audit diff: %w", err)
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// =============================================================================
// TIME ACCOUNTS
// =============================================================================

func (s *Store) GetAccount(ctx context.Context, workspaceID, employeeID string) (*core.TimeAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a core.TimeAccount
	var periodStart string
	var lastCalc sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, employee_id, contract_hours, carryover_minutes,
			period_start, balance_minutes, last_calculated
		FROM time_accounts WHERE workspace_id = ? AND employee_id = ?`,
		workspaceID, employeeID).Scan(&a.ID, &a.WorkspaceID, &a.EmployeeID,
		&a.ContractHours, &a.CarryoverMinutes, &periodStart, &a.BalanceMinutes, &lastCalc)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "time_account", ID: employeeID}
	}
	if err != nil {
		return nil, fmt.Errorf("loading time account: %w", err)
	}
	a.PeriodStart = parseDate(periodStart)
	a.LastCalculated = scanNullTime(lastCalc)
	return &a, nil
}

func (s *Store) UpsertAccount(ctx context.Context, a *core.TimeAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_accounts
			(id, workspace_id, employee_id, contract_hours, carryover_minutes,
			 period_start, balance_minutes, last_calculated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, employee_id) DO UPDATE SET
			contract_hours = excluded.contract_hours,
			carryover_minutes = excluded.carryover_minutes,
			period_start = excluded.period_start,
			balance_minutes = excluded.balance_minutes,
			last_calculated = excluded.last_calculated`,
		a.ID, a.WorkspaceID, a.EmployeeID, a.ContractHours, a.CarryoverMinutes,
		dateStr(a.PeriodStart), a.BalanceMinutes, nullTime(a.LastCalculated))
	if err != nil {
		return fmt.Errorf("upserting time account: %w", err)
	}
	return nil
}

// =============================================================================
// MONTH CLOSES
// =============================================================================

func (s *Store) GetMonthClose(ctx context.Context, workspaceID string, year, month int) (*core.MonthClose, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m core.MonthClose
	var status, createdAt string
	var lockedAt, exportedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, year, month, status, locked_by, locked_at, exported_at, created_at
		FROM month_closes WHERE workspace_id = ? AND year = ? AND month = ?`,
		workspaceID, year, month).Scan(&m.ID, &m.WorkspaceID, &m.Year, &m.Month,
		&status, &m.LockedBy, &lockedAt, &exportedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "month_close", ID: fmt.Sprintf("%04d-%02d", year, month)}
	}
	if err != nil {
		return nil, fmt.Errorf("loading month close: %w", err)
	}
	m.Status = core.MonthCloseStatus(status)
	m.LockedAt = scanNullTime(lockedAt)
	m.ExportedAt = scanNullTime(exportedAt)
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

func (s *Store) UpsertMonthClose(ctx context.Context, m *core.MonthClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO month_closes
			(id, workspace_id, year, month, status, locked_by, locked_at, exported_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, year, month) DO UPDATE SET
			status = excluded.status,
			locked_by = excluded.locked_by,
			locked_at = excluded.locked_at,
			exported_at = excluded.exported_at`,
		m.ID, m.WorkspaceID, m.Year, m.Month, string(m.Status), m.LockedBy,
		nullTime(m.LockedAt), nullTime(m.ExportedAt), timeStr(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("upserting month close: %w", err)
	}
	return nil
}

func (s *Store) ListMonthCloses(ctx context.Context, workspaceID string) ([]*core.MonthClose, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, year, month, status, locked_by, locked_at, exported_at, created_at
		FROM month_closes WHERE workspace_id = ?
		ORDER BY year DESC, month DESC`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing month closes: %w", err)
	}
	defer rows.Close()

	var out []*core.MonthClose
	for rows.Next() {
		var m core.MonthClose
		var status, createdAt string
		var lockedAt, exportedAt sql.NullString
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.Year, &m.Month, &status,
			&m.LockedBy, &lockedAt, &exportedAt, &createdAt); err != nil {
			return nil, err
		}
		m.Status = core.MonthCloseStatus(status)
		m.LockedAt = scanNullTime(lockedAt)
		m.ExportedAt = scanNullTime(exportedAt)
		m.CreatedAt = parseTime(createdAt)
		out = append(out, &m)
	}
	return out, rows.Err()
}
