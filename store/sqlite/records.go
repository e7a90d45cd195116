/*
records.go - Absences, swap/change requests, settings, directory
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/schichtwerk/shift-engine/core"
)

// =============================================================================
// ABSENCES
// =============================================================================

const absenceColumns = `id, workspace_id, employee_id, category, start_date, end_date,
	half_day_start, half_day_end, total_days, reason, status, reviewed_by,
	reviewed_at, review_note, created_at, updated_at`

func (s *Store) CreateAbsence(ctx context.Context, a *core.AbsenceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO absences (`+absenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.WorkspaceID, a.EmployeeID, string(a.Category),
		dateStr(a.StartDate), dateStr(a.EndDate),
		boolInt(a.HalfDayStart), boolInt(a.HalfDayEnd), a.TotalDays,
		a.Reason, string(a.Status), a.ReviewedBy, nullTime(a.ReviewedAt),
		a.ReviewNote, timeStr(a.CreatedAt), timeStr(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting absence: %w", err)
	}
	return nil
}

func (s *Store) GetAbsence(ctx context.Context, workspaceID, id string) (*core.AbsenceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+absenceColumns+` FROM absences WHERE id = ? AND workspace_id = ?`,
		id, workspaceID)
	a, err := scanAbsence(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "absence", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading absence: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateAbsence(ctx context.Context, a *core.AbsenceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE absences SET category = ?, start_date = ?, end_date = ?,
			half_day_start = ?, half_day_end = ?, total_days = ?, reason = ?,
			status = ?, reviewed_by = ?, reviewed_at = ?, review_note = ?, updated_at = ?
		WHERE id = ? AND workspace_id = ?`,
		string(a.Category), dateStr(a.StartDate), dateStr(a.EndDate),
		boolInt(a.HalfDayStart), boolInt(a.HalfDayEnd), a.TotalDays, a.Reason,
		string(a.Status), a.ReviewedBy, nullTime(a.ReviewedAt), a.ReviewNote,
		timeStr(a.UpdatedAt), a.ID, a.WorkspaceID)
	if err != nil {
		return fmt.Errorf("updating absence: %w", err)
	}
	return requireRow(res, "absence", a.ID)
}

func (s *Store) ListAbsences(ctx context.Context, workspaceID string, f core.AbsenceFilter) ([]*core.AbsenceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + absenceColumns + ` FROM absences WHERE workspace_id = ?`
	args := []any{workspaceID}
	if f.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, f.EmployeeID)
	}
	if len(f.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(f.Statuses)) + `)`
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	// A range filter matches any intersecting request.
	if !f.From.IsZero() {
		query += ` AND end_date >= ?`
		args = append(args, dateStr(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND start_date <= ?`
		args = append(args, dateStr(f.To))
	}
	query += ` ORDER BY start_date`

	return s.queryAbsences(ctx, query, args...)
}

func (s *Store) ListBlockingAbsences(ctx context.Context, workspaceID, employeeID string, from, to time.Time) ([]*core.AbsenceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAbsences(ctx, `
		SELECT `+absenceColumns+` FROM absences
		WHERE workspace_id = ? AND employee_id = ?
		  AND status IN (?, ?)
		  AND end_date >= ? AND start_date <= ?
		ORDER BY start_date`,
		workspaceID, employeeID,
		string(core.AbsencePending), string(core.AbsenceApproved),
		dateStr(from), dateStr(to))
}

func (s *Store) queryAbsences(ctx context.Context, query string, args ...any) ([]*core.AbsenceRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing absences: %w", err)
	}
	defer rows.Close()

	var out []*core.AbsenceRequest
	for rows.Next() {
		a, err := scanAbsence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAbsence(row interface{ Scan(...any) error }) (*core.AbsenceRequest, error) {
	var a core.AbsenceRequest
	var category, status, startDate, endDate, createdAt, updatedAt string
	var halfStart, halfEnd int
	var reviewedAt sql.NullString
	err := row.Scan(&a.ID, &a.WorkspaceID, &a.EmployeeID, &category,
		&startDate, &endDate, &halfStart, &halfEnd, &a.TotalDays,
		&a.Reason, &status, &a.ReviewedBy, &reviewedAt, &a.ReviewNote,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.Category = core.AbsenceCategory(category)
	a.Status = core.AbsenceStatus(status)
	a.StartDate = parseDate(startDate)
	a.EndDate = parseDate(endDate)
	a.HalfDayStart = halfStart == 1
	a.HalfDayEnd = halfEnd == 1
	a.ReviewedAt = scanNullTime(reviewedAt)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// =============================================================================
// SWAP REQUESTS
// =============================================================================

const swapColumns = `id, workspace_id, shift_id, requester_id, target_id,
	target_shift_id, message, status, reviewed_by, reviewed_at, review_note,
	created_at, updated_at`

func (s *Store) CreateSwap(ctx context.Context, r *core.SwapRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO swap_requests (`+swapColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.WorkspaceID, r.ShiftID, r.RequesterID, r.TargetID,
		r.TargetShiftID, r.Message, string(r.Status), r.ReviewedBy,
		nullTime(r.ReviewedAt), r.ReviewNote, timeStr(r.CreatedAt), timeStr(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting swap request: %w", err)
	}
	return nil
}

func (s *Store) GetSwap(ctx context.Context, workspaceID, id string) (*core.SwapRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+swapColumns+` FROM swap_requests WHERE id = ? AND workspace_id = ?`,
		id, workspaceID)
	r, err := scanSwap(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "swap_request", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading swap request: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateSwap(ctx context.Context, r *core.SwapRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE swap_requests SET target_id = ?, target_shift_id = ?, message = ?,
			status = ?, reviewed_by = ?, reviewed_at = ?, review_note = ?, updated_at = ?
		WHERE id = ? AND workspace_id = ?`,
		r.TargetID, r.TargetShiftID, r.Message, string(r.Status),
		r.ReviewedBy, nullTime(r.ReviewedAt), r.ReviewNote, timeStr(r.UpdatedAt),
		r.ID, r.WorkspaceID)
	if err != nil {
		return fmt.Errorf("updating swap request: %w", err)
	}
	return requireRow(res, "swap_request", r.ID)
}

func (s *Store) ListSwaps(ctx context.Context, workspaceID string, f core.RequestFilter) ([]*core.SwapRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE workspace_id = ?`
	args := []any{workspaceID}
	if f.EmployeeID != "" {
		query += ` AND (requester_id = ? OR target_id = ?)`
		args = append(args, f.EmployeeID, f.EmployeeID)
	}
	if len(f.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(f.Statuses)) + `)`
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing swap requests: %w", err)
	}
	defer rows.Close()

	var out []*core.SwapRequest
	for rows.Next() {
		r, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSwap(row interface{ Scan(...any) error }) (*core.SwapRequest, error) {
	var r core.SwapRequest
	var status, createdAt, updatedAt string
	var reviewedAt sql.NullString
	err := row.Scan(&r.ID, &r.WorkspaceID, &r.ShiftID, &r.RequesterID,
		&r.TargetID, &r.TargetShiftID, &r.Message, &status,
		&r.ReviewedBy, &reviewedAt, &r.ReviewNote, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = core.RequestStatus(status)
	r.ReviewedAt = scanNullTime(reviewedAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

// =============================================================================
// CHANGE REQUESTS
// =============================================================================

const changeColumns = `id, workspace_id, shift_id, requester_id, new_date,
	new_start, new_end, new_notes, reason, status, reviewed_by, reviewed_at,
	review_note, created_at, updated_at`

func (s *Store) CreateChange(ctx context.Context, r *core.ChangeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newDate sql.NullString
	if r.NewDate != nil {
		newDate = sql.NullString{String: dateStr(*r.NewDate), Valid: true}
	}
	var newNotes sql.NullString
	if r.NewNotes != nil {
		newNotes = sql.NullString{String: *r.NewNotes, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO change_requests (`+changeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.WorkspaceID, r.ShiftID, r.RequesterID, newDate,
		r.NewStart, r.NewEnd, newNotes, r.Reason, string(r.Status),
		r.ReviewedBy, nullTime(r.ReviewedAt), r.ReviewNote,
		timeStr(r.CreatedAt), timeStr(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting change request: %w", err)
	}
	return nil
}

func (s *Store) GetChange(ctx context.Context, workspaceID, id string) (*core.ChangeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+changeColumns+` FROM change_requests WHERE id = ? AND workspace_id = ?`,
		id, workspaceID)
	r, err := scanChange(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "change_request", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading change request: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateChange(ctx context.Context, r *core.ChangeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE change_requests SET status = ?, reviewed_by = ?, reviewed_at = ?,
			review_note = ?, updated_at = ?
		WHERE id = ? AND workspace_id = ?`,
		string(r.Status), r.ReviewedBy, nullTime(r.ReviewedAt), r.ReviewNote,
		timeStr(r.UpdatedAt), r.ID, r.WorkspaceID)
	if err != nil {
		return fmt.Errorf("updating change request: %w", err)
	}
	return requireRow(res, "change_request", r.ID)
}

func (s *Store) ListChanges(ctx context.Context, workspaceID string, f core.RequestFilter) ([]*core.ChangeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + changeColumns + ` FROM change_requests WHERE workspace_id = ?`
	args := []any{workspaceID}
	if f.EmployeeID != "" {
		query += ` AND requester_id = ?`
		args = append(args, f.EmployeeID)
	}
	if len(f.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(f.Statuses)) + `)`
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing change requests: %w", err)
	}
	defer rows.Close()

	var out []*core.ChangeRequest
	for rows.Next() {
		r, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanChange(row interface{ Scan(...any) error }) (*core.ChangeRequest, error) {
	var r core.ChangeRequest
	var status, createdAt, updatedAt string
	var newDate, newNotes, reviewedAt sql.NullString
	err := row.Scan(&r.ID, &r.WorkspaceID, &r.ShiftID, &r.RequesterID,
		&newDate, &r.NewStart, &r.NewEnd, &newNotes, &r.Reason, &status,
		&r.ReviewedBy, &reviewedAt, &r.ReviewNote, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = core.RequestStatus(status)
	if newDate.Valid {
		d := parseDate(newDate.String)
		r.NewDate = &d
	}
	if newNotes.Valid {
		n := newNotes.String
		r.NewNotes = &n
	}
	r.ReviewedAt = scanNullTime(reviewedAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

// =============================================================================
// AUTOMATION SETTINGS
// =============================================================================

func (s *Store) ListSettings(ctx context.Context, workspaceID string) ([]*core.AutomationSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT workspace_id, key, enabled, updated_at
		FROM automation_settings WHERE workspace_id = ?`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	var out []*core.AutomationSetting
	for rows.Next() {
		var st core.AutomationSetting
		var enabled int
		var updatedAt string
		if err := rows.Scan(&st.WorkspaceID, &st.Key, &enabled, &updatedAt); err != nil {
			return nil, err
		}
		st.Enabled = enabled == 1
		st.UpdatedAt = parseTime(updatedAt)
		out = append(out, &st)
	}
	return out, rows.Err()
}

func (s *Store) UpsertSetting(ctx context.Context, st *core.AutomationSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automation_settings (workspace_id, key, enabled, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (workspace_id, key) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		st.WorkspaceID, st.Key, boolInt(st.Enabled), timeStr(st.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting setting: %w", err)
	}
	return nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (s *Store) CreateEmployee(ctx context.Context, e *core.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, workspace_id, first_name, last_name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.WorkspaceID, e.FirstName, e.LastName, e.Email, string(e.Role), timeStr(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, workspaceID, id string) (*core.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e core.Employee
	var role, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, first_name, last_name, email, role, created_at
		FROM employees WHERE id = ? AND workspace_id = ?`,
		id, workspaceID).Scan(&e.ID, &e.WorkspaceID, &e.FirstName, &e.LastName,
		&e.Email, &role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "employee", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading employee: %w", err)
	}
	e.Role = core.Role(role)
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context, workspaceID string) ([]*core.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, first_name, last_name, email, role, created_at
		FROM employees WHERE workspace_id = ?
		ORDER BY last_name, first_name`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	defer rows.Close()

	var out []*core.Employee
	for rows.Next() {
		var e core.Employee
		var role, createdAt string
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.FirstName, &e.LastName,
			&e.Email, &role, &createdAt); err != nil {
			return nil, err
		}
		e.Role = core.Role(role)
		e.CreatedAt = parseTime(createdAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) CreateWorkspace(ctx context.Context, w *core.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, region, created_at)
		VALUES (?, ?, ?, ?)`,
		w.ID, w.Name, w.Region, timeStr(w.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting workspace: %w", err)
	}
	return nil
}

func (s *Store) GetWorkspace(ctx context.Context, id string) (*core.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w core.Workspace
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, region, created_at FROM workspaces WHERE id = ?`,
		id).Scan(&w.ID, &w.Name, &w.Region, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "workspace", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading workspace: %w", err)
	}
	w.CreatedAt = parseTime(createdAt)
	return &w, nil
}

func (s *Store) ListWorkspaceIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM workspaces ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing workspaces: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
