/*
handlers.go - HTTP API handlers for the time-compliance engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the domain services. No business
  rules live here.

ENDPOINTS:
  Shifts:
    GET    /api/shifts                       List (from/to/employeeId/status/open)
    POST   /api/shifts                       Plan shift (with recurrence)
    GET    /api/shifts/{id}                  Get shift
    PUT    /api/shifts/{id}                  Edit shift
    DELETE /api/shifts/{id}                  Cancel shift
    POST   /api/shifts/{id}/claim            Claim an open shift

  Absences:
    GET    /api/absences                     List
    POST   /api/absences                     File request
    GET    /api/absences/{id}                Get request
    PATCH  /api/absences/{id}                Decide (APPROVED/REJECTED) or cancel

  Swap & change requests:
    GET/POST /api/shift-swaps                List / open swap
    POST   /api/shift-swaps/{id}/accept      Target accepts
    POST   /api/shift-swaps/{id}/approve     Manager approves
    POST   /api/shift-swaps/{id}/reject      Manager rejects
    POST   /api/shift-swaps/{id}/cancel      Requester withdraws
    GET/POST /api/shift-change-requests      List / open change
    POST   /api/shift-change-requests/{id}/approve|reject|cancel

  Time entries:
    GET/POST /api/time-entries               List / create manual entry
    GET/PUT/DELETE /api/time-entries/{id}    Read / edit / delete
    POST   /api/time-entries/{id}/status     Workflow action
    GET    /api/time-entries/{id}/audit      Audit trail
    POST   /api/time-entries/clock           Punch (in/out/break)
    GET    /api/time-entries/clock           Open-clock status

  Automations (manager session or scheduler secret):
    POST   /api/automations/generate-time-entries
    POST   /api/automations/overtime-check
    POST   /api/automations/payroll-lock
    GET/PUT /api/automations/settings

  Payroll:
    GET    /api/month-close                  List period states
    POST   /api/month-close                  lock | unlock | export

  Calendar:
    GET    /api/holidays?year=&region=       Computed, read-only

ERROR HANDLING:
  Service errors map to HTTP status via the core classifiers:
  - 400: validation, unknown workflow action, bad clock state
  - 403: role or ownership violation
  - 404: missing record
  - 409: scheduling conflict, taken shift, locked month, bad transition
  - 500: everything else
  Conflict and validation errors carry structured detail in the body.

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: How the Actor in the context is established
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schichtwerk/shift-engine/automation"
	"github.com/schichtwerk/shift-engine/calendar"
	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/scheduling"
	"github.com/schichtwerk/shift-engine/timesheet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      core.Store
	Scheduling *scheduling.Service
	Timesheet  *timesheet.Service
	Automation *automation.Service
}

// NewHandler wires the handlers to the domain services.
func NewHandler(store core.Store, sched *scheduling.Service, ts *timesheet.Service, auto *automation.Service) *Handler {
	return &Handler{Store: store, Scheduling: sched, Timesheet: ts, Automation: auto}
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	f := core.ShiftFilter{EmployeeID: r.URL.Query().Get("employeeId")}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		f.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		f.To = t
	}
	if v := r.URL.Query().Get("status"); v != "" {
		f.Statuses = []core.ShiftStatus{core.ShiftStatus(v)}
	}
	f.OpenOnly = r.URL.Query().Get("open") == "true"

	shifts, err := h.Scheduling.List(r.Context(), actor, f)
	if err != nil {
		writeServiceError(w, "Failed to list shifts", err)
		return
	}
	writeJSON(w, http.StatusOK, shiftDTOs(shifts))
}

func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req CreateShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Scheduling.Create(r.Context(), actor, scheduling.CreateShiftInput{
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		EmployeeID:  req.EmployeeID,
		LocationID:  req.LocationID,
		Notes:       req.Notes,
		RepeatWeeks: req.RepeatWeeks,
	})
	if err != nil {
		writeServiceError(w, "Failed to create shift", err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Created []ShiftDTO               `json:"created"`
		Skipped []scheduling.SkippedWeek `json:"skipped,omitempty"`
	}{shiftDTOs(result.Created), result.Skipped})
}

func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	shift, err := h.Scheduling.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to get shift", err)
		return
	}
	writeJSON(w, http.StatusOK, shiftDTO(shift))
}

func (h *Handler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req UpdateShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	shift, err := h.Scheduling.Update(r.Context(), actor, chi.URLParam(r, "id"), scheduling.UpdateShiftInput{
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		EmployeeID: req.EmployeeID,
		LocationID: req.LocationID,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, "Failed to update shift", err)
		return
	}
	writeJSON(w, http.StatusOK, shiftDTO(shift))
}

// DeleteShift cancels the shift. Rows are never removed: a cancelled
// shift stays visible in the plan history.
func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	shift, err := h.Scheduling.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to cancel shift", err)
		return
	}
	writeJSON(w, http.StatusOK, shiftDTO(shift))
}

func (h *Handler) ClaimShift(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	shift, err := h.Scheduling.Claim(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to claim shift", err)
		return
	}
	writeJSON(w, http.StatusOK, shiftDTO(shift))
}

// =============================================================================
// ABSENCE HANDLERS
// =============================================================================

func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	f := core.AbsenceFilter{EmployeeID: r.URL.Query().Get("employeeId")}
	if v := r.URL.Query().Get("status"); v != "" {
		f.Statuses = []core.AbsenceStatus{core.AbsenceStatus(v)}
	}

	absences, err := h.Scheduling.ListAbsences(r.Context(), actor, f)
	if err != nil {
		writeServiceError(w, "Failed to list absences", err)
		return
	}
	dtos := make([]AbsenceDTO, len(absences))
	for i, a := range absences {
		dtos[i] = absenceDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req CreateAbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	absence, err := h.Scheduling.CreateAbsence(r.Context(), actor, scheduling.AbsenceInput{
		EmployeeID:   req.EmployeeID,
		Category:     core.AbsenceCategory(req.Category),
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		HalfDayStart: req.HalfDayStart,
		HalfDayEnd:   req.HalfDayEnd,
		Reason:       req.Reason,
	})
	if err != nil {
		writeServiceError(w, "Failed to create absence", err)
		return
	}
	writeJSON(w, http.StatusCreated, absenceDTO(absence))
}

func (h *Handler) GetAbsence(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	absence, err := h.Scheduling.GetAbsence(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to get absence", err)
		return
	}
	writeJSON(w, http.StatusOK, absenceDTO(absence))
}

// DecideAbsence is the PATCH endpoint: APPROVED and REJECTED are
// manager decisions, CANCELLED withdraws the request.
func (h *Handler) DecideAbsence(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := chi.URLParam(r, "id")
	var absence *core.AbsenceRequest
	var err error
	switch core.AbsenceStatus(req.Status) {
	case core.AbsenceApproved:
		absence, err = h.Scheduling.DecideAbsence(r.Context(), actor, id, true, req.Note)
	case core.AbsenceRejected:
		absence, err = h.Scheduling.DecideAbsence(r.Context(), actor, id, false, req.Note)
	case core.AbsenceCancelled:
		absence, err = h.Scheduling.CancelAbsence(r.Context(), actor, id)
	default:
		writeError(w, http.StatusBadRequest, "Status must be APPROVED, REJECTED or CANCELLED", nil)
		return
	}
	if err != nil {
		writeServiceError(w, "Failed to update absence", err)
		return
	}
	writeJSON(w, http.StatusOK, absenceDTO(absence))
}

// =============================================================================
// SWAP HANDLERS
// =============================================================================

func (h *Handler) ListSwaps(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	f := core.RequestFilter{EmployeeID: r.URL.Query().Get("employeeId")}
	if v := r.URL.Query().Get("status"); v != "" {
		f.Statuses = []core.RequestStatus{core.RequestStatus(v)}
	}

	swaps, err := h.Scheduling.ListSwaps(r.Context(), actor, f)
	if err != nil {
		writeServiceError(w, "Failed to list swap requests", err)
		return
	}
	dtos := make([]SwapDTO, len(swaps))
	for i, s := range swaps {
		dtos[i] = swapDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSwap(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req CreateSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	swap, err := h.Scheduling.RequestSwap(r.Context(), actor, scheduling.SwapInput{
		ShiftID:       req.ShiftID,
		TargetID:      req.TargetID,
		TargetShiftID: req.TargetShiftID,
		Message:       req.Message,
	})
	if err != nil {
		writeServiceError(w, "Failed to create swap request", err)
		return
	}
	writeJSON(w, http.StatusCreated, swapDTO(swap))
}

func (h *Handler) AcceptSwap(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	swap, err := h.Scheduling.AcceptSwap(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to accept swap request", err)
		return
	}
	writeJSON(w, http.StatusOK, swapDTO(swap))
}

func (h *Handler) ApproveSwap(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req ReviewRequest
	decodeOptional(r, &req)

	swap, err := h.Scheduling.ApproveSwap(r.Context(), actor, chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeServiceError(w, "Failed to approve swap request", err)
		return
	}
	writeJSON(w, http.StatusOK, swapDTO(swap))
}

func (h *Handler) RejectSwap(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req ReviewRequest
	decodeOptional(r, &req)

	swap, err := h.Scheduling.RejectSwap(r.Context(), actor, chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeServiceError(w, "Failed to reject swap request", err)
		return
	}
	writeJSON(w, http.StatusOK, swapDTO(swap))
}

func (h *Handler) CancelSwap(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	swap, err := h.Scheduling.CancelSwap(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to cancel swap request", err)
		return
	}
	writeJSON(w, http.StatusOK, swapDTO(swap))
}

// =============================================================================
// CHANGE REQUEST HANDLERS
// =============================================================================

func (h *Handler) ListChanges(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	f := core.RequestFilter{EmployeeID: r.URL.Query().Get("employeeId")}
	if v := r.URL.Query().Get("status"); v != "" {
		f.Statuses = []core.RequestStatus{core.RequestStatus(v)}
	}

	changes, err := h.Scheduling.ListChanges(r.Context(), actor, f)
	if err != nil {
		writeServiceError(w, "Failed to list change requests", err)
		return
	}
	dtos := make([]ChangeDTO, len(changes))
	for i, c := range changes {
		dtos[i] = changeDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateChange(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req CreateChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	change, err := h.Scheduling.RequestChange(r.Context(), actor, scheduling.ChangeInput{
		ShiftID:  req.ShiftID,
		NewDate:  req.NewDate,
		NewStart: req.NewStart,
		NewEnd:   req.NewEnd,
		NewNotes: req.NewNotes,
		Reason:   req.Reason,
	})
	if err != nil {
		writeServiceError(w, "Failed to create change request", err)
		return
	}
	writeJSON(w, http.StatusCreated, changeDTO(change))
}

func (h *Handler) ApproveChange(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req ReviewRequest
	decodeOptional(r, &req)

	change, err := h.Scheduling.ApproveChange(r.Context(), actor, chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeServiceError(w, "Failed to approve change request", err)
		return
	}
	writeJSON(w, http.StatusOK, changeDTO(change))
}

func (h *Handler) RejectChange(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req ReviewRequest
	decodeOptional(r, &req)

	change, err := h.Scheduling.RejectChange(r.Context(), actor, chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeServiceError(w, "Failed to reject change request", err)
		return
	}
	writeJSON(w, http.StatusOK, changeDTO(change))
}

func (h *Handler) CancelChange(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	change, err := h.Scheduling.CancelChange(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to cancel change request", err)
		return
	}
	writeJSON(w, http.StatusOK, changeDTO(change))
}

// =============================================================================
// TIME ENTRY HANDLERS
// =============================================================================

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	f := core.EntryFilter{EmployeeID: r.URL.Query().Get("employeeId")}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		f.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		f.To = t
	}
	if v := r.URL.Query().Get("status"); v != "" {
		f.Statuses = []core.EntryStatus{core.EntryStatus(v)}
	}

	entries, err := h.Timesheet.List(r.Context(), actor, f)
	if err != nil {
		writeServiceError(w, "Failed to list time entries", err)
		return
	}
	writeJSON(w, http.StatusOK, entryDTOs(entries))
}

func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.Timesheet.Create(r.Context(), actor, timesheet.CreateInput{
		EmployeeID:   req.EmployeeID,
		ShiftID:      req.ShiftID,
		LocationID:   req.LocationID,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		BreakStart:   req.BreakStart,
		BreakEnd:     req.BreakEnd,
		BreakMinutes: req.BreakMinutes,
		Remarks:      req.Remarks,
	})
	if err != nil {
		writeServiceError(w, "Failed to create time entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, entryDTO(entry))
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	entry, err := h.Timesheet.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to get time entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entryDTO(entry))
}

func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.Timesheet.Edit(r.Context(), actor, chi.URLParam(r, "id"), timesheet.UpdateInput{
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		BreakStart:   req.BreakStart,
		BreakEnd:     req.BreakEnd,
		BreakMinutes: req.BreakMinutes,
		Remarks:      req.Remarks,
		LocationID:   req.LocationID,
	})
	if err != nil {
		writeServiceError(w, "Failed to update time entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entryDTO(entry))
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	if err := h.Timesheet.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "Failed to delete time entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) EntryStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	action, err := timesheet.ParseAction(req.Action)
	if err != nil {
		writeServiceError(w, "Unknown workflow action", err)
		return
	}

	entry, err := h.Timesheet.Transition(r.Context(), actor, chi.URLParam(r, "id"), action, req.Comment)
	if err != nil {
		writeServiceError(w, "Failed to run workflow action", err)
		return
	}
	writeJSON(w, http.StatusOK, entryDTO(entry))
}

func (h *Handler) EntryAudit(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	audits, err := h.Timesheet.Audits(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to list audit trail", err)
		return
	}
	dtos := make([]AuditDTO, len(audits))
	for i, a := range audits {
		dtos[i] = auditDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) Clock(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req ClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.Timesheet.Clock(r.Context(), actor, timesheet.ClockAction(req.Action), timesheet.ClockInput{
		Lat:        req.Lat,
		Lng:        req.Lng,
		LocationID: req.LocationID,
	})
	if err != nil {
		writeServiceError(w, "Clock action failed", err)
		return
	}
	writeJSON(w, http.StatusOK, entryDTO(entry))
}

// ClockStatus returns the open live entry, or 204 when the employee is
// not clocked in.
func (h *Handler) ClockStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	entry, err := h.Timesheet.ClockStatus(r.Context(), actor)
	if err != nil {
		writeServiceError(w, "Failed to get clock status", err)
		return
	}
	if entry == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, entryDTO(entry))
}

// =============================================================================
// AUTOMATION HANDLERS
// =============================================================================

// sweep runs one automation over the caller's workspace, or over every
// workspace when the scheduler secret authenticated the request.
func (h *Handler) sweep(w http.ResponseWriter, r *http.Request, name string,
	run func(ctx context.Context, workspaceID string) (int, error)) {

	ctx := r.Context()
	var workspaceIDs []string
	if IsScheduler(ctx) {
		ids, err := h.Store.ListWorkspaceIDs(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list workspaces", err)
			return
		}
		workspaceIDs = ids
	} else {
		actor, _ := ActorFrom(ctx)
		workspaceIDs = []string{actor.WorkspaceID}
	}

	results := make([]SweepResultDTO, 0, len(workspaceIDs))
	for _, id := range workspaceIDs {
		res := SweepResultDTO{WorkspaceID: id}
		count, err := run(ctx, id)
		if err != nil {
			res.Error = err.Error()
		}
		res.Count = count
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, struct {
		Automation string           `json:"automation"`
		Results    []SweepResultDTO `json:"results"`
	}{name, results})
}

func (h *Handler) GenerateTimeEntries(w http.ResponseWriter, r *http.Request) {
	h.sweep(w, r, "generate-time-entries", h.Automation.GenerateTimeEntries)
}

func (h *Handler) OvertimeCheck(w http.ResponseWriter, r *http.Request) {
	h.sweep(w, r, "overtime-check", func(ctx context.Context, workspaceID string) (int, error) {
		alerts, err := h.Automation.OvertimeCheck(ctx, workspaceID)
		return len(alerts), err
	})
}

func (h *Handler) PayrollLock(w http.ResponseWriter, r *http.Request) {
	var req MonthCloseRequest
	decodeOptional(r, &req)

	lockedBy := "system"
	if actor, ok := ActorFrom(r.Context()); ok {
		lockedBy = actor.EmployeeID
	}

	h.sweep(w, r, "payroll-lock", func(ctx context.Context, workspaceID string) (int, error) {
		result, err := h.Automation.LockMonth(ctx, workspaceID, lockedBy, req.Year, req.Month)
		if err != nil {
			return 0, err
		}
		return result.Confirmed, nil
	})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.automationWorkspace(w, r)
	if !ok {
		return
	}

	settings, err := h.Automation.Settings(r.Context(), workspaceID)
	if err != nil {
		writeServiceError(w, "Failed to list automation settings", err)
		return
	}
	dtos := make([]SettingDTO, len(settings))
	for i, s := range settings {
		dtos[i] = SettingDTO{Key: s.Key, Enabled: s.Enabled}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := h.automationWorkspace(w, r)
	if !ok {
		return
	}

	var req UpdateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	setting, err := h.Automation.UpdateSetting(r.Context(), workspaceID, req.Key, req.Enabled)
	if err != nil {
		writeServiceError(w, "Failed to update automation setting", err)
		return
	}
	writeJSON(w, http.StatusOK, SettingDTO{Key: setting.Key, Enabled: setting.Enabled})
}

// automationWorkspace resolves the workspace of a settings call. The
// scheduler secret carries none, so it must name one explicitly.
func (h *Handler) automationWorkspace(w http.ResponseWriter, r *http.Request) (string, bool) {
	if actor, ok := ActorFrom(r.Context()); ok {
		return actor.WorkspaceID, true
	}
	if v := r.URL.Query().Get("workspaceId"); v != "" {
		return v, true
	}
	writeError(w, http.StatusBadRequest, "workspaceId query parameter required with scheduler credential", nil)
	return "", false
}

// =============================================================================
// MONTH CLOSE HANDLERS
// =============================================================================

func (h *Handler) ListMonthCloses(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	closes, err := h.Automation.ListMonthCloses(r.Context(), actor.WorkspaceID)
	if err != nil {
		writeServiceError(w, "Failed to list month closes", err)
		return
	}
	dtos := make([]MonthCloseDTO, len(closes))
	for i, mc := range closes {
		dtos[i] = monthCloseDTO(mc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) MonthCloseAction(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	if !actor.Role.IsAdmin() {
		writeError(w, http.StatusForbidden, "Locking payroll months requires an admin role", nil)
		return
	}

	var req MonthCloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	switch req.Action {
	case "lock":
		result, err := h.Automation.LockMonth(ctx, actor.WorkspaceID, actor.EmployeeID, req.Year, req.Month)
		if err != nil {
			writeServiceError(w, "Failed to lock month", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "unlock":
		mc, err := h.Automation.UnlockMonth(ctx, actor.WorkspaceID, req.Year, req.Month)
		if err != nil {
			writeServiceError(w, "Failed to unlock month", err)
			return
		}
		writeJSON(w, http.StatusOK, monthCloseDTO(mc))
	case "export":
		mc, err := h.Automation.ExportMonth(ctx, actor.WorkspaceID, req.Year, req.Month)
		if err != nil {
			writeServiceError(w, "Failed to export month", err)
			return
		}
		writeJSON(w, http.StatusOK, monthCloseDTO(mc))
	default:
		writeError(w, http.StatusBadRequest, "Action must be lock, unlock or export", nil)
	}
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1900 || year > 2200 {
		writeError(w, http.StatusBadRequest, "Invalid or missing year", err)
		return
	}
	region := r.URL.Query().Get("region")
	if region == "" {
		actor, ok := ActorFrom(r.Context())
		if ok {
			ws, err := h.Store.GetWorkspace(r.Context(), actor.WorkspaceID)
			if err == nil {
				region = ws.Region
			}
		}
	}

	holidays := calendar.Holidays(year, region)
	dtos := make([]HolidayDTO, len(holidays))
	for i, hd := range holidays {
		dtos[i] = HolidayDTO{
			Date:       hd.Date.Format(dateFormat),
			Name:       hd.Name,
			Nationwide: hd.Nationwide,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps a domain error to its HTTP status and keeps
// the structured detail (field list, conflict list) in the body.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}

	var ve *core.ValidationError
	var ce *core.ConflictError
	status := http.StatusInternalServerError
	switch {
	case core.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrForbidden):
		status = http.StatusForbidden
	case errors.As(err, &ce):
		status = http.StatusConflict
		resp.Conflicts = ce.Conflicts
	case core.IsConflict(err), errors.Is(err, core.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		resp.Fields = ve.Fields
	case core.IsClientError(err):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

// decodeOptional parses a body that is allowed to be absent.
func decodeOptional(r *http.Request, v any) {
	if r.Body == nil {
		return
	}
	_ = json.NewDecoder(r.Body).Decode(v)
}
