/*
service_test.go - Shift planning, claiming, swaps, changes, absences

Runs against the real sqlite store (in-memory) so the conflict detector
and the atomic reassignment paths are exercised end to end.
*/
package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schichtwerk/shift-engine/conflict"
	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/store/sqlite"
)

// =============================================================================
// FIXTURE
// =============================================================================

const testWorkspace = "ws-test"

var (
	manager = core.Actor{EmployeeID: "mia", WorkspaceID: testWorkspace, Role: core.RoleManager}
	anna    = core.Actor{EmployeeID: "anna", WorkspaceID: testWorkspace, Role: core.RoleEmployee}
	ben     = core.Actor{EmployeeID: "ben", WorkspaceID: testWorkspace, Role: core.RoleEmployee}
)

func newTestService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.CreateWorkspace(ctx, &core.Workspace{
		ID: testWorkspace, Name: "Testbetrieb", Region: "BY", CreatedAt: time.Now(),
	}))
	for _, e := range []*core.Employee{
		{ID: "mia", WorkspaceID: testWorkspace, FirstName: "Mia", LastName: "Weber", Role: core.RoleManager},
		{ID: "anna", WorkspaceID: testWorkspace, FirstName: "Anna", LastName: "Schmidt", Role: core.RoleEmployee},
		{ID: "ben", WorkspaceID: testWorkspace, FirstName: "Ben", LastName: "Fischer", Role: core.RoleEmployee},
	} {
		require.NoError(t, store.CreateEmployee(ctx, e))
	}

	svc := NewService(store, conflict.NewDetector(store, store), core.NopNotifier{}, nil)
	svc.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store
}

func disableSetting(t *testing.T, store *sqlite.Store, key string) {
	t.Helper()
	require.NoError(t, store.UpsertSetting(context.Background(), &core.AutomationSetting{
		WorkspaceID: testWorkspace, Key: key, Enabled: false, UpdatedAt: time.Now(),
	}))
}

func mustCreate(t *testing.T, svc *Service, in CreateShiftInput) *core.Shift {
	t.Helper()
	res, err := svc.Create(context.Background(), manager, in)
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	return res.Created[0]
}

// =============================================================================
// CREATION & DERIVED FLAGS
// =============================================================================

func TestCreate_PlainWeekdayShift(t *testing.T) {
	svc, _ := newTestService(t)

	// GIVEN a regular Monday in June
	// WHEN a day shift is planned
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})

	// THEN no surcharge applies
	assert.Equal(t, core.ShiftScheduled, shift.Status)
	assert.False(t, shift.IsNightShift)
	assert.False(t, shift.IsSundayShift)
	assert.False(t, shift.IsHolidayShift)
	assert.Equal(t, 0, shift.SurchargePercent)
}

func TestCreate_ChristmasNightShift(t *testing.T) {
	svc, _ := newTestService(t)

	// GIVEN the first Christmas day
	// WHEN an overnight shift is planned
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-12-25", StartTime: "22:00", EndTime: "06:00", EmployeeID: anna.EmployeeID,
	})

	// THEN night and holiday surcharges stack
	assert.True(t, shift.IsNightShift)
	assert.True(t, shift.IsHolidayShift)
	assert.False(t, shift.IsSundayShift)
	assert.Equal(t, 175, shift.SurchargePercent)
}

func TestCreate_OpenShiftHasNoAssignee(t *testing.T) {
	svc, _ := newTestService(t)

	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00",
	})

	assert.Equal(t, core.ShiftOpen, shift.Status)
	assert.Empty(t, shift.EmployeeID)
}

func TestCreate_EmployeeRoleForbidden(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), anna, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00",
	})

	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestCreate_OverlapRejected(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})

	// WHEN a second shift cuts into the same window
	_, err := svc.Create(context.Background(), manager, CreateShiftInput{
		Date: "2025-06-02", StartTime: "12:00", EndTime: "20:00", EmployeeID: anna.EmployeeID,
	})

	// THEN the creation fails hard with the collision attached
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))
	var ce *core.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.ConflictOverlap, ce.Conflicts[0].Kind)
}

func TestCreate_RecurrenceSkipsConflictingWeeks(t *testing.T) {
	svc, _ := newTestService(t)

	// GIVEN an existing shift two weeks out
	mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-16", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})

	// WHEN a weekly series starts on 2025-06-02 for three additional weeks
	res, err := svc.Create(context.Background(), manager, CreateShiftInput{
		Date: "2025-06-02", StartTime: "09:00", EndTime: "15:00",
		EmployeeID: anna.EmployeeID, RepeatWeeks: 3,
	})

	// THEN the colliding week is skipped and reported, the rest planned
	require.NoError(t, err)
	assert.Len(t, res.Created, 3)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 2, res.Skipped[0].Week)
	assert.Equal(t, "2025-06-16", res.Skipped[0].Date)
	assert.NotEmpty(t, res.Skipped[0].Reason)
}

func TestCreate_RepeatWeeksBounded(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), manager, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", RepeatWeeks: MaxRepeatWeeks + 1,
	})

	assert.ErrorIs(t, err, core.ErrValidation)
}

// =============================================================================
// CLAIM
// =============================================================================

func TestClaim_OpenShift(t *testing.T) {
	svc, _ := newTestService(t)
	open := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00",
	})

	claimed, err := svc.Claim(context.Background(), anna, open.ID)

	require.NoError(t, err)
	assert.Equal(t, anna.EmployeeID, claimed.EmployeeID)
	assert.Equal(t, core.ShiftScheduled, claimed.Status)
}

func TestClaim_AlreadyTaken(t *testing.T) {
	svc, _ := newTestService(t)
	open := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00",
	})
	_, err := svc.Claim(context.Background(), anna, open.ID)
	require.NoError(t, err)

	// WHEN a second employee claims after the race is lost
	_, err = svc.Claim(context.Background(), ben, open.ID)

	// THEN the loser gets the retryable taken error
	assert.ErrorIs(t, err, core.ErrShiftTaken)
	assert.True(t, core.IsRetryable(err))
}

func TestClaim_ConflictingEmployeeBlocked(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})
	open := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "14:00", EndTime: "22:00",
	})

	_, err := svc.Claim(context.Background(), anna, open.ID)

	assert.True(t, core.IsConflict(err))
}

// =============================================================================
// UPDATE & CANCEL
// =============================================================================

func TestUpdate_TimeChangeRecomputesFlags(t *testing.T) {
	svc, _ := newTestService(t)
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})
	require.Equal(t, 0, shift.SurchargePercent)

	// WHEN the shift moves into the night window
	start, end := "22:00", "06:00"
	updated, err := svc.Update(context.Background(), manager, shift.ID, UpdateShiftInput{
		StartTime: &start, EndTime: &end,
	})

	require.NoError(t, err)
	assert.True(t, updated.IsNightShift)
	assert.Equal(t, 25, updated.SurchargePercent)
}

func TestUpdate_UnassignReopensShift(t *testing.T) {
	svc, _ := newTestService(t)
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})

	nobody := ""
	updated, err := svc.Update(context.Background(), manager, shift.ID, UpdateShiftInput{EmployeeID: &nobody})

	require.NoError(t, err)
	assert.Equal(t, core.ShiftOpen, updated.Status)
	assert.Empty(t, updated.EmployeeID)
}

func TestCancel_FreesTheInterval(t *testing.T) {
	svc, _ := newTestService(t)
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})

	_, err := svc.Cancel(context.Background(), manager, shift.ID)
	require.NoError(t, err)

	// THEN the window is plannable again
	res, err := svc.Create(context.Background(), manager, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})
	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
}

// =============================================================================
// SWAPS
// =============================================================================

func TestSwap_AcceptAutoApprovesWhenClean(t *testing.T) {
	svc, store := newTestService(t)
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})

	req, err := svc.RequestSwap(context.Background(), anna, SwapInput{
		ShiftID: shift.ID, TargetID: ben.EmployeeID,
	})
	require.NoError(t, err)

	// WHEN the target accepts and no conflict exists
	done, err := svc.AcceptSwap(context.Background(), ben, req.ID)

	// THEN the swap completes without a manager
	require.NoError(t, err)
	assert.Equal(t, core.RequestCompleted, done.Status)
	assert.Equal(t, "system", done.ReviewedBy)

	moved, err := store.GetShift(context.Background(), testWorkspace, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, ben.EmployeeID, moved.EmployeeID)
}

func TestSwap_AcceptWaitsForManagerWhenDisabled(t *testing.T) {
	svc, store := newTestService(t)
	disableSetting(t, store, core.SettingAutoApproveSwap)
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})
	req, err := svc.RequestSwap(context.Background(), anna, SwapInput{
		ShiftID: shift.ID, TargetID: ben.EmployeeID,
	})
	require.NoError(t, err)

	accepted, err := svc.AcceptSwap(context.Background(), ben, req.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RequestAccepted, accepted.Status)

	// AND the manager approval performs the reassignment
	done, err := svc.ApproveSwap(context.Background(), manager, req.ID, "ok")
	require.NoError(t, err)
	assert.Equal(t, core.RequestCompleted, done.Status)
	assert.Equal(t, manager.EmployeeID, done.ReviewedBy)

	moved, err := store.GetShift(context.Background(), testWorkspace, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, ben.EmployeeID, moved.EmployeeID)
}

func TestSwap_TwoWayReassignsBothShifts(t *testing.T) {
	svc, store := newTestService(t)
	disableSetting(t, store, core.SettingAutoApproveSwap)
	annaShift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})
	benShift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-03", StartTime: "08:00", EndTime: "16:00", EmployeeID: ben.EmployeeID,
	})

	req, err := svc.RequestSwap(context.Background(), anna, SwapInput{
		ShiftID: annaShift.ID, TargetID: ben.EmployeeID, TargetShiftID: benShift.ID,
	})
	require.NoError(t, err)
	_, err = svc.AcceptSwap(context.Background(), ben, req.ID)
	require.NoError(t, err)

	done, err := svc.ApproveSwap(context.Background(), manager, req.ID, "")
	require.NoError(t, err)
	assert.Equal(t, core.RequestCompleted, done.Status)

	ctx := context.Background()
	first, err := store.GetShift(ctx, testWorkspace, annaShift.ID)
	require.NoError(t, err)
	second, err := store.GetShift(ctx, testWorkspace, benShift.ID)
	require.NoError(t, err)
	assert.Equal(t, ben.EmployeeID, first.EmployeeID)
	assert.Equal(t, anna.EmployeeID, second.EmployeeID)
}

func TestSwap_ApproveBlockedByTargetConflict(t *testing.T) {
	svc, store := newTestService(t)
	disableSetting(t, store, core.SettingAutoApproveSwap)
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})
	// GIVEN the target already works that window
	mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "10:00", EndTime: "18:00", EmployeeID: ben.EmployeeID,
	})
	req, err := svc.RequestSwap(context.Background(), anna, SwapInput{
		ShiftID: shift.ID, TargetID: ben.EmployeeID,
	})
	require.NoError(t, err)

	_, err = svc.ApproveSwap(context.Background(), manager, req.ID, "")

	assert.True(t, core.IsConflict(err))
}

func TestSwap_OnlyTargetMayAccept(t *testing.T) {
	svc, _ := newTestService(t)
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})
	req, err := svc.RequestSwap(context.Background(), anna, SwapInput{
		ShiftID: shift.ID, TargetID: ben.EmployeeID,
	})
	require.NoError(t, err)

	_, err = svc.AcceptSwap(context.Background(), anna, req.ID)

	assert.ErrorIs(t, err, core.ErrForbidden)
}

// =============================================================================
// CHANGE REQUESTS
// =============================================================================

func TestChange_ApproveAppliesDiff(t *testing.T) {
	svc, store := newTestService(t)
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})

	req, err := svc.RequestChange(context.Background(), anna, ChangeInput{
		ShiftID: shift.ID, NewStart: "22:00", NewEnd: "06:00", Reason: "childcare",
	})
	require.NoError(t, err)
	assert.Equal(t, core.RequestPending, req.Status)

	done, err := svc.ApproveChange(context.Background(), manager, req.ID, "fine")
	require.NoError(t, err)
	assert.Equal(t, core.RequestApproved, done.Status)

	// THEN the shift carries the new window and recomputed flags
	changed, err := store.GetShift(context.Background(), testWorkspace, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, "22:00", changed.StartTime)
	assert.Equal(t, "06:00", changed.EndTime)
	assert.True(t, changed.IsNightShift)
	assert.Equal(t, 25, changed.SurchargePercent)
}

func TestChange_ApproveBlockedByConflict(t *testing.T) {
	svc, _ := newTestService(t)
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "12:00", EmployeeID: anna.EmployeeID,
	})
	mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "14:00", EndTime: "18:00", EmployeeID: anna.EmployeeID,
	})
	req, err := svc.RequestChange(context.Background(), anna, ChangeInput{
		ShiftID: shift.ID, NewStart: "13:00", NewEnd: "17:00",
	})
	require.NoError(t, err)

	_, err = svc.ApproveChange(context.Background(), manager, req.ID, "")

	assert.True(t, core.IsConflict(err))
}

func TestChange_EmptyDiffRejected(t *testing.T) {
	svc, _ := newTestService(t)
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})

	_, err := svc.RequestChange(context.Background(), anna, ChangeInput{ShiftID: shift.ID})

	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestChange_CancelByRequester(t *testing.T) {
	svc, _ := newTestService(t)
	shift := mustCreate(t, svc, CreateShiftInput{
		Date: "2025-06-02", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})
	req, err := svc.RequestChange(context.Background(), anna, ChangeInput{
		ShiftID: shift.ID, NewStart: "09:00",
	})
	require.NoError(t, err)

	done, err := svc.CancelChange(context.Background(), anna, req.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RequestCancelled, done.Status)

	_, err = svc.CancelChange(context.Background(), anna, req.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

// =============================================================================
// ABSENCES
// =============================================================================

func TestAbsence_TotalDaysCountsWeekdays(t *testing.T) {
	svc, _ := newTestService(t)

	// GIVEN Monday through next Monday with a half day on each end
	absence, err := svc.CreateAbsence(context.Background(), anna, AbsenceInput{
		Category:     core.AbsenceVacation,
		StartDate:    "2025-06-02",
		EndDate:      "2025-06-09",
		HalfDayStart: true,
		HalfDayEnd:   true,
	})

	// THEN six weekdays minus two halves
	require.NoError(t, err)
	assert.Equal(t, 5.0, absence.TotalDays)
}

func TestAbsence_OverlapRejected(t *testing.T) {
	svc, store := newTestService(t)
	disableSetting(t, store, core.SettingAutoApproveAbsence)

	_, err := svc.CreateAbsence(context.Background(), anna, AbsenceInput{
		Category: core.AbsenceVacation, StartDate: "2025-06-02", EndDate: "2025-06-06",
	})
	require.NoError(t, err)

	// WHEN a second request covers any of the same days
	_, err = svc.CreateAbsence(context.Background(), anna, AbsenceInput{
		Category: core.AbsenceSpecial, StartDate: "2025-06-06", EndDate: "2025-06-10",
	})

	// THEN it is rejected as a conflict
	assert.ErrorIs(t, err, core.ErrAbsenceOverlap)
	assert.True(t, core.IsConflict(err))
}

func TestAbsence_OtherEmployeeUnaffected(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateAbsence(context.Background(), anna, AbsenceInput{
		Category: core.AbsenceVacation, StartDate: "2025-06-02", EndDate: "2025-06-06",
	})
	require.NoError(t, err)

	_, err = svc.CreateAbsence(context.Background(), ben, AbsenceInput{
		Category: core.AbsenceVacation, StartDate: "2025-06-02", EndDate: "2025-06-06",
	})
	assert.NoError(t, err)
}

func TestAbsence_DecideAndCancel(t *testing.T) {
	svc, store := newTestService(t)
	disableSetting(t, store, core.SettingAutoApproveAbsence)
	absence, err := svc.CreateAbsence(context.Background(), anna, AbsenceInput{
		Category: core.AbsenceVacation, StartDate: "2025-06-02", EndDate: "2025-06-04",
	})
	require.NoError(t, err)
	require.Equal(t, core.AbsencePending, absence.Status)

	// Employees cannot decide
	_, err = svc.DecideAbsence(context.Background(), anna, absence.ID, true, "")
	assert.ErrorIs(t, err, core.ErrForbidden)

	approved, err := svc.DecideAbsence(context.Background(), manager, absence.ID, true, "enjoy")
	require.NoError(t, err)
	assert.Equal(t, core.AbsenceApproved, approved.Status)
	assert.Equal(t, manager.EmployeeID, approved.ReviewedBy)

	// Approved absences need management to cancel
	_, err = svc.CancelAbsence(context.Background(), anna, absence.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	cancelled, err := svc.CancelAbsence(context.Background(), manager, absence.ID)
	require.NoError(t, err)
	assert.Equal(t, core.AbsenceCancelled, cancelled.Status)
}

func TestAbsence_BlocksShiftPlanning(t *testing.T) {
	svc, store := newTestService(t)
	disableSetting(t, store, core.SettingAutoApproveAbsence)
	_, err := svc.CreateAbsence(context.Background(), anna, AbsenceInput{
		Category: core.AbsenceVacation, StartDate: "2025-06-02", EndDate: "2025-06-06",
	})
	require.NoError(t, err)

	// WHEN a shift is planned inside the pending absence
	_, err = svc.Create(context.Background(), manager, CreateShiftInput{
		Date: "2025-06-04", StartTime: "08:00", EndTime: "16:00", EmployeeID: anna.EmployeeID,
	})

	require.Error(t, err)
	var ce *core.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.ConflictAbsence, ce.Conflicts[0].Kind)
}
