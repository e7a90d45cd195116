/*
service_test.go - Automation rule behavior

Each rule runs against the real sqlite store (in-memory) with directly
seeded records, so the tests pin the exact store-level effects:
cancelled rows, confirmed statuses, created entries, balances.
*/
package automation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/store/sqlite"
)

// =============================================================================
// FIXTURE
// =============================================================================

const testWorkspace = "ws-test"

var fixedNow = time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC) // a Wednesday

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
	} {
		require.NoError(t, store.CreateEmployee(ctx, e))
	}

	svc := NewService(store, core.NopNotifier{})
	svc.Now = func() time.Time { return fixedNow }
	return svc, store
}

func day(dateStr string) time.Time {
	d, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		panic(err)
	}
	return d
}

func seedShift(t *testing.T, store *sqlite.Store, id, employeeID, dateStr, start, end string, status core.ShiftStatus) {
	t.Helper()
	require.NoError(t, store.CreateShift(context.Background(), &core.Shift{
		ID: id, WorkspaceID: testWorkspace, Date: day(dateStr),
		StartTime: start, EndTime: end, EmployeeID: employeeID,
		Status: status, CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}))
}

func seedAbsence(t *testing.T, store *sqlite.Store, id, employeeID string, category core.AbsenceCategory, from, to string) *core.AbsenceRequest {
	t.Helper()
	a := &core.AbsenceRequest{
		ID: id, WorkspaceID: testWorkspace, EmployeeID: employeeID,
		Category: category, StartDate: day(from), EndDate: day(to),
		TotalDays: 1, Status: core.AbsencePending,
		CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}
	require.NoError(t, store.CreateAbsence(context.Background(), a))
	return a
}

func seedEntry(t *testing.T, store *sqlite.Store, id, employeeID, dateStr string, net int, status core.EntryStatus) {
	t.Helper()
	require.NoError(t, store.CreateEntry(context.Background(), &core.TimeEntry{
		ID: id, WorkspaceID: testWorkspace, EmployeeID: employeeID,
		Date: day(dateStr), StartTime: "08:00", EndTime: "16:00",
		GrossMinutes: net, NetMinutes: net, Status: status,
		CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}))
}

func seedAccount(t *testing.T, store *sqlite.Store, employeeID string, contractHours, carryover int, periodStart string) {
	t.Helper()
	require.NoError(t, store.UpsertAccount(context.Background(), &core.TimeAccount{
		ID: "acc-" + employeeID, WorkspaceID: testWorkspace, EmployeeID: employeeID,
		ContractHours: contractHours, CarryoverMinutes: carryover, PeriodStart: day(periodStart),
	}))
}

// =============================================================================
// ABSENCE AUTOMATION
// =============================================================================

func TestAutoDecide_SickLeaveAlwaysApproved(t *testing.T) {
	svc, store := newTestService(t)
	seedShift(t, store, "s1", "anna", "2025-06-10", "08:00", "16:00", core.ShiftScheduled)
	absence := seedAbsence(t, store, "a1", "anna", core.AbsenceSick, "2025-06-10", "2025-06-11")

	approved, err := svc.AutoDecide(context.Background(), absence)

	require.NoError(t, err)
	assert.True(t, approved)
	assert.Equal(t, core.AbsenceApproved, absence.Status)
	assert.Equal(t, "system", absence.ReviewedBy)

	// AND the covering shift is cancelled by the cascade
	shift, err := store.GetShift(context.Background(), testWorkspace, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.ShiftCancelled, shift.Status)
}

func TestAutoDecide_VacationWithShiftsStaysPending(t *testing.T) {
	svc, store := newTestService(t)
	seedShift(t, store, "s1", "anna", "2025-06-10", "08:00", "16:00", core.ShiftScheduled)
	absence := seedAbsence(t, store, "a1", "anna", core.AbsenceVacation, "2025-06-10", "2025-06-11")

	approved, err := svc.AutoDecide(context.Background(), absence)

	require.NoError(t, err)
	assert.False(t, approved)
	assert.Equal(t, core.AbsencePending, absence.Status)
}

func TestAutoDecide_VacationWithoutShiftsApproved(t *testing.T) {
	svc, store := newTestService(t)
	absence := seedAbsence(t, store, "a1", "anna", core.AbsenceVacation, "2025-06-10", "2025-06-11")

	approved, err := svc.AutoDecide(context.Background(), absence)

	require.NoError(t, err)
	assert.True(t, approved)

	stored, err := store.GetAbsence(context.Background(), testWorkspace, "a1")
	require.NoError(t, err)
	assert.Equal(t, core.AbsenceApproved, stored.Status)
}

func TestCascade_CancelsExactlyTheWindow(t *testing.T) {
	svc, store := newTestService(t)
	// GIVEN three shifts inside the window and one after it
	seedShift(t, store, "in1", "anna", "2025-06-10", "08:00", "16:00", core.ShiftScheduled)
	seedShift(t, store, "in2", "anna", "2025-06-11", "08:00", "16:00", core.ShiftScheduled)
	seedShift(t, store, "in3", "anna", "2025-06-12", "08:00", "16:00", core.ShiftScheduled)
	seedShift(t, store, "out1", "anna", "2025-06-13", "08:00", "16:00", core.ShiftScheduled)
	absence := seedAbsence(t, store, "a1", "anna", core.AbsenceVacation, "2025-06-10", "2025-06-12")
	absence.Status = core.AbsenceApproved

	cancelled, err := svc.CascadeApproval(context.Background(), absence)

	require.NoError(t, err)
	assert.Equal(t, 3, cancelled)
	for id, want := range map[string]core.ShiftStatus{
		"in1": core.ShiftCancelled, "in2": core.ShiftCancelled,
		"in3": core.ShiftCancelled, "out1": core.ShiftScheduled,
	} {
		shift, err := store.GetShift(context.Background(), testWorkspace, id)
		require.NoError(t, err)
		assert.Equal(t, want, shift.Status, id)
	}
}

// =============================================================================
// TIME ACCOUNT
// =============================================================================

func TestRecalculate_BalanceFormula(t *testing.T) {
	svc, store := newTestService(t)
	// GIVEN a 40h contract running since Monday 2025-06-02 (one week)
	seedAccount(t, store, "anna", 40, 120, "2025-06-02")
	seedEntry(t, store, "e1", "anna", "2025-06-02", 480, core.EntryConfirmed)
	seedEntry(t, store, "e2", "anna", "2025-06-03", 480, core.EntryConfirmed)
	seedEntry(t, store, "e3", "anna", "2025-06-03", 480, core.EntrySubmitted) // not confirmed, ignored

	require.NoError(t, svc.Recalculate(context.Background(), testWorkspace, "anna"))

	// THEN balance = carryover 120 + worked 960 - expected 2400
	account, err := store.GetAccount(context.Background(), testWorkspace, "anna")
	require.NoError(t, err)
	assert.Equal(t, -1320, account.BalanceMinutes)
	assert.NotNil(t, account.LastCalculated)
}

func TestRecalculate_NoAccountIsNoop(t *testing.T) {
	svc, _ := newTestService(t)

	assert.NoError(t, svc.Recalculate(context.Background(), testWorkspace, "mia"))
}

func TestOvertimeCheck_FlagsOnlyOffenders(t *testing.T) {
	svc, store := newTestService(t)
	seedAccount(t, store, "anna", 10, 0, "2025-06-02")
	seedAccount(t, store, "mia", 40, 0, "2025-06-02")
	// Current week (Mon 2025-06-02 .. Sun 2025-06-08)
	seedEntry(t, store, "e1", "anna", "2025-06-02", 480, core.EntrySubmitted)
	seedEntry(t, store, "e2", "anna", "2025-06-03", 480, core.EntryConfirmed)
	seedEntry(t, store, "e3", "mia", "2025-06-02", 480, core.EntryConfirmed)
	// Outside the week
	seedEntry(t, store, "e4", "mia", "2025-05-26", 3000, core.EntryConfirmed)

	alerts, err := svc.OvertimeCheck(context.Background(), testWorkspace)

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "anna", alerts[0].EmployeeID)
	assert.Equal(t, 960-600, alerts[0].OvertimeMinutes)
}

func TestOvertimeCheck_DisabledSettingSkips(t *testing.T) {
	svc, store := newTestService(t)
	require.NoError(t, store.UpsertSetting(context.Background(), &core.AutomationSetting{
		WorkspaceID: testWorkspace, Key: core.SettingOvertimeAlerts, Enabled: false, UpdatedAt: fixedNow,
	}))
	seedAccount(t, store, "anna", 1, 0, "2025-06-02")
	seedEntry(t, store, "e1", "anna", "2025-06-02", 480, core.EntryConfirmed)

	alerts, err := svc.OvertimeCheck(context.Background(), testWorkspace)

	require.NoError(t, err)
	assert.Empty(t, alerts)
}

// =============================================================================
// PAYROLL LOCK
// =============================================================================

func TestLockMonth_ConfirmsReviewedEntries(t *testing.T) {
	svc, store := newTestService(t)
	seedEntry(t, store, "e1", "anna", "2025-05-05", 480, core.EntryReviewed)
	seedEntry(t, store, "e2", "anna", "2025-05-06", 480, core.EntrySubmitted)
	seedEntry(t, store, "e3", "anna", "2025-06-02", 480, core.EntryReviewed) // other month

	// WHEN defaulting to the previous month
	res, err := svc.LockMonth(context.Background(), testWorkspace, "mia", 0, 0)

	require.NoError(t, err)
	assert.Equal(t, 2025, res.Year)
	assert.Equal(t, 5, res.Month)
	assert.Equal(t, 1, res.Confirmed)

	ctx := context.Background()
	confirmed, err := store.GetEntry(ctx, testWorkspace, "e1")
	require.NoError(t, err)
	assert.Equal(t, core.EntryConfirmed, confirmed.Status)
	assert.Equal(t, "system", confirmed.ConfirmedBy)

	untouched, err := store.GetEntry(ctx, testWorkspace, "e2")
	require.NoError(t, err)
	assert.Equal(t, core.EntrySubmitted, untouched.Status)

	otherMonth, err := store.GetEntry(ctx, testWorkspace, "e3")
	require.NoError(t, err)
	assert.Equal(t, core.EntryReviewed, otherMonth.Status)
}

func TestLockMonth_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	first, err := svc.LockMonth(context.Background(), testWorkspace, "mia", 2025, 5)
	require.NoError(t, err)
	assert.False(t, first.Already)

	second, err := svc.LockMonth(context.Background(), testWorkspace, "mia", 2025, 5)
	require.NoError(t, err)
	assert.True(t, second.Already)
	assert.Zero(t, second.Confirmed)
}

func TestMonthClose_LockUnlockExport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.LockMonth(ctx, testWorkspace, "mia", 2025, 5)
	require.NoError(t, err)

	unlocked, err := svc.UnlockMonth(ctx, testWorkspace, 2025, 5)
	require.NoError(t, err)
	assert.Equal(t, core.MonthOpen, unlocked.Status)
	assert.Empty(t, unlocked.LockedBy)
	assert.Nil(t, unlocked.LockedAt)

	// Export needs LOCKED
	_, err = svc.ExportMonth(ctx, testWorkspace, 2025, 5)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, err = svc.LockMonth(ctx, testWorkspace, "mia", 2025, 5)
	require.NoError(t, err)
	exported, err := svc.ExportMonth(ctx, testWorkspace, 2025, 5)
	require.NoError(t, err)
	assert.Equal(t, core.MonthExported, exported.Status)
	assert.NotNil(t, exported.ExportedAt)

	// Exported months stay closed
	_, err = svc.UnlockMonth(ctx, testWorkspace, 2025, 5)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

// =============================================================================
// ENTRY GENERATION
// =============================================================================

func TestGenerateTimeEntries_CreatesAndCompletes(t *testing.T) {
	svc, store := newTestService(t)
	// GIVEN a nine hour shift two days in the past
	seedShift(t, store, "s1", "anna", "2025-06-02", "08:00", "17:30", core.ShiftScheduled)
	// AND a future shift that must stay untouched
	seedShift(t, store, "s2", "anna", "2025-06-10", "08:00", "16:00", core.ShiftScheduled)

	created, err := svc.GenerateTimeEntries(context.Background(), testWorkspace)

	require.NoError(t, err)
	assert.Equal(t, 1, created)

	ctx := context.Background()
	entries, err := store.ListEntries(ctx, testWorkspace, core.EntryFilter{EmployeeID: "anna"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "s1", entry.ShiftID)
	assert.Equal(t, core.EntryDraft, entry.Status)
	assert.Equal(t, 570, entry.GrossMinutes)
	assert.Equal(t, 45, entry.BreakMinutes) // >9h, statutory minimum
	assert.Equal(t, 525, entry.NetMinutes)

	past, err := store.GetShift(ctx, testWorkspace, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.ShiftCompleted, past.Status)

	future, err := store.GetShift(ctx, testWorkspace, "s2")
	require.NoError(t, err)
	assert.Equal(t, core.ShiftScheduled, future.Status)
}

func TestGenerateTimeEntries_SecondRunCreatesNothing(t *testing.T) {
	svc, store := newTestService(t)
	seedShift(t, store, "s1", "anna", "2025-06-02", "08:00", "16:00", core.ShiftScheduled)

	first, err := svc.GenerateTimeEntries(context.Background(), testWorkspace)
	require.NoError(t, err)
	require.Equal(t, 1, first)

	second, err := svc.GenerateTimeEntries(context.Background(), testWorkspace)
	require.NoError(t, err)
	assert.Zero(t, second)

	entries, err := store.ListEntries(context.Background(), testWorkspace, core.EntryFilter{EmployeeID: "anna"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGenerateTimeEntries_SkipsHandRecordedTimes(t *testing.T) {
	svc, store := newTestService(t)
	seedShift(t, store, "s1", "anna", "2025-06-02", "08:00", "16:00", core.ShiftScheduled)
	// GIVEN the employee already recorded the day by hand
	seedEntry(t, store, "manual", "anna", "2025-06-02", 450, core.EntrySubmitted)

	created, err := svc.GenerateTimeEntries(context.Background(), testWorkspace)

	require.NoError(t, err)
	assert.Zero(t, created)

	// AND the shift is still marked done
	shift, err := store.GetShift(context.Background(), testWorkspace, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.ShiftCompleted, shift.Status)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings_MergeOverridesOverDefaults(t *testing.T) {
	svc, store := newTestService(t)
	require.NoError(t, store.UpsertSetting(context.Background(), &core.AutomationSetting{
		WorkspaceID: testWorkspace, Key: core.SettingLegalBreak, Enabled: false, UpdatedAt: fixedNow,
	}))

	settings, err := svc.Settings(context.Background(), testWorkspace)

	require.NoError(t, err)
	require.Len(t, settings, len(core.SettingKeys))
	byKey := map[string]bool{}
	for _, st := range settings {
		byKey[st.Key] = st.Enabled
	}
	assert.False(t, byKey[core.SettingLegalBreak])
	assert.True(t, byKey[core.SettingAutoApproveSwap])
}

func TestUpdateSetting_RejectsUnknownKey(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateSetting(context.Background(), testWorkspace, "fancyNewRule", true)

	assert.ErrorIs(t, err, core.ErrValidation)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "key", ve.Fields[0].Field)
}

func TestUpdateSetting_RoundTrips(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i, enabled := range []bool{false, true} {
		_, err := svc.UpdateSetting(ctx, testWorkspace, core.SettingNotifications, enabled)
		require.NoError(t, err, fmt.Sprintf("round %d", i))
		settings, err := svc.Settings(ctx, testWorkspace)
		require.NoError(t, err)
		for _, st := range settings {
			if st.Key == core.SettingNotifications {
				assert.Equal(t, enabled, st.Enabled)
			}
		}
	}
}
