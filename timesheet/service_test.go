/*
service_test.go - Entry workflow, legal-break policy, audit, month lock

Runs against the real sqlite store (in-memory). The punch-clock tests
steer a fake clock through a full working day.
*/
package timesheet

import (
	"context"
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

	svc := NewService(store, core.NopNotifier{}, nil)
	// Ticking fake clock: audit rows need distinct timestamps to keep
	// their order stable.
	base := time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		base = base.Add(time.Second)
		return base
	}
	svc.Location = time.UTC
	return svc, store
}

func disableSetting(t *testing.T, store *sqlite.Store, key string) {
	t.Helper()
	require.NoError(t, store.UpsertSetting(context.Background(), &core.AutomationSetting{
		WorkspaceID: testWorkspace, Key: key, Enabled: false, UpdatedAt: time.Now(),
	}))
}

func lockMonth(t *testing.T, store *sqlite.Store, year, month int) {
	t.Helper()
	now := time.Now()
	require.NoError(t, store.UpsertMonthClose(context.Background(), &core.MonthClose{
		ID: "mc-test", WorkspaceID: testWorkspace, Year: year, Month: month,
		Status: core.MonthLocked, LockedBy: manager.EmployeeID, LockedAt: &now, CreatedAt: now,
	}))
}

func mustCreate(t *testing.T, svc *Service, in CreateInput) *core.TimeEntry {
	t.Helper()
	entry, err := svc.Create(context.Background(), anna, in)
	require.NoError(t, err)
	return entry
}

func annaDay(start, end string, breakMin int) CreateInput {
	return CreateInput{
		EmployeeID: anna.EmployeeID, Date: "2025-06-02",
		StartTime: start, EndTime: end, BreakMinutes: breakMin,
	}
}

// =============================================================================
// CREATE & LEGAL BREAK
// =============================================================================

func TestCreate_LegalBreakRaisedSilently(t *testing.T) {
	svc, _ := newTestService(t)

	// GIVEN ten working hours with only a 10 minute break declared
	entry := mustCreate(t, svc, annaDay("09:00", "19:00", 10))

	// THEN the break is raised to the ArbZG minimum, not rejected
	assert.Equal(t, 600, entry.GrossMinutes)
	assert.Equal(t, 45, entry.BreakMinutes)
	assert.Equal(t, 555, entry.NetMinutes)
	assert.Equal(t, core.EntryDraft, entry.Status)
}

func TestCreate_LegalBreakDisabledKeepsDeclared(t *testing.T) {
	svc, store := newTestService(t)
	disableSetting(t, store, core.SettingLegalBreak)

	entry := mustCreate(t, svc, annaDay("09:00", "19:00", 10))

	assert.Equal(t, 10, entry.BreakMinutes)
	assert.Equal(t, 590, entry.NetMinutes)
}

func TestCreate_WritesCreatedAudit(t *testing.T) {
	svc, store := newTestService(t)
	entry := mustCreate(t, svc, annaDay("08:00", "16:00", 30))

	audits, err := store.ListAudit(context.Background(), testWorkspace, entry.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, core.AuditCreated, audits[0].Action)
	assert.Equal(t, anna.EmployeeID, audits[0].PerformedBy)
}

func TestCreate_SameDayOverlapRejected(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, annaDay("08:00", "16:00", 30))

	_, err := svc.Create(context.Background(), anna, annaDay("14:00", "20:00", 0))

	assert.True(t, core.IsConflict(err))
}

func TestCreate_OtherEmployeeForbidden(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), ben, annaDay("08:00", "16:00", 30))

	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestCreate_ManagerMayRecordForEmployee(t *testing.T) {
	svc, _ := newTestService(t)

	entry, err := svc.Create(context.Background(), manager, annaDay("08:00", "16:00", 30))

	require.NoError(t, err)
	assert.Equal(t, anna.EmployeeID, entry.EmployeeID)
}

// =============================================================================
// EDIT
// =============================================================================

func TestEdit_DoesNotReapplyBreakFloor(t *testing.T) {
	svc, _ := newTestService(t)
	entry := mustCreate(t, svc, annaDay("09:00", "19:00", 10))
	require.Equal(t, 45, entry.BreakMinutes)

	// WHEN the correction records the break actually taken
	ten := 10
	edited, err := svc.Edit(context.Background(), anna, entry.ID, UpdateInput{BreakMinutes: &ten})

	// THEN the floor is not re-applied
	require.NoError(t, err)
	assert.Equal(t, 10, edited.BreakMinutes)
	assert.Equal(t, 590, edited.NetMinutes)
}

func TestEdit_AuditHoldsOnlyChangedFields(t *testing.T) {
	svc, store := newTestService(t)
	entry := mustCreate(t, svc, annaDay("08:00", "16:00", 30))

	end := "17:00"
	_, err := svc.Edit(context.Background(), anna, entry.ID, UpdateInput{EndTime: &end})
	require.NoError(t, err)

	audits, err := store.ListAudit(context.Background(), testWorkspace, entry.ID)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	edit := audits[1]
	assert.Equal(t, core.AuditEdited, edit.Action)
	require.Len(t, edit.Changes, 1)
	assert.Equal(t, core.FieldChange{Old: "16:00", New: "17:00"}, edit.Changes["endTime"])
}

func TestEdit_NoChangeWritesNoAudit(t *testing.T) {
	svc, store := newTestService(t)
	entry := mustCreate(t, svc, annaDay("08:00", "16:00", 30))

	same := "16:00"
	_, err := svc.Edit(context.Background(), anna, entry.ID, UpdateInput{EndTime: &same})
	require.NoError(t, err)

	audits, err := store.ListAudit(context.Background(), testWorkspace, entry.ID)
	require.NoError(t, err)
	assert.Len(t, audits, 1) // only CREATED
}

func TestEdit_SubmittedEntryLocked(t *testing.T) {
	svc, _ := newTestService(t)
	entry := mustCreate(t, svc, annaDay("08:00", "16:00", 30))
	_, err := svc.Transition(context.Background(), anna, entry.ID, ActionSubmit, "")
	require.NoError(t, err)

	end := "17:00"
	_, err = svc.Edit(context.Background(), anna, entry.ID, UpdateInput{EndTime: &end})

	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestDelete_DraftOnly(t *testing.T) {
	svc, store := newTestService(t)
	entry := mustCreate(t, svc, annaDay("08:00", "16:00", 30))

	require.NoError(t, svc.Delete(context.Background(), anna, entry.ID))
	_, err := store.GetEntry(context.Background(), testWorkspace, entry.ID)
	assert.True(t, core.IsNotFound(err))

	submitted := mustCreate(t, svc, annaDay("08:00", "16:00", 30))
	_, err = svc.Transition(context.Background(), anna, submitted.ID, ActionSubmit, "")
	require.NoError(t, err)
	err = svc.Delete(context.Background(), anna, submitted.ID)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

// =============================================================================
// WORKFLOW
// =============================================================================

func TestWorkflow_HappyPathToConfirmed(t *testing.T) {
	svc, store := newTestService(t)
	entry := mustCreate(t, svc, annaDay("08:00", "16:00", 30))
	ctx := context.Background()

	e, err := svc.Transition(ctx, anna, entry.ID, ActionSubmit, "")
	require.NoError(t, err)
	assert.Equal(t, core.EntrySubmitted, e.Status)
	assert.NotNil(t, e.SubmittedAt)

	e, err = svc.Transition(ctx, manager, entry.ID, ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, core.EntryReviewed, e.Status)

	e, err = svc.Transition(ctx, manager, entry.ID, ActionConfirm, "")
	require.NoError(t, err)
	assert.Equal(t, core.EntryConfirmed, e.Status)
	assert.Equal(t, manager.EmployeeID, e.ConfirmedBy)
	require.NotNil(t, e.ConfirmedAt)

	audits, err := store.ListAudit(ctx, testWorkspace, entry.ID)
	require.NoError(t, err)
	assert.Len(t, audits, 4) // created, submitted, approved, confirmed
}

func TestWorkflow_CorrectionLoop(t *testing.T) {
	svc, _ := newTestService(t)
	entry := mustCreate(t, svc, annaDay("08:00", "16:00", 30))
	ctx := context.Background()

	_, err := svc.Transition(ctx, anna, entry.ID, ActionSubmit, "")
	require.NoError(t, err)
	e, err := svc.Transition(ctx, manager, entry.ID, ActionRequestCorrection, "wrong end time")
	require.NoError(t, err)
	assert.Equal(t, core.EntryCorrection, e.Status)

	// The employee fixes the entry and resubmits
	end := "17:00"
	_, err = svc.Edit(ctx, anna, entry.ID, UpdateInput{EndTime: &end})
	require.NoError(t, err)
	e, err = svc.Transition(ctx, anna, entry.ID, ActionSubmit, "")
	require.NoError(t, err)
	assert.Equal(t, core.EntrySubmitted, e.Status)
}

func TestWorkflow_EmployeeCannotApprove(t *testing.T) {
	svc, _ := newTestService(t)
	entry := mustCreate(t, svc, annaDay("08:00", "16:00", 30))
	ctx := context.Background()
	_, err := svc.Transition(ctx, anna, entry.ID, ActionSubmit, "")
	require.NoError(t, err)

	_, err = svc.Transition(ctx, anna, entry.ID, ActionApprove, "")

	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestWorkflow_RejectedIsTerminal(t *testing.T) {
	svc, _ := newTestService(t)
	entry := mustCreate(t, svc, annaDay("08:00", "16:00", 30))
	ctx := context.Background()
	_, err := svc.Transition(ctx, anna, entry.ID, ActionSubmit, "")
	require.NoError(t, err)
	_, err = svc.Transition(ctx, manager, entry.ID, ActionReject, "not plausible")
	require.NoError(t, err)

	_, err = svc.Transition(ctx, anna, entry.ID, ActionSubmit, "")

	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestWorkflow_ConfirmRequiresReview(t *testing.T) {
	svc, _ := newTestService(t)
	entry := mustCreate(t, svc, annaDay("08:00", "16:00", 30))
	ctx := context.Background()
	_, err := svc.Transition(ctx, anna, entry.ID, ActionSubmit, "")
	require.NoError(t, err)

	_, err = svc.Transition(ctx, manager, entry.ID, ActionConfirm, "")

	var te *core.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, string(core.EntrySubmitted), te.From)
}

// =============================================================================
// MONTH LOCK
// =============================================================================

func TestMonthLock_BlocksEveryMutation(t *testing.T) {
	svc, store := newTestService(t)
	entry := mustCreate(t, svc, annaDay("08:00", "16:00", 30))
	lockMonth(t, store, 2025, 6)
	ctx := context.Background()

	_, err := svc.Create(ctx, anna, annaDay("18:00", "20:00", 0))
	assert.ErrorIs(t, err, core.ErrMonthLocked)

	end := "17:00"
	_, err = svc.Edit(ctx, anna, entry.ID, UpdateInput{EndTime: &end})
	assert.ErrorIs(t, err, core.ErrMonthLocked)

	_, err = svc.Transition(ctx, anna, entry.ID, ActionSubmit, "")
	assert.ErrorIs(t, err, core.ErrMonthLocked)

	err = svc.Delete(ctx, anna, entry.ID)
	assert.ErrorIs(t, err, core.ErrMonthLocked)
}

func TestMonthLock_OtherMonthStaysOpen(t *testing.T) {
	svc, store := newTestService(t)
	lockMonth(t, store, 2025, 5)

	_, err := svc.Create(context.Background(), anna, annaDay("08:00", "16:00", 30))

	assert.NoError(t, err)
}

// =============================================================================
// PUNCH CLOCK
// =============================================================================

// clockAt moves the fake clock and runs one punch action.
func clockAt(t *testing.T, svc *Service, actor core.Actor, hour, min int, action ClockAction) *core.TimeEntry {
	t.Helper()
	svc.Now = func() time.Time { return time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC) }
	entry, err := svc.Clock(context.Background(), actor, action, ClockInput{})
	require.NoError(t, err)
	return entry
}

func TestClock_FullDayWithBreak(t *testing.T) {
	svc, _ := newTestService(t)

	// GIVEN a working day punched in four actions
	in := clockAt(t, svc, anna, 9, 0, ClockIn)
	assert.True(t, in.IsLiveClock)
	assert.Equal(t, "09:00", in.StartTime)
	assert.Equal(t, core.EntryDraft, in.Status)

	clockAt(t, svc, anna, 13, 0, BreakStart)
	afterBreak := clockAt(t, svc, anna, 13, 10, BreakEnd)
	assert.Equal(t, 10, afterBreak.BreakMinutes)

	out := clockAt(t, svc, anna, 19, 0, ClockOut)

	// THEN the ten minute break is raised to the legal minimum
	assert.Equal(t, "19:00", out.EndTime)
	assert.Equal(t, 600, out.GrossMinutes)
	assert.Equal(t, 45, out.BreakMinutes)
	assert.Equal(t, 555, out.NetMinutes)
	assert.NotNil(t, out.ClockOutAt)
	assert.Equal(t, core.EntryDraft, out.Status)
}

func TestClock_DoubleClockInRejected(t *testing.T) {
	svc, _ := newTestService(t)
	clockAt(t, svc, anna, 9, 0, ClockIn)

	_, err := svc.Clock(context.Background(), anna, ClockIn, ClockInput{})

	assert.ErrorIs(t, err, core.ErrClockState)
}

func TestClock_OutWithoutInRejected(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Clock(context.Background(), anna, ClockOut, ClockInput{})

	assert.ErrorIs(t, err, core.ErrClockState)
}

func TestClock_OpenBreakClosesAtClockOut(t *testing.T) {
	svc, _ := newTestService(t)
	clockAt(t, svc, anna, 8, 0, ClockIn)
	clockAt(t, svc, anna, 12, 0, BreakStart)

	// WHEN the employee forgets to end the break
	out := clockAt(t, svc, anna, 12, 50, ClockOut)

	// THEN the break runs to clock-out (50 min, above the floor for 4h50)
	assert.Nil(t, out.ActiveBreakStart)
	assert.Equal(t, 50, out.BreakMinutes)
	assert.Equal(t, 290, out.GrossMinutes)
	assert.Equal(t, 240, out.NetMinutes)
}

func TestClock_StatusReportsOpenEntry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	status, err := svc.ClockStatus(ctx, anna)
	require.NoError(t, err)
	assert.Nil(t, status)

	clockAt(t, svc, anna, 9, 0, ClockIn)
	status, err = svc.ClockStatus(ctx, anna)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, "09:00", status.StartTime)

	clockAt(t, svc, anna, 17, 0, ClockOut)
	status, err = svc.ClockStatus(ctx, anna)
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestClock_BreakWithoutClockInRejected(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Clock(context.Background(), anna, BreakStart, ClockInput{})

	assert.ErrorIs(t, err, core.ErrClockState)
}
