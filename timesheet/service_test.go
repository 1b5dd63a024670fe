package timesheet_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/chronoshift/logging"
	"github.com/warp/chronoshift/payroll"
	"github.com/warp/chronoshift/timesheet"
	"github.com/warp/chronoshift/timesheet/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	employee   = timesheet.Actor{ID: "emp-7", Role: timesheet.RoleEmployee}
	colleague  = timesheet.Actor{ID: "emp-8", Role: timesheet.RoleEmployee}
	supervisor = timesheet.Actor{ID: "sup-1", Role: timesheet.RoleSupervisor}

	wednesday = time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc   *timesheet.Service
	store *store.Memory
	clock *clock
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithRules(t, payroll.DefaultRuleConfig())
}

func newFixtureWithRules(t *testing.T, cfg payroll.RuleConfig) *fixture {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	for _, emp := range []timesheet.Employee{
		{ID: "emp-7", Name: "Ada", HourlyRate: decimal.RequireFromString("20.00"), Active: true},
		{ID: "emp-8", Name: "Ben", HourlyRate: decimal.RequireFromString("28.50"), Active: true},
		{ID: "sup-1", Name: "Sam", HourlyRate: decimal.RequireFromString("35.00"), Active: true},
	} {
		require.NoError(t, mem.SaveEmployee(ctx, emp))
	}

	calc, err := payroll.NewCalculator(cfg)
	require.NoError(t, err)

	clk := &clock{now: time.Date(2025, time.March, 13, 9, 0, 0, 0, time.UTC)}
	var mu sync.Mutex
	seq := 0

	return &fixture{
		store: mem,
		clock: clk,
		svc: &timesheet.Service{
			Store:      mem,
			Rates:      mem,
			Calculator: calc,
			Deadline:   timesheet.DefaultDeadlineRule(),
			Logger:     logging.Discard(),
			Now:        clk.Now,
			NewID: func() string {
				mu.Lock()
				defer mu.Unlock()
				seq++
				return fmt.Sprintf("ts-%d", seq)
			},
		},
	}
}

func shift(employeeID string, date time.Time, start, end string, breakMinutes int) payroll.TimeEntry {
	return payroll.TimeEntry{
		EmployeeID:   employeeID,
		WorkDate:     date,
		Start:        payroll.MustParseClock(start),
		End:          payroll.MustParseClock(end),
		BreakMinutes: breakMinutes,
	}
}

func (f *fixture) draft(t *testing.T) *timesheet.Record {
	t.Helper()
	rec, err := f.svc.Create(context.Background(), employee, shift("emp-7", wednesday, "08:00", "17:00", 30), "")
	require.NoError(t, err)
	return rec
}

func (f *fixture) submitted(t *testing.T) *timesheet.Record {
	t.Helper()
	rec := f.draft(t)
	rec, err := f.svc.Submit(context.Background(), employee, rec.ID, rec.Version)
	require.NoError(t, err)
	return rec
}

func (f *fixture) approved(t *testing.T) *timesheet.Record {
	t.Helper()
	rec := f.submitted(t)
	rec, err := f.svc.Approve(context.Background(), supervisor, rec.ID, rec.Version, "")
	require.NoError(t, err)
	return rec
}

func (f *fixture) rejected(t *testing.T) *timesheet.Record {
	t.Helper()
	rec := f.submitted(t)
	rec, err := f.svc.Reject(context.Background(), supervisor, rec.ID, rec.Version, "break missing")
	require.NoError(t, err)
	return rec
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_StoresCalculatedDraft(t *testing.T) {
	// GIVEN: An employee reporting 08:00-17:00 with a 30 min break
	// WHEN: Creating the timesheet
	// THEN: A Draft at version 1 with the calculation attached

	f := newFixture(t)
	rec := f.draft(t)

	assert.Equal(t, "ts-1", rec.ID)
	assert.Equal(t, timesheet.StatusDraft, rec.Status)
	assert.Equal(t, int64(1), rec.Version)
	require.NotNil(t, rec.Calculation)
	assert.Equal(t, payroll.Minutes(510), rec.Calculation.Breakdown.Total)
	assert.True(t, rec.Calculation.TotalPay.Equal(decimal.RequireFromString("175.00")))
	require.Len(t, rec.History, 1)
	assert.Equal(t, timesheet.ActionCreate, rec.History[0].Action)

	stored, err := f.store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Calculation, stored.Calculation)
}

func TestCreate_InvalidEntryIsNotStored(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), employee, shift("emp-7", wednesday, "08:00", "09:00", 90), "")
	assert.ErrorIs(t, err, payroll.ErrValidation)
	assert.True(t, timesheet.IsClientError(err))

	all, err := f.store.List(context.Background(), timesheet.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreate_ForAnotherEmployeeIsRefused(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), colleague, shift("emp-7", wednesday, "08:00", "17:00", 0), "")
	assert.ErrorIs(t, err, timesheet.ErrNotPermitted)
}

func TestCreate_UnknownEmployee(t *testing.T) {
	f := newFixture(t)
	admin := timesheet.Actor{ID: "root", Role: timesheet.RoleAdmin}

	_, err := f.svc.Create(context.Background(), admin, shift("emp-404", wednesday, "08:00", "17:00", 0), "")
	assert.True(t, timesheet.IsNotFound(err))
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestLifecycle_SubmitThenApprove(t *testing.T) {
	// GIVEN: A Draft
	// WHEN: The employee submits and a supervisor approves
	// THEN: Timestamps and approver are stamped, versions bump each step

	f := newFixture(t)
	ctx := context.Background()
	rec := f.draft(t)

	submittedAt := time.Date(2025, time.March, 13, 10, 0, 0, 0, time.UTC)
	f.clock.Set(submittedAt)
	rec, err := f.svc.Submit(ctx, employee, rec.ID, rec.Version)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusSubmitted, rec.Status)
	assert.Equal(t, int64(2), rec.Version)
	require.NotNil(t, rec.SubmittedAt)
	assert.Equal(t, submittedAt, *rec.SubmittedAt)

	rec, err = f.svc.Approve(ctx, supervisor, rec.ID, rec.Version, "looks right")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusApproved, rec.Status)
	assert.Equal(t, int64(3), rec.Version)
	require.NotNil(t, rec.ApprovedBy)
	assert.Equal(t, "sup-1", *rec.ApprovedBy)
	assert.Equal(t, "looks right", rec.ApprovalNotes)
	assert.Len(t, rec.History, 3)
}

func TestApproved_AdmitsNoTransition(t *testing.T) {
	// GIVEN: An Approved record
	// WHEN: Attempting every action
	// THEN: Each fails with a StateTransitionError and nothing changes

	f := newFixture(t)
	ctx := context.Background()
	rec := f.approved(t)

	attempts := map[string]func() error{
		"edit": func() error {
			_, err := f.svc.Edit(ctx, employee, rec.ID, 0, shift("emp-7", wednesday, "09:00", "17:00", 0), "")
			return err
		},
		"submit": func() error { _, err := f.svc.Submit(ctx, employee, rec.ID, 0); return err },
		"approve": func() error { _, err := f.svc.Approve(ctx, supervisor, rec.ID, 0, ""); return err },
		"reject": func() error { _, err := f.svc.Reject(ctx, supervisor, rec.ID, 0, "no"); return err },
		"supersede": func() error {
			_, err := f.svc.Supersede(ctx, employee, rec.ID, 0, shift("emp-7", wednesday, "09:00", "17:00", 0), "")
			return err
		},
	}
	for name, attempt := range attempts {
		err := attempt()
		var transitionErr *timesheet.StateTransitionError
		assert.ErrorAs(t, err, &transitionErr, name)
		assert.ErrorIs(t, err, timesheet.ErrInvalidTransition, name)
	}

	stored, err := f.store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusApproved, stored.Status)
	assert.Equal(t, rec.Version, stored.Version)
}

func TestSubmit_OnlyFromDraft(t *testing.T) {
	f := newFixture(t)
	rec := f.submitted(t)

	_, err := f.svc.Submit(context.Background(), employee, rec.ID, 0)
	var transitionErr *timesheet.StateTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, timesheet.StatusSubmitted, transitionErr.From)
	assert.Equal(t, timesheet.ActionSubmit, transitionErr.Action)
}

func TestSubmit_RequiresCalculation(t *testing.T) {
	// GIVEN: A Draft that reached the store without a calculation
	// WHEN: Submitting
	// THEN: ErrCalculationRequired

	f := newFixture(t)
	ctx := context.Background()
	rec := &timesheet.Record{
		ID:         "imported-1",
		EmployeeID: "emp-7",
		Entry:      shift("emp-7", wednesday, "08:00", "17:00", 30),
		Status:     timesheet.StatusDraft,
	}
	require.NoError(t, f.store.Create(ctx, rec))

	_, err := f.svc.Submit(ctx, employee, rec.ID, 0)
	assert.ErrorIs(t, err, timesheet.ErrCalculationRequired)
}

func TestReject_RequiresNotes(t *testing.T) {
	f := newFixture(t)
	rec := f.submitted(t)

	_, err := f.svc.Reject(context.Background(), supervisor, rec.ID, rec.Version, "   ")
	assert.ErrorIs(t, err, timesheet.ErrNotesRequired)

	stored, err := f.store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusSubmitted, stored.Status)
}

func TestReview_RoleChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.submitted(t)

	_, err := f.svc.Approve(ctx, colleague, rec.ID, 0, "")
	assert.ErrorIs(t, err, timesheet.ErrNotPermitted, "employees cannot approve")

	selfReview := timesheet.Actor{ID: "emp-7", Role: timesheet.RoleSupervisor}
	_, err = f.svc.Approve(ctx, selfReview, rec.ID, 0, "")
	assert.ErrorIs(t, err, timesheet.ErrNotPermitted, "nobody approves their own timesheet")
}

func TestEdit_RejectedReturnsToDraftAndKeepsHistory(t *testing.T) {
	// GIVEN: A Rejected record
	// WHEN: The employee edits it
	// THEN: It is a Draft again, review metadata is cleared, history is kept

	f := newFixture(t)
	rec := f.rejected(t)
	require.NotNil(t, rec.RejectedBy)

	rec, err := f.svc.Edit(context.Background(), employee, rec.ID, rec.Version,
		shift("emp-7", wednesday, "08:00", "16:30", 30), "fixed the break")
	require.NoError(t, err)

	assert.Equal(t, timesheet.StatusDraft, rec.Status)
	assert.Nil(t, rec.RejectedBy)
	assert.Nil(t, rec.RejectedAt)
	assert.Empty(t, rec.RejectionNotes)
	assert.Nil(t, rec.SubmittedAt)
	assert.Equal(t, "fixed the break", rec.Notes)
	assert.Equal(t, payroll.Minutes(480), rec.Calculation.Breakdown.Total)

	actions := make([]timesheet.Action, len(rec.History))
	for i, h := range rec.History {
		actions[i] = h.Action
	}
	assert.Equal(t, []timesheet.Action{
		timesheet.ActionCreate, timesheet.ActionSubmit, timesheet.ActionReject, timesheet.ActionEdit,
	}, actions)
	assert.Equal(t, "break missing", rec.History[2].Notes)
}

func TestEdit_SubmittedIsLocked(t *testing.T) {
	f := newFixture(t)
	rec := f.submitted(t)

	_, err := f.svc.Edit(context.Background(), employee, rec.ID, 0, shift("emp-7", wednesday, "09:00", "17:00", 0), "")
	assert.ErrorIs(t, err, timesheet.ErrInvalidTransition)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestTransition_StaleVersionFails(t *testing.T) {
	// GIVEN: Two supervisors who both read the record at version 2
	// WHEN: The first approves, the second then rejects with version 2
	// THEN: The reject fails as a retryable concurrent modification

	f := newFixture(t)
	ctx := context.Background()
	rec := f.submitted(t)
	readVersion := rec.Version

	other := timesheet.Actor{ID: "sup-2", Role: timesheet.RoleSupervisor}
	_, err := f.svc.Approve(ctx, supervisor, rec.ID, readVersion, "")
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, other, rec.ID, readVersion, "late")
	var conflict *timesheet.ConcurrentModificationError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, readVersion, conflict.Expected)
	assert.Equal(t, readVersion+1, conflict.Actual)
	assert.True(t, timesheet.IsRetryable(err))
}

func TestTransition_RacingApprovalsApplyOnce(t *testing.T) {
	f := newFixture(t)
	rec := f.submitted(t)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reviewer := timesheet.Actor{ID: fmt.Sprintf("sup-%d", i+10), Role: timesheet.RoleSupervisor}
			_, errs[i] = f.svc.Approve(context.Background(), reviewer, rec.ID, rec.Version, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, timesheet.ErrConcurrentModification) || errors.Is(err, timesheet.ErrInvalidTransition), err)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := f.store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Version+1, stored.Version)
	assert.Len(t, stored.History, 3)
}

// =============================================================================
// BULK
// =============================================================================

func TestBulkTransition_MixedRecords(t *testing.T) {
	// GIVEN: Two Submitted records, a Draft, an Approved record, a stale
	//        version and an unknown id
	// WHEN: Bulk approving all of them
	// THEN: One result per item in order; only the valid ones change

	f := newFixture(t)
	ctx := context.Background()

	ok1 := f.submitted(t)
	draft := f.draft(t)
	done := f.approved(t)
	stale := f.submitted(t)
	ok2 := f.submitted(t)

	results, err := f.svc.BulkTransition(ctx, supervisor, []timesheet.BulkItem{
		{ID: ok1.ID},
		{ID: draft.ID},
		{ID: done.ID},
		{ID: stale.ID, Version: stale.Version - 1},
		{ID: "missing"},
		{ID: ok2.ID, Version: ok2.Version},
	}, timesheet.ActionApprove, "")
	require.NoError(t, err)
	require.Len(t, results, 6)

	assert.True(t, results[0].OK())
	assert.Equal(t, timesheet.StatusApproved, results[0].Status)
	assert.ErrorIs(t, results[1].Err, timesheet.ErrInvalidTransition)
	assert.ErrorIs(t, results[2].Err, timesheet.ErrInvalidTransition)
	assert.ErrorIs(t, results[3].Err, timesheet.ErrConcurrentModification)
	assert.True(t, timesheet.IsNotFound(results[4].Err))
	assert.True(t, results[5].OK())

	for id, want := range map[string]timesheet.Status{
		ok1.ID:   timesheet.StatusApproved,
		draft.ID: timesheet.StatusDraft,
		stale.ID: timesheet.StatusSubmitted,
		ok2.ID:   timesheet.StatusApproved,
	} {
		stored, err := f.store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, stored.Status, id)
	}
}

func TestBulkTransition_RequestLevelErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.submitted(t)
	items := []timesheet.BulkItem{{ID: rec.ID}}

	_, err := f.svc.BulkTransition(ctx, supervisor, items, timesheet.ActionReject, "")
	assert.ErrorIs(t, err, timesheet.ErrNotesRequired)

	_, err = f.svc.BulkTransition(ctx, supervisor, items, timesheet.ActionSubmit, "")
	assert.ErrorIs(t, err, timesheet.ErrUnknownAction)

	_, err = f.svc.BulkTransition(ctx, employee, items, timesheet.ActionApprove, "")
	assert.ErrorIs(t, err, timesheet.ErrNotPermitted)
}

func TestBulkTransition_StopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	rec := f.submitted(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := f.svc.BulkTransition(ctx, supervisor, []timesheet.BulkItem{{ID: rec.ID}}, timesheet.ActionApprove, "")
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

// =============================================================================
// NOTES & SUPERSEDE
// =============================================================================

func TestAddNote_AllowedOnApproved(t *testing.T) {
	f := newFixture(t)
	rec := f.approved(t)

	rec, err := f.svc.AddNote(context.Background(), supervisor, rec.ID, "paid in March run")
	require.NoError(t, err)

	assert.Equal(t, timesheet.StatusApproved, rec.Status)
	require.Len(t, rec.AuditNotes, 1)
	assert.Equal(t, "sup-1", rec.AuditNotes[0].AuthorID)

	_, err = f.svc.AddNote(context.Background(), supervisor, rec.ID, "")
	assert.ErrorIs(t, err, timesheet.ErrNotesRequired)
}

func TestSupersede_LinksOldAndNew(t *testing.T) {
	// GIVEN: A Rejected record
	// WHEN: The employee resubmits it as a new record
	// THEN: The old one stays Rejected and frozen, linked to the new Draft

	f := newFixture(t)
	ctx := context.Background()
	old := f.rejected(t)

	replacement, err := f.svc.Supersede(ctx, employee, old.ID, old.Version,
		shift("emp-7", wednesday, "08:00", "16:30", 30), "corrected")
	require.NoError(t, err)

	assert.Equal(t, timesheet.StatusDraft, replacement.Status)
	assert.Equal(t, old.ID, replacement.Supersedes)

	stored, err := f.store.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusRejected, stored.Status)
	assert.Equal(t, replacement.ID, stored.SupersededBy)

	_, err = f.svc.Edit(ctx, employee, old.ID, 0, shift("emp-7", wednesday, "08:00", "16:00", 0), "")
	assert.ErrorIs(t, err, timesheet.ErrInvalidTransition)

	summaries, err := f.svc.WeeklySummaries(ctx, timesheet.Filter{EmployeeID: "emp-7"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Records, "superseded record is not counted")
}

func TestSupersede_FailedCreateLeavesOldRecordUnlinked(t *testing.T) {
	// GIVEN: A Rejected record and an id generator that collides with it
	// WHEN: Superseding it
	// THEN: The create fails and the old record is neither linked nor
	//       bumped, so a retry succeeds

	f := newFixture(t)
	ctx := context.Background()
	old := f.rejected(t)

	f.svc.NewID = func() string { return old.ID }
	_, err := f.svc.Supersede(ctx, employee, old.ID, old.Version,
		shift("emp-7", wednesday, "08:00", "16:30", 30), "corrected")
	require.ErrorIs(t, err, timesheet.ErrDuplicateRecord)
	assert.Equal(t, "duplicate", timesheet.ErrorKind(err))

	stored, err := f.store.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.SupersededBy)
	assert.Equal(t, old.Version, stored.Version)

	f.svc.NewID = func() string { return "ts-replacement" }
	replacement, err := f.svc.Supersede(ctx, employee, old.ID, old.Version,
		shift("emp-7", wednesday, "08:00", "16:30", 30), "corrected")
	require.NoError(t, err)

	stored, err = f.store.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, replacement.ID, stored.SupersededBy)
}

// =============================================================================
// OVERTIME PERIODS
// =============================================================================

func TestCreate_DailyBasisCountsEarlierShiftsThatDay(t *testing.T) {
	// GIVEN: A 4h morning shift already recorded
	// WHEN: Creating a 5h afternoon shift the same day
	// THEN: Only 4h of the afternoon is regular

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, employee, shift("emp-7", wednesday, "08:00", "12:00", 0), "")
	require.NoError(t, err)
	rec, err := f.svc.Create(ctx, employee, shift("emp-7", wednesday, "13:00", "18:00", 0), "")
	require.NoError(t, err)

	assert.Equal(t, payroll.Minutes(240), rec.Calculation.Breakdown.Regular)
	assert.Equal(t, payroll.Minutes(60), rec.Calculation.Breakdown.Overtime)
}

func TestCreate_WeeklyBasisCountsEarlierDays(t *testing.T) {
	// GIVEN: Weekly basis (42.5h) and four 9h days Monday-Thursday
	// WHEN: Creating Friday's 9h shift
	// THEN: 6.5h regular and 2.5h overtime

	cfg := payroll.DefaultRuleConfig()
	cfg.OvertimeBasis = payroll.OvertimeWeekly
	f := newFixtureWithRules(t, cfg)
	ctx := context.Background()

	monday := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	var friday *timesheet.Record
	for d := 0; d < 5; d++ {
		rec, err := f.svc.Create(ctx, employee, shift("emp-7", monday.AddDate(0, 0, d), "08:00", "17:00", 0), "")
		require.NoError(t, err)
		friday = rec
	}

	assert.Equal(t, payroll.Minutes(390), friday.Calculation.Breakdown.Regular)
	assert.Equal(t, payroll.Minutes(150), friday.Calculation.Breakdown.Overtime)
}

func TestCreate_EarlierShiftEnteredLastRebalancesTheDay(t *testing.T) {
	// GIVEN: A 5h afternoon draft recorded before the 4h morning shift
	// WHEN: Creating the morning shift
	// THEN: The morning is all regular, the afternoon is recalculated to
	//       4h regular and 1h overtime, and the day splits 8h/1h

	f := newFixture(t)
	ctx := context.Background()

	afternoon, err := f.svc.Create(ctx, employee, shift("emp-7", wednesday, "13:00", "18:00", 0), "")
	require.NoError(t, err)
	assert.Equal(t, payroll.Minutes(300), afternoon.Calculation.Breakdown.Regular)

	morning, err := f.svc.Create(ctx, employee, shift("emp-7", wednesday, "08:00", "12:00", 0), "")
	require.NoError(t, err)
	assert.Equal(t, payroll.Minutes(240), morning.Calculation.Breakdown.Regular)
	assert.Equal(t, payroll.Minutes(0), morning.Calculation.Breakdown.Overtime)

	stored, err := f.store.Get(ctx, afternoon.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.Minutes(240), stored.Calculation.Breakdown.Regular)
	assert.Equal(t, payroll.Minutes(60), stored.Calculation.Breakdown.Overtime)
	assert.True(t, stored.Calculation.TotalPay.Equal(decimal.RequireFromString("110.00")), stored.Calculation.TotalPay.String())
	assert.Equal(t, afternoon.Version+1, stored.Version)
	assert.Equal(t, timesheet.StatusDraft, stored.Status)

	last := stored.History[len(stored.History)-1]
	assert.Equal(t, timesheet.ActionRecalculate, last.Action)
	assert.Equal(t, timesheet.StatusDraft, last.From)
	assert.Equal(t, timesheet.StatusDraft, last.To)
	assert.Contains(t, last.Notes, morning.ID)

	summaries, err := f.svc.WeeklySummaries(ctx, timesheet.Filter{EmployeeID: "emp-7"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, payroll.Minutes(540), summaries[0].Total)
	assert.True(t, summaries[0].TotalPay.Equal(decimal.RequireFromString("190.00")), summaries[0].TotalPay.String())
}

func TestCreate_SubmittedLaterShiftKeepsItsSplit(t *testing.T) {
	// GIVEN: A 5h afternoon shift already submitted for review
	// WHEN: Creating the 4h morning shift the same day
	// THEN: The afternoon is left as reviewed and the morning absorbs the
	//       overtime

	f := newFixture(t)
	ctx := context.Background()

	afternoon, err := f.svc.Create(ctx, employee, shift("emp-7", wednesday, "13:00", "18:00", 0), "")
	require.NoError(t, err)
	afternoon, err = f.svc.Submit(ctx, employee, afternoon.ID, afternoon.Version)
	require.NoError(t, err)

	morning, err := f.svc.Create(ctx, employee, shift("emp-7", wednesday, "08:00", "12:00", 0), "")
	require.NoError(t, err)
	assert.Equal(t, payroll.Minutes(180), morning.Calculation.Breakdown.Regular)
	assert.Equal(t, payroll.Minutes(60), morning.Calculation.Breakdown.Overtime)

	stored, err := f.store.Get(ctx, afternoon.ID)
	require.NoError(t, err)
	assert.Equal(t, afternoon.Version, stored.Version)
	assert.Equal(t, payroll.Minutes(300), stored.Calculation.Breakdown.Regular)
}

func TestEdit_ShorterMorningReleasesOvertimeLaterThatDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	morning, err := f.svc.Create(ctx, employee, shift("emp-7", wednesday, "08:00", "12:00", 0), "")
	require.NoError(t, err)
	afternoon, err := f.svc.Create(ctx, employee, shift("emp-7", wednesday, "13:00", "18:00", 0), "")
	require.NoError(t, err)
	require.Equal(t, payroll.Minutes(60), afternoon.Calculation.Breakdown.Overtime)

	_, err = f.svc.Edit(ctx, employee, morning.ID, morning.Version, shift("emp-7", wednesday, "08:00", "10:00", 0), "")
	require.NoError(t, err)

	stored, err := f.store.Get(ctx, afternoon.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.Minutes(300), stored.Calculation.Breakdown.Regular)
	assert.Equal(t, payroll.Minutes(0), stored.Calculation.Breakdown.Overtime)
}

func TestEdit_MovingShiftToAnotherDayRebalancesBothDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	thursday := wednesday.AddDate(0, 0, 1)

	morning, err := f.svc.Create(ctx, employee, shift("emp-7", wednesday, "08:00", "12:00", 0), "")
	require.NoError(t, err)
	afternoon, err := f.svc.Create(ctx, employee, shift("emp-7", wednesday, "13:00", "18:00", 0), "")
	require.NoError(t, err)
	long, err := f.svc.Create(ctx, employee, shift("emp-7", thursday, "10:00", "18:00", 0), "")
	require.NoError(t, err)
	require.Equal(t, payroll.Minutes(480), long.Calculation.Breakdown.Regular)

	_, err = f.svc.Edit(ctx, employee, morning.ID, morning.Version, shift("emp-7", thursday, "06:00", "08:00", 0), "")
	require.NoError(t, err)

	wed, err := f.store.Get(ctx, afternoon.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.Minutes(0), wed.Calculation.Breakdown.Overtime)

	thu, err := f.store.Get(ctx, long.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.Minutes(360), thu.Calculation.Breakdown.Regular)
	assert.Equal(t, payroll.Minutes(120), thu.Calculation.Breakdown.Overtime)
}

func TestReject_ReleasesRegularTimeToOpenShifts(t *testing.T) {
	// GIVEN: A submitted afternoon and a morning draft that took the overtime
	// WHEN: The afternoon is rejected
	// THEN: The morning draft is all regular again

	f := newFixture(t)
	ctx := context.Background()

	afternoon, err := f.svc.Create(ctx, employee, shift("emp-7", wednesday, "13:00", "18:00", 0), "")
	require.NoError(t, err)
	afternoon, err = f.svc.Submit(ctx, employee, afternoon.ID, afternoon.Version)
	require.NoError(t, err)
	morning, err := f.svc.Create(ctx, employee, shift("emp-7", wednesday, "08:00", "12:00", 0), "")
	require.NoError(t, err)
	require.Equal(t, payroll.Minutes(60), morning.Calculation.Breakdown.Overtime)

	_, err = f.svc.Reject(ctx, supervisor, afternoon.ID, afternoon.Version, "split wrong")
	require.NoError(t, err)

	stored, err := f.store.Get(ctx, morning.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.Minutes(240), stored.Calculation.Breakdown.Regular)
	assert.Equal(t, payroll.Minutes(0), stored.Calculation.Breakdown.Overtime)
}

// =============================================================================
// READ MODEL
// =============================================================================

func TestList_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.draft(t)
	f.submitted(t)
	_, err := f.svc.Create(ctx, colleague, shift("emp-8", wednesday.AddDate(0, 0, 7), "08:00", "12:00", 0), "")
	require.NoError(t, err)

	byEmployee, err := f.svc.List(ctx, timesheet.Filter{EmployeeID: "emp-7"})
	require.NoError(t, err)
	assert.Len(t, byEmployee, 2)

	byStatus, err := f.svc.List(ctx, timesheet.Filter{Status: timesheet.StatusSubmitted})
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)

	byWeek, err := f.svc.List(ctx, timesheet.Filter{WeekEnding: time.Date(2025, time.March, 23, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, byWeek, 1)
	assert.Equal(t, "emp-8", byWeek[0].EmployeeID)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.submitted(t)
	f.approved(t)
	f.rejected(t)
	_, err := f.svc.Create(ctx, employee, shift("emp-7", time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), "08:00", "12:00", 0), "")
	require.NoError(t, err)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 1, st.ApprovedThisWeek)
	assert.Equal(t, 1, st.RejectedThisWeek)
	assert.Equal(t, 1, st.OverdueDrafts)

	overdue, err := f.svc.Overdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
}

func TestWeeklySummaries_Totals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.approved(t)
	f.submitted(t)

	summaries, err := f.svc.WeeklySummaries(ctx, timesheet.Filter{})
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, "emp-7", s.EmployeeID)
	assert.Equal(t, time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC), s.WeekEnding)
	assert.Equal(t, 2, s.Records)
	assert.Equal(t, 1, s.ByStatus[timesheet.StatusApproved])
	assert.Equal(t, 1, s.ByStatus[timesheet.StatusSubmitted])
	assert.Equal(t, payroll.Minutes(1020), s.Total)
	// The submitted copy follows a full approved day, so all of it is overtime.
	assert.True(t, s.TotalPay.Equal(decimal.RequireFromString("430.00")), s.TotalPay.String())
}
