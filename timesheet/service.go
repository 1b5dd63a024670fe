/*
service.go - Approval workflow

PURPOSE:
  Service is the only writer of timesheet Records. Each operation reads the
  record, checks the actor's role and the current status, applies the
  change and writes it back with a compare-and-swap on Version.

TRANSITION GUARDS:
  action     from              who                          requires
  ---------  ----------------  ---------------------------  -----------------------
  create     -                 owner, admin, system         valid entry + rate
  edit       Draft, Rejected   owner, admin, system         valid entry; not superseded
  submit     Draft             owner, admin, system         attached calculation
  approve    Submitted         supervisor, admin (not own)  -
  reject     Submitted         supervisor, admin (not own)  notes
  supersede  Rejected          owner, admin, system         valid entry; not superseded
  note       any               owner or reviewer            text

  Callers may pass the version they last read. A non-zero version that no
  longer matches fails fast with *ConcurrentModificationError; the store
  repeats the check atomically on write either way.

OVERTIME PERIODS:
  A record's regular/overtime split depends on the regular time already
  claimed in its day (or Monday-Sunday week). After create, edit, supersede
  and reject, the remaining Draft and Rejected records of the period are
  repriced in time order. Submitted and Approved records are never repriced.

LOGGING:
  Accepted transitions are logged at Info, refused ones at Warn.

SEE ALSO:
  - bulk.go: BulkTransition
  - summary.go: weekly summaries and supervisor stats
*/
package timesheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warp/chronoshift/logging"
	"github.com/warp/chronoshift/payroll"
)

// Service orchestrates the timesheet lifecycle.
type Service struct {
	Store      Store
	Rates      RateProvider
	Calculator *payroll.Calculator
	Deadline   DeadlineRule
	Logger     *slog.Logger

	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.Resolve(ctx, s.Logger, "timesheet", append([]any{"operation", operation}, attrs...)...)
}

// =============================================================================
// CALCULATION
// =============================================================================

// Preview calculates an entry for the employee without persisting anything.
func (s *Service) Preview(ctx context.Context, entry payroll.TimeEntry) (*payroll.PayrollCalculation, error) {
	return s.calculate(ctx, entry, nil)
}

// calculate prices entry in place of self. A nil self is a record not yet
// stored, which sorts after every stored record with the same start.
func (s *Service) calculate(ctx context.Context, entry payroll.TimeEntry, self *Record) (*payroll.PayrollCalculation, error) {
	errs := payroll.ValidateEntry(entry, s.Calculator.Config().MaxShift)
	if errs != nil {
		return nil, errs
	}
	rate, err := s.Rates.PayRate(ctx, entry.EmployeeID)
	if err != nil {
		return nil, err
	}
	records, err := s.period(ctx, entry.EmployeeID, entry.Date())
	if err != nil {
		return nil, err
	}
	return s.Calculator.Calculate(payroll.Input{Entry: entry, Rate: rate, PriorMinutes: priorMinutes(records, entry, self)})
}

// period loads the employee's records in the overtime period holding day.
func (s *Service) period(ctx context.Context, employeeID string, day time.Time) ([]*Record, error) {
	filter := Filter{EmployeeID: employeeID, From: day, To: day}
	if s.Calculator.Config().OvertimeBasis == payroll.OvertimeWeekly {
		filter.From, filter.To = WeekStart(day), WeekEnding(day)
	}
	records, err := s.Store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load overtime period: %w", err)
	}
	return records, nil
}

// priorMinutes sums the regular minutes already claimed in the period by
// records other than self. Submitted and Approved records keep the split
// they were reviewed with, so their regular time counts wherever they fall.
// Draft records count only when they come earlier.
func priorMinutes(records []*Record, entry payroll.TimeEntry, self *Record) payroll.Minutes {
	var total payroll.Minutes
	for _, rec := range records {
		if (self != nil && rec.ID == self.ID) || !rec.live() {
			continue
		}
		if rec.frozen() || before(rec, entry, self) {
			total += rec.Calculation.Breakdown.Regular
		}
	}
	return total
}

// before orders rec against entry the way SortRecords does: work date,
// start minute, then creation.
func before(rec *Record, entry payroll.TimeEntry, self *Record) bool {
	da, db := rec.Entry.Date(), entry.Date()
	if !da.Equal(db) {
		return da.Before(db)
	}
	if sa, sb := rec.Entry.Start.MinuteOfDay(), entry.Start.MinuteOfDay(); sa != sb {
		return sa < sb
	}
	if self == nil {
		return true
	}
	if !rec.CreatedAt.Equal(self.CreatedAt) {
		return rec.CreatedAt.Before(self.CreatedAt)
	}
	return rec.ID < self.ID
}

// rebalance recalculates the open records in the overtime period holding
// day, in time order, after saved changed the period. Failures are logged;
// the change that triggered the rebalance has already been stored.
func (s *Service) rebalance(ctx context.Context, actor Actor, employeeID string, day time.Time, saved string) {
	logger := s.log(ctx, string(ActionRecalculate), "employee_id", employeeID, "cause", saved)

	records, err := s.period(ctx, employeeID, day)
	if err != nil {
		logger.Warn("rebalance skipped", "error", err)
		return
	}
	rate, err := s.Rates.PayRate(ctx, employeeID)
	if err != nil {
		logger.Warn("rebalance skipped", "error", err)
		return
	}

	for _, rec := range records {
		if rec.ID == saved || rec.Calculation == nil || rec.SupersededBy != "" || rec.frozen() {
			continue
		}
		calc, err := s.Calculator.Calculate(payroll.Input{
			Entry: rec.Entry, Rate: rate, PriorMinutes: priorMinutes(records, rec.Entry, rec),
		})
		if err != nil {
			logger.Warn("recalculation failed", "record_id", rec.ID, "error", err)
			continue
		}
		if sameSplit(rec.Calculation, calc) {
			continue
		}

		now := s.now()
		rec.Calculation = calc
		rec.UpdatedAt = now
		rec.History = append(rec.History, Transition{
			Action: ActionRecalculate, From: rec.Status, To: rec.Status, ActorID: actor.ID, Role: actor.Role, At: now,
			Notes: "overtime period changed by " + saved,
		})
		if err := s.Store.Update(ctx, rec, rec.Version); err != nil {
			logger.Warn("recalculation not saved", "record_id", rec.ID, "error", err)
			continue
		}
		logger.Info("timesheet recalculated", "record_id", rec.ID,
			"regular_minutes", int64(calc.Breakdown.Regular), "overtime_minutes", int64(calc.Breakdown.Overtime))
	}
}

func sameSplit(a, b *payroll.PayrollCalculation) bool {
	return a.Breakdown == b.Breakdown &&
		a.RegularPay.Equal(b.RegularPay) &&
		a.TotalPay.Equal(b.TotalPay) &&
		slices.Equal(a.Notes, b.Notes)
}

// =============================================================================
// CREATE / EDIT / SUPERSEDE
// =============================================================================

// Create calculates entry and stores it as a new Draft.
func (s *Service) Create(ctx context.Context, actor Actor, entry payroll.TimeEntry, notes string) (*Record, error) {
	if !actor.actsFor(entry.EmployeeID) {
		s.log(ctx, "create", "employee_id", entry.EmployeeID, "actor", actor.ID).Warn("create refused")
		return nil, notPermitted(actor, ActionCreate)
	}

	calc, err := s.calculate(ctx, entry, nil)
	if err != nil {
		return nil, err
	}

	rec := s.newRecord(actor, entry, calc, notes)
	if err := s.Store.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.log(ctx, "create", "record_id", rec.ID, "employee_id", rec.EmployeeID, "actor", actor.ID).
		Info("timesheet created", "total_minutes", int64(calc.Breakdown.Total))
	s.rebalance(ctx, actor, rec.EmployeeID, rec.Entry.Date(), rec.ID)
	return rec, nil
}

func (s *Service) newRecord(actor Actor, entry payroll.TimeEntry, calc *payroll.PayrollCalculation, notes string) *Record {
	now := s.now()
	entry.WorkDate = entry.Date()
	return &Record{
		ID:          s.newID(),
		EmployeeID:  entry.EmployeeID,
		Entry:       entry,
		Calculation: calc,
		Notes:       notes,
		Status:      StatusDraft,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
		History: []Transition{{
			Action: ActionCreate, To: StatusDraft, ActorID: actor.ID, Role: actor.Role, At: now,
		}},
	}
}

// Edit replaces the entry and notes of a Draft or Rejected record and
// recalculates. A Rejected record returns to Draft. Open records in the old
// and new overtime periods are recalculated afterwards.
func (s *Service) Edit(ctx context.Context, actor Actor, id string, version int64, entry payroll.TimeEntry, notes string) (*Record, error) {
	var previous time.Time
	rec, err := s.apply(ctx, actor, id, version, step{
		action: ActionEdit,
		allow:  s.ownerOnly(actor, ActionEdit),
		apply: func(rec *Record, now time.Time) error {
			if rec.SupersededBy != "" {
				return &StateTransitionError{RecordID: rec.ID, From: rec.Status, Action: ActionEdit}
			}
			entry.EmployeeID = rec.EmployeeID
			entry.WorkDate = entry.Date()
			calc, err := s.calculate(ctx, entry, rec)
			if err != nil {
				return err
			}
			if rec.Status == StatusRejected {
				rec.clearReview()
			}
			previous = rec.Entry.Date()
			rec.Entry, rec.Calculation, rec.Notes = entry, calc, notes
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	s.rebalancePeriods(ctx, actor, rec.EmployeeID, rec.ID, rec.Entry.Date(), previous)
	return rec, nil
}

// Supersede replaces a Rejected record with a new Draft. The old record
// stays Rejected and points at its replacement. The replacement is stored
// before the link, so a failed create leaves the old record untouched.
func (s *Service) Supersede(ctx context.Context, actor Actor, id string, version int64, entry payroll.TimeEntry, notes string) (*Record, error) {
	var replacement *Record
	old, err := s.apply(ctx, actor, id, version, step{
		action: ActionSupersede,
		allow:  s.ownerOnly(actor, ActionSupersede),
		apply: func(rec *Record, now time.Time) error {
			if rec.SupersededBy != "" {
				return &StateTransitionError{RecordID: rec.ID, From: rec.Status, Action: ActionSupersede}
			}
			entry.EmployeeID = rec.EmployeeID
			calc, err := s.calculate(ctx, entry, nil)
			if err != nil {
				return err
			}
			replacement = s.newRecord(actor, entry, calc, notes)
			replacement.Supersedes = rec.ID
			if err := s.Store.Create(ctx, replacement); err != nil {
				return fmt.Errorf("create replacement for %s: %w", rec.ID, err)
			}
			rec.SupersededBy = replacement.ID
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	s.rebalancePeriods(ctx, actor, replacement.EmployeeID, replacement.ID, replacement.Entry.Date(), old.Entry.Date())
	return replacement, nil
}

// rebalancePeriods rebalances the period holding day and, when it is a
// different period, the one holding previous.
func (s *Service) rebalancePeriods(ctx context.Context, actor Actor, employeeID, saved string, day, previous time.Time) {
	s.rebalance(ctx, actor, employeeID, day, saved)
	if previous.IsZero() || s.samePeriod(day, previous) {
		return
	}
	s.rebalance(ctx, actor, employeeID, previous, saved)
}

func (s *Service) samePeriod(a, b time.Time) bool {
	if s.Calculator.Config().OvertimeBasis == payroll.OvertimeWeekly {
		return WeekStart(a).Equal(WeekStart(b))
	}
	return a.Equal(b)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Submit moves a Draft to Submitted and stamps SubmittedAt.
func (s *Service) Submit(ctx context.Context, actor Actor, id string, version int64) (*Record, error) {
	return s.apply(ctx, actor, id, version, step{
		action: ActionSubmit,
		allow:  s.ownerOnly(actor, ActionSubmit),
		apply: func(rec *Record, now time.Time) error {
			if rec.Calculation == nil {
				return fmt.Errorf("%w: timesheet %s", ErrCalculationRequired, rec.ID)
			}
			rec.SubmittedAt = &now
			return nil
		},
	})
}

// Approve moves a Submitted record to Approved. Approved is terminal.
func (s *Service) Approve(ctx context.Context, actor Actor, id string, version int64, notes string) (*Record, error) {
	return s.apply(ctx, actor, id, version, step{
		action: ActionApprove,
		notes:  notes,
		allow:  reviewerOnly(actor, ActionApprove),
		apply: func(rec *Record, now time.Time) error {
			by := actor.ID
			rec.ApprovedBy, rec.ApprovedAt, rec.ApprovalNotes = &by, &now, notes
			return nil
		},
	})
}

// Reject moves a Submitted record to Rejected. Notes are required. The
// rejected record's regular time is released to the open records in its
// overtime period.
func (s *Service) Reject(ctx context.Context, actor Actor, id string, version int64, notes string) (*Record, error) {
	rec, err := s.apply(ctx, actor, id, version, step{
		action: ActionReject,
		notes:  notes,
		allow:  reviewerOnly(actor, ActionReject),
		apply: func(rec *Record, now time.Time) error {
			if strings.TrimSpace(notes) == "" {
				return fmt.Errorf("%w: rejecting timesheet %s", ErrNotesRequired, rec.ID)
			}
			by := actor.ID
			rec.RejectedBy, rec.RejectedAt, rec.RejectionNotes = &by, &now, notes
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	s.rebalance(ctx, actor, rec.EmployeeID, rec.Entry.Date(), rec.ID)
	return rec, nil
}

// AddNote appends an audit note. It is allowed in every status, including
// Approved, and does not change the status.
func (s *Service) AddNote(ctx context.Context, actor Actor, id string, text string) (*Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: audit note is empty", ErrNotesRequired)
	}
	rec, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.actsFor(rec.EmployeeID) && !actor.Reviewer() {
		return nil, notPermitted(actor, "annotate")
	}
	rec.AuditNotes = append(rec.AuditNotes, AuditNote{AuthorID: actor.ID, At: s.now(), Text: text})
	rec.UpdatedAt = s.now()
	if err := s.Store.Update(ctx, rec, rec.Version); err != nil {
		return nil, err
	}
	return rec, nil
}

// step is one guarded transition.
type step struct {
	action Action
	notes  string
	allow  func(*Record) error
	apply  func(rec *Record, now time.Time) error
}

func (s *Service) apply(ctx context.Context, actor Actor, id string, version int64, st step) (*Record, error) {
	logger := s.log(ctx, string(st.action), "record_id", id, "actor", actor.ID, "role", actor.Role)

	rec, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if version != 0 && version != rec.Version {
		err := &ConcurrentModificationError{RecordID: id, Expected: version, Actual: rec.Version}
		logger.Warn("stale version", "error", err)
		return nil, err
	}
	if err := st.allow(rec); err != nil {
		logger.Warn("transition refused", "error", err)
		return nil, err
	}

	from := rec.Status
	to, ok := next(from, st.action)
	if !ok {
		err := &StateTransitionError{RecordID: id, From: from, Action: st.action}
		logger.Warn("transition refused", "error", err)
		return nil, err
	}

	now := s.now()
	if err := st.apply(rec, now); err != nil {
		logger.Warn("transition refused", "from", from, "error", err)
		return nil, err
	}
	rec.Status = to
	rec.UpdatedAt = now
	rec.History = append(rec.History, Transition{
		Action: st.action, From: from, To: to, ActorID: actor.ID, Role: actor.Role, At: now, Notes: st.notes,
	})

	if err := s.Store.Update(ctx, rec, rec.Version); err != nil {
		logger.Warn("transition not saved", "from", from, "to", to, "error", err)
		return nil, err
	}

	attrs := []any{"from", from, "to", to, "version", rec.Version}
	if st.action == ActionSubmit {
		attrs = append(attrs, "late", s.Deadline.IsLate(rec))
	}
	logger.Info("timesheet transition", attrs...)
	return rec, nil
}

func (s *Service) ownerOnly(actor Actor, action Action) func(*Record) error {
	return func(rec *Record) error {
		if !actor.actsFor(rec.EmployeeID) {
			return notPermitted(actor, action)
		}
		return nil
	}
}

func reviewerOnly(actor Actor, action Action) func(*Record) error {
	return func(rec *Record) error {
		if !actor.Reviewer() {
			return notPermitted(actor, action)
		}
		if actor.ID == rec.EmployeeID {
			return fmt.Errorf("%w: %q cannot review their own timesheet", ErrNotPermitted, actor.ID)
		}
		return nil
	}
}

// =============================================================================
// READS
// =============================================================================

// Get returns one record.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.Store.Get(ctx, id)
}

// List returns records matching filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Record, error) {
	return s.Store.List(ctx, filter)
}

// IsLate reports whether rec was submitted after its deadline.
func (s *Service) IsLate(rec *Record) bool { return s.Deadline.IsLate(rec) }

// Overdue returns Drafts whose submission deadline has passed.
func (s *Service) Overdue(ctx context.Context) ([]*Record, error) {
	drafts, err := s.Store.List(ctx, Filter{Status: StatusDraft})
	if err != nil {
		return nil, err
	}
	now := s.now()
	var overdue []*Record
	for _, rec := range drafts {
		if s.Deadline.IsOverdue(rec, now) {
			overdue = append(overdue, rec)
		}
	}
	return overdue, nil
}

// ErrorKind maps workflow errors to a stable label for logs and responses.
func ErrorKind(err error) string {
	var transition *StateTransitionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, payroll.ErrValidation):
		return "validation"
	case errors.As(err, &transition):
		return "invalid_transition"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrNotPermitted):
		return "not_permitted"
	case errors.Is(err, ErrNotesRequired):
		return "notes_required"
	case errors.Is(err, ErrCalculationRequired):
		return "calculation_required"
	case IsNotFound(err):
		return "not_found"
	case errors.Is(err, ErrUnknownAction):
		return "unknown_action"
	case errors.Is(err, ErrDuplicateRecord):
		return "duplicate"
	}
	return "unexpected"
}
