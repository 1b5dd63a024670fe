/*
store.go - Persistence contract for timesheets and employee rates

OPTIMISTIC CONCURRENCY:
  Update is a compare-and-swap on Version. The caller passes the version it
  read; if the stored version differs, Update fails with a
  *ConcurrentModificationError and nothing is written. On success the store
  bumps Version and writes it back into the record.

  There is no cross-record locking. Bulk operations issue one guarded
  Update per record.

NO DELETE:
  Records are retained for audit. The interface has no Delete.

IMPLEMENTATIONS:
  - timesheet/store/memory.go: in-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite via database/sql

SEE ALSO:
  - service.go: the only writer
*/
package timesheet

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/chronoshift/payroll"
)

// =============================================================================
// TIMESHEET STORE
// =============================================================================

type Store interface {
	// Create persists a new record with Version 1.
	Create(ctx context.Context, rec *Record) error

	// Get returns ErrRecordNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Record, error)

	// Update replaces the record if the stored version equals expectedVersion.
	Update(ctx context.Context, rec *Record, expectedVersion int64) error

	// List returns matching records ordered by work date, start time, creation.
	List(ctx context.Context, filter Filter) ([]*Record, error)
}

// Filter selects records. Zero fields match everything.
type Filter struct {
	EmployeeID string
	Status     Status
	WeekEnding time.Time

	// From and To bound the work date, inclusive.
	From time.Time
	To   time.Time
}

// Match reports whether rec satisfies the filter.
func (f Filter) Match(rec *Record) bool {
	if f.EmployeeID != "" && rec.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	day := payroll.CivilDate(rec.Entry.WorkDate)
	if !f.WeekEnding.IsZero() && !WeekEnding(day).Equal(payroll.CivilDate(f.WeekEnding)) {
		return false
	}
	if !f.From.IsZero() && day.Before(payroll.CivilDate(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(payroll.CivilDate(f.To)) {
		return false
	}
	return true
}

// SortRecords applies the List ordering.
func SortRecords(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if da, db := payroll.CivilDate(a.Entry.WorkDate), payroll.CivilDate(b.Entry.WorkDate); !da.Equal(db) {
			return da.Before(db)
		}
		if sa, sb := a.Entry.Start.MinuteOfDay(), b.Entry.Start.MinuteOfDay(); sa != sb {
			return sa < sb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// =============================================================================
// EMPLOYEES - Pay rate profiles
// =============================================================================

// Employee is the minimal employee record the workflow needs.
type Employee struct {
	ID                 string
	Name               string
	HourlyRate         decimal.Decimal
	OvertimeMultiplier decimal.Decimal
	Active             bool
}

// Profile returns the employee's pay rate profile.
func (e Employee) Profile() payroll.PayRateProfile {
	return payroll.PayRateProfile{HourlyRate: e.HourlyRate, OvertimeMultiplier: e.OvertimeMultiplier}
}

// RateProvider supplies the pay rate profile for an employee.
type RateProvider interface {
	PayRate(ctx context.Context, employeeID string) (payroll.PayRateProfile, error)
}

// EmployeeStore persists employees and serves their rates.
type EmployeeStore interface {
	RateProvider
	SaveEmployee(ctx context.Context, emp Employee) error
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}
