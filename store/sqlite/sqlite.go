/*
Package sqlite provides a SQLite-backed implementation of the timesheet stores.

PURPOSE:
  Implements timesheet.Store (records with optimistic versioning) and
  timesheet.EmployeeStore (pay rate profiles) on database/sql with the
  go-sqlite3 driver.

KEY TABLES:
  timesheets: one row per record. The entry is stored in columns so the
              read model can filter on it; the calculation, audit notes and
              history are JSON columns.
  employees:  hourly rate and overtime multiplier as decimal strings.

OPTIMISTIC CONCURRENCY:
  Update runs

      UPDATE timesheets SET ..., version = version + 1
      WHERE id = ? AND version = ?

  and treats zero affected rows as a stale version (or a missing row).
  The check and the write are one statement, so two writers can never
  both succeed against the same version.

NO DELETE:
  There is no DELETE on timesheets. Rejected and superseded rows stay.

WAL MODE:
  Opened with WAL so readers don't block the single writer.

USAGE:
  store, err := sqlite.New("./data/chronoshift.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - timesheet/store.go: interface definitions
  - timesheet/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/chronoshift/payroll"
	"github.com/warp/chronoshift/timesheet"
)

const (
	dateFormat = "2006-01-02"
	timeFormat = time.RFC3339Nano
)

// Store implements timesheet.Store and timesheet.EmployeeStore.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

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

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS timesheets (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		break_minutes INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'draft',
		version INTEGER NOT NULL DEFAULT 1,
		calculation_json TEXT,
		notes TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		submitted_at TEXT,
		approved_by TEXT,
		approved_at TEXT,
		approval_notes TEXT,
		rejected_by TEXT,
		rejected_at TEXT,
		rejection_notes TEXT,
		supersedes TEXT,
		superseded_by TEXT,
		audit_notes_json TEXT NOT NULL DEFAULT '[]',
		history_json TEXT NOT NULL DEFAULT '[]'
	);

	-- Read model: dashboards filter by employee and week
	CREATE INDEX IF NOT EXISTS idx_timesheets_employee_date
		ON timesheets(employee_id, work_date);
	CREATE INDEX IF NOT EXISTS idx_timesheets_status
		ON timesheets(status);
	CREATE INDEX IF NOT EXISTS idx_timesheets_work_date
		ON timesheets(work_date);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hourly_rate TEXT NOT NULL,
		overtime_multiplier TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TIMESHEET STORE (timesheet.Store interface)
// =============================================================================

const selectColumns = `
	SELECT id, employee_id, work_date, start_time, end_time, break_minutes, status, version,
		calculation_json, notes, created_by, created_at, updated_at, submitted_at,
		approved_by, approved_at, approval_notes, rejected_by, rejected_at, rejection_notes,
		supersedes, superseded_by, audit_notes_json, history_json
	FROM timesheets`

// Create inserts a new record at version 1.
func (s *Store) Create(ctx context.Context, rec *timesheet.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := toRow(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO timesheets (id, employee_id, work_date, start_time, end_time, break_minutes,
			status, version, calculation_json, notes, created_by, created_at, updated_at,
			submitted_at, approved_by, approved_at, approval_notes, rejected_by, rejected_at,
			rejection_notes, supersedes, superseded_by, audit_notes_json, history_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.EmployeeID, row.workDate, row.start, row.end, rec.Entry.BreakMinutes,
		rec.Status, row.calculation, rec.Notes, rec.CreatedBy,
		rec.CreatedAt.UTC().Format(timeFormat), rec.UpdatedAt.UTC().Format(timeFormat),
		row.submittedAt, rec.ApprovedBy, row.approvedAt, rec.ApprovalNotes,
		rec.RejectedBy, row.rejectedAt, rec.RejectionNotes,
		nullString(rec.Supersedes), nullString(rec.SupersededBy), row.auditNotes, row.history,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", timesheet.ErrDuplicateRecord, rec.ID)
		}
		return fmt.Errorf("failed to create timesheet: %w", err)
	}

	rec.Version = 1
	return nil
}

// Get retrieves a record by id.
func (s *Store) Get(ctx context.Context, id string) (*timesheet.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", timesheet.ErrRecordNotFound, id)
	}
	return scanRecord(rows)
}

// Update writes rec if the stored version still equals expectedVersion.
func (s *Store) Update(ctx context.Context, rec *timesheet.Record, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := toRow(rec)
	if err != nil {
		return err
	}

	query := `
		UPDATE timesheets SET
			work_date = ?, start_time = ?, end_time = ?, break_minutes = ?,
			status = ?, version = version + 1, calculation_json = ?, notes = ?,
			updated_at = ?, submitted_at = ?, approved_by = ?, approved_at = ?, approval_notes = ?,
			rejected_by = ?, rejected_at = ?, rejection_notes = ?, supersedes = ?, superseded_by = ?,
			audit_notes_json = ?, history_json = ?
		WHERE id = ? AND version = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		row.workDate, row.start, row.end, rec.Entry.BreakMinutes,
		rec.Status, row.calculation, rec.Notes,
		rec.UpdatedAt.UTC().Format(timeFormat), row.submittedAt, rec.ApprovedBy, row.approvedAt, rec.ApprovalNotes,
		rec.RejectedBy, row.rejectedAt, rec.RejectionNotes, nullString(rec.Supersedes), nullString(rec.SupersededBy),
		row.auditNotes, row.history,
		rec.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update timesheet: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var actual int64
		err := s.db.QueryRowContext(ctx, "SELECT version FROM timesheets WHERE id = ?", rec.ID).Scan(&actual)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", timesheet.ErrRecordNotFound, rec.ID)
		}
		if err != nil {
			return err
		}
		return &timesheet.ConcurrentModificationError{RecordID: rec.ID, Expected: expectedVersion, Actual: actual}
	}

	rec.Version = expectedVersion + 1
	return nil
}

// List returns records matching filter, in the timesheet.SortRecords order.
func (s *Store) List(ctx context.Context, filter timesheet.Filter) ([]*timesheet.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.WeekEnding.IsZero() {
		where = append(where, "work_date BETWEEN ? AND ?")
		args = append(args,
			timesheet.WeekStart(filter.WeekEnding).Format(dateFormat),
			timesheet.WeekEnding(filter.WeekEnding).Format(dateFormat))
	}
	if !filter.From.IsZero() {
		where = append(where, "work_date >= ?")
		args = append(args, payroll.CivilDate(filter.From).Format(dateFormat))
	}
	if !filter.To.IsZero() {
		where = append(where, "work_date <= ?")
		args = append(args, payroll.CivilDate(filter.To).Format(dateFormat))
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY work_date, start_time"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*timesheet.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if filter.Match(rec) {
			records = append(records, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	timesheet.SortRecords(records)
	return records, nil
}

// =============================================================================
// ROW MAPPING
// =============================================================================

type recordRow struct {
	workDate    string
	start       string
	end         string
	calculation sql.NullString
	submittedAt sql.NullString
	approvedAt  sql.NullString
	rejectedAt  sql.NullString
	auditNotes  string
	history     string
}

func toRow(rec *timesheet.Record) (recordRow, error) {
	row := recordRow{
		workDate:    payroll.CivilDate(rec.Entry.WorkDate).Format(dateFormat),
		start:       rec.Entry.Start.String(),
		end:         rec.Entry.End.String(),
		submittedAt: nullTime(rec.SubmittedAt),
		approvedAt:  nullTime(rec.ApprovedAt),
		rejectedAt:  nullTime(rec.RejectedAt),
	}

	if rec.Calculation != nil {
		b, err := json.Marshal(rec.Calculation)
		if err != nil {
			return row, fmt.Errorf("encode calculation: %w", err)
		}
		row.calculation = sql.NullString{String: string(b), Valid: true}
	}

	notes, err := json.Marshal(nonNil(rec.AuditNotes))
	if err != nil {
		return row, fmt.Errorf("encode audit notes: %w", err)
	}
	history, err := json.Marshal(nonNil(rec.History))
	if err != nil {
		return row, fmt.Errorf("encode history: %w", err)
	}
	row.auditNotes, row.history = string(notes), string(history)
	return row, nil
}

func scanRecord(rows *sql.Rows) (*timesheet.Record, error) {
	var rec timesheet.Record
	var workDate, start, end, createdAt, updatedAt, auditNotes, history string
	var calculation, notes, createdBy, submittedAt, approvedBy, approvedAt, approvalNotes sql.NullString
	var rejectedBy, rejectedAt, rejectionNotes, supersedes, supersededBy sql.NullString

	if err := rows.Scan(
		&rec.ID, &rec.EmployeeID, &workDate, &start, &end, &rec.Entry.BreakMinutes, &rec.Status, &rec.Version,
		&calculation, &notes, &createdBy, &createdAt, &updatedAt, &submittedAt,
		&approvedBy, &approvedAt, &approvalNotes, &rejectedBy, &rejectedAt, &rejectionNotes,
		&supersedes, &supersededBy, &auditNotes, &history,
	); err != nil {
		return nil, err
	}

	var err error
	rec.Entry.EmployeeID = rec.EmployeeID
	if rec.Entry.WorkDate, err = time.Parse(dateFormat, workDate); err != nil {
		return nil, fmt.Errorf("timesheet %s: work_date: %w", rec.ID, err)
	}
	if rec.Entry.Start, err = payroll.ParseClock(start); err != nil {
		return nil, fmt.Errorf("timesheet %s: %w", rec.ID, err)
	}
	if rec.Entry.End, err = payroll.ParseClock(end); err != nil {
		return nil, fmt.Errorf("timesheet %s: %w", rec.ID, err)
	}

	if calculation.Valid {
		rec.Calculation = &payroll.PayrollCalculation{}
		if err := json.Unmarshal([]byte(calculation.String), rec.Calculation); err != nil {
			return nil, fmt.Errorf("timesheet %s: decode calculation: %w", rec.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(auditNotes), &rec.AuditNotes); err != nil {
		return nil, fmt.Errorf("timesheet %s: decode audit notes: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(history), &rec.History); err != nil {
		return nil, fmt.Errorf("timesheet %s: decode history: %w", rec.ID, err)
	}

	rec.Notes = notes.String
	rec.CreatedBy = createdBy.String
	rec.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	rec.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	rec.SubmittedAt = parseNullTime(submittedAt)
	rec.ApprovedBy = ptrString(approvedBy)
	rec.ApprovedAt = parseNullTime(approvedAt)
	rec.ApprovalNotes = approvalNotes.String
	rec.RejectedBy = ptrString(rejectedBy)
	rec.RejectedAt = parseNullTime(rejectedAt)
	rec.RejectionNotes = rejectionNotes.String
	rec.Supersedes = supersedes.String
	rec.SupersededBy = supersededBy.String

	if len(rec.AuditNotes) == 0 {
		rec.AuditNotes = nil
	}
	return &rec, nil
}

// =============================================================================
// EMPLOYEE STORE (timesheet.EmployeeStore interface)
// =============================================================================

// SaveEmployee inserts or updates an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp timesheet.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, hourly_rate, overtime_multiplier, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			hourly_rate = excluded.hourly_rate,
			overtime_multiplier = excluded.overtime_multiplier,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	var multiplier sql.NullString
	if !emp.OvertimeMultiplier.IsZero() {
		multiplier = sql.NullString{String: emp.OvertimeMultiplier.String(), Valid: true}
	}
	now := time.Now().UTC().Format(timeFormat)

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.HourlyRate.String(), multiplier, emp.Active, now, now,
	)
	return err
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id string) (*timesheet.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var emp timesheet.Employee
	var rate string
	var multiplier sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, hourly_rate, overtime_multiplier, active FROM employees WHERE id = ?",
		id,
	).Scan(&emp.ID, &emp.Name, &rate, &multiplier, &emp.Active)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", timesheet.ErrEmployeeNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if err := decodeRates(&emp, rate, multiplier); err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListEmployees returns all employees ordered by id.
func (s *Store) ListEmployees(ctx context.Context) ([]timesheet.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, hourly_rate, overtime_multiplier, active FROM employees ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []timesheet.Employee
	for rows.Next() {
		var emp timesheet.Employee
		var rate string
		var multiplier sql.NullString
		if err := rows.Scan(&emp.ID, &emp.Name, &rate, &multiplier, &emp.Active); err != nil {
			return nil, err
		}
		if err := decodeRates(&emp, rate, multiplier); err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// PayRate returns the profile of an active employee.
func (s *Store) PayRate(ctx context.Context, employeeID string) (payroll.PayRateProfile, error) {
	emp, err := s.GetEmployee(ctx, employeeID)
	if err != nil {
		return payroll.PayRateProfile{}, err
	}
	if !emp.Active {
		return payroll.PayRateProfile{}, fmt.Errorf("%w: %s is inactive", timesheet.ErrEmployeeNotFound, employeeID)
	}
	return emp.Profile(), nil
}

func decodeRates(emp *timesheet.Employee, rate string, multiplier sql.NullString) error {
	var err error
	if emp.HourlyRate, err = decimal.NewFromString(rate); err != nil {
		return fmt.Errorf("employee %s: hourly_rate: %w", emp.ID, err)
	}
	if multiplier.Valid {
		if emp.OvertimeMultiplier, err = decimal.NewFromString(multiplier.String); err != nil {
			return fmt.Errorf("employee %s: overtime_multiplier: %w", emp.ID, err)
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeFormat), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func ptrString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
