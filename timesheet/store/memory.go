// Package store provides in-memory timesheet and employee stores.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/chronoshift/payroll"
	"github.com/warp/chronoshift/timesheet"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements timesheet.Store and timesheet.EmployeeStore. Records
// are cloned on the way in and out so callers never share state with the
// store.
type Memory struct {
	mu        sync.RWMutex
	records   map[string]*timesheet.Record
	employees map[string]timesheet.Employee
}

func NewMemory() *Memory {
	return &Memory{
		records:   make(map[string]*timesheet.Record),
		employees: make(map[string]timesheet.Employee),
	}
}

func (m *Memory) Create(_ context.Context, rec *timesheet.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.ID]; exists {
		return fmt.Errorf("%w: %s", timesheet.ErrDuplicateRecord, rec.ID)
	}
	rec.Version = 1
	m.records[rec.ID] = rec.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*timesheet.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", timesheet.ErrRecordNotFound, id)
	}
	return rec.Clone(), nil
}

// Update is a compare-and-swap on Version.
func (m *Memory) Update(_ context.Context, rec *timesheet.Record, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.records[rec.ID]
	if !ok {
		return fmt.Errorf("%w: %s", timesheet.ErrRecordNotFound, rec.ID)
	}
	if current.Version != expectedVersion {
		return &timesheet.ConcurrentModificationError{
			RecordID: rec.ID,
			Expected: expectedVersion,
			Actual:   current.Version,
		}
	}
	rec.Version = expectedVersion + 1
	m.records[rec.ID] = rec.Clone()
	return nil
}

func (m *Memory) List(_ context.Context, filter timesheet.Filter) ([]*timesheet.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*timesheet.Record
	for _, rec := range m.records {
		if filter.Match(rec) {
			result = append(result, rec.Clone())
		}
	}
	timesheet.SortRecords(result)
	return result, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, emp timesheet.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id string) (*timesheet.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emp, ok := m.employees[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", timesheet.ErrEmployeeNotFound, id)
	}
	return &emp, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]timesheet.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]timesheet.Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// PayRate returns the profile of an active employee.
func (m *Memory) PayRate(ctx context.Context, employeeID string) (payroll.PayRateProfile, error) {
	emp, err := m.GetEmployee(ctx, employeeID)
	if err != nil {
		return payroll.PayRateProfile{}, err
	}
	if !emp.Active {
		return payroll.PayRateProfile{}, fmt.Errorf("%w: %s is inactive", timesheet.ErrEmployeeNotFound, employeeID)
	}
	return emp.Profile(), nil
}

