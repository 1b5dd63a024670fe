/*
scheduler.go - Overdue timesheet monitor

PURPOSE:
  Periodically finds Draft timesheets whose submission deadline has passed
  and reports them for notification collaborators. It never transitions a
  record; submission is always the employee's action.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each check lists overdue Drafts through timesheet.Service.Overdue
  - A record is reported once per monitor lifetime; the Notify hook gets
    only newly overdue records

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the monitor is active (default: true)

USAGE:
  monitor := NewDeadlineMonitor(svc, logger)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - timesheet/deadline.go: DeadlineRule
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/chronoshift/timesheet"
)

// DeadlineMonitor reports overdue Draft timesheets.
type DeadlineMonitor struct {
	Service       *timesheet.Service
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	// Notify receives newly overdue records. Optional.
	Notify func(ctx context.Context, overdue []*timesheet.Record)

	seen     sync.Mutex
	reported map[string]bool
	ticker   *time.Ticker
	stop     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewDeadlineMonitor creates a new monitor.
func NewDeadlineMonitor(svc *timesheet.Service, logger *slog.Logger) *DeadlineMonitor {
	return &DeadlineMonitor{
		Service:       svc,
		Logger:        logger.With("component", "deadline_monitor"),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		reported:      make(map[string]bool),
	}
}

// Start begins the monitor. Starting a running monitor is a no-op, and a
// stopped monitor can be started again.
func (m *DeadlineMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled {
		m.Logger.Info("disabled, not starting")
		return
	}

	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)

	go m.run(m.ticker.C, m.stop)

	m.Logger.Info("started", "check_interval", m.CheckInterval)
}

// Stop stops the monitor and waits for a running check to finish.
func (m *DeadlineMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stop)
		m.wg.Wait()
		m.ticker = nil
		m.Logger.Info("stopped")
	}
}

func (m *DeadlineMonitor) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer m.wg.Done()

	// Run immediately on start
	m.Check(context.Background())

	for {
		select {
		case <-tick:
			m.Check(context.Background())
		case <-stop:
			return
		}
	}
}

// Check runs one pass and returns the records that became overdue since
// the previous pass.
func (m *DeadlineMonitor) Check(ctx context.Context) []*timesheet.Record {
	overdue, err := m.Service.Overdue(ctx)
	if err != nil {
		m.Logger.Error("listing overdue timesheets", "error", err)
		return nil
	}

	m.seen.Lock()
	defer m.seen.Unlock()

	var fresh []*timesheet.Record
	for _, rec := range overdue {
		if m.reported[rec.ID] {
			continue
		}
		m.reported[rec.ID] = true
		fresh = append(fresh, rec)
		m.Logger.Warn("timesheet overdue",
			"record_id", rec.ID,
			"employee_id", rec.EmployeeID,
			"work_date", rec.Entry.Date().Format(dateFormat),
			"deadline", m.Service.Deadline.DeadlineFor(rec.Entry.WorkDate),
		)
	}

	if len(fresh) > 0 && m.Notify != nil {
		m.Notify(ctx, fresh)
	}
	if len(overdue) > 0 {
		m.Logger.Info("check completed", "overdue", len(overdue), "new", len(fresh))
	}
	return fresh
}
