package timesheet

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/chronoshift/payroll"
)

// =============================================================================
// WEEKLY SUMMARIES - Supervisor review grouping
// =============================================================================

// WeeklySummary aggregates one employee's records for one Monday-Sunday week.
type WeeklySummary struct {
	EmployeeID string
	WeekEnding time.Time
	Records    int
	Late       int
	ByStatus   map[Status]int

	Total    payroll.Minutes
	Regular  payroll.Minutes
	Overtime payroll.Minutes
	Night    payroll.Minutes
	Sleep    payroll.Minutes

	RegularPay  decimal.Decimal
	OvertimePay decimal.Decimal
	TotalPay    decimal.Decimal
}

// Summarize groups records by employee and week ending. Superseded records
// are skipped; their replacements carry the hours. Results are ordered by
// week ending, then employee.
func Summarize(records []*Record, deadline DeadlineRule) []WeeklySummary {
	type key struct {
		employee string
		week     time.Time
	}
	groups := make(map[key]*WeeklySummary)

	for _, rec := range records {
		if rec.SupersededBy != "" {
			continue
		}
		k := key{employee: rec.EmployeeID, week: rec.WeekEnding()}
		sum, ok := groups[k]
		if !ok {
			sum = &WeeklySummary{
				EmployeeID:  k.employee,
				WeekEnding:  k.week,
				ByStatus:    make(map[Status]int),
				RegularPay:  decimal.Zero,
				OvertimePay: decimal.Zero,
				TotalPay:    decimal.Zero,
			}
			groups[k] = sum
		}

		sum.Records++
		sum.ByStatus[rec.Status]++
		if deadline.IsLate(rec) {
			sum.Late++
		}
		if c := rec.Calculation; c != nil {
			sum.Total += c.Breakdown.Total
			sum.Regular += c.Breakdown.Regular
			sum.Overtime += c.Breakdown.Overtime
			sum.Night += c.Breakdown.Night
			sum.Sleep += c.Breakdown.Sleep
			sum.RegularPay = sum.RegularPay.Add(c.RegularPay)
			sum.OvertimePay = sum.OvertimePay.Add(c.OvertimePay)
			sum.TotalPay = sum.TotalPay.Add(c.TotalPay)
		}
	}

	out := make([]WeeklySummary, 0, len(groups))
	for _, sum := range groups {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekEnding.Equal(out[j].WeekEnding) {
			return out[i].WeekEnding.Before(out[j].WeekEnding)
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out
}

// WeeklySummaries lists records matching filter and summarizes them.
func (s *Service) WeeklySummaries(ctx context.Context, filter Filter) ([]WeeklySummary, error) {
	records, err := s.Store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Summarize(records, s.Deadline), nil
}

// =============================================================================
// SUPERVISOR STATS
// =============================================================================

// Stats is the supervisor dashboard header.
type Stats struct {
	Pending          int
	ApprovedThisWeek int
	RejectedThisWeek int
	OverdueDrafts    int
	LateSubmissions  int
}

// Stats counts pending reviews and this week's decisions. "This week" is the
// Monday-Sunday week containing the current time.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	records, err := s.Store.List(ctx, Filter{})
	if err != nil {
		return Stats{}, err
	}

	now := s.now()
	weekStart := WeekStart(now)
	weekEnd := weekStart.AddDate(0, 0, 7)
	inWeek := func(t *time.Time) bool {
		return t != nil && !t.Before(weekStart) && t.Before(weekEnd)
	}

	var st Stats
	for _, rec := range records {
		switch rec.Status {
		case StatusSubmitted:
			st.Pending++
			if s.Deadline.IsLate(rec) {
				st.LateSubmissions++
			}
		case StatusApproved:
			if inWeek(rec.ApprovedAt) {
				st.ApprovedThisWeek++
			}
		case StatusRejected:
			if inWeek(rec.RejectedAt) {
				st.RejectedThisWeek++
			}
		case StatusDraft:
			if s.Deadline.IsOverdue(rec, now) {
				st.OverdueDrafts++
			}
		}
	}
	return st, nil
}
