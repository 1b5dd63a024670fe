/*
deadline.go - Late-submission flag

RULE:
  Weeks run Monday to Sunday. A shift's week ending is the Sunday on or
  after its work date. Timesheets for that week are due at the first
  occurrence of DeadlineRule.Weekday after the week ending, at Hour:Minute
  in the rule's location. With the default rule (Tuesday 17:00), work on
  Wed 12 Mar 2025 is due Tue 18 Mar 2025 17:00.

  Lateness is derived from SubmittedAt on demand and never stored, and it
  never blocks a transition.
*/
package timesheet

import (
	"time"

	"github.com/warp/chronoshift/payroll"
)

// DeadlineRule is the recurring submission cut-off.
type DeadlineRule struct {
	Weekday  time.Weekday
	Hour     int
	Minute   int
	Location *time.Location
}

// DefaultDeadlineRule is Tuesday 17:00 UTC.
func DefaultDeadlineRule() DeadlineRule {
	return DeadlineRule{Weekday: time.Tuesday, Hour: 17, Location: time.UTC}
}

// WeekStart returns the Monday of date's week.
func WeekStart(date time.Time) time.Time {
	d := payroll.CivilDate(date)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// WeekEnding returns the Sunday of date's week.
func WeekEnding(date time.Time) time.Time {
	return WeekStart(date).AddDate(0, 0, 6)
}

// DeadlineFor returns the submission deadline for a shift worked on workDate.
func (r DeadlineRule) DeadlineFor(workDate time.Time) time.Time {
	d := WeekEnding(workDate).AddDate(0, 0, 1)
	for d.Weekday() != r.Weekday {
		d = d.AddDate(0, 0, 1)
	}
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year(), d.Month(), d.Day(), r.Hour, r.Minute, 0, 0, loc)
}

// IsLate reports whether rec was submitted after its deadline. Records that
// were never submitted are not late.
func (r DeadlineRule) IsLate(rec *Record) bool {
	if rec.SubmittedAt == nil {
		return false
	}
	return rec.SubmittedAt.After(r.DeadlineFor(rec.Entry.WorkDate))
}

// IsOverdue reports whether rec is still a Draft after its deadline.
func (r DeadlineRule) IsOverdue(rec *Record, now time.Time) bool {
	return rec.Status == StatusDraft && now.After(r.DeadlineFor(rec.Entry.WorkDate))
}
