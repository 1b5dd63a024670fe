/*
normalize.go - Time Interval Normalizer

PURPOSE:
  Converts a TimeEntry into an ordered list of non-overlapping Intervals,
  each lying within one calendar day, that cover exactly the net worked
  period (gross duration minus break).

MIDNIGHT CROSSING:
  If End <= Start the shift ends the day after WorkDate. The worked range
  is split at midnight, producing one Interval per calendar day. Rules that
  look at the day (weekend) or the clock (banding, night) are applied per
  Interval.

BREAK ALLOCATION:
  The break is removed as a single block, from the end of the shift by
  default (BreakFromEnd) or from the start (BreakFromStart). Nothing else
  decides where the break falls, so banding near a boundary is reproducible.

  08:00-17:00, 30 min, BreakFromEnd   -> worked 08:00-16:30
  22:00-06:30, 30 min, BreakFromEnd   -> worked 22:00-24:00 (day 0), 00:00-06:00 (day 1)
  22:00-06:30, 30 min, BreakFromStart -> worked 22:30-24:00 (day 0), 00:00-06:30 (day 1)

VALIDATION:
  Every failing field is reported, not just the first.
*/
package payroll

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a worked range [Start, End) in minutes of Day. DayOffset is
// the number of days after the work date (0 or 1 for a normalized shift).
type Interval struct {
	Day       time.Time
	DayOffset int
	Start     int
	End       int
}

func (iv Interval) Minutes() Minutes { return Minutes(iv.End - iv.Start) }
func (iv Interval) StartClock() ClockTime { return Clock(iv.Start/60, iv.Start%60) }

// EndClock returns the clock at End; an interval that runs to midnight ends at 24:00,
// reported as 00:00.
func (iv Interval) EndClock() ClockTime { return Clock((iv.End/60)%24, iv.End%60) }

func (iv Interval) String() string {
	return fmt.Sprintf("%s %s-%s", iv.Day.Format("2006-01-02"), iv.StartClock(), iv.EndClock())
}

func (iv Interval) span() span {
	base := iv.DayOffset * minutesPerDay
	return span{base + iv.Start, base + iv.End}
}

func spansOf(intervals []Interval) []span {
	out := make([]span, len(intervals))
	for i, iv := range intervals {
		out[i] = iv.span()
	}
	return out
}

// intervalsFromSpans splits spans at midnight boundaries relative to workDate.
func intervalsFromSpans(workDate time.Time, spans []span) []Interval {
	var out []Interval
	for _, s := range spans {
		for from := s.from; from < s.to; {
			day := floorDiv(from, minutesPerDay)
			to := s.to
			if dayEnd := (day + 1) * minutesPerDay; dayEnd < to {
				to = dayEnd
			}
			out = append(out, Interval{
				Day:       workDate.AddDate(0, 0, day),
				DayOffset: day,
				Start:     from - day*minutesPerDay,
				End:       to - day*minutesPerDay,
			})
			from = to
		}
	}
	return out
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateTimeEntry checks an entry against the default shift limit. Input
// forms use it for live feedback before a calculation is attempted.
func ValidateTimeEntry(entry TimeEntry) error {
	return ValidateEntry(entry, DefaultRuleConfig().MaxShift)
}

// ValidateEntry checks an entry, reporting every failing field.
func ValidateEntry(entry TimeEntry, maxShift time.Duration) error {
	errs := &ValidationError{}

	if strings.TrimSpace(entry.EmployeeID) == "" {
		errs.add("employee_id", "is required")
	}
	if entry.WorkDate.IsZero() {
		errs.add("work_date", "is required")
	}
	startOK, endOK := entry.Start.Valid(), entry.End.Valid()
	if !startOK {
		errs.add("start_time", "must be a valid 24-hour clock time")
	}
	if !endOK {
		errs.add("end_time", "must be a valid 24-hour clock time")
	}
	if entry.BreakMinutes < 0 {
		errs.add("break_minutes", "must not be negative")
	}

	if startOK && endOK {
		gross := entry.GrossMinutes()
		if maxShift > 0 && gross > MinutesOf(maxShift) {
			errs.add("end_time", fmt.Sprintf("shift of %s exceeds the %s maximum", gross, MinutesOf(maxShift)))
		}
		if entry.BreakMinutes > 0 && Minutes(entry.BreakMinutes) > gross {
			errs.add("break_minutes", fmt.Sprintf("break of %d minutes exceeds the %s shift", entry.BreakMinutes, gross))
		}
	}

	return errs.err()
}

// ParseTimeEntry builds a TimeEntry from form values. Parse failures and
// validation failures are reported together.
func ParseTimeEntry(employeeID, workDate, start, end string, breakMinutes int, maxShift time.Duration) (TimeEntry, error) {
	errs := &ValidationError{}
	entry := TimeEntry{EmployeeID: employeeID, BreakMinutes: breakMinutes}

	if workDate == "" {
		errs.add("work_date", "is required")
	} else if d, err := time.Parse("2006-01-02", workDate); err != nil {
		errs.add("work_date", "must be YYYY-MM-DD")
	} else {
		entry.WorkDate = d
	}

	var err error
	if entry.Start, err = ParseClock(start); err != nil {
		errs.add("start_time", "must be HH:MM (24-hour)")
	}
	if entry.End, err = ParseClock(end); err != nil {
		errs.add("end_time", "must be HH:MM (24-hour)")
	}

	if len(errs.Fields) > 0 {
		// Report what else is wrong with the fields that did parse.
		if strings.TrimSpace(employeeID) == "" {
			errs.add("employee_id", "is required")
		}
		if breakMinutes < 0 {
			errs.add("break_minutes", "must not be negative")
		}
		return entry, errs
	}

	return entry, ValidateEntry(entry, maxShift)
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalize validates entry and returns the worked intervals in time order.
func Normalize(entry TimeEntry, cfg RuleConfig) ([]Interval, error) {
	if err := ValidateEntry(entry, cfg.MaxShift); err != nil {
		return nil, err
	}
	return intervalsFromSpans(entry.Date(), []span{workedSpan(entry, cfg.BreakPolicy)}), nil
}

func workedSpan(entry TimeEntry, policy BreakPolicy) span {
	start := entry.Start.MinuteOfDay()
	end := start + int(entry.GrossMinutes())
	if policy == BreakFromStart {
		return span{start + entry.BreakMinutes, end}
	}
	return span{start, end - entry.BreakMinutes}
}
