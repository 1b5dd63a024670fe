/*
config.go - Rule thresholds as an injected value object

PURPOSE:
  Every threshold the rules need (overtime threshold, standard day, night
  window, weekend days, sleep window) lives in RuleConfig. Nothing in the
  evaluators is a literal. DefaultRuleConfig documents the values used by
  the business today; they should be confirmed with the payroll owner
  before they are changed.

DEFAULTS:
  OvertimeBasis     daily, 8h threshold (weekly basis: 42.5h)
  WeekendOvertime   true   (every weekend minute is paid at overtime)
  StandardDay       08:00-17:00
  NightWindow       22:00-06:00
  WeekendDays       Saturday, Sunday
  Sleep             23:00-07:00, triggers at 4h contiguous, capped at 8h
  MaxShift          16h gross
  BreakPolicy       deducted from the end of the shift

VALIDATION:
  Validate() reports every bad parameter at once as a RuleConfigurationError.
  Callers are expected to run it at startup (factory.ParseRuleConfig does).
*/
package payroll

import (
	"fmt"
	"time"
)

// OvertimeBasis selects the period the overtime threshold applies to.
type OvertimeBasis string

const (
	OvertimeDaily  OvertimeBasis = "daily"
	OvertimeWeekly OvertimeBasis = "weekly"
)

// BreakPolicy decides where in the shift the unpaid break is removed.
type BreakPolicy string

const (
	// BreakFromEnd removes the break from the end of the shift: a 22:00-06:30
	// shift with a 30 minute break is worked 22:00-06:00.
	BreakFromEnd BreakPolicy = "end"

	// BreakFromStart removes the break from the start of the shift.
	BreakFromStart BreakPolicy = "start"
)

// ClockWindow is a daily window [Start, End). When End is at or before Start
// the window wraps past midnight. Start == End is an empty window.
type ClockWindow struct {
	Start ClockTime
	End   ClockTime
}

// Window builds a ClockWindow from two "HH:MM" literals.
func Window(start, end string) ClockWindow {
	return ClockWindow{Start: MustParseClock(start), End: MustParseClock(end)}
}

func (w ClockWindow) IsEmpty() bool { return w.Start == w.End }
func (w ClockWindow) Wraps() bool   { return w.End.MinuteOfDay() < w.Start.MinuteOfDay() }

// Length is the window duration in minutes.
func (w ClockWindow) Length() Minutes {
	start, end := w.Start.MinuteOfDay(), w.End.MinuteOfDay()
	if end < start {
		end += minutesPerDay
	}
	return Minutes(end - start)
}

func (w ClockWindow) String() string { return w.Start.String() + "-" + w.End.String() }

// SleepRule configures the unpaid overnight sleep deduction.
type SleepRule struct {
	Enabled bool
	Window  ClockWindow

	// MinBlock is the shortest contiguous overlap with Window that triggers a deduction.
	MinBlock time.Duration

	// MaxDeduction caps the deduction per shift. Zero means uncapped.
	MaxDeduction time.Duration
}

// RuleConfig holds every rule parameter.
type RuleConfig struct {
	OvertimeBasis   OvertimeBasis
	DailyThreshold  time.Duration
	WeeklyThreshold time.Duration

	// WeekendOvertime pays every weekend minute at the overtime rate,
	// regardless of the threshold.
	WeekendOvertime bool

	StandardDay ClockWindow
	NightWindow ClockWindow
	WeekendDays []time.Weekday
	Sleep       SleepRule

	MaxShift    time.Duration
	BreakPolicy BreakPolicy
}

// DefaultRuleConfig returns the documented defaults.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		OvertimeBasis:   OvertimeDaily,
		DailyThreshold:  8 * time.Hour,
		WeeklyThreshold: 42*time.Hour + 30*time.Minute,
		WeekendOvertime: true,
		StandardDay:     Window("08:00", "17:00"),
		NightWindow:     Window("22:00", "06:00"),
		WeekendDays:     []time.Weekday{time.Saturday, time.Sunday},
		Sleep: SleepRule{
			Enabled:      true,
			Window:       Window("23:00", "07:00"),
			MinBlock:     4 * time.Hour,
			MaxDeduction: 8 * time.Hour,
		},
		MaxShift:    16 * time.Hour,
		BreakPolicy: BreakFromEnd,
	}
}

// IsWeekend reports whether day falls on a configured weekend day.
func (c RuleConfig) IsWeekend(day time.Time) bool {
	return containsWeekday(c.WeekendDays, day.Weekday())
}

// Threshold returns the overtime threshold for the configured basis.
func (c RuleConfig) Threshold() time.Duration {
	if c.OvertimeBasis == OvertimeWeekly {
		return c.WeeklyThreshold
	}
	return c.DailyThreshold
}

// Validate checks every parameter and reports all problems together.
func (c RuleConfig) Validate() error {
	errs := &RuleConfigurationError{}

	switch c.OvertimeBasis {
	case OvertimeDaily, OvertimeWeekly:
	default:
		errs.add("overtime_basis", fmt.Sprintf("unknown basis %q", c.OvertimeBasis))
	}
	checkDuration(errs, "daily_threshold", c.DailyThreshold, false)
	if c.OvertimeBasis == OvertimeWeekly {
		checkDuration(errs, "weekly_threshold", c.WeeklyThreshold, false)
	}

	checkWindow(errs, "standard_day", c.StandardDay)
	if !errs.hasField("standard_day") && (c.StandardDay.IsEmpty() || c.StandardDay.Wraps()) {
		errs.add("standard_day", "must start and end on the same day")
	}
	checkWindow(errs, "night_window", c.NightWindow)
	if !errs.hasField("night_window") && c.NightWindow.IsEmpty() {
		errs.add("night_window", "must not be empty")
	}

	seen := make(map[time.Weekday]bool, len(c.WeekendDays))
	for _, d := range c.WeekendDays {
		if d < time.Sunday || d > time.Saturday {
			errs.add("weekend_days", fmt.Sprintf("invalid weekday %d", d))
			continue
		}
		if seen[d] {
			errs.add("weekend_days", fmt.Sprintf("%s listed twice", d))
		}
		seen[d] = true
	}

	if c.Sleep.Enabled {
		checkWindow(errs, "sleep.window", c.Sleep.Window)
		if !errs.hasField("sleep.window") && c.Sleep.Window.IsEmpty() {
			errs.add("sleep.window", "must not be empty when sleep deduction is enabled")
		}
		checkDuration(errs, "sleep.min_block", c.Sleep.MinBlock, true)
		checkDuration(errs, "sleep.max_deduction", c.Sleep.MaxDeduction, true)
	}

	checkDuration(errs, "max_shift", c.MaxShift, false)
	if c.MaxShift > 24*time.Hour {
		errs.add("max_shift", "must not exceed 24h")
	}

	switch c.BreakPolicy {
	case BreakFromEnd, BreakFromStart:
	default:
		errs.add("break_policy", fmt.Sprintf("unknown policy %q", c.BreakPolicy))
	}

	return errs.err()
}

func (e *RuleConfigurationError) hasField(field string) bool {
	for _, p := range e.Problems {
		if p.Field == field {
			return true
		}
	}
	return false
}

func checkDuration(errs *RuleConfigurationError, field string, d time.Duration, allowZero bool) {
	switch {
	case d < 0, d == 0 && !allowZero:
		errs.add(field, "must be positive")
	case d%time.Minute != 0:
		errs.add(field, "must be a whole number of minutes")
	}
}

func checkWindow(errs *RuleConfigurationError, field string, w ClockWindow) {
	if !w.Start.Valid() || !w.End.Valid() {
		errs.add(field, "clock out of range")
	}
}

func containsWeekday(days []time.Weekday, d time.Weekday) bool {
	for _, wd := range days {
		if wd == d {
			return true
		}
	}
	return false
}
