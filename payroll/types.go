/*
Package payroll turns a reported work period into an auditable pay breakdown.

PURPOSE:
  A shift is reported as (work date, start clock, end clock, break minutes).
  This package normalizes that shift into calendar-day intervals, runs a
  pipeline of independent rule evaluators over them (overtime threshold,
  standard-day banding, night window, weekend days, sleep deduction), and
  reconciles their contributions into a single HourBreakdown and a
  PayrollCalculation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Minutes: whole worked minutes; all rule arithmetic is done in minutes
  - ClockTime: an hour:minute position on the 24h clock
  - TimeEntry: the reported shift (immutable once calculated)
  - PayRateProfile: the employee's hourly rate and overtime multiplier
  - HourBreakdown / Bands: the two partitions of payable minutes
  - PayrollCalculation: breakdown plus pay amounts

DESIGN PRINCIPLES:
  1. Purity: nothing in this package performs I/O or reads the wall clock
  2. Exactness: minutes are integers, money is decimal.Decimal
  3. One rounding: pay is rounded half-even to 2 places once, at the end
  4. Determinism: identical inputs give an identical PayrollCalculation

USAGE:
  entry := payroll.TimeEntry{
      EmployeeID:   "emp-7",
      WorkDate:     time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
      Start:        payroll.Clock(8, 0),
      End:          payroll.Clock(17, 0),
      BreakMinutes: 30,
  }
  calc, err := payroll.Calculate(entry, payroll.NewPayRateProfile(rate), payroll.DefaultRuleConfig())

SEE ALSO:
  - normalize.go: interval normalization and entry validation
  - rules.go: the Evaluator interface and the pipeline
  - calculator.go: reconciliation and pay
*/
package payroll

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const minutesPerDay = 24 * 60

var (
	minutesPerHour = decimal.NewFromInt(60)

	// DefaultOvertimeMultiplier is applied when a profile leaves the multiplier unset.
	DefaultOvertimeMultiplier = decimal.RequireFromString("1.5")
)

// =============================================================================
// MINUTES
// =============================================================================

// Minutes is a whole number of minutes.
type Minutes int64

// MinutesOf truncates d to whole minutes.
func MinutesOf(d time.Duration) Minutes { return Minutes(d / time.Minute) }

func (m Minutes) Hours() decimal.Decimal { return decimal.NewFromInt(int64(m)).Div(minutesPerHour) }
func (m Minutes) Duration() time.Duration { return time.Duration(m) * time.Minute }
func (m Minutes) String() string { return fmt.Sprintf("%dh%02dm", m/60, m%60) }

// =============================================================================
// CLOCK TIME
// =============================================================================

// ClockTime is a position on the 24-hour clock.
type ClockTime struct {
	Hour   int
	Minute int
}

// Clock builds a ClockTime. It does not validate.
func Clock(hour, minute int) ClockTime { return ClockTime{Hour: hour, Minute: minute} }

// ParseClock parses "HH:MM" (24-hour, leading zero on the hour optional).
func ParseClock(s string) (ClockTime, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return ClockTime{}, fmt.Errorf("clock %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return ClockTime{}, fmt.Errorf("clock %q: bad hour", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return ClockTime{}, fmt.Errorf("clock %q: bad minute", s)
	}
	c := ClockTime{Hour: hour, Minute: minute}
	if !c.Valid() {
		return ClockTime{}, fmt.Errorf("clock %q: out of range", s)
	}
	return c, nil
}

// MustParseClock is ParseClock for literals known to be valid.
func MustParseClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

// MinuteOfDay returns minutes since midnight.
func (c ClockTime) MinuteOfDay() int { return c.Hour*60 + c.Minute }

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func (c ClockTime) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// =============================================================================
// TIME ENTRY - The reported shift
// =============================================================================

// TimeEntry is a single reported shift. If End is at or before Start the
// shift ends on the calendar day after WorkDate.
type TimeEntry struct {
	EmployeeID   string
	WorkDate     time.Time
	Start        ClockTime
	End          ClockTime
	BreakMinutes int
}

// CrossesMidnight reports whether the shift ends on the following day.
func (e TimeEntry) CrossesMidnight() bool {
	return e.End.MinuteOfDay() <= e.Start.MinuteOfDay()
}

// GrossMinutes is the clock duration of the shift before the break.
func (e TimeEntry) GrossMinutes() Minutes {
	start, end := e.Start.MinuteOfDay(), e.End.MinuteOfDay()
	if end <= start {
		end += minutesPerDay
	}
	return Minutes(end - start)
}

// NetMinutes is gross duration minus the unpaid break.
func (e TimeEntry) NetMinutes() Minutes { return e.GrossMinutes() - Minutes(e.BreakMinutes) }

// Date returns WorkDate truncated to midnight UTC.
func (e TimeEntry) Date() time.Time { return CivilDate(e.WorkDate) }

// CivilDate drops the clock and location from t, keeping its calendar date.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// PAY RATE PROFILE
// =============================================================================

// PayRateProfile is supplied per employee by the caller.
type PayRateProfile struct {
	HourlyRate         decimal.Decimal
	OvertimeMultiplier decimal.Decimal
}

// NewPayRateProfile returns a profile with the default 1.5x multiplier.
func NewPayRateProfile(hourlyRate decimal.Decimal) PayRateProfile {
	return PayRateProfile{HourlyRate: hourlyRate, OvertimeMultiplier: DefaultOvertimeMultiplier}
}

// Multiplier returns the overtime multiplier, defaulting when unset.
func (p PayRateProfile) Multiplier() decimal.Decimal {
	if p.OvertimeMultiplier.IsZero() {
		return DefaultOvertimeMultiplier
	}
	return p.OvertimeMultiplier
}

// =============================================================================
// HOUR BREAKDOWN - Two independent partitions of the payable minutes
// =============================================================================

// Bands attributes every payable minute to exactly one banding category.
type Bands struct {
	NormalTime Minutes
	BeforeWork Minutes
	AfterWork  Minutes
	Weekend    Minutes
}

func (b Bands) Sum() Minutes { return b.NormalTime + b.BeforeWork + b.AfterWork + b.Weekend }

// HourBreakdown is the reconciled output of the rule pipeline.
//
// INVARIANTS:
//   - Regular + Overtime == Total
//   - Bands.Sum() == Total
//   - Sleep is excluded from Total (it is unpaid)
//   - Night is a label over Total, not a partition
type HourBreakdown struct {
	Total    Minutes
	Regular  Minutes
	Overtime Minutes
	Night    Minutes
	Sleep    Minutes
	Bands    Bands
}

// Check verifies the partition invariants.
func (b HourBreakdown) Check() error {
	if b.Regular+b.Overtime != b.Total {
		return fmt.Errorf("%w: regular %s + overtime %s != total %s",
			ErrInconsistentBreakdown, b.Regular, b.Overtime, b.Total)
	}
	if b.Bands.Sum() != b.Total {
		return fmt.Errorf("%w: bands %s != total %s", ErrInconsistentBreakdown, b.Bands.Sum(), b.Total)
	}
	if b.Night > b.Total || b.Sleep < 0 {
		return fmt.Errorf("%w: night %s, sleep %s, total %s", ErrInconsistentBreakdown, b.Night, b.Sleep, b.Total)
	}
	return nil
}

// =============================================================================
// PAYROLL CALCULATION
// =============================================================================

// PayrollCalculation is the immutable result of Calculate.
type PayrollCalculation struct {
	Breakdown          HourBreakdown
	HourlyRate         decimal.Decimal
	OvertimeMultiplier decimal.Decimal
	RegularPay         decimal.Decimal
	OvertimePay        decimal.Decimal
	TotalPay           decimal.Decimal

	// Notes describes which rules changed the result, in a fixed order.
	Notes []string
}
