/*
calculator.go - Payroll Calculator

PURPOSE:
  Orchestrates normalization and the rule pipeline, reconciles the
  contributions into an HourBreakdown, checks its invariants and prices it.

RECONCILIATION:
  - Total    = worked minutes - sleep minutes
  - Regular / Overtime come straight from the overtime evaluator
  - Weekend  = weekend-day payable minutes
  - Normal / BeforeWork / AfterWork = banding minus weekend minutes
    (a weekend minute belongs to the weekend band only)
  - Night    = payable minutes inside the night window

PAY:
  regularPay  = round(rate * regularMinutes / 60)
  overtimePay = round(rate * multiplier * overtimeMinutes / 60)
  totalPay    = regularPay + overtimePay

  Rounding is half-even to 2 places and happens once per pay figure, so
  totalPay is exactly the sum of the two rounded parts.
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// payPrecision is the number of decimal places pay is rounded to.
const payPrecision = 2

// Input is everything a calculation depends on besides the rule config.
type Input struct {
	Entry TimeEntry
	Rate  PayRateProfile

	// PriorMinutes feeds EvalContext.PriorMinutes.
	PriorMinutes Minutes
}

// Calculator is safe for concurrent use; it holds no mutable state.
type Calculator struct {
	config   RuleConfig
	pipeline Pipeline
}

// NewCalculator validates cfg and builds the standard pipeline.
func NewCalculator(cfg RuleConfig) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{config: cfg, pipeline: NewPipeline(cfg)}, nil
}

// Config returns the rule configuration the calculator was built with.
func (c *Calculator) Config() RuleConfig { return c.config }

// Calculate validates the entry and rate together and returns the priced
// breakdown. Identical inputs produce identical results.
func Calculate(entry TimeEntry, profile PayRateProfile, cfg RuleConfig) (*PayrollCalculation, error) {
	calc, err := NewCalculator(cfg)
	if err != nil {
		return nil, err
	}
	return calc.Calculate(Input{Entry: entry, Rate: profile})
}

// Calculate runs the full calculation for one entry.
func (c *Calculator) Calculate(in Input) (*PayrollCalculation, error) {
	errs := &ValidationError{}
	errs.merge(ValidateEntry(in.Entry, c.config.MaxShift))
	validateRate(errs, in.Rate)
	if err := errs.err(); err != nil {
		return nil, err
	}

	worked, err := Normalize(in.Entry, c.config)
	if err != nil {
		return nil, err
	}

	ctx := EvalContext{WorkDate: in.Entry.Date(), PriorMinutes: in.PriorMinutes}
	if ctx.PriorMinutes < 0 {
		ctx.PriorMinutes = 0
	}
	payable, deductions, contributions := c.pipeline.Run(worked, ctx)

	breakdown, err := reconcile(payable, deductions, contributions)
	if err != nil {
		return nil, err
	}

	result := price(breakdown, in.Rate)
	result.Notes = c.notes(in.Entry, ctx, breakdown)
	return result, nil
}

func validateRate(errs *ValidationError, rate PayRateProfile) {
	if !rate.HourlyRate.IsPositive() {
		errs.add("hourly_rate", "must be a positive amount")
	}
	if rate.OvertimeMultiplier.IsNegative() {
		errs.add("overtime_multiplier", "must not be negative")
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func reconcile(payable []Interval, deductions, contributions []Contribution) (HourBreakdown, error) {
	var b HourBreakdown
	for _, iv := range payable {
		b.Total += iv.Minutes()
	}
	for _, d := range deductions {
		b.Sleep += d.Minutes(LabelSleep)
	}

	overtime, ok := find(contributions, "overtime")
	if !ok {
		return b, fmt.Errorf("%w: pipeline has no overtime evaluator", ErrInconsistentBreakdown)
	}
	b.Regular = overtime.Minutes(LabelRegular)
	b.Overtime = overtime.Minutes(LabelOvertime)

	banding, ok := find(contributions, "banding")
	if !ok {
		return b, fmt.Errorf("%w: pipeline has no banding evaluator", ErrInconsistentBreakdown)
	}
	var weekend []span
	if w, ok := find(contributions, "weekend"); ok {
		weekend = w.spans(LabelWeekend)
	}
	b.Bands = Bands{
		NormalTime: totalMinutes(cut(banding.spans(LabelNormalTime), weekend)),
		BeforeWork: totalMinutes(cut(banding.spans(LabelBeforeWork), weekend)),
		AfterWork:  totalMinutes(cut(banding.spans(LabelAfterWork), weekend)),
		Weekend:    totalMinutes(weekend),
	}

	if night, ok := find(contributions, "night"); ok {
		b.Night = night.Minutes(LabelNight)
	}

	return b, b.Check()
}

// =============================================================================
// PRICING
// =============================================================================

func price(b HourBreakdown, rate PayRateProfile) *PayrollCalculation {
	multiplier := rate.Multiplier()
	regular := payFor(rate.HourlyRate, b.Regular)
	overtime := payFor(rate.HourlyRate.Mul(multiplier), b.Overtime)

	return &PayrollCalculation{
		Breakdown:          b,
		HourlyRate:         rate.HourlyRate,
		OvertimeMultiplier: multiplier,
		RegularPay:         regular,
		OvertimePay:        overtime,
		TotalPay:           regular.Add(overtime),
	}
}

// payFor multiplies before dividing so whole-minute amounts stay exact.
func payFor(hourly decimal.Decimal, m Minutes) decimal.Decimal {
	return hourly.Mul(decimal.NewFromInt(int64(m))).Div(minutesPerHour).RoundBank(payPrecision)
}

// =============================================================================
// NOTES
// =============================================================================

func (c *Calculator) notes(entry TimeEntry, ctx EvalContext, b HourBreakdown) []string {
	var notes []string
	if entry.CrossesMidnight() {
		notes = append(notes, "shift crosses midnight into "+entry.Date().AddDate(0, 0, 1).Format("Mon 2006-01-02"))
	}
	if entry.BreakMinutes > 0 {
		notes = append(notes, fmt.Sprintf("%s unpaid break deducted from the %s of the shift",
			Minutes(entry.BreakMinutes), c.config.BreakPolicy))
	}
	if b.Sleep > 0 {
		notes = append(notes, sleepNote(c.config.Sleep, b.Sleep))
	}
	if b.Bands.Weekend > 0 {
		n := "weekend " + b.Bands.Weekend.String()
		if c.config.WeekendOvertime {
			n += " paid at the overtime rate"
		}
		notes = append(notes, n)
	}
	if weekday := b.Overtime - c.weekendOvertime(b); weekday > 0 {
		notes = append(notes, NewOvertimeEvaluator(c.config).note(ctx.PriorMinutes, weekday))
	}
	if b.Night > 0 {
		notes = append(notes, fmt.Sprintf("night %s within %s", b.Night, c.config.NightWindow))
	}
	return notes
}

func (c *Calculator) weekendOvertime(b HourBreakdown) Minutes {
	if c.config.WeekendOvertime {
		return b.Bands.Weekend
	}
	return 0
}
