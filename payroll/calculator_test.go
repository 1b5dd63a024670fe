package payroll_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/chronoshift/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	wednesday = time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	friday    = time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
	saturday  = time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
)

func entry(date time.Time, start, end string, breakMinutes int) payroll.TimeEntry {
	return payroll.TimeEntry{
		EmployeeID:   "emp-7",
		WorkDate:     date,
		Start:        payroll.MustParseClock(start),
		End:          payroll.MustParseClock(end),
		BreakMinutes: breakMinutes,
	}
}

func rate(s string) payroll.PayRateProfile {
	return payroll.NewPayRateProfile(decimal.RequireFromString(s))
}

func noSleep() payroll.RuleConfig {
	cfg := payroll.DefaultRuleConfig()
	cfg.Sleep.Enabled = false
	return cfg
}

func hours(h float64) payroll.Minutes {
	return payroll.Minutes(h * 60)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "%s: want %s, got %s", msg, want, got)
}

func calculate(t *testing.T, e payroll.TimeEntry, cfg payroll.RuleConfig) *payroll.PayrollCalculation {
	t.Helper()
	calc, err := payroll.Calculate(e, rate("20.00"), cfg)
	require.NoError(t, err)
	require.NoError(t, calc.Breakdown.Check())
	return calc
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestCalculate_StandardWeekdayWithOvertime(t *testing.T) {
	// GIVEN: 08:00-17:00 on a Wednesday, 30 min break, 28.50/h, 8h daily threshold
	// WHEN: Calculating
	// THEN: 8.5h total, 0.5h overtime, 228.00 + 21.38 = 249.38

	calc, err := payroll.Calculate(entry(wednesday, "08:00", "17:00", 30), rate("28.50"), payroll.DefaultRuleConfig())
	require.NoError(t, err)

	b := calc.Breakdown
	assert.Equal(t, hours(8.5), b.Total)
	assert.Equal(t, hours(8), b.Regular)
	assert.Equal(t, hours(0.5), b.Overtime)
	assert.Equal(t, hours(8.5), b.Bands.NormalTime)
	assert.Equal(t, payroll.Minutes(0), b.Night)
	assert.Equal(t, payroll.Minutes(0), b.Sleep)
	assert.True(t, b.Total.Hours().Equal(decimal.RequireFromString("8.5")))

	assertMoney(t, "228.00", calc.RegularPay, "regular pay")
	assertMoney(t, "21.38", calc.OvertimePay, "overtime pay")
	assertMoney(t, "249.38", calc.TotalPay, "total pay")
	assertMoney(t, "1.5", calc.OvertimeMultiplier, "multiplier")
}

func TestCalculate_OvernightWithQualifyingSleepBlock(t *testing.T) {
	// GIVEN: 22:00-08:00 next day, 30 min break, a 4h sleep window 02:00-06:00
	// WHEN: Calculating
	// THEN: 9.5h worked less 4h sleep = 5.5h payable, all regular

	cfg := payroll.DefaultRuleConfig()
	cfg.Sleep.Window = payroll.Window("02:00", "06:00")

	calc, err := payroll.Calculate(entry(wednesday, "22:00", "08:00", 30), rate("20.00"), cfg)
	require.NoError(t, err)

	b := calc.Breakdown
	assert.Equal(t, hours(4), b.Sleep)
	assert.Equal(t, hours(5.5), b.Total)
	assert.Equal(t, hours(5.5), b.Regular)
	assert.Equal(t, payroll.Minutes(0), b.Overtime)

	// Payable: 22:00-02:00 and 06:00-07:30
	assert.Equal(t, hours(4), b.Night)
	assert.Equal(t, hours(2), b.Bands.AfterWork)
	assert.Equal(t, hours(3.5), b.Bands.BeforeWork)

	assertMoney(t, "110.00", calc.TotalPay, "pay only on the payable hours")
}

func TestCalculate_DefaultSleepRuleIsCapped(t *testing.T) {
	// GIVEN: 22:00-08:00 with the default 23:00-07:00 sleep window, 8h cap
	// WHEN: Calculating
	// THEN: 8h sleep deducted, leaving 22:00-23:00 and 07:00-07:30

	calc := calculate(t, entry(wednesday, "22:00", "08:00", 30), payroll.DefaultRuleConfig())

	assert.Equal(t, hours(8), calc.Breakdown.Sleep)
	assert.Equal(t, hours(1.5), calc.Breakdown.Total)
	assert.Equal(t, calc.Breakdown.Total+calc.Breakdown.Sleep, entry(wednesday, "22:00", "08:00", 30).NetMinutes())
}

func TestCalculate_SleepCapKeepsEarliestMinutes(t *testing.T) {
	// GIVEN: 20:00-10:00 (14h), sleep window 23:00-07:00 capped at 6h
	// WHEN: Calculating
	// THEN: 23:00-05:00 is deducted; 05:00-07:00 stays payable

	cfg := payroll.DefaultRuleConfig()
	cfg.Sleep.MaxDeduction = 6 * time.Hour

	calc := calculate(t, entry(wednesday, "20:00", "10:00", 0), cfg)

	assert.Equal(t, hours(6), calc.Breakdown.Sleep)
	assert.Equal(t, hours(8), calc.Breakdown.Total)
	// Night 22:00-06:00 minus sleep 23:00-05:00 = 22:00-23:00 and 05:00-06:00
	assert.Equal(t, hours(2), calc.Breakdown.Night)
}

func TestCalculate_ShortNightOverlapIsNotSleep(t *testing.T) {
	// GIVEN: 05:00-13:00 overlaps the sleep window for only 2h (< 4h minimum)
	// WHEN: Calculating
	// THEN: Nothing is deducted

	calc := calculate(t, entry(wednesday, "05:00", "13:00", 0), payroll.DefaultRuleConfig())

	assert.Equal(t, payroll.Minutes(0), calc.Breakdown.Sleep)
	assert.Equal(t, hours(8), calc.Breakdown.Total)
	assert.Equal(t, hours(3), calc.Breakdown.Bands.BeforeWork)
	assert.Equal(t, hours(5), calc.Breakdown.Bands.NormalTime)
	assert.Equal(t, hours(1), calc.Breakdown.Night)
}

// =============================================================================
// MIDNIGHT CROSSING
// =============================================================================

func TestNormalize_MidnightCrossingSplitsIntoTwoDays(t *testing.T) {
	// GIVEN: 22:00-06:30 on Wednesday with a 30 min break
	// WHEN: Normalizing with the default break policy
	// THEN: Wednesday 22:00-24:00 and Thursday 00:00-06:00

	intervals, err := payroll.Normalize(entry(wednesday, "22:00", "06:30", 30), payroll.DefaultRuleConfig())
	require.NoError(t, err)
	require.Len(t, intervals, 2)

	assert.Equal(t, wednesday, intervals[0].Day)
	assert.Equal(t, 22*60, intervals[0].Start)
	assert.Equal(t, 24*60, intervals[0].End)

	assert.Equal(t, wednesday.AddDate(0, 0, 1), intervals[1].Day)
	assert.Equal(t, 0, intervals[1].Start)
	assert.Equal(t, 6*60, intervals[1].End)
}

func TestCalculate_MidnightCrossingMatchesDayShiftTotal(t *testing.T) {
	// GIVEN: An overnight shift and a day shift with the same 8h net duration
	// WHEN: Calculating both without sleep deduction
	// THEN: Totals and the regular/overtime split are identical

	overnight := calculate(t, entry(wednesday, "22:00", "06:30", 30), noSleep())
	day := calculate(t, entry(wednesday, "08:00", "16:30", 30), noSleep())

	assert.Equal(t, day.Breakdown.Total, overnight.Breakdown.Total)
	assert.Equal(t, day.Breakdown.Regular, overnight.Breakdown.Regular)
	assert.Equal(t, day.Breakdown.Overtime, overnight.Breakdown.Overtime)
	assert.True(t, day.TotalPay.Equal(overnight.TotalPay))

	// Banding differs by clock position
	assert.Equal(t, hours(2), overnight.Breakdown.Bands.AfterWork)
	assert.Equal(t, hours(6), overnight.Breakdown.Bands.BeforeWork)
	assert.Equal(t, hours(8), overnight.Breakdown.Night)
}

func TestCalculate_FridayNightIntoSaturday(t *testing.T) {
	// GIVEN: Friday 22:00 to Saturday 06:00, no sleep rule
	// WHEN: Calculating with weekend overtime
	// THEN: Friday's 2h are regular after-work, Saturday's 6h are weekend overtime

	calc := calculate(t, entry(friday, "22:00", "06:00", 0), noSleep())
	b := calc.Breakdown

	assert.Equal(t, hours(8), b.Total)
	assert.Equal(t, hours(6), b.Bands.Weekend)
	assert.Equal(t, hours(2), b.Bands.AfterWork)
	assert.Equal(t, payroll.Minutes(0), b.Bands.BeforeWork)
	assert.Equal(t, hours(2), b.Regular)
	assert.Equal(t, hours(6), b.Overtime)
	assert.Equal(t, hours(8), b.Night, "night is independent of overtime and weekend")
}

// =============================================================================
// BREAK POLICY
// =============================================================================

func TestCalculate_BreakPolicyIsDeterministic(t *testing.T) {
	// GIVEN: 22:00-06:30 with 30 min break
	// WHEN: Deducting the break from the end vs the start
	// THEN: Totals match; banding and night shift by the 30 minutes moved

	fromEnd := noSleep()
	fromStart := noSleep()
	fromStart.BreakPolicy = payroll.BreakFromStart

	e := entry(wednesday, "22:00", "06:30", 30)
	endCalc := calculate(t, e, fromEnd)
	startCalc := calculate(t, e, fromStart)

	assert.Equal(t, endCalc.Breakdown.Total, startCalc.Breakdown.Total)

	// End: 22:00-06:00
	assert.Equal(t, hours(2), endCalc.Breakdown.Bands.AfterWork)
	assert.Equal(t, hours(6), endCalc.Breakdown.Bands.BeforeWork)
	assert.Equal(t, hours(8), endCalc.Breakdown.Night)

	// Start: 22:30-06:30
	assert.Equal(t, hours(1.5), startCalc.Breakdown.Bands.AfterWork)
	assert.Equal(t, hours(6.5), startCalc.Breakdown.Bands.BeforeWork)
	assert.Equal(t, hours(7.5), startCalc.Breakdown.Night)
}

// =============================================================================
// OVERTIME
// =============================================================================

func TestCalculate_ExactlyAtThresholdHasNoOvertime(t *testing.T) {
	calc := calculate(t, entry(wednesday, "08:00", "16:00", 0), payroll.DefaultRuleConfig())

	assert.Equal(t, hours(8), calc.Breakdown.Regular)
	assert.Equal(t, payroll.Minutes(0), calc.Breakdown.Overtime)
}

func TestCalculate_OneMinuteBeyondThreshold(t *testing.T) {
	calc := calculate(t, entry(wednesday, "08:00", "16:01", 0), payroll.DefaultRuleConfig())

	assert.Equal(t, hours(8), calc.Breakdown.Regular)
	assert.Equal(t, payroll.Minutes(1), calc.Breakdown.Overtime)
}

func TestCalculate_WeekendIsAllOvertime(t *testing.T) {
	// GIVEN: Saturday 09:00-17:00
	// WHEN: Calculating with WeekendOvertime
	// THEN: Every minute is weekend-banded overtime

	calc := calculate(t, entry(saturday, "09:00", "17:00", 0), payroll.DefaultRuleConfig())
	b := calc.Breakdown

	assert.Equal(t, hours(8), b.Overtime)
	assert.Equal(t, payroll.Minutes(0), b.Regular)
	assert.Equal(t, hours(8), b.Bands.Weekend)
	assert.Equal(t, payroll.Minutes(0), b.Bands.NormalTime)
	assertMoney(t, "240.00", calc.TotalPay, "8h at 30.00")
}

func TestCalculate_WeekendWithoutOvertimeUsesThreshold(t *testing.T) {
	cfg := payroll.DefaultRuleConfig()
	cfg.WeekendOvertime = false

	calc := calculate(t, entry(saturday, "08:00", "17:00", 0), cfg)

	assert.Equal(t, hours(8), calc.Breakdown.Regular)
	assert.Equal(t, hours(1), calc.Breakdown.Overtime)
	assert.Equal(t, hours(9), calc.Breakdown.Bands.Weekend)
}

func TestCalculator_WeeklyBasisUsesPriorMinutes(t *testing.T) {
	// GIVEN: Weekly basis (42.5h) with 40h already worked this week
	// WHEN: Calculating an 8h Wednesday shift
	// THEN: 2.5h regular, 5.5h overtime

	cfg := payroll.DefaultRuleConfig()
	cfg.OvertimeBasis = payroll.OvertimeWeekly
	calc, err := payroll.NewCalculator(cfg)
	require.NoError(t, err)

	result, err := calc.Calculate(payroll.Input{
		Entry:        entry(wednesday, "08:00", "16:00", 0),
		Rate:         rate("10.00"),
		PriorMinutes: hours(40),
	})
	require.NoError(t, err)

	assert.Equal(t, hours(2.5), result.Breakdown.Regular)
	assert.Equal(t, hours(5.5), result.Breakdown.Overtime)
	assertMoney(t, "25.00", result.RegularPay, "regular")
	assertMoney(t, "82.50", result.OvertimePay, "overtime")
}

// =============================================================================
// INVARIANTS
// =============================================================================

func TestCalculate_PartitionsHoldAcrossShifts(t *testing.T) {
	// GIVEN: Every hourly start, a spread of durations and both break policies
	// WHEN: Calculating
	// THEN: Both partitions sum to Total and pay sums exactly

	for _, policy := range []payroll.BreakPolicy{payroll.BreakFromEnd, payroll.BreakFromStart} {
		cfg := payroll.DefaultRuleConfig()
		cfg.BreakPolicy = policy
		for _, day := range []time.Time{wednesday, friday, saturday} {
			for startHour := 0; startHour < 24; startHour++ {
				for _, length := range []int{61, 240, 495, 600, 960} {
					start := payroll.Clock(startHour, 15)
					endMinute := (start.MinuteOfDay() + length) % (24 * 60)
					e := payroll.TimeEntry{
						EmployeeID:   "emp-1",
						WorkDate:     day,
						Start:        start,
						End:          payroll.Clock(endMinute/60, endMinute%60),
						BreakMinutes: 45,
					}

					calc, err := payroll.Calculate(e, rate("17.33"), cfg)
					require.NoError(t, err, "%s %s +%d", day.Weekday(), start, length)

					b := calc.Breakdown
					assert.NoError(t, b.Check())
					assert.Equal(t, b.Total, b.Regular+b.Overtime)
					assert.Equal(t, b.Total, b.Bands.Sum())
					assert.Equal(t, e.NetMinutes(), b.Total+b.Sleep)
					assert.True(t, calc.TotalPay.Equal(calc.RegularPay.Add(calc.OvertimePay)))
				}
			}
		}
	}
}

func TestNewPipeline_AlwaysCarriesOvertimeAndBanding(t *testing.T) {
	// GIVEN: Every supported basis, with and without sleep
	// WHEN: Building the pipeline a Calculator uses
	// THEN: The overtime and banding evaluators are present, so reconciliation
	//       never lacks a contribution

	weekly := noSleep()
	weekly.OvertimeBasis = payroll.OvertimeWeekly

	for name, cfg := range map[string]payroll.RuleConfig{
		"default":  payroll.DefaultRuleConfig(),
		"no sleep": noSleep(),
		"weekly":   weekly,
	} {
		t.Run(name, func(t *testing.T) {
			var names []string
			for _, e := range payroll.NewPipeline(cfg).Evaluators {
				names = append(names, e.Name())
			}
			assert.Contains(t, names, "overtime")
			assert.Contains(t, names, "banding")

			calc, err := payroll.NewCalculator(cfg)
			require.NoError(t, err)
			_, err = calc.Calculate(payroll.Input{Entry: entry(wednesday, "22:00", "07:00", 0), Rate: rate("20.00")})
			require.NoError(t, err)
		})
	}
}

func TestCalculate_IsDeterministic(t *testing.T) {
	e := entry(friday, "19:45", "09:10", 25)

	first, err := payroll.Calculate(e, rate("31.17"), payroll.DefaultRuleConfig())
	require.NoError(t, err)
	second, err := payroll.Calculate(e, rate("31.17"), payroll.DefaultRuleConfig())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCalculate_NotesDescribeAppliedRules(t *testing.T) {
	calc := calculate(t, entry(wednesday, "22:00", "08:00", 30), payroll.DefaultRuleConfig())

	require.NotEmpty(t, calc.Notes)
	assert.Contains(t, calc.Notes[0], "crosses midnight")
	assert.Contains(t, calc.Notes[1], "30m unpaid break deducted from the end")
	assert.Contains(t, calc.Notes[2], "sleep deduction 8h00m")
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestCalculate_ReportsEveryInvalidField(t *testing.T) {
	// GIVEN: An entry where every field is wrong and a zero rate
	// WHEN: Calculating
	// THEN: One ValidationError listing all of them

	bad := payroll.TimeEntry{
		Start:        payroll.Clock(25, 0),
		End:          payroll.Clock(8, 70),
		BreakMinutes: -5,
	}

	_, err := payroll.Calculate(bad, payroll.PayRateProfile{}, payroll.DefaultRuleConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, payroll.ErrValidation))

	var ve *payroll.ValidationError
	require.ErrorAs(t, err, &ve)
	for _, field := range []string{"employee_id", "work_date", "start_time", "end_time", "break_minutes", "hourly_rate"} {
		assert.True(t, ve.Has(field), "missing %s in %v", field, ve.Fields)
	}
}

func TestValidateTimeEntry_BreakLongerThanShift(t *testing.T) {
	err := payroll.ValidateTimeEntry(entry(wednesday, "08:00", "09:00", 90))

	var ve *payroll.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"break_minutes"}, fieldNames(ve.Fields))
}

func TestValidateTimeEntry_ShiftLongerThanMaximum(t *testing.T) {
	err := payroll.ValidateTimeEntry(entry(wednesday, "06:00", "23:00", 0))

	var ve *payroll.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("end_time"))
}

func TestValidateTimeEntry_BreakEqualToShiftIsAllowed(t *testing.T) {
	assert.NoError(t, payroll.ValidateTimeEntry(entry(wednesday, "08:00", "09:00", 60)))
}

func TestParseTimeEntry_CollectsParseAndFieldErrors(t *testing.T) {
	_, err := payroll.ParseTimeEntry("", "2025-13-01", "8:00", "17:5", -1, 16*time.Hour)

	assert.ElementsMatch(t,
		[]string{"work_date", "end_time", "employee_id", "break_minutes"},
		fieldNames(payroll.FieldErrors(err)))
}

func TestParseTimeEntry_Valid(t *testing.T) {
	e, err := payroll.ParseTimeEntry("emp-7", "2025-03-12", "8:00", "17:00", 30, 16*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, entry(wednesday, "08:00", "17:00", 30), e)
}

func fieldNames(fields []payroll.FieldError) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Field
	}
	return names
}
