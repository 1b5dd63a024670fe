package payroll

// =============================================================================
// BANDING - Before work / normal time / after work, by clock position
// =============================================================================

// BandingEvaluator places each payable minute before, inside or after the
// standard working day of its own calendar day. Weekend minutes are banded
// here too; the Calculator moves them to the weekend band afterwards.
type BandingEvaluator struct {
	day ClockWindow
}

func NewBandingEvaluator(cfg RuleConfig) *BandingEvaluator {
	return &BandingEvaluator{day: cfg.StandardDay}
}

func (e *BandingEvaluator) Name() string { return "banding" }

func (e *BandingEvaluator) Evaluate(intervals []Interval, ctx EvalContext) Contribution {
	c := newContribution(e.Name())
	dayStart, dayEnd := e.day.Start.MinuteOfDay(), e.day.End.MinuteOfDay()

	for _, iv := range intervals {
		base := iv.DayOffset * minutesPerDay
		s := iv.span()
		c.add(LabelBeforeWork, ctx.WorkDate, intersect(s, span{base, base + dayStart}))
		c.add(LabelNormalTime, ctx.WorkDate, intersect(s, span{base + dayStart, base + dayEnd}))
		c.add(LabelAfterWork, ctx.WorkDate, intersect(s, span{base + dayEnd, base + minutesPerDay}))
	}
	return c
}

// =============================================================================
// NIGHT - A label over payable minutes, independent of overtime
// =============================================================================

// NightEvaluator labels payable minutes inside the night window.
type NightEvaluator struct {
	window ClockWindow
}

func NewNightEvaluator(cfg RuleConfig) *NightEvaluator {
	return &NightEvaluator{window: cfg.NightWindow}
}

func (e *NightEvaluator) Name() string { return "night" }

func (e *NightEvaluator) Evaluate(intervals []Interval, ctx EvalContext) Contribution {
	c := newContribution(e.Name())
	c.add(LabelNight, ctx.WorkDate, clip(spansOf(intervals), windowInstances(e.window, -1, 2))...)
	return c
}

// =============================================================================
// WEEKEND
// =============================================================================

// WeekendEvaluator labels payable minutes whose calendar day, after the
// midnight split, is a weekend day. A Friday 22:00 to Saturday 06:00 shift
// has two weekday hours and six weekend hours.
type WeekendEvaluator struct {
	cfg RuleConfig
}

func NewWeekendEvaluator(cfg RuleConfig) *WeekendEvaluator {
	return &WeekendEvaluator{cfg: cfg}
}

func (e *WeekendEvaluator) Name() string { return "weekend" }

func (e *WeekendEvaluator) Evaluate(intervals []Interval, ctx EvalContext) Contribution {
	c := newContribution(e.Name())
	for _, iv := range intervals {
		if e.cfg.IsWeekend(iv.Day) {
			c.add(LabelWeekend, ctx.WorkDate, iv.span())
		}
	}
	return c
}
