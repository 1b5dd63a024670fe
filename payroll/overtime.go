package payroll

import "fmt"

// OvertimeEvaluator splits payable minutes into regular and overtime.
//
// Minutes are consumed in time order. The first (threshold - PriorMinutes)
// minutes are regular and the rest are overtime. With WeekendOvertime set,
// every minute on a weekend day is overtime and does not use up any of the
// threshold.
type OvertimeEvaluator struct {
	basis           OvertimeBasis
	threshold       Minutes
	weekendOvertime bool
	cfg             RuleConfig
}

func NewOvertimeEvaluator(cfg RuleConfig) *OvertimeEvaluator {
	return &OvertimeEvaluator{
		basis:           cfg.OvertimeBasis,
		threshold:       MinutesOf(cfg.Threshold()),
		weekendOvertime: cfg.WeekendOvertime,
		cfg:             cfg,
	}
}

func (e *OvertimeEvaluator) Name() string { return "overtime" }

func (e *OvertimeEvaluator) Evaluate(intervals []Interval, ctx EvalContext) Contribution {
	c := newContribution(e.Name())

	allowance := int(e.threshold - ctx.PriorMinutes)
	if allowance < 0 {
		allowance = 0
	}

	for _, iv := range intervals {
		s := iv.span()
		if e.weekendOvertime && e.cfg.IsWeekend(iv.Day) {
			c.add(LabelOvertime, ctx.WorkDate, s)
			continue
		}
		take := s.length()
		if take > allowance {
			take = allowance
		}
		allowance -= take
		c.add(LabelRegular, ctx.WorkDate, span{s.from, s.from + take})
		c.add(LabelOvertime, ctx.WorkDate, span{s.from + take, s.to})
	}
	return c
}

func (e *OvertimeEvaluator) note(prior, overtime Minutes) string {
	if prior > 0 {
		return fmt.Sprintf("overtime %s beyond the %s %s threshold (%s already worked this period)",
			overtime, e.threshold, e.basis, prior)
	}
	return fmt.Sprintf("overtime %s beyond the %s %s threshold", overtime, e.threshold, e.basis)
}
