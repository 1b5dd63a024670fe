/*
rules.go - The rule pipeline

PURPOSE:
  Each business rule is an Evaluator: a pure function from normalized
  intervals to a labeled Contribution. Evaluators never see each other's
  output. The Calculator reconciles their contributions into the two
  partitions of HourBreakdown.

STAGES:
  1. Deductions run over the worked intervals and label minutes that are
     removed from pay entirely (sleep).
  2. Evaluators run over the payable intervals (worked minus deductions)
     and label minutes without removing them (overtime, bands, night,
     weekend). A minute may carry several labels: 23:30 on a Saturday past
     the threshold is overtime, night and weekend at once.

SEE ALSO:
  - sleep.go, overtime.go, bands.go: the evaluators
  - calculator.go: reconciliation
*/
package payroll

import "time"

// Label names a category of minutes in a Contribution.
type Label string

const (
	LabelRegular    Label = "regular"
	LabelOvertime   Label = "overtime"
	LabelNight      Label = "night"
	LabelWeekend    Label = "weekend"
	LabelNormalTime Label = "normal_time"
	LabelBeforeWork Label = "before_work"
	LabelAfterWork  Label = "after_work"
	LabelSleep      Label = "sleep"
)

// EvalContext is the per-calculation input shared by all evaluators.
type EvalContext struct {
	WorkDate time.Time

	// PriorMinutes are regular minutes the employee has already used
	// against the overtime threshold in the current period (the same day
	// on the daily basis, the same Monday-Sunday week on the weekly basis).
	PriorMinutes Minutes
}

// Contribution is one evaluator's labeled output.
type Contribution struct {
	Rule   string
	Labels map[Label][]Interval
}

func newContribution(rule string) Contribution {
	return Contribution{Rule: rule, Labels: make(map[Label][]Interval)}
}

func (c Contribution) add(label Label, workDate time.Time, spans ...span) {
	for _, s := range spans {
		if !s.empty() {
			c.Labels[label] = append(c.Labels[label], intervalsFromSpans(workDate, []span{s})...)
		}
	}
}

// Minutes totals the minutes carrying label.
func (c Contribution) Minutes(label Label) Minutes {
	var n Minutes
	for _, iv := range c.Labels[label] {
		n += iv.Minutes()
	}
	return n
}

func (c Contribution) spans(label Label) []span {
	return spansOf(c.Labels[label])
}

// Evaluator is a single business rule.
type Evaluator interface {
	Name() string
	Evaluate(intervals []Interval, ctx EvalContext) Contribution
}

// Pipeline is the ordered set of evaluators a Calculator runs. Order only
// affects the order of Notes, never the breakdown.
type Pipeline struct {
	Deductions []Evaluator
	Evaluators []Evaluator
}

// NewPipeline builds the standard pipeline from cfg.
func NewPipeline(cfg RuleConfig) Pipeline {
	p := Pipeline{
		Evaluators: []Evaluator{
			NewOvertimeEvaluator(cfg),
			NewBandingEvaluator(cfg),
			NewNightEvaluator(cfg),
			NewWeekendEvaluator(cfg),
		},
	}
	if cfg.Sleep.Enabled {
		p.Deductions = append(p.Deductions, NewSleepEvaluator(cfg.Sleep))
	}
	return p
}

// Run evaluates the deductions over worked, removes what they label, then
// evaluates the remaining rules over the payable intervals.
func (p Pipeline) Run(worked []Interval, ctx EvalContext) (payable []Interval, deductions, contributions []Contribution) {
	payableSpans := spansOf(worked)
	for _, d := range p.Deductions {
		c := d.Evaluate(worked, ctx)
		deductions = append(deductions, c)
		for _, ivs := range c.Labels {
			payableSpans = cut(payableSpans, spansOf(ivs))
		}
	}
	sortSpans(payableSpans)
	payable = intervalsFromSpans(ctx.WorkDate, payableSpans)

	for _, e := range p.Evaluators {
		contributions = append(contributions, e.Evaluate(payable, ctx))
	}
	return payable, deductions, contributions
}

// find returns the first contribution produced by the named rule.
func find(contributions []Contribution, rule string) (Contribution, bool) {
	for _, c := range contributions {
		if c.Rule == rule {
			return c, true
		}
	}
	return Contribution{}, false
}
