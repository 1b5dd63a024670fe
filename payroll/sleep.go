package payroll

import "time"

// SleepEvaluator labels the unpaid sleep-in period of an overnight shift.
//
// Every occurrence of the sleep window is intersected with the worked
// period. An overlap qualifies only if it is one contiguous block of at
// least MinBlock; shorter overlaps are ordinary work. Qualifying minutes are
// taken earliest first up to MaxDeduction.
type SleepEvaluator struct {
	rule SleepRule
}

func NewSleepEvaluator(rule SleepRule) *SleepEvaluator {
	return &SleepEvaluator{rule: rule}
}

func (e *SleepEvaluator) Name() string { return "sleep" }

func (e *SleepEvaluator) Evaluate(intervals []Interval, ctx EvalContext) Contribution {
	c := newContribution(e.Name())
	if !e.rule.Enabled || len(intervals) == 0 {
		return c
	}

	worked := spansOf(intervals)
	sortSpans(worked)
	worked = merge(worked)

	minBlock := int(MinutesOf(e.rule.MinBlock))
	remaining := int(MinutesOf(e.rule.MaxDeduction))
	capped := e.rule.MaxDeduction > 0

	var deducted []span
	for _, block := range clip(worked, windowInstances(e.rule.Window, -1, 2)) {
		if block.length() < minBlock {
			continue
		}
		if capped {
			if remaining <= 0 {
				break
			}
			if block.length() > remaining {
				block.to = block.from + remaining
			}
			remaining -= block.length()
		}
		deducted = append(deducted, block)
	}

	c.add(LabelSleep, ctx.WorkDate, deducted...)
	return c
}

func sleepNote(rule SleepRule, deducted Minutes) string {
	return "sleep deduction " + deducted.String() + " within " + rule.Window.String() +
		" (blocks of at least " + MinutesOf(rule.MinBlock).String() + capNote(rule.MaxDeduction) + ")"
}

func capNote(max time.Duration) string {
	if max <= 0 {
		return ""
	}
	return ", capped at " + MinutesOf(max).String()
}
