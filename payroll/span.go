package payroll

import "sort"

// span is a half-open range [from, to) of minutes measured from midnight at
// the start of the work date. Minute 1440 is midnight at the start of the
// following day.
type span struct {
	from, to int
}

func (s span) length() int { return s.to - s.from }
func (s span) empty() bool { return s.to <= s.from }

func intersect(a, b span) span {
	from, to := a.from, a.to
	if b.from > from {
		from = b.from
	}
	if b.to < to {
		to = b.to
	}
	if to < from {
		to = from
	}
	return span{from, to}
}

// clip keeps the parts of spans that fall inside any window.
func clip(spans, windows []span) []span {
	var out []span
	for _, s := range spans {
		for _, w := range windows {
			if x := intersect(s, w); !x.empty() {
				out = append(out, x)
			}
		}
	}
	sortSpans(out)
	return out
}

// cut removes every cut range from spans.
func cut(spans, cuts []span) []span {
	out := append([]span(nil), spans...)
	for _, c := range cuts {
		next := out[:0:0]
		for _, s := range out {
			if c.to <= s.from || c.from >= s.to {
				next = append(next, s)
				continue
			}
			if s.from < c.from {
				next = append(next, span{s.from, c.from})
			}
			if c.to < s.to {
				next = append(next, span{c.to, s.to})
			}
		}
		out = next
	}
	return out
}

func totalMinutes(spans []span) Minutes {
	var n int
	for _, s := range spans {
		n += s.length()
	}
	return Minutes(n)
}

func sortSpans(spans []span) {
	sort.Slice(spans, func(i, j int) bool { return spans[i].from < spans[j].from })
}

// windowInstances returns each occurrence of w that opens on day offsets
// first through last.
func windowInstances(w ClockWindow, first, last int) []span {
	if w.IsEmpty() {
		return nil
	}
	length := int(w.Length())
	out := make([]span, 0, last-first+1)
	for d := first; d <= last; d++ {
		from := d*minutesPerDay + w.Start.MinuteOfDay()
		out = append(out, span{from, from + length})
	}
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// merge joins overlapping and touching spans. The input must be sorted.
func merge(spans []span) []span {
	var out []span
	for _, s := range spans {
		if n := len(out); n > 0 && s.from <= out[n-1].to {
			if s.to > out[n-1].to {
				out[n-1].to = s.to
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
