/*
Package factory provides JSON to Go rule configuration conversion.

PURPOSE:
  Converts a JSON rule file into a payroll.RuleConfig. Payroll owners can
  change thresholds without a code change; the process refuses to start
  when the file is wrong.

JSON SCHEMA (every field optional; omitted fields keep the default):
  {
    "overtime_basis": "daily",
    "daily_threshold": "8h",
    "weekly_threshold": "42h30m",
    "weekend_overtime": true,
    "standard_day": {"start": "08:00", "end": "17:00"},
    "night_window": {"start": "22:00", "end": "06:00"},
    "weekend_days": ["saturday", "sunday"],
    "sleep": {
      "enabled": true,
      "window": {"start": "23:00", "end": "07:00"},
      "min_block": "4h",
      "max_deduction": "8h"
    },
    "max_shift": "16h",
    "break_policy": "end"
  }

  Durations are Go duration strings ("8h", "42h30m") or a number of minutes.

FAIL-FAST:
  Parse problems and RuleConfig.Validate problems are reported together in
  one *payroll.RuleConfigurationError.

USAGE:
  cfg, err := factory.LoadRuleConfig("rules.json")
  if err != nil {
      log.Fatal(err)
  }
  calc, _ := payroll.NewCalculator(cfg)

SEE ALSO:
  - payroll/config.go: RuleConfig and its defaults
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/warp/chronoshift/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleConfigJSON is the JSON representation of a rule configuration.
type RuleConfigJSON struct {
	OvertimeBasis   string          `json:"overtime_basis,omitempty"`
	DailyThreshold  json.RawMessage `json:"daily_threshold,omitempty"`
	WeeklyThreshold json.RawMessage `json:"weekly_threshold,omitempty"`
	WeekendOvertime *bool           `json:"weekend_overtime,omitempty"`
	StandardDay     *WindowJSON     `json:"standard_day,omitempty"`
	NightWindow     *WindowJSON     `json:"night_window,omitempty"`
	WeekendDays     []string        `json:"weekend_days,omitempty"`
	Sleep           *SleepJSON      `json:"sleep,omitempty"`
	MaxShift        json.RawMessage `json:"max_shift,omitempty"`
	BreakPolicy     string          `json:"break_policy,omitempty"`
}

// WindowJSON is a daily clock window.
type WindowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SleepJSON represents the sleep deduction rule.
type SleepJSON struct {
	Enabled      *bool           `json:"enabled,omitempty"`
	Window       *WindowJSON     `json:"window,omitempty"`
	MinBlock     json.RawMessage `json:"min_block,omitempty"`
	MaxDeduction json.RawMessage `json:"max_deduction,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// LoadRuleConfig reads a JSON rule file. An empty path returns the defaults.
func LoadRuleConfig(path string) (payroll.RuleConfig, error) {
	if path == "" {
		return payroll.DefaultRuleConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return payroll.RuleConfig{}, fmt.Errorf("failed to read rule file: %w", err)
	}
	return ParseRuleConfig(data)
}

// ParseRuleConfig parses JSON rule configuration over the defaults and
// validates the result.
func ParseRuleConfig(data []byte) (payroll.RuleConfig, error) {
	var rj RuleConfigJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rj); err != nil {
		return payroll.RuleConfig{}, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return FromJSON(rj)
}

// FromJSON overlays rj on payroll.DefaultRuleConfig.
func FromJSON(rj RuleConfigJSON) (payroll.RuleConfig, error) {
	cfg := payroll.DefaultRuleConfig()
	p := &problems{}

	if rj.OvertimeBasis != "" {
		cfg.OvertimeBasis = payroll.OvertimeBasis(strings.ToLower(rj.OvertimeBasis))
	}
	p.duration("daily_threshold", rj.DailyThreshold, &cfg.DailyThreshold)
	p.duration("weekly_threshold", rj.WeeklyThreshold, &cfg.WeeklyThreshold)
	if rj.WeekendOvertime != nil {
		cfg.WeekendOvertime = *rj.WeekendOvertime
	}
	p.window("standard_day", rj.StandardDay, &cfg.StandardDay)
	p.window("night_window", rj.NightWindow, &cfg.NightWindow)

	if rj.WeekendDays != nil {
		cfg.WeekendDays = cfg.WeekendDays[:0:0]
		for _, name := range rj.WeekendDays {
			day, err := ParseWeekday(name)
			if err != nil {
				p.add("weekend_days", err.Error())
				continue
			}
			cfg.WeekendDays = append(cfg.WeekendDays, day)
		}
	}

	if s := rj.Sleep; s != nil {
		if s.Enabled != nil {
			cfg.Sleep.Enabled = *s.Enabled
		}
		p.window("sleep.window", s.Window, &cfg.Sleep.Window)
		p.duration("sleep.min_block", s.MinBlock, &cfg.Sleep.MinBlock)
		p.duration("sleep.max_deduction", s.MaxDeduction, &cfg.Sleep.MaxDeduction)
	}

	p.duration("max_shift", rj.MaxShift, &cfg.MaxShift)
	if rj.BreakPolicy != "" {
		cfg.BreakPolicy = payroll.BreakPolicy(strings.ToLower(rj.BreakPolicy))
	}

	if err := cfg.Validate(); err != nil {
		var ce *payroll.RuleConfigurationError
		if !errors.As(err, &ce) {
			return payroll.RuleConfig{}, err
		}
		for _, prob := range ce.Problems {
			if !p.has(prob.Field) {
				p.list = append(p.list, prob)
			}
		}
	}
	if len(p.list) > 0 {
		return payroll.RuleConfig{}, &payroll.RuleConfigurationError{Problems: p.list}
	}
	return cfg, nil
}

// ToJSON renders cfg in the file format, for display.
func ToJSON(cfg payroll.RuleConfig) RuleConfigJSON {
	enabled, weekendOT := cfg.Sleep.Enabled, cfg.WeekendOvertime
	days := make([]string, len(cfg.WeekendDays))
	for i, d := range cfg.WeekendDays {
		days[i] = strings.ToLower(d.String())
	}
	return RuleConfigJSON{
		OvertimeBasis:   string(cfg.OvertimeBasis),
		DailyThreshold:  durationJSON(cfg.DailyThreshold),
		WeeklyThreshold: durationJSON(cfg.WeeklyThreshold),
		WeekendOvertime: &weekendOT,
		StandardDay:     windowJSON(cfg.StandardDay),
		NightWindow:     windowJSON(cfg.NightWindow),
		WeekendDays:     days,
		Sleep: &SleepJSON{
			Enabled:      &enabled,
			Window:       windowJSON(cfg.Sleep.Window),
			MinBlock:     durationJSON(cfg.Sleep.MinBlock),
			MaxDeduction: durationJSON(cfg.Sleep.MaxDeduction),
		},
		MaxShift:    durationJSON(cfg.MaxShift),
		BreakPolicy: string(cfg.BreakPolicy),
	}
}

// =============================================================================
// FIELD PARSERS
// =============================================================================

type problems struct {
	list []payroll.FieldError
}

func (p *problems) add(field, message string) {
	p.list = append(p.list, payroll.FieldError{Field: field, Message: message})
}

func (p *problems) has(field string) bool {
	for _, f := range p.list {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (p *problems) duration(field string, raw json.RawMessage, dst *time.Duration) {
	if len(raw) == 0 {
		return
	}
	d, err := parseDuration(raw)
	if err != nil {
		p.add(field, err.Error())
		return
	}
	*dst = d
}

func (p *problems) window(field string, wj *WindowJSON, dst *payroll.ClockWindow) {
	if wj == nil {
		return
	}
	start, err := payroll.ParseClock(wj.Start)
	if err != nil {
		p.add(field, "start: "+err.Error())
	}
	end, endErr := payroll.ParseClock(wj.End)
	if endErr != nil {
		p.add(field, "end: "+endErr.Error())
	}
	if err == nil && endErr == nil {
		*dst = payroll.ClockWindow{Start: start, End: end}
	}
}

// parseDuration accepts "8h30m" or a bare number of minutes.
func parseDuration(raw json.RawMessage) (time.Duration, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return d, nil
	}
	minutes, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %s", raw)
	}
	return time.Duration(minutes * float64(time.Minute)), nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(name string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return d, nil
}

func durationJSON(d time.Duration) json.RawMessage {
	return json.RawMessage(strconv.Quote(d.String()))
}

func windowJSON(w payroll.ClockWindow) *WindowJSON {
	return &WindowJSON{Start: w.Start.String(), End: w.End.String()}
}
