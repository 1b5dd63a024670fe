/*
Package config loads process configuration from flags and the environment.

PRECEDENCE:
  flag > CHRONOSHIFT_* environment variable > built-in default

SETTINGS:
  -port            CHRONOSHIFT_PORT            8080
  -db              CHRONOSHIFT_DB              chronoshift.db (":memory:" for in-memory)
  -rules           CHRONOSHIFT_RULES           "" (built-in rule defaults)
  -log-format      CHRONOSHIFT_LOG_FORMAT      text | json
  -log-level       CHRONOSHIFT_LOG_LEVEL       info
  -deadline        CHRONOSHIFT_DEADLINE        "tuesday 17:00"
  -deadline-check  CHRONOSHIFT_DEADLINE_CHECK  1h (0 disables the monitor)
  -tz              CHRONOSHIFT_TZ              UTC (deadline time zone)
  -cors-origins    CHRONOSHIFT_CORS_ORIGINS    http://localhost:5173,http://localhost:8080

Every invalid value is reported in one error.
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/warp/chronoshift/factory"
	"github.com/warp/chronoshift/logging"
	"github.com/warp/chronoshift/payroll"
	"github.com/warp/chronoshift/timesheet"
)

const envPrefix = "CHRONOSHIFT_"

// Config is the resolved process configuration.
type Config struct {
	Port           int
	DBPath         string
	RulesPath      string
	LogFormat      logging.Format
	LogLevel       slog.Level
	Deadline       timesheet.DeadlineRule
	DeadlineCheck  time.Duration
	AllowedOrigins []string
}

// Addr is the listen address.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

type setting struct {
	name, env, def, usage string
	value                 *string
}

// Load parses args (without the program name) and falls back to getenv
// for anything not given as a flag.
func Load(args []string, getenv func(string) string) (Config, error) {
	settings := []*setting{
		{name: "port", env: "PORT", def: "8080", usage: "HTTP server port"},
		{name: "db", env: "DB", def: "chronoshift.db", usage: `SQLite database path (":memory:" for in-memory)`},
		{name: "rules", env: "RULES", def: "", usage: "JSON rule configuration file"},
		{name: "log-format", env: "LOG_FORMAT", def: "text", usage: "log format: text or json"},
		{name: "log-level", env: "LOG_LEVEL", def: "info", usage: "log level: debug, info, warn, error"},
		{name: "deadline", env: "DEADLINE", def: "tuesday 17:00", usage: "weekly submission deadline"},
		{name: "deadline-check", env: "DEADLINE_CHECK", def: "1h", usage: "overdue check interval (0 disables)"},
		{name: "tz", env: "TZ", def: "UTC", usage: "time zone of the submission deadline"},
		{name: "cors-origins", env: "CORS_ORIGINS", def: "http://localhost:5173,http://localhost:8080", usage: "comma-separated allowed origins"},
	}

	fs := flag.NewFlagSet("chronoshift", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, s := range settings {
		def := s.def
		if v := getenv(envPrefix + s.env); v != "" {
			def = v
		}
		s.value = fs.String(s.name, def, s.usage)
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	v := make(map[string]string, len(settings))
	for _, s := range settings {
		v[s.name] = strings.TrimSpace(*s.value)
	}

	var errs []error
	fail := func(name string, err error) {
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}

	cfg := Config{DBPath: v["db"], RulesPath: v["rules"]}

	if port, err := strconv.Atoi(v["port"]); err != nil || port < 1 || port > 65535 {
		fail("port", fmt.Errorf("invalid port %q", v["port"]))
	} else {
		cfg.Port = port
	}
	if cfg.DBPath == "" {
		fail("db", errors.New("must not be empty"))
	}

	if format, err := logging.ParseFormat(v["log-format"]); err != nil {
		fail("log-format", err)
	} else {
		cfg.LogFormat = format
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v["log-level"])); err != nil {
		fail("log-level", err)
	}

	loc, err := time.LoadLocation(v["tz"])
	if err != nil {
		fail("tz", err)
		loc = time.UTC
	}
	if rule, err := parseDeadline(v["deadline"], loc); err != nil {
		fail("deadline", err)
	} else {
		cfg.Deadline = rule
	}

	if d, err := time.ParseDuration(v["deadline-check"]); err != nil || d < 0 {
		fail("deadline-check", fmt.Errorf("invalid duration %q", v["deadline-check"]))
	} else {
		cfg.DeadlineCheck = d
	}

	for _, origin := range strings.Split(v["cors-origins"], ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// parseDeadline reads "<weekday> HH:MM".
func parseDeadline(s string, loc *time.Location) (timesheet.DeadlineRule, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return timesheet.DeadlineRule{}, fmt.Errorf("want \"<weekday> HH:MM\", got %q", s)
	}
	day, err := factory.ParseWeekday(fields[0])
	if err != nil {
		return timesheet.DeadlineRule{}, err
	}
	at, err := payroll.ParseClock(fields[1])
	if err != nil {
		return timesheet.DeadlineRule{}, err
	}
	return timesheet.DeadlineRule{Weekday: day, Hour: at.Hour, Minute: at.Minute, Location: loc}, nil
}
