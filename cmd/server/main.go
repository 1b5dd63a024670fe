/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the chronoshift payroll and timesheet server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (flags, then CHRONOSHIFT_* environment)
  2. Load and validate the rule configuration (fail fast)
  3. Initialize SQLite store
  4. Build the calculator, workflow service and API handler
  5. Start the deadline monitor
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the deadline monitor
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/chronoshift.db"

  # Run with in-memory database and a custom rule file
  ./server -db=":memory:" -rules=./rules.json

  # JSON logs, deadline Monday 09:00 Oslo time
  CHRONOSHIFT_LOG_FORMAT=json ./server -deadline="monday 09:00" -tz=Europe/Oslo

SEE ALSO:
  - config/config.go: all settings
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/chronoshift/api"
	"github.com/warp/chronoshift/config"
	"github.com/warp/chronoshift/factory"
	"github.com/warp/chronoshift/logging"
	"github.com/warp/chronoshift/payroll"
	"github.com/warp/chronoshift/store/sqlite"
	"github.com/warp/chronoshift/timesheet"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	rules, err := factory.LoadRuleConfig(cfg.RulesPath)
	if err != nil {
		return err
	}
	calc, err := payroll.NewCalculator(rules)
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := &timesheet.Service{
		Store:      store,
		Rates:      store,
		Calculator: calc,
		Deadline:   cfg.Deadline,
		Logger:     logger,
	}

	handler := api.NewHandler(svc, store, logger)
	handler.DB = store
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	monitor := api.NewDeadlineMonitor(svc, logger)
	monitor.CheckInterval = cfg.DeadlineCheck
	monitor.Enabled = cfg.DeadlineCheck > 0
	monitor.Start()
	defer monitor.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", server.Addr,
			"db", cfg.DBPath,
			"overtime_basis", rules.OvertimeBasis,
			"deadline", cfg.Deadline.Weekday.String(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
