/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Access log, written through the slog handler
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Context logger: request-scoped *slog.Logger tagged with request_id
  5. CORS:       Cross-origin requests for the review UI

ROUTE GROUPS:
  /api/payroll/*      Stateless calculation and validation
  /api/employees/*    Rate profiles
  /api/timesheets/*   Records and the approval workflow
  /api/supervisor/*   Dashboard counters
  /api/export/*       Payroll workbook
  /api/health         Database reachability

SECURITY NOTE:
  No authentication middleware. The actor headers are trusted as given.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/chronoshift/logging"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderActorID, HeaderActorRole},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/payroll", func(r chi.Router) {
			r.Post("/calculate", h.Calculate)
			r.Post("/validate", h.Validate)
			r.Get("/rules", h.GetRules)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
		})

		r.Route("/timesheets", func(r chi.Router) {
			r.Get("/", h.ListTimesheets)
			r.Post("/", h.CreateTimesheet)
			r.Post("/bulk", h.BulkTransition)
			r.Get("/summary", h.WeeklySummaries)

			r.Get("/{id}", h.GetTimesheet)
			r.Put("/{id}", h.UpdateTimesheet)
			r.Post("/{id}/submit", h.SubmitTimesheet)
			r.Post("/{id}/approve", h.ApproveTimesheet)
			r.Post("/{id}/reject", h.RejectTimesheet)
			r.Post("/{id}/notes", h.AddNote)
			r.Post("/{id}/supersede", h.SupersedeTimesheet)
		})

		r.Get("/supervisor/stats", h.SupervisorStats)
		r.Get("/export/timesheets.xlsx", h.ExportTimesheets)
	})

	return r
}

// requestLogger attaches a request-scoped logger to the context so the
// workflow service logs carry the request id.
func requestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With("request_id", middleware.GetReqID(r.Context()))
			next.ServeHTTP(w, r.WithContext(logging.ContextWithLogger(r.Context(), logger)))
		})
	}
}
