/*
handlers.go - HTTP API handlers for payroll calculation and timesheet review

PURPOSE:
  Exposes the calculator and the approval workflow via REST API. Handles
  HTTP request/response and JSON serialization, and delegates to
  payroll.Calculator and timesheet.Service. No business rule lives here.

ENDPOINTS:
  Payroll:
    POST   /api/payroll/calculate           Preview a calculation
    POST   /api/payroll/validate            Field-level validation only
    GET    /api/payroll/rules               Active rule configuration

  Employees:
    GET    /api/employees                   List rate profiles
    POST   /api/employees                   Create or update a rate profile
    GET    /api/employees/{id}              Get one profile

  Timesheets:
    GET    /api/timesheets                  List (employee_id, status, week_ending, from, to)
    POST   /api/timesheets                  Create a Draft
    GET    /api/timesheets/{id}             Get one record
    PUT    /api/timesheets/{id}             Edit a Draft or Rejected record
    POST   /api/timesheets/{id}/submit      Draft -> Submitted
    POST   /api/timesheets/{id}/approve     Submitted -> Approved
    POST   /api/timesheets/{id}/reject      Submitted -> Rejected (notes required)
    POST   /api/timesheets/{id}/notes       Append an audit note
    POST   /api/timesheets/{id}/supersede   Replace a Rejected record with a new Draft
    POST   /api/timesheets/bulk             Approve or reject many records
    GET    /api/timesheets/summary          Weekly summaries

  Supervisor:
    GET    /api/supervisor/stats            Dashboard counters

  Export:
    GET    /api/export/timesheets.xlsx      Payroll workbook

  Health:
    GET    /api/health                      Database reachability (503 when down)

ACTOR:
  Every workflow call reads the acting user from the X-Actor-ID and
  X-Actor-Role headers. Authentication happens upstream.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (every failing field listed), missing notes
  - 401: Missing or malformed actor headers
  - 403: Role not allowed
  - 404: Unknown timesheet or employee
  - 409: Stale version, illegal transition, duplicate id
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/chronoshift/export"
	"github.com/warp/chronoshift/factory"
	"github.com/warp/chronoshift/logging"
	"github.com/warp/chronoshift/payroll"
	"github.com/warp/chronoshift/timesheet"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

var errNoActor = errors.New("missing or invalid actor headers")

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *timesheet.Service
	Employees timesheet.EmployeeStore
	Logger    *slog.Logger

	// DB is checked by Health. Nil reports healthy.
	DB Pinger
}

// Pinger is implemented by stores backed by a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// healthTimeout bounds the database ping in Health.
const healthTimeout = 2 * time.Second

// NewHandler creates a new handler.
func NewHandler(svc *timesheet.Service, employees timesheet.EmployeeStore, logger *slog.Logger) *Handler {
	return &Handler{Service: svc, Employees: employees, Logger: logger}
}

func (h *Handler) rules() payroll.RuleConfig { return h.Service.Calculator.Config() }

func (h *Handler) parseEntry(req TimeEntryRequest) (payroll.TimeEntry, error) {
	return payroll.ParseTimeEntry(req.EmployeeID, req.WorkDate, req.StartTime, req.EndTime,
		req.BreakMinutes, h.rules().MaxShift)
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// Calculate previews a calculation without persisting it.
// POST /api/payroll/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.parseEntry(req.TimeEntryRequest)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var calc *payroll.PayrollCalculation
	if req.HourlyRate == "" {
		calc, err = h.Service.Preview(r.Context(), entry)
	} else {
		var rate payroll.PayRateProfile
		rate, err = parseRate(req.HourlyRate, req.OvertimeMultiplier)
		if err == nil {
			calc, err = h.Service.Calculator.Calculate(payroll.Input{
				Entry:        entry,
				Rate:         rate,
				PriorMinutes: payroll.Minutes(req.PriorMinutes),
			})
		}
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCalculationDTO(calc))
}

// Validate reports every field problem of an entry.
// POST /api/payroll/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req TimeEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	_, err := h.parseEntry(req)
	fields := payroll.FieldErrors(err)
	writeJSON(w, http.StatusOK, ValidationResultDTO{
		Valid:  len(fields) == 0,
		Errors: toFieldErrorDTOs(fields),
	})
}

// GetRules returns the active rule configuration.
// GET /api/payroll/rules
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.ToJSON(h.rules()))
}

func parseRate(hourly, multiplier string) (payroll.PayRateProfile, error) {
	errs := &payroll.ValidationError{}
	rate, err := decimal.NewFromString(hourly)
	if err != nil {
		errs.Fields = append(errs.Fields, payroll.FieldError{Field: "hourly_rate", Message: "must be a decimal number"})
	}
	profile := payroll.NewPayRateProfile(rate)
	if multiplier != "" {
		m, err := decimal.NewFromString(multiplier)
		if err != nil {
			errs.Fields = append(errs.Fields, payroll.FieldError{Field: "overtime_multiplier", Message: "must be a decimal number"})
		}
		profile.OvertimeMultiplier = m
	}
	if len(errs.Fields) > 0 {
		return profile, errs
	}
	return profile, nil
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Employees.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Employees.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates or updates an employee rate profile.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	profile, err := parseRate(req.HourlyRate, req.OvertimeMultiplier)
	var fields []payroll.FieldError
	fields = append(fields, payroll.FieldErrors(err)...)
	if strings.TrimSpace(req.ID) == "" {
		fields = append(fields, payroll.FieldError{Field: "id", Message: "is required"})
	}
	if err == nil && !profile.HourlyRate.IsPositive() {
		fields = append(fields, payroll.FieldError{Field: "hourly_rate", Message: "must be positive"})
	}
	if len(fields) > 0 {
		h.writeServiceError(w, r, &payroll.ValidationError{Fields: fields})
		return
	}

	emp := timesheet.Employee{
		ID:                 req.ID,
		Name:               req.Name,
		HourlyRate:         profile.HourlyRate,
		OvertimeMultiplier: profile.OvertimeMultiplier,
		Active:             req.Active == nil || *req.Active,
	}
	if err := h.Employees.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

// ListTimesheets returns records matching the query filter.
// GET /api/timesheets?employee_id=&status=&week_ending=&from=&to=
func (h *Handler) ListTimesheets(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	records, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	dtos := make([]TimesheetDTO, len(records))
	for i, rec := range records {
		dtos[i] = toTimesheetDTO(rec, h.Service.IsLate(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTimesheet calculates and stores a new Draft.
// POST /api/timesheets
func (h *Handler) CreateTimesheet(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req CreateTimesheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" {
		req.EmployeeID = actor.ID
	}

	entry, err := h.parseEntry(req.TimeEntryRequest)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	rec, err := h.Service.Create(r.Context(), actor, entry, req.Notes)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimesheetDTO(rec, false))
}

// GetTimesheet returns one record.
func (h *Handler) GetTimesheet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(rec, h.Service.IsLate(rec)))
}

// UpdateTimesheet edits a Draft or Rejected record.
// PUT /api/timesheets/{id}
func (h *Handler) UpdateTimesheet(w http.ResponseWriter, r *http.Request) {
	h.replace(w, r, http.StatusOK, h.Service.Edit)
}

// SupersedeTimesheet replaces a Rejected record with a new Draft.
// POST /api/timesheets/{id}/supersede
func (h *Handler) SupersedeTimesheet(w http.ResponseWriter, r *http.Request) {
	h.replace(w, r, http.StatusCreated, h.Service.Supersede)
}

func (h *Handler) replace(w http.ResponseWriter, r *http.Request, status int,
	fn func(ctx context.Context, actor timesheet.Actor, id string, version int64, entry payroll.TimeEntry, notes string) (*timesheet.Record, error),
) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req UpdateTimesheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id := chi.URLParam(r, "id")
	if req.EmployeeID == "" {
		current, err := h.Service.Get(r.Context(), id)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		req.EmployeeID = current.EmployeeID
	}

	entry, err := h.parseEntry(req.TimeEntryRequest)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	rec, err := fn(r.Context(), actor, id, req.Version, entry, req.Notes)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, toTimesheetDTO(rec, h.Service.IsLate(rec)))
}

// SubmitTimesheet moves a Draft to Submitted.
func (h *Handler) SubmitTimesheet(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor timesheet.Actor, id string, req TransitionRequest) (*timesheet.Record, error) {
		return h.Service.Submit(r.Context(), actor, id, req.Version)
	})
}

// ApproveTimesheet moves a Submitted record to Approved.
func (h *Handler) ApproveTimesheet(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor timesheet.Actor, id string, req TransitionRequest) (*timesheet.Record, error) {
		return h.Service.Approve(r.Context(), actor, id, req.Version, req.Notes)
	})
}

// RejectTimesheet moves a Submitted record to Rejected.
func (h *Handler) RejectTimesheet(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(actor timesheet.Actor, id string, req TransitionRequest) (*timesheet.Record, error) {
		return h.Service.Reject(r.Context(), actor, id, req.Version, req.Notes)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	fn func(actor timesheet.Actor, id string, req TransitionRequest) (*timesheet.Record, error),
) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	// The body is optional; submit usually sends none.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := fn(actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(rec, h.Service.IsLate(rec)))
}

// AddNote appends an audit note.
// POST /api/timesheets/{id}/notes
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.Service.AddNote(r.Context(), actor, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(rec, h.Service.IsLate(rec)))
}

// BulkTransition approves or rejects many records. Per-record failures are
// reported in the results with 200; only a malformed request fails as a whole.
// POST /api/timesheets/bulk
func (h *Handler) BulkTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	items := make([]timesheet.BulkItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = timesheet.BulkItem{ID: it.ID, Version: it.Version}
	}

	results, err := h.Service.BulkTransition(r.Context(), actor, items, timesheet.Action(strings.ToLower(req.Action)), req.Notes)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := BulkResponseDTO{Results: make([]BulkResultDTO, len(results))}
	for i, res := range results {
		dto := BulkResultDTO{ID: res.ID, OK: res.OK(), Status: string(res.Status), Version: res.Version}
		if res.Err != nil {
			dto.Error = res.Err.Error()
			dto.Kind = timesheet.ErrorKind(res.Err)
			resp.Failed++
		} else {
			resp.Succeeded++
		}
		resp.Results[i] = dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// READ MODEL HANDLERS
// =============================================================================

// WeeklySummaries groups records by employee and week ending.
// GET /api/timesheets/summary
func (h *Handler) WeeklySummaries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sums, err := h.Service.WeeklySummaries(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	dtos := make([]WeeklySummaryDTO, len(sums))
	for i, s := range sums {
		dtos[i] = toSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SupervisorStats returns the dashboard counters.
// GET /api/supervisor/stats
func (h *Handler) SupervisorStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsDTO{
		Pending:          st.Pending,
		ApprovedThisWeek: st.ApprovedThisWeek,
		RejectedThisWeek: st.RejectedThisWeek,
		OverdueDrafts:    st.OverdueDrafts,
		LateSubmissions:  st.LateSubmissions,
	})
}

// Health reports whether the database answers.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			logging.Resolve(r.Context(), h.Logger, "api").Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, HealthDTO{Status: "unavailable", Details: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthDTO{Status: "ok"})
}

// ExportTimesheets streams the payroll workbook for the query filter.
// GET /api/export/timesheets.xlsx
func (h *Handler) ExportTimesheets(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	records, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	names := map[string]string{}
	if employees, err := h.Employees.ListEmployees(r.Context()); err == nil {
		for _, e := range employees {
			names[e.ID] = e.Name
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="timesheets.xlsx"`)
	if err := export.WriteXLSX(w, records, export.Options{Deadline: h.Service.Deadline, EmployeeNames: names}); err != nil {
		logging.Resolve(r.Context(), h.Logger, "api").Error("export failed", "error", err)
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// actor reads the acting user from the request headers, writing 401 when
// they are missing.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (timesheet.Actor, bool) {
	actor := timesheet.Actor{
		ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
		Role: timesheet.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole)))),
	}
	switch actor.Role {
	case timesheet.RoleEmployee, timesheet.RoleSupervisor, timesheet.RoleAdmin, timesheet.RoleSystem:
	default:
		writeError(w, http.StatusUnauthorized, "Unauthorized", errNoActor)
		return actor, false
	}
	if actor.ID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", errNoActor)
		return actor, false
	}
	return actor, true
}

func parseFilter(r *http.Request) (timesheet.Filter, error) {
	q := r.URL.Query()
	filter := timesheet.Filter{
		EmployeeID: q.Get("employee_id"),
		Status:     timesheet.Status(q.Get("status")),
	}

	errs := &payroll.ValidationError{}
	if filter.Status != "" && !filter.Status.Valid() {
		errs.Fields = append(errs.Fields, payroll.FieldError{Field: "status", Message: fmt.Sprintf("unknown status %q", filter.Status)})
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{
		{"week_ending", &filter.WeekEnding},
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		d, err := time.Parse(dateFormat, v)
		if err != nil {
			errs.Fields = append(errs.Fields, payroll.FieldError{Field: p.name, Message: "must be YYYY-MM-DD"})
			continue
		}
		*p.dst = d
	}

	if len(errs.Fields) > 0 {
		return filter, errs
	}
	return filter, nil
}

// statusFor maps workflow and calculation errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, payroll.ErrValidation):
		return http.StatusBadRequest
	case timesheet.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, timesheet.ErrNotPermitted):
		return http.StatusForbidden
	case timesheet.IsRetryable(err),
		errors.Is(err, timesheet.ErrInvalidTransition),
		errors.Is(err, timesheet.ErrDuplicateRecord):
		return http.StatusConflict
	case timesheet.IsClientError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{
		Error:   http.StatusText(status),
		Details: err.Error(),
		Kind:    timesheet.ErrorKind(err),
	}
	if fields := payroll.FieldErrors(err); len(fields) > 0 {
		resp.Fields = toFieldErrorDTOs(fields)
	}
	if status == http.StatusInternalServerError {
		logging.Resolve(r.Context(), h.Logger, "api").Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
