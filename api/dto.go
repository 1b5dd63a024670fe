/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the payroll and timesheet models from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  Dates are "2006-01-02", clock times "HH:MM", timestamps RFC3339.
  Money and rates are decimal strings with two places ("249.38") so no
  float ever touches a pay amount. Durations are whole minutes.

VALIDATION:
  Validation is done by payroll.ParseTimeEntry and the workflow service,
  not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: RuleConfigJSON, returned by GET /api/payroll/rules
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/chronoshift/payroll"
	"github.com/warp/chronoshift/timesheet"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// TimeEntryRequest is a reported shift.
type TimeEntryRequest struct {
	EmployeeID   string `json:"employee_id"`
	WorkDate     string `json:"work_date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	BreakMinutes int    `json:"break_minutes"`
}

// CalculateRequest previews a calculation. When HourlyRate is empty the
// employee's stored profile and earlier shifts are used.
type CalculateRequest struct {
	TimeEntryRequest
	HourlyRate         string `json:"hourly_rate,omitempty"`
	OvertimeMultiplier string `json:"overtime_multiplier,omitempty"`
	PriorMinutes       int64  `json:"prior_minutes,omitempty"`
}

// CreateTimesheetRequest creates a Draft.
type CreateTimesheetRequest struct {
	TimeEntryRequest
	Notes string `json:"notes,omitempty"`
}

// UpdateTimesheetRequest edits or supersedes a record.
type UpdateTimesheetRequest struct {
	TimeEntryRequest
	Version int64  `json:"version"`
	Notes   string `json:"notes,omitempty"`
}

// TransitionRequest drives submit, approve and reject.
type TransitionRequest struct {
	Version int64  `json:"version,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// NoteRequest appends an audit note.
type NoteRequest struct {
	Text string `json:"text"`
}

// BulkRequest approves or rejects many records.
type BulkRequest struct {
	Action string            `json:"action"`
	Notes  string            `json:"notes,omitempty"`
	Items  []BulkItemRequest `json:"items"`
}

type BulkItemRequest struct {
	ID      string `json:"id"`
	Version int64  `json:"version,omitempty"`
}

// CreateEmployeeRequest creates or updates an employee rate profile.
type CreateEmployeeRequest struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	HourlyRate         string `json:"hourly_rate"`
	OvertimeMultiplier string `json:"overtime_multiplier,omitempty"`
	Active             *bool  `json:"active,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Details string          `json:"details,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Fields  []FieldErrorDTO `json:"fields,omitempty"`
}

type FieldErrorDTO struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResultDTO is the response of POST /api/payroll/validate.
type ValidationResultDTO struct {
	Valid  bool            `json:"valid"`
	Errors []FieldErrorDTO `json:"errors"`
}

type BandsDTO struct {
	NormalTime int64 `json:"normal_time_minutes"`
	BeforeWork int64 `json:"before_work_minutes"`
	AfterWork  int64 `json:"after_work_minutes"`
	Weekend    int64 `json:"weekend_minutes"`
}

// CalculationDTO is a PayrollCalculation on the wire.
type CalculationDTO struct {
	TotalMinutes    int64    `json:"total_minutes"`
	RegularMinutes  int64    `json:"regular_minutes"`
	OvertimeMinutes int64    `json:"overtime_minutes"`
	NightMinutes    int64    `json:"night_minutes"`
	SleepMinutes    int64    `json:"sleep_minutes"`
	Bands           BandsDTO `json:"bands"`
	TotalHours      string   `json:"total_hours"`

	HourlyRate         string   `json:"hourly_rate"`
	OvertimeMultiplier string   `json:"overtime_multiplier"`
	RegularPay         string   `json:"regular_pay"`
	OvertimePay        string   `json:"overtime_pay"`
	TotalPay           string   `json:"total_pay"`
	Notes              []string `json:"notes"`
}

type TransitionDTO struct {
	Action  string `json:"action"`
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	At      string `json:"at"`
	Notes   string `json:"notes,omitempty"`
}

type AuditNoteDTO struct {
	AuthorID string `json:"author_id"`
	At       string `json:"at"`
	Text     string `json:"text"`
}

// TimesheetDTO is a Record on the wire.
type TimesheetDTO struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employee_id"`
	WorkDate        string          `json:"work_date"`
	WeekEnding      string          `json:"week_ending"`
	StartTime       string          `json:"start_time"`
	EndTime         string          `json:"end_time"`
	BreakMinutes    int             `json:"break_minutes"`
	CrossesMidnight bool            `json:"crosses_midnight"`
	Status          string          `json:"status"`
	Version         int64           `json:"version"`
	Notes           string          `json:"notes,omitempty"`
	Late            bool            `json:"late"`
	Calculation     *CalculationDTO `json:"calculation,omitempty"`

	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	SubmittedAt *string `json:"submitted_at,omitempty"`

	ApprovedBy     *string `json:"approved_by,omitempty"`
	ApprovedAt     *string `json:"approved_at,omitempty"`
	ApprovalNotes  string  `json:"approval_notes,omitempty"`
	RejectedBy     *string `json:"rejected_by,omitempty"`
	RejectedAt     *string `json:"rejected_at,omitempty"`
	RejectionNotes string  `json:"rejection_notes,omitempty"`

	Supersedes   string `json:"supersedes,omitempty"`
	SupersededBy string `json:"superseded_by,omitempty"`

	AuditNotes []AuditNoteDTO  `json:"audit_notes"`
	History    []TransitionDTO `json:"history"`
}

type BulkResultDTO struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Status  string `json:"status,omitempty"`
	Version int64  `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

type BulkResponseDTO struct {
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Results   []BulkResultDTO `json:"results"`
}

type EmployeeDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	HourlyRate         string `json:"hourly_rate"`
	OvertimeMultiplier string `json:"overtime_multiplier"`
	Active             bool   `json:"active"`
}

// WeeklySummaryDTO groups one employee's week.
type WeeklySummaryDTO struct {
	EmployeeID      string         `json:"employee_id"`
	WeekEnding      string         `json:"week_ending"`
	Records         int            `json:"records"`
	Late            int            `json:"late"`
	ByStatus        map[string]int `json:"by_status"`
	TotalMinutes    int64          `json:"total_minutes"`
	RegularMinutes  int64          `json:"regular_minutes"`
	OvertimeMinutes int64          `json:"overtime_minutes"`
	NightMinutes    int64          `json:"night_minutes"`
	SleepMinutes    int64          `json:"sleep_minutes"`
	RegularPay      string         `json:"regular_pay"`
	OvertimePay     string         `json:"overtime_pay"`
	TotalPay        string         `json:"total_pay"`
}

type StatsDTO struct {
	Pending          int `json:"pending"`
	ApprovedThisWeek int `json:"approved_this_week"`
	RejectedThisWeek int `json:"rejected_this_week"`
	OverdueDrafts    int `json:"overdue_drafts"`
	LateSubmissions  int `json:"late_submissions"`
}

type HealthDTO struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

const dateFormat = "2006-01-02"

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func stampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := stamp(*t)
	return &s
}

func toCalculationDTO(c *payroll.PayrollCalculation) *CalculationDTO {
	if c == nil {
		return nil
	}
	b := c.Breakdown
	notes := c.Notes
	if notes == nil {
		notes = []string{}
	}
	return &CalculationDTO{
		TotalMinutes:    int64(b.Total),
		RegularMinutes:  int64(b.Regular),
		OvertimeMinutes: int64(b.Overtime),
		NightMinutes:    int64(b.Night),
		SleepMinutes:    int64(b.Sleep),
		Bands: BandsDTO{
			NormalTime: int64(b.Bands.NormalTime),
			BeforeWork: int64(b.Bands.BeforeWork),
			AfterWork:  int64(b.Bands.AfterWork),
			Weekend:    int64(b.Bands.Weekend),
		},
		TotalHours:         b.Total.Hours().StringFixed(2),
		HourlyRate:         money(c.HourlyRate),
		OvertimeMultiplier: c.OvertimeMultiplier.String(),
		RegularPay:         money(c.RegularPay),
		OvertimePay:        money(c.OvertimePay),
		TotalPay:           money(c.TotalPay),
		Notes:              notes,
	}
}

func toTimesheetDTO(rec *timesheet.Record, late bool) TimesheetDTO {
	dto := TimesheetDTO{
		ID:              rec.ID,
		EmployeeID:      rec.EmployeeID,
		WorkDate:        rec.Entry.Date().Format(dateFormat),
		WeekEnding:      rec.WeekEnding().Format(dateFormat),
		StartTime:       rec.Entry.Start.String(),
		EndTime:         rec.Entry.End.String(),
		BreakMinutes:    rec.Entry.BreakMinutes,
		CrossesMidnight: rec.Entry.CrossesMidnight(),
		Status:          string(rec.Status),
		Version:         rec.Version,
		Notes:           rec.Notes,
		Late:            late,
		Calculation:     toCalculationDTO(rec.Calculation),
		CreatedBy:       rec.CreatedBy,
		CreatedAt:       stamp(rec.CreatedAt),
		UpdatedAt:       stamp(rec.UpdatedAt),
		SubmittedAt:     stampPtr(rec.SubmittedAt),
		ApprovedBy:      rec.ApprovedBy,
		ApprovedAt:      stampPtr(rec.ApprovedAt),
		ApprovalNotes:   rec.ApprovalNotes,
		RejectedBy:      rec.RejectedBy,
		RejectedAt:      stampPtr(rec.RejectedAt),
		RejectionNotes:  rec.RejectionNotes,
		Supersedes:      rec.Supersedes,
		SupersededBy:    rec.SupersededBy,
		AuditNotes:      make([]AuditNoteDTO, len(rec.AuditNotes)),
		History:         make([]TransitionDTO, len(rec.History)),
	}
	for i, n := range rec.AuditNotes {
		dto.AuditNotes[i] = AuditNoteDTO{AuthorID: n.AuthorID, At: stamp(n.At), Text: n.Text}
	}
	for i, t := range rec.History {
		dto.History[i] = TransitionDTO{
			Action: string(t.Action), From: string(t.From), To: string(t.To),
			ActorID: t.ActorID, Role: string(t.Role), At: stamp(t.At), Notes: t.Notes,
		}
	}
	return dto
}

func toEmployeeDTO(e timesheet.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:                 e.ID,
		Name:               e.Name,
		HourlyRate:         money(e.HourlyRate),
		OvertimeMultiplier: e.Profile().Multiplier().String(),
		Active:             e.Active,
	}
}

func toSummaryDTO(s timesheet.WeeklySummary) WeeklySummaryDTO {
	byStatus := make(map[string]int, len(s.ByStatus))
	for st, n := range s.ByStatus {
		byStatus[string(st)] = n
	}
	return WeeklySummaryDTO{
		EmployeeID:      s.EmployeeID,
		WeekEnding:      s.WeekEnding.Format(dateFormat),
		Records:         s.Records,
		Late:            s.Late,
		ByStatus:        byStatus,
		TotalMinutes:    int64(s.Total),
		RegularMinutes:  int64(s.Regular),
		OvertimeMinutes: int64(s.Overtime),
		NightMinutes:    int64(s.Night),
		SleepMinutes:    int64(s.Sleep),
		RegularPay:      money(s.RegularPay),
		OvertimePay:     money(s.OvertimePay),
		TotalPay:        money(s.TotalPay),
	}
}

func toFieldErrorDTOs(fields []payroll.FieldError) []FieldErrorDTO {
	out := make([]FieldErrorDTO, len(fields))
	for i, f := range fields {
		out[i] = FieldErrorDTO{Field: f.Field, Message: f.Message}
	}
	return out
}
