/*
Package timesheet carries a calculated shift through review.

PURPOSE:
  A Record holds the reported TimeEntry, the PayrollCalculation computed
  from it, free-text notes and a lifecycle status. The Service is the only
  component that mutates Records; every mutation is a guarded compare-and-
  swap on Record.Version.

LIFECYCLE:

    ┌───────┐  submit   ┌───────────┐  approve  ┌──────────┐
    │ Draft │ ────────▶ │ Submitted │ ────────▶ │ Approved │ (terminal)
    └───────┘           └───────────┘           └──────────┘
        ▲                     │
        │ edit                │ reject (notes required)
        │               ┌──────────┐
        └────────────── │ Rejected │ ──▶ supersede: new Draft record
                        └──────────┘

  - Draft and Rejected are editable; editing a Rejected record returns it
    to Draft, clears the review metadata and keeps History.
  - Approved admits no transition. Audit notes may still be appended.
  - Records are never deleted.

SEE ALSO:
  - service.go: the transitions
  - deadline.go: the derived late-submission flag
  - store.go: persistence contract
*/
package timesheet

import (
	"time"

	"github.com/warp/chronoshift/payroll"
)

// =============================================================================
// STATUS & ACTIONS
// =============================================================================

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool { return s == StatusApproved }

type Action string

const (
	ActionCreate    Action = "create"
	ActionEdit      Action = "edit"
	ActionSubmit    Action = "submit"
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionSupersede Action = "supersede"

	// ActionRecalculate appears only in History. It marks an open record
	// repriced because another record in its overtime period changed.
	ActionRecalculate Action = "recalculate"
)

// transitions lists the status each action moves a record to, keyed by the
// status it must start from.
var transitions = map[Action]map[Status]Status{
	ActionEdit: {
		StatusDraft:    StatusDraft,
		StatusRejected: StatusDraft,
	},
	ActionSubmit: {
		StatusDraft: StatusSubmitted,
	},
	ActionApprove: {
		StatusSubmitted: StatusApproved,
	},
	ActionReject: {
		StatusSubmitted: StatusRejected,
	},
	// Supersede leaves the old record Rejected; it only links it forward.
	ActionSupersede: {
		StatusRejected: StatusRejected,
	},
}

// next returns the status action leads to from current.
func next(current Status, action Action) (Status, bool) {
	to, ok := transitions[action][current]
	return to, ok
}

// =============================================================================
// ACTORS
// =============================================================================

type Role string

const (
	RoleEmployee   Role = "employee"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"

	// RoleSystem is used by automated submission paths.
	RoleSystem Role = "system"
)

// Actor identifies who is performing an action. Authentication happens
// upstream; the workflow only checks roles.
type Actor struct {
	ID   string
	Role Role
}

// Reviewer reports whether the actor may approve or reject.
func (a Actor) Reviewer() bool { return a.Role == RoleSupervisor || a.Role == RoleAdmin }

// actsFor reports whether the actor may act on the employee's own records.
func (a Actor) actsFor(employeeID string) bool {
	switch a.Role {
	case RoleAdmin, RoleSystem:
		return true
	case RoleEmployee, RoleSupervisor:
		return a.ID == employeeID
	}
	return false
}

// =============================================================================
// RECORD
// =============================================================================

// Transition is one entry of a record's history.
type Transition struct {
	Action  Action
	From    Status
	To      Status
	ActorID string
	Role    Role
	At      time.Time
	Notes   string
}

// AuditNote is an append-only remark, allowed in every status.
type AuditNote struct {
	AuthorID string
	At       time.Time
	Text     string
}

// Record is the persisted timesheet.
type Record struct {
	ID          string
	EmployeeID  string
	Entry       payroll.TimeEntry
	Calculation *payroll.PayrollCalculation
	Notes       string
	Status      Status

	// Version is bumped by the store on every successful update.
	Version int64

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time

	SubmittedAt *time.Time

	// Review metadata; cleared when a Rejected record is edited.
	ApprovedBy     *string
	ApprovedAt     *time.Time
	ApprovalNotes  string
	RejectedBy     *string
	RejectedAt     *time.Time
	RejectionNotes string

	// Supersede links
	Supersedes   string
	SupersededBy string

	AuditNotes []AuditNote
	History    []Transition
}

// WeekEnding is the Sunday closing the record's Monday-Sunday week.
func (r *Record) WeekEnding() time.Time { return WeekEnding(r.Entry.WorkDate) }

// Clone returns a copy that shares no mutable state with r. The
// Calculation is immutable and is shared.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.SubmittedAt = cloneTime(r.SubmittedAt)
	c.ApprovedBy = cloneString(r.ApprovedBy)
	c.ApprovedAt = cloneTime(r.ApprovedAt)
	c.RejectedBy = cloneString(r.RejectedBy)
	c.RejectedAt = cloneTime(r.RejectedAt)
	c.AuditNotes = append([]AuditNote(nil), r.AuditNotes...)
	c.History = append([]Transition(nil), r.History...)
	return &c
}

func (r *Record) clearReview() {
	r.ApprovedBy, r.ApprovedAt, r.ApprovalNotes = nil, nil, ""
	r.RejectedBy, r.RejectedAt, r.RejectionNotes = nil, nil, ""
	r.SubmittedAt = nil
}

// live reports whether the record's regular time counts toward its
// overtime period.
func (r *Record) live() bool {
	return r.Status != StatusRejected && r.SupersededBy == "" && r.Calculation != nil
}

// frozen reports whether the record's calculation is under or past review.
func (r *Record) frozen() bool {
	return r.Status == StatusSubmitted || r.Status == StatusApproved
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
