/*
errors.go - Error types for the approval workflow

ERROR CATEGORIES:
  1. Lifecycle errors - illegal transition, missing notes, missing calculation
  2. Concurrency errors - stale version on a guarded update
  3. Lookup errors - unknown record or employee
  4. Permission errors - actor role not allowed to perform the action

Calculation problems surface as payroll.ValidationError and are passed
through unchanged.

SEE ALSO:
  - payroll/errors.go: ValidationError, RuleConfigurationError
  - api/handlers.go: maps these to HTTP status codes
*/
package timesheet

import (
	"errors"
	"fmt"

	"github.com/warp/chronoshift/payroll"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRecordNotFound is returned when a timesheet id is unknown.
	ErrRecordNotFound = errors.New("timesheet not found")

	// ErrEmployeeNotFound is returned when no rate profile exists for an employee.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrDuplicateRecord is returned when creating a record whose id already exists.
	ErrDuplicateRecord = errors.New("duplicate timesheet id")

	// ErrInvalidTransition is wrapped by every *StateTransitionError.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrConcurrentModification is wrapped by every *ConcurrentModificationError.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrNotPermitted is returned when the actor's role does not allow the action.
	ErrNotPermitted = errors.New("action not permitted")

	// ErrNotesRequired is returned when rejecting without an explanation.
	ErrNotesRequired = errors.New("notes are required")

	// ErrCalculationRequired is returned when submitting a record with no calculation.
	ErrCalculationRequired = errors.New("payroll calculation required")

	// ErrUnknownAction is returned by bulk operations for anything but approve/reject.
	ErrUnknownAction = errors.New("unknown action")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StateTransitionError reports an action that is not legal from the current status.
type StateTransitionError struct {
	RecordID string
	From     Status
	Action   Action
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s timesheet %s: status is %s", e.Action, e.RecordID, e.From)
}

func (e *StateTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ConcurrentModificationError reports a version mismatch on a guarded update.
type ConcurrentModificationError struct {
	RecordID string
	Expected int64
	Actual   int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("timesheet %s was modified concurrently: expected version %d, found %d",
		e.RecordID, e.Expected, e.Actual)
}

func (e *ConcurrentModificationError) Unwrap() error {
	return ErrConcurrentModification
}

func notPermitted(actor Actor, action Action) error {
	return fmt.Errorf("%w: %s %q cannot %s", ErrNotPermitted, actor.Role, actor.ID, action)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed after a refresh.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, payroll.ErrValidation) ||
		errors.Is(err, ErrNotesRequired) ||
		errors.Is(err, ErrCalculationRequired) ||
		errors.Is(err, ErrUnknownAction) ||
		errors.Is(err, ErrDuplicateRecord)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrEmployeeNotFound)
}
