/*
errors.go - Error types for the calculation path

ERROR CATEGORIES:
  1. ValidationError - malformed time entry or rate; lists every failing field
  2. RuleConfigurationError - invalid RuleConfig; raised at startup
  3. ErrInconsistentBreakdown - reconciliation produced broken partitions

Match with errors.Is against the sentinels, or errors.As for the field list.
*/
package payroll

import (
	"errors"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("invalid time entry")

	// ErrRuleConfiguration is wrapped by every *RuleConfigurationError.
	ErrRuleConfiguration = errors.New("invalid rule configuration")

	// ErrInconsistentBreakdown means the reconciled partitions do not sum to the total.
	ErrInconsistentBreakdown = errors.New("inconsistent hour breakdown")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// FieldError is a single field-level problem.
type FieldError struct {
	Field   string
	Message string
}

func (f FieldError) String() string { return f.Field + ": " + f.Message }

// ValidationError carries every field that failed, in check order.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + joinFields(e.Fields)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Has reports whether field failed.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) merge(err error) {
	var other *ValidationError
	if errors.As(err, &other) {
		e.Fields = append(e.Fields, other.Fields...)
	}
}

// err returns nil when nothing failed so callers never see a typed nil.
func (e *ValidationError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// RuleConfigurationError lists every invalid rule parameter.
type RuleConfigurationError struct {
	Problems []FieldError
}

func (e *RuleConfigurationError) Error() string {
	return ErrRuleConfiguration.Error() + ": " + joinFields(e.Problems)
}

func (e *RuleConfigurationError) Unwrap() error { return ErrRuleConfiguration }

func (e *RuleConfigurationError) add(field, message string) {
	e.Problems = append(e.Problems, FieldError{Field: field, Message: message})
}

func (e *RuleConfigurationError) err() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

func joinFields(fields []FieldError) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

// FieldErrors extracts the field list from a validation or configuration error.
func FieldErrors(err error) []FieldError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	var ce *RuleConfigurationError
	if errors.As(err, &ce) {
		return ce.Problems
	}
	return nil
}
