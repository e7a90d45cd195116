/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these with additional context; the API layer
  maps them to HTTP status codes via the classifier helpers.

ERROR CATEGORIES:
  1. Not-found errors      - referenced records that don't exist
  2. Validation errors     - malformed or rule-violating input
  3. Conflict errors       - scheduling collisions and lost races
  4. Transition errors     - illegal state-machine moves
  5. Authorization errors  - actor lacks the required role

USAGE:
  Services return wrapped sentinels:

    if errors.Is(err, core.ErrShiftConflict) {
        // surface as 409
    }

SEE ALSO:
  - types.go: the records these errors talk about
  - api/handlers.go: HTTP status mapping
*/
package core

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record doesn't exist
	// in the caller's workspace.
	ErrNotFound = errors.New("record not found")

	// ErrValidation is returned when input fails field or rule checks.
	ErrValidation = errors.New("validation failed")

	// ErrShiftConflict is returned when a shift collides with an existing
	// shift, an absence, or the statutory rest period.
	ErrShiftConflict = errors.New("shift conflict")

	// ErrAbsenceOverlap is returned when a new absence overlaps an
	// existing pending or approved one for the same employee.
	ErrAbsenceOverlap = errors.New("absence overlaps existing request")

	// ErrInvalidTransition is returned for an illegal state-machine move.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrMonthLocked is returned when a mutation targets a time entry in
	// a locked or exported payroll month.
	ErrMonthLocked = errors.New("payroll month is locked")

	// ErrShiftTaken is returned when a claim loses the race for an open
	// shift. This is expected behavior under contention.
	ErrShiftTaken = errors.New("shift already claimed")

	// ErrClockState is returned when a punch-clock action doesn't match
	// the employee's current clock state (e.g. double clock-in).
	ErrClockState = errors.New("invalid clock state")

	// ErrForbidden is returned when the actor's role doesn't permit the
	// operation.
	ErrForbidden = errors.New("forbidden")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictKind identifies what a shift collided with.
type ConflictKind string

const (
	ConflictOverlap    ConflictKind = "OVERLAP"
	ConflictAbsence    ConflictKind = "ABSENCE"
	ConflictRestPeriod ConflictKind = "REST_PERIOD"
)

// Conflict describes one collision found by the conflict detector.
type Conflict struct {
	Kind       ConflictKind `json:"kind"`
	EmployeeID string       `json:"employeeId"`
	RefID      string       `json:"refId"` // colliding shift or absence
	Detail     string       `json:"detail"`
}

// ConflictError carries the full list of collisions for one check.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	kinds := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		kinds[i] = string(c.Kind)
	}
	return fmt.Sprintf("shift conflict: %s", strings.Join(kinds, ", "))
}

func (e *ConflictError) Unwrap() error {
	return ErrShiftConflict
}

// ValidationError aggregates per-field failures.
type ValidationError struct {
	Fields []FieldError
}

// FieldError names one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("validation failed: %d fields", len(e.Fields))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// TransitionError records an illegal state-machine move.
type TransitionError struct {
	Entity string // "time_entry", "swap_request", ...
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrShiftTaken)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrClockState)
}

// IsConflict returns true if the error maps to HTTP 409.
func IsConflict(err error) bool {
	return errors.Is(err, ErrShiftConflict) ||
		errors.Is(err, ErrAbsenceOverlap) ||
		errors.Is(err, ErrShiftTaken) ||
		errors.Is(err, ErrMonthLocked)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
