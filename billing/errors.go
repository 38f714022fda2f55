/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (the HTTP layer) match with errors.Is/errors.As and map to
  status codes in a single switch.

ERROR CATEGORIES:
  1. Ownership errors  - NotFound (absent and not-owned are the same thing)
  2. Input errors      - InvalidRange, InvalidWeekday, InvalidInput
  3. Reconcile errors  - AlreadyExists, OutOfBounds
  4. Invoice errors    - EmptyPeriod, PreconditionFailed, InvalidTransition

FAIL-CLOSED OWNERSHIP:
  ErrNotFound deliberately does not distinguish "does not exist" from
  "exists but belongs to another user". Distinguishing them would leak
  the existence of other tenants' data.

USAGE:
  if errors.Is(err, billing.ErrAlreadyExists) { ... }

  var oob *billing.OutOfBoundsError
  if errors.As(err, &oob) { fmt.Println(oob.Date, oob.Resulting) }
*/
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when an entity is absent OR not owned by the
	// calling user. The two cases are indistinguishable on purpose.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRange is returned for malformed dates or start > end.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrInvalidWeekday is returned for an unrecognized weekday token.
	ErrInvalidWeekday = errors.New("invalid weekday")

	// ErrAlreadyExists is returned by Reconcile in error mode when the
	// target date already has an entry.
	ErrAlreadyExists = errors.New("entry already exists")

	// ErrOutOfBounds is returned when hours would land outside [0, 24].
	ErrOutOfBounds = errors.New("hours out of bounds")

	// ErrEmptyPeriod is returned when invoice creation matches zero entries.
	ErrEmptyPeriod = errors.New("no entries in period")

	// ErrPreconditionFailed is returned when invoice creation is blocked by
	// missing prerequisites (no billing profile configured).
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrInvalidTransition is returned for an illegal invoice status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidInput is returned for enum-like parameters that do not match
	// any known value (reconciliation mode, invoice status filter).
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned by the store when a write races with another
	// write to the same key and cannot be applied.
	ErrConflict = errors.New("conflicting concurrent write")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidRangeError reports a malformed date or an inverted range.
type InvalidRangeError struct {
	Reason string
}

func (e *InvalidRangeError) Error() string { return e.Reason }
func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// InvalidWeekdayError names the token that could not be parsed.
type InvalidWeekdayError struct {
	Token string
}

func (e *InvalidWeekdayError) Error() string {
	return fmt.Sprintf("unrecognized weekday %q", e.Token)
}
func (e *InvalidWeekdayError) Unwrap() error { return ErrInvalidWeekday }

// AlreadyExistsError names the date and its current hours so the caller can
// decide whether to retry with a different mode.
type AlreadyExistsError struct {
	Date  Date
	Hours decimal.Decimal
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("entry for %s already exists with %s hours", e.Date, e.Hours)
}
func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// OutOfBoundsError reports the hours value that violated [0, 24].
type OutOfBoundsError struct {
	Date      Date
	Resulting decimal.Decimal
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("hours for %s would be %s, outside [0, 24]", e.Date, e.Resulting)
}
func (e *OutOfBoundsError) Unwrap() error { return ErrOutOfBounds }

// PreconditionError explains which prerequisite blocked the operation.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }
func (e *PreconditionError) Unwrap() error { return ErrPreconditionFailed }

// InvalidInputError names the parameter that failed validation.
type InvalidInputError struct {
	Field string
	Value string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}
func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// TransitionError reports an illegal invoice status change.
type TransitionError struct {
	From InvoiceStatus
	To   InvoiceStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invoice status cannot move from %s to %s", e.From, e.To)
}
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing or unowned entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError reports whether the error is recoverable by the caller
// adjusting input (as opposed to a storage failure).
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidWeekday) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrOutOfBounds) ||
		errors.Is(err, ErrEmptyPeriod) ||
		errors.Is(err, ErrPreconditionFailed) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidInput)
}
