/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return these (or wrap them) so the API layer can map
  them to status codes with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Validation - malformed period bounds, rate keys, configurations
  2. Not found  - missing employee, salary configuration or applicable rate
  3. Conflict   - duplicate legacy rate (year, effective-from)
  4. Parse      - ledger text without a period marker or employee blocks

PROPAGATION:
  Computation paths (rates, pay, severance) never substitute defaults;
  errors go straight back to the caller. Reconciliation reports unmatched
  roster names in its result instead of failing.

SEE ALSO:
  - rates/resolver.go: NoApplicableRateError, ConflictError
  - ledger/parser.go: ParseError
  - api/handlers.go: HTTP status mapping
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write collides with an existing record.
	ErrConflict = errors.New("conflict")

	// ErrParse is returned when ledger text cannot be imported.
	ErrParse = errors.New("ledger parse failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the kind of record and its key.
type NotFoundError struct {
	Kind string // "employee", "salary_configuration", "slip", "legacy_rate"
	Key  string
}

func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NoApplicableRateError is returned when no rate set is effective on Date.
type NoApplicableRateError struct {
	Date time.Time
}

func (e *NoApplicableRateError) Error() string {
	return "no applicable rate set for " + e.Date.Format("2006-01-02")
}

func (e *NoApplicableRateError) Unwrap() error { return ErrNotFound }

// ConflictError names the colliding record.
type ConflictError struct {
	Kind string
	Key  string
}

func NewConflictError(kind, key string) *ConflictError {
	return &ConflictError{Kind: kind, Key: key}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.Key)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ParseError rejects a whole ledger import.
type ParseError struct {
	Reason  string
	Details []string
}

func NewParseError(reason string, details ...string) *ParseError {
	return &ParseError{Reason: reason, Details: details}
}

func (e *ParseError) Error() string {
	if len(e.Details) == 0 {
		return "ledger parse: " + e.Reason
	}
	return "ledger parse: " + e.Reason + ": " + strings.Join(e.Details, "; ")
}

func (e *ParseError) Unwrap() error { return ErrParse }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrParse)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error indicates a duplicate write.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
