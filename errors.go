package tablekit

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for tablekit operations.
var (
	// ErrInvalidDeclaration is returned for malformed resource metadata
	// (bad identifiers, missing handlers, ...). Declaration errors surface
	// at startup, never at request time.
	ErrInvalidDeclaration = errors.New("tablekit: invalid declaration")

	// ErrDuplicateColumn is returned when a column name is declared twice
	// on the same resource.
	ErrDuplicateColumn = errors.New("tablekit: duplicate column")

	// ErrDuplicateAction is returned when two actions normalize to the
	// same action id on one resource.
	ErrDuplicateAction = errors.New("tablekit: duplicate action")

	// ErrDuplicateMethod is returned when a method id is registered twice
	// without the overwrite flag.
	ErrDuplicateMethod = errors.New("tablekit: duplicate method")

	// ErrInvalidColumnType is returned when a declared logical column type
	// has no physical mapping.
	ErrInvalidColumnType = errors.New("tablekit: invalid column type")

	// ErrConflictingHooks is returned when a column declares both a
	// combined create-or-update hook and a separate create or update hook.
	ErrConflictingHooks = errors.New("tablekit: conflicting column hooks")

	// ErrValidation is returned when one or more column validations fail.
	// The message lists every violation.
	ErrValidation = errors.New("tablekit: validation failed")

	// ErrUnauthorized is returned at the method-dispatch boundary when the
	// principal may not execute the requested method.
	ErrUnauthorized = errors.New("tablekit: unauthorized")

	// ErrNoPrincipal is returned when an auth-required method is executed
	// without a principal.
	ErrNoPrincipal = errors.New("tablekit: no principal")

	// ErrUnknownResource is returned when dispatching to a resource name
	// that was never registered.
	ErrUnknownResource = errors.New("tablekit: unknown resource")

	// ErrMissingRecordID is returned when a record operation is called
	// without a record id or where clause.
	ErrMissingRecordID = errors.New("tablekit: record id required")

	// ErrNotInitialized is returned when a request-time operation runs
	// before the engine synchronized its schemas.
	ErrNotInitialized = errors.New("tablekit: engine not initialized")

	// ErrHierarchyDepth is returned when an ancestor walk exceeds the
	// maximum tree depth (usually a parent cycle).
	ErrHierarchyDepth = errors.New("tablekit: hierarchy too deep")

	// ErrDatabaseError is returned when a storage operation fails.
	ErrDatabaseError = errors.New("tablekit: database error")
)

// Error wraps a sentinel error with resource context.
type Error struct {
	Err       error  // Underlying sentinel error
	Message   string // Additional context
	Table     string // Resource involved
	Column    string // Column involved (if applicable)
	RecordID  int64  // Record involved (if applicable)
	Principal string // Principal who triggered the error (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithTable adds the resource name to the error.
func (e *Error) WithTable(table string) *Error {
	e.Table = table
	return e
}

// WithColumn adds the column name to the error.
func (e *Error) WithColumn(column string) *Error {
	e.Column = column
	return e
}

// WithRecord adds the record id to the error.
func (e *Error) WithRecord(id int64) *Error {
	e.RecordID = id
	return e
}

// WithPrincipal adds the principal name to the error.
func (e *Error) WithPrincipal(name string) *Error {
	e.Principal = name
	return e
}

// ValidationError aggregates every column validation failure of one write
// operation into a single error, raised before any mutation occurs.
type ValidationError struct {
	Messages []string
}

// Error implements the error interface. The message joins every violation.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(e.Messages, " "))
}

// Unwrap returns ErrValidation so errors.Is(err, ErrValidation) holds.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsUnauthorized checks if an error is an authorization error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsValidation checks if an error is an aggregated validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDeclaration checks if an error is a resource declaration error.
func IsDeclaration(err error) bool {
	return errors.Is(err, ErrInvalidDeclaration) ||
		errors.Is(err, ErrDuplicateColumn) ||
		errors.Is(err, ErrDuplicateAction) ||
		errors.Is(err, ErrDuplicateMethod) ||
		errors.Is(err, ErrInvalidColumnType) ||
		errors.Is(err, ErrConflictingHooks)
}
