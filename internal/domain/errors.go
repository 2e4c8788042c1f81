// Package domain defines core types, interfaces, and errors for the authorization engine.
package domain

import "fmt"

// NotFoundError indicates a record was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate record).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// UnknownPermissionError indicates a permission key that is not registered.
type UnknownPermissionError struct {
	Message string
}

func (e *UnknownPermissionError) Error() string { return e.Message }

// UnknownRoleError indicates a role key that is not registered.
type UnknownRoleError struct {
	Message string
}

func (e *UnknownRoleError) Error() string { return e.Message }

// UnknownPrincipalError indicates a principal id that does not exist.
type UnknownPrincipalError struct {
	Message string
}

func (e *UnknownPrincipalError) Error() string { return e.Message }

// InvalidMembershipError indicates an attempt to add a group-type principal
// to a group. Groups are single-level; they never contain other groups.
type InvalidMembershipError struct {
	Message string
}

func (e *InvalidMembershipError) Error() string { return e.Message }

// InvalidCursorError indicates a malformed page cursor.
type InvalidCursorError struct {
	Message string
}

func (e *InvalidCursorError) Error() string { return e.Message }

// CancelledError indicates the operation was cancelled before it completed.
// The underlying context error is preserved for errors.Is checks.
type CancelledError struct {
	Message string
	Cause   error
}

func (e *CancelledError) Error() string { return e.Message }
func (e *CancelledError) Unwrap() error { return e.Cause }

// StoreUnavailableError indicates a transient database failure. Callers may
// retry after backoff; access decisions never fall back to "allow" on it.
type StoreUnavailableError struct {
	Message string
	Cause   error
}

func (e *StoreUnavailableError) Error() string { return e.Message }
func (e *StoreUnavailableError) Unwrap() error { return e.Cause }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnknownPermission creates an UnknownPermissionError with a formatted message.
func ErrUnknownPermission(format string, args ...interface{}) *UnknownPermissionError {
	return &UnknownPermissionError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnknownRole creates an UnknownRoleError with a formatted message.
func ErrUnknownRole(format string, args ...interface{}) *UnknownRoleError {
	return &UnknownRoleError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnknownPrincipal creates an UnknownPrincipalError with a formatted message.
func ErrUnknownPrincipal(format string, args ...interface{}) *UnknownPrincipalError {
	return &UnknownPrincipalError{Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidMembership creates an InvalidMembershipError with a formatted message.
func ErrInvalidMembership(format string, args ...interface{}) *InvalidMembershipError {
	return &InvalidMembershipError{Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidCursor creates an InvalidCursorError with a formatted message.
func ErrInvalidCursor(format string, args ...interface{}) *InvalidCursorError {
	return &InvalidCursorError{Message: fmt.Sprintf(format, args...)}
}

// ErrCancelled wraps a context error as a CancelledError.
func ErrCancelled(cause error) *CancelledError {
	return &CancelledError{Message: "operation cancelled", Cause: cause}
}

// ErrStoreUnavailable wraps a driver error as a StoreUnavailableError.
func ErrStoreUnavailable(cause error) *StoreUnavailableError {
	return &StoreUnavailableError{Message: fmt.Sprintf("store unavailable: %v", cause), Cause: cause}
}
