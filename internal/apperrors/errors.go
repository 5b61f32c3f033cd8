// Package apperrors provides structured application errors with sentinel classification.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInternal      = errors.New("internal error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotStored     = errors.New("not stored")
	ErrSchema        = errors.New("schema error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "id", "upstream")
	Resource string // For not found/not stored (e.g., "asset meta")
	Op       string // Operation that failed (e.g., "meta.decode")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel and, when present, the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// Conflict creates a conflict error for a resource.
func Conflict(resource, id, reason string) error {
	return &Error{
		Sentinel: ErrConflict,
		Message:  reason,
		Resource: resource,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Configuration reports a programming or deployment mistake: a missing registry entry,
// a transformation that does not fit its upstream list, an unbound persister.
// Configuration errors are never retried.
func Configuration(op, message string) error {
	return &Error{
		Sentinel: ErrConfiguration,
		Message:  fmt.Sprintf("%s: %s", op, message),
		Op:       op,
	}
}

// NotStored reports that a persister holds nothing for the given id yet.
func NotStored(resource, id string) error {
	return &Error{
		Sentinel: ErrNotStored,
		Message:  fmt.Sprintf("%s %s not stored", resource, id),
		Resource: resource,
	}
}

// Schema reports a stored document that could not be decoded.
func Schema(op string, cause error) error {
	return &Error{
		Sentinel: ErrSchema,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// IsOperational reports whether err is a runtime failure that an asset absorbs into
// its lifecycle state rather than raising to the caller.
func IsOperational(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrConfiguration) && !errors.Is(err, ErrSchema)
}
