package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError so callers can branch without matching codes
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInvalidState ErrorKind = "invalid_state"
	KindInternal     ErrorKind = "internal"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"-"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause (usually a storage error)
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Kind:    KindInvalidState,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation failure
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Kind: KindValidation, Code: code, Message: message}
}

// NewNotFoundError creates a typed not-found error for a resource
func NewNotFoundError(resource string, id any) *DomainError {
	return &DomainError{
		Kind:    KindNotFound,
		Code:    ErrNotFound.Code,
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

// NewConflictError creates a conflict error
func NewConflictError(code, message string) *DomainError {
	return &DomainError{Kind: KindConflict, Code: code, Message: message}
}

// WrapError attaches a domain message to a lower-level cause
func WrapError(err error, code, message string) *DomainError {
	kind := KindInternal
	var de *DomainError
	if errors.As(err, &de) {
		kind = de.Kind
	}
	return &DomainError{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf returns the kind of the first DomainError in err's chain
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is a not-found domain error
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsConflict reports whether err is a conflict (CAS miss, uniqueness)
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// Common domain errors
var (
	ErrNotFound            = &DomainError{Kind: KindNotFound, Code: "NOT_FOUND", Message: "Resource not found"}
	ErrAlreadyExists       = &DomainError{Kind: KindConflict, Code: "ALREADY_EXISTS", Message: "Resource already exists"}
	ErrInvalidInput        = &DomainError{Kind: KindValidation, Code: "INVALID_INPUT", Message: "Invalid input provided"}
	ErrConcurrencyConflict = &DomainError{Kind: KindConflict, Code: "CONCURRENCY_CONFLICT", Message: "Resource was modified by another process"}
	ErrInvalidState        = &DomainError{Kind: KindInvalidState, Code: "INVALID_STATE", Message: "Operation not allowed in current state"}
)
