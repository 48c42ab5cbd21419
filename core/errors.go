package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned by any lookup by id that misses.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// ConflictError signals a uniqueness or referential integrity violation.
// InUse is set when the entity cannot be deleted because other entities still reference it.
type ConflictError struct {
	Message string
	InUse   bool
}

func NewConflictError(msg string, inUse bool) *ConflictError {
	return &ConflictError{Message: msg, InUse: inUse}
}

func (err ConflictError) Error() string {
	return err.Message
}

// StateError signals an operation that is not allowed in the current state of an entity.
type StateError struct {
	Message string
}

func NewStateError(msg string) *StateError {
	return &StateError{Message: msg}
}

func (err StateError) Error() string {
	return err.Message
}

// AuthError signals bad credentials (Forbidden == false) or a disabled account (Forbidden == true).
type AuthError struct {
	Message   string
	Forbidden bool
}

func NewAuthError(msg string, forbidden bool) *AuthError {
	return &AuthError{Message: msg, Forbidden: forbidden}
}

func (err AuthError) Error() string {
	return err.Message
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

func IsState(err error) bool {
	_, ok := errors.Cause(err).(*StateError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
