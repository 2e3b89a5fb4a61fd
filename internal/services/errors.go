package services

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers switch on these with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrAuthentication = errors.New("authentication failed")
	ErrNotFound       = errors.New("not found")
)

var (
	ErrEmailTaken         = newKindError(ErrConflict, "email is already registered")
	ErrUsernameTaken      = newKindError(ErrConflict, "username is already taken")
	ErrAccountExists      = newKindError(ErrConflict, "account already exists")
	ErrInvalidCredentials = newKindError(ErrAuthentication, "invalid email or password")
	ErrInvalidToken       = newKindError(ErrAuthentication, "invalid or expired token")
	ErrTaskNotFound       = newKindError(ErrNotFound, "task not found")
	ErrUserNotFound       = newKindError(ErrNotFound, "user not found")
)

type kindError struct {
	kind error
	msg  string
}

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
