package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

type AppError struct {
	Err     error
	Message string

	// Set on forbidden errors: the roles that would have been accepted and
	// the role the caller actually holds ("unknown" when none).
	Required []string
	Actual   string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
	}
}

func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// Forbidden reports a role check failure. HTTP handlers map this to 403.
func Forbidden(required []string, actual string) *AppError {
	if actual == "" {
		actual = "unknown"
	}
	return &AppError{
		Err:      ErrForbidden,
		Message:  fmt.Sprintf("requires one of [%s], have %s", strings.Join(required, ", "), actual),
		Required: required,
		Actual:   actual,
	}
}

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
