package apperr

import (
	"errors"
	"fmt"

	"github.com/user/cesto-ofertas-go/internal/model"
)

var (
	// ErrNotFound is returned when a referenced record does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned for missing or bad credentials
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the session lacks the required role
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when an operation is not allowed in the current state
	ErrConflict = errors.New("conflict")
)

// ValidationError reports a field that failed validation before any mutation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError for field
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err wraps a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RequireSession rejects a missing or anonymous session
func RequireSession(s *model.Session) error {
	if s == nil || s.UserID == "" {
		return ErrUnauthorized
	}
	return nil
}

// RequireAdmin rejects sessions without the admin role
func RequireAdmin(s *model.Session) error {
	if err := RequireSession(s); err != nil {
		return err
	}
	if !s.IsAdmin {
		return ErrForbidden
	}
	return nil
}
