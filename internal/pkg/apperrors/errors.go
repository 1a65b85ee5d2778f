package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrAlreadyExists = errors.New("resource already exists")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")

	ErrUnauthorized = errors.New("unauthorized")

	ErrInvalidAmount = errors.New("invalid amount")

	ErrNoOutstandingInstallments = errors.New("no outstanding installments")

	ErrTargetAlreadyClosed = errors.New("target already closed")

	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrNoActivePolicy = errors.New("no active penalty policy")

	// ErrConcurrencyConflict marks lock or transaction contention. Callers may retry.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

// StateError reports an operation refused because of the current state of a
// loan, batch, customer or account.
type StateError struct {
	Kind  string
	ID    int64
	State string
	Cause error
}

func (e *StateError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("%s %d (state %s): %v", e.Kind, e.ID, e.State, e.Cause)
	}
	return fmt.Sprintf("%s %d: %v", e.Kind, e.ID, e.Cause)
}

func (e *StateError) Unwrap() error {
	return e.Cause
}

func NewStateError(kind string, id int64, state string, cause error) error {
	return &StateError{Kind: kind, ID: id, State: state, Cause: cause}
}

// IsRetryable reports whether err is transient contention that a caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
