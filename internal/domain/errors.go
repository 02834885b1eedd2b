package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExists    = errors.New("session already exists")
	ErrOperatorNotFound = errors.New("operator not found")
	ErrEmptyMessage     = errors.New("message body is empty")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("operation requires an operator")
	ErrInvalidSender    = errors.New("invalid sender type")
)

// ValidationError is returned for input that is rejected before anything is
// persisted or broadcast.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: failed to %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore tags err as a StoreError unless it is nil or one of the
// not-found/exists sentinels callers are expected to branch on.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExists) || errors.Is(err, ErrOperatorNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsValidation reports whether err should be surfaced as a client error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrInvalidSender)
}
