package service

import (
	"account_service/internal/storage"
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrNotFound       = errors.New("account not found")
)

// ValidationError carries the field messages for a rejected input.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(err error) error {
	return &ValidationError{Err: err}
}

func storageError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, storage.ErrDuplicateEmail):
		return fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
	}

	return fmt.Errorf("%s: %w", op, err)
}
