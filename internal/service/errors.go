package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrExpired              = errors.New("goal deadline has passed")
	ErrInsufficientProgress = errors.New("amount saved is short of the goal")
	ErrConflict             = errors.New("conflict")
	ErrPersistence          = errors.New("persistence failure")
	ErrForbidden            = errors.New("forbidden")
)

var taxonomy = []error{
	ErrValidation,
	ErrNotFound,
	ErrExpired,
	ErrInsufficientProgress,
	ErrConflict,
	ErrPersistence,
	ErrForbidden,
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(err error) error {
	return fmt.Errorf("%w: %w", ErrNotFound, err)
}

// persistence wraps a storage failure. Errors already in the taxonomy pass
// through unchanged so a rolled back unit of work keeps its original cause.
func persistence(action string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range taxonomy {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: failed to %s: %w", ErrPersistence, action, err)
}
