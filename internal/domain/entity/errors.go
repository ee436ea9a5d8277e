package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by repositories when nothing is stored yet,
	// such as a watermark checkpoint on first start.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput is matched by every ValidationError.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError names the donation field that failed a check. A page
// containing such a record fails the whole fetch.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
