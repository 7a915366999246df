package models

import (
	"errors"
	"fmt"
)

var (
	// ErrColumnMissing is raised when an expected column is absent from a table.
	ErrColumnMissing = errors.New("expected column missing")
	// ErrSchemaMismatch is raised when a summary record does not carry exactly
	// the broker's field set.
	ErrSchemaMismatch = errors.New("summary schema mismatch")
	// ErrDuplicateDate is raised when a second record arrives for a date.
	ErrDuplicateDate = errors.New("duplicate date")
)

// FieldError ties an error to a named field or column.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
