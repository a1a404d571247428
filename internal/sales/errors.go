package sales

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn is returned when a sheet lacks a column every line needs.
	ErrMissingColumn = errors.New("missing required column")

	// ErrNegativeQuantity marks a row whose quantity is below zero.
	ErrNegativeQuantity = errors.New("negative quantity")

	// ErrRowPanic marks a row whose conversion panicked.
	ErrRowPanic = errors.New("row conversion panicked")
)

// RowError describes why a single sheet row was dropped. Row is the 1-based
// sheet row number, header included.
type RowError struct {
	Row   int
	Field string
	Err   error
}

// Error implements the error interface.
func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("sales: row %d: %s: %v", e.Row, e.Field, e.Err)
	}
	return fmt.Sprintf("sales: row %d: %v", e.Row, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *RowError) Unwrap() error {
	return e.Err
}
