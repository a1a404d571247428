package bank

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPDF is returned when the statement cannot be opened as a PDF.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrLinePanic marks a statement line whose conversion panicked.
	ErrLinePanic = errors.New("line conversion panicked")
)

// LineError describes why a single statement line was dropped. Line is the
// 1-based position in the extracted text.
type LineError struct {
	Line int
	Text string
	Err  error
}

// Error implements the error interface.
func (e *LineError) Error() string {
	return fmt.Sprintf("bank: line %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *LineError) Unwrap() error {
	return e.Err
}
