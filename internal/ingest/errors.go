package ingest

import (
	"errors"
	"fmt"

	"finassist/internal/ledger"
)

// ErrPeriodMismatch is returned when neither document covers the requested
// period.
var ErrPeriodMismatch = errors.New("requested period not found in documents")

// PeriodMismatchError carries the periods actually found in each document.
type PeriodMismatchError struct {
	Requested    ledger.Period
	SalesPeriods []ledger.Period
	BankPeriods  []ledger.Period
}

// Error implements the error interface.
func (e *PeriodMismatchError) Error() string {
	return fmt.Sprintf("ingest: period %s not found: sales has %v, bank has %v", e.Requested, e.SalesPeriods, e.BankPeriods)
}

// Is makes errors.Is(err, ErrPeriodMismatch) true.
func (e *PeriodMismatchError) Is(target error) bool {
	return target == ErrPeriodMismatch
}
