package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"finassist/internal/ledger"
	"finassist/internal/lock"
	"finassist/internal/logger"
)

// ErrPersistence marks a reconciliation whose records were computed but
// could not be written to the cache.
var ErrPersistence = errors.New("reconciliation cache not updated")

// PersistenceError is returned together with the computed records when the
// cache write fails. The cache may still hold the previous run.
type PersistenceError struct {
	Period ledger.Period
	Err    error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("reconciliation: period %s: %v: %v", e.Period, ErrPersistence, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is matches ErrPersistence as well as the wrapped error.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// Store is the part of the ledger store the engine needs.
type Store interface {
	SalesLines(ctx context.Context, period ledger.Period) ([]ledger.SalesLine, error)
	BankTransactions(ctx context.Context, period ledger.Period) ([]ledger.BankTransaction, error)
	BankTransactionsOn(ctx context.Context, day time.Time) ([]ledger.BankTransaction, error)
	ReplaceReconciliation(ctx context.Context, period ledger.Period, records []ledger.ReconciliationRecord) error
	ReconciliationRecords(ctx context.Context, period ledger.Period) ([]ledger.ReconciliationRecord, error)
}

// Engine reconciles stored periods and keeps the reconciliation cache.
type Engine struct {
	store  Store
	locker lock.Locker
	log    zerolog.Logger
}

// NewEngine creates an engine. Runs for the same period are serialized
// through locker.
func NewEngine(store Store, locker lock.Locker) *Engine {
	return &Engine{
		store:  store,
		locker: locker,
		log:    logger.WithComponent("reconciliation"),
	}
}

var tracer = otel.Tracer("finassist/reconciliation")

// Reconcile recomputes the records of period and replaces the cached ones.
// When only the cache write fails, the records are returned along with a
// *PersistenceError; callers can use them but must not assume the cache
// holds them.
func (e *Engine) Reconcile(ctx context.Context, period ledger.Period) ([]ledger.ReconciliationRecord, error) {
	const op = "Reconcile"

	ctx, span := tracer.Start(ctx, "Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("period", period.String()))

	log := logger.WithPeriod(e.log, period.String())

	release, err := e.locker.Acquire(ctx, lock.PeriodKey(period))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer release()

	sales, err := e.store.SalesLines(ctx, period)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load sales")
		return nil, fmt.Errorf("%s: failed to load sales: %w", op, err)
	}
	bank, err := e.store.BankTransactions(ctx, period)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load bank")
		return nil, fmt.Errorf("%s: failed to load bank transactions: %w", op, err)
	}

	if day, ok := spillOverDay(sales, bank); ok {
		next, err := e.store.BankTransactionsOn(ctx, day)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load spill-over day")
			return nil, fmt.Errorf("%s: failed to load %s: %w", op, day.Format("2006-01-02"), err)
		}
		bank = append(bank, next...)
	}

	records := Compute(sales, bank, period)
	span.SetAttributes(attribute.Int("records", len(records)))

	if err := e.store.ReplaceReconciliation(ctx, period, records); err != nil {
		log.Error().Err(err).Int("records", len(records)).Msg("Failed to update reconciliation cache")
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist")
		return records, &PersistenceError{Period: period, Err: err}
	}

	log.Info().
		Int("sales_lines", len(sales)).
		Int("bank_transactions", len(bank)).
		Int("records", len(records)).
		Msg("Period reconciled")

	return records, nil
}

// Cached returns the records written by the last successful run.
func (e *Engine) Cached(ctx context.Context, period ledger.Period) ([]ledger.ReconciliationRecord, error) {
	const op = "Cached"

	records, err := e.store.ReconciliationRecords(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

// spillOverDay returns the first day of the following month, whose credits
// can settle the last day of the period. The year is taken from the data.
func spillOverDay(sales []ledger.SalesLine, bank []ledger.BankTransaction) (time.Time, bool) {
	var latest time.Time
	for _, l := range sales {
		if l.Date.After(latest) {
			latest = l.Date
		}
	}
	for _, tx := range bank {
		if tx.Date.After(latest) {
			latest = tx.Date
		}
	}
	if latest.IsZero() {
		return time.Time{}, false
	}
	first := time.Date(latest.Year(), latest.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, 0), true
}
