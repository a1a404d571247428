// Package ingest loads one period's sales sheet and bank statement into the
// ledger store.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"finassist/internal/bank"
	"finassist/internal/ledger"
	"finassist/internal/lock"
	"finassist/internal/logger"
	"finassist/internal/sales"
	"finassist/internal/store"
)

// LedgerWriter replaces a period's ledger rows atomically.
type LedgerWriter interface {
	ReplaceLedger(ctx context.Context, period ledger.Period, sales []ledger.SalesLine, bank []ledger.BankTransaction, batch *store.RawSalesBatch) error
}

// Request is one ingestion: both documents for one period.
type Request struct {
	Period      ledger.Period
	Sales       *sales.Document
	BankLines   []string
	SalesSource string
}

// Report summarizes what an ingestion stored and what it dropped.
type Report struct {
	BatchID          string        `json:"batch_id"`
	Period           ledger.Period `json:"month"`
	SalesLines       int           `json:"sales_rows"`
	BankRows         int           `json:"bank_rows"`
	SalesRawRows     int           `json:"sales_raw_rows"`
	SalesDropped     int           `json:"sales_dropped"`
	SalesOutOfPeriod int           `json:"sales_out_of_period"`
	BankDropped      int           `json:"bank_dropped"`
	VATSnapped       int           `json:"vat_snapped"`
}

// Service runs ingestions.
type Service struct {
	store  LedgerWriter
	locker lock.Locker
	sales  *sales.Parser
	bank   *bank.Parser
	log    zerolog.Logger
}

// NewService wires the parsers to the store.
func NewService(store LedgerWriter, locker lock.Locker, salesParser *sales.Parser, bankParser *bank.Parser) *Service {
	return &Service{
		store:  store,
		locker: locker,
		sales:  salesParser,
		bank:   bankParser,
		log:    logger.WithComponent("ingest"),
	}
}

var tracer = otel.Tracer("finassist/ingest")

// Ingest parses both documents and replaces the period's ledger rows with
// the result, so running it twice leaves the same rows. It fails with a
// *PeriodMismatchError when neither document contains the period.
func (s *Service) Ingest(ctx context.Context, req Request) (*Report, error) {
	const op = "Ingest"

	ctx, span := tracer.Start(ctx, "Ingest")
	defer span.End()
	span.SetAttributes(attribute.String("period", req.Period.String()))

	fail := func(stage string, err error) (*Report, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		return nil, err
	}

	if req.Sales == nil {
		return fail("validate", fmt.Errorf("%s: sales document is required", op))
	}

	salesPeriods := s.sales.DetectPeriods(req.Sales)
	bankPeriods := bank.DetectPeriods(req.BankLines)
	if !salesPeriods.Has(req.Period) && !bankPeriods.Has(req.Period) {
		return fail("period", &PeriodMismatchError{
			Requested:    req.Period,
			SalesPeriods: salesPeriods.Sorted(),
			BankPeriods:  bankPeriods.Sorted(),
		})
	}

	salesRes, err := s.sales.Parse(req.Sales, req.Period)
	if err != nil {
		return fail("parse sales", fmt.Errorf("%s: %w", op, err))
	}
	bankRes := s.bank.Parse(req.BankLines, req.Period)

	report := &Report{
		BatchID:          uuid.NewString(),
		Period:           req.Period,
		SalesLines:       len(salesRes.Lines),
		BankRows:         len(bankRes.Transactions),
		SalesRawRows:     salesRes.RawRowCount,
		SalesDropped:     salesRes.DroppedCount(),
		SalesOutOfPeriod: salesRes.OutOfPeriod,
		BankDropped:      bankRes.DroppedCount(),
		VATSnapped:       salesRes.VATSnapped,
	}

	source := req.SalesSource
	if source == "" {
		source = req.Sales.Source
	}
	batch := &store.RawSalesBatch{
		ID:               report.BatchID,
		Period:           req.Period.String(),
		Source:           source,
		RawRowCount:      report.SalesRawRows,
		SalesLines:       report.SalesLines,
		SalesDropped:     report.SalesDropped,
		SalesOutOfPeriod: report.SalesOutOfPeriod,
		VATSnapped:       report.VATSnapped,
		BankLines:        report.BankRows,
		BankDropped:      report.BankDropped,
	}

	release, err := s.locker.Acquire(ctx, lock.PeriodKey(req.Period))
	if err != nil {
		return fail("lock", fmt.Errorf("%s: %w", op, err))
	}
	defer release()

	if err := s.store.ReplaceLedger(ctx, req.Period, salesRes.Lines, bankRes.Transactions, batch); err != nil {
		return fail("store", fmt.Errorf("%s: %w", op, err))
	}

	span.SetAttributes(
		attribute.String("batch_id", report.BatchID),
		attribute.Int("sales_rows", report.SalesLines),
		attribute.Int("bank_rows", report.BankRows),
	)
	log := logger.WithPeriod(s.log, req.Period.String())
	log.Info().
		Str("batch_id", report.BatchID).
		Str("source", source).
		Int("sales_rows", report.SalesLines).
		Int("bank_rows", report.BankRows).
		Int("sales_dropped", report.SalesDropped).
		Int("bank_dropped", report.BankDropped).
		Int("vat_snapped", report.VATSnapped).
		Msg("Period ingested")

	return report, nil
}
