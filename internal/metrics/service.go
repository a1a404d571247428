package metrics

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"finassist/internal/ledger"
	"finassist/internal/logger"
)

// SalesSource loads the sales lines of a period.
type SalesSource interface {
	SalesLines(ctx context.Context, period ledger.Period) ([]ledger.SalesLine, error)
}

// Service answers metric queries from the store.
type Service struct {
	source SalesSource
	opts   AnomalyOptions
	log    zerolog.Logger
}

// NewService creates a metrics service.
func NewService(source SalesSource, opts AnomalyOptions) *Service {
	return &Service{
		source: source,
		opts:   opts,
		log:    logger.WithComponent("metrics"),
	}
}

func (s *Service) load(ctx context.Context, op string, period ledger.Period) ([]ledger.SalesLine, error) {
	lines, err := s.source.SalesLines(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load sales for %s: %w", op, period, err)
	}
	s.log.Debug().Str("op", op).Str("period", period.String()).Int("lines", len(lines)).Msg("Sales loaded")
	return lines, nil
}

// Summary returns the period totals, or ErrNoData.
func (s *Service) Summary(ctx context.Context, period ledger.Period) (*Summary, error) {
	const op = "Summary"
	lines, err := s.load(ctx, op, period)
	if err != nil {
		return nil, err
	}
	summary, err := Summarize(period, lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return summary, nil
}

func (s *Service) DailySeries(ctx context.Context, period ledger.Period) ([]DailyPoint, error) {
	lines, err := s.load(ctx, "DailySeries", period)
	if err != nil {
		return nil, err
	}
	return DailySeries(lines), nil
}

func (s *Service) TopProducts(ctx context.Context, period ledger.Period, limit int) ([]EntityTotal, error) {
	lines, err := s.load(ctx, "TopProducts", period)
	if err != nil {
		return nil, err
	}
	return TopProducts(lines, limit), nil
}

func (s *Service) TopCustomers(ctx context.Context, period ledger.Period, limit int) ([]EntityTotal, error) {
	lines, err := s.load(ctx, "TopCustomers", period)
	if err != nil {
		return nil, err
	}
	return TopCustomers(lines, limit), nil
}

func (s *Service) VATReport(ctx context.Context, period ledger.Period) ([]VATBucket, error) {
	lines, err := s.load(ctx, "VATReport", period)
	if err != nil {
		return nil, err
	}
	return VATReport(lines), nil
}

// Anomalies uses the thresholds the service was built with.
func (s *Service) Anomalies(ctx context.Context, period ledger.Period) (AnomalyReport, error) {
	lines, err := s.load(ctx, "Anomalies", period)
	if err != nil {
		return AnomalyReport{}, err
	}
	report := Anomalies(lines, s.opts)
	if n := len(report.DuplicateInvoices) + len(report.NegativeLines); n > 0 {
		s.log.Info().
			Str("period", period.String()).
			Int("duplicate_invoices", len(report.DuplicateInvoices)).
			Int("negative_lines", len(report.NegativeLines)).
			Msg("Anomalies found")
	}
	return report, nil
}
