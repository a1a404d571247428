package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"finassist/internal/bank"
	"finassist/internal/export"
	"finassist/internal/ingest"
	"finassist/internal/ledger"
	"finassist/internal/metrics"
	"finassist/internal/reconciliation"
	"finassist/internal/sales"
)

type monthQuery struct {
	Month string `query:"month" validate:"required,period"`
}

type topQuery struct {
	Month string `query:"month" validate:"required,period"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

type exportQuery struct {
	Month  string `query:"month" validate:"required,period"`
	Format string `query:"format" validate:"omitempty,oneof=csv xlsx CSV XLSX"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		_, err := ledger.ParsePeriod(fl.Field().String())
		return err == nil
	})
	return v
}

// bindQuery parses and validates the query string into q.
func (s *Server) bindQuery(c *fiber.Ctx, q interface{}) error {
	if err := c.QueryParser(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return s.validate.Struct(q)
}

func (s *Server) period(c *fiber.Ctx) (ledger.Period, error) {
	var q monthQuery
	if err := s.bindQuery(c, &q); err != nil {
		return "", err
	}
	return ledger.ParsePeriod(q.Month)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleUpload ingests a sales workbook (sales_excel) and a bank statement
// (bank_pdf) for ?month=. The statement may also be a .txt file holding the
// statement's text lines.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	period, err := s.period(c)
	if err != nil {
		return err
	}

	salesFile, err := c.FormFile("sales_excel")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing form file sales_excel")
	}
	bankFile, err := c.FormFile("bank_pdf")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing form file bank_pdf")
	}

	salesData, err := readFormFile(salesFile)
	if err != nil {
		return err
	}
	doc, err := sales.ReadWorkbook(bytes.NewReader(salesData), s.deps.SalesSheet)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	doc.Source = salesFile.Filename

	bankData, err := readFormFile(bankFile)
	if err != nil {
		return err
	}
	var lines []string
	if strings.EqualFold(filepath.Ext(bankFile.Filename), ".txt") {
		lines = bank.SplitLines(string(bankData))
	} else {
		lines, err = bank.ReadStatement(c.UserContext(), bankData, s.deps.OCR)
		if err != nil {
			return err
		}
	}

	report, err := s.deps.Ingest.Ingest(c.UserContext(), ingest.Request{
		Period:      period,
		Sales:       doc,
		BankLines:   lines,
		SalesSource: salesFile.Filename,
	})
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	return data, nil
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	period, err := s.period(c)
	if err != nil {
		return err
	}
	summary, err := s.deps.Metrics.Summary(c.UserContext(), period)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func (s *Server) handleDaily(c *fiber.Ctx) error {
	period, err := s.period(c)
	if err != nil {
		return err
	}
	points, err := s.deps.Metrics.DailySeries(c.UserContext(), period)
	if err != nil {
		return err
	}
	return c.JSON(orEmpty(points))
}

func (s *Server) handleTopProducts(c *fiber.Ctx) error {
	return s.handleTop(c, s.deps.Metrics.TopProducts)
}

func (s *Server) handleTopCustomers(c *fiber.Ctx) error {
	return s.handleTop(c, s.deps.Metrics.TopCustomers)
}

type topFunc func(ctx context.Context, period ledger.Period, limit int) ([]metrics.EntityTotal, error)

func (s *Server) handleTop(c *fiber.Ctx, top topFunc) error {
	var q topQuery
	if err := s.bindQuery(c, &q); err != nil {
		return err
	}
	period, err := ledger.ParsePeriod(q.Month)
	if err != nil {
		return err
	}
	entries, err := top(c.UserContext(), period, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(orEmpty(entries))
}

func (s *Server) handleVATReport(c *fiber.Ctx) error {
	period, err := s.period(c)
	if err != nil {
		return err
	}
	buckets, err := s.deps.Metrics.VATReport(c.UserContext(), period)
	if err != nil {
		return err
	}
	return c.JSON(orEmpty(buckets))
}

func (s *Server) handleVATExport(c *fiber.Ctx) error {
	var q exportQuery
	if err := s.bindQuery(c, &q); err != nil {
		return err
	}
	period, err := ledger.ParsePeriod(q.Month)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(q.Format)
	if err != nil {
		return err
	}

	buckets, err := s.deps.Metrics.VATReport(c.UserContext(), period)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.WriteVAT(&buf, format, period, buckets); err != nil {
		return err
	}
	c.Attachment(export.VATFileName(period, format))
	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.Send(buf.Bytes())
}

func (s *Server) handleAnomalies(c *fiber.Ctx) error {
	period, err := s.period(c)
	if err != nil {
		return err
	}
	report, err := s.deps.Metrics.Anomalies(c.UserContext(), period)
	if err != nil {
		return err
	}
	report.DuplicateInvoices = orEmpty(report.DuplicateInvoices)
	report.NegativeLines = orEmpty(report.NegativeLines)
	return c.JSON(report)
}

// reconRecord is the wire form of a reconciliation record.
type reconRecord struct {
	Date           string          `json:"date"`
	SalesCard      decimal.Decimal `json:"sales_card"`
	BankSettlement decimal.Decimal `json:"bank_settlement"`
	SettlementDate string          `json:"settlement_date,omitempty"`
	Fees           decimal.Decimal `json:"fees"`
	Delta          decimal.Decimal `json:"delta"`
	Detail         json.RawMessage `json:"detail,omitempty"`
}

func toReconRecords(records []ledger.ReconciliationRecord) []reconRecord {
	out := make([]reconRecord, 0, len(records))
	for _, r := range records {
		rec := reconRecord{
			Date:           r.Date.Format("2006-01-02"),
			SalesCard:      r.SalesCard,
			BankSettlement: r.BankSettlement,
			Fees:           r.Fees,
			Delta:          r.Delta,
		}
		if !r.SettlementDate.IsZero() {
			rec.SettlementDate = r.SettlementDate.Format("2006-01-02")
		}
		if json.Valid([]byte(r.Detail)) {
			rec.Detail = json.RawMessage(r.Detail)
		}
		out = append(out, rec)
	}
	return out
}

// handleReconCard recomputes the period. When only the cache write failed
// the fresh records are still served, flagged by X-Recon-Cached: false.
func (s *Server) handleReconCard(c *fiber.Ctx) error {
	period, err := s.period(c)
	if err != nil {
		return err
	}
	records, err := s.deps.Recon.Reconcile(c.UserContext(), period)
	if err != nil {
		if !errors.Is(err, reconciliation.ErrPersistence) {
			return err
		}
		s.log.Warn().Err(err).Str("period", period.String()).Msg("Serving reconciliation that was not cached")
		c.Set("X-Recon-Cached", "false")
	}
	return c.JSON(toReconRecords(records))
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
