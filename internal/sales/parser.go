// Package sales turns a point-of-sale invoice-line export into ledger sales lines.
package sales

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"finassist/internal/ledger"
	"finassist/internal/logger"
	"finassist/internal/normalize"
)

var hundred = decimal.NewFromInt(100)

// Result holds the lines that survived parsing and what happened to the rest.
type Result struct {
	Lines []ledger.SalesLine
	// RawRowCount is the number of data rows in the sheet before any filtering.
	RawRowCount int
	OutOfPeriod int
	Dropped     []*RowError
	// VATSnapped counts kept lines whose VAT cell was coerced to an allowed rate.
	VATSnapped int
}

// DroppedCount returns the number of rows lost to conversion errors.
func (r *Result) DroppedCount() int {
	return len(r.Dropped)
}

// Parser converts sales Documents to ledger lines.
type Parser struct {
	dates   *normalize.DateParser
	vatMode normalize.SnapMode
	log     zerolog.Logger
}

// NewParser creates a sales parser sharing the given date parser.
func NewParser(dates *normalize.DateParser, vatMode normalize.SnapMode) *Parser {
	return &Parser{
		dates:   dates,
		vatMode: vatMode,
		log:     logger.WithComponent("sales-parser"),
	}
}

// Parse converts every row of doc dated within period. A row that cannot be
// converted is dropped and recorded in Result.Dropped; the batch carries on.
func (p *Parser) Parse(doc *Document, period ledger.Period) (*Result, error) {
	const op = "Parse"

	cols := indexColumns(doc.Header)
	for _, required := range []string{colIssueDate, colUnitPriceNet} {
		if !cols.has(required) {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrMissingColumn, required)
		}
	}

	res := &Result{RawRowCount: len(doc.Rows)}
	for i, row := range doc.Rows {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}

		line, inPeriod, snapped, err := p.convertRow(cols, row, rowNum, period)
		if err != nil {
			p.log.Debug().Err(err).Int("row", rowNum).Msg("Dropping sales row")
			res.Dropped = append(res.Dropped, err)
			continue
		}
		if !inPeriod {
			res.OutOfPeriod++
			continue
		}
		if snapped {
			res.VATSnapped++
		}
		res.Lines = append(res.Lines, line)
	}

	event := p.log.Info()
	if res.DroppedCount() > 0 || res.VATSnapped > 0 {
		event = p.log.Warn()
	}
	event.
		Str("source", doc.Source).
		Str("period", period.String()).
		Int("raw_rows", res.RawRowCount).
		Int("lines", len(res.Lines)).
		Int("out_of_period", res.OutOfPeriod).
		Int("dropped", res.DroppedCount()).
		Int("vat_snapped", res.VATSnapped).
		Msg("Sales sheet parsed")

	return res, nil
}

// convertRow builds one sales line. Conversion panics are turned into a
// RowError so one malformed row cannot abort the batch.
func (p *Parser) convertRow(cols columnIndex, row []string, rowNum int, period ledger.Period) (line ledger.SalesLine, inPeriod, snapped bool, rowErr *RowError) {
	defer func() {
		if rec := recover(); rec != nil {
			rowErr = &RowError{Row: rowNum, Err: fmt.Errorf("%w: %v", ErrRowPanic, rec)}
		}
	}()

	date, err := p.dates.Parse(cols.cell(row, colIssueDate))
	if err != nil {
		return line, false, false, &RowError{Row: rowNum, Field: colIssueDate, Err: err}
	}
	if !period.Contains(date) {
		return line, false, false, nil
	}

	invoice := cols.cell(row, colNumber)
	if invoice == "" {
		invoice = cols.cell(row, colDocument)
	}
	if invoice == "" {
		// Kept: its amounts still belong to the month's totals.
		p.log.Debug().Int("row", rowNum).Msg("Sales row has no invoice number")
	}

	quantity := decimal.NewFromInt(1)
	if raw := cols.cell(row, colQuantity); raw != "" {
		q, err := normalize.ParseNumber(raw)
		if err != nil {
			return line, false, false, &RowError{Row: rowNum, Field: colQuantity, Err: err}
		}
		if q.IsNegative() {
			return line, false, false, &RowError{Row: rowNum, Field: colQuantity, Err: ErrNegativeQuantity}
		}
		if !q.IsZero() {
			quantity = q
		}
	}

	unitNet := decimal.Zero
	if raw := cols.cell(row, colUnitPriceNet); raw != "" {
		u, err := normalize.ParseNumber(raw)
		if err != nil {
			return line, false, false, &RowError{Row: rowNum, Field: colUnitPriceNet, Err: err}
		}
		unitNet = u
	}

	vat := normalize.CoerceVATRate(cols.cell(row, colVATRate), p.vatMode)
	if vat.Snapped {
		p.log.Debug().
			Int("row", rowNum).
			Str("raw", vat.Raw).
			Str("rate", vat.Rate.String()).
			Msg("VAT rate outside allowed set, snapped")
	}

	// Each step is rounded on its own; rounding once at the end gives
	// different totals.
	net := normalize.Round2(unitNet.Mul(quantity))
	vatAmount := normalize.Round2(net.Mul(vat.Rate).Div(hundred))
	gross := normalize.Round2(net.Add(vatAmount))

	customer := cols.cell(row, colCustomer)
	if customer == "" {
		customer = ledger.DefaultCustomer
	}

	line = ledger.SalesLine{
		Date:          date,
		InvoiceNumber: invoice,
		Customer:      customer,
		Product:       cols.cell(row, colProduct),
		Quantity:      quantity,
		UnitPriceNet:  unitNet,
		VATRate:       vat.Rate,
		NetAmount:     net,
		VATAmount:     vatAmount,
		GrossAmount:   gross,
		PaymentMethod: normalize.ClassifyPaymentMethod(cols.cell(row, colPaymentMethod)),
	}
	return line, true, vat.Snapped, nil
}

// DetectPeriods lists the periods present in doc, looking at dates only.
// Rows without a readable date are ignored.
func (p *Parser) DetectPeriods(doc *Document) ledger.PeriodSet {
	found := ledger.PeriodSet{}
	cols := indexColumns(doc.Header)
	if !cols.has(colIssueDate) {
		return found
	}
	for _, row := range doc.Rows {
		date, err := p.dates.Parse(cols.cell(row, colIssueDate))
		if err != nil {
			continue
		}
		found.Add(ledger.PeriodOf(date))
	}
	return found
}
