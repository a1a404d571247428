// Package export writes reports as downloadable files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"finassist/internal/ledger"
	"finassist/internal/metrics"
)

// ErrUnknownFormat is returned for a format other than csv or xlsx.
var ErrUnknownFormat = errors.New("unknown export format")

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx" in any case; empty means csv.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// VATFileName is the attachment name for a period's VAT report.
func VATFileName(period ledger.Period, f Format) string {
	return fmt.Sprintf("vat_%s.%s", period, f)
}

var vatHeader = []string{"vat_rate", "net", "vat", "gross"}

// WriteVAT writes the VAT buckets in the given format.
func WriteVAT(w io.Writer, f Format, period ledger.Period, buckets []metrics.VATBucket) error {
	switch f {
	case FormatCSV:
		return WriteVATCSV(w, buckets)
	case FormatXLSX:
		return WriteVATXLSX(w, period, buckets)
	default:
		return fmt.Errorf("WriteVAT: %w: %q", ErrUnknownFormat, f)
	}
}

// WriteVATCSV writes one row per rate with amounts at two decimals.
func WriteVATCSV(w io.Writer, buckets []metrics.VATBucket) error {
	const op = "WriteVATCSV"

	writer := csv.NewWriter(w)
	if err := writer.Write(vatHeader); err != nil {
		return fmt.Errorf("%s: failed to write header: %w", op, err)
	}
	for _, b := range buckets {
		row := []string{b.Rate.String(), b.Net.StringFixed(2), b.VAT.StringFixed(2), b.Gross.StringFixed(2)}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("%s: failed to write row: %w", op, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// WriteVATXLSX writes a single-sheet workbook named after the period. Amounts
// are numeric cells so the sheet can be summed.
func WriteVATXLSX(w io.Writer, period ledger.Period, buckets []metrics.VATBucket) error {
	const op = "WriteVATXLSX"

	f := excelize.NewFile()
	defer f.Close()

	sheet := "IVA " + period.String()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	header := make([]interface{}, len(vatHeader))
	for i, h := range vatHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s: failed to write header: %w", op, err)
	}

	for i, b := range buckets {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		row := []interface{}{
			b.Rate.InexactFloat64(),
			b.Net.InexactFloat64(),
			b.VAT.InexactFloat64(),
			b.Gross.InexactFloat64(),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s: failed to write row %d: %w", op, i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
