package export

import (
	"bytes"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"finassist/internal/metrics"
)

func buckets() []metrics.VATBucket {
	return []metrics.VATBucket{
		{Rate: decimal.NewFromInt(0), Net: decimal.RequireFromString("20"), VAT: decimal.Zero, Gross: decimal.RequireFromString("20")},
		{Rate: decimal.NewFromInt(14), Net: decimal.RequireFromString("150.5"), VAT: decimal.RequireFromString("21.07"), Gross: decimal.RequireFromString("171.57")},
	}
}

func TestWriteVATCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteVATCSV(&buf, buckets()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "vat_rate,net,vat,gross\n0,20.00,0.00,20.00\n14,150.50,21.07,171.57\n"
	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteVATCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteVATCSV(&buf, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buf.String(); got != "vat_rate,net,vat,gross\n" {
		t.Errorf("got %q", got)
	}
}

func TestWriteVATXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteVAT(&buf, FormatXLSX, "09", buckets()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("written workbook does not open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("IVA 09")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want 3", len(rows))
	}
	if rows[0][0] != "vat_rate" || rows[0][3] != "gross" {
		t.Errorf("header: got %v", rows[0])
	}
	if rows[2][0] != "14" || rows[2][1] != "150.5" {
		t.Errorf("row 2: got %v", rows[2])
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatCSV},
		{"csv", FormatCSV},
		{"XLSX", FormatXLSX},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if got := VATFileName("09", FormatXLSX); got != "vat_09.xlsx" {
		t.Errorf("file name: got %q", got)
	}
}
