package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finassist/internal/ledger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(d int, invoice, product, customer, rate, net, vat string, method ledger.PaymentMethod) ledger.SalesLine {
	n, v := dec(net), dec(vat)
	return ledger.SalesLine{
		Date:          time.Date(2025, 9, d, 0, 0, 0, 0, time.UTC),
		InvoiceNumber: invoice,
		Customer:      customer,
		Product:       product,
		Quantity:      dec("1"),
		UnitPriceNet:  n,
		VATRate:       dec(rate),
		NetAmount:     n,
		VATAmount:     v,
		GrossAmount:   n.Add(v),
		PaymentMethod: method,
	}
}

func sampleLines() []ledger.SalesLine {
	return []ledger.SalesLine{
		line(5, "FR 1", "Café", "Ana", "14", "100", "14", ledger.PaymentCard),
		line(5, "FR 1", "Pão", "Ana", "7", "10", "0.70", ledger.PaymentCard),
		line(6, "FR 2", "Água", "Rui", "5", "20", "1", ledger.PaymentCash),
		line(6, "FR 3", "Café", ledger.DefaultCustomer, "14", "50", "7", ledger.PaymentCash),
		line(7, "FR 4", "Livro", "Rui", "0", "0.01", "0", ledger.PaymentCard),
	}
}

func TestSummarize(t *testing.T) {
	s, err := Summarize("09", sampleLines())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"net", s.TotalNet, "180.01"},
		{"vat", s.TotalVAT, "22.70"},
		{"gross", s.TotalGross, "202.71"},
		{"card", s.CardGross, "124.71"},
		{"cash", s.CashGross, "78"},
		{"share", s.CardSharePct, "61.52"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Errorf("%s: got %s, want %s", c.name, c.got, c.want)
		}
	}
}

func TestSummarizeNoData(t *testing.T) {
	if _, err := Summarize("09", nil); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestSummarizeZeroGross(t *testing.T) {
	lines := []ledger.SalesLine{
		line(5, "FR 1", "X", "A", "0", "0", "0", ledger.PaymentCard),
	}
	s, err := Summarize("09", lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.CardSharePct.IsZero() {
		t.Errorf("card share: got %s, want 0", s.CardSharePct)
	}
}

func TestDailySeries(t *testing.T) {
	points := DailySeries(sampleLines())
	if len(points) != 3 {
		t.Fatalf("points: got %d, want 3", len(points))
	}
	for i := 1; i < len(points); i++ {
		if !points[i-1].Date.Before(points[i].Date) {
			t.Errorf("not ascending at %d", i)
		}
	}
	first := points[0]
	if first.Date.Day() != 5 || !first.Gross.Equal(dec("124.70")) || !first.Card.Equal(dec("124.70")) || !first.Cash.IsZero() {
		t.Errorf("first point: got %+v", first)
	}
	second := points[1]
	if !second.Cash.Equal(dec("78")) || !second.Card.IsZero() {
		t.Errorf("second point: got %+v", second)
	}
}

func TestTopProducts(t *testing.T) {
	got := TopProducts(sampleLines(), 2)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Name != "Café" || !got[0].Gross.Equal(dec("171")) {
		t.Errorf("first: got %+v", got[0])
	}
	if got[1].Name != "Água" {
		t.Errorf("second: got %+v", got[1])
	}
}

func TestTopBreaksTiesByName(t *testing.T) {
	lines := []ledger.SalesLine{
		line(5, "1", "B", "Zé", "0", "10", "0", ledger.PaymentCash),
		line(5, "2", "A", "Ana", "0", "10", "0", ledger.PaymentCash),
		line(5, "3", "C", "Maria", "0", "10", "0", ledger.PaymentCash),
	}
	got := TopCustomers(lines, 0)
	if len(got) != 3 {
		t.Fatalf("got %d entries", len(got))
	}
	if got[0].Name != "Ana" || got[1].Name != "Maria" || got[2].Name != "Zé" {
		t.Errorf("tie order: got %v", got)
	}
}

func TestTopDefaultLimit(t *testing.T) {
	var lines []ledger.SalesLine
	for i := 0; i < 15; i++ {
		lines = append(lines, line(5, "x", fmt.Sprintf("P%02d", i), "c", "0", "1", "0", ledger.PaymentCash))
	}
	if got := TopProducts(lines, -1); len(got) != DefaultTopLimit {
		t.Errorf("got %d entries, want %d", len(got), DefaultTopLimit)
	}
}

func TestVATReportSumsToSummary(t *testing.T) {
	lines := sampleLines()
	buckets := VATReport(lines)

	if len(buckets) != 4 {
		t.Fatalf("buckets: got %d, want 4", len(buckets))
	}
	for i := 1; i < len(buckets); i++ {
		if !buckets[i-1].Rate.LessThan(buckets[i].Rate) {
			t.Errorf("buckets not ascending at %d", i)
		}
	}

	var net, vat, gross decimal.Decimal
	for _, b := range buckets {
		net = net.Add(b.Net)
		vat = vat.Add(b.VAT)
		gross = gross.Add(b.Gross)
	}
	s, err := Summarize("09", lines)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !net.Equal(s.TotalNet) || !vat.Equal(s.TotalVAT) || !gross.Equal(s.TotalGross) {
		t.Errorf("bucket sums %s/%s/%s differ from summary %s/%s/%s", net, vat, gross, s.TotalNet, s.TotalVAT, s.TotalGross)
	}
}

func TestAnomalies(t *testing.T) {
	lines := []ledger.SalesLine{
		line(5, "FR 7", "A", "c", "0", "10", "0", ledger.PaymentCash),
		line(5, "FR 7", "B", "c", "0", "10", "0", ledger.PaymentCash),
		line(5, "FR 7", "C", "c", "0", "10", "0", ledger.PaymentCash),
		line(6, "FR 8", "Devolução", "c", "0", "-15", "0", ledger.PaymentCash),
	}

	report := Anomalies(lines, AnomalyOptions{})
	if len(report.DuplicateInvoices) != 0 {
		t.Errorf("a three-line invoice must not be flagged: %+v", report.DuplicateInvoices)
	}
	if len(report.NegativeLines) != 1 || report.NegativeLines[0].InvoiceNumber != "FR 8" || !report.NegativeLines[0].Gross.Equal(dec("-15")) {
		t.Errorf("negative lines: got %+v", report.NegativeLines)
	}

	lines = append(lines, line(7, "FR 7", "D", "c", "0", "10", "0", ledger.PaymentCash))
	report = Anomalies(lines, AnomalyOptions{})
	if len(report.DuplicateInvoices) != 1 || report.DuplicateInvoices[0] != (DuplicateInvoice{InvoiceNumber: "FR 7", Lines: 4}) {
		t.Errorf("duplicates: got %+v", report.DuplicateInvoices)
	}
}

func TestUnnumberedLinesCountInTotals(t *testing.T) {
	lines := []ledger.SalesLine{
		line(5, "FR 1", "Café", "Ana", "14", "100", "14", ledger.PaymentCard),
		line(5, "", "Bolo", "Ana", "14", "50", "7", ledger.PaymentCard),
		line(5, "", "Bolo", "Ana", "14", "50", "7", ledger.PaymentCard),
		line(5, "", "Bolo", "Ana", "14", "50", "7", ledger.PaymentCard),
		line(5, "", "Bolo", "Ana", "14", "50", "7", ledger.PaymentCard),
	}

	s, err := Summarize("09", lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.TotalGross.Equal(dec("342")) {
		t.Errorf("total gross: got %s, want 342", s.TotalGross)
	}
	if got := Anomalies(lines, AnomalyOptions{}); len(got.DuplicateInvoices) != 0 {
		t.Errorf("unnumbered lines flagged as duplicates: %+v", got.DuplicateInvoices)
	}
}

func TestAnomaliesNegativeSampleCap(t *testing.T) {
	var lines []ledger.SalesLine
	for i := 0; i < 10; i++ {
		lines = append(lines, line(5, fmt.Sprintf("N%d", i), "x", "c", "0", "-1", "0", ledger.PaymentCash))
	}
	report := Anomalies(lines, AnomalyOptions{NegativeSample: 4})
	if len(report.NegativeLines) != 4 {
		t.Fatalf("got %d negative lines, want 4", len(report.NegativeLines))
	}
	if report.NegativeLines[0].InvoiceNumber != "N0" || report.NegativeLines[3].InvoiceNumber != "N3" {
		t.Errorf("sample should keep ledger order: %+v", report.NegativeLines)
	}
}

type fakeSource struct {
	lines []ledger.SalesLine
	err   error
}

func (f fakeSource) SalesLines(context.Context, ledger.Period) ([]ledger.SalesLine, error) {
	return f.lines, f.err
}

func TestServiceSummary(t *testing.T) {
	ctx := context.Background()

	if _, err := NewService(fakeSource{}, AnomalyOptions{}).Summary(ctx, "09"); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}

	loadErr := errors.New("db down")
	if _, err := NewService(fakeSource{err: loadErr}, AnomalyOptions{}).VATReport(ctx, "09"); !errors.Is(err, loadErr) {
		t.Errorf("expected load error, got %v", err)
	}

	s, err := NewService(fakeSource{lines: sampleLines()}, AnomalyOptions{}).Summary(ctx, "09")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Period != "09" || !s.TotalGross.Equal(dec("202.71")) {
		t.Errorf("got %+v", s)
	}
}
