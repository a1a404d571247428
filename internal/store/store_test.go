package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finassist/internal/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func date(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func saleOn(day time.Time, invoice, gross string) ledger.SalesLine {
	return ledger.SalesLine{
		Date:          day,
		InvoiceNumber: invoice,
		Customer:      ledger.DefaultCustomer,
		Product:       "Café",
		Quantity:      dec("1"),
		UnitPriceNet:  dec(gross),
		VATRate:       dec("0"),
		NetAmount:     dec(gross),
		VATAmount:     dec("0"),
		GrossAmount:   dec(gross),
		PaymentMethod: ledger.PaymentCard,
	}
}

func TestReplaceLedgerRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sales := []ledger.SalesLine{
		saleOn(date(9, 5), "FR 1", "100.50"),
		saleOn(date(9, 6), "FR 2", "0.07"),
	}
	bank := []ledger.BankTransaction{
		{
			Date:        date(9, 6),
			Description: "Fecho TPA",
			Debit:       decimal.NewNullDecimal(dec("0")),
			Credit:      decimal.NewNullDecimal(dec("950.25")),
			Type:        ledger.TxSettlementCredit,
		},
	}
	batch := &RawSalesBatch{ID: "b-1", Period: "09", Source: "test.xlsx", RawRowCount: 3, SalesLines: 2}

	if err := s.ReplaceLedger(ctx, "09", sales, bank, batch); err != nil {
		t.Fatalf("replace: %v", err)
	}

	gotSales, err := s.SalesLines(ctx, "09")
	if err != nil {
		t.Fatalf("sales: %v", err)
	}
	if len(gotSales) != 2 {
		t.Fatalf("sales: got %d, want 2", len(gotSales))
	}
	if gotSales[0].InvoiceNumber != "FR 1" || !gotSales[0].GrossAmount.Equal(dec("100.5")) {
		t.Errorf("sales[0]: got %+v", gotSales[0])
	}
	if !gotSales[1].Date.Equal(date(9, 6)) || !gotSales[1].GrossAmount.Equal(dec("0.07")) {
		t.Errorf("sales[1]: got %+v", gotSales[1])
	}

	gotBank, err := s.BankTransactions(ctx, "09")
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	if len(gotBank) != 1 {
		t.Fatalf("bank: got %d, want 1", len(gotBank))
	}
	if !gotBank[0].Credit.Valid || !gotBank[0].Credit.Decimal.Equal(dec("950.25")) {
		t.Errorf("credit: got %v", gotBank[0].Credit)
	}
	if gotBank[0].Balance.Valid {
		t.Errorf("unknown balance should stay unknown, got %v", gotBank[0].Balance)
	}
	if gotBank[0].Type != ledger.TxSettlementCredit {
		t.Errorf("type: got %q", gotBank[0].Type)
	}

	batches, err := s.Batches(ctx, "09")
	if err != nil {
		t.Fatalf("batches: %v", err)
	}
	if len(batches) != 1 || batches[0].RawRowCount != 3 || batches[0].CreatedAt.IsZero() {
		t.Errorf("batches: got %+v", batches)
	}
}

func TestReplaceLedgerIsIdempotentPerPeriod(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sales := []ledger.SalesLine{saleOn(date(9, 5), "FR 1", "10")}
	october := []ledger.SalesLine{saleOn(date(10, 1), "FR 9", "5")}

	if err := s.ReplaceLedger(ctx, "10", october, nil, nil); err != nil {
		t.Fatalf("replace 10: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.ReplaceLedger(ctx, "09", sales, nil, nil); err != nil {
			t.Fatalf("replace 09 #%d: %v", i, err)
		}
	}

	got, err := s.SalesLines(ctx, "09")
	if err != nil {
		t.Fatalf("sales: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("re-ingest duplicated rows: got %d, want 1", len(got))
	}
	other, err := s.SalesLines(ctx, "10")
	if err != nil {
		t.Fatalf("sales 10: %v", err)
	}
	if len(other) != 1 {
		t.Errorf("other period touched: got %d, want 1", len(other))
	}

	periods, err := s.Periods(ctx)
	if err != nil {
		t.Fatalf("periods: %v", err)
	}
	if len(periods) != 2 || periods[0] != "09" || periods[1] != "10" {
		t.Errorf("periods: got %v", periods)
	}
}

func TestBankTransactionsOnCrossesPeriods(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	october := []ledger.BankTransaction{{
		Date:   date(10, 1),
		Credit: decimal.NewNullDecimal(dec("80")),
		Type:   ledger.TxSettlementCredit,
	}}
	if err := s.ReplaceLedger(ctx, "10", nil, october, nil); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := s.BankTransactionsOn(ctx, date(10, 1))
	if err != nil {
		t.Fatalf("on: %v", err)
	}
	if len(got) != 1 || !got[0].Credit.Decimal.Equal(dec("80")) {
		t.Errorf("got %+v", got)
	}

	none, err := s.BankTransactionsOn(ctx, date(10, 2))
	if err != nil {
		t.Fatalf("on: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no transactions, got %d", len(none))
	}
}

func TestReplaceReconciliation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []ledger.ReconciliationRecord{
		{Date: date(9, 6), SalesCard: dec("10"), Delta: dec("10"), Detail: `{"card":"10"}`},
		{Date: date(9, 5), SalesCard: dec("1000"), BankSettlement: dec("950"), SettlementDate: date(9, 5), Delta: dec("50")},
	}
	if err := s.ReplaceReconciliation(ctx, "09", first); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := s.ReplaceReconciliation(ctx, "09", first[1:]); err != nil {
		t.Fatalf("replace again: %v", err)
	}

	got, err := s.ReconciliationRecords(ctx, "09")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("records: got %d, want 1", len(got))
	}
	if !got[0].Delta.Equal(dec("50")) || !got[0].SettlementDate.Equal(date(9, 5)) {
		t.Errorf("record: got %+v", got[0])
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("postgres", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
