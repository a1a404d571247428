package store

import (
	"time"

	"github.com/shopspring/decimal"

	"finassist/internal/ledger"
)

const dayLayout = "2006-01-02"

// SalesLineRow is the persisted form of ledger.SalesLine.
type SalesLineRow struct {
	ID            uint            `gorm:"primaryKey"`
	Period        string          `gorm:"type:char(2);index"`
	Day           string          `gorm:"size:10;index"`
	InvoiceNumber string          `gorm:"size:64;index"`
	Customer      string          `gorm:"size:255"`
	Product       string          `gorm:"size:255"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4)"`
	UnitPriceNet  decimal.Decimal `gorm:"type:decimal(18,4)"`
	VATRate       decimal.Decimal `gorm:"type:decimal(5,2)"`
	NetAmount     decimal.Decimal `gorm:"type:decimal(18,2)"`
	VATAmount     decimal.Decimal `gorm:"type:decimal(18,2)"`
	GrossAmount   decimal.Decimal `gorm:"type:decimal(18,2)"`
	PaymentMethod string          `gorm:"size:8"`
}

func (SalesLineRow) TableName() string { return "sales_lines" }

// BankTransactionRow is the persisted form of ledger.BankTransaction.
type BankTransactionRow struct {
	ID          uint                `gorm:"primaryKey"`
	Period      string              `gorm:"type:char(2);index"`
	Day         string              `gorm:"size:10;index"`
	Description string              `gorm:"size:512"`
	Debit       decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	Credit      decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	Balance     decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	TxType      string              `gorm:"size:32;index"`
}

func (BankTransactionRow) TableName() string { return "bank_transactions" }

// ReconciliationRow is a cached reconciliation record.
type ReconciliationRow struct {
	ID             uint            `gorm:"primaryKey"`
	Period         string          `gorm:"type:char(2);index"`
	Day            string          `gorm:"size:10"`
	SalesCard      decimal.Decimal `gorm:"type:decimal(18,2)"`
	BankSettlement decimal.Decimal `gorm:"type:decimal(18,2)"`
	SettlementDay  string          `gorm:"size:10"`
	Fees           decimal.Decimal `gorm:"type:decimal(18,2)"`
	Delta          decimal.Decimal `gorm:"type:decimal(18,2)"`
	Detail         string          `gorm:"type:text"`
}

func (ReconciliationRow) TableName() string { return "reconciliation_records" }

// RawSalesBatch is the audit record written for every ingestion.
type RawSalesBatch struct {
	ID               string `gorm:"primaryKey;size:36"`
	Period           string `gorm:"type:char(2);index"`
	Source           string `gorm:"size:255"`
	RawRowCount      int
	SalesLines       int
	SalesDropped     int
	SalesOutOfPeriod int
	VATSnapped       int
	BankLines        int
	BankDropped      int
	CreatedAt        time.Time
}

func (RawSalesBatch) TableName() string { return "raw_sales_batches" }

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dayLayout)
}

func parseDay(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toSalesRow(l ledger.SalesLine) SalesLineRow {
	return SalesLineRow{
		Period:        ledger.PeriodOf(l.Date).String(),
		Day:           formatDay(l.Date),
		InvoiceNumber: l.InvoiceNumber,
		Customer:      l.Customer,
		Product:       l.Product,
		Quantity:      l.Quantity,
		UnitPriceNet:  l.UnitPriceNet,
		VATRate:       l.VATRate,
		NetAmount:     l.NetAmount,
		VATAmount:     l.VATAmount,
		GrossAmount:   l.GrossAmount,
		PaymentMethod: string(l.PaymentMethod),
	}
}

func (r SalesLineRow) toLedger() ledger.SalesLine {
	return ledger.SalesLine{
		Date:          parseDay(r.Day),
		InvoiceNumber: r.InvoiceNumber,
		Customer:      r.Customer,
		Product:       r.Product,
		Quantity:      r.Quantity,
		UnitPriceNet:  r.UnitPriceNet,
		VATRate:       r.VATRate,
		NetAmount:     r.NetAmount,
		VATAmount:     r.VATAmount,
		GrossAmount:   r.GrossAmount,
		PaymentMethod: ledger.PaymentMethod(r.PaymentMethod),
	}
}

func toBankRow(t ledger.BankTransaction) BankTransactionRow {
	return BankTransactionRow{
		Period:      ledger.PeriodOf(t.Date).String(),
		Day:         formatDay(t.Date),
		Description: t.Description,
		Debit:       t.Debit,
		Credit:      t.Credit,
		Balance:     t.Balance,
		TxType:      string(t.Type),
	}
}

func (r BankTransactionRow) toLedger() ledger.BankTransaction {
	return ledger.BankTransaction{
		Date:        parseDay(r.Day),
		Description: r.Description,
		Debit:       r.Debit,
		Credit:      r.Credit,
		Balance:     r.Balance,
		Type:        ledger.TxType(r.TxType),
	}
}

func toReconciliationRow(period ledger.Period, rec ledger.ReconciliationRecord) ReconciliationRow {
	return ReconciliationRow{
		Period:         period.String(),
		Day:            formatDay(rec.Date),
		SalesCard:      rec.SalesCard,
		BankSettlement: rec.BankSettlement,
		SettlementDay:  formatDay(rec.SettlementDate),
		Fees:           rec.Fees,
		Delta:          rec.Delta,
		Detail:         rec.Detail,
	}
}

func (r ReconciliationRow) toLedger() ledger.ReconciliationRecord {
	return ledger.ReconciliationRecord{
		Date:           parseDay(r.Day),
		SalesCard:      r.SalesCard,
		BankSettlement: r.BankSettlement,
		SettlementDate: parseDay(r.SettlementDay),
		Fees:           r.Fees,
		Delta:          r.Delta,
		Detail:         r.Detail,
	}
}
