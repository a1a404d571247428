// Package ledger holds the canonical rows shared by the parsers, the
// reconciliation engine and the metrics engine.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCustomer is used when the sales sheet carries no customer column.
const DefaultCustomer = "Consumidor Final"

// PaymentMethod is the closed classification of how a sale was paid.
type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

// TxType classifies a bank statement line.
type TxType string

const (
	TxSettlementCredit TxType = "settlement_credit" // Fecho TPA
	TxCommissionFee    TxType = "commission_fee"    // Comissão ... STC
	TxCommissionVAT    TxType = "commission_vat"    // IVA s/Comissão
	TxInternalTransfer TxType = "internal_transfer"
	TxReserve          TxType = "reserve"
	TxOther            TxType = "other"
)

// IsFee reports whether debits of this type count as settlement fees.
func (t TxType) IsFee() bool {
	return t == TxCommissionFee || t == TxCommissionVAT
}

// SalesLine is one invoice line from the point-of-sale export.
type SalesLine struct {
	Date          time.Time
	InvoiceNumber string
	Customer      string
	Product       string
	Quantity      decimal.Decimal
	UnitPriceNet  decimal.Decimal
	VATRate       decimal.Decimal // one of AllowedVATRates
	NetAmount     decimal.Decimal
	VATAmount     decimal.Decimal
	GrossAmount   decimal.Decimal
	PaymentMethod PaymentMethod
}

// BankTransaction is one line of the bank statement. Any amount may be
// unknown when the source line could not be converted.
type BankTransaction struct {
	Date        time.Time
	Description string
	Debit       decimal.NullDecimal
	Credit      decimal.NullDecimal
	Balance     decimal.NullDecimal
	Type        TxType
}

// ReconciliationRecord is the derived per-day comparison of card sales and
// the net bank settlement. It is recomputed, never edited.
type ReconciliationRecord struct {
	Date           time.Time
	SalesCard      decimal.Decimal
	BankSettlement decimal.Decimal
	// SettlementDate is the day the matched credit was booked; it differs
	// from Date when the next-day fallback was used and is zero when no
	// credit matched.
	SettlementDate time.Time
	Fees           decimal.Decimal
	Delta          decimal.Decimal
	Detail         string
}

// AllowedVATRates is the fixed set of VAT percentages a sales line may carry.
var AllowedVATRates = []decimal.Decimal{
	decimal.NewFromInt(0),
	decimal.NewFromInt(5),
	decimal.NewFromInt(7),
	decimal.NewFromInt(14),
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
