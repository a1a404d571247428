package bank

import (
	"github.com/shopspring/decimal"

	"finassist/internal/normalize"
)

// Amounts is what an AmountExtractor finds on a statement line. Any of the
// three may be unknown.
type Amounts struct {
	Debit   decimal.NullDecimal
	Credit  decimal.NullDecimal
	Balance decimal.NullDecimal
}

// AmountExtractor pulls the debit, credit and balance out of the
// whitespace-separated fields of one statement line. Statement layouts vary
// per bank, so the parser takes this as a strategy.
type AmountExtractor interface {
	Extract(fields []string) Amounts
}

// TrailingTokens reads the last three fields as debit, credit and balance.
// A field that is not a number leaves that amount unknown. Lines with fewer
// than three fields carry no amounts.
//
// Known false reads: when a line carries fewer than three amounts and its
// description ends in a number (a terminal or reference id), that number is
// taken as an amount. Amounts written with inner spaces are missed.
type TrailingTokens struct{}

// Extract implements AmountExtractor.
func (TrailingTokens) Extract(fields []string) Amounts {
	var out Amounts
	if len(fields) < 3 {
		return out
	}
	tail := fields[len(fields)-3:]
	out.Debit = toNull(tail[0])
	out.Credit = toNull(tail[1])
	out.Balance = toNull(tail[2])
	return out
}

func toNull(token string) decimal.NullDecimal {
	d, err := normalize.ParseStatementAmount(token)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
