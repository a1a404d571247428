package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a token cannot be read as a number.
var ErrInvalidAmount = errors.New("invalid amount")

// Round2 rounds to cents, half away from zero. Every monetary step goes
// through it so totals are reproducible.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ParseStatementAmount converts a bank statement token written with a
// thousands dot and a decimal comma ("1.234,56") to a decimal. Every dot is
// treated as a thousands separator.
func ParseStatementAmount(token string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(token)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty token", ErrInvalidAmount)
	}
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, token)
	}
	return d, nil
}

// ParseNumber reads a spreadsheet cell that may be a raw number ("1234.5")
// or a localized one ("1.234,50", "1 234,50", "12,5"). When both separators
// appear, the last one is the decimal separator.
func ParseNumber(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "\u00A0", "") // non-breaking space
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}
