package normalize

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"finassist/internal/ledger"
)

// SnapMode selects how a VAT rate outside the allowed set is coerced.
type SnapMode string

const (
	// SnapStandard maps any positive rate to 14 and everything else to 0.
	// Intermediate rates (5, 7) are lost when the cell is malformed, so
	// snapped rows are reported.
	SnapStandard SnapMode = "standard"
	// SnapNearest maps a positive rate to the closest allowed rate.
	SnapNearest SnapMode = "nearest"
)

// ParseSnapMode validates a configured mode. Empty means SnapStandard.
func ParseSnapMode(s string) (SnapMode, error) {
	switch SnapMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SnapStandard:
		return SnapStandard, nil
	case SnapNearest:
		return SnapNearest, nil
	default:
		return "", fmt.Errorf("unknown VAT snap mode %q (use standard or nearest)", s)
	}
}

// VATResult is the outcome of coercing a VAT cell.
type VATResult struct {
	Rate decimal.Decimal
	Raw  string
	// Snapped is set when the raw value was unparseable or not an allowed
	// rate and Rate was substituted.
	Snapped bool
}

var (
	standardRate = decimal.NewFromInt(14)
	hundred      = decimal.NewFromInt(100)
)

// CoerceVATRate reads a VAT percentage cell ("14", "14%", "14,0", " 7 % ")
// and forces it into ledger.AllowedVATRates. A bare fraction between 0 and 1
// is a percent-formatted cell read raw ("0.14") and is scaled by 100 first.
func CoerceVATRate(value string, mode SnapMode) VATResult {
	res := VATResult{Raw: value}

	cleaned := strings.ReplaceAll(value, "%", "")
	cleaned = strings.Join(strings.Fields(cleaned), "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		res.Rate = decimal.Zero
		return res
	}

	rate, err := decimal.NewFromString(cleaned)
	if err != nil {
		res.Rate = decimal.Zero
		res.Snapped = true
		return res
	}

	if !strings.Contains(value, "%") && rate.IsPositive() && rate.LessThan(decimal.NewFromInt(1)) {
		rate = rate.Mul(hundred)
	}

	for _, allowed := range ledger.AllowedVATRates {
		if rate.Equal(allowed) {
			res.Rate = allowed
			return res
		}
	}

	res.Snapped = true
	if !rate.IsPositive() {
		res.Rate = decimal.Zero
		return res
	}
	if mode == SnapNearest {
		res.Rate = nearestAllowed(rate)
		return res
	}
	res.Rate = standardRate
	return res
}

// nearestAllowed returns the allowed rate closest to rate; ties go to the lower.
func nearestAllowed(rate decimal.Decimal) decimal.Decimal {
	best := ledger.AllowedVATRates[0]
	bestDiff := rate.Sub(best).Abs()
	for _, allowed := range ledger.AllowedVATRates[1:] {
		if diff := rate.Sub(allowed).Abs(); diff.LessThan(bestDiff) {
			best, bestDiff = allowed, diff
		}
	}
	return best
}
