package normalize

import (
	"strings"

	"finassist/internal/ledger"
)

var cardMarkers = []string{"card", "cartão", "cartao", "multicaixa", "tpa"}

var cashMarkers = []string{"cash", "numerário", "numerario", "dinheiro", "money"}

// ClassifyPaymentMethod maps a free-text payment label to card or cash.
// Unrecognized labels count as cash so they stay in the totals.
func ClassifyPaymentMethod(label string) ledger.PaymentMethod {
	lower := strings.ToLower(label)
	for _, marker := range cardMarkers {
		if strings.Contains(lower, marker) {
			return ledger.PaymentCard
		}
	}
	for _, marker := range cashMarkers {
		if strings.Contains(lower, marker) {
			return ledger.PaymentCash
		}
	}
	return ledger.PaymentCash
}
