// Package reconciliation compares daily card sales with the bank settlement
// credits that pay them out.
package reconciliation

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"finassist/internal/ledger"
	"finassist/internal/normalize"
)

// detail is the JSON snapshot stored with each record.
type detail struct {
	Card      string `json:"card"`
	Bank      string `json:"bank"`
	Fees      string `json:"fees"`
	SettledOn string `json:"settled_on,omitempty"`
}

type dayTotals struct {
	card   decimal.Decimal
	credit decimal.Decimal
	fees   decimal.Decimal
}

// Compute builds one record per day of period that has card sales, fees or
// a settlement credit, in ascending order. A day with a non-zero credit of
// its own is matched to that credit. Otherwise it takes the next calendar
// day's credit, looking exactly one day ahead. That day may leave the period,
// so bank may carry transactions of the day after the period ends. A credit
// matched by the day before is still the own credit of its day, so T+1
// settlements are counted on both days.
//
// Compute is pure: the same inputs always give identical records.
func Compute(sales []ledger.SalesLine, bank []ledger.BankTransaction, period ledger.Period) []ledger.ReconciliationRecord {
	totals := make(map[time.Time]*dayTotals)
	get := func(d time.Time) *dayTotals {
		t, ok := totals[d]
		if !ok {
			t = &dayTotals{}
			totals[d] = t
		}
		return t
	}

	for _, l := range sales {
		if l.PaymentMethod != ledger.PaymentCard || !period.Contains(l.Date) {
			continue
		}
		t := get(ledger.Day(l.Date))
		t.card = t.card.Add(l.GrossAmount)
	}
	for _, tx := range bank {
		d := ledger.Day(tx.Date)
		switch {
		case tx.Type == ledger.TxSettlementCredit && tx.Credit.Valid:
			t := get(d)
			t.credit = t.credit.Add(tx.Credit.Decimal)
		case tx.Type.IsFee() && tx.Debit.Valid && period.Contains(d):
			t := get(d)
			t.fees = t.fees.Add(tx.Debit.Decimal)
		}
	}

	days := make([]time.Time, 0, len(totals))
	for d := range totals {
		if period.Contains(d) {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var records []ledger.ReconciliationRecord
	for _, d := range days {
		t := totals[d]

		var settlement decimal.Decimal
		var settledOn time.Time
		if !t.credit.IsZero() {
			settlement, settledOn = t.credit, d
		} else if next := d.AddDate(0, 0, 1); totals[next] != nil && !totals[next].credit.IsZero() {
			settlement, settledOn = totals[next].credit, next
		}

		card := normalize.Round2(t.card)
		fees := normalize.Round2(t.fees)
		settlement = normalize.Round2(settlement)
		delta := normalize.Round2(card.Sub(settlement.Sub(fees)))

		records = append(records, ledger.ReconciliationRecord{
			Date:           d,
			SalesCard:      card,
			BankSettlement: settlement,
			SettlementDate: settledOn,
			Fees:           fees,
			Delta:          delta,
			Detail:         encodeDetail(card, settlement, fees, settledOn),
		})
	}
	return records
}

func encodeDetail(card, bank, fees decimal.Decimal, settledOn time.Time) string {
	d := detail{
		Card: card.StringFixed(2),
		Bank: bank.StringFixed(2),
		Fees: fees.StringFixed(2),
	}
	if !settledOn.IsZero() {
		d.SettledOn = settledOn.Format("2006-01-02")
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}
