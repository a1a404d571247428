// Package metrics computes the monthly analytics over a period's sales lines:
// totals, the daily series, VAT buckets, top products and customers, and
// data-quality anomalies. The functions expect lines already scoped to one
// period.
package metrics

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"finassist/internal/ledger"
	"finassist/internal/normalize"
)

const (
	// DefaultTopLimit is used when a top-N limit is zero or negative.
	DefaultTopLimit = 10

	// DefaultDuplicateThreshold flags invoices with more lines than this.
	// Multi-line invoices are normal, so the bar is above one.
	DefaultDuplicateThreshold = 3

	// DefaultNegativeSample caps the negative lines reported.
	DefaultNegativeSample = 50
)

// ErrNoData is returned by Summary when the period has no sales lines.
var ErrNoData = errors.New("no data for period")

var hundred = decimal.NewFromInt(100)

// Summary holds the month's totals. CardSharePct is the card share of
// gross as a percentage.
type Summary struct {
	Period       ledger.Period   `json:"month"`
	TotalNet     decimal.Decimal `json:"total_net"`
	TotalVAT     decimal.Decimal `json:"total_vat"`
	TotalGross   decimal.Decimal `json:"total_gross"`
	CardGross    decimal.Decimal `json:"card_gross"`
	CashGross    decimal.Decimal `json:"cash_gross"`
	CardSharePct decimal.Decimal `json:"card_share_pct"`
}

// DailyPoint is one day of the daily series.
type DailyPoint struct {
	Date  time.Time       `json:"date"`
	Gross decimal.Decimal `json:"gross"`
	Card  decimal.Decimal `json:"card"`
	Cash  decimal.Decimal `json:"cash"`
}

// EntityTotal is a product or customer with its gross over the period.
type EntityTotal struct {
	Name  string          `json:"name"`
	Gross decimal.Decimal `json:"gross"`
}

// VATBucket totals the lines of one VAT rate.
type VATBucket struct {
	Rate  decimal.Decimal `json:"vat_rate"`
	Net   decimal.Decimal `json:"net"`
	VAT   decimal.Decimal `json:"vat"`
	Gross decimal.Decimal `json:"gross"`
}

// DuplicateInvoice is an invoice number with more lines than allowed.
type DuplicateInvoice struct {
	InvoiceNumber string `json:"invoice_number"`
	Lines         int    `json:"lines"`
}

// NegativeLine is a sales line with a negative gross, such as a refund.
type NegativeLine struct {
	InvoiceNumber string          `json:"invoice_number"`
	Date          time.Time       `json:"date"`
	Product       string          `json:"product"`
	Gross         decimal.Decimal `json:"gross"`
}

// AnomalyReport is the result of Anomalies. Both lists are non-nil.
type AnomalyReport struct {
	DuplicateInvoices []DuplicateInvoice `json:"duplicate_invoices"`
	NegativeLines     []NegativeLine     `json:"negative_lines"`
}

// AnomalyOptions tunes Anomalies. Zero values select the defaults.
type AnomalyOptions struct {
	DuplicateThreshold int
	NegativeSample     int
}

// Summarize totals the period. The card share is 0 when there is no gross
// at all.
func Summarize(period ledger.Period, lines []ledger.SalesLine) (*Summary, error) {
	if len(lines) == 0 {
		return nil, ErrNoData
	}

	s := &Summary{Period: period}
	for _, l := range lines {
		s.TotalNet = s.TotalNet.Add(l.NetAmount)
		s.TotalVAT = s.TotalVAT.Add(l.VATAmount)
		s.TotalGross = s.TotalGross.Add(l.GrossAmount)
		switch l.PaymentMethod {
		case ledger.PaymentCard:
			s.CardGross = s.CardGross.Add(l.GrossAmount)
		case ledger.PaymentCash:
			s.CashGross = s.CashGross.Add(l.GrossAmount)
		}
	}
	s.TotalNet = normalize.Round2(s.TotalNet)
	s.TotalVAT = normalize.Round2(s.TotalVAT)
	s.TotalGross = normalize.Round2(s.TotalGross)
	s.CardGross = normalize.Round2(s.CardGross)
	s.CashGross = normalize.Round2(s.CashGross)

	if !s.TotalGross.IsZero() {
		s.CardSharePct = normalize.Round2(s.CardGross.Div(s.TotalGross).Mul(hundred))
	}
	return s, nil
}

// DailySeries totals gross, card and cash per day, oldest first.
func DailySeries(lines []ledger.SalesLine) []DailyPoint {
	byDay := make(map[time.Time]*DailyPoint)
	for _, l := range lines {
		d := ledger.Day(l.Date)
		p, ok := byDay[d]
		if !ok {
			p = &DailyPoint{Date: d}
			byDay[d] = p
		}
		p.Gross = p.Gross.Add(l.GrossAmount)
		switch l.PaymentMethod {
		case ledger.PaymentCard:
			p.Card = p.Card.Add(l.GrossAmount)
		case ledger.PaymentCash:
			p.Cash = p.Cash.Add(l.GrossAmount)
		}
	}

	out := make([]DailyPoint, 0, len(byDay))
	for _, p := range byDay {
		p.Gross = normalize.Round2(p.Gross)
		p.Card = normalize.Round2(p.Card)
		p.Cash = normalize.Round2(p.Cash)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// TopProducts ranks products by gross.
func TopProducts(lines []ledger.SalesLine, limit int) []EntityTotal {
	return top(lines, limit, func(l ledger.SalesLine) string { return l.Product })
}

// TopCustomers ranks customers by gross.
func TopCustomers(lines []ledger.SalesLine, limit int) []EntityTotal {
	return top(lines, limit, func(l ledger.SalesLine) string { return l.Customer })
}

// top sums gross per key, highest first. Equal totals are ordered by name.
func top(lines []ledger.SalesLine, limit int, key func(ledger.SalesLine) string) []EntityTotal {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	sums := make(map[string]decimal.Decimal)
	for _, l := range lines {
		k := key(l)
		sums[k] = sums[k].Add(l.GrossAmount)
	}

	out := make([]EntityTotal, 0, len(sums))
	for name, gross := range sums {
		out = append(out, EntityTotal{Name: name, Gross: normalize.Round2(gross)})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Gross.Cmp(out[j].Gross); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// VATReport groups net, VAT and gross by rate, lowest rate first. The
// buckets add up to the Summary totals.
func VATReport(lines []ledger.SalesLine) []VATBucket {
	byRate := make(map[string]*VATBucket)
	for _, l := range lines {
		k := l.VATRate.String()
		b, ok := byRate[k]
		if !ok {
			b = &VATBucket{Rate: l.VATRate}
			byRate[k] = b
		}
		b.Net = b.Net.Add(l.NetAmount)
		b.VAT = b.VAT.Add(l.VATAmount)
		b.Gross = b.Gross.Add(l.GrossAmount)
	}

	out := make([]VATBucket, 0, len(byRate))
	for _, b := range byRate {
		b.Net = normalize.Round2(b.Net)
		b.VAT = normalize.Round2(b.VAT)
		b.Gross = normalize.Round2(b.Gross)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rate.LessThan(out[j].Rate) })
	return out
}

// Anomalies flags invoice numbers with more lines than the threshold and
// samples lines with a negative gross, in ledger order. Lines without an
// invoice number are never counted as duplicates.
func Anomalies(lines []ledger.SalesLine, opts AnomalyOptions) AnomalyReport {
	threshold := opts.DuplicateThreshold
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}
	sample := opts.NegativeSample
	if sample <= 0 {
		sample = DefaultNegativeSample
	}

	report := AnomalyReport{
		DuplicateInvoices: []DuplicateInvoice{},
		NegativeLines:     []NegativeLine{},
	}

	counts := make(map[string]int)
	for _, l := range lines {
		if l.InvoiceNumber != "" {
			counts[l.InvoiceNumber]++
		}
		if l.GrossAmount.IsNegative() && len(report.NegativeLines) < sample {
			report.NegativeLines = append(report.NegativeLines, NegativeLine{
				InvoiceNumber: l.InvoiceNumber,
				Date:          l.Date,
				Product:       l.Product,
				Gross:         l.GrossAmount,
			})
		}
	}

	for invoice, n := range counts {
		if n > threshold {
			report.DuplicateInvoices = append(report.DuplicateInvoices, DuplicateInvoice{InvoiceNumber: invoice, Lines: n})
		}
	}
	sort.Slice(report.DuplicateInvoices, func(i, j int) bool {
		return report.DuplicateInvoices[i].InvoiceNumber < report.DuplicateInvoices[j].InvoiceNumber
	})
	return report
}
