// Package bank turns the text lines of a bank statement into ledger
// transactions.
package bank

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"finassist/internal/ledger"
	"finassist/internal/logger"
	"finassist/internal/normalize"
)

var datePattern = regexp.MustCompile(`\d{2}[-/]\d{2}[-/]\d{4}`)

type rule struct {
	pattern *regexp.Regexp
	txType  ledger.TxType
}

// rules are tried in order and the first match wins. The VAT-on-commission
// rule must precede the commission rule: both lines mention "Comissão".
var rules = []rule{
	{regexp.MustCompile(`(?i)IVA\s+s/\s*Comiss[ãa]o`), ledger.TxCommissionVAT},
	{regexp.MustCompile(`(?i)Comiss[ãa]o.*STC`), ledger.TxCommissionFee},
	{regexp.MustCompile(`(?i)Fecho\s+TPA`), ledger.TxSettlementCredit},
	{regexp.MustCompile(`(?i)Transf\.?\s+interna`), ledger.TxInternalTransfer},
	{regexp.MustCompile(`(?i)Reserva`), ledger.TxReserve},
}

// Classify returns the transaction type of a statement line.
func Classify(line string) ledger.TxType {
	for _, r := range rules {
		if r.pattern.MatchString(line) {
			return r.txType
		}
	}
	return ledger.TxOther
}

// Result holds the parsed transactions and what happened to the other lines.
type Result struct {
	Transactions []ledger.BankTransaction
	Dropped      []*LineError
	OutOfPeriod  int
}

// DroppedCount returns the number of dated lines that could not be converted.
func (r *Result) DroppedCount() int {
	return len(r.Dropped)
}

// Parser converts statement lines to bank transactions.
type Parser struct {
	amounts AmountExtractor
	log     zerolog.Logger
}

// NewParser creates a parser. A nil extractor selects TrailingTokens.
func NewParser(amounts AmountExtractor) *Parser {
	if amounts == nil {
		amounts = TrailingTokens{}
	}
	return &Parser{
		amounts: amounts,
		log:     logger.WithComponent("bank-parser"),
	}
}

// Parse converts every dated line within period. Lines without a date token
// are not transactions and are skipped silently.
func (p *Parser) Parse(lines []string, period ledger.Period) *Result {
	res := &Result{}
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tx, ok, lineErr := p.convertLine(line, i+1, period)
		switch {
		case lineErr != nil:
			p.log.Debug().Err(lineErr).Int("line", i+1).Msg("Dropping statement line")
			res.Dropped = append(res.Dropped, lineErr)
		case !ok:
			continue
		case !period.Contains(tx.Date):
			res.OutOfPeriod++
		default:
			res.Transactions = append(res.Transactions, tx)
		}
	}

	event := p.log.Info()
	if res.DroppedCount() > 0 {
		event = p.log.Warn()
	}
	event.
		Str("period", period.String()).
		Int("lines", len(lines)).
		Int("transactions", len(res.Transactions)).
		Int("out_of_period", res.OutOfPeriod).
		Int("dropped", res.DroppedCount()).
		Msg("Bank statement parsed")

	return res
}

func (p *Parser) convertLine(line string, lineNum int, period ledger.Period) (tx ledger.BankTransaction, ok bool, lineErr *LineError) {
	defer func() {
		if rec := recover(); rec != nil {
			lineErr = &LineError{Line: lineNum, Text: line, Err: fmt.Errorf("%w: %v", ErrLinePanic, rec)}
		}
	}()

	token := datePattern.FindString(line)
	if token == "" {
		return tx, false, nil
	}
	date, err := normalize.ParseDayFirst(token)
	if err != nil {
		return tx, false, &LineError{Line: lineNum, Text: line, Err: err}
	}
	if !period.Contains(date) {
		return ledger.BankTransaction{Date: date}, true, nil
	}

	fields := strings.Fields(line)
	description := strings.TrimSpace(line)
	if len(fields) >= 5 {
		description = strings.Join(fields[1:len(fields)-3], " ")
	}
	amounts := p.amounts.Extract(fields)

	return ledger.BankTransaction{
		Date:        date,
		Description: description,
		Debit:       amounts.Debit,
		Credit:      amounts.Credit,
		Balance:     amounts.Balance,
		Type:        Classify(line),
	}, true, nil
}

// DetectPeriods lists the periods of every dated line.
func DetectPeriods(lines []string) ledger.PeriodSet {
	found := ledger.PeriodSet{}
	for _, line := range lines {
		token := datePattern.FindString(line)
		if token == "" {
			continue
		}
		if date, err := normalize.ParseDayFirst(token); err == nil {
			found.Add(ledger.PeriodOf(date))
		}
	}
	return found
}
