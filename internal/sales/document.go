package sales

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the sheet the point-of-sale system exports invoice lines to.
const DefaultSheetName = "Detalhes de Documentos Emitidos"

// Canonical column names.
const (
	colDocument      = "document"
	colNumber        = "number"
	colIssueDate     = "issue_date"
	colItemCode      = "item_code"
	colProduct       = "product"
	colQuantity      = "quantity"
	colUnitPriceNet  = "unit_price_net"
	colVATRate       = "vat_rate"
	colGrossTotal    = "gross_total"
	colPaymentMethod = "payment_method"
	colCustomer      = "customer"
)

// columnMap maps the localized headers (lower-cased) to canonical names.
// Columns not listed are ignored.
var columnMap = map[string]string{
	"documento":         colDocument,
	"nºdoc.":            colNumber,
	"n.º doc.":          colNumber,
	"data emissão":      colIssueDate,
	"código artigo":     colItemCode,
	"artigo":            colProduct,
	"quantidade":        colQuantity,
	"preço unit. s/imp": colUnitPriceNet,
	"imposto":           colVATRate,
	"total bruto":       colGrossTotal,
	"tipo pagamento":    colPaymentMethod,
	"cliente":           colCustomer,
	"nome cliente":      colCustomer,
}

// Document is a tabular view of a sales export: a header row and data rows.
type Document struct {
	Source string
	Header []string
	Rows   [][]string
}

// ReadWorkbook loads the invoice-line sheet of an .xlsx workbook. It reads raw
// cell values so dates arrive as spreadsheet serials rather than formatted
// text. When sheet is missing from the workbook the first sheet is used.
func ReadWorkbook(r io.Reader, sheet string) (*Document, error) {
	const op = "ReadWorkbook"

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open workbook: %w", op, err)
	}
	defer f.Close()

	name := sheet
	if name == "" {
		name = DefaultSheetName
	}
	if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: workbook has no sheets", op)
		}
		name = sheets[0]
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read sheet %q: %w", op, name, err)
	}

	doc := &Document{Source: name}
	if len(rows) == 0 {
		return doc, nil
	}
	doc.Header = rows[0]
	doc.Rows = rows[1:]
	return doc, nil
}

// FromValues builds a Document from a range of cell values, as returned by
// the Google Sheets API. The first row is the header.
func FromValues(source string, values [][]interface{}) *Document {
	doc := &Document{Source: source}
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = strings.TrimSpace(fmt.Sprintf("%v", v))
			}
		}
		if i == 0 {
			doc.Header = cells
			continue
		}
		doc.Rows = append(doc.Rows, cells)
	}
	return doc
}

// columnIndex maps canonical column names to their position in the header.
// When a canonical column appears twice, the first occurrence wins.
type columnIndex map[string]int

func indexColumns(header []string) columnIndex {
	idx := make(columnIndex)
	for i, h := range header {
		key := strings.ToLower(strings.Join(strings.Fields(h), " "))
		name, ok := columnMap[key]
		if !ok {
			continue
		}
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}
	return idx
}

func (c columnIndex) has(name string) bool {
	_, ok := c[name]
	return ok
}

// cell returns the trimmed value of a canonical column, or "" when the
// column is unmapped or the row is short.
func (c columnIndex) cell(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
