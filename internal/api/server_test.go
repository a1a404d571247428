package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"finassist/internal/ingest"
	"finassist/internal/ledger"
	"finassist/internal/metrics"
	"finassist/internal/reconciliation"
)

type fakeIngester struct {
	req    ingest.Request
	called bool
	err    error
}

func (f *fakeIngester) Ingest(_ context.Context, req ingest.Request) (*ingest.Report, error) {
	f.called = true
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.Report{
		BatchID:    "batch-1",
		Period:     req.Period,
		SalesLines: len(req.Sales.Rows),
		BankRows:   len(req.BankLines),
	}, nil
}

type fakeSales struct {
	lines []ledger.SalesLine
}

func (f fakeSales) SalesLines(context.Context, ledger.Period) ([]ledger.SalesLine, error) {
	return f.lines, nil
}

type fakeRecon struct {
	records []ledger.ReconciliationRecord
	err     error
}

func (f fakeRecon) Reconcile(context.Context, ledger.Period) ([]ledger.ReconciliationRecord, error) {
	return f.records, f.err
}

func salesLine(day int, product string, net, vat string, method ledger.PaymentMethod) ledger.SalesLine {
	n, v := decimal.RequireFromString(net), decimal.RequireFromString(vat)
	return ledger.SalesLine{
		Date:          time.Date(2025, 9, day, 0, 0, 0, 0, time.UTC),
		InvoiceNumber: "FR " + product,
		Customer:      ledger.DefaultCustomer,
		Product:       product,
		Quantity:      decimal.NewFromInt(1),
		UnitPriceNet:  n,
		VATRate:       decimal.NewFromInt(14),
		NetAmount:     n,
		VATAmount:     v,
		GrossAmount:   n.Add(v),
		PaymentMethod: method,
	}
}

func newTestServer(lines []ledger.SalesLine, ing *fakeIngester, recon fakeRecon) *Server {
	if ing == nil {
		ing = &fakeIngester{}
	}
	return New(Deps{
		Ingest:  ing,
		Metrics: metrics.NewService(fakeSales{lines: lines}, metrics.AnomalyOptions{}),
		Recon:   recon,
	})
}

func do(t *testing.T, s *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func decode(t *testing.T, body []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("failed to decode %s: %v", body, err)
	}
}

func TestHealth(t *testing.T) {
	resp, body := do(t, newTestServer(nil, nil, fakeRecon{}), httptest.NewRequest("GET", "/health", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result map[string]string
	decode(t, body, &result)
	if result["status"] != "ok" {
		t.Errorf("got %v", result)
	}
}

func TestSummary(t *testing.T) {
	lines := []ledger.SalesLine{
		salesLine(5, "Café", "100", "14", ledger.PaymentCard),
		salesLine(6, "Pão", "50", "7", ledger.PaymentCash),
	}
	resp, body := do(t, newTestServer(lines, nil, fakeRecon{}), httptest.NewRequest("GET", "/kpi/summary?month=9", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var result map[string]interface{}
	decode(t, body, &result)
	if result["month"] != "09" || result["total_gross"] != "171" || result["card_gross"] != "114" {
		t.Errorf("got %v", result)
	}
}

func TestSummaryErrors(t *testing.T) {
	s := newTestServer(nil, nil, fakeRecon{})
	tests := []struct {
		name   string
		target string
		status int
		field  string
	}{
		{"no data", "/kpi/summary?month=09", fiber.StatusNotFound, ""},
		{"missing month", "/kpi/summary", fiber.StatusBadRequest, "Month"},
		{"bad month", "/kpi/summary?month=13", fiber.StatusBadRequest, "Month"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, s, httptest.NewRequest("GET", tt.target, nil))
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, resp.StatusCode, body)
			}
			var result errorResponse
			decode(t, body, &result)
			if result.Detail == "" {
				t.Error("detail is empty")
			}
			if tt.field != "" {
				if _, ok := result.Fields[tt.field]; !ok {
					t.Errorf("expected field %s in %v", tt.field, result.Fields)
				}
			}
		})
	}
}

func TestDailyEmptyIsArray(t *testing.T) {
	resp, body := do(t, newTestServer(nil, nil, fakeRecon{}), httptest.NewRequest("GET", "/kpi/daily?month=09", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("got %s", body)
	}
}

func TestTopProductsLimit(t *testing.T) {
	lines := []ledger.SalesLine{
		salesLine(5, "Café", "100", "14", ledger.PaymentCard),
		salesLine(5, "Pão", "10", "1.40", ledger.PaymentCard),
	}
	s := newTestServer(lines, nil, fakeRecon{})

	resp, body := do(t, s, httptest.NewRequest("GET", "/kpi/top-products?month=09&limit=1", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var result []map[string]interface{}
	decode(t, body, &result)
	if len(result) != 1 || result[0]["name"] != "Café" {
		t.Errorf("got %v", result)
	}

	resp, _ = do(t, s, httptest.NewRequest("GET", "/kpi/top-products?month=09&limit=0", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("limit=0 means default, got %d", resp.StatusCode)
	}
	resp, _ = do(t, s, httptest.NewRequest("GET", "/kpi/top-customers?month=09&limit=500", nil))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("limit=500: expected 400, got %d", resp.StatusCode)
	}
}

func TestVATExport(t *testing.T) {
	lines := []ledger.SalesLine{salesLine(5, "Café", "100", "14", ledger.PaymentCard)}
	s := newTestServer(lines, nil, fakeRecon{})

	resp, body := do(t, s, httptest.NewRequest("GET", "/vat/export?month=09", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type: got %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "vat_09.csv") {
		t.Errorf("content disposition: got %q", cd)
	}
	if want := "vat_rate,net,vat,gross\n14,100.00,14.00,114.00\n"; string(body) != want {
		t.Errorf("body: got %q, want %q", body, want)
	}

	resp, _ = do(t, s, httptest.NewRequest("GET", "/vat/export?month=09&format=pdf", nil))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("format=pdf: expected 400, got %d", resp.StatusCode)
	}
}

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"Data Emissão", "NºDoc.", "Artigo", "Quantidade", "Preço Unit. s/Imp", "Imposto", "Tipo Pagamento"},
		{45905, "FR 1", "Café", 1, 100, 14, "Cartão"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, target string, files map[string][2]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for field, f := range files {
		part, err := w.CreateFormFile(field, f[0])
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write([]byte(f[1]))
	}
	w.Close()
	req := httptest.NewRequest("POST", target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	ing := &fakeIngester{}
	s := newTestServer(nil, ing, fakeRecon{})

	req := uploadRequest(t, "/files/upload?month=09", map[string][2]string{
		"sales_excel": {"vendas.xlsx", string(workbook(t))},
		"bank_pdf":    {"extracto.txt", "05-09-2025 Fecho TPA 0001 0,00 950,00 12.000,00\n\n06-09-2025 Comissão STC 20,00 0,00 11.980,00\n"},
	})
	resp, body := do(t, s, req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result map[string]interface{}
	decode(t, body, &result)
	if result["month"] != "09" || result["sales_rows"] != 1.0 || result["bank_rows"] != 2.0 {
		t.Errorf("got %v", result)
	}
	if ing.req.SalesSource != "vendas.xlsx" || ing.req.Sales.Header[0] != "Data Emissão" || ing.req.Sales.Rows[0][0] != "45905" {
		t.Errorf("ingest request: got %+v", ing.req)
	}
}

func TestUploadErrors(t *testing.T) {
	mismatch := &ingest.PeriodMismatchError{Requested: "12", SalesPeriods: []ledger.Period{"09"}, BankPeriods: []ledger.Period{"09"}}
	ing := &fakeIngester{err: mismatch}
	s := newTestServer(nil, ing, fakeRecon{})

	req := uploadRequest(t, "/files/upload?month=12", map[string][2]string{
		"sales_excel": {"vendas.xlsx", string(workbook(t))},
		"bank_pdf":    {"extracto.txt", "05-09-2025 Fecho TPA 0001 0,00 950,00 12.000,00"},
	})
	resp, body := do(t, s, req)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("mismatch: expected 400, got %d", resp.StatusCode)
	}
	var result errorResponse
	decode(t, body, &result)
	if len(result.SalesPeriods) != 1 || result.SalesPeriods[0] != "09" || len(result.BankPeriods) != 1 {
		t.Errorf("got %+v", result)
	}

	req = uploadRequest(t, "/files/upload?month=09", map[string][2]string{
		"sales_excel": {"vendas.xlsx", string(workbook(t))},
	})
	if resp, _ := do(t, s, req); resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("missing bank_pdf: expected 400, got %d", resp.StatusCode)
	}

	ing.called = false
	req = uploadRequest(t, "/files/upload?month=09", map[string][2]string{
		"sales_excel": {"vendas.xlsx", string(workbook(t))},
		"bank_pdf":    {"extracto.pdf", "not a pdf"},
	})
	if resp, _ := do(t, s, req); resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("garbage pdf: expected 400, got %d", resp.StatusCode)
	}
	if ing.called {
		t.Error("ingest should not run when the statement is unreadable")
	}
}

func TestReconCard(t *testing.T) {
	day := time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)
	records := []ledger.ReconciliationRecord{{
		Date:           day,
		SalesCard:      decimal.RequireFromString("1000"),
		BankSettlement: decimal.RequireFromString("930"),
		SettlementDate: day.AddDate(0, 0, 1),
		Fees:           decimal.RequireFromString("20"),
		Delta:          decimal.RequireFromString("70"),
		Detail:         `{"card":"1000.00","bank":"950.00","fees":"20.00","settled_on":"2025-09-06"}`,
	}}

	recon := fakeRecon{
		records: records,
		err:     &reconciliation.PersistenceError{Period: "09", Err: errors.New("disk full")},
	}
	resp, body := do(t, newTestServer(nil, nil, recon), httptest.NewRequest("GET", "/recon/card?month=09", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Recon-Cached") != "false" {
		t.Error("expected X-Recon-Cached: false")
	}

	var result []map[string]interface{}
	decode(t, body, &result)
	if len(result) != 1 {
		t.Fatalf("got %v", result)
	}
	r := result[0]
	if r["date"] != "2025-09-05" || r["settlement_date"] != "2025-09-06" || r["delta"] != "70" {
		t.Errorf("got %v", r)
	}
	if detail, ok := r["detail"].(map[string]interface{}); !ok || detail["fees"] != "20.00" {
		t.Errorf("detail: got %v", r["detail"])
	}

	recon = fakeRecon{err: errors.New("db down")}
	if resp, _ := do(t, newTestServer(nil, nil, recon), httptest.NewRequest("GET", "/recon/card?month=09", nil)); resp.StatusCode != fiber.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}
