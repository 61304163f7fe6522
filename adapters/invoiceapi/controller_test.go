package invoiceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-invoice/invoice"
)

type testRequest struct {
	ctx    context.Context
	method string
	path   string
	query  map[string]string
	body   string
}

func (r testRequest) Context() context.Context { return r.ctx }
func (r testRequest) Method() string           { return r.method }
func (r testRequest) Path() string             { return r.path }
func (r testRequest) Header(string) string     { return "" }
func (r testRequest) Query(name string) string { return r.query[name] }
func (r testRequest) Body() io.ReadCloser {
	return io.NopCloser(strings.NewReader(r.body))
}

type testResponse struct {
	rec      *httptest.ResponseRecorder
	buffered bool
}

func newTestResponse(buffered bool) *testResponse {
	return &testResponse{rec: httptest.NewRecorder(), buffered: buffered}
}

func (r *testResponse) SetHeader(name, value string) { r.rec.Header().Set(name, value) }
func (r *testResponse) DelHeader(name string)        { r.rec.Header().Del(name) }
func (r *testResponse) WriteHeader(status int)       { r.rec.WriteHeader(status) }
func (r *testResponse) Write(data []byte) (int, error) {
	return r.rec.Write(data)
}
func (r *testResponse) WriteJSON(status int, payload any) error {
	r.rec.Header().Set("Content-Type", "application/json")
	r.rec.WriteHeader(status)
	return json.NewEncoder(r.rec).Encode(payload)
}
func (r *testResponse) Writer() (io.Writer, bool) {
	if r.buffered {
		return nil, false
	}
	return r.rec, true
}

func sampleInvoice() invoice.Invoice {
	return invoice.Invoice{
		ID:             "inv-1",
		InvoiceNumber:  "INV-001",
		Date:           "2024-01-15",
		DueDate:        "2024-02-14",
		Subtotal:       "1000",
		TaxAmount:      "180",
		DiscountAmount: "0",
		Total:          "1180",
		Items: []invoice.LineItem{
			{ID: "item-1", Quantity: 2, Description: "Widget", Rate: "500", TaxRate: 18, Amount: "1000"},
		},
		Client: invoice.Client{CompanyName: "Client Co"},
	}
}

func echoRenderer(prefix string) invoice.Renderer {
	return invoice.RendererFunc(func(_ context.Context, model invoice.Model, w io.Writer, _ invoice.RenderOptions) (invoice.RenderStats, error) {
		n, err := io.WriteString(w, prefix+model.Company.Name+"|"+model.Totals.AmountDue.Value)
		return invoice.RenderStats{Bytes: int64(n), Pages: 1}, err
	})
}

func newTestController(t *testing.T, pdf invoice.Renderer) *Controller {
	t.Helper()
	registry := invoice.NewRendererRegistry()
	for target, renderer := range map[invoice.Target]invoice.Renderer{
		invoice.TargetPreview: echoRenderer("<div id=\"invoice-preview\">"),
		invoice.TargetHTML:    echoRenderer("<html>"),
		invoice.TargetPDF:     pdf,
	} {
		if err := registry.Register(target, renderer); err != nil {
			t.Fatalf("register %s: %v", target, err)
		}
	}
	svc := invoice.NewService(invoice.ServiceConfig{
		Invoices:    invoice.NewMemoryInvoices(sampleInvoice()),
		Renderers:   registry,
		Store:       invoice.NewMemoryStore(),
		Now:         func() time.Time { return time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { return "fixed" },
	})
	return NewController(Config{Service: svc})
}

func serve(c *Controller, method, path string, query map[string]string, body string, buffered bool) *httptest.ResponseRecorder {
	res := newTestResponse(buffered)
	c.Serve(testRequest{ctx: context.Background(), method: method, path: path, query: query, body: body}, res)
	return res.rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var payload ErrorResponse
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v (body %q)", err, rec.Body.String())
	}
	return payload
}

func TestController_Preview(t *testing.T) {
	c := newTestController(t, echoRenderer("%PDF-"))
	rec := serve(c, http.MethodGet, "/invoices/inv-1/preview", nil, "", false)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html content type, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `<div id="invoice-preview">MOLLA ENTERPRISES|₹1,180.00`) {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestController_PDFDownloadHeaders(t *testing.T) {
	c := newTestController(t, echoRenderer("%PDF-"))
	rec := serve(c, http.MethodGet, "/invoices/inv-1/pdf", nil, "", false)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != invoice.ContentTypePDF {
		t.Fatalf("expected pdf content type, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="INV-001.pdf"` {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF-") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestController_PDFFailureClearsHeaders(t *testing.T) {
	failing := invoice.RendererFunc(func(context.Context, invoice.Model, io.Writer, invoice.RenderOptions) (invoice.RenderStats, error) {
		return invoice.RenderStats{}, errors.New("browser crashed")
	})
	c := newTestController(t, failing)
	rec := serve(c, http.MethodGet, "/invoices/inv-1/pdf", nil, "", false)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "" {
		t.Fatalf("expected cleared content disposition, got %q", cd)
	}
	payload := decodeError(t, rec)
	if payload.Error.Code != "render_error" || payload.Error.Message != "failed to generate PDF" {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestController_BufferedFallback(t *testing.T) {
	c := newTestController(t, echoRenderer("%PDF-"))
	rec := serve(c, http.MethodGet, "/invoices/inv-1/html", nil, "", true)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "<html>") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestController_UnknownInvoice(t *testing.T) {
	c := newTestController(t, echoRenderer("%PDF-"))
	rec := serve(c, http.MethodGet, "/invoices/missing/preview", nil, "", false)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if payload := decodeError(t, rec); payload.Error.Code != "not_found" {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestController_UnknownRoute(t *testing.T) {
	c := newTestController(t, echoRenderer("%PDF-"))
	for _, path := range []string{"/invoices/inv-1/xlsx", "/invoices", "/other/inv-1/pdf"} {
		rec := serve(c, http.MethodGet, path, nil, "", false)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestController_MethodNotAllowed(t *testing.T) {
	c := newTestController(t, echoRenderer("%PDF-"))
	rec := serve(c, http.MethodDelete, "/invoices/inv-1", nil, "", false)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET,POST" {
		t.Fatalf("unexpected Allow header %q", allow)
	}
}

func TestController_Export(t *testing.T) {
	c := newTestController(t, echoRenderer("%PDF-"))
	rec := serve(c, http.MethodPost, "/invoices/inv-1/export", nil, "", false)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var result invoice.ExportResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Filename != "INV-001.pdf" || result.Artifact == nil || result.Artifact.Key != "invoices/fixed/INV-001.pdf" {
		t.Fatalf("unexpected export result %+v", result)
	}
}

func TestController_RenderPayload(t *testing.T) {
	c := newTestController(t, echoRenderer("%PDF-"))
	body, err := json.Marshal(sampleInvoice())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	rec := serve(c, http.MethodPost, "/invoices/render", map[string]string{"target": "PDF"}, string(body), false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="INV-001.pdf"` {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	rec = serve(c, http.MethodPost, "/invoices/render", map[string]string{"target": "docx"}, string(body), false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown target, got %d", rec.Code)
	}

	rec = serve(c, http.MethodPost, "/invoices/render", nil, "{", false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid payload, got %d", rec.Code)
	}
}

func TestController_ParseErrorIsBadRequest(t *testing.T) {
	c := newTestController(t, echoRenderer("%PDF-"))
	inv := sampleInvoice()
	inv.Total = "abc"
	body, _ := json.Marshal(inv)

	rec := serve(c, http.MethodPost, "/invoices/render", nil, string(body), false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if payload := decodeError(t, rec); payload.Error.Code != "parse_error" {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func TestController_NilService(t *testing.T) {
	c := NewController(Config{})
	rec := serve(c, http.MethodGet, "/invoices/inv-1/preview", nil, "", false)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}
