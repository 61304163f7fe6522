package invoicetemplate

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"testing"

	"github.com/goliatone/go-invoice/invoice"
)

func sampleModel(t *testing.T) invoice.Model {
	t.Helper()
	model, err := invoice.BuildModel(invoice.Invoice{
		InvoiceNumber:  "INV-001",
		Date:           "2024-01-15",
		DueDate:        "2024-02-14",
		Subtotal:       "1000",
		TaxAmount:      "180",
		DiscountAmount: "50",
		Total:          "1130",
		Items: []invoice.LineItem{
			{ID: "a", Quantity: 2, Description: "Widget <b>", Rate: "500", TaxRate: 18, Amount: "1000"},
		},
		Client: invoice.Client{CompanyName: "Client Co", ContactPerson: "Jane"},
	}, nil, invoice.ModelOptions{})
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	return model
}

func TestRenderer_Disabled(t *testing.T) {
	renderer := Renderer{}
	_, err := renderer.Render(context.Background(), invoice.Model{}, &bytes.Buffer{}, invoice.RenderOptions{})
	if invoice.KindFromError(err) != invoice.KindNotImpl {
		t.Fatalf("expected not_implemented, got %v", err)
	}
}

func TestRenderer_Preview(t *testing.T) {
	buf := &bytes.Buffer{}
	stats, err := NewPreviewRenderer().Render(context.Background(), sampleModel(t), buf, invoice.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if stats.Bytes != int64(len(out)) {
		t.Fatalf("expected %d bytes, got %d", len(out), stats.Bytes)
	}
	for _, want := range []string{
		`<div id="invoice-preview">`,
		"MOLLA ENTERPRISES",
		"TAX INVOICE",
		"January 15, 2024",
		"₹1,000.00",
		"Total Tax:",
		"-₹50.00",
		"₹1,130.00",
		"Same as billing address",
		"Payment is due within 30 days from invoice date",
		"Due Date: February 14, 2024",
		"Widget &lt;b&gt;",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q", want)
		}
	}
	if strings.Contains(out, "<html") {
		t.Fatalf("preview should be a fragment")
	}
}

func TestRenderer_DocumentSharesBody(t *testing.T) {
	model := sampleModel(t)

	preview := &bytes.Buffer{}
	if _, err := NewPreviewRenderer().Render(context.Background(), model, preview, invoice.RenderOptions{}); err != nil {
		t.Fatalf("render preview: %v", err)
	}
	doc := &bytes.Buffer{}
	if _, err := NewDocumentRenderer().Render(context.Background(), model, doc, invoice.RenderOptions{}); err != nil {
		t.Fatalf("render document: %v", err)
	}

	out := doc.String()
	if !strings.HasPrefix(out, "<!DOCTYPE html>") {
		t.Fatalf("expected standalone document, got %q", out[:20])
	}
	if !strings.Contains(out, "<title>INV-001</title>") {
		t.Fatalf("expected invoice number title")
	}
	if !strings.Contains(out, "size: A4 portrait") {
		t.Fatalf("expected A4 page rule")
	}

	body := &bytes.Buffer{}
	tmpl, err := DefaultTemplates()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	if err := tmpl.ExecuteTemplate(body, TemplateBody, NewTemplateData(model, invoice.RenderOptions{})); err != nil {
		t.Fatalf("render body: %v", err)
	}
	if !strings.Contains(out, body.String()) || !strings.Contains(preview.String(), body.String()) {
		t.Fatalf("expected both targets to embed the shared body")
	}
}

func TestRenderer_HidesZeroTotals(t *testing.T) {
	model := sampleModel(t)
	model.Totals.Tax.Visible = false
	model.Totals.Discount.Visible = false

	buf := &bytes.Buffer{}
	if _, err := NewPreviewRenderer().Render(context.Background(), model, buf, invoice.RenderOptions{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), "Total Tax:") || strings.Contains(buf.String(), "Discount:") {
		t.Fatalf("expected hidden tax and discount lines")
	}
}

func TestRenderer_CustomTemplates(t *testing.T) {
	tmpl := template.Must(template.New("custom").Parse(`{{define "custom"}}{{.Meta.InvoiceNumber}}|{{len .TotalLines}}{{end}}`))
	renderer := Renderer{Enabled: true, Templates: tmpl, TemplateName: "custom"}

	buf := &bytes.Buffer{}
	if _, err := renderer.Render(context.Background(), sampleModel(t), buf, invoice.RenderOptions{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "INV-001|3" {
		t.Fatalf("unexpected output %q", got)
	}

	_, err := renderer.Render(context.Background(), sampleModel(t), buf, invoice.RenderOptions{
		Template: invoice.TemplateOptions{TemplateName: "missing"},
	})
	if invoice.KindFromError(err) != invoice.KindRender {
		t.Fatalf("expected render error, got %v", err)
	}
}
