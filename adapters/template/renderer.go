package invoicetemplate

import (
	"context"
	"io"

	"github.com/goliatone/go-invoice/invoice"
)

// Renderer renders the invoice model with a named template.
type Renderer struct {
	Enabled      bool
	Templates    TemplateExecutor
	TemplateName string
}

// NewPreviewRenderer returns an enabled renderer for the preview fragment.
func NewPreviewRenderer() Renderer {
	return Renderer{Enabled: true, TemplateName: TemplatePreview}
}

// NewDocumentRenderer returns an enabled renderer for the A4 document page.
func NewDocumentRenderer() Renderer {
	return Renderer{Enabled: true, TemplateName: TemplateDocument}
}

// TemplateData is the context passed to templates.
type TemplateData struct {
	Title      string               `json:"title,omitempty"`
	Company    invoice.CompanyBlock `json:"company"`
	Meta       invoice.MetaBlock    `json:"meta"`
	Client     invoice.ClientBlock  `json:"client"`
	Items      []invoice.ItemRow    `json:"items"`
	Totals     invoice.TotalsBlock  `json:"totals"`
	TotalLines []invoice.TotalLine  `json:"total_lines"`
	Payment    invoice.PaymentBlock `json:"payment"`
	Terms      invoice.TermsBlock   `json:"terms"`
	Currency   string               `json:"currency"`
	ThankYou   string               `json:"thank_you"`
	DueFooter  string               `json:"due_footer"`
}

// NewTemplateData flattens a model for template execution.
func NewTemplateData(model invoice.Model, opts invoice.RenderOptions) TemplateData {
	title := opts.Template.Title
	if title == "" {
		title = model.Meta.InvoiceNumber
	}
	return TemplateData{
		Title:      title,
		Company:    model.Company,
		Meta:       model.Meta,
		Client:     model.Client,
		Items:      model.Items,
		Totals:     model.Totals,
		TotalLines: model.Totals.Lines(),
		Payment:    model.Payment,
		Terms:      model.Terms,
		Currency:   model.Currency,
		ThankYou:   model.ThankYou,
		DueFooter:  model.DueFooter,
	}
}

// Render executes the template for the model.
func (r Renderer) Render(ctx context.Context, model invoice.Model, w io.Writer, opts invoice.RenderOptions) (invoice.RenderStats, error) {
	if !r.Enabled {
		return invoice.RenderStats{}, invoice.NewError(invoice.KindNotImpl, "template renderer is disabled", nil)
	}
	if err := ctx.Err(); err != nil {
		return invoice.RenderStats{}, err
	}

	tmpl := r.Templates
	if tmpl == nil {
		defaults, err := DefaultTemplates()
		if err != nil {
			return invoice.RenderStats{}, invoice.NewError(invoice.KindInternal, "parse embedded templates", err)
		}
		tmpl = defaults
	}

	name := opts.Template.TemplateName
	if name == "" {
		name = r.TemplateName
	}
	if name == "" {
		name = TemplatePreview
	}

	cw := &countingWriter{w: w}
	if err := tmpl.ExecuteTemplate(cw, name, NewTemplateData(model, opts)); err != nil {
		return invoice.RenderStats{}, invoice.NewError(invoice.KindRender, "execute template "+name, err)
	}
	return invoice.RenderStats{Bytes: cw.count, Pages: 1}, nil
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}
