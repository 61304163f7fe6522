package invoice

import (
	"context"
	"io"
	"time"
)

// Target is a rendering destination for the invoice model.
type Target string

const (
	TargetPreview Target = "preview"
	TargetHTML    Target = "html"
	TargetPDF     Target = "pdf"
)

// Setting is a single configuration key/value pair.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Client is the billed party embedded in an invoice.
type Client struct {
	CompanyName   string `json:"companyName"`
	ContactPerson string `json:"contactPerson"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
}

// LineItem is a single billed line. Amounts are decimal strings.
type LineItem struct {
	ID          string  `json:"id,omitempty"`
	Quantity    float64 `json:"quantity"`
	Description string  `json:"description"`
	Rate        string  `json:"rate"`
	TaxRate     float64 `json:"taxRate"`
	Amount      string  `json:"amount"`
}

// Invoice is an invoice record with its client and line items.
type Invoice struct {
	ID             string     `json:"id,omitempty"`
	InvoiceNumber  string     `json:"invoiceNumber"`
	Date           string     `json:"date"`
	DueDate        string     `json:"dueDate"`
	Currency       string     `json:"currency,omitempty"`
	Subtotal       string     `json:"subtotal"`
	TaxAmount      string     `json:"taxAmount"`
	DiscountAmount string     `json:"discountAmount"`
	Total          string     `json:"total"`
	Items          []LineItem `json:"items"`
	Client         Client     `json:"client"`
}

// SettingsSource loads the settings collection for a render.
type SettingsSource interface {
	Load(ctx context.Context) (Settings, error)
}

// SettingsSourceFunc adapts a function to a SettingsSource.
type SettingsSourceFunc func(ctx context.Context) (Settings, error)

func (f SettingsSourceFunc) Load(ctx context.Context) (Settings, error) {
	if f == nil {
		return nil, nil
	}
	return f(ctx)
}

// InvoiceSource loads invoices by ID.
type InvoiceSource interface {
	Invoice(ctx context.Context, id string) (Invoice, error)
}

// InvoiceSourceFunc adapts a function to an InvoiceSource.
type InvoiceSourceFunc func(ctx context.Context, id string) (Invoice, error)

func (f InvoiceSourceFunc) Invoice(ctx context.Context, id string) (Invoice, error) {
	if f == nil {
		return Invoice{}, NewError(KindNotImpl, "invoice source not configured", nil)
	}
	return f(ctx, id)
}

// Renderer writes a rendering model to the destination.
type Renderer interface {
	Render(ctx context.Context, model Model, w io.Writer, opts RenderOptions) (RenderStats, error)
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(ctx context.Context, model Model, w io.Writer, opts RenderOptions) (RenderStats, error)

func (f RendererFunc) Render(ctx context.Context, model Model, w io.Writer, opts RenderOptions) (RenderStats, error) {
	if f == nil {
		return RenderStats{}, NewError(KindNotImpl, "renderer func is nil", nil)
	}
	return f(ctx, model, w, opts)
}

// RenderStats capture renderer output.
type RenderStats struct {
	Bytes int64
	Pages int
}

// TemplateOptions configures template rendering.
type TemplateOptions struct {
	TemplateName string
	Title        string
}

// PDFExternalAssetsPolicy controls how external assets are handled in PDF rendering.
type PDFExternalAssetsPolicy string

const (
	PDFExternalAssetsUnspecified PDFExternalAssetsPolicy = ""
	PDFExternalAssetsAllow       PDFExternalAssetsPolicy = "allow"
	PDFExternalAssetsBlock       PDFExternalAssetsPolicy = "block"
)

// PDFOptions configures PDF output. Paper is always A4 portrait.
type PDFOptions struct {
	PrintBackground      *bool
	Scale                float64
	MarginTop            string
	MarginBottom         string
	MarginLeft           string
	MarginRight          string
	BaseURL              string
	ExternalAssetsPolicy PDFExternalAssetsPolicy
}

// RenderOptions configures renderer behavior.
type RenderOptions struct {
	Template TemplateOptions
	PDF      PDFOptions
}

// ArtifactMeta captures stored artifact metadata.
type ArtifactMeta struct {
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	Filename    string    `json:"filename,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArtifactRef references a stored artifact.
type ArtifactRef struct {
	Key  string       `json:"key"`
	Meta ArtifactMeta `json:"meta"`
}

// ArtifactStore stores exported documents.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error)
	Delete(ctx context.Context, key string) error
}

// ExportResult captures a completed PDF export.
type ExportResult struct {
	InvoiceNumber string       `json:"invoice_number"`
	Filename      string       `json:"filename"`
	Bytes         int64        `json:"bytes"`
	Pages         int          `json:"pages"`
	Artifact      *ArtifactRef `json:"artifact,omitempty"`
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
