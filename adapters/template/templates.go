package invoicetemplate

import (
	"embed"
	"html/template"
	"io"
	"sync"
)

// Template names defined by the embedded set.
const (
	TemplatePreview  = "preview"
	TemplateDocument = "document"
	TemplateBody     = "invoice-body"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateExecutor executes a named template with data.
type TemplateExecutor interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

var (
	defaultOnce      sync.Once
	defaultTemplates *template.Template
	defaultErr       error
)

// DefaultTemplates returns the embedded html/template set.
func DefaultTemplates() (*template.Template, error) {
	defaultOnce.Do(func() {
		defaultTemplates, defaultErr = ParseTemplates()
	})
	return defaultTemplates, defaultErr
}

// ParseTemplates parses a fresh copy of the embedded templates.
func ParseTemplates() (*template.Template, error) {
	return template.New("invoice").ParseFS(templateFS, "templates/*.html")
}
