package invoice

import (
	"bytes"
	"strings"
	"text/template"
)

// DefaultFilenamePattern names exported files after the invoice number.
const DefaultFilenamePattern = "{{.InvoiceNumber}}"

type filenameData struct {
	InvoiceNumber string
	ID            string
	Target        string
}

var filenameReplacer = strings.NewReplacer("/", "-", "\\", "-", "\x00", "")

// Filename renders the download filename for an invoice and target.
func Filename(pattern string, inv Invoice, target Target) (string, error) {
	if pattern == "" {
		pattern = DefaultFilenamePattern
	}

	tmpl, err := template.New("filename").Option("missingkey=error").Parse(pattern)
	if err != nil {
		return "", NewError(KindValidation, "invalid filename pattern", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, filenameData{
		InvoiceNumber: inv.InvoiceNumber,
		ID:            inv.ID,
		Target:        string(target),
	}); err != nil {
		return "", NewError(KindValidation, "invalid filename pattern", err)
	}

	result := strings.TrimSpace(filenameReplacer.Replace(buf.String()))
	if result == "" {
		return "", NewError(KindValidation, "empty filename", nil)
	}

	ext := "html"
	if target == TargetPDF {
		ext = "pdf"
	}
	if !strings.HasSuffix(strings.ToLower(result), "."+ext) {
		result = result + "." + ext
	}
	return result, nil
}
