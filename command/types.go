package command

import (
	"io"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
)

// RenderInvoice renders an invoice for a target into Output. Invoice takes
// precedence over InvoiceID when both are set.
type RenderInvoice struct {
	InvoiceID string
	Invoice   *invoice.Invoice
	Target    invoice.Target
	Output    io.Writer
	Result    *invoice.RenderStats
}

func (RenderInvoice) Type() string { return "invoice:render" }

func (msg RenderInvoice) Validate() error {
	if err := validateInvoiceRef(msg.InvoiceID, msg.Invoice); err != nil {
		return err
	}
	switch msg.Target {
	case invoice.TargetPreview, invoice.TargetHTML, invoice.TargetPDF:
	default:
		return errors.New("target must be preview, html or pdf", errors.CategoryValidation).
			WithTextCode("TARGET_INVALID")
	}
	if msg.Output == nil {
		return errors.New("output writer is required", errors.CategoryValidation).
			WithTextCode("OUTPUT_REQUIRED")
	}
	return nil
}

// ExportInvoice renders the PDF and stores it as an artifact.
type ExportInvoice struct {
	InvoiceID string
	Invoice   *invoice.Invoice
	Result    *invoice.ExportResult
}

func (ExportInvoice) Type() string { return "invoice:export" }

func (msg ExportInvoice) Validate() error {
	return validateInvoiceRef(msg.InvoiceID, msg.Invoice)
}

// InvalidateSettings drops cached settings so the next render refetches.
type InvalidateSettings struct{}

func (InvalidateSettings) Type() string { return "settings:invalidate" }

func (InvalidateSettings) Validate() error { return nil }

func validateInvoiceRef(id string, inv *invoice.Invoice) error {
	if id == "" && inv == nil {
		return errors.New("invoice ID or invoice is required", errors.CategoryValidation).
			WithTextCode("INVOICE_REQUIRED")
	}
	return nil
}
