package invoiceapi

import (
	"context"
	"encoding/json"
	"io"

	"github.com/goliatone/go-invoice/invoice"
)

// Request provides minimal request access for transport adapters.
type Request interface {
	Context() context.Context
	Method() string
	Path() string
	Header(name string) string
	Query(name string) string
	Body() io.ReadCloser
}

// InvoiceDecoder parses a request body into an invoice.
type InvoiceDecoder interface {
	Decode(req Request) (invoice.Invoice, error)
}

// JSONInvoiceDecoder decodes a JSON invoice document.
type JSONInvoiceDecoder struct {
	// Strict rejects unknown fields.
	Strict bool
}

// Decode decodes the request body into an invoice.
func (d JSONInvoiceDecoder) Decode(req Request) (invoice.Invoice, error) {
	if req == nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindInternal, "request is nil", nil)
	}
	body := req.Body()
	if body == nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindValidation, "request body is required", nil)
	}
	defer body.Close()

	var inv invoice.Invoice
	decoder := json.NewDecoder(body)
	if d.Strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(&inv); err != nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindValidation, "invalid invoice payload", err)
	}
	return inv, nil
}
