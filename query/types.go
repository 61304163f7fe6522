package query

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
)

// InvoiceModel requests the formatted rendering model for an invoice.
type InvoiceModel struct {
	InvoiceID string
	Invoice   *invoice.Invoice
}

func (InvoiceModel) Type() string { return "invoice:model" }

func (msg InvoiceModel) Validate() error {
	if msg.InvoiceID == "" && msg.Invoice == nil {
		return errors.New("invoice ID or invoice is required", errors.CategoryValidation).
			WithTextCode("INVOICE_REQUIRED")
	}
	return nil
}

// FormatAmount requests a formatted currency string.
type FormatAmount struct {
	Amount   string
	Currency string
}

func (FormatAmount) Type() string { return "invoice:format-amount" }

func (msg FormatAmount) Validate() error {
	if msg.Amount == "" {
		return errors.New("amount is required", errors.CategoryValidation).
			WithTextCode("AMOUNT_REQUIRED")
	}
	return nil
}
