package query

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
)

// InvoiceModelHandler returns the rendering model shared by every target.
type InvoiceModelHandler struct {
	Service invoice.Service
}

func NewInvoiceModelHandler(svc invoice.Service) *InvoiceModelHandler {
	return &InvoiceModelHandler{Service: svc}
}

func (h *InvoiceModelHandler) Query(ctx context.Context, msg InvoiceModel) (invoice.Model, error) {
	if h == nil || h.Service == nil {
		return invoice.Model{}, errors.New("invoice service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return invoice.Model{}, err
	}
	inv := msg.Invoice
	if inv == nil {
		loaded, err := h.Service.Invoice(ctx, msg.InvoiceID)
		if err != nil {
			return invoice.Model{}, err
		}
		inv = &loaded
	}
	return h.Service.Model(ctx, *inv)
}

// FormatAmountHandler formats amounts with the invoice currency profiles.
type FormatAmountHandler struct{}

func NewFormatAmountHandler() *FormatAmountHandler {
	return &FormatAmountHandler{}
}

func (h *FormatAmountHandler) Query(ctx context.Context, msg FormatAmount) (string, error) {
	_ = ctx
	if err := msg.Validate(); err != nil {
		return "", err
	}
	return invoice.FormatCurrency(msg.Amount, msg.Currency)
}
