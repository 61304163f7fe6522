package command

import (
	"context"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
)

// RenderInvoiceHandler renders invoices.
type RenderInvoiceHandler struct {
	Service invoice.Service
}

func NewRenderInvoiceHandler(svc invoice.Service) *RenderInvoiceHandler {
	return &RenderInvoiceHandler{Service: svc}
}

func (h *RenderInvoiceHandler) Execute(ctx context.Context, msg RenderInvoice) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	inv, err := resolveInvoice(ctx, h.Service, msg.InvoiceID, msg.Invoice)
	if err != nil {
		return err
	}
	stats, err := h.Service.Render(ctx, inv, msg.Target, msg.Output)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = stats
	}
	if res := gcmd.ResultFromContext[invoice.RenderStats](ctx); res != nil {
		res.Store(stats)
	}
	return nil
}

// ExportInvoiceHandler exports invoices to the artifact store.
type ExportInvoiceHandler struct {
	Service invoice.Service
}

func NewExportInvoiceHandler(svc invoice.Service) *ExportInvoiceHandler {
	return &ExportInvoiceHandler{Service: svc}
}

func (h *ExportInvoiceHandler) Execute(ctx context.Context, msg ExportInvoice) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	inv, err := resolveInvoice(ctx, h.Service, msg.InvoiceID, msg.Invoice)
	if err != nil {
		return err
	}
	result, err := h.Service.Export(ctx, inv)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[invoice.ExportResult](ctx); res != nil {
		res.Store(result)
	}
	return nil
}

// Invalidator drops cached state.
type Invalidator interface {
	Invalidate()
}

// InvalidateSettingsHandler clears a settings cache.
type InvalidateSettingsHandler struct {
	Cache Invalidator
}

func NewInvalidateSettingsHandler(cache Invalidator) *InvalidateSettingsHandler {
	return &InvalidateSettingsHandler{Cache: cache}
}

func (h *InvalidateSettingsHandler) Execute(ctx context.Context, msg InvalidateSettings) error {
	_ = ctx
	_ = msg
	if h == nil || h.Cache == nil {
		return errors.New("settings cache is required", errors.CategoryInternal).
			WithTextCode("CACHE_REQUIRED")
	}
	h.Cache.Invalidate()
	return nil
}

func resolveInvoice(ctx context.Context, svc invoice.Service, id string, inv *invoice.Invoice) (invoice.Invoice, error) {
	if inv != nil {
		return *inv, nil
	}
	return svc.Invoice(ctx, id)
}

func serviceRequired() error {
	return errors.New("invoice service is required", errors.CategoryInternal).
		WithTextCode("SERVICE_REQUIRED")
}
