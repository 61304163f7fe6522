package command

import (
	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
	"github.com/goliatone/go-invoice/query"
)

// RegisterHandlers wires invoice commands and queries to go-command. The
// settings invalidation handler is registered only when cache is set.
func RegisterHandlers(reg *gcmd.Registry, svc invoice.Service, cache Invalidator) ([]dispatcher.Subscription, error) {
	if svc == nil {
		return nil, errors.New("invoice service is required", errors.CategoryValidation).
			WithTextCode("SERVICE_REQUIRED")
	}

	render := NewRenderInvoiceHandler(svc)
	export := NewExportInvoiceHandler(svc)
	model := query.NewInvoiceModelHandler(svc)
	amount := query.NewFormatAmountHandler()

	subscriptions := []dispatcher.Subscription{
		dispatcher.SubscribeCommand(render),
		dispatcher.SubscribeCommand(export),
		dispatcher.SubscribeQuery(model),
		dispatcher.SubscribeQuery(amount),
	}
	handlers := []any{render, export, model, amount}

	if cache != nil {
		invalidate := NewInvalidateSettingsHandler(cache)
		subscriptions = append(subscriptions, dispatcher.SubscribeCommand(invalidate))
		handlers = append(handlers, invalidate)
	}

	if reg != nil {
		for _, handler := range handlers {
			if err := reg.RegisterCommand(handler); err != nil {
				return subscriptions, err
			}
		}
	}

	return subscriptions, nil
}
