package invoicejob

import (
	"context"
	"sync"

	"github.com/goliatone/go-invoice/invoice"
)

// CancelRegistry tracks running export jobs by invoice key.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewCancelRegistry creates a new registry for job cancellation.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

// Register associates a cancel func with an invoice key.
func (r *CancelRegistry) Register(key string, cancel context.CancelFunc) func() {
	if r == nil || key == "" || cancel == nil {
		return func() {}
	}
	r.mu.Lock()
	r.cancels[key] = cancel
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.cancels, key)
		r.mu.Unlock()
	}
}

// Cancel stops a running export.
func (r *CancelRegistry) Cancel(key string) error {
	if r == nil {
		return invoice.NewError(invoice.KindInternal, "cancel registry is nil", nil)
	}
	if key == "" {
		return invoice.NewError(invoice.KindValidation, "invoice ID is required", nil)
	}

	r.mu.Lock()
	cancel, ok := r.cancels[key]
	r.mu.Unlock()
	if !ok {
		return invoice.NewError(invoice.KindNotFound, "export not running", nil)
	}
	cancel()
	return nil
}
