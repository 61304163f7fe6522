// Package invoicecallback adapts functions, static values and JSON files into
// invoice settings and invoice sources.
package invoicecallback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goliatone/go-invoice/invoice"
)

// SettingsFunc loads settings for a render.
type SettingsFunc func(ctx context.Context) (invoice.Settings, error)

// SettingsSource wraps a callback function as a SettingsSource.
type SettingsSource struct {
	fn SettingsFunc
}

// NewSettingsSource creates a callback-based SettingsSource.
func NewSettingsSource(fn SettingsFunc) *SettingsSource {
	return &SettingsSource{fn: fn}
}

// Load delegates to the configured callback.
func (s *SettingsSource) Load(ctx context.Context) (invoice.Settings, error) {
	if s == nil || s.fn == nil {
		return nil, invoice.NewError(invoice.KindValidation, "callback source requires a function", nil)
	}
	return s.fn(ctx)
}

// Static returns a source that always yields a copy of settings.
func Static(settings invoice.Settings) *SettingsSource {
	frozen := append(invoice.Settings(nil), settings...)
	return NewSettingsSource(func(ctx context.Context) (invoice.Settings, error) {
		_ = ctx
		return append(invoice.Settings(nil), frozen...), nil
	})
}

// InvoiceFunc loads an invoice by ID.
type InvoiceFunc func(ctx context.Context, id string) (invoice.Invoice, error)

// InvoiceSource wraps a callback function as an InvoiceSource.
type InvoiceSource struct {
	fn InvoiceFunc
}

// NewInvoiceSource creates a callback-based InvoiceSource.
func NewInvoiceSource(fn InvoiceFunc) *InvoiceSource {
	return &InvoiceSource{fn: fn}
}

// Invoice delegates to the configured callback.
func (s *InvoiceSource) Invoice(ctx context.Context, id string) (invoice.Invoice, error) {
	if s == nil || s.fn == nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindValidation, "callback source requires a function", nil)
	}
	return s.fn(ctx, id)
}

// SettingsFile reads a JSON settings array from disk on every Load.
type SettingsFile struct {
	Path string
}

// Load reads and decodes the settings file.
func (f SettingsFile) Load(ctx context.Context) (invoice.Settings, error) {
	_ = ctx
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, invoice.NewError(invoice.KindSettingsFetch, fmt.Sprintf("open settings %q", f.Path), err)
	}
	defer file.Close()
	return DecodeSettings(file)
}

// DecodeSettings decodes a JSON array of {"key","value"} pairs.
func DecodeSettings(r io.Reader) (invoice.Settings, error) {
	var settings invoice.Settings
	if err := json.NewDecoder(r).Decode(&settings); err != nil {
		return nil, invoice.NewError(invoice.KindSettingsFetch, "decode settings", err)
	}
	return settings, nil
}

// DecodeInvoice decodes a JSON invoice document.
func DecodeInvoice(r io.Reader) (invoice.Invoice, error) {
	var inv invoice.Invoice
	if err := json.NewDecoder(r).Decode(&inv); err != nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindParse, "decode invoice", err)
	}
	return inv, nil
}

// ReadInvoiceFile decodes an invoice JSON file.
func ReadInvoiceFile(path string) (invoice.Invoice, error) {
	file, err := os.Open(path)
	if err != nil {
		return invoice.Invoice{}, invoice.NewError(invoice.KindNotFound, fmt.Sprintf("open invoice %q", path), err)
	}
	defer file.Close()
	return DecodeInvoice(file)
}
