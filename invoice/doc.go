// Package invoice builds the formatted rendering model for an invoice and
// dispatches it to the preview, HTML and PDF renderers.
package invoice
