package invoiceapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	errorslib "github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
)

// DefaultBasePath is the route prefix for invoice endpoints.
const DefaultBasePath = "/invoices"

// DefaultMaxBufferBytes is the fallback buffer limit when streaming is unavailable.
const DefaultMaxBufferBytes int64 = 16 * 1024 * 1024

// Config configures the shared invoice API controller.
type Config struct {
	Service         invoice.Service
	BasePath        string
	FilenamePattern string
	Logger          invoice.Logger
	InvoiceDecoder  InvoiceDecoder
	MaxBufferBytes  int64
}

// Controller exposes invoice render endpoints for multiple transports.
type Controller struct {
	service         invoice.Service
	basePath        string
	filenamePattern string
	logger          invoice.Logger
	decoder         InvoiceDecoder
	maxBufferBytes  int64
}

// NewController creates a shared invoice API controller.
func NewController(cfg Config) *Controller {
	basePath := strings.TrimRight(cfg.BasePath, "/")
	if basePath == "" {
		basePath = DefaultBasePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = invoice.NopLogger{}
	}
	decoder := cfg.InvoiceDecoder
	if decoder == nil {
		decoder = JSONInvoiceDecoder{}
	}
	maxBuffer := cfg.MaxBufferBytes
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBufferBytes
	}
	return &Controller{
		service:         cfg.Service,
		basePath:        basePath,
		filenamePattern: cfg.FilenamePattern,
		logger:          logger,
		decoder:         decoder,
		maxBufferBytes:  maxBuffer,
	}
}

// BasePath returns the configured base path.
func (c *Controller) BasePath() string {
	if c == nil {
		return ""
	}
	return c.basePath
}

// Serve routes invoice endpoints:
//
//	GET  <base>/:id/preview
//	GET  <base>/:id/html
//	GET  <base>/:id/pdf
//	POST <base>/:id/export
//	POST <base>/render?target=preview|html|pdf
func (c *Controller) Serve(req Request, res Response) {
	if res == nil {
		return
	}
	if c == nil {
		WriteError(res, invoice.NewError(invoice.KindInternal, "handler is nil", nil))
		return
	}
	if req == nil {
		WriteError(res, invoice.NewError(invoice.KindInternal, "request is nil", nil))
		return
	}
	if c.service == nil {
		WriteError(res, invoice.NewError(invoice.KindNotImpl, "invoice service not configured", nil))
		return
	}
	if !strings.HasPrefix(req.Path(), c.basePath) {
		writeNotFound(res)
		return
	}

	pathSuffix := strings.Trim(strings.TrimPrefix(req.Path(), c.basePath), "/")
	parts := []string{}
	if pathSuffix != "" {
		parts = strings.Split(pathSuffix, "/")
	}

	switch req.Method() {
	case http.MethodGet:
		if len(parts) != 2 {
			writeNotFound(res)
			return
		}
		target, ok := targetFromPath(parts[1])
		if !ok {
			writeNotFound(res)
			return
		}
		c.handleRenderByID(req, res, parts[0], target)
	case http.MethodPost:
		switch {
		case len(parts) == 1 && parts[0] == "render":
			c.handleRenderPayload(req, res)
		case len(parts) == 2 && parts[1] == "export":
			c.handleExport(req, res, parts[0])
		default:
			writeNotFound(res)
		}
	default:
		res.SetHeader("Allow", "GET,POST")
		res.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (c *Controller) handleRenderByID(req Request, res Response, id string, target invoice.Target) {
	inv, err := c.service.Invoice(req.Context(), id)
	if err != nil {
		WriteError(res, err)
		return
	}
	c.render(req, res, inv, target)
}

func (c *Controller) handleRenderPayload(req Request, res Response) {
	target := invoice.TargetPreview
	if raw := strings.TrimSpace(req.Query("target")); raw != "" {
		parsed, ok := targetFromPath(strings.ToLower(raw))
		if !ok {
			WriteError(res, invoice.NewError(invoice.KindValidation, fmt.Sprintf("unknown target %q", raw), nil))
			return
		}
		target = parsed
	}
	inv, err := c.decoder.Decode(req)
	if err != nil {
		WriteError(res, err)
		return
	}
	c.render(req, res, inv, target)
}

func (c *Controller) handleExport(req Request, res Response, id string) {
	inv, err := c.service.Invoice(req.Context(), id)
	if err != nil {
		WriteError(res, err)
		return
	}
	result, err := c.service.Export(req.Context(), inv)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusCreated, result)
}

func (c *Controller) render(req Request, res Response, inv invoice.Invoice, target invoice.Target) {
	if target == invoice.TargetPDF {
		filename, err := invoice.Filename(c.filenamePattern, inv, target)
		if err != nil {
			WriteError(res, err)
			return
		}
		setDownloadHeaders(res, filename, invoice.ContentTypePDF)
	} else {
		res.SetHeader("Content-Type", "text/html; charset=utf-8")
	}

	if writer, ok := res.Writer(); ok {
		tracker := &trackingWriter{writer: writer}
		if _, err := c.service.Render(req.Context(), inv, target, tracker); err != nil {
			if !tracker.Written() {
				clearDownloadHeaders(res)
				WriteError(res, err)
				return
			}
			c.logger.Errorf("invoice %s: %s render failed after write: %v", inv.InvoiceNumber, target, err)
		}
		return
	}

	buffer := newLimitedBuffer(c.maxBufferBytes)
	if _, err := c.service.Render(req.Context(), inv, target, buffer); err != nil {
		clearDownloadHeaders(res)
		WriteError(res, err)
		return
	}
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(buffer.Bytes()); err != nil {
		c.logger.Errorf("invoice %s: %s buffer write failed: %v", inv.InvoiceNumber, target, err)
	}
}

func targetFromPath(name string) (invoice.Target, bool) {
	switch invoice.Target(name) {
	case invoice.TargetPreview, invoice.TargetHTML, invoice.TargetPDF:
		return invoice.Target(name), true
	}
	return "", false
}

func writeNotFound(res Response) {
	WriteError(res, invoice.NewError(invoice.KindNotFound, "route not found", nil))
}

// WriteError writes err as a JSON error payload with a status derived from
// its go-errors category.
func WriteError(res Response, err error) {
	if err == nil {
		res.WriteHeader(http.StatusNoContent)
		return
	}
	ge := invoice.AsGoError(err)
	writeJSON(res, statusForError(ge), ErrorResponse{
		Error: ErrorBody{
			Message: ge.Message,
			Code:    ge.TextCode,
		},
	})
}

func writeJSON(res Response, status int, payload any) {
	_ = res.WriteJSON(status, payload)
}

func statusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.TextCode {
	case "not_implemented":
		return http.StatusNotImplemented
	case "timeout":
		return http.StatusGatewayTimeout
	case "canceled":
		return http.StatusConflict
	}
	switch err.Category {
	case errorslib.CategoryValidation:
		return http.StatusBadRequest
	case errorslib.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func setDownloadHeaders(res Response, filename, contentType string) {
	res.SetHeader("Content-Type", contentType)
	res.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

func clearDownloadHeaders(res Response) {
	res.DelHeader("Content-Disposition")
	res.DelHeader("Content-Type")
}

type trackingWriter struct {
	writer  io.Writer
	written bool
}

func (w *trackingWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		w.written = true
	}
	return w.writer.Write(p)
}

func (w *trackingWriter) Written() bool {
	return w.written
}

type limitedBuffer struct {
	buf     bytes.Buffer
	maxSize int64
}

func newLimitedBuffer(maxSize int64) *limitedBuffer {
	return &limitedBuffer{maxSize: maxSize}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.maxSize > 0 && int64(b.buf.Len()+len(p)) > b.maxSize {
		return 0, invoice.NewError(invoice.KindValidation, "response exceeds max buffer size", nil)
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
