package invoice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
)

// ContentTypePDF is the media type of exported documents.
const ContentTypePDF = "application/pdf"

// Service renders invoices for every target from one rendering model.
type Service interface {
	Invoice(ctx context.Context, id string) (Invoice, error)
	Model(ctx context.Context, inv Invoice) (Model, error)
	Render(ctx context.Context, inv Invoice, target Target, w io.Writer) (RenderStats, error)
	Export(ctx context.Context, inv Invoice) (ExportResult, error)
}

// ServiceConfig supplies dependencies for Service.
type ServiceConfig struct {
	Settings        SettingsSource
	Invoices        InvoiceSource
	Renderers       *RendererRegistry
	Store           ArtifactStore
	Options         ModelOptions
	RenderOptions   RenderOptions
	FilenamePattern string
	Logger          Logger
	Now             func() time.Time
	IDGenerator     func() string
}

type service struct {
	settings        SettingsSource
	invoices        InvoiceSource
	renderers       *RendererRegistry
	store           ArtifactStore
	options         ModelOptions
	renderOptions   RenderOptions
	filenamePattern string
	logger          Logger
	now             func() time.Time
	idGenerator     func() string
}

// NewService creates a Service with the provided configuration.
func NewService(cfg ServiceConfig) Service {
	renderers := cfg.Renderers
	if renderers == nil {
		renderers = NewRendererRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	pattern := cfg.FilenamePattern
	if pattern == "" {
		pattern = DefaultFilenamePattern
	}

	return &service{
		settings:        cfg.Settings,
		invoices:        cfg.Invoices,
		renderers:       renderers,
		store:           cfg.Store,
		options:         cfg.Options,
		renderOptions:   cfg.RenderOptions,
		filenamePattern: pattern,
		logger:          logger,
		now:             nowFn,
		idGenerator:     idGen,
	}
}

// Invoice loads an invoice by ID.
func (s *service) Invoice(ctx context.Context, id string) (Invoice, error) {
	if id == "" {
		return Invoice{}, NewError(KindValidation, "invoice ID is required", nil)
	}
	if s.invoices == nil {
		return Invoice{}, NewError(KindNotImpl, "invoice source not configured", nil)
	}
	inv, err := s.invoices.Invoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// Model loads settings and assembles the rendering model.
func (s *service) Model(ctx context.Context, inv Invoice) (Model, error) {
	settings := s.loadSettings(ctx)
	return BuildModel(inv, settings, s.options)
}

// Render writes the invoice for the target to w.
func (s *service) Render(ctx context.Context, inv Invoice, target Target, w io.Writer) (RenderStats, error) {
	if w == nil {
		return RenderStats{}, NewError(KindValidation, "output writer is required", nil)
	}
	renderer, ok := s.renderers.Resolve(target)
	if !ok {
		return RenderStats{}, NewError(KindValidation, fmt.Sprintf("no renderer for target %q", target), nil)
	}

	model, err := s.Model(ctx, inv)
	if err != nil {
		return RenderStats{}, err
	}

	start := s.now()
	cw := &countingWriter{w: w}
	stats, err := renderer.Render(ctx, model, cw, s.renderOptions)
	if err != nil {
		s.logger.Errorf("invoice %s: render %s failed: %v", inv.InvoiceNumber, target, err)
		if target == TargetPDF {
			return RenderStats{}, pdfError(err)
		}
		return RenderStats{}, err
	}
	if stats.Bytes == 0 {
		stats.Bytes = cw.count
	}
	s.logger.Debugf("invoice %s: rendered %s (%d bytes) in %s", inv.InvoiceNumber, target, stats.Bytes, s.now().Sub(start))
	return stats, nil
}

// Export renders the PDF and stores it as an artifact.
func (s *service) Export(ctx context.Context, inv Invoice) (ExportResult, error) {
	if s.store == nil {
		return ExportResult{}, NewError(KindNotImpl, "artifact store not configured", nil)
	}
	filename, err := Filename(s.filenamePattern, inv, TargetPDF)
	if err != nil {
		return ExportResult{}, err
	}

	var buf bytes.Buffer
	stats, err := s.Render(ctx, inv, TargetPDF, &buf)
	if err != nil {
		return ExportResult{}, err
	}

	key := path.Join("invoices", s.idGenerator(), filename)
	ref, err := s.store.Put(ctx, key, &buf, ArtifactMeta{
		ContentType: ContentTypePDF,
		Filename:    filename,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return ExportResult{}, err
	}
	s.logger.Infof("invoice %s: exported %s", inv.InvoiceNumber, ref.Key)

	return ExportResult{
		InvoiceNumber: inv.InvoiceNumber,
		Filename:      filename,
		Bytes:         stats.Bytes,
		Pages:         stats.Pages,
		Artifact:      &ref,
	}, nil
}

func (s *service) loadSettings(ctx context.Context) Settings {
	if s.settings == nil {
		return nil
	}
	settings, err := s.settings.Load(ctx)
	if err != nil {
		s.logger.Errorf("settings fetch failed, using defaults: %v", err)
		return nil
	}
	return settings
}

func pdfError(err error) error {
	switch KindFromError(err) {
	case KindParse, KindTimeout, KindCanceled:
		return err
	}
	return NewError(KindRender, "failed to generate PDF", err)
}
