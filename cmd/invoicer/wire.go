package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"

	invoicepdf "github.com/goliatone/go-invoice/adapters/pdf"
	invoiceraster "github.com/goliatone/go-invoice/adapters/raster"
	storebun "github.com/goliatone/go-invoice/adapters/store/bun"
	storefs "github.com/goliatone/go-invoice/adapters/store/fs"
	invoicetemplate "github.com/goliatone/go-invoice/adapters/template"
	pongo2tmpl "github.com/goliatone/go-invoice/adapters/template/pongo2"
	"github.com/goliatone/go-invoice/config"
	"github.com/goliatone/go-invoice/invoice"
	invoicecallback "github.com/goliatone/go-invoice/sources/callback"
	"github.com/goliatone/go-invoice/sources/httpsettings"
)

// runtime holds the wired dependencies for one CLI invocation.
type runtime struct {
	cfg      config.Config
	logger   *zap.SugaredLogger
	db       *bun.DB
	invoices *storebun.InvoiceRepository
	settings *invoice.CachedSettings
	chromium *invoicepdf.ChromiumEngine
	service  invoice.Service
}

func newRuntime(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	if cfg.Store.DatabaseDSN != "" {
		db, err := openDB(ctx, cfg.Store.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		rt.db = db
		rt.invoices = storebun.NewInvoiceRepository(db)
	}

	rt.settings = invoice.NewCachedSettings(settingsSource(cfg.Settings, rt.db), cfg.Settings.CacheTTL)

	renderers, chromium, err := buildRenderers(cfg, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.chromium = chromium

	var invoices invoice.InvoiceSource
	if rt.invoices != nil {
		invoices = rt.invoices
	}

	rt.service = invoice.NewService(invoice.ServiceConfig{
		Settings:      rt.settings,
		Invoices:      invoices,
		Renderers:     renderers,
		Store:         storefs.NewStore(cfg.Store.ArtifactDir),
		RenderOptions: renderOptions(cfg.PDF),
		Logger:        logger,
	})
	return rt, nil
}

// Close releases the browser and database.
func (rt *runtime) Close() error {
	var first error
	if rt.chromium != nil {
		if err := rt.chromium.Close(); err != nil {
			first = err
		}
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := storebun.CreateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// settingsSource picks the remote endpoint, then a local file, then the
// database. Without any of them the built-in defaults apply.
func settingsSource(cfg config.SettingsConfig, db *bun.DB) invoice.SettingsSource {
	switch {
	case cfg.URL != "":
		return httpsettings.New(cfg.URL, &http.Client{Timeout: cfg.Timeout})
	case cfg.File != "":
		return invoicecallback.SettingsFile{Path: cfg.File}
	case db != nil:
		return storebun.NewSettingsRepository(db)
	default:
		return invoicecallback.Static(nil)
	}
}

func templateExecutor(cfg config.TemplateConfig) invoicetemplate.TemplateExecutor {
	if cfg.Engine != config.TemplatePongo2 {
		return nil
	}
	if cfg.Dir != "" {
		return pongo2tmpl.NewFSExecutor(os.DirFS(cfg.Dir))
	}
	return pongo2tmpl.NewExecutor()
}

var findChromium = invoicepdf.FindChromium

// resolveEngine maps the auto engine to capture when a browser is found and
// to raster otherwise. The returned path is the browser to launch.
func resolveEngine(cfg config.PDFConfig) (string, string) {
	if cfg.Engine != config.EngineAuto {
		return cfg.Engine, cfg.ChromiumPath
	}
	if path, ok := findChromium(cfg.ChromiumPath); ok {
		return config.EngineCapture, path
	}
	return config.EngineRaster, ""
}

func newPainter(cfg config.PDFConfig, logger invoice.Logger) (invoiceraster.Painter, error) {
	painter := invoiceraster.Painter{}
	if cfg.FontDir != "" {
		loaded, err := invoiceraster.FontDir(cfg.FontDir)
		if err != nil {
			return invoiceraster.Painter{}, err
		}
		painter = loaded
	}
	if ok, err := painter.Covers("₹"); err == nil && !ok {
		logger.Infof("raster painter font has no ₹ glyph, amounts print as Rs.; set pdf.font_dir or install Chromium")
	}
	return painter, nil
}

// buildRenderers registers the preview, html and pdf renderers. The returned
// engine is non-nil when a browser was configured and must be closed.
func buildRenderers(cfg config.Config, logger invoice.Logger) (*invoice.RendererRegistry, *invoicepdf.ChromiumEngine, error) {
	preview := invoicetemplate.NewPreviewRenderer()
	document := invoicetemplate.NewDocumentRenderer()
	if tmpl := templateExecutor(cfg.Template); tmpl != nil {
		preview.Templates = tmpl
		document.Templates = tmpl
	}

	engine, browserPath := resolveEngine(cfg.PDF)
	logger.Debugf("pdf engine %s", engine)

	var chromium *invoicepdf.ChromiumEngine
	newChromium := func() *invoicepdf.ChromiumEngine {
		chromium = &invoicepdf.ChromiumEngine{
			BrowserPath: browserPath,
			Headless:    cfg.PDF.Headless,
			Timeout:     cfg.PDF.Timeout,
			Args:        cfg.PDF.Args,
			DefaultPDF:  renderOptions(cfg.PDF).PDF,
		}
		return chromium
	}

	var pdf invoice.Renderer
	switch engine {
	case config.EngineChromium:
		pdf = invoicepdf.Renderer{Enabled: true, HTMLRenderer: document, Engine: newChromium()}
	case config.EngineWKHTMLTOPDF:
		pdf = invoicepdf.Renderer{
			Enabled:      true,
			HTMLRenderer: document,
			Engine: invoicepdf.WKHTMLTOPDFEngine{
				Command: cfg.PDF.WKHTMLTOPDFPath,
				Timeout: cfg.PDF.Timeout,
			},
		}
	case config.EngineCapture:
		pdf = invoicepdf.RasterRenderer{
			Enabled: true,
			Rasterizer: invoicepdf.CaptureRasterizer{
				HTMLRenderer: document,
				Surfaces:     newChromium(),
				Logger:       logger,
			},
		}
	case config.EngineRaster:
		painter, err := newPainter(cfg.PDF, logger)
		if err != nil {
			return nil, nil, err
		}
		pdf = invoicepdf.RasterRenderer{Enabled: true, Rasterizer: painter}
	default:
		return nil, nil, fmt.Errorf("unsupported pdf engine %q", cfg.PDF.Engine)
	}

	registry := invoice.NewRendererRegistry()
	for target, renderer := range map[invoice.Target]invoice.Renderer{
		invoice.TargetPreview: preview,
		invoice.TargetHTML:    document,
		invoice.TargetPDF:     pdf,
	} {
		if err := registry.Register(target, renderer); err != nil {
			return nil, nil, err
		}
	}
	return registry, chromium, nil
}

func renderOptions(cfg config.PDFConfig) invoice.RenderOptions {
	policy := invoice.PDFExternalAssetsAllow
	if cfg.BlockExternal {
		policy = invoice.PDFExternalAssetsBlock
	}
	return invoice.RenderOptions{
		PDF: invoice.PDFOptions{
			Scale:                cfg.Scale,
			MarginTop:            cfg.MarginTop,
			MarginBottom:         cfg.MarginBottom,
			MarginLeft:           cfg.MarginLeft,
			MarginRight:          cfg.MarginRight,
			BaseURL:              cfg.BaseURL,
			ExternalAssetsPolicy: policy,
		},
	}
}
