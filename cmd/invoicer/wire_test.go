package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/image/font/gofont/goregular"

	invoicepdf "github.com/goliatone/go-invoice/adapters/pdf"
	invoiceraster "github.com/goliatone/go-invoice/adapters/raster"
	storebun "github.com/goliatone/go-invoice/adapters/store/bun"
	"github.com/goliatone/go-invoice/config"
	"github.com/goliatone/go-invoice/invoice"
	invoicecallback "github.com/goliatone/go-invoice/sources/callback"
	"github.com/goliatone/go-invoice/sources/httpsettings"
)

const invoiceJSON = `{
  "id": "inv-1",
  "invoiceNumber": "INV-001",
  "date": "2024-01-15",
  "dueDate": "2024-02-14",
  "subtotal": "1000",
  "taxAmount": "180",
  "discountAmount": "0",
  "total": "1180",
  "items": [
    {"id": "item-1", "quantity": 2, "description": "Widget", "rate": "500", "taxRate": 18, "amount": "1000"}
  ],
  "client": {"companyName": "Client Co", "contactPerson": "Jane", "email": "jane@example.com"}
}`

func writeInvoice(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoice.json")
	if err := os.WriteFile(path, []byte(invoiceJSON), 0o600); err != nil {
		t.Fatalf("write invoice: %v", err)
	}
	return path
}

func nopSugar(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	return zap.NewNop().Sugar()
}

func stubChromium(t *testing.T, path string) {
	t.Helper()
	previous := findChromium
	findChromium = func(string) (string, bool) {
		return path, path != ""
	}
	t.Cleanup(func() {
		findChromium = previous
	})
}

func TestBuildRenderers_RasterPDF(t *testing.T) {
	stubChromium(t, "")
	registry, chromium, err := buildRenderers(config.Defaults(), invoice.NopLogger{})
	if err != nil {
		t.Fatalf("build renderers: %v", err)
	}
	if chromium != nil {
		t.Fatalf("raster engine should not start a browser")
	}
	for _, target := range []invoice.Target{invoice.TargetPreview, invoice.TargetHTML, invoice.TargetPDF} {
		if _, ok := registry.Resolve(target); !ok {
			t.Fatalf("missing renderer for %s", target)
		}
	}

	inv, err := invoicecallback.ReadInvoiceFile(writeInvoice(t))
	if err != nil {
		t.Fatalf("read invoice: %v", err)
	}
	model, err := invoice.BuildModel(inv, nil, invoice.ModelOptions{})
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	pdf, _ := registry.Resolve(invoice.TargetPDF)
	var buf bytes.Buffer
	if _, err := pdf.Render(context.Background(), model, &buf, invoice.RenderOptions{}); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected PDF output")
	}
}

func TestBuildRenderers_AutoPrefersCapture(t *testing.T) {
	stubChromium(t, "/opt/chromium/chrome")
	registry, chromium, err := buildRenderers(config.Defaults(), invoice.NopLogger{})
	if err != nil {
		t.Fatalf("build renderers: %v", err)
	}
	if chromium == nil {
		t.Fatalf("expected capture engine when a browser is found")
	}
	defer chromium.Close()
	if chromium.BrowserPath != "/opt/chromium/chrome" {
		t.Fatalf("unexpected browser path %q", chromium.BrowserPath)
	}

	pdf, _ := registry.Resolve(invoice.TargetPDF)
	raster, ok := pdf.(invoicepdf.RasterRenderer)
	if !ok {
		t.Fatalf("expected raster renderer, got %T", pdf)
	}
	capture, ok := raster.Rasterizer.(invoicepdf.CaptureRasterizer)
	if !ok {
		t.Fatalf("expected capture rasterizer, got %T", raster.Rasterizer)
	}

	inv, err := invoicecallback.ReadInvoiceFile(writeInvoice(t))
	if err != nil {
		t.Fatalf("read invoice: %v", err)
	}
	model, err := invoice.BuildModel(inv, nil, invoice.ModelOptions{})
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	if model.Totals.AmountDue.Value != "₹1,180.00" {
		t.Fatalf("unexpected amount due %q", model.Totals.AmountDue.Value)
	}
	var captured bytes.Buffer
	if _, err := capture.HTMLRenderer.Render(context.Background(), model, &captured, invoice.RenderOptions{}); err != nil {
		t.Fatalf("render capture html: %v", err)
	}
	preview, _ := registry.Resolve(invoice.TargetPreview)
	var previewed bytes.Buffer
	if _, err := preview.Render(context.Background(), model, &previewed, invoice.RenderOptions{}); err != nil {
		t.Fatalf("render preview: %v", err)
	}
	for name, out := range map[string]string{"capture": captured.String(), "preview": previewed.String()} {
		if !strings.Contains(out, model.Totals.AmountDue.Value) {
			t.Fatalf("%s output missing %q", name, model.Totals.AmountDue.Value)
		}
	}
}

func TestBuildRenderers_PainterFontDir(t *testing.T) {
	stubChromium(t, "")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "regular.ttf"), goregular.TTF, 0o600); err != nil {
		t.Fatalf("write font: %v", err)
	}
	cfg := config.Defaults()
	cfg.PDF.FontDir = dir
	registry, _, err := buildRenderers(cfg, invoice.NopLogger{})
	if err != nil {
		t.Fatalf("build renderers: %v", err)
	}
	pdf, _ := registry.Resolve(invoice.TargetPDF)
	painter, ok := pdf.(invoicepdf.RasterRenderer).Rasterizer.(invoiceraster.Painter)
	if !ok || !bytes.Equal(painter.Regular, goregular.TTF) {
		t.Fatalf("expected painter with fonts from %s", dir)
	}

	cfg.PDF.FontDir = t.TempDir()
	if _, _, err := buildRenderers(cfg, invoice.NopLogger{}); err == nil {
		t.Fatalf("expected error for font dir without faces")
	}
}

func TestBuildRenderers_BrowserEngines(t *testing.T) {
	for _, engine := range []string{config.EngineChromium, config.EngineCapture} {
		cfg := config.Defaults()
		cfg.PDF.Engine = engine
		_, chromium, err := buildRenderers(cfg, invoice.NopLogger{})
		if err != nil {
			t.Fatalf("%s: build renderers: %v", engine, err)
		}
		if chromium == nil {
			t.Fatalf("%s: expected chromium engine", engine)
		}
		if err := chromium.Close(); err != nil {
			t.Fatalf("%s: close: %v", engine, err)
		}
	}

	cfg := config.Defaults()
	cfg.PDF.Engine = "latex"
	if _, _, err := buildRenderers(cfg, invoice.NopLogger{}); err == nil {
		t.Fatalf("expected unsupported engine error")
	}
}

func TestBuildRenderers_Pongo2Templates(t *testing.T) {
	stubChromium(t, "")
	cfg := config.Defaults()
	cfg.Template.Engine = config.TemplatePongo2
	registry, _, err := buildRenderers(cfg, invoice.NopLogger{})
	if err != nil {
		t.Fatalf("build renderers: %v", err)
	}
	inv, err := invoicecallback.ReadInvoiceFile(writeInvoice(t))
	if err != nil {
		t.Fatalf("read invoice: %v", err)
	}
	model, err := invoice.BuildModel(inv, nil, invoice.ModelOptions{})
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	preview, _ := registry.Resolve(invoice.TargetPreview)
	var buf bytes.Buffer
	if _, err := preview.Render(context.Background(), model, &buf, invoice.RenderOptions{}); err != nil {
		t.Fatalf("render preview: %v", err)
	}
	if !strings.Contains(buf.String(), "INV-001") {
		t.Fatalf("expected invoice number in preview")
	}
}

func TestSettingsSource_Precedence(t *testing.T) {
	if _, ok := settingsSource(config.SettingsConfig{URL: "http://localhost:3000", File: "s.json"}, nil).(*httpsettings.Source); !ok {
		t.Fatalf("expected URL to win")
	}
	if _, ok := settingsSource(config.SettingsConfig{File: "s.json"}, nil).(invoicecallback.SettingsFile); !ok {
		t.Fatalf("expected settings file")
	}
	db, err := openDB(context.Background(), "file:settings?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if _, ok := settingsSource(config.SettingsConfig{}, db).(*storebun.SettingsRepository); !ok {
		t.Fatalf("expected database settings")
	}
	settings, err := settingsSource(config.SettingsConfig{}, nil).Load(context.Background())
	if err != nil || len(settings) != 0 {
		t.Fatalf("expected empty static settings, got %v %v", settings, err)
	}
}

func TestNewRuntime_DatabaseInvoices(t *testing.T) {
	stubChromium(t, "")
	ctx := context.Background()
	cfg := config.Defaults()
	cfg.Store.DatabaseDSN = "file:runtime?mode=memory&cache=shared"
	cfg.Store.ArtifactDir = t.TempDir()

	rt, err := newRuntime(ctx, cfg, nopSugar(t))
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	defer rt.Close()

	inv, err := invoicecallback.ReadInvoiceFile(writeInvoice(t))
	if err != nil {
		t.Fatalf("read invoice: %v", err)
	}
	if err := rt.invoices.Save(ctx, inv); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := storebun.NewSettingsRepository(rt.db).Set(ctx, invoice.SettingCompanyName, "Acme"); err != nil {
		t.Fatalf("set setting: %v", err)
	}

	loaded, err := rt.service.Invoice(ctx, "inv-1")
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}
	var buf bytes.Buffer
	if _, err := rt.service.Render(ctx, loaded, invoice.TargetPreview, &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "Acme") {
		t.Fatalf("expected stored company name in preview")
	}
}

func TestApp_RenderAndExport(t *testing.T) {
	stubChromium(t, "")
	artifacts := t.TempDir()
	t.Setenv("INVOICER_STORE_ARTIFACT_DIR", artifacts)
	t.Setenv("INVOICER_LOGGING_LEVEL", "error")
	path := writeInvoice(t)

	out := filepath.Join(t.TempDir(), "invoice.html")
	app := newApp()
	if err := app.Run([]string{"invoicer", "render", "--file", path, "--target", "html", "--out", out}); err != nil {
		t.Fatalf("render: %v", err)
	}
	html, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(html), "INV-001") {
		t.Fatalf("expected invoice number in html")
	}

	var stdout bytes.Buffer
	app = newApp()
	app.Writer = &stdout
	if err := app.Run([]string{"invoicer", "export", "--file", path}); err != nil {
		t.Fatalf("export: %v", err)
	}
	key := strings.TrimSpace(stdout.String())
	if !strings.HasPrefix(key, "invoices/") || !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("unexpected artifact key %q", key)
	}
	if _, err := os.Stat(filepath.Join(artifacts, filepath.FromSlash(key))); err != nil {
		t.Fatalf("expected artifact on disk: %v", err)
	}
}

func TestApp_RequiresInvoice(t *testing.T) {
	stubChromium(t, "")
	t.Setenv("INVOICER_LOGGING_LEVEL", "error")
	t.Setenv("INVOICER_STORE_ARTIFACT_DIR", t.TempDir())
	app := newApp()
	app.ExitErrHandler = func(*cli.Context, error) {}
	if err := app.Run([]string{"invoicer", "render"}); err == nil {
		t.Fatalf("expected missing invoice error")
	}
}
