package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-invoice/invoice"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Defaults()
	if cfg.Server.Addr() != "localhost:8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr())
	}
	if cfg.PDF.Engine != want.PDF.Engine || cfg.Settings.CacheTTL != 30*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoicer.yaml")
	content := `
server:
  port: "9090"
  router: fiber
settings:
  url: http://localhost:3000
  cache_ttl: 1m
pdf:
  engine: chromium
  margin_top: 10mm
  args:
    - --no-sandbox
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Server.Router != "fiber" {
		t.Fatalf("unexpected server %+v", cfg.Server)
	}
	if cfg.Settings.URL != "http://localhost:3000" || cfg.Settings.CacheTTL != time.Minute {
		t.Fatalf("unexpected settings %+v", cfg.Settings)
	}
	if cfg.PDF.Engine != EngineChromium || cfg.PDF.MarginTop != "10mm" || len(cfg.PDF.Args) != 1 {
		t.Fatalf("unexpected pdf %+v", cfg.PDF)
	}
	if cfg.Store.ArtifactDir != "./artifacts" {
		t.Fatalf("expected default artifact dir, got %q", cfg.Store.ArtifactDir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INVOICER_SERVER_PORT", "7070")
	t.Setenv("INVOICER_PDF_ENGINE", "capture")
	t.Setenv("INVOICER_SETTINGS_CACHE_TTL", "5s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "7070" || cfg.PDF.Engine != EngineCapture || cfg.Settings.CacheTTL != 5*time.Second {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoad_InvalidEngine(t *testing.T) {
	t.Setenv("INVOICER_PDF_ENGINE", "latex")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected invalid engine error")
	}
}

func TestLoad_TemplateEngine(t *testing.T) {
	t.Setenv("INVOICER_TEMPLATE_ENGINE", "pongo2")
	t.Setenv("INVOICER_TEMPLATE_DIR", "/srv/templates")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Template.Engine != TemplatePongo2 || cfg.Template.Dir != "/srv/templates" {
		t.Fatalf("unexpected template config %+v", cfg.Template)
	}

	invalid := Defaults()
	invalid.Template.Dir = "/srv/templates"
	if err := invalid.Validate(); err == nil {
		t.Fatalf("expected template dir to require pongo2")
	}
}

func TestLoad_PDFFontDir(t *testing.T) {
	t.Setenv("INVOICER_PDF_FONT_DIR", "/usr/share/fonts/dejavu")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PDF.Engine != EngineAuto || cfg.PDF.FontDir != "/usr/share/fonts/dejavu" {
		t.Fatalf("unexpected pdf config %+v", cfg.PDF)
	}

	invalid := Defaults()
	invalid.PDF.Engine = EngineChromium
	invalid.PDF.FontDir = "/usr/share/fonts/dejavu"
	if err := invalid.Validate(); err == nil {
		t.Fatalf("expected font dir to require a painting engine")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Development: true})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	var _ invoice.Logger = logger
	if _, err := NewLogger(LoggingConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
