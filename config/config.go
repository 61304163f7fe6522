// Package config loads invoicer configuration from defaults, an optional
// YAML file and INVOICER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. INVOICER_SERVER_PORT.
const EnvPrefix = "INVOICER"

// Config holds the invoicer configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Settings SettingsConfig `mapstructure:"settings"`
	Store    StoreConfig    `mapstructure:"store"`
	Template TemplateConfig `mapstructure:"template"`
	PDF      PDFConfig      `mapstructure:"pdf"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	BasePath string `mapstructure:"base_path"`
	// Router selects the transport: "mux" (gorilla) or "fiber" (go-router).
	Router string `mapstructure:"router"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// SettingsConfig selects where settings come from.
type SettingsConfig struct {
	// URL of the settings endpoint. Empty falls back to the database, then
	// to the built-in defaults.
	URL      string        `mapstructure:"url"`
	File     string        `mapstructure:"file"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	ArtifactDir string `mapstructure:"artifact_dir"`
	DatabaseDSN string `mapstructure:"database_dsn"`
}

// TemplateConfig selects the HTML template engine.
type TemplateConfig struct {
	// Engine is "html" (html/template) or "pongo2".
	Engine string `mapstructure:"engine"`
	// Dir overrides the embedded pongo2 templates.
	Dir string `mapstructure:"dir"`
}

// PDFConfig selects and tunes the PDF engine.
type PDFConfig struct {
	// Engine is one of "auto", "chromium", "wkhtmltopdf", "capture" or
	// "raster". Auto captures with Chromium when a browser is found and
	// paints otherwise.
	Engine string `mapstructure:"engine"`
	// FontDir holds regular, bold and italic TTF/OTF faces for the painter.
	FontDir         string        `mapstructure:"font_dir"`
	ChromiumPath    string        `mapstructure:"chromium_path"`
	WKHTMLTOPDFPath string        `mapstructure:"wkhtmltopdf_path"`
	Headless        bool          `mapstructure:"headless"`
	Args            []string      `mapstructure:"args"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Scale           float64       `mapstructure:"scale"`
	MarginTop       string        `mapstructure:"margin_top"`
	MarginBottom    string        `mapstructure:"margin_bottom"`
	MarginLeft      string        `mapstructure:"margin_left"`
	MarginRight     string        `mapstructure:"margin_right"`
	BaseURL         string        `mapstructure:"base_url"`
	BlockExternal   bool          `mapstructure:"block_external"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Engines accepted by PDFConfig.Engine.
const (
	EngineAuto        = "auto"
	EngineChromium    = "chromium"
	EngineWKHTMLTOPDF = "wkhtmltopdf"
	EngineCapture     = "capture"
	EngineRaster      = "raster"
)

// Template engines accepted by TemplateConfig.Engine.
const (
	TemplateHTML   = "html"
	TemplatePongo2 = "pongo2"
)

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:     "localhost",
			Port:     "8080",
			BasePath: "/invoices",
			Router:   "mux",
		},
		Settings: SettingsConfig{
			CacheTTL: 30 * time.Second,
			Timeout:  10 * time.Second,
		},
		Store: StoreConfig{
			ArtifactDir: "./artifacts",
		},
		Template: TemplateConfig{
			Engine: TemplateHTML,
		},
		PDF: PDFConfig{
			Engine:   EngineAuto,
			Headless: true,
			Timeout:  30 * time.Second,
			Scale:    1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	switch c.PDF.Engine {
	case EngineAuto, EngineChromium, EngineWKHTMLTOPDF, EngineCapture, EngineRaster:
	default:
		return fmt.Errorf("invalid pdf engine %q", c.PDF.Engine)
	}
	if c.PDF.FontDir != "" && c.PDF.Engine != EngineAuto && c.PDF.Engine != EngineRaster {
		return fmt.Errorf("pdf font dir requires the %s or %s engine", EngineAuto, EngineRaster)
	}
	switch c.Template.Engine {
	case TemplateHTML, TemplatePongo2:
	default:
		return fmt.Errorf("invalid template engine %q", c.Template.Engine)
	}
	if c.Template.Dir != "" && c.Template.Engine != TemplatePongo2 {
		return fmt.Errorf("template dir requires the %s engine", TemplatePongo2)
	}
	switch c.Server.Router {
	case "mux", "fiber":
	default:
		return fmt.Errorf("invalid server router %q", c.Server.Router)
	}
	if c.PDF.Scale < 0 {
		return fmt.Errorf("invalid pdf scale %v", c.PDF.Scale)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.base_path", d.Server.BasePath)
	v.SetDefault("server.router", d.Server.Router)

	v.SetDefault("settings.url", d.Settings.URL)
	v.SetDefault("settings.file", d.Settings.File)
	v.SetDefault("settings.cache_ttl", d.Settings.CacheTTL)
	v.SetDefault("settings.timeout", d.Settings.Timeout)

	v.SetDefault("store.artifact_dir", d.Store.ArtifactDir)
	v.SetDefault("store.database_dsn", d.Store.DatabaseDSN)

	v.SetDefault("template.engine", d.Template.Engine)
	v.SetDefault("template.dir", d.Template.Dir)

	v.SetDefault("pdf.engine", d.PDF.Engine)
	v.SetDefault("pdf.font_dir", d.PDF.FontDir)
	v.SetDefault("pdf.chromium_path", d.PDF.ChromiumPath)
	v.SetDefault("pdf.wkhtmltopdf_path", d.PDF.WKHTMLTOPDFPath)
	v.SetDefault("pdf.headless", d.PDF.Headless)
	v.SetDefault("pdf.args", d.PDF.Args)
	v.SetDefault("pdf.timeout", d.PDF.Timeout)
	v.SetDefault("pdf.scale", d.PDF.Scale)
	v.SetDefault("pdf.margin_top", d.PDF.MarginTop)
	v.SetDefault("pdf.margin_bottom", d.PDF.MarginBottom)
	v.SetDefault("pdf.margin_left", d.PDF.MarginLeft)
	v.SetDefault("pdf.margin_right", d.PDF.MarginRight)
	v.SetDefault("pdf.base_url", d.PDF.BaseURL)
	v.SetDefault("pdf.block_external", d.PDF.BlockExternal)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
}
