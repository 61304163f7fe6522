package invoice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type recordingLogger struct {
	NopLogger
	errors []string
}

func (l *recordingLogger) Errorf(format string, args ...any) {
	l.errors = append(l.errors, format)
}

func modelEchoRenderer() Renderer {
	return RendererFunc(func(_ context.Context, model Model, w io.Writer, _ RenderOptions) (RenderStats, error) {
		_, err := io.WriteString(w, model.Company.Name+"|"+model.Totals.AmountDue.String())
		return RenderStats{Pages: 1}, err
	})
}

func newTestService(t *testing.T, settings SettingsSource, pdf Renderer, store ArtifactStore, logger Logger) Service {
	t.Helper()
	registry := NewRendererRegistry()
	if err := registry.Register(TargetPreview, modelEchoRenderer()); err != nil {
		t.Fatalf("register preview: %v", err)
	}
	if pdf != nil {
		if err := registry.Register(TargetPDF, pdf); err != nil {
			t.Fatalf("register pdf: %v", err)
		}
	}
	return NewService(ServiceConfig{
		Settings:    settings,
		Invoices:    NewMemoryInvoices(sampleInvoice()),
		Renderers:   registry,
		Store:       store,
		Logger:      logger,
		Now:         func() time.Time { return time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { return "fixed" },
	})
}

func TestService_RenderUsesSettings(t *testing.T) {
	settings := SettingsSourceFunc(func(context.Context) (Settings, error) {
		return Settings{{Key: SettingCompanyName, Value: "Acme"}}, nil
	})
	svc := newTestService(t, settings, nil, nil, nil)

	var buf bytes.Buffer
	stats, err := svc.Render(context.Background(), sampleInvoice(), TargetPreview, &buf)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "Acme|AMOUNT DUE: ₹1,180.00" {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if stats.Bytes != int64(buf.Len()) {
		t.Fatalf("expected %d bytes, got %d", buf.Len(), stats.Bytes)
	}
}

func TestService_SettingsFailureFallsBackToDefaults(t *testing.T) {
	settings := SettingsSourceFunc(func(context.Context) (Settings, error) {
		return nil, NewError(KindSettingsFetch, "settings unavailable", nil)
	})
	logger := &recordingLogger{}
	svc := newTestService(t, settings, nil, nil, logger)

	var buf bytes.Buffer
	if _, err := svc.Render(context.Background(), sampleInvoice(), TargetPreview, &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "MOLLA ENTERPRISES|") {
		t.Fatalf("expected defaults, got %q", buf.String())
	}
	if len(logger.errors) != 1 {
		t.Fatalf("expected settings failure to be logged, got %v", logger.errors)
	}
}

func TestService_RenderUnknownTarget(t *testing.T) {
	svc := newTestService(t, nil, nil, nil, nil)
	_, err := svc.Render(context.Background(), sampleInvoice(), TargetPDF, io.Discard)
	if KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_RenderParseErrorPropagates(t *testing.T) {
	svc := newTestService(t, nil, modelEchoRenderer(), nil, nil)
	inv := sampleInvoice()
	inv.Total = "n/a"
	_, err := svc.Render(context.Background(), inv, TargetPDF, io.Discard)
	if KindFromError(err) != KindParse {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestService_PDFFailureWrapped(t *testing.T) {
	boom := errors.New("browser crashed")
	pdf := RendererFunc(func(context.Context, Model, io.Writer, RenderOptions) (RenderStats, error) {
		return RenderStats{}, boom
	})
	svc := newTestService(t, nil, pdf, NewMemoryStore(), nil)

	_, err := svc.Export(context.Background(), sampleInvoice())
	if KindFromError(err) != KindRender {
		t.Fatalf("expected render error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected cause to be preserved")
	}
	var invErr *InvoiceError
	if !errors.As(err, &invErr) || invErr.Msg != "failed to generate PDF" {
		t.Fatalf("unexpected error message %v", err)
	}
}

func TestService_ExportStoresArtifact(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, nil, modelEchoRenderer(), store, nil)
	ctx := context.Background()

	result, err := svc.Export(ctx, sampleInvoice())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Filename != "INV-001.pdf" || result.InvoiceNumber != "INV-001" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Artifact == nil || result.Artifact.Key != "invoices/fixed/INV-001.pdf" {
		t.Fatalf("unexpected artifact %+v", result.Artifact)
	}

	rc, meta, err := store.Open(ctx, result.Artifact.Key)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if int64(len(data)) != result.Bytes || meta.ContentType != ContentTypePDF {
		t.Fatalf("unexpected artifact data %d bytes, meta %+v", len(data), meta)
	}
}

func TestService_ExportRequiresStore(t *testing.T) {
	svc := newTestService(t, nil, modelEchoRenderer(), nil, nil)
	_, err := svc.Export(context.Background(), sampleInvoice())
	if KindFromError(err) != KindNotImpl {
		t.Fatalf("expected not implemented, got %v", err)
	}
}

func TestService_Invoice(t *testing.T) {
	svc := newTestService(t, nil, nil, nil, nil)
	inv, err := svc.Invoice(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if inv.InvoiceNumber != "INV-001" {
		t.Fatalf("unexpected invoice %+v", inv)
	}
	if _, err := svc.Invoice(context.Background(), "missing"); KindFromError(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Invoice(context.Background(), ""); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
