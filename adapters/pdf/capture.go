package invoicepdf

import (
	"context"
	"image"

	"github.com/goliatone/go-invoice/invoice"
)

// Default capture geometry: A4 width at 96 DPI, rendered at twice the
// device pixel ratio.
const (
	DefaultViewportWidth  = 794
	DefaultViewportHeight = 1123
	DefaultCaptureScale   = 2.0
)

// Viewport sizes a capture surface in CSS pixels.
type Viewport struct {
	Width  int
	Height int
	Scale  float64
}

func (v Viewport) withDefaults() Viewport {
	if v.Width <= 0 {
		v.Width = DefaultViewportWidth
	}
	if v.Height <= 0 {
		v.Height = DefaultViewportHeight
	}
	if v.Scale <= 0 {
		v.Scale = DefaultCaptureScale
	}
	return v
}

// Surface is a temporary off-screen page used for a single capture.
type Surface interface {
	Capture(ctx context.Context, html []byte) (image.Image, error)
	Release() error
}

// SurfaceOptions configures a capture surface.
type SurfaceOptions struct {
	Viewport Viewport
	// Assets is the external asset policy. Unspecified falls back to the
	// provider default.
	Assets invoice.PDFExternalAssetsPolicy
}

// SurfaceProvider acquires capture surfaces.
type SurfaceProvider interface {
	Acquire(ctx context.Context, opts SurfaceOptions) (Surface, error)
}

// CaptureRasterizer renders the model to HTML and screenshots it on a
// temporary surface. The surface is released whether or not capture succeeds.
type CaptureRasterizer struct {
	HTMLRenderer invoice.Renderer
	Surfaces     SurfaceProvider
	Viewport     Viewport
	MaxHTMLBytes int64
	Logger       invoice.Logger
}

// Rasterize implements Rasterizer.
func (c CaptureRasterizer) Rasterize(ctx context.Context, model invoice.Model, opts invoice.RenderOptions) (image.Image, error) {
	if c.HTMLRenderer == nil {
		return nil, invoice.NewError(invoice.KindValidation, "capture rasterizer requires html renderer", nil)
	}
	if c.Surfaces == nil {
		return nil, invoice.NewError(invoice.KindValidation, "capture rasterizer requires surface provider", nil)
	}

	buffer := newLimitedBuffer(c.MaxHTMLBytes)
	if _, err := c.HTMLRenderer.Render(ctx, model, buffer, opts); err != nil {
		return nil, err
	}

	surface, err := c.Surfaces.Acquire(ctx, SurfaceOptions{
		Viewport: c.Viewport.withDefaults(),
		Assets:   opts.PDF.ExternalAssetsPolicy,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := surface.Release(); err != nil {
			c.logger().Errorf("release capture surface: %v", err)
		}
	}()

	return surface.Capture(ctx, buffer.Bytes())
}

func (c CaptureRasterizer) logger() invoice.Logger {
	if c.Logger == nil {
		return invoice.NopLogger{}
	}
	return c.Logger
}
