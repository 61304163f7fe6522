package invoicepdf

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"

	"github.com/goliatone/go-invoice/invoice"
)

// A4 portrait page size in millimetres.
const (
	A4WidthMM  = 210.0
	A4HeightMM = 297.0
)

// pageTolerance absorbs rounding when an image is a hair taller than a page.
const pageTolerance = 0.5

// Rasterizer turns the rendering model into a bitmap.
type Rasterizer interface {
	Rasterize(ctx context.Context, model invoice.Model, opts invoice.RenderOptions) (image.Image, error)
}

// RasterizerFunc adapts a function to a Rasterizer.
type RasterizerFunc func(ctx context.Context, model invoice.Model, opts invoice.RenderOptions) (image.Image, error)

func (f RasterizerFunc) Rasterize(ctx context.Context, model invoice.Model, opts invoice.RenderOptions) (image.Image, error) {
	if f == nil {
		return nil, errors.New("rasterizer func is nil")
	}
	return f(ctx, model, opts)
}

// RasterRenderer rasterizes the model and assembles the bitmap into A4 pages.
type RasterRenderer struct {
	Enabled    bool
	Rasterizer Rasterizer
	Assembler  Assembler
}

// Render implements invoice.Renderer.
func (r RasterRenderer) Render(ctx context.Context, model invoice.Model, w io.Writer, opts invoice.RenderOptions) (invoice.RenderStats, error) {
	if !r.Enabled {
		return invoice.RenderStats{}, invoice.NewError(invoice.KindNotImpl, "raster pdf renderer is disabled", nil)
	}
	if r.Rasterizer == nil {
		return invoice.RenderStats{}, invoice.NewError(invoice.KindValidation, "raster pdf renderer requires rasterizer", nil)
	}

	img, err := r.Rasterizer.Rasterize(ctx, model, opts)
	if err != nil {
		return invoice.RenderStats{}, err
	}
	if err := ctx.Err(); err != nil {
		return invoice.RenderStats{}, err
	}

	cw := &countingWriter{w: w}
	pages, err := r.Assembler.Assemble(cw, img, model.Meta.InvoiceNumber)
	if err != nil {
		return invoice.RenderStats{Bytes: cw.count}, err
	}
	return invoice.RenderStats{Bytes: cw.count, Pages: pages}, nil
}

// Assembler lays a bitmap out on A4 portrait pages. The image spans the full
// page width and keeps its aspect ratio; taller images continue on following
// pages.
type Assembler struct {
	// DisableCompression turns off PDF stream compression.
	DisableCompression bool
}

// PageCount returns how many A4 pages an image of the given pixel size needs.
func PageCount(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	heightMM := float64(height) * A4WidthMM / float64(width)
	if heightMM <= A4HeightMM+pageTolerance {
		return 1
	}
	return int(math.Ceil((heightMM - pageTolerance) / A4HeightMM))
}

// Assemble writes the PDF to w and returns the page count.
func (a Assembler) Assemble(w io.Writer, img image.Image, title string) (int, error) {
	if img == nil {
		return 0, invoice.NewError(invoice.KindValidation, "assembler requires an image", nil)
	}
	bounds := img.Bounds()
	pages := PageCount(bounds.Dx(), bounds.Dy())
	if pages == 0 {
		return 0, invoice.NewError(invoice.KindValidation, "assembler requires a non-empty image", nil)
	}

	var encoded bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(&encoded, img); err != nil {
		return 0, invoice.NewError(invoice.KindRender, "encode page image", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(!a.DisableCompression)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if title != "" {
		pdf.SetTitle(title, true)
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("invoice", imageOpts, &encoded)

	heightMM := float64(bounds.Dy()) * A4WidthMM / float64(bounds.Dx())
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.ImageOptions("invoice", 0, -float64(i)*A4HeightMM, A4WidthMM, heightMM, false, imageOpts, 0, "")
	}
	if err := pdf.Error(); err != nil {
		return 0, invoice.NewError(invoice.KindRender, "assemble pdf", err)
	}
	if err := pdf.Output(w); err != nil {
		return 0, invoice.NewError(invoice.KindRender, "write pdf", err)
	}
	return pages, nil
}
