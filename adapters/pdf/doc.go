// Package invoicepdf renders the invoice model as an A4 portrait PDF.
//
// Two paths are available. Renderer executes an HTML renderer and hands the
// page to a print engine (headless Chromium or wkhtmltopdf). RasterRenderer
// turns the model into an image through a Rasterizer and lays the image out
// on A4 pages with gofpdf; CaptureRasterizer screenshots the HTML on a
// temporary Chromium surface that is always released after capture.
//
// Both renderers are gated by their Enabled flag.
package invoicepdf
