// Package invoicetemplate renders the invoice model as HTML.
//
// The embedded template set defines a shared "invoice-body" partial and two
// entry points: "preview", an HTML fragment rooted at
// <div id="invoice-preview">, and "document", a standalone A4 page used as
// PDF input. Both consume the same TemplateData, so preview and PDF output
// stay in sync.
//
// Renderer is disabled by default; set Renderer.Enabled to true. Templates
// defaults to the embedded html/template set. A pongo2 executor lives in the
// pongo2 subpackage.
package invoicetemplate
