// Package invoiceapi holds the transport-neutral invoice HTTP controller.
// Transport adapters (net/http, go-router) implement Request and Response and
// delegate to Controller.Serve.
package invoiceapi
