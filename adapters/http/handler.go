package invoicehttp

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/goliatone/go-invoice/adapters/invoiceapi"
	"github.com/goliatone/go-invoice/invoice"
)

// Config configures the HTTP adapter.
type Config = invoiceapi.Config

// Handler exposes invoice HTTP endpoints.
type Handler struct {
	controller *invoiceapi.Controller
}

// NewHandler creates a new HTTP handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: invoiceapi.NewController(cfg)}
}

// RegisterRoutes registers handlers on a compatible router.
func (h *Handler) RegisterRoutes(router any) {
	switch r := router.(type) {
	case *mux.Router:
		h.registerMux(r)
	case interface{ Handle(string, http.Handler) }:
		r.Handle(h.basePath(), h)
		r.Handle(h.basePath()+"/", h)
	case interface {
		HandleFunc(string, func(http.ResponseWriter, *http.Request))
	}:
		r.HandleFunc(h.basePath(), h.ServeHTTP)
		r.HandleFunc(h.basePath()+"/", h.ServeHTTP)
	}
}

// NewRouter returns a gorilla/mux router serving the invoice endpoints.
func NewRouter(cfg Config) *mux.Router {
	r := mux.NewRouter()
	NewHandler(cfg).RegisterRoutes(r)
	return r
}

func (h *Handler) registerMux(r *mux.Router) {
	base := h.basePath()
	r.Handle(base+"/render", h).Methods(http.MethodPost)
	r.Handle(base+"/{id}/export", h).Methods(http.MethodPost)
	r.Handle(base+"/{id}/{target:preview|html|pdf}", h).Methods(http.MethodGet)
}

// ServeHTTP routes invoice endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if w == nil {
		return
	}
	if h == nil || h.controller == nil {
		invoiceapi.WriteError(httpResponse{w: w}, invoice.NewError(invoice.KindInternal, "handler is nil", nil))
		return
	}
	h.controller.Serve(httpRequest{r: r}, httpResponse{w: w})
}

func (h *Handler) basePath() string {
	if h == nil || h.controller == nil {
		return invoiceapi.DefaultBasePath
	}
	path := h.controller.BasePath()
	if path == "" {
		return invoiceapi.DefaultBasePath
	}
	return path
}
