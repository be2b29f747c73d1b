// Package handlers implements the JSON HTTP API over a register.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Router builds the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	h.Routes(r)
	return r
}

// Routes mounts the /api routes
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		// Cart
		r.Get("/cart", h.GetCart)
		r.Delete("/cart", h.ClearCart)
		r.Post("/cart/items", h.AddItem)
		r.Delete("/cart/items/{index}", h.RemoveItem)
		r.Put("/cart/items/{index}/quantity", h.SetQuantity)
		r.Put("/cart/items/{index}/discount", h.SetDiscount)

		// Tax
		r.Get("/tax", h.GetTax)
		r.Put("/tax", h.UpdateTax)

		// Catalog
		r.Get("/catalog", h.GetCatalog)
		r.Put("/catalog/{code}", h.PutCatalogEntry)
		r.Post("/catalog/import", h.ImportCatalog)
		r.Get("/catalog/export", h.ExportCatalog)

		// Detection and recognition
		r.Post("/codes", h.SubmitCode)
		r.Post("/price", h.HandleUpload)

		// Scan sessions
		r.Get("/scan", h.GetScanStatus)
		r.Post("/scan/start", h.StartScan)
		r.Post("/scan/stop", h.StopScan)
	})
}
