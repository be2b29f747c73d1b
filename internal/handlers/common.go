package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lehigh-university-libraries/scanpos/internal/capability"
	"github.com/lehigh-university-libraries/scanpos/internal/cart"
	"github.com/lehigh-university-libraries/scanpos/internal/catalog"
	"github.com/lehigh-university-libraries/scanpos/internal/images"
	"github.com/lehigh-university-libraries/scanpos/internal/register"
	"github.com/lehigh-university-libraries/scanpos/internal/scan"
)

type Handler struct {
	register *register.Register
	fetcher  *images.Fetcher
}

func New(reg *register.Register) *Handler {
	return &Handler{
		register: reg,
		fetcher:  images.NewFetcher(),
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "status", code)
	}
	h.writeJSON(w, code, map[string]string{"error": message})
}

// writeErr maps package sentinels to status codes
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, cart.ErrIndexOutOfRange):
		code = http.StatusNotFound
	case errors.Is(err, catalog.ErrMalformedDocument), errors.Is(err, images.ErrNotImage):
		code = http.StatusBadRequest
	case errors.Is(err, register.ErrPriceNotFound):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, scan.ErrAlreadyRunning):
		code = http.StatusConflict
	case errors.Is(err, capability.ErrLoadFailed), scan.OffersManualEntry(err):
		code = http.StatusServiceUnavailable
	}
	h.writeError(w, err.Error(), code)
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// Index helpers
func (h *Handler) indexOrError(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, "Invalid item index", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}
