package handlers

import (
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/scanpos/internal/capture"
)

// SubmitCode handles a code read by an external scanner. Known codes add
// one unit to the cart. Unknown codes return 404 so the client can record
// the product with PUT /api/catalog/{code} and submit again.
func (h *Handler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Code   string `json:"code"`
		Format string `json:"format"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}

	code := strings.TrimSpace(request.Code)
	if code == "" {
		h.writeError(w, "code is required", http.StatusBadRequest)
		return
	}
	if _, ok := h.register.Catalog().Lookup(code); !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown product code",
			"code":  code,
		})
		return
	}

	if request.Format == "" {
		request.Format = capture.GTINFormat(code)
	}
	if err := h.register.HandleCode(r.Context(), capture.Detection{RawValue: code, Format: request.Format}); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, h.cartView())
}
