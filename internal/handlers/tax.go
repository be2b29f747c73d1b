package handlers

import (
	"net/http"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
)

func (h *Handler) GetTax(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.register.Tax())
}

// UpdateTax accepts {"rate_percent": 8} and/or {"rounding": "floor"}
func (h *Handler) UpdateTax(w http.ResponseWriter, r *http.Request) {
	var request struct {
		RatePercent *float64 `json:"rate_percent"`
		Rounding    *string  `json:"rounding"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}

	if request.Rounding != nil {
		mode, ok := models.ParseRoundingMode(*request.Rounding)
		if !ok {
			h.writeError(w, "Invalid rounding. Must be 'ceil', 'round', or 'floor'", http.StatusBadRequest)
			return
		}
		if _, err := h.register.SetRoundingMode(r.Context(), mode); err != nil {
			h.writeErr(w, err)
			return
		}
	}
	if request.RatePercent != nil {
		if _, err := h.register.SetTaxRate(r.Context(), *request.RatePercent); err != nil {
			h.writeErr(w, err)
			return
		}
	}

	h.writeJSON(w, http.StatusOK, h.cartView())
}
