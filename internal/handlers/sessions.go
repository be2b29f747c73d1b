package handlers

import (
	"net/http"
)

type scanResponse struct {
	State       string `json:"state"`
	Strategy    string `json:"strategy"`
	SessionID   string `json:"session_id,omitempty"`
	LastCode    string `json:"last_code,omitempty"`
	ManualEntry bool   `json:"manual_entry,omitempty"`
}

func (h *Handler) scanStatus() scanResponse {
	status := h.register.ScanStatus()
	return scanResponse{
		State:     status.State,
		Strategy:  status.Strategy,
		SessionID: status.SessionID,
		LastCode:  status.LastCode,
	}
}

func (h *Handler) GetScanStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.scanStatus())
}

// StartScan begins a scan session that outlives the request. Detected codes
// already in the catalog are added to the cart; unknown codes are skipped.
func (h *Handler) StartScan(w http.ResponseWriter, r *http.Request) {
	if err := h.register.StartScan(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}

	response := h.scanStatus()
	// StartScan falls back to manual entry without starting a session
	response.ManualEntry = response.SessionID == ""
	h.writeJSON(w, http.StatusAccepted, response)
}

func (h *Handler) StopScan(w http.ResponseWriter, r *http.Request) {
	h.register.StopScan()
	h.writeJSON(w, http.StatusOK, h.scanStatus())
}
