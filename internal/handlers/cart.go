package handlers

import (
	"net/http"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/lehigh-university-libraries/scanpos/internal/pricing"
)

type lineView struct {
	Index         int                 `json:"index"`
	ProductCode   string              `json:"productCode,omitempty"`
	Name          string              `json:"name,omitempty"`
	UnitPrice     int64               `json:"unitPrice"`
	Quantity      int64               `json:"qty"`
	DiscountKind  models.DiscountKind `json:"discountKind"`
	DiscountValue float64             `json:"discountValue"`
	Amount        int64               `json:"amount"`
}

type cartView struct {
	Items   []lineView        `json:"items"`
	Totals  models.Totals     `json:"totals"`
	Tax     models.TaxConfig  `json:"tax"`
	Display map[string]string `json:"display"`
}

func (h *Handler) cartView() cartView {
	items := h.register.Items()
	totals := h.register.Totals()

	view := cartView{
		Items:  make([]lineView, len(items)),
		Totals: totals,
		Tax:    h.register.Tax(),
		Display: map[string]string{
			"subtotal": pricing.FormatYen(totals.Subtotal),
			"tax":      pricing.FormatYen(totals.Tax),
			"total":    pricing.FormatYen(totals.Total),
		},
	}
	for i, item := range items {
		view.Items[i] = lineView{
			Index:         i,
			ProductCode:   item.ProductCode,
			Name:          item.Name,
			UnitPrice:     item.UnitPrice,
			Quantity:      item.Quantity,
			DiscountKind:  item.DiscountKind,
			DiscountValue: item.DiscountValue,
			Amount:        pricing.LineAmount(item),
		}
	}
	return view
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.cartView())
}

// AddItem adds a line. A productCode without a price is looked up in the
// catalog; unknown codes are rejected since the API cannot prompt.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var item models.LineItem
	if !h.decodeJSON(w, r, &item) {
		return
	}

	if item.ProductCode != "" && item.UnitPrice == 0 && item.Name == "" {
		entry, ok := h.register.Catalog().Lookup(item.ProductCode)
		if !ok {
			h.writeError(w, "Unknown product code "+item.ProductCode+"; add it with PUT /api/catalog/{code}", http.StatusNotFound)
			return
		}
		item.Name = entry.Name
		item.UnitPrice = entry.Price
	}

	if err := h.register.AddItem(r.Context(), item); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, h.cartView())
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	index, ok := h.indexOrError(w, r)
	if !ok {
		return
	}
	if err := h.register.RemoveItem(r.Context(), index); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartView())
}

// SetQuantity accepts {"qty": n} or {"delta": 1} / {"delta": -1}
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	index, ok := h.indexOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Quantity *int64 `json:"qty"`
		Delta    int64  `json:"delta"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}

	var err error
	switch {
	case request.Quantity != nil:
		err = h.register.SetQuantity(r.Context(), index, *request.Quantity)
	case request.Delta > 0:
		err = h.register.Increment(r.Context(), index)
	case request.Delta < 0:
		err = h.register.Decrement(r.Context(), index)
	default:
		h.writeError(w, "qty or delta is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartView())
}

func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	index, ok := h.indexOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Kind  string  `json:"kind"`
		Value float64 `json:"value"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}

	if err := h.register.SetDiscount(r.Context(), index, models.ParseDiscountKind(request.Kind), request.Value); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartView())
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.register.ClearCart(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.cartView())
}
