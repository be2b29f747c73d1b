package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cast"

	"github.com/lehigh-university-libraries/scanpos/internal/images"
	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/lehigh-university-libraries/scanpos/internal/ocr"
	"github.com/lehigh-university-libraries/scanpos/internal/providers"
	"github.com/lehigh-university-libraries/scanpos/internal/register"
)

type priceResponse struct {
	Price int64     `json:"price"`
	Found bool      `json:"found"`
	Text  string    `json:"text,omitempty"`
	Added bool      `json:"added"`
	Cart  *cartView `json:"cart,omitempty"`
}

// HandleUpload reads a price from a price-tag photo or from already
// recognized text. With add=true the price is added to the cart using qty
// (default 1).
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		h.handleJSONUpload(w, r)
		return
	}

	h.handleFileUpload(w, r)
}

func (h *Handler) handleJSONUpload(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Text     string `json:"text"`
		ImageURL string `json:"image_url"`
		Add      bool   `json:"add"`
		Quantity any    `json:"qty"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}

	switch {
	case request.Text != "":
		price, ok := ocr.ExtractPrice(request.Text)
		if !ok {
			h.writeJSON(w, http.StatusUnprocessableEntity, priceResponse{Text: request.Text})
			return
		}
		h.respondPrice(r.Context(), w, price, request.Text, request.Add, request.Quantity)
	case request.ImageURL != "":
		u, err := url.Parse(request.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			h.writeError(w, "image_url must be an http(s) URL", http.StatusBadRequest)
			return
		}
		img, err := h.fetcher.Load(r.Context(), u.String())
		if err != nil {
			h.writeError(w, "Failed to process image URL: "+err.Error(), http.StatusBadRequest)
			return
		}
		h.recognize(w, r, img, request.Add, request.Quantity)
	default:
		h.writeError(w, "text or image_url is required", http.StatusBadRequest)
	}
}

func (h *Handler) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, images.MaxImageBytes+1<<20)

	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	fileData, err := io.ReadAll(io.LimitReader(file, images.MaxImageBytes+1))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if len(fileData) > images.MaxImageBytes {
		h.writeError(w, "File too large (max 20MB)", http.StatusRequestEntityTooLarge)
		return
	}

	img, err := images.FromBytes(fileData)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	var qty any
	if q := r.FormValue("qty"); q != "" {
		qty = q
	}
	h.recognize(w, r, img, cast.ToBool(r.FormValue("add")), qty)
}

func (h *Handler) recognize(w http.ResponseWriter, r *http.Request, img providers.Image, add bool, qty any) {
	price, text, err := h.register.RecognizePrice(r.Context(), img)
	if errors.Is(err, register.ErrPriceNotFound) {
		h.writeJSON(w, http.StatusUnprocessableEntity, priceResponse{Text: text})
		return
	}
	if err != nil {
		h.writeError(w, "Failed to recognize price: "+err.Error(), http.StatusBadGateway)
		return
	}
	h.respondPrice(r.Context(), w, price, text, add, qty)
}

func (h *Handler) respondPrice(ctx context.Context, w http.ResponseWriter, price int64, text string, add bool, qty any) {
	response := priceResponse{Price: price, Found: true, Text: text}
	if !add {
		h.writeJSON(w, http.StatusOK, response)
		return
	}

	item := models.LineItem{UnitPrice: price, Quantity: models.Int(qty, 1)}
	if err := h.register.AddItem(ctx, item); err != nil {
		h.writeErr(w, err)
		return
	}
	view := h.cartView()
	response.Added = true
	response.Cart = &view
	h.writeJSON(w, http.StatusCreated, response)
}
