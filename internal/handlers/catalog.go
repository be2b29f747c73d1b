package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"

	"github.com/lehigh-university-libraries/scanpos/internal/catalog"
	"github.com/lehigh-university-libraries/scanpos/internal/models"
)

// maxCatalogBytes bounds catalog imports
const maxCatalogBytes = 32 << 20

type catalogEntryView struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

func entryView(e models.CatalogEntry) catalogEntryView {
	return catalogEntryView{Code: e.Code, Name: e.Name, Price: e.Price}
}

// GetCatalog returns the merged catalog, or search results when q is set
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	c := h.register.Catalog()

	if q := r.URL.Query().Get("q"); q != "" {
		limit := cast.ToInt(r.URL.Query().Get("limit"))
		results := c.Search(q, limit)
		views := make([]catalogEntryView, len(results))
		for i, e := range results {
			views[i] = entryView(e)
		}
		h.writeJSON(w, http.StatusOK, views)
		return
	}

	entries := c.Merged()
	if r.URL.Query().Get("scope") == "user" {
		entries = c.User()
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// PutCatalogEntry records a product in the user catalog. This is how API
// clients resolve an unknown code since the server cannot prompt.
func (h *Handler) PutCatalogEntry(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))

	var request struct {
		Name  string `json:"name"`
		Price any    `json:"price"`
	}
	if !h.decodeJSON(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.Name) == "" {
		h.writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	entry := models.CatalogEntry{Code: code, Name: strings.TrimSpace(request.Name), Price: models.Int(request.Price, 0)}
	if err := h.register.Catalog().Put(r.Context(), entry); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entryView(entry))
}

// ImportCatalog merges a catalog document into the user catalog. The body
// is either a multipart "file" or a raw document whose format comes from
// the format parameter or the Content-Type.
func (h *Handler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCatalogBytes)

	var (
		data   []byte
		format catalog.Format
		err    error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			h.writeError(w, "Failed to read file: "+ferr.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		if format, err = catalog.FormatFromPath(header.Filename); err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err = io.ReadAll(file)
	} else {
		if format, err = requestFormat(r); err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		h.writeError(w, "Failed to read catalog: "+err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := catalog.Decode(data, format)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if err := h.register.Catalog().Import(r.Context(), entries); err != nil {
		h.writeErr(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"imported": len(entries),
		"total":    h.register.Catalog().Len(),
	})
}

// ExportCatalog writes the merged catalog, or only user entries with
// scope=user, in the requested format (json by default).
func (h *Handler) ExportCatalog(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(catalog.FormatJSON)
	}
	format, err := catalog.ParseFormat(name)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	c := h.register.Catalog()
	entries := c.Merged()
	if r.URL.Query().Get("scope") == "user" {
		entries = c.User()
	}

	var buf bytes.Buffer
	if err := catalog.Encode(&buf, entries, format); err != nil {
		h.writeError(w, "Failed to encode catalog: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("Content-Disposition", `attachment; filename="catalog.`+string(format)+`"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.writeError(w, "Failed to write catalog: "+err.Error(), http.StatusInternalServerError)
	}
}

var contentTypes = map[catalog.Format]string{
	catalog.FormatJSON:    "application/json",
	catalog.FormatYAML:    "application/yaml",
	catalog.FormatParquet: "application/vnd.apache.parquet",
}

func requestFormat(r *http.Request) (catalog.Format, error) {
	if name := r.URL.Query().Get("format"); name != "" {
		return catalog.ParseFormat(name)
	}
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "yaml"):
		return catalog.FormatYAML, nil
	case strings.Contains(contentType, "parquet"), strings.Contains(contentType, "octet-stream"):
		return catalog.FormatParquet, nil
	default:
		return catalog.FormatJSON, nil
	}
}
