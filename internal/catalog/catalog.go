// Package catalog maps product codes to names and prices.
//
// The runtime view is a base catalog with the user's own entries layered
// on top. User entries win on collision and are persisted under
// storage.KeyCatalog; the base is never written.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/lehigh-university-libraries/scanpos/internal/storage"
)

// ErrMalformedDocument is returned when an imported catalog cannot be parsed
var ErrMalformedDocument = errors.New("malformed catalog document")

// Entries maps a product code to its entry
type Entries map[string]models.CatalogEntry

type Catalog struct {
	kv storage.Store

	mu      sync.RWMutex
	base    Entries
	overlay Entries
}

func New(kv storage.Store, base Entries) *Catalog {
	return &Catalog{
		kv:      kv,
		base:    normalize(base),
		overlay: Entries{},
	}
}

// Load restores the user overlay. An unreadable overlay is logged and ignored.
func (c *Catalog) Load(ctx context.Context) error {
	raw, ok, err := c.kv.Get(ctx, storage.KeyCatalog)
	if err != nil {
		return fmt.Errorf("failed to load user catalog: %w", err)
	}

	overlay := Entries{}
	if ok && raw != "" {
		parsed, err := DecodeJSON([]byte(raw))
		if err != nil {
			slog.Warn("Discarding unreadable user catalog", "err", err)
		} else {
			overlay = parsed
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlay = overlay
	return nil
}

// Lookup returns the merged entry for code
func (c *Catalog) Lookup(code string) (models.CatalogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.overlay[code]; ok {
		return e, true
	}
	e, ok := c.base[code]
	return e, ok
}

// Merged returns a copy of the runtime view
func (c *Catalog) Merged() Entries {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(Entries, len(c.base)+len(c.overlay))
	maps.Copy(out, c.base)
	maps.Copy(out, c.overlay)
	return out
}

// User returns a copy of the user overlay
func (c *Catalog) User() Entries {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.overlay)
}

func (c *Catalog) Len() int {
	return len(c.Merged())
}

// Put records or replaces a user entry
func (c *Catalog) Put(ctx context.Context, entry models.CatalogEntry) error {
	entry.Code = strings.TrimSpace(entry.Code)
	if entry.Code == "" {
		return errors.New("product code is required")
	}
	return c.Import(ctx, Entries{entry.Code: entry})
}

// Import layers entries over the user overlay; imported entries win.
func (c *Catalog) Import(ctx context.Context, entries Entries) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := maps.Clone(c.overlay)
	maps.Copy(next, normalize(entries))

	data, err := EncodeJSON(next)
	if err != nil {
		return fmt.Errorf("failed to encode user catalog: %w", err)
	}
	if err := c.kv.Set(ctx, storage.KeyCatalog, string(data)); err != nil {
		return fmt.Errorf("failed to persist user catalog: %w", err)
	}
	c.overlay = next
	return nil
}

func normalize(in Entries) Entries {
	out := make(Entries, len(in))
	for code, e := range in {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		e.Code = code
		e.Name = strings.TrimSpace(e.Name)
		e.Price = max(0, e.Price)
		out[code] = e
	}
	return out
}

