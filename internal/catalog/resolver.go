package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/lehigh-university-libraries/scanpos/internal/prompt"
)

// ProductPrompter asks the operator to describe an unknown product
type ProductPrompter interface {
	PromptNewProduct(ctx context.Context, code string) (prompt.Response[prompt.NewProduct], error)
}

// Resolver turns a detected code into a catalog entry
type Resolver struct {
	catalog  *Catalog
	prompter ProductPrompter
}

func NewResolver(c *Catalog, p ProductPrompter) *Resolver {
	return &Resolver{catalog: c, prompter: p}
}

// Resolve returns the entry for code. Unknown codes prompt for a name and
// price and are recorded in the user catalog. A cancelled prompt or an
// empty name resolves to nil without error.
func (r *Resolver) Resolve(ctx context.Context, code string) (*models.CatalogEntry, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	if e, ok := r.catalog.Lookup(code); ok {
		slog.Debug("Catalog hit", "code", code, "name", e.Name)
		return &e, nil
	}

	slog.Info("Unknown product code", "code", code)
	resp, err := r.prompter.PromptNewProduct(ctx, code)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to prompt for product %s: %w", code, err)
	}
	if !resp.Confirmed {
		return nil, nil
	}

	product := resp.Value.Normalize()
	if product.Name == "" {
		return nil, nil
	}

	entry := models.CatalogEntry{Code: code, Name: product.Name, Price: product.Price}
	if err := r.catalog.Put(ctx, entry); err != nil {
		return nil, err
	}
	slog.Info("Recorded new product", "code", code, "name", entry.Name, "price", entry.Price)
	return &entry, nil
}
