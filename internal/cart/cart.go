// Package cart holds the ordered list of line items being rung up.
// Every mutation is written through to storage and re-priced immediately;
// a mutation whose write fails is not applied.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/lehigh-university-libraries/scanpos/internal/pricing"
	"github.com/lehigh-university-libraries/scanpos/internal/storage"
)

// ErrIndexOutOfRange is returned when a mutation names a line that does not exist
var ErrIndexOutOfRange = errors.New("cart index out of range")

// TaxSource reports the tax settings totals are computed with
type TaxSource func() models.TaxConfig

type Store struct {
	kv  storage.Store
	tax TaxSource

	mu     sync.Mutex
	items  []models.LineItem
	totals models.Totals
}

func New(kv storage.Store, tax TaxSource) *Store {
	if tax == nil {
		tax = models.DefaultTaxConfig
	}
	return &Store{kv: kv, tax: tax}
}

// Load restores the cart persisted under storage.KeyCart. A missing or
// unreadable cart starts empty.
func (s *Store) Load(ctx context.Context) error {
	raw, ok, err := s.kv.Get(ctx, storage.KeyCart)
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}

	var items []models.LineItem
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			slog.Warn("Discarding unreadable stored cart", "err", err)
			items = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.totals = pricing.ComputeTotals(s.items, s.tax())
	return nil
}

// Items returns a copy of the cart in display order
func (s *Store) Items() []models.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Totals returns the totals computed after the last mutation
func (s *Store) Totals() models.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

// Recompute re-prices the cart, e.g. after the tax settings changed
func (s *Store) Recompute() models.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals = pricing.ComputeTotals(s.items, s.tax())
	return s.totals
}

// Add appends item to the end of the cart
func (s *Store) Add(ctx context.Context, item models.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append(slices.Clone(s.items), item.Normalize())
	return s.commit(ctx, next)
}

func (s *Store) Remove(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(index); err != nil {
		return err
	}
	return s.commit(ctx, slices.Delete(slices.Clone(s.items), index, index+1))
}

// SetQuantity sets the quantity of a line; values below 1 become 1
func (s *Store) SetQuantity(ctx context.Context, index int, quantity int64) error {
	return s.update(ctx, index, func(item *models.LineItem) {
		item.Quantity = max(1, quantity)
	})
}

func (s *Store) Increment(ctx context.Context, index int) error {
	return s.update(ctx, index, func(item *models.LineItem) {
		if item.Quantity < math.MaxInt64 {
			item.Quantity++
		}
	})
}

func (s *Store) Decrement(ctx context.Context, index int) error {
	return s.update(ctx, index, func(item *models.LineItem) {
		item.Quantity = max(1, item.Quantity-1)
	})
}

// SetDiscount replaces the discount on a line
func (s *Store) SetDiscount(ctx context.Context, index int, kind models.DiscountKind, value float64) error {
	return s.update(ctx, index, func(item *models.LineItem) {
		item.DiscountKind = kind
		item.DiscountValue = value
	})
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, nil)
}

// update edits a copy of the line at index and commits it
func (s *Store) update(ctx context.Context, index int, edit func(*models.LineItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(index); err != nil {
		return err
	}
	next := slices.Clone(s.items)
	edit(&next[index])
	next[index] = next[index].Normalize()
	return s.commit(ctx, next)
}

func (s *Store) check(index int) error {
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("%w: %d (cart has %d lines)", ErrIndexOutOfRange, index, len(s.items))
	}
	return nil
}

// commit persists next and only then makes it the cart, so a failed write
// leaves memory matching storage. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next []models.LineItem) error {
	stored := next
	if stored == nil {
		stored = []models.LineItem{}
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeyCart, string(data)); err != nil {
		return fmt.Errorf("failed to persist cart: %w", err)
	}

	s.items = next
	s.totals = pricing.ComputeTotals(s.items, s.tax())
	return nil
}
