// Package register owns the application state of a checkout terminal: the
// cart, the catalog, tax settings and the scan session.
package register

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/lehigh-university-libraries/scanpos/internal/capture"
	"github.com/lehigh-university-libraries/scanpos/internal/cart"
	"github.com/lehigh-university-libraries/scanpos/internal/catalog"
	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/lehigh-university-libraries/scanpos/internal/ocr"
	"github.com/lehigh-university-libraries/scanpos/internal/prompt"
	"github.com/lehigh-university-libraries/scanpos/internal/providers"
	"github.com/lehigh-university-libraries/scanpos/internal/scan"
	"github.com/lehigh-university-libraries/scanpos/internal/storage"
)

// ErrPriceNotFound means no price could be read from the image
var ErrPriceNotFound = errors.New("no price found")

// Recognizer reads text from an image
type Recognizer interface {
	Recognize(ctx context.Context, img providers.Image) (string, error)
}

// ScanController is the part of scan.Controller the register drives
type ScanController interface {
	Start(ctx context.Context) error
	Stop()
	Status() scan.Status
	Done() <-chan struct{}
}

type Config struct {
	Store      storage.Store
	Catalog    *catalog.Catalog
	Prompter   prompt.Prompter
	Recognizer Recognizer
	DefaultTax models.TaxConfig
}

type Register struct {
	kv         storage.Store
	cart       *cart.Store
	catalog    *catalog.Catalog
	resolver   *catalog.Resolver
	prompter   prompt.Prompter
	recognizer Recognizer

	taxMu sync.RWMutex
	tax   models.TaxConfig

	// mu serializes operations that mutate the cart or catalog
	mu      sync.Mutex
	scanner ScanController
}

// New builds a register. Call Load before use.
func New(cfg Config) *Register {
	if cfg.Prompter == nil {
		cfg.Prompter = prompt.Declined{}
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.New(cfg.Store, nil)
	}
	if cfg.DefaultTax.Rounding == "" {
		cfg.DefaultTax = models.DefaultTaxConfig()
	}

	r := &Register{
		kv:         cfg.Store,
		catalog:    cfg.Catalog,
		resolver:   catalog.NewResolver(cfg.Catalog, cfg.Prompter),
		prompter:   cfg.Prompter,
		recognizer: cfg.Recognizer,
		tax:        cfg.DefaultTax,
	}
	r.cart = cart.New(cfg.Store, r.Tax)
	return r
}

// SetScanner attaches the scan controller
func (r *Register) SetScanner(s ScanController) {
	r.scanner = s
}

// Load restores tax settings, the user catalog and the cart
func (r *Register) Load(ctx context.Context) error {
	tax := r.Tax()
	if raw, ok, err := r.kv.Get(ctx, storage.KeyTaxRate); err != nil {
		return fmt.Errorf("failed to load tax rate: %w", err)
	} else if ok {
		tax.RatePercent = models.Float(raw)
	}
	if raw, ok, err := r.kv.Get(ctx, storage.KeyRoundingMode); err != nil {
		return fmt.Errorf("failed to load rounding mode: %w", err)
	} else if ok {
		tax.Rounding, _ = models.ParseRoundingMode(raw)
	}
	r.taxMu.Lock()
	r.tax = tax
	r.taxMu.Unlock()

	if err := r.catalog.Load(ctx); err != nil {
		return err
	}
	if err := r.cart.Load(ctx); err != nil {
		return err
	}
	slog.Debug("Register loaded", "items", r.cart.Len(), "catalog_entries", r.catalog.Len(), "tax_rate", tax.RatePercent, "rounding", tax.Rounding)
	return nil
}

func (r *Register) Catalog() *catalog.Catalog {
	return r.catalog
}

func (r *Register) Tax() models.TaxConfig {
	r.taxMu.RLock()
	defer r.taxMu.RUnlock()
	return r.tax
}

func (r *Register) Items() []models.LineItem {
	return r.cart.Items()
}

func (r *Register) Totals() models.Totals {
	return r.cart.Totals()
}

// HandleCode resolves a detected code and adds one unit to the cart
func (r *Register) HandleCode(ctx context.Context, d capture.Detection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, err := r.resolver.Resolve(ctx, d.RawValue)
	if err != nil {
		return err
	}
	if entry == nil {
		slog.Debug("Code not added", "code", d.RawValue)
		return nil
	}

	return r.cart.Add(ctx, models.LineItem{
		ProductCode: entry.Code,
		Name:        entry.Name,
		UnitPrice:   entry.Price,
		Quantity:    1,
	})
}

// ReadPrice crops a price-tag frame, reads the price and asks the operator
// to confirm it with a quantity.
func (r *Register) ReadPrice(ctx context.Context, img providers.Image) (int64, error) {
	price, _, err := r.RecognizePrice(ctx, img)
	if err != nil {
		return 0, err
	}
	return price, r.addWithPrompt(ctx, prompt.PriceQuantity{Price: price, Quantity: 1})
}

// RecognizePrice crops a price-tag frame and extracts a price from it
// without touching the cart. The recognized text is returned alongside.
func (r *Register) RecognizePrice(ctx context.Context, img providers.Image) (int64, string, error) {
	if r.recognizer == nil {
		return 0, "", errors.New("no price recognizer configured")
	}

	cropped, err := ocr.CropPriceRegion(img)
	if err != nil {
		slog.Warn("Failed to crop frame, using it whole", "err", err)
		cropped = img
	}

	text, err := r.recognizer.Recognize(ctx, cropped)
	if err != nil {
		return 0, "", err
	}

	price, ok := ocr.ExtractPrice(text)
	if !ok {
		slog.Info("No price in recognized text", "text", text)
		return 0, text, ErrPriceNotFound
	}
	slog.Info("Read price", "price", price)
	return price, text, nil
}

// ManualAdd asks for a price and quantity and adds the item
func (r *Register) ManualAdd(ctx context.Context) error {
	return r.addWithPrompt(ctx, prompt.PriceQuantity{Quantity: 1})
}

func (r *Register) addWithPrompt(ctx context.Context, initial prompt.PriceQuantity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resp, err := r.prompter.PromptPriceQuantity(ctx, initial)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to prompt for price: %w", err)
	}
	if !resp.Confirmed {
		return nil
	}

	pq := resp.Value.Normalize()
	return r.cart.Add(ctx, models.LineItem{UnitPrice: pq.Price, Quantity: pq.Quantity})
}

// AddItem adds an item without prompting
func (r *Register) AddItem(ctx context.Context, item models.LineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart.Add(ctx, item)
}

// EditDiscount prompts for a new discount on the line at index
func (r *Register) EditDiscount(ctx context.Context, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.cart.Items()
	if index < 0 || index >= len(items) {
		return fmt.Errorf("%w: %d", cart.ErrIndexOutOfRange, index)
	}
	current := prompt.Discount{Kind: items[index].DiscountKind, Value: items[index].DiscountValue}

	resp, err := r.prompter.PromptDiscount(ctx, current)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to prompt for discount: %w", err)
	}
	if !resp.Confirmed {
		return nil
	}
	d := resp.Value.Normalize()
	return r.cart.SetDiscount(ctx, index, d.Kind, d.Value)
}

func (r *Register) SetDiscount(ctx context.Context, index int, kind models.DiscountKind, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart.SetDiscount(ctx, index, kind, value)
}

func (r *Register) SetQuantity(ctx context.Context, index int, quantity int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart.SetQuantity(ctx, index, quantity)
}

func (r *Register) Increment(ctx context.Context, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart.Increment(ctx, index)
}

func (r *Register) Decrement(ctx context.Context, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart.Decrement(ctx, index)
}

func (r *Register) RemoveItem(ctx context.Context, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart.Remove(ctx, index)
}

func (r *Register) ClearCart(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart.Clear(ctx)
}

// SetTaxRate stores a new rate and re-prices the cart. Negative or
// non-finite rates become 0.
func (r *Register) SetTaxRate(ctx context.Context, rate float64) (models.Totals, error) {
	rate = models.NonNegative(rate)
	if err := r.kv.Set(ctx, storage.KeyTaxRate, strconv.FormatFloat(rate, 'f', -1, 64)); err != nil {
		return r.cart.Totals(), fmt.Errorf("failed to persist tax rate: %w", err)
	}
	r.taxMu.Lock()
	r.tax.RatePercent = rate
	r.taxMu.Unlock()
	return r.cart.Recompute(), nil
}

// SetRoundingMode stores a new rounding mode and re-prices the cart
func (r *Register) SetRoundingMode(ctx context.Context, mode models.RoundingMode) (models.Totals, error) {
	mode, _ = models.ParseRoundingMode(string(mode))
	if err := r.kv.Set(ctx, storage.KeyRoundingMode, string(mode)); err != nil {
		return r.cart.Totals(), fmt.Errorf("failed to persist rounding mode: %w", err)
	}
	r.taxMu.Lock()
	r.tax.Rounding = mode
	r.taxMu.Unlock()
	return r.cart.Recompute(), nil
}

// StartScan begins a scan session. When no capability can scan, the
// operator is offered manual entry instead and nil is returned.
func (r *Register) StartScan(ctx context.Context) error {
	if r.scanner == nil {
		slog.Info("No scanner configured, falling back to manual entry")
		return r.ManualAdd(ctx)
	}

	err := r.scanner.Start(ctx)
	if err == nil {
		return nil
	}
	if scan.OffersManualEntry(err) {
		slog.Warn("Scanning unavailable, falling back to manual entry", "err", err)
		return r.ManualAdd(ctx)
	}
	return err
}

func (r *Register) StopScan() {
	if r.scanner != nil {
		r.scanner.Stop()
	}
}

func (r *Register) ScanStatus() scan.Status {
	if r.scanner == nil {
		return scan.Status{State: scan.StateIdle.String(), Strategy: scan.StrategyNone.String()}
	}
	return r.scanner.Status()
}

// ScanDone is closed when the current scan session ends
func (r *Register) ScanDone() <-chan struct{} {
	if r.scanner == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.scanner.Done()
}
