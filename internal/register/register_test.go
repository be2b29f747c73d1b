package register

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/scanpos/internal/capture"
	"github.com/lehigh-university-libraries/scanpos/internal/cart"
	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/lehigh-university-libraries/scanpos/internal/prompt"
	"github.com/lehigh-university-libraries/scanpos/internal/providers"
	"github.com/lehigh-university-libraries/scanpos/internal/scan"
	"github.com/lehigh-university-libraries/scanpos/internal/storage"
)

type fakeRecognizer struct {
	text string
	err  error
	seen providers.Image
}

func (f *fakeRecognizer) Recognize(_ context.Context, img providers.Image) (string, error) {
	f.seen = img
	return f.text, f.err
}

func newRegister(t *testing.T, p prompt.Prompter, rec Recognizer) (*Register, *storage.MemoryStore) {
	t.Helper()
	kv := storage.NewMemory()
	r := New(Config{Store: kv, Prompter: p, Recognizer: rec})
	require.NoError(t, r.Load(context.Background()))
	return r, kv
}

func pngImage(t *testing.T) providers.Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 20, 10))))
	return providers.Image{Data: buf.Bytes(), MIMEType: "image/png"}
}

// --- Codes ---

func TestHandleCodeUnknownProduct(t *testing.T) {
	ctx := context.Background()
	p := prompt.NewScripted().QueueNewProduct(prompt.Confirm(prompt.NewProduct{Name: "Tea", Price: 150}))
	r, _ := newRegister(t, p, nil)

	require.NoError(t, r.HandleCode(ctx, capture.Detection{RawValue: "4901234567894"}))
	assert.Equal(t, []models.LineItem{{
		ProductCode: "4901234567894", Name: "Tea", UnitPrice: 150, Quantity: 1, DiscountKind: models.DiscountNone,
	}}, r.Items())
	assert.Equal(t, models.Totals{Subtotal: 150, Tax: 15, Total: 165}, r.Totals())

	// known now: no second prompt, a second line is appended
	require.NoError(t, r.HandleCode(ctx, capture.Detection{RawValue: "4901234567894"}))
	assert.Len(t, r.Items(), 2)
	assert.Len(t, p.ProductCalls, 1)
}

func TestHandleCodeCancelledAddsNothing(t *testing.T) {
	r, kv := newRegister(t, prompt.NewScripted(), nil)

	require.NoError(t, r.HandleCode(context.Background(), capture.Detection{RawValue: "999"}))
	assert.Empty(t, r.Items())
	assert.Empty(t, r.Catalog().Merged())
	_, ok, err := kv.Get(context.Background(), storage.KeyCart)
	require.NoError(t, err)
	assert.False(t, ok)
}

// --- Price tags ---

func TestReadPrice(t *testing.T) {
	p := prompt.NewScripted().QueuePriceQuantity(prompt.Confirm(prompt.PriceQuantity{Price: 1280, Quantity: 2}))
	rec := &fakeRecognizer{text: "本体 ¥1,164\n税込 ￥１，２８０"}
	r, _ := newRegister(t, p, rec)

	price, err := r.ReadPrice(context.Background(), pngImage(t))
	require.NoError(t, err)
	assert.Equal(t, int64(1280), price)
	assert.Equal(t, "image/jpeg", rec.seen.MIMEType)

	require.Len(t, p.PriceCalls, 1)
	assert.Equal(t, prompt.PriceQuantity{Price: 1280, Quantity: 1}, p.PriceCalls[0])
	assert.Equal(t, models.Totals{Subtotal: 2560, Tax: 256, Total: 2816}, r.Totals())
}

func TestReadPriceNotFound(t *testing.T) {
	p := prompt.NewScripted()
	r, _ := newRegister(t, p, &fakeRecognizer{text: "SALE"})

	_, err := r.ReadPrice(context.Background(), pngImage(t))
	assert.ErrorIs(t, err, ErrPriceNotFound)
	assert.Empty(t, p.PriceCalls)
	assert.Empty(t, r.Items())
}

func TestReadPriceRecognizerError(t *testing.T) {
	r, _ := newRegister(t, prompt.NewScripted(), &fakeRecognizer{err: errors.New("provider down")})
	_, err := r.ReadPrice(context.Background(), providers.Image{Data: []byte("not an image")})
	assert.ErrorContains(t, err, "provider down")
}

func TestRecognizePriceLeavesCartAlone(t *testing.T) {
	p := prompt.NewScripted()
	r, _ := newRegister(t, p, &fakeRecognizer{text: "税込 398円"})

	price, text, err := r.RecognizePrice(context.Background(), pngImage(t))
	require.NoError(t, err)
	assert.Equal(t, int64(398), price)
	assert.Equal(t, "税込 398円", text)
	assert.Empty(t, p.PriceCalls)
	assert.Empty(t, r.Items())
}

func TestManualAdd(t *testing.T) {
	p := prompt.NewScripted().
		QueuePriceQuantity(prompt.Confirm(prompt.PriceQuantity{Price: -100, Quantity: 0})).
		QueuePriceQuantity(prompt.Cancelled[prompt.PriceQuantity]())
	r, _ := newRegister(t, p, nil)

	require.NoError(t, r.ManualAdd(context.Background()))
	require.NoError(t, r.ManualAdd(context.Background()))
	assert.Equal(t, []models.LineItem{{UnitPrice: 0, Quantity: 1, DiscountKind: models.DiscountNone}}, r.Items())
}

// --- Cart edits ---

func TestEditDiscount(t *testing.T) {
	ctx := context.Background()
	p := prompt.NewScripted().QueueDiscount(prompt.Confirm(prompt.Discount{Kind: models.DiscountAmount, Value: 50}))
	r, _ := newRegister(t, p, nil)
	require.NoError(t, r.AddItem(ctx, models.LineItem{UnitPrice: 300, Quantity: 1}))

	require.NoError(t, r.EditDiscount(ctx, 0))
	assert.Equal(t, models.Totals{Subtotal: 250, Tax: 25, Total: 275}, r.Totals())

	// cancelled prompt leaves the discount alone
	require.NoError(t, r.EditDiscount(ctx, 0))
	assert.Equal(t, models.DiscountAmount, r.Items()[0].DiscountKind)
	assert.Equal(t, prompt.Discount{Kind: models.DiscountAmount, Value: 50}, p.DiscountCalls[1])

	assert.ErrorIs(t, r.EditDiscount(ctx, 4), cart.ErrIndexOutOfRange)
}

func TestCartPassThrough(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegister(t, nil, nil)
	require.NoError(t, r.AddItem(ctx, models.LineItem{UnitPrice: 100, Quantity: 1}))
	require.NoError(t, r.AddItem(ctx, models.LineItem{UnitPrice: 200, Quantity: 1}))

	require.NoError(t, r.Increment(ctx, 0))
	require.NoError(t, r.SetQuantity(ctx, 1, 3))
	require.NoError(t, r.Decrement(ctx, 1))
	require.NoError(t, r.SetDiscount(ctx, 1, models.DiscountPercent, 50))
	assert.Equal(t, int64(400), r.Totals().Subtotal)

	require.NoError(t, r.RemoveItem(ctx, 0))
	assert.Len(t, r.Items(), 1)
	require.NoError(t, r.ClearCart(ctx))
	assert.Empty(t, r.Items())
}

// --- Tax ---

func TestTaxSettingsPersistAndRecompute(t *testing.T) {
	ctx := context.Background()
	r, kv := newRegister(t, nil, nil)
	require.NoError(t, r.AddItem(ctx, models.LineItem{UnitPrice: 385, Quantity: 1}))
	assert.Equal(t, int64(39), r.Totals().Tax)

	totals, err := r.SetTaxRate(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(31), totals.Tax)

	totals, err = r.SetRoundingMode(ctx, models.RoundingFloor)
	require.NoError(t, err)
	assert.Equal(t, models.Totals{Subtotal: 385, Tax: 30, Total: 415}, totals)

	rate, _, _ := kv.Get(ctx, storage.KeyTaxRate)
	mode, _, _ := kv.Get(ctx, storage.KeyRoundingMode)
	assert.Equal(t, "8", rate)
	assert.Equal(t, "floor", mode)

	restored := New(Config{Store: kv})
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, models.TaxConfig{RatePercent: 8, Rounding: models.RoundingFloor}, restored.Tax())
	assert.Equal(t, models.Totals{Subtotal: 385, Tax: 30, Total: 415}, restored.Totals())
}

func TestLoadCoercesStoredTax(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, storage.KeyTaxRate, "abc"))
	require.NoError(t, kv.Set(ctx, storage.KeyRoundingMode, "bankers"))

	r := New(Config{Store: kv})
	require.NoError(t, r.Load(ctx))
	assert.Equal(t, models.TaxConfig{RatePercent: 0, Rounding: models.RoundingCeil}, r.Tax())
}

func TestSetTaxRateCoercesNegative(t *testing.T) {
	r, _ := newRegister(t, nil, nil)
	_, err := r.SetTaxRate(context.Background(), -5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Tax().RatePercent)
}

// --- Scanning ---

type stubScanner struct {
	err     error
	started int
	stopped int
}

func (s *stubScanner) Start(context.Context) error { s.started++; return s.err }
func (s *stubScanner) Stop()                       { s.stopped++ }
func (s *stubScanner) Status() scan.Status         { return scan.Status{State: "idle"} }
func (s *stubScanner) Done() <-chan struct{}       { return nil }

func TestStartScanFallsBackToManualEntry(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantErr    bool
		wantPrompt bool
	}{
		{name: "capability unavailable", err: scan.ErrCapabilityUnavailable, wantPrompt: true},
		{name: "acquisition failed", err: scan.ErrAcquisition, wantPrompt: true},
		{name: "started", err: nil},
		{name: "other failure", err: errors.New("boom"), wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := prompt.NewScripted().QueuePriceQuantity(prompt.Confirm(prompt.PriceQuantity{Price: 500, Quantity: 1}))
			r, _ := newRegister(t, p, nil)
			r.SetScanner(&stubScanner{err: tc.err})

			err := r.StartScan(context.Background())
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			prices, _, _ := p.Calls()
			if tc.wantPrompt {
				assert.Equal(t, 1, prices)
				assert.Len(t, r.Items(), 1)
			} else {
				assert.Equal(t, 0, prices)
			}
		})
	}
}

type frameProvider struct {
	mu       sync.Mutex
	frames   []capture.Frame
	released int
}

func (p *frameProvider) Acquire(context.Context, capture.Facing) (capture.Handle, error) { return p, nil }

func (p *frameProvider) Release(capture.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released++
	return nil
}

func (p *frameProvider) Frame(context.Context) (capture.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.frames) == 0 {
		return capture.Frame{}, capture.ErrNoFrame
	}
	f := p.frames[0]
	p.frames = p.frames[1:]
	return f, nil
}

type sourceDetector struct{}

func (sourceDetector) Available(context.Context) bool { return true }

func (sourceDetector) Detect(_ context.Context, f capture.Frame) ([]capture.Detection, error) {
	return []capture.Detection{{RawValue: f.Source, Format: "ean_13"}}, nil
}

func TestScanToTotalsEndToEnd(t *testing.T) {
	p := prompt.NewScripted().QueueNewProduct(prompt.Confirm(prompt.NewProduct{Name: "Tea", Price: 150}))
	r, _ := newRegister(t, p, nil)

	frames := &frameProvider{frames: []capture.Frame{
		{Source: "4901234567894"},
		{Source: "4901234567894"}, // debounced
	}}
	ctrl := scan.NewController(frames, sourceDetector{}, nil, r, scan.Options{FrameInterval: time.Millisecond})
	r.SetScanner(ctrl)

	require.NoError(t, r.StartScan(context.Background()))
	require.Eventually(t, func() bool { return len(r.Items()) == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, "native", r.ScanStatus().Strategy)

	r.StopScan()
	assert.Equal(t, "idle", r.ScanStatus().State)
	assert.Equal(t, 1, frames.released)

	items := r.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(150), items[0].UnitPrice)
	assert.Equal(t, int64(1), items[0].Quantity)
	assert.Equal(t, models.Totals{Subtotal: 150, Tax: 15, Total: 165}, r.Totals())
}
