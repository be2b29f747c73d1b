package pricing

import (
	"math"
	"testing"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// --- RoundingPolicy ---

func TestRoundModes(t *testing.T) {
	testCases := []struct {
		value string
		ceil  int64
		round int64
		floor int64
	}{
		{"2.5", 3, 3, 2},
		{"-2.5", -2, -3, -3},
		{"2.4", 3, 2, 2},
		{"2.6", 3, 3, 2},
		{"15", 15, 15, 15},
		{"-0.1", 0, 0, -1},
		{"14.000001", 15, 14, 14},
	}

	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			d := decimal.RequireFromString(tc.value)
			assert.Equal(t, tc.ceil, Round(models.RoundingCeil, d))
			assert.Equal(t, tc.round, Round(models.RoundingRound, d))
			assert.Equal(t, tc.floor, Round(models.RoundingFloor, d))
		})
	}
}

func TestRoundOrdering(t *testing.T) {
	for _, v := range []float64{-1000.75, -3.5, -0.2, 0, 0.2, 1.5, 99.99, 12345.5} {
		c := RoundFloat(models.RoundingCeil, v)
		f := RoundFloat(models.RoundingFloor, v)
		assert.GreaterOrEqual(t, float64(c), v)
		assert.LessOrEqual(t, float64(f), v)
	}
}

func TestRoundFloatNonFinite(t *testing.T) {
	assert.Equal(t, int64(0), RoundFloat(models.RoundingCeil, math.NaN()))
	assert.Equal(t, int64(0), RoundFloat(models.RoundingFloor, math.Inf(-1)))
}

// --- PricingEngine ---

func TestLineAmount(t *testing.T) {
	testCases := []struct {
		name     string
		item     models.LineItem
		expected int64
	}{
		{
			name:     "no discount",
			item:     models.LineItem{UnitPrice: 150, Quantity: 3},
			expected: 450,
		},
		{
			name:     "percent discount rounds half away from zero",
			item:     models.LineItem{UnitPrice: 105, Quantity: 1, DiscountKind: models.DiscountPercent, DiscountValue: 10},
			expected: 94, // 10.5 off rounds to 11
		},
		{
			name:     "percent above one hundred clamps to zero",
			item:     models.LineItem{UnitPrice: 200, Quantity: 2, DiscountKind: models.DiscountPercent, DiscountValue: 150},
			expected: 0,
		},
		{
			name:     "amount discount",
			item:     models.LineItem{UnitPrice: 300, Quantity: 2, DiscountKind: models.DiscountAmount, DiscountValue: 50},
			expected: 550,
		},
		{
			name:     "amount larger than line floors at zero",
			item:     models.LineItem{UnitPrice: 100, Quantity: 1, DiscountKind: models.DiscountAmount, DiscountValue: 1000},
			expected: 0,
		},
		{
			name:     "zero quantity is treated as one",
			item:     models.LineItem{UnitPrice: 120, Quantity: 0},
			expected: 120,
		},
		{
			name:     "negative inputs degrade to zero",
			item:     models.LineItem{UnitPrice: -50, Quantity: 2, DiscountKind: models.DiscountAmount, DiscountValue: math.NaN()},
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, LineAmount(tc.item))
		})
	}
}

func TestComputeTotals(t *testing.T) {
	items := []models.LineItem{
		{UnitPrice: 150, Quantity: 1},
		{UnitPrice: 98, Quantity: 3, DiscountKind: models.DiscountPercent, DiscountValue: 20},
		{UnitPrice: 500, Quantity: 1, DiscountKind: models.DiscountAmount, DiscountValue: 600},
	}

	var sum int64
	for _, it := range items {
		amount := LineAmount(it)
		assert.GreaterOrEqual(t, amount, int64(0))
		sum += amount
	}

	totals := ComputeTotals(items, models.TaxConfig{RatePercent: 8, Rounding: models.RoundingFloor})
	assert.Equal(t, sum, totals.Subtotal)
	assert.Equal(t, int64(150+235), totals.Subtotal) // 294 less round(58.8)=59
	assert.Equal(t, int64(30), totals.Tax)            // floor(30.8)
	assert.Equal(t, totals.Subtotal+totals.Tax, totals.Total)
}

func TestComputeTotalsCeilingIsExact(t *testing.T) {
	totals := ComputeTotals(
		[]models.LineItem{{UnitPrice: 150, Quantity: 1}},
		models.TaxConfig{RatePercent: 10, Rounding: models.RoundingCeil},
	)
	assert.Equal(t, models.Totals{Subtotal: 150, Tax: 15, Total: 165}, totals)
}

func TestComputeTotalsBadConfig(t *testing.T) {
	items := []models.LineItem{{UnitPrice: 1000, Quantity: 1}}

	totals := ComputeTotals(items, models.TaxConfig{RatePercent: math.NaN(), Rounding: "sideways"})
	assert.Equal(t, models.Totals{Subtotal: 1000, Tax: 0, Total: 1000}, totals)

	totals = ComputeTotals(items, models.TaxConfig{RatePercent: -8})
	assert.Equal(t, int64(0), totals.Tax)
}

func TestHugeAmountsSaturate(t *testing.T) {
	huge := models.LineItem{UnitPrice: math.MaxInt64 / 2, Quantity: 3}
	assert.Equal(t, int64(math.MaxInt64), LineAmount(huge))

	totals := ComputeTotals([]models.LineItem{huge, {UnitPrice: 100, Quantity: 1}}, models.DefaultTaxConfig())
	assert.Equal(t, int64(math.MaxInt64), totals.Subtotal)
	assert.Equal(t, int64(math.MaxInt64), totals.Total)
	assert.Positive(t, totals.Tax)

	assert.Equal(t, int64(math.MaxInt64), Round(models.RoundingCeil, decimal.New(1, 30)))
	assert.Equal(t, int64(math.MinInt64), Round(models.RoundingFloor, decimal.New(-1, 30)))
}

func TestComputeTotalsEmptyCart(t *testing.T) {
	assert.Equal(t, models.Totals{}, ComputeTotals(nil, models.DefaultTaxConfig()))
}

func TestFormatYen(t *testing.T) {
	assert.Equal(t, "¥0", FormatYen(0))
	assert.Equal(t, "¥150", FormatYen(150))
	assert.Equal(t, "¥1,200", FormatYen(1200))
	assert.Equal(t, "¥1,000,000", FormatYen(1000000))
	assert.Equal(t, "-¥500", FormatYen(-500))
}
