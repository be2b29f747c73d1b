package pricing

import (
	"math"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineAmount returns unit price times quantity less the item's discount.
// Percent discounts always round half away from zero, whatever the cart's tax
// rounding is. The result is never negative.
func LineAmount(item models.LineItem) int64 {
	item = item.Normalize()
	gross := mulSat(item.UnitPrice, item.Quantity)

	var amount int64
	switch item.DiscountKind {
	case models.DiscountPercent:
		off := decimal.NewFromInt(gross).
			Mul(decimal.NewFromFloat(item.DiscountValue)).
			Div(hundred)
		amount = gross - Round(models.RoundingRound, off)
	case models.DiscountAmount:
		rest := decimal.NewFromInt(gross).Sub(decimal.NewFromFloat(item.DiscountValue))
		amount = Round(models.RoundingRound, rest)
	default:
		amount = gross
	}

	if amount < 0 {
		return 0
	}
	return amount
}

// ComputeTotals prices the whole cart. Tax is the subtotal times the rate,
// rounded with the configured mode. Out-of-range rates are treated as 0.
func ComputeTotals(items []models.LineItem, tax models.TaxConfig) models.Totals {
	var subtotal int64
	for _, item := range items {
		subtotal = addSat(subtotal, LineAmount(item))
	}

	rate := decimal.NewFromFloat(models.NonNegative(tax.RatePercent))
	mode, _ := models.ParseRoundingMode(string(tax.Rounding))
	taxAmount := Round(mode, decimal.NewFromInt(subtotal).Mul(rate).Div(hundred))

	return models.Totals{
		Subtotal: subtotal,
		Tax:      taxAmount,
		Total:    addSat(subtotal, taxAmount),
	}
}

// mulSat and addSat take non-negative operands and saturate at math.MaxInt64
func mulSat(a, b int64) int64 {
	if a != 0 && b > math.MaxInt64/a {
		return math.MaxInt64
	}
	return a * b
}

func addSat(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
