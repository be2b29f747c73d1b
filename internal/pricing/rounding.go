// Package pricing turns cart contents into line amounts and totals.
// All money is an integer count of yen.
package pricing

import (
	"math"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/shopspring/decimal"
)

// Round maps value to an integer under mode. RoundingRound rounds half away
// from zero, so Round(RoundingRound, 2.5) == 3 and Round(RoundingRound, -2.5) == -3.
// Unknown modes round like RoundingRound.
func Round(mode models.RoundingMode, value decimal.Decimal) int64 {
	switch mode {
	case models.RoundingCeil:
		value = value.Ceil()
	case models.RoundingFloor:
		value = value.Floor()
	default:
		value = value.Round(0)
	}
	// results outside int64 saturate
	switch {
	case value.GreaterThan(maxInt64):
		return math.MaxInt64
	case value.LessThan(minInt64):
		return math.MinInt64
	}
	return value.IntPart()
}

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// RoundFloat is Round for float input. NaN and infinities count as 0.
func RoundFloat(mode models.RoundingMode, value float64) int64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return Round(mode, decimal.NewFromFloat(value))
}
