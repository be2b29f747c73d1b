package models

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// DiscountKind selects how a line item's discount value is applied
type DiscountKind string

const (
	DiscountNone    DiscountKind = "none"
	DiscountPercent DiscountKind = "percent"
	DiscountAmount  DiscountKind = "amount"
)

// ParseDiscountKind maps user or stored input to a DiscountKind.
// Unknown values fall back to DiscountNone.
func ParseDiscountKind(s string) DiscountKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percent", "percentage", "%":
		return DiscountPercent
	case "amount", "fixed", "yen":
		return DiscountAmount
	default:
		return DiscountNone
	}
}

// RoundingMode is the cart-wide rounding applied to tax
type RoundingMode string

const (
	RoundingCeil  RoundingMode = "ceil"
	RoundingRound RoundingMode = "round"
	RoundingFloor RoundingMode = "floor"
)

const (
	DefaultTaxRate  = 10.0
	DefaultRounding = RoundingCeil
)

// ParseRoundingMode returns the mode named by s and whether s was recognised
func ParseRoundingMode(s string) (RoundingMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ceil", "ceiling":
		return RoundingCeil, true
	case "round":
		return RoundingRound, true
	case "floor":
		return RoundingFloor, true
	default:
		return DefaultRounding, false
	}
}

// LineItem represents one cart entry.
// ProductCode and Name are empty for items added from a price tag.
type LineItem struct {
	ProductCode   string       `json:"productCode,omitempty"`
	Name          string       `json:"name,omitempty"`
	UnitPrice     int64        `json:"unitPrice"`
	Quantity      int64        `json:"qty"`
	DiscountKind  DiscountKind `json:"discountKind,omitempty"`
	DiscountValue float64      `json:"discountValue,omitempty"`
}

// Normalize coerces every field into its valid range
func (li LineItem) Normalize() LineItem {
	if li.UnitPrice < 0 {
		li.UnitPrice = 0
	}
	if li.Quantity < 1 {
		li.Quantity = 1
	}
	li.DiscountKind = ParseDiscountKind(string(li.DiscountKind))
	li.DiscountValue = NonNegative(li.DiscountValue)
	if li.DiscountKind == DiscountNone {
		li.DiscountValue = 0
	}
	return li
}

// UnmarshalJSON accepts loosely typed stored items: numbers may arrive as
// strings, and anything unparsable falls back to the field default.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*li = LineItem{
		ProductCode:   cast.ToString(raw["productCode"]),
		Name:          cast.ToString(raw["name"]),
		UnitPrice:     Int(raw["unitPrice"], 0),
		Quantity:      Int(raw["qty"], 1),
		DiscountKind:  DiscountKind(cast.ToString(raw["discountKind"])),
		DiscountValue: Float(raw["discountValue"]),
	}
	*li = li.Normalize()
	return nil
}

// CatalogEntry represents a product known to the register
type CatalogEntry struct {
	Code  string `json:"-" yaml:"-"`
	Name  string `json:"name" yaml:"name"`
	Price int64  `json:"price" yaml:"price"`
}

// TaxConfig holds the process-wide tax settings
type TaxConfig struct {
	RatePercent float64      `json:"rate_percent"`
	Rounding    RoundingMode `json:"rounding"`
}

// DefaultTaxConfig returns 10% with ceiling rounding
func DefaultTaxConfig() TaxConfig {
	return TaxConfig{RatePercent: DefaultTaxRate, Rounding: DefaultRounding}
}

// Totals is the priced summary of a cart
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// Float coerces v to a finite, non-negative float64. Invalid input yields 0.
func Float(v any) float64 {
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0
	}
	return NonNegative(f)
}

// Int coerces v to a non-negative integer, truncating fractions and
// saturating at math.MaxInt64. Invalid input yields def.
func Int(v any, def int64) int64 {
	if v == nil {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	if f < 0 {
		return 0
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

// NonNegative returns f, or 0 when f is negative or not finite
func NonNegative(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
