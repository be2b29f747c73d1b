package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineItemUnmarshalCoercesFields(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected LineItem
	}{
		{
			name:     "legacy price tag item",
			input:    `{"unitPrice":150,"qty":2}`,
			expected: LineItem{UnitPrice: 150, Quantity: 2, DiscountKind: DiscountNone},
		},
		{
			name:  "scanned item with discount",
			input: `{"productCode":"4901234567894","name":"Tea","unitPrice":150,"qty":1,"discountKind":"percent","discountValue":10}`,
			expected: LineItem{
				ProductCode: "4901234567894", Name: "Tea", UnitPrice: 150, Quantity: 1,
				DiscountKind: DiscountPercent, DiscountValue: 10,
			},
		},
		{
			name:     "numbers stored as strings",
			input:    `{"unitPrice":"300","qty":"3"}`,
			expected: LineItem{UnitPrice: 300, Quantity: 3, DiscountKind: DiscountNone},
		},
		{
			name:     "garbage degrades to defaults",
			input:    `{"unitPrice":"abc","qty":-4,"discountKind":"bogus","discountValue":"x"}`,
			expected: LineItem{UnitPrice: 0, Quantity: 1, DiscountKind: DiscountNone},
		},
		{
			name:     "missing quantity defaults to one",
			input:    `{"unitPrice":80}`,
			expected: LineItem{UnitPrice: 80, Quantity: 1, DiscountKind: DiscountNone},
		},
		{
			name:     "negative discount value is dropped",
			input:    `{"unitPrice":80,"qty":1,"discountKind":"amount","discountValue":-5}`,
			expected: LineItem{UnitPrice: 80, Quantity: 1, DiscountKind: DiscountAmount},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var item LineItem
			require.NoError(t, json.Unmarshal([]byte(tc.input), &item))
			assert.Equal(t, tc.expected, item)
		})
	}
}

func TestLineItemUnmarshalRejectsNonObject(t *testing.T) {
	var item LineItem
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &item))
}

func TestParseRoundingMode(t *testing.T) {
	mode, ok := ParseRoundingMode("floor")
	assert.True(t, ok)
	assert.Equal(t, RoundingFloor, mode)

	mode, ok = ParseRoundingMode(" Ceiling ")
	assert.True(t, ok)
	assert.Equal(t, RoundingCeil, mode)

	mode, ok = ParseRoundingMode("banker")
	assert.False(t, ok)
	assert.Equal(t, DefaultRounding, mode)
}

func TestParseDiscountKind(t *testing.T) {
	assert.Equal(t, DiscountPercent, ParseDiscountKind("%"))
	assert.Equal(t, DiscountAmount, ParseDiscountKind("Amount"))
	assert.Equal(t, DiscountNone, ParseDiscountKind(""))
}

func TestCoercionHelpers(t *testing.T) {
	assert.Equal(t, 0.0, NonNegative(math.NaN()))
	assert.Equal(t, 0.0, NonNegative(math.Inf(1)))
	assert.Equal(t, 0.0, NonNegative(-1))
	assert.Equal(t, 2.5, NonNegative(2.5))

	assert.Equal(t, 12.5, Float("12.5"))
	assert.Equal(t, 0.0, Float("twelve"))
	assert.Equal(t, int64(7), Int(7.9, 1))
	assert.Equal(t, int64(1), Int(nil, 1))
	assert.Equal(t, int64(1), Int("n/a", 1))
	assert.Equal(t, int64(math.MaxInt64), Int("1e30", 0))
	assert.Equal(t, int64(math.MaxInt64), Int(math.Pow(2, 63), 0))
}
