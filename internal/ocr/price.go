package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// MaxPrice is the largest amount accepted from a price tag
const MaxPrice = 1_000_000

var (
	pricePattern = regexp.MustCompile(`¥\s*([0-9][0-9,.]*)|([0-9][0-9,.]*)\s*円`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// NormalizeText folds full-width forms (digits, yen sign, ideographic space)
// to their narrow equivalents and collapses whitespace.
func NormalizeText(text string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(width.Narrow.String(text), " "))
}

// ExtractPrice finds yen amounts written as "¥1,280" or "1,280円" and
// returns the largest one in (0, MaxPrice]. Taking the largest candidate is
// a heuristic: a tag that shows both a tax-exclusive and a tax-inclusive
// price yields the inclusive one.
func ExtractPrice(text string) (int64, bool) {
	normalized := NormalizeText(text)

	var best int64
	found := false
	for _, m := range pricePattern.FindAllStringSubmatch(normalized, -1) {
		digits := m[1]
		if digits == "" {
			digits = m[2]
		}
		digits = strings.NewReplacer(",", "", ".", "").Replace(digits)

		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || v <= 0 || v > MaxPrice {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}
