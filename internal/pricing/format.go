package pricing

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatYen renders an amount the way the register displays money, e.g. ¥1,200
func FormatYen(amount int64) string {
	p := message.NewPrinter(language.Japanese)
	if amount < 0 {
		return "-" + p.Sprintf("¥%d", -amount)
	}
	return p.Sprintf("¥%d", amount)
}
