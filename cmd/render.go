package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/lehigh-university-libraries/scanpos/internal/pricing"
	"github.com/lehigh-university-libraries/scanpos/internal/register"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	totalStyle  = lipgloss.NewStyle().Bold(true)
)

func discountLabel(item models.LineItem) string {
	switch item.DiscountKind {
	case models.DiscountPercent:
		return strconv.FormatFloat(item.DiscountValue, 'f', -1, 64) + "%"
	case models.DiscountAmount:
		return "-" + pricing.FormatYen(int64(item.DiscountValue))
	default:
		return ""
	}
}

// renderCart prints the cart with 1-based line numbers
func renderCart(w io.Writer, reg *register.Register) {
	items := reg.Items()
	if len(items) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("Cart is empty"))
	} else {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("#", "Item", "Price", "Qty", "Discount", "Amount").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		for i, item := range items {
			name := item.Name
			if name == "" {
				name = mutedStyle.Render("(price tag)")
			}
			t.Row(
				strconv.Itoa(i+1),
				name,
				pricing.FormatYen(item.UnitPrice),
				strconv.FormatInt(item.Quantity, 10),
				discountLabel(item),
				pricing.FormatYen(pricing.LineAmount(item)),
			)
		}
		fmt.Fprintln(w, t.String())
	}
	renderTotals(w, reg.Totals(), reg.Tax())
}

func renderTotals(w io.Writer, totals models.Totals, tax models.TaxConfig) {
	fmt.Fprintf(w, "Subtotal %s\n", pricing.FormatYen(totals.Subtotal))
	fmt.Fprintf(w, "Tax      %s %s\n", pricing.FormatYen(totals.Tax),
		mutedStyle.Render(fmt.Sprintf("(%s%%, %s)", strconv.FormatFloat(tax.RatePercent, 'f', -1, 64), tax.Rounding)))
	fmt.Fprintln(w, totalStyle.Render("Total    "+pricing.FormatYen(totals.Total)))
}

// lineIndex converts a 1-based line number argument
func lineIndex(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid line number %q", arg)
	}
	return n - 1, nil
}
