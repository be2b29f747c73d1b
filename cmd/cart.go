package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/scanpos/internal/capture"
	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/lehigh-university-libraries/scanpos/internal/prompt"
)

func newCartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and edit the cart",
		Long: `Shows the cart with its totals. Subcommands edit it.

Line numbers start at 1, as shown in the # column.`,
		RunE: runCartShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the cart",
		RunE:  runCartShow,
	})
	cmd.AddCommand(newCartAddCmd())
	cmd.AddCommand(newCartRemoveCmd())
	cmd.AddCommand(newCartQtyCmd())
	cmd.AddCommand(newCartDiscountCmd())
	cmd.AddCommand(newCartClearCmd())

	return cmd
}

func runCartShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), prompt.Declined{})
	if err != nil {
		return err
	}
	defer a.Close()

	renderCart(cmd.OutOrStdout(), a.register)
	return nil
}

// runCartEdit opens the register with a terminal prompter, applies edit
// and prints the cart
func runCartEdit(cmd *cobra.Command, edit func(a *app) error) error {
	a, err := newApp(cmd.Context(), prompt.NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := edit(a); err != nil {
		return err
	}
	renderCart(cmd.OutOrStdout(), a.register)
	return nil
}

func newCartAddCmd() *cobra.Command {
	var (
		code  string
		price int64
		qty   int64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item by code or price",
		Long: `Adds an item to the cart.

With --code the product is looked up in the catalog; unknown codes prompt for
a name and price. With --price the item is added directly. With neither you
are asked for a price and quantity.`,
		Example: `  scanpos cart add --code 4901234567894
  scanpos cart add --price 398 --qty 2
  scanpos cart add`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCartEdit(cmd, func(a *app) error {
				ctx := cmd.Context()
				switch {
				case cmd.Flags().Changed("price"):
					return a.register.AddItem(ctx, models.LineItem{ProductCode: code, UnitPrice: price, Quantity: qty})
				case code != "":
					return a.register.HandleCode(ctx, capture.Detection{RawValue: code, Format: capture.GTINFormat(code)})
				default:
					return a.register.ManualAdd(ctx)
				}
			})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Product code")
	cmd.Flags().Int64Var(&price, "price", 0, "Unit price in yen")
	cmd.Flags().Int64Var(&qty, "qty", 1, "Quantity")

	return cmd
}

func newCartRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <line>",
		Short: "Remove a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := lineIndex(args[0])
			if err != nil {
				return err
			}
			return runCartEdit(cmd, func(a *app) error {
				return a.register.RemoveItem(cmd.Context(), index)
			})
		},
	}
}

func newCartQtyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qty <line> <quantity|+|->",
		Short: "Set, increment or decrement a line's quantity",
		Example: `  scanpos cart qty 1 3
  scanpos cart qty 1 +
  scanpos cart qty 1 -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := lineIndex(args[0])
			if err != nil {
				return err
			}
			return runCartEdit(cmd, func(a *app) error {
				ctx := cmd.Context()
				switch args[1] {
				case "+":
					return a.register.Increment(ctx, index)
				case "-":
					return a.register.Decrement(ctx, index)
				}
				qty, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid quantity %q", args[1])
				}
				return a.register.SetQuantity(ctx, index, qty)
			})
		},
	}
}

func newCartDiscountCmd() *cobra.Command {
	var (
		kind  string
		value float64
	)

	cmd := &cobra.Command{
		Use:   "discount <line>",
		Short: "Set a line's discount",
		Long: `Sets a percent or fixed-amount discount on a line. Without --kind you
are asked for the discount. Use --kind none to remove it.`,
		Example: `  scanpos cart discount 1 --kind percent --value 20
  scanpos cart discount 2 --kind amount --value 50
  scanpos cart discount 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := lineIndex(args[0])
			if err != nil {
				return err
			}
			return runCartEdit(cmd, func(a *app) error {
				if kind == "" {
					return a.register.EditDiscount(cmd.Context(), index)
				}
				return a.register.SetDiscount(cmd.Context(), index, models.ParseDiscountKind(kind), value)
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Discount kind: none, percent or amount")
	cmd.Flags().Float64Var(&value, "value", 0, "Discount value")

	return cmd
}

func newCartClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCartEdit(cmd, func(a *app) error {
				return a.register.ClearCart(cmd.Context())
			})
		},
	}
}
