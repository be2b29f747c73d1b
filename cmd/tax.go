package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
	"github.com/lehigh-university-libraries/scanpos/internal/prompt"
)

func newTaxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tax",
		Short: "Show or change the tax rate and rounding",
		Long: `Shows the tax settings and the cart totals they produce.

Rounding is one of ceil, round or floor and applies to the tax amount only.`,
		RunE: runTaxShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the tax settings and totals",
		RunE:  runTaxShow,
	})
	cmd.AddCommand(newTaxSetCmd())

	return cmd
}

func runTaxShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), prompt.Declined{})
	if err != nil {
		return err
	}
	defer a.Close()

	renderTotals(cmd.OutOrStdout(), a.register.Totals(), a.register.Tax())
	return nil
}

func newTaxSetCmd() *cobra.Command {
	var (
		rate     float64
		rounding string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the tax rate or rounding",
		Long: `Saves a new tax rate and/or rounding mode and re-prices the cart.`,
		Example: `  scanpos tax set --rate 8
  scanpos tax set --rounding floor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rateSet := cmd.Flags().Changed("rate")
			roundingSet := cmd.Flags().Changed("rounding")
			if !rateSet && !roundingSet {
				return fmt.Errorf("--rate or --rounding is required")
			}

			var mode models.RoundingMode
			if roundingSet {
				var ok bool
				if mode, ok = models.ParseRoundingMode(rounding); !ok {
					return fmt.Errorf("invalid rounding %q: must be ceil, round or floor", rounding)
				}
			}

			a, err := newApp(ctx, prompt.Declined{})
			if err != nil {
				return err
			}
			defer a.Close()

			if rateSet {
				if _, err := a.register.SetTaxRate(ctx, rate); err != nil {
					return err
				}
			}
			if roundingSet {
				if _, err := a.register.SetRoundingMode(ctx, mode); err != nil {
					return err
				}
			}

			renderTotals(cmd.OutOrStdout(), a.register.Totals(), a.register.Tax())
			return nil
		},
	}

	cmd.Flags().Float64Var(&rate, "rate", models.DefaultTaxRate, "Tax rate in percent")
	cmd.Flags().StringVar(&rounding, "rounding", string(models.DefaultRounding), "Tax rounding: ceil, round or floor")

	return cmd
}
