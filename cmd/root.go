package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "scanpos",
		Short: "Point-of-sale register with barcode scanning and price-tag reading",
		Long: `Scanpos is a point-of-sale register for a small shop.

Items enter the cart by scanning a product barcode, by reading the price off
a price-tag photo with a vision LLM, or by typing a price. Totals are priced
in yen with a configurable consumption tax rate and rounding mode.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newPriceCmd())
	cmd.AddCommand(newCartCmd())
	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newTaxCmd())

	return cmd
}
