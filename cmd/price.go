package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/scanpos/internal/images"
	"github.com/lehigh-university-libraries/scanpos/internal/ocr"
	"github.com/lehigh-university-libraries/scanpos/internal/pricing"
	"github.com/lehigh-university-libraries/scanpos/internal/prompt"
	"github.com/lehigh-university-libraries/scanpos/internal/register"
)

func newPriceCmd() *cobra.Command {
	var (
		text   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "price [image]",
		Short: "Read a price from a price-tag photo",
		Long: `Reads the price printed on a price tag and adds it to the cart.

The image may be a local file or an http(s) URL. The centre of the photo is
sent to the configured vision provider and the largest yen amount in the
recognized text is offered for confirmation along with a quantity. With
--text, already recognized text is used instead of an image.`,
		Example: `  # Read a price tag photo
  scanpos price tag.jpg

  # Only print the recognized price
  scanpos price tag.jpg --dry-run

  # Extract a price from text
  scanpos price --text "税込 ¥1,280"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if text != "" {
				price, ok := ocr.ExtractPrice(text)
				if !ok {
					return register.ErrPriceNotFound
				}
				fmt.Fprintln(out, pricing.FormatYen(price))
				return nil
			}
			if len(args) == 0 {
				return errors.New("an image path or URL is required unless --text is given")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, prompt.NewTerminal(cmd.InOrStdin(), out))
			if err != nil {
				return err
			}
			defer a.Close()

			img, err := images.NewFetcher().Load(ctx, args[0])
			if err != nil {
				return err
			}

			if dryRun {
				price, recognized, err := a.register.RecognizePrice(ctx, img)
				if err != nil {
					return fmt.Errorf("%w (recognized %q)", err, recognized)
				}
				fmt.Fprintln(out, pricing.FormatYen(price))
				return nil
			}

			before := len(a.register.Items())
			if _, err := a.register.ReadPrice(ctx, img); err != nil {
				return err
			}
			if len(a.register.Items()) == before {
				fmt.Fprintln(out, mutedStyle.Render("Nothing added"))
			}
			renderCart(out, a.register)
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Extract a price from this text instead of an image")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the recognized price without adding it")

	return cmd
}
