package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/scanpos/internal/prompt"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan product barcodes into the cart",
		Long: `Starts a scan session and adds each detected product to the cart.

Frames are read from scan.frames_dir and decoded by the vision provider. When
that is not possible, a barcode scanner writing one code per line to
scan.wedge_device is used. If neither is available you are asked to type a
price instead. Unknown codes prompt for a product name and price.

Press Ctrl+C to end the session.`,
		Example: `  # Scan with a webcam snapshot loop writing to ./frames
  SCANPOS_SCAN_FRAMES_DIR=./frames scanpos scan

  # Scan with a USB barcode scanner
  SCANPOS_SCAN_WEDGE_DEVICE=/dev/hidraw0 scanpos scan`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, prompt.NewTerminal(cmd.InOrStdin(), cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.register.StartScan(ctx); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
			case <-a.register.ScanDone():
			}
			a.register.StopScan()

			renderCart(cmd.OutOrStdout(), a.register)
			return nil
		},
	}

	return cmd
}
