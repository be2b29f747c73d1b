package capture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/scanpos/internal/capability"
	"github.com/lehigh-university-libraries/scanpos/internal/providers"
)

const barcodePrompt = `The image shows a product barcode.
Read the digits printed beneath the bars (EAN-13, EAN-8 or UPC-A).
Output ONLY the digits, without spaces. If no barcode is readable, output nothing.`

// VisionDetector reads barcodes by asking a vision model for the digits
// printed under the bars. Only checksum-valid codes are reported.
type VisionDetector struct {
	provider *capability.Loader[providers.Provider]
	model    string
}

func NewVisionDetector(provider *capability.Loader[providers.Provider], model string) *VisionDetector {
	return &VisionDetector{provider: provider, model: model}
}

// Available reports whether the vision provider can be loaded
func (d *VisionDetector) Available(ctx context.Context) bool {
	if d == nil || d.provider == nil {
		return false
	}
	if _, err := d.provider.Get(ctx); err != nil {
		slog.Debug("Vision detector unavailable", "provider", d.provider.Name(), "err", err)
		return false
	}
	return true
}

func (d *VisionDetector) Detect(ctx context.Context, frame Frame) ([]Detection, error) {
	provider, err := d.provider.Get(ctx)
	if err != nil {
		return nil, err
	}

	text, err := provider.ExtractText(ctx, providers.Config{
		Model:  d.model,
		Prompt: barcodePrompt,
		Images: []providers.Image{frame.Image},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read barcode: %w", err)
	}

	var detections []Detection
	for _, code := range FindGTINs(text) {
		detections = append(detections, Detection{RawValue: code, Format: GTINFormat(code)})
	}
	return detections, nil
}
