// Package images loads and crops captured frames before recognition.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/scanpos/internal/providers"
)

// ErrNotImage is returned for data that is not a decodable image
var ErrNotImage = errors.New("not an image")

// Region selects part of an image as fractions of its width and height
type Region struct {
	Left, Top, Right, Bottom float64
}

// FromBytes sniffs the MIME type of data and rejects non-images
func FromBytes(data []byte) (providers.Image, error) {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return providers.Image{}, fmt.Errorf("%w: detected %s", ErrNotImage, mime)
	}
	return providers.Image{Data: data, MIMEType: mime}, nil
}

// Dimensions returns the pixel size of an encoded image
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrNotImage, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Crop cuts r out of img and re-encodes it as JPEG
func Crop(img providers.Image, r Region) (providers.Image, error) {
	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return providers.Image{}, fmt.Errorf("%w: %w", ErrNotImage, err)
	}

	b := src.Bounds()
	rect := image.Rect(
		b.Min.X+int(float64(b.Dx())*clamp(r.Left)),
		b.Min.Y+int(float64(b.Dy())*clamp(r.Top)),
		b.Min.X+int(float64(b.Dx())*clamp(r.Right)),
		b.Min.Y+int(float64(b.Dy())*clamp(r.Bottom)),
	)
	if rect.Empty() {
		return providers.Image{}, fmt.Errorf("crop region %+v is empty for a %dx%d image", r, b.Dx(), b.Dy())
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return providers.Image{}, fmt.Errorf("failed to encode cropped image: %w", err)
	}
	return providers.Image{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}

func clamp(f float64) float64 {
	return min(1, max(0, f))
}
