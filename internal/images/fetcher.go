package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/lehigh-university-libraries/scanpos/internal/providers"
)

// MaxImageBytes bounds downloads and uploads
const MaxImageBytes = 20 << 20

// Fetcher retrieves price-tag photos from disk or over HTTP
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Load reads an image from a local path or an http(s) URL
func (f *Fetcher) Load(ctx context.Context, source string) (providers.Image, error) {
	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return f.download(ctx, u.String())
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return providers.Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	return FromBytes(data)
}

func (f *Fetcher) download(ctx context.Context, imageURL string) (providers.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return providers.Image{}, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return providers.Image{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return providers.Image{}, fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return providers.Image{}, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxImageBytes {
		return providers.Image{}, fmt.Errorf("image larger than %d bytes", MaxImageBytes)
	}

	slog.Debug("Downloaded image", "url", imageURL, "bytes", len(data))
	return FromBytes(data)
}
