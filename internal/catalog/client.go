package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Client fetches the base catalog from a local file or an http(s) URL
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new catalog client
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchBase loads the base catalog named by source
func (c *Client) FetchBase(ctx context.Context, source string) (Entries, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Entries{}, nil
	}

	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return c.fetchURL(ctx, u)
	}
	return ReadFile(source)
}

func (c *Client) fetchURL(ctx context.Context, u *url.URL) (Entries, error) {
	format := FormatJSON
	if ext := path.Ext(u.Path); ext != "" {
		f, err := FormatFromPath(u.Path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("catalog source returned status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Decode(data, format)
}
