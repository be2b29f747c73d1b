package providers

import (
	"context"
	"strings"
)

// Image is an encoded picture attached to a request
type Image struct {
	Data     []byte
	MIMEType string
}

// Subtype returns the part after "image/", defaulting to jpeg
func (i Image) Subtype() string {
	if _, sub, ok := strings.Cut(i.MIMEType, "/"); ok && sub != "" {
		return sub
	}
	return "jpeg"
}

// MIME returns the MIME type, defaulting to image/jpeg
func (i Image) MIME() string {
	return "image/" + i.Subtype()
}

// Config represents the configuration for a vision provider request
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	Images      []Image
}

// Provider defines the interface for a vision LLM provider
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}
