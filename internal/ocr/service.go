// Package ocr reads prices from photographed price tags.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/scanpos/internal/capability"
	"github.com/lehigh-university-libraries/scanpos/internal/gemini"
	"github.com/lehigh-university-libraries/scanpos/internal/images"
	"github.com/lehigh-university-libraries/scanpos/internal/ollama"
	"github.com/lehigh-university-libraries/scanpos/internal/openai"
	"github.com/lehigh-university-libraries/scanpos/internal/providers"
)

const (
	DefaultLanguage  = "eng"
	DefaultWhitelist = "0123456789¥￥.,円"
)

// PriceRegion is the part of a frame a price tag is expected to fill
var PriceRegion = images.Region{Left: 0.10, Top: 0.20, Right: 0.90, Bottom: 0.80}

// Options selects the vision provider and recognition hints
type Options struct {
	Provider  string
	Model     string
	Language  string
	Whitelist string
}

// Service handles text recognition on price-tag images
type Service struct {
	provider  *capability.Loader[providers.Provider]
	model     string
	language  string
	whitelist string
}

// NewService creates a service whose provider is constructed on first use
func NewService(opts Options) *Service {
	name := opts.Provider
	if name == "" {
		name = os.Getenv("SCANPOS_OCR_PROVIDER")
		if name == "" {
			name = "ollama"
		}
	}
	loader := capability.NewLoader(name, func(context.Context) (providers.Provider, error) {
		return NewProvider(name)
	})
	return newService(loader, name, opts)
}

// NewServiceWithProvider wraps an already constructed provider
func NewServiceWithProvider(p providers.Provider, opts Options) *Service {
	return newService(capability.Ready[providers.Provider]("custom", p), opts.Provider, opts)
}

func newService(loader *capability.Loader[providers.Provider], name string, opts Options) *Service {
	s := &Service{
		provider:  loader,
		model:     opts.Model,
		language:  opts.Language,
		whitelist: opts.Whitelist,
	}
	if s.model == "" {
		s.model = DefaultModel(name)
	}
	if s.language == "" {
		s.language = DefaultLanguage
	}
	if s.whitelist == "" {
		s.whitelist = DefaultWhitelist
	}
	return s
}

// Provider exposes the lazily constructed provider so code detection can
// share it
func (s *Service) Provider() *capability.Loader[providers.Provider] {
	return s.provider
}

func (s *Service) Model() string {
	return s.model
}

// NewProvider constructs a vision provider by name
func NewProvider(name string) (providers.Provider, error) {
	switch name {
	case "ollama":
		return ollama.New(), nil
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return openai.New(), nil
	case "gemini":
		if os.Getenv("GEMINI_API_KEY") == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set")
		}
		return gemini.New(), nil
	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", name)
	}
}

// DefaultModel returns the model used when none is configured
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			return "gpt-4o"
		}
		return model
	case "ollama":
		model := os.Getenv("OLLAMA_MODEL")
		if model == "" {
			return "mistral-small3.2:24b"
		}
		return model
	case "gemini":
		model := os.Getenv("GEMINI_MODEL")
		if model == "" {
			return "gemini-1.5-flash"
		}
		return model
	default:
		return ""
	}
}

// CropPriceRegion keeps the central part of a frame
func CropPriceRegion(img providers.Image) (providers.Image, error) {
	return images.Crop(img, PriceRegion)
}

// Recognize returns the text the provider reads in img
func (s *Service) Recognize(ctx context.Context, img providers.Image) (string, error) {
	provider, err := s.provider.Get(ctx)
	if err != nil {
		return "", err
	}

	text, err := provider.ExtractText(ctx, providers.Config{
		Model:       s.model,
		Temperature: 0,
		Prompt:      s.buildOCRPrompt(),
		Images:      []providers.Image{img},
	})
	if err != nil {
		return "", fmt.Errorf("failed to recognize text: %w", err)
	}

	slog.Info("Extracted OCR text", "provider", s.provider.Name(), "model", s.model, "length", len(text))
	return text, nil
}

func (s *Service) buildOCRPrompt() string {
	return fmt.Sprintf(`You are performing OCR on a photo of a retail price tag.

Transcribe the visible text exactly as printed. Language hint: %s.
Only output characters from this set, plus spaces and line breaks: %s
Keep currency signs and separators where they appear.

Provide ONLY the transcribed text, with no commentary.`, s.language, strings.TrimSpace(s.whitelist))
}
