package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/lehigh-university-libraries/scanpos/internal/capability"
	"github.com/lehigh-university-libraries/scanpos/internal/capture"
	"github.com/lehigh-university-libraries/scanpos/internal/catalog"
	"github.com/lehigh-university-libraries/scanpos/internal/config"
	"github.com/lehigh-university-libraries/scanpos/internal/ocr"
	"github.com/lehigh-university-libraries/scanpos/internal/prompt"
	"github.com/lehigh-university-libraries/scanpos/internal/register"
	"github.com/lehigh-university-libraries/scanpos/internal/scan"
	"github.com/lehigh-university-libraries/scanpos/internal/storage"
)

// app is the wired register shared by every command
type app struct {
	cfg      config.Config
	register *register.Register
	scanner  *scan.Controller
	closer   io.Closer
}

func newApp(ctx context.Context, prompter prompt.Prompter) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, closer, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path, cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}

	base, err := catalog.NewClient().FetchBase(ctx, cfg.Catalog.Base)
	if err != nil {
		slog.Warn("Failed to load base catalog, continuing without it", "source", cfg.Catalog.Base, "err", err)
		base = nil
	}

	recognizer := ocr.NewService(ocr.Options{
		Provider:  cfg.OCR.Provider,
		Model:     cfg.OCR.Model,
		Language:  cfg.OCR.Language,
		Whitelist: cfg.OCR.Whitelist,
	})

	reg := register.New(register.Config{
		Store:      store,
		Catalog:    catalog.New(store, base),
		Prompter:   prompter,
		Recognizer: recognizer,
		DefaultTax: cfg.Tax.Model(),
	})
	if err := reg.Load(ctx); err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to load register state: %w", err)
	}

	wedge := cfg.Scan.WedgeDevice
	library := capability.NewLoader("wedge", func(context.Context) (capture.DecodeLibrary, error) {
		if wedge == "" {
			return nil, errors.New("no wedge device configured")
		}
		return capture.NewWedgeLibrary(wedge), nil
	})

	scanner := scan.NewController(
		capture.NewDirProvider(cfg.Scan.FramesDir),
		capture.NewVisionDetector(recognizer.Provider(), recognizer.Model()),
		library,
		reg,
		scan.Options{
			FrameInterval: cfg.Scan.FrameInterval,
			Debounce:      cfg.Scan.Debounce,
		},
	)
	reg.SetScanner(scanner)

	slog.Debug("Register ready",
		"storage", cfg.Storage.Driver,
		"catalog", reg.Catalog().Len(),
		"items", len(reg.Items()),
		"ocr", cfg.OCR.Provider)

	return &app{cfg: cfg, register: reg, scanner: scanner, closer: closer}, nil
}

func (a *app) Close() {
	a.register.StopScan()
	if err := a.closer.Close(); err != nil {
		slog.Error("Failed to close storage", "err", err)
	}
}
