package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/scanpos/internal/handlers"
	"github.com/lehigh-university-libraries/scanpos/internal/prompt"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the register HTTP API",
		Long: `Starts the register JSON API on the specified port.

The API exposes the cart, tax settings, catalog, price-tag reading and scan
sessions. It cannot prompt, so unknown product codes must be recorded with
PUT /api/catalog/{code} before they can be added.`,
		Example: `  # Start server on the configured port (default 8888)
  scanpos serve

  # Start server on custom port
  scanpos serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), prompt.Declined{})
			if err != nil {
				return err
			}
			defer a.Close()

			if port == "" {
				port = a.cfg.Server.Port
			}

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handlers.New(a.register).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Register API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default from config, 8888)")

	return cmd
}
