package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/semprompt/config"
)

func serveCmd(configPath, logLevel *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web form, JSON API, and optional NATS endpoint",
		Long: `Serve runs the enhancement pipeline behind a web form and a JSON API,
plus a NATS request/reply responder when nats.enabled is set. Preset
files are watched and reloaded on change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(*logLevel)

			cfg, err := loadConfig(*configPath, logger)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			return runServe(cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address override (e.g. :8085)")

	return cmd
}

func runServe(cfg *config.Config, logger *slog.Logger) error {
	// Setup signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := NewApp(cfg, logger)
	if err := app.Start(ctx); err != nil {
		return err
	}

	slog.Info("Semprompt ready",
		"version", Version,
		"addr", cfg.Server.Addr,
		"nats", cfg.NATS.Enabled)

	// Block until shutdown signal or listen failure
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err := <-app.Err():
		if err != nil {
			app.Shutdown(5 * time.Second)
			return fmt.Errorf("HTTP server: %w", err)
		}
	}

	app.Shutdown(30 * time.Second)
	slog.Info("Semprompt shutdown complete")
	return nil
}
