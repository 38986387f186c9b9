// Package main provides the semprompt binary entry point.
// Semprompt turns role, context, and task inputs into a single enhanced
// prompt, served over HTTP and NATS or produced one-shot from the
// command line.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/c360studio/semprompt/llm/providers"

	"github.com/c360studio/semprompt/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semprompt"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "semprompt",
		Short: "Prompt enhancement service",
		Long: `Semprompt turns three free-text inputs (role, context, task) into a
single enhanced prompt. With an API key it asks a model to do the
rewrite; without one it renders a deterministic offline template. Either
way the result carries instructions to surface assumptions and ask
clarifying questions before answering.

Surfaces:
- serve: web form, JSON API, and optional NATS request/reply
- enhance: one-shot enhancement on the command line

The API key is read from OPENAI_API_KEY (ANTHROPIC_API_KEY for the
anthropic provider) and is never written to configuration or logs.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(&configPath, &logLevel))
	cmd.AddCommand(enhanceCmd(&configPath, &logLevel))
	cmd.AddCommand(presetsCmd(&configPath, &logLevel))

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// setupLogging installs the process-wide logger. Logs go to stderr so
// one-shot output on stdout stays clean.
func setupLogging(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig resolves the effective configuration: an explicit file when
// given, otherwise the layered defaults -> user -> project -> env chain.
func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	loader := config.NewLoader(logger)

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = loader.LoadFile(configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
