package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/semprompt/config"
	"github.com/c360studio/semprompt/enhance"
	"github.com/c360studio/semprompt/llm"
	"github.com/c360studio/semprompt/preset"
	"github.com/c360studio/semprompt/render"
	"github.com/c360studio/semprompt/webcontext"
)

// oneShotRequest carries the enhance subcommand's flags.
type oneShotRequest struct {
	Inputs      enhance.PromptInputs
	ContextURL  string
	Preset      string
	Model       string
	Temperature *float64
	Format      string
	Offline     bool
}

func enhanceCmd(configPath, logLevel *string) *cobra.Command {
	var (
		role        string
		contextText string
		task        string
		contextURL  string
		presetName  string
		model       string
		temperature float64
		format      string
		offline     bool
	)

	cmd := &cobra.Command{
		Use:   "enhance",
		Short: "Enhance a prompt once and print it",
		Long: `Enhance runs the pipeline once and prints the result to stdout. The
API key is read from OPENAI_API_KEY (ANTHROPIC_API_KEY for the anthropic
provider); without one, or with --offline, the deterministic template is
used and no network request is made. Status notices go to stderr so the
output can be piped.`,
		Example: `  semprompt enhance --role "You are a teacher." --task "Explain recursion."
  semprompt enhance --preset default --format xml
  semprompt enhance --task "Summarize this." --context-url https://example.com/article --offline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(*logLevel)

			cfg, err := loadConfig(*configPath, logger)
			if err != nil {
				return err
			}

			var temp *float64
			if cmd.Flags().Changed("temperature") {
				temp = &temperature
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runOneShot(ctx, cfg, logger, oneShotRequest{
				Inputs:      enhance.PromptInputs{Role: role, Context: contextText, Task: task},
				ContextURL:  contextURL,
				Preset:      presetName,
				Model:       model,
				Temperature: temp,
				Format:      format,
				Offline:     offline,
			}, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Who the model should act as")
	cmd.Flags().StringVar(&contextText, "context", "", "Background for the task")
	cmd.Flags().StringVar(&task, "task", "", "What the model should do")
	cmd.Flags().StringVar(&contextURL, "context-url", "", "Fetch this HTTPS page as additional context")
	cmd.Flags().StringVar(&presetName, "preset", "", "Fill empty inputs from a named preset")
	cmd.Flags().StringVar(&model, "model", "", "Model to use (default from config)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature (clamped to 0.0-1.2)")
	cmd.Flags().StringVar(&format, "format", "plain", "Output format: plain, xml, or json")
	cmd.Flags().BoolVar(&offline, "offline", false, "Render the offline template without calling the model API")

	return cmd
}

// runOneShot executes the same pipeline the web surfaces run, printing
// one serialization to stdout and notices to stderr.
func runOneShot(ctx context.Context, cfg *config.Config, logger *slog.Logger, req oneShotRequest, stdout, stderr io.Writer) error {
	serialize, err := formatFunc(req.Format)
	if err != nil {
		return err
	}

	inputs := req.Inputs
	model := req.Model
	temperature := req.Temperature

	if req.Preset != "" {
		store := preset.NewStore(cfg.Presets.Paths, logger)
		if err := store.Load(); err != nil {
			return fmt.Errorf("load presets: %w", err)
		}
		p, ok := store.Get(req.Preset)
		if !ok {
			return fmt.Errorf("unknown preset %q (semprompt presets lists the available ones)", req.Preset)
		}
		inputs = p.Fill(inputs)
		if strings.TrimSpace(model) == "" && p.Model != "" {
			model = p.Model
		}
		if temperature == nil && p.Temperature != nil {
			temperature = p.Temperature
		}
	}

	if u := strings.TrimSpace(req.ContextURL); u != "" {
		svc := webcontext.NewService(webcontext.Options{Logger: logger})
		page, err := svc.Build(ctx, u)
		if err != nil {
			// Same degradation as the web form: the submitted context
			// text is used unchanged.
			fmt.Fprintf(stderr, "warning: context URL ignored: %v\n", err)
		} else {
			inputs.Context = joinContext(inputs.Context, page.AsContext())
		}
	}

	apiKey := ""
	if !req.Offline {
		apiKey = enhance.ResolveAPIKey(cfg.Model.Provider, "")
	}

	client := llm.NewClient(
		llm.WithTimeout(cfg.Model.Timeout),
		llm.WithLogger(logger),
	)
	enhancer := enhance.NewEnhancer(client, enhance.Config{
		Provider:     cfg.Model.Provider,
		Endpoint:     cfg.Model.Endpoint,
		DefaultModel: cfg.Model.Default,
		ModelOptions: cfg.Model.Options,
		Temperature:  cfg.Model.Temperature,
		MaxTokens:    cfg.Model.MaxTokens,
	}, logger)

	result := enhancer.Enhance(ctx, inputs, enhance.GenerationConfig{
		APIKey:      apiKey,
		Model:       model,
		Temperature: temperature,
	})

	if result.Warning != "" {
		fmt.Fprintf(stderr, "warning: %s\n", result.Warning)
	}
	if result.Source == enhance.SourceFallback {
		fmt.Fprintln(stderr, "offline template used")
	}

	fmt.Fprintln(stdout, serialize(result.Text))
	return nil
}

// joinContext appends fetched page context after the user's own text.
func joinContext(existing, addition string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return addition
	}
	return existing + "\n\n" + addition
}

// formatFunc maps a format name to its serializer.
func formatFunc(name string) (func(string) string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "plain":
		return render.PlainText, nil
	case "xml":
		return render.XML, nil
	case "json":
		return render.JSON, nil
	default:
		return nil, fmt.Errorf("unknown format %q (expected plain, xml, or json)", name)
	}
}

func presetsCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(*logLevel)

			cfg, err := loadConfig(*configPath, logger)
			if err != nil {
				return err
			}

			store := preset.NewStore(cfg.Presets.Paths, logger)
			if err := store.Load(); err != nil {
				return fmt.Errorf("load presets: %w", err)
			}

			printPresets(cmd.OutOrStdout(), store.List())
			return nil
		},
	}
}

func printPresets(w io.Writer, presets []preset.Preset) {
	fmt.Fprintf(w, "%-20s %-14s %s\n", "NAME", "MODEL", "DESCRIPTION")
	for _, p := range presets {
		model := p.Model
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(w, "%-20s %-14s %s\n", p.Name, model, p.Description)
	}
}
