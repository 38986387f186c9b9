// Package enhance turns role, context, and task inputs into a single
// enhanced prompt. When an API key is available it asks an external model
// to do the rewrite; otherwise it renders a deterministic offline template.
// Either way the caller gets back a usable prompt, never an error.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/c360studio/semprompt/llm"
)

const (
	// DefaultModel is used when a request does not name a model.
	DefaultModel = "gpt-4.1-mini"

	// DefaultTemperature is the sampling temperature applied when neither
	// the request nor the configuration sets one.
	DefaultTemperature = 0.5

	// MinTemperature and MaxTemperature bound the accepted sampling
	// temperature. Values outside the range are clamped, not rejected.
	MinTemperature = 0.0
	MaxTemperature = 1.2
)

// DefaultModelOptions are the models offered when the configuration does
// not provide its own list.
var DefaultModelOptions = []string{"gpt-4.1", "gpt-4.1-mini"}

// Source identifies where an enhanced prompt came from.
type Source string

const (
	// SourceExternal marks prompts produced by a model API call.
	SourceExternal Source = "external"
	// SourceFallback marks prompts produced by the offline template.
	SourceFallback Source = "fallback"
)

// PromptInputs are the three free-text fields an enhancement starts from.
// Empty fields are allowed; the pipeline never rejects input.
type PromptInputs struct {
	Role    string `json:"role" yaml:"role"`
	Context string `json:"context" yaml:"context"`
	Task    string `json:"task" yaml:"task"`
}

// GenerationConfig carries the per-request generation settings.
type GenerationConfig struct {
	// APIKey authorizes the external call. Empty means offline: the
	// deterministic template is used and no network request is made.
	// The key is forwarded to the provider's request headers and is
	// never logged or persisted.
	APIKey string

	// Model names the model to use. Empty or unknown names resolve to
	// the enhancer's default model.
	Model string

	// Temperature overrides the configured sampling temperature when
	// set. Values are clamped to [MinTemperature, MaxTemperature].
	Temperature *float64
}

// Result is an enhanced prompt plus how it was produced.
type Result struct {
	// Text is the enhanced prompt.
	Text string `json:"text"`

	// Source reports whether Text came from the model API or from the
	// offline template.
	Source Source `json:"source"`

	// Warning is set when an external call was attempted and failed,
	// in which case Text holds the offline template.
	Warning string `json:"warning,omitempty"`
}

// Completer is the subset of the model client the enhancer depends on.
// *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Config controls how the enhancer talks to the model API. Zero values
// fall back to package defaults.
type Config struct {
	// Provider names the registered completion provider, for example
	// "openai", "ollama", or "anthropic". Defaults to "openai".
	Provider string

	// Endpoint overrides the provider's default base URL when set.
	Endpoint string

	// DefaultModel is used when a request does not name a model.
	DefaultModel string

	// ModelOptions restricts which models a request may choose. A
	// request for a model outside the list is served with DefaultModel.
	// Empty means any model name is accepted.
	ModelOptions []string

	// Temperature is the default sampling temperature for requests that
	// do not set their own.
	Temperature float64

	// MaxTokens caps the model response length. Zero lets the provider
	// decide.
	MaxTokens int
}

// Enhancer produces enhanced prompts from role, context, and task inputs.
type Enhancer struct {
	client Completer
	cfg    Config
	logger *slog.Logger
}

// NewEnhancer creates an Enhancer. A nil logger falls back to
// slog.Default. The client may be nil when only offline enhancement is
// needed; external calls then require a non-nil client.
func NewEnhancer(client Completer, cfg Config, logger *slog.Logger) *Enhancer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	return &Enhancer{client: client, cfg: cfg, logger: logger}
}

// Enhance runs the full pipeline: resolve model and temperature, attempt
// one external call when an API key is present, fall back to the offline
// template on any failure, and apply the clarification guard to the
// outcome. It never returns an error; a failed external call surfaces as
// Result.Warning with the offline template as Text.
func (e *Enhancer) Enhance(ctx context.Context, in PromptInputs, gen GenerationConfig) Result {
	model := e.resolveModel(gen.Model)
	temperature := e.resolveTemperature(gen.Temperature)
	apiKey := strings.TrimSpace(gen.APIKey)

	if apiKey == "" {
		e.logger.Info("no API key provided, using offline template")
		enhancementsTotal.WithLabelValues(string(SourceFallback)).Inc()
		return Result{
			Text:   EnsureClarification(FallbackPrompt(in)),
			Source: SourceFallback,
		}
	}

	content, err := e.generateExternal(ctx, in, model, temperature, apiKey)
	if err != nil {
		e.logger.Warn("external call failed, using offline template",
			"model", model,
			"error", err)
		enhancementsTotal.WithLabelValues(string(SourceFallback)).Inc()
		return Result{
			Text:    EnsureClarification(FallbackPrompt(in)),
			Source:  SourceFallback,
			Warning: fmt.Sprintf("external call failed: %v", err),
		}
	}

	enhancementsTotal.WithLabelValues(string(SourceExternal)).Inc()
	return Result{
		Text:   EnsureClarification(content),
		Source: SourceExternal,
	}
}

func (e *Enhancer) generateExternal(ctx context.Context, in PromptInputs, model string, temperature float64, apiKey string) (string, error) {
	if e.client == nil {
		return "", errors.New("no model client configured")
	}

	req := llm.Request{
		Provider: e.cfg.Provider,
		Endpoint: e.cfg.Endpoint,
		Model:    model,
		APIKey:   apiKey,
		Messages: []llm.Message{
			{Role: "system", Content: SystemPrompt()},
			{Role: "user", Content: UserPrompt(in)},
		},
		Temperature: &temperature,
		MaxTokens:   e.cfg.MaxTokens,
	}

	start := time.Now()
	resp, err := e.client.Complete(ctx, req)
	externalCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		externalCallFailures.Inc()
		return "", err
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		externalCallFailures.Inc()
		return "", errors.New("model returned empty content")
	}
	return content, nil
}

// resolveModel maps the requested model onto the configured options. An
// unknown model is served with the default rather than rejected, so a
// stale client still gets a response.
func (e *Enhancer) resolveModel(requested string) string {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return e.cfg.DefaultModel
	}
	if len(e.cfg.ModelOptions) == 0 {
		return requested
	}
	for _, m := range e.cfg.ModelOptions {
		if m == requested {
			return requested
		}
	}
	e.logger.Debug("requested model not offered, using default",
		"requested", requested,
		"default", e.cfg.DefaultModel)
	return e.cfg.DefaultModel
}

func (e *Enhancer) resolveTemperature(requested *float64) float64 {
	t := e.cfg.Temperature
	if requested != nil {
		t = *requested
	}
	return clampTemperature(t)
}

func clampTemperature(t float64) float64 {
	if t < MinTemperature {
		return MinTemperature
	}
	if t > MaxTemperature {
		return MaxTemperature
	}
	return t
}

// ResolveAPIKey returns the explicit key when one is given, otherwise the
// conventional environment variable for the provider. A whitespace-only
// explicit key counts as absent.
func ResolveAPIKey(provider, explicit string) string {
	if k := strings.TrimSpace(explicit); k != "" {
		return k
	}
	env := "OPENAI_API_KEY"
	if provider == "anthropic" {
		env = "ANTHROPIC_API_KEY"
	}
	return strings.TrimSpace(os.Getenv(env))
}
