// Package natsapi exposes the enhancement pipeline over a NATS
// request/reply subject. Requests and replies mirror the web API's
// JSON bodies, so the same client payload works on both surfaces.
package natsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/c360studio/semprompt/enhance"
	"github.com/c360studio/semprompt/preset"
	"github.com/c360studio/semprompt/render"
	"github.com/c360studio/semprompt/webcontext"
)

const (
	// DefaultSubject is the subject served when none is configured.
	DefaultSubject = "semprompt.enhance.request"

	// defaultQueue makes multiple instances share the request load.
	defaultQueue = "semprompt"

	// defaultTimeout bounds the handling of a single message.
	defaultTimeout = 2 * time.Minute
)

// Request is the JSON request body. Field names match the web API.
type Request struct {
	Role       string `json:"role"`
	Context    string `json:"context"`
	Task       string `json:"task"`
	ContextURL string `json:"context_url,omitempty"`
	Preset     string `json:"preset,omitempty"`
	Model      string `json:"model,omitempty"`

	// Temperature is nil to use the configured default.
	Temperature *float64 `json:"temperature,omitempty"`

	// APIKey is used for this request only and is never logged or stored.
	APIKey string `json:"api_key,omitempty"`
}

// Formats carries the three serializations of the enhanced prompt.
type Formats struct {
	Plain string `json:"plain"`
	XML   string `json:"xml"`
	JSON  string `json:"json"`
}

// Response is the JSON reply body.
type Response struct {
	EnhancedPrompt string  `json:"enhanced_prompt"`
	Source         string  `json:"source"`
	Warning        string  `json:"warning,omitempty"`
	RequestID      string  `json:"request_id"`
	Formats        Formats `json:"formats"`
}

type errorReply struct {
	Error string `json:"error"`
}

// Options configures a Responder.
type Options struct {
	// URL is the NATS server to connect to.
	URL string

	// Subject to serve. Empty uses DefaultSubject.
	Subject string

	// Queue group name. Empty uses the default.
	Queue string

	// Enhancer runs the enhancement pipeline. Required.
	Enhancer *enhance.Enhancer

	// Presets supplies named input presets. Required.
	Presets *preset.Store

	// WebContext builds context from a URL. Nil disables context URLs.
	WebContext *webcontext.Service

	// Provider picks the environment variable consulted when a request
	// carries no API key.
	Provider string

	// Timeout bounds the handling of one message. Zero uses the default.
	Timeout time.Duration

	// Logger for logging events.
	Logger *slog.Logger
}

// Responder serves enhancement requests over NATS request/reply.
type Responder struct {
	url      string
	subject  string
	queue    string
	enhancer *enhance.Enhancer
	presets  *preset.Store
	webctx   *webcontext.Service
	provider string
	timeout  time.Duration
	logger   *slog.Logger

	baseCtx context.Context
	conn    *nats.Conn
	sub     *nats.Subscription
}

// NewResponder creates a Responder. Start must be called before it
// serves requests.
func NewResponder(opts Options) *Responder {
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	if opts.Queue == "" {
		opts.Queue = defaultQueue
	}
	if opts.Provider == "" {
		opts.Provider = "openai"
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Responder{
		url:      opts.URL,
		subject:  opts.Subject,
		queue:    opts.Queue,
		enhancer: opts.Enhancer,
		presets:  opts.Presets,
		webctx:   opts.WebContext,
		provider: opts.Provider,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}
}

// Start connects and subscribes. The given context bounds message
// handling once cancelled; in-flight requests degrade to the fallback.
func (r *Responder) Start(ctx context.Context) error {
	conn, err := nats.Connect(r.url, nats.Name("semprompt"))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	r.baseCtx = ctx
	r.conn = conn

	sub, err := conn.QueueSubscribe(r.subject, r.queue, r.onMessage)
	if err != nil {
		conn.Close()
		return fmt.Errorf("subscribe to %s: %w", r.subject, err)
	}
	r.sub = sub

	r.logger.Info("NATS endpoint ready",
		"url", r.url,
		"subject", r.subject,
		"queue", r.queue)
	return nil
}

// Stop drains the connection so in-flight requests finish, then closes it.
func (r *Responder) Stop() {
	if r.conn == nil {
		return
	}
	if err := r.conn.Drain(); err != nil {
		r.logger.Warn("NATS drain failed", "error", err)
	}
	r.conn.Close()
	r.conn = nil
}

func (r *Responder) onMessage(msg *nats.Msg) {
	base := r.baseCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithTimeout(base, r.timeout)
	defer cancel()

	reply := r.handleMsg(ctx, msg.Data)
	if err := msg.Respond(reply); err != nil {
		r.logger.Warn("Failed to send reply", "subject", msg.Subject, "error", err)
	}
}

// handleMsg runs the pipeline for one message and returns the reply
// payload. Malformed requests get an error reply; the pipeline itself
// always yields a usable result.
func (r *Responder) handleMsg(ctx context.Context, data []byte) []byte {
	start := time.Now()
	requestID := uuid.New().String()

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		r.logger.Warn("Malformed enhancement request",
			"request_id", requestID,
			"error", err)
		return mustMarshal(errorReply{Error: "invalid request body"})
	}

	inputs := enhance.PromptInputs{Role: req.Role, Context: req.Context, Task: req.Task}
	model := req.Model
	temperature := req.Temperature

	if req.Preset != "" {
		p, ok := r.presets.Get(req.Preset)
		if !ok {
			return mustMarshal(errorReply{Error: fmt.Sprintf("unknown preset %q", req.Preset)})
		}
		inputs = p.Fill(inputs)
		if strings.TrimSpace(model) == "" && p.Model != "" {
			model = p.Model
		}
		if temperature == nil && p.Temperature != nil {
			temperature = p.Temperature
		}
	}

	var warnings []string
	if u := strings.TrimSpace(req.ContextURL); u != "" {
		page, err := r.buildWebContext(ctx, u)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("context URL ignored: %v", err))
		} else {
			inputs.Context = joinContext(inputs.Context, page.AsContext())
		}
	}

	result := r.enhancer.Enhance(ctx, inputs, enhance.GenerationConfig{
		APIKey:      enhance.ResolveAPIKey(r.provider, req.APIKey),
		Model:       model,
		Temperature: temperature,
	})
	if result.Warning != "" {
		warnings = append(warnings, result.Warning)
	}

	r.logger.Info("Enhancement served",
		"request_id", requestID,
		"source", result.Source,
		"preset", req.Preset,
		"duration", time.Since(start))

	return mustMarshal(Response{
		EnhancedPrompt: result.Text,
		Source:         string(result.Source),
		Warning:        strings.Join(warnings, "; "),
		RequestID:      requestID,
		Formats: Formats{
			Plain: render.PlainText(result.Text),
			XML:   render.XML(result.Text),
			JSON:  render.JSON(result.Text),
		},
	})
}

func (r *Responder) buildWebContext(ctx context.Context, rawURL string) (*webcontext.Page, error) {
	if r.webctx == nil {
		return nil, fmt.Errorf("context URL support is not configured")
	}
	return r.webctx.Build(ctx, rawURL)
}

func joinContext(existing, addition string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return addition
	}
	return existing + "\n\n" + addition
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return data
}
