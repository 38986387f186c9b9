// Package web serves the enhancement form UI and the JSON API. Both
// surfaces run the same pipeline; the form renders the result inline
// while the API returns it as JSON.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/semprompt/enhance"
	"github.com/c360studio/semprompt/preset"
	"github.com/c360studio/semprompt/webcontext"
)

// maxRequestBodySize limits POST body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// Options configures a Server.
type Options struct {
	// Enhancer runs the enhancement pipeline. Required.
	Enhancer *enhance.Enhancer

	// Presets supplies named input presets. Required.
	Presets *preset.Store

	// WebContext builds context from a URL. Nil disables the context-URL
	// field with a warning instead of an error.
	WebContext *webcontext.Service

	// Provider is the model provider name, used to pick the environment
	// variable consulted when a request carries no API key.
	Provider string

	// ModelOptions are the models offered by the form selector.
	ModelOptions []string

	// DefaultModel is the initially selected model.
	DefaultModel string

	// Temperature is the form's initial temperature.
	Temperature float64

	// MaxBodyBytes caps request body sizes. Zero uses the default.
	MaxBodyBytes int64

	// Logger for logging events.
	Logger *slog.Logger
}

// Server hosts the form page and the JSON API endpoints.
type Server struct {
	enhancer     *enhance.Enhancer
	presets      *preset.Store
	webctx       *webcontext.Service
	provider     string
	modelOptions []string
	defaultModel string
	temperature  float64
	maxBody      int64
	logger       *slog.Logger
}

// NewServer creates a Server. Zero option values fall back to the
// enhance package defaults.
func NewServer(opts Options) *Server {
	if opts.Provider == "" {
		opts.Provider = "openai"
	}
	if len(opts.ModelOptions) == 0 {
		opts.ModelOptions = enhance.DefaultModelOptions
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = enhance.DefaultModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = enhance.DefaultTemperature
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = maxRequestBodySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Server{
		enhancer:     opts.Enhancer,
		presets:      opts.Presets,
		webctx:       opts.WebContext,
		provider:     opts.Provider,
		modelOptions: opts.ModelOptions,
		defaultModel: opts.DefaultModel,
		temperature:  opts.Temperature,
		maxBody:      opts.MaxBodyBytes,
		logger:       opts.Logger,
	}
}

// RegisterHTTPHandlers registers all endpoints on the mux.
func (s *Server) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /enhance", s.handleEnhanceForm)
	mux.HandleFunc("POST /api/enhance", s.handleAPIEnhance)
	mux.HandleFunc("GET /api/presets", s.handleListPresets)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the full HTTP handler with instrumentation applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterHTTPHandlers(mux)
	return s.instrument(mux)
}

type requestIDKey struct{}

// instrument assigns each request a UUID, exposed as the X-Request-ID
// response header, and tracks the in-flight gauge.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlightRequests.Inc()
		defer inFlightRequests.Dec()

		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request ID attached to the context by the
// server middleware, or an empty string.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to write JSON response", "error", err)
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
