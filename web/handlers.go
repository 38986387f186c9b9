package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/semprompt/enhance"
	"github.com/c360studio/semprompt/preset"
	"github.com/c360studio/semprompt/render"
	"github.com/c360studio/semprompt/webcontext"
)

// EnhanceRequest is the request body for POST /api/enhance. The form on
// POST /enhance carries the same fields.
type EnhanceRequest struct {
	Role       string `json:"role"`
	Context    string `json:"context"`
	Task       string `json:"task"`
	ContextURL string `json:"context_url,omitempty"`
	Preset     string `json:"preset,omitempty"`
	Model      string `json:"model,omitempty"`

	// Temperature is nil to use the configured default.
	Temperature *float64 `json:"temperature,omitempty"`

	// APIKey is used for this request only and is never logged or stored.
	// Empty falls back to the provider's environment variable.
	APIKey string `json:"api_key,omitempty"`
}

// Formats carries the three serializations of the enhanced prompt.
type Formats struct {
	Plain string `json:"plain"`
	XML   string `json:"xml"`
	JSON  string `json:"json"`
}

// EnhanceResponse is the response body for POST /api/enhance.
type EnhanceResponse struct {
	EnhancedPrompt string  `json:"enhanced_prompt"`
	Source         string  `json:"source"`
	Warning        string  `json:"warning,omitempty"`
	RequestID      string  `json:"request_id"`
	Formats        Formats `json:"formats"`
}

// ListPresetsResponse is the response for GET /api/presets.
type ListPresetsResponse struct {
	Presets []preset.Preset `json:"presets"`
	Total   int             `json:"total"`
}

// runEnhance executes the full pipeline for one request: preset fill,
// optional web context, enhancement, serialization. The returned error
// only signals a malformed request; the pipeline itself always yields a
// usable result.
func (s *Server) runEnhance(ctx context.Context, req EnhanceRequest) (EnhanceResponse, error) {
	inputs := enhance.PromptInputs{Role: req.Role, Context: req.Context, Task: req.Task}
	model := req.Model
	temperature := req.Temperature

	if req.Preset != "" {
		p, ok := s.presets.Get(req.Preset)
		if !ok {
			return EnhanceResponse{}, fmt.Errorf("unknown preset %q", req.Preset)
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
		page, err := s.buildWebContext(ctx, u)
		if err != nil {
			// Context fetch failure is never fatal; the submitted
			// context text is used unchanged.
			warnings = append(warnings, fmt.Sprintf("context URL ignored: %v", err))
		} else {
			inputs.Context = joinContext(inputs.Context, page.AsContext())
		}
	}

	result := s.enhancer.Enhance(ctx, inputs, enhance.GenerationConfig{
		APIKey:      enhance.ResolveAPIKey(s.provider, req.APIKey),
		Model:       model,
		Temperature: temperature,
	})
	if result.Warning != "" {
		warnings = append(warnings, result.Warning)
	}

	return EnhanceResponse{
		EnhancedPrompt: result.Text,
		Source:         string(result.Source),
		Warning:        strings.Join(warnings, "; "),
		RequestID:      RequestID(ctx),
		Formats: Formats{
			Plain: render.PlainText(result.Text),
			XML:   render.XML(result.Text),
			JSON:  render.JSON(result.Text),
		},
	}, nil
}

func (s *Server) buildWebContext(ctx context.Context, rawURL string) (*webcontext.Page, error) {
	if s.webctx == nil {
		return nil, fmt.Errorf("context URL support is not configured")
	}
	return s.webctx.Build(ctx, rawURL)
}

// joinContext appends fetched page context after the user's own text.
func joinContext(existing, addition string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return addition
	}
	return existing + "\n\n" + addition
}

// handleAPIEnhance handles POST /api/enhance.
func (s *Server) handleAPIEnhance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Limit request body size to prevent DoS
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req EnhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.runEnhance(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("Enhancement served",
		"request_id", resp.RequestID,
		"source", resp.Source,
		"preset", req.Preset,
		"duration", time.Since(start))

	s.writeJSON(w, http.StatusOK, resp)
}

// handleListPresets handles GET /api/presets.
func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets := s.presets.List()
	s.writeJSON(w, http.StatusOK, ListPresetsResponse{
		Presets: presets,
		Total:   len(presets),
	})
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pageData is the template context for the form page.
type pageData struct {
	Role        string
	Context     string
	Task        string
	ContextURL  string
	Preset      string
	Model       string
	Temperature float64
	Models      []string
	Presets     []preset.Preset

	Result  *EnhanceResponse
	Notice  string
	Warning string
	Success string
	Error   string
}

// defaultPageData pre-fills the form from the default preset, matching
// the values a fresh page shows.
func (s *Server) defaultPageData() pageData {
	data := pageData{
		Preset:      preset.DefaultPresetName,
		Model:       s.defaultModel,
		Temperature: s.temperature,
		Models:      s.modelOptions,
		Presets:     s.presets.List(),
	}
	if p, ok := s.presets.Get(preset.DefaultPresetName); ok {
		data.Role = p.Role
		data.Context = p.Context
		data.Task = p.Task
	}
	return data
}

// handleIndex handles GET /.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, s.defaultPageData())
}

// handleEnhanceForm handles POST /enhance and re-renders the page with
// the three output formats and status notices.
func (s *Server) handleEnhanceForm(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseForm(); err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, "invalid form data", status)
		return
	}

	req := EnhanceRequest{
		Role:       r.PostFormValue("role"),
		Context:    r.PostFormValue("context"),
		Task:       r.PostFormValue("task"),
		ContextURL: r.PostFormValue("context_url"),
		Preset:     r.PostFormValue("preset"),
		Model:      r.PostFormValue("model"),
		APIKey:     r.PostFormValue("api_key"),
	}
	if v := r.PostFormValue("temperature"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			req.Temperature = &t
		}
	}

	// Re-render with what the user submitted, not the preset defaults.
	data := s.defaultPageData()
	data.Role = req.Role
	data.Context = req.Context
	data.Task = req.Task
	data.ContextURL = req.ContextURL
	data.Preset = req.Preset
	if req.Model != "" {
		data.Model = req.Model
	}
	if req.Temperature != nil {
		data.Temperature = *req.Temperature
	}

	resp, err := s.runEnhance(r.Context(), req)
	if err != nil {
		data.Error = err.Error()
		s.renderPage(w, data)
		return
	}

	data.Result = &resp
	data.Warning = resp.Warning
	if resp.Source == string(enhance.SourceFallback) {
		data.Notice = "Using offline template (no/invalid API key or network error)."
	}
	data.Success = "Done! Copy your preferred format above."

	s.logger.Info("Enhancement served",
		"request_id", resp.RequestID,
		"source", resp.Source,
		"preset", req.Preset,
		"duration", time.Since(start))

	s.renderPage(w, data)
}

// renderPage executes the page template into a buffer first so a
// failure cannot emit half a page with a 200 status.
func (s *Server) renderPage(w http.ResponseWriter, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("Failed to render page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
