package web_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semprompt/enhance"
	"github.com/c360studio/semprompt/llm"
	"github.com/c360studio/semprompt/llm/testutil"
	"github.com/c360studio/semprompt/preset"
	"github.com/c360studio/semprompt/web"
	"github.com/c360studio/semprompt/webcontext"
)

// mockContent satisfies the clarification guard so responses pass
// through unchanged.
const mockContent = "Here is an enhanced prompt. Before responding, list key assumptions and ask 2-4 clarifying questions."

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestHandler builds a handler around the mock, filling in any
// options the test did not set.
func newTestHandler(t *testing.T, mock *testutil.MockCompleter, opts web.Options) http.Handler {
	t.Helper()

	logger := discardLogger()
	if opts.Enhancer == nil {
		opts.Enhancer = enhance.NewEnhancer(mock, enhance.Config{
			Provider:     "openai",
			DefaultModel: "gpt-4.1-mini",
			ModelOptions: []string{"gpt-4.1", "gpt-4.1-mini"},
		}, logger)
	}
	if opts.Presets == nil {
		opts.Presets = preset.NewStore(nil, logger)
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return web.NewServer(opts).Handler()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/enhance", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndexPage(t *testing.T) {
	h := newTestHandler(t, &testutil.MockCompleter{}, web.Options{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="role"`)
	assert.Contains(t, body, `name="api_key"`)
	assert.Contains(t, body, "gpt-4.1-mini")
	assert.Contains(t, body, "Generate Enhanced Prompt")
	// Form pre-filled from the default preset
	assert.Contains(t, body, "experienced Python developer")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestIndexPageUnknownPath(t *testing.T) {
	h := newTestHandler(t, &testutil.MockCompleter{}, web.Options{})

	req := httptest.NewRequest(http.MethodGet, "/no-such-page", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnhanceFormExternal(t *testing.T) {
	mock := &testutil.MockCompleter{
		Responses: []*llm.Response{{Content: mockContent, Model: "gpt-4.1-mini"}},
	}
	h := newTestHandler(t, mock, web.Options{})

	rec := postForm(t, h, url.Values{
		"role":        {"a code reviewer"},
		"context":     {"reviewing Go services"},
		"task":        {"review this change"},
		"model":       {"gpt-4.1"},
		"temperature": {"0.7"},
		"api_key":     {"sk-test"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, mockContent)
	assert.Contains(t, body, "Done! Copy your preferred format above.")
	assert.Contains(t, body, "&lt;prompt&gt;")
	assert.NotContains(t, body, "Using offline template")

	require.Equal(t, 1, mock.CallCount())
	last, ok := mock.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "sk-test", last.APIKey)
	assert.Equal(t, "gpt-4.1", last.Model)
	require.NotNil(t, last.Temperature)
	assert.InDelta(t, 0.7, *last.Temperature, 1e-9)
}

func TestEnhanceFormOffline(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	mock := &testutil.MockCompleter{}
	h := newTestHandler(t, mock, web.Options{})

	rec := postForm(t, h, url.Values{
		"role":    {"a tutor"},
		"context": {"learning Go"},
		"task":    {"explain goroutines"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Using offline template (no/invalid API key or network error).")
	assert.Contains(t, body, "You are tasked with acting as a tutor.")
	assert.Contains(t, body, "Done! Copy your preferred format above.")
	assert.Equal(t, 0, mock.CallCount())
}

func TestAPIEnhanceExternal(t *testing.T) {
	mock := &testutil.MockCompleter{
		Responses: []*llm.Response{{Content: mockContent, Model: "gpt-4.1-mini"}},
	}
	h := newTestHandler(t, mock, web.Options{})

	rec := postJSON(t, h, "/api/enhance", web.EnhanceRequest{
		Role:    "a code reviewer",
		Context: "reviewing Go services",
		Task:    "review this change",
		APIKey:  "sk-test",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp web.EnhanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, mockContent, resp.EnhancedPrompt)
	assert.Equal(t, "external", resp.Source)
	assert.Empty(t, resp.Warning)
	assert.Equal(t, resp.EnhancedPrompt, resp.Formats.Plain)
	assert.Contains(t, resp.Formats.XML, "<prompt>")
	assert.Contains(t, resp.Formats.JSON, `"enhanced_prompt"`)

	_, err := uuid.Parse(resp.RequestID)
	assert.NoError(t, err)
	assert.Equal(t, resp.RequestID, rec.Header().Get("X-Request-ID"))
}

func TestAPIEnhanceExternalFailure(t *testing.T) {
	mock := &testutil.MockCompleter{
		Err: llm.NewTransientError(errors.New("connection refused")),
	}
	h := newTestHandler(t, mock, web.Options{})

	rec := postJSON(t, h, "/api/enhance", web.EnhanceRequest{
		Role:   "a tutor",
		Task:   "explain goroutines",
		APIKey: "sk-test",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp web.EnhanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fallback", resp.Source)
	assert.Contains(t, resp.Warning, "external call failed")
	assert.Contains(t, resp.Warning, "connection refused")
	assert.Contains(t, resp.EnhancedPrompt, "You are tasked with acting as a tutor.")
}

func TestAPIEnhanceNoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	mock := &testutil.MockCompleter{}
	h := newTestHandler(t, mock, web.Options{})

	rec := postJSON(t, h, "/api/enhance", web.EnhanceRequest{
		Role: "a tutor",
		Task: "explain goroutines",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp web.EnhanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fallback", resp.Source)
	assert.Empty(t, resp.Warning)
	assert.Equal(t, 0, mock.CallCount())
}

func TestAPIEnhanceEnvKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	mock := &testutil.MockCompleter{
		Responses: []*llm.Response{{Content: mockContent, Model: "gpt-4.1-mini"}},
	}
	h := newTestHandler(t, mock, web.Options{})

	rec := postJSON(t, h, "/api/enhance", web.EnhanceRequest{
		Role: "a tutor",
		Task: "explain goroutines",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp web.EnhanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "external", resp.Source)

	last, ok := mock.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "sk-env", last.APIKey)
}

func TestAPIEnhanceInvalidJSON(t *testing.T) {
	h := newTestHandler(t, &testutil.MockCompleter{}, web.Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/enhance", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid request body", errResp["error"])
}

func TestAPIEnhanceBodyTooLarge(t *testing.T) {
	h := newTestHandler(t, &testutil.MockCompleter{}, web.Options{MaxBodyBytes: 64})

	rec := postJSON(t, h, "/api/enhance", web.EnhanceRequest{
		Role: strings.Repeat("x", 256),
	})

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAPIEnhanceUnknownPreset(t *testing.T) {
	h := newTestHandler(t, &testutil.MockCompleter{}, web.Options{})

	rec := postJSON(t, h, "/api/enhance", web.EnhanceRequest{
		Role:   "a tutor",
		Task:   "explain goroutines",
		Preset: "no-such-preset",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Contains(t, errResp["error"], "unknown preset")
}

func TestAPIEnhancePresetFillsBlankInputs(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	h := newTestHandler(t, &testutil.MockCompleter{}, web.Options{})

	rec := postJSON(t, h, "/api/enhance", web.EnhanceRequest{
		Preset: preset.DefaultPresetName,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp web.EnhanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fallback", resp.Source)
	assert.Contains(t, resp.EnhancedPrompt, "experienced Python developer")
}

func TestAPIEnhanceContextURLRejected(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	h := newTestHandler(t, &testutil.MockCompleter{}, web.Options{
		WebContext: webcontext.NewService(webcontext.Options{Logger: discardLogger()}),
	})

	rec := postJSON(t, h, "/api/enhance", web.EnhanceRequest{
		Role:       "a tutor",
		Task:       "explain goroutines",
		ContextURL: "http://localhost/page",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp web.EnhanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fallback", resp.Source)
	assert.Contains(t, resp.Warning, "context URL ignored")
	assert.Contains(t, resp.EnhancedPrompt, "You are tasked with acting as a tutor.")
}

func TestAPIPresets(t *testing.T) {
	h := newTestHandler(t, &testutil.MockCompleter{}, web.Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/presets", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp web.ListPresetsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.GreaterOrEqual(t, resp.Total, 1)
	assert.Equal(t, preset.DefaultPresetName, resp.Presets[0].Name)
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t, &testutil.MockCompleter{}, web.Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t, &testutil.MockCompleter{}, web.Options{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}
