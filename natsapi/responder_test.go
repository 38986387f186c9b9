package natsapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semprompt/enhance"
	"github.com/c360studio/semprompt/llm"
	"github.com/c360studio/semprompt/llm/testutil"
	"github.com/c360studio/semprompt/preset"
)

// mockContent satisfies the clarification guard so responses pass
// through unchanged.
const mockContent = "Here is an enhanced prompt. Before responding, list key assumptions and ask 2-4 clarifying questions."

func newTestResponder(mock *testutil.MockCompleter) *Responder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResponder(Options{
		Enhancer: enhance.NewEnhancer(mock, enhance.Config{
			Provider:     "openai",
			DefaultModel: "gpt-4.1-mini",
			ModelOptions: []string{"gpt-4.1", "gpt-4.1-mini"},
		}, logger),
		Presets: preset.NewStore(nil, logger),
		Logger:  logger,
	})
}

func request(t *testing.T, req Request) []byte {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return data
}

func TestHandleMsgExternal(t *testing.T) {
	mock := &testutil.MockCompleter{
		Responses: []*llm.Response{{Content: mockContent, Model: "gpt-4.1-mini"}},
	}
	r := newTestResponder(mock)

	reply := r.handleMsg(context.Background(), request(t, Request{
		Role:   "a code reviewer",
		Task:   "review this change",
		APIKey: "sk-test",
	}))

	var resp Response
	require.NoError(t, json.Unmarshal(reply, &resp))
	assert.Equal(t, mockContent, resp.EnhancedPrompt)
	assert.Equal(t, "external", resp.Source)
	assert.Empty(t, resp.Warning)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.EnhancedPrompt, resp.Formats.Plain)
	assert.Contains(t, resp.Formats.XML, "<prompt>")
	assert.Contains(t, resp.Formats.JSON, `"enhanced_prompt"`)
	assert.Equal(t, 1, mock.CallCount())
}

func TestHandleMsgFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	mock := &testutil.MockCompleter{}
	r := newTestResponder(mock)

	reply := r.handleMsg(context.Background(), request(t, Request{
		Role: "a tutor",
		Task: "explain goroutines",
	}))

	var resp Response
	require.NoError(t, json.Unmarshal(reply, &resp))
	assert.Equal(t, "fallback", resp.Source)
	assert.Empty(t, resp.Warning)
	assert.Contains(t, resp.EnhancedPrompt, "You are tasked with acting as a tutor.")
	assert.Equal(t, 0, mock.CallCount())
}

func TestHandleMsgExternalFailure(t *testing.T) {
	mock := &testutil.MockCompleter{
		Err: llm.NewTransientError(errors.New("connection refused")),
	}
	r := newTestResponder(mock)

	reply := r.handleMsg(context.Background(), request(t, Request{
		Role:   "a tutor",
		Task:   "explain goroutines",
		APIKey: "sk-test",
	}))

	var resp Response
	require.NoError(t, json.Unmarshal(reply, &resp))
	assert.Equal(t, "fallback", resp.Source)
	assert.Contains(t, resp.Warning, "external call failed")
}

func TestHandleMsgInvalidJSON(t *testing.T) {
	r := newTestResponder(&testutil.MockCompleter{})

	reply := r.handleMsg(context.Background(), []byte("{not json"))

	var errResp map[string]string
	require.NoError(t, json.Unmarshal(reply, &errResp))
	assert.Equal(t, "invalid request body", errResp["error"])
}

func TestHandleMsgUnknownPreset(t *testing.T) {
	r := newTestResponder(&testutil.MockCompleter{})

	reply := r.handleMsg(context.Background(), request(t, Request{
		Role:   "a tutor",
		Preset: "no-such-preset",
	}))

	var errResp map[string]string
	require.NoError(t, json.Unmarshal(reply, &errResp))
	assert.Contains(t, errResp["error"], "unknown preset")
}

func TestHandleMsgPresetFillsBlankInputs(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	r := newTestResponder(&testutil.MockCompleter{})

	reply := r.handleMsg(context.Background(), request(t, Request{
		Preset: preset.DefaultPresetName,
	}))

	var resp Response
	require.NoError(t, json.Unmarshal(reply, &resp))
	assert.Equal(t, "fallback", resp.Source)
	assert.Contains(t, resp.EnhancedPrompt, "experienced Python developer")
}
