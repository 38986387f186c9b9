//go:build integration

package natsapi_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semprompt/enhance"
	"github.com/c360studio/semprompt/llm/testutil"
	"github.com/c360studio/semprompt/natsapi"
	"github.com/c360studio/semprompt/preset"
)

func TestResponderRoundTrip(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	t.Setenv("OPENAI_API_KEY", "")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	subject := "semprompt.test.enhance"

	responder := natsapi.NewResponder(natsapi.Options{
		URL:     url,
		Subject: subject,
		Enhancer: enhance.NewEnhancer(&testutil.MockCompleter{}, enhance.Config{
			Provider:     "openai",
			DefaultModel: "gpt-4.1-mini",
		}, logger),
		Presets: preset.NewStore(nil, logger),
		Logger:  logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, responder.Start(ctx))
	defer responder.Stop()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	payload, err := json.Marshal(natsapi.Request{
		Role: "a tutor",
		Task: "explain goroutines",
	})
	require.NoError(t, err)

	msg, err := nc.Request(subject, payload, 5*time.Second)
	require.NoError(t, err)

	var resp natsapi.Response
	require.NoError(t, json.Unmarshal(msg.Data, &resp))
	assert.Equal(t, "fallback", resp.Source)
	assert.Contains(t, resp.EnhancedPrompt, "You are tasked with acting as a tutor.")
	assert.NotEmpty(t, resp.RequestID)
}

func TestResponderMalformedRequest(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	subject := "semprompt.test.enhance.malformed"

	responder := natsapi.NewResponder(natsapi.Options{
		URL:     url,
		Subject: subject,
		Enhancer: enhance.NewEnhancer(&testutil.MockCompleter{}, enhance.Config{
			Provider:     "openai",
			DefaultModel: "gpt-4.1-mini",
		}, logger),
		Presets: preset.NewStore(nil, logger),
		Logger:  logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, responder.Start(ctx))
	defer responder.Stop()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	msg, err := nc.Request(subject, []byte("{not json"), 5*time.Second)
	require.NoError(t, err)

	var errResp map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &errResp))
	assert.Equal(t, "invalid request body", errResp["error"])
}
