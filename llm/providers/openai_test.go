package providers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Name(t *testing.T) {
	p := &OpenAIProvider{}
	assert.Equal(t, "openai", p.Name())
}

func TestOpenAIProvider_BuildURL(t *testing.T) {
	p := &OpenAIProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "empty uses default",
			baseURL: "",
			want:    "https://api.openai.com/v1/chat/completions",
		},
		{
			name:    "custom gateway",
			baseURL: "https://gateway.example.com/v1",
			want:    "https://gateway.example.com/v1/chat/completions",
		},
		{
			name:    "trailing slash handled",
			baseURL: "https://api.openai.com/v1/",
			want:    "https://api.openai.com/v1/chat/completions",
		},
		{
			name:    "already has endpoint",
			baseURL: "https://api.openai.com/v1/chat/completions",
			want:    "https://api.openai.com/v1/chat/completions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.BuildURL(tt.baseURL)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAIProvider_SetHeaders(t *testing.T) {
	p := &OpenAIProvider{}

	t.Run("sets bearer auth from the request key", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil)
		require.NoError(t, err)

		p.SetHeaders(req, "sk-test-key")
		assert.Equal(t, "Bearer sk-test-key", req.Header.Get("Authorization"))
	})

	t.Run("no auth header without a key", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil)
		require.NoError(t, err)

		p.SetHeaders(req, "")
		assert.Empty(t, req.Header.Get("Authorization"))
	})
}

func TestOpenAIProvider_SharesOpenAIFormat(t *testing.T) {
	// The request body format is inherited from the OpenAI-compatible base.
	p := &OpenAIProvider{}

	body, err := p.BuildRequestBody("gpt-4.1", nil, nil, 0)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"model":"gpt-4.1"`)
}
