// Package main implements a mock model server for semprompt development
// and e2e testing. It serves OpenAI-compatible /v1/chat/completions
// responses without a real model, so the external enhancement path can be
// exercised offline and deterministically.
//
// Usage:
//
//	mock-llm -port 11434 [-fixtures /path/to/fixtures]
//
// Behavior is selected by the "model" field of the request:
//   - a fixture file named <model>.txt or <model>.json returns its content
//   - models ending in "-empty" return an empty assistant message, which
//     the enhancer treats as a failed call
//   - models ending in "-fail" return HTTP 500
//   - anything else echoes a deterministic enhancement built from the
//     user message
//
// Point semprompt at it with model.endpoint: http://localhost:11434 and
// any non-empty API key.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Server ---

type server struct {
	fixtures map[string]string // model name → canned response content
	calls    atomic.Int64      // total completions served

	// Per-model call counters for test assertions via /stats.
	modelCallsMu sync.Mutex
	modelCalls   map[string]int64
}

func newServer(fixtures map[string]string) *server {
	if fixtures == nil {
		fixtures = make(map[string]string)
	}
	return &server{
		fixtures:   fixtures,
		modelCalls: make(map[string]int64),
	}
}

func (s *server) countCall(model string) int64 {
	s.modelCallsMu.Lock()
	defer s.modelCallsMu.Unlock()
	s.modelCalls[model]++
	return s.calls.Add(1)
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing canned response files (optional)")
	port := flag.Int("port", 11434, "port to listen on")
	flag.Parse()

	// Allow env var override
	if envDir := os.Getenv("MOCK_LLM_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}

	fixtures := map[string]string{}
	if *fixtureDir != "" {
		var err error
		fixtures, err = loadFixtures(*fixtureDir)
		if err != nil {
			log.Fatalf("Failed to load fixtures from %s: %v", *fixtureDir, err)
		}
		log.Printf("Loaded %d fixture(s) from %s", len(fixtures), *fixtureDir)
		for model := range fixtures {
			log.Printf("  model: %s", model)
		}
	}

	s := newServer(fixtures)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/stats", s.handleStats)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock LLM server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	callNum := s.countCall(req.Model)
	log.Printf("[call %d] model=%s messages=%d", callNum, req.Model, len(req.Messages))

	if strings.HasSuffix(req.Model, "-fail") {
		log.Printf("[call %d] model=%s simulating server error", callNum, req.Model)
		http.Error(w, "simulated model failure", http.StatusInternalServerError)
		return
	}

	content := s.resolveContent(req)

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{
			{
				Index: 0,
				Message: chatMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     len(content) / 4, // rough estimate
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
	log.Printf("[call %d] responded with %d bytes for model=%s", callNum, len(content), req.Model)
}

// resolveContent picks the assistant message for a request: the empty
// marker first, then an exact fixture, then the deterministic echo.
func (s *server) resolveContent(req chatRequest) string {
	if strings.HasSuffix(req.Model, "-empty") {
		return ""
	}
	if fixture, ok := s.fixtures[req.Model]; ok {
		return fixture
	}
	return defaultEnhancement(lastUserMessage(req.Messages))
}

// lastUserMessage returns the content of the final user message, which
// for semprompt carries the role/context/task inputs.
func lastUserMessage(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}

// defaultEnhancement builds an enhanced-prompt-shaped reply from the user
// message. It carries the assumption and clarifying-question instructions
// a real enhancement would, so downstream output matches the external
// path exactly.
func defaultEnhancement(userContent string) string {
	var b strings.Builder
	b.WriteString("# Enhanced Prompt\n\n")
	if userContent != "" {
		b.WriteString(userContent)
		b.WriteString("\n\n")
	}
	b.WriteString("Before responding, list your key assumptions and ask 2-4 clarifying questions, then wait for answers.")
	return b.String()
}

// handleModels returns the fixture models plus the built-in behavior
// markers (OpenAI list format).
func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	models := []modelEntry{
		{ID: "mock-empty", Object: "model", OwnedBy: "mock-llm"},
		{ID: "mock-fail", Object: "model", OwnedBy: "mock-llm"},
	}
	for name := range s.fixtures {
		models = append(models, modelEntry{
			ID:      name,
			Object:  "model",
			OwnedBy: "mock-llm",
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   models,
	})
}

// handleStats returns call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.modelCallsMu.Lock()
	callsByModel := make(map[string]int64, len(s.modelCalls))
	for model, count := range s.modelCalls {
		callsByModel[model] = count
	}
	s.modelCallsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":    s.calls.Load(),
		"calls_by_model": callsByModel,
	})
}

// loadFixtures reads canned responses from dir: <model>.txt holds raw
// text, <model>.json must be valid JSON. Subdirectories are ignored.
func loadFixtures(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixture dir: %w", err)
	}

	fixtures := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".txt" && ext != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if ext == ".json" && !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON in %s", name)
		}

		model := strings.TrimSuffix(name, ext)
		fixtures[model] = string(data)
	}

	return fixtures, nil
}
