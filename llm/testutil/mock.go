// Package testutil provides test utilities for the llm package.
// It includes mock implementations for testing completion client interactions.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/semprompt/llm"
)

// MockCompleter is a thread-safe mock completion client for testing.
// It captures the requests passed to Complete() and returns configured
// responses in sequence.
//
// Usage:
//
//	// Single response mock
//	mock := &testutil.MockCompleter{
//	    Responses: []*llm.Response{
//	        {Content: "An enhanced prompt.", Model: "test-model"},
//	    },
//	}
//
//	// Error response
//	mock := &testutil.MockCompleter{
//	    Err: errors.New("connection failed"),
//	}
type MockCompleter struct {
	mu            sync.Mutex
	requests      []llm.Request
	Responses     []*llm.Response // Responses to return in sequence
	Err           error           // Error to return (takes precedence over Responses)
	callCount     int
	responseIndex int
}

// Complete returns the next response from the Responses slice, or Err if set.
// The request is captured for verification in tests.
func (m *MockCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	m.callCount++

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.Err != nil {
		return nil, m.Err
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	// Default response if no responses configured
	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// Requests returns a copy of all captured requests in call order.
func (m *MockCompleter) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent captured request, or false when
// Complete() has not been called.
func (m *MockCompleter) LastRequest() (llm.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return llm.Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// CallCount returns the number of times Complete() was called.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears captured requests and rewinds the response sequence.
// Useful for reusing the same mock instance across multiple test cases.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.responseIndex = 0
	m.requests = nil
}
