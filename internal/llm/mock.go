package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// MockClient is a scriptable Client for tests. Responses are returned in
// order; when the queue is exhausted the last response repeats.
type MockClient struct {
	// CompleteFunc overrides Complete when set
	CompleteFunc func(ctx context.Context, prompt string) (string, error)
	// CompleteWithRequestFunc overrides CompleteWithRequest when set
	CompleteWithRequestFunc func(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Responses is a queue of canned reply texts
	Responses []string
	// Err, when set, is returned by every call
	Err error

	// Prompts records every prompt seen, in order
	Prompts []string
	// Requests records every structured request seen, in order
	Requests []*CompletionRequest

	next int
}

func (m *MockClient) pop() string {
	if len(m.Responses) == 0 {
		return ""
	}
	idx := m.next
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.next++
	return m.Responses[idx]
}

func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.pop(), nil
}

func (m *MockClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	m.Requests = append(m.Requests, req)
	if m.CompleteWithRequestFunc != nil {
		return m.CompleteWithRequestFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	var prompt string
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}
	m.Prompts = append(m.Prompts, prompt)
	return &CompletionResponse{
		Content:    m.pop(),
		StopReason: "end_turn",
		Usage:      Usage{InputTokens: len(prompt) / 4, OutputTokens: 64},
	}, nil
}

func (m *MockClient) CompleteStructured(ctx context.Context, req *CompletionRequest) (json.RawMessage, error) {
	resp, err := m.CompleteWithRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	raw, err := ExtractJSON(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("mock structured completion: %w", err)
	}
	return raw, nil
}

func (m *MockClient) GetModelName() string {
	return "mock-model"
}
