// Package llm defines the text-completion capability consumed by the
// pipeline and an Anthropic-backed implementation.
package llm

import (
	"context"
	"encoding/json"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest represents a completion request
type CompletionRequest struct {
	Messages     []*Message `json:"messages"`
	Temperature  float64    `json:"temperature"`
	MaxTokens    int        `json:"max_tokens,omitempty"`
	SystemPrompt string     `json:"system_prompt,omitempty"`
}

// Usage reports token consumption of a single completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// CompletionResponse represents a completion response
type CompletionResponse struct {
	Content    string `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      Usage  `json:"usage"`
}

// Client is the interface for LLM clients
type Client interface {
	// Complete is a simplified version for a single prompt
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteWithRequest sends a completion request and returns the response
	CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	// CompleteStructured requests a JSON value. Implementations strip code
	// fences and prose around the first JSON document in the reply.
	CompleteStructured(ctx context.Context, req *CompletionRequest) (json.RawMessage, error)
	// GetModelName returns the model name
	GetModelName() string
}
