// Package model abstracts the language-model service used for action
// extraction, summarization, and embeddings.
package model

import (
	"context"
	"encoding/json"
	"strings"
)

// Message is one turn of a model conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is the model's request to invoke a named tool with JSON
// arguments. Arguments stay raw until the tool validates them.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition describes one tool the model may call.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest asks the model for one assistant turn.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float32
	MaxTokens   int
}

// ChatResponse is the assistant turn the model produced. ToolCalls is
// empty when the model answered with plain content.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Model        string
}

// Provider is the language-model contract consumed by the workflow, the
// summarizer, and the indexer.
type Provider interface {
	// Name returns the provider identifier for logs.
	Name() string

	// Chat runs one assistant turn with optional tool definitions.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Complete runs a plain prompt to text completion.
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)

	// Embed returns one embedding vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// IsAvailable reports whether the service answers health checks.
	IsAvailable(ctx context.Context) bool

	// Close releases provider resources.
	Close() error
}

// StripFences removes a markdown code fence wrapping, which some models
// add around structured output despite instructions.
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```mermaid")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
