package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
	"github.com/Welshcorki/Genminute/pkg/logging"
)

// Config holds settings for the OpenAI-compatible provider.
type Config struct {
	// BaseURL is the service root; requests go to BaseURL/v1/....
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model is the chat model identifier.
	Model string

	// EmbeddingModel is the embeddings model identifier.
	EmbeddingModel string

	// Timeout bounds each request.
	Timeout time.Duration
}

// OpenAIProvider implements Provider against any OpenAI-compatible API
// (Gemini via its compatibility endpoint, vLLM, Ollama).
type OpenAIProvider struct {
	config     Config
	httpClient *http.Client
	logger     logging.Logger
	name       string
}

// NewOpenAIProvider creates a provider for the configured service.
func NewOpenAIProvider(config Config, logger logging.Logger) *OpenAIProvider {
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &OpenAIProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With(logging.F("component", "model_provider")),
		name:       fmt.Sprintf("openai-%s", config.Model),
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// wire types for the OpenAI-compatible API.

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type wireToolDef struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type wireChatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireToolDef `json:"tools,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type wireChoice struct {
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireChatResponse struct {
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
}

type wireEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type wireEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Chat runs one assistant turn.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	wreq := wireChatRequest{
		Model:       p.config.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if wreq.MaxTokens == 0 {
		wreq.MaxTokens = 4096
	}

	for _, m := range req.Messages {
		wm := wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunction{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		wreq.Messages = append(wreq.Messages, wm)
	}

	for _, t := range req.Tools {
		var wt wireToolDef
		wt.Type = "function"
		wt.Function.Name = t.Name
		wt.Function.Description = t.Description
		wt.Function.Parameters = t.Parameters
		wreq.Tools = append(wreq.Tools, wt)
	}

	var wresp wireChatResponse
	if err := p.post(ctx, "/v1/chat/completions", wreq, &wresp); err != nil {
		return nil, err
	}
	if len(wresp.Choices) == 0 {
		return nil, &gmerrors.StageError{
			Code:    gmerrors.ErrExternalService,
			Stage:   "model",
			Message: "no choices in model response",
		}
	}

	choice := wresp.Choices[0]
	out := &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Model:        wresp.Model,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

// Complete runs a plain prompt to completion and strips any markdown
// fences from the answer.
func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	messages := []Message{}
	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	resp, err := p.Chat(ctx, ChatRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	return StripFences(resp.Content), nil
}

// Embed returns one embedding vector per input text, in input order.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	wreq := wireEmbeddingRequest{Model: p.config.EmbeddingModel, Input: texts}
	var wresp wireEmbeddingResponse
	if err := p.post(ctx, "/v1/embeddings", wreq, &wresp); err != nil {
		return nil, err
	}
	if len(wresp.Data) != len(texts) {
		return nil, &gmerrors.StageError{
			Code:    gmerrors.ErrExternalService,
			Stage:   "embed",
			Message: fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(wresp.Data)),
		}
	}

	vectors := make([][]float64, len(texts))
	for _, d := range wresp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, &gmerrors.StageError{
				Code:    gmerrors.ErrExternalService,
				Stage:   "embed",
				Message: fmt.Sprintf("embedding index %d out of range", d.Index),
			}
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// IsAvailable reports whether the service lists models.
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	p.authorize(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases provider resources.
func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *OpenAIProvider) authorize(req *http.Request) {
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
}

func (p *OpenAIProvider) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &gmerrors.StageError{
				Code:    gmerrors.ErrStageTimeout,
				Stage:   "model",
				Timeout: p.config.Timeout,
				Cause:   err,
			}
		}
		return &gmerrors.StageError{
			Code:    gmerrors.ErrExternalService,
			Stage:   "model",
			Message: fmt.Sprintf("request failed: %v", err),
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &gmerrors.StageError{
			Code:    gmerrors.ErrExternalService,
			Stage:   "model",
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(respBody, 300)),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &gmerrors.StageError{
			Code:    gmerrors.ErrExternalService,
			Stage:   "model",
			Message: fmt.Sprintf("parse response: %v", err),
			Cause:   err,
		}
	}
	return nil
}

func truncate(b []byte, limit int) string {
	s := string(b)
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
