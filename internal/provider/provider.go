// Package provider implements the model gateway: LLM backends, embedders and
// the normalized generation contract the orchestrator talks to.
package provider

import (
	"context"
)

// LLMProvider is the interface for LLM API clients.
type LLMProvider interface {
	// Chat sends a completion request and returns the response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// ChatRequest contains the parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatResponse contains the response from a chat completion request.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Model        string
	Usage        *Usage
}

// Message represents a chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Message roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolCall represents a tool call requested by the LLM. Arguments holds the
// raw JSON argument object exactly as the backend produced it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition defines a tool that can be called by the LLM.
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes a function that can be called.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Embedder is implemented by backends that can turn text into a vector.
type Embedder interface {
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)
}

// EmbeddingRequest contains parameters for an embedding request.
type EmbeddingRequest struct {
	Input string
	Model string
}

// EmbeddingResponse contains the embedding vector.
type EmbeddingResponse struct {
	Vector []float32
	Usage  Usage
}
