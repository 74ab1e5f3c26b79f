package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Generation is the normalized result of one model call.
type Generation struct {
	Text      string
	ToolCalls []ToolCall
	Usage     *Usage
	Model     string
}

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	// DefaultProvider is used when Generate is called with an empty provider ID.
	DefaultProvider string
	// Resolve maps a provider ID to a backend. See ConfigResolver and StaticResolver.
	Resolve     func(providerID string) (LLMProvider, error)
	Embedder    Embedder
	EmbedModel  string
	MaxTokens   int
	Temperature float64
}

// Gateway is the single entry point for model calls. Every call is one round
// trip; errors are returned to the caller unchanged.
type Gateway struct {
	defaultProvider string
	resolve         func(providerID string) (LLMProvider, error)
	embedder        Embedder
	embedModel      string
	maxTokens       int
	temperature     float64
}

// NewGateway creates a gateway from opts.
func NewGateway(opts GatewayOptions) *Gateway {
	resolve := opts.Resolve
	if resolve == nil {
		resolve = StaticResolver(nil)
	}
	return &Gateway{
		defaultProvider: NormalizeProviderID(opts.DefaultProvider),
		resolve:         resolve,
		embedder:        opts.Embedder,
		embedModel:      opts.EmbedModel,
		maxTokens:       opts.MaxTokens,
		temperature:     opts.Temperature,
	}
}

// DefaultProvider returns the provider ID used when none is given.
func (g *Gateway) DefaultProvider() string {
	return g.defaultProvider
}

// Generate sends the conversation to the selected backend. An empty
// providerID selects the default provider, an empty model the backend's
// default model. Backends without native tool calling simply return text.
func (g *Gateway) Generate(ctx context.Context, conversation []Message, providerID, model string, tools []ToolDefinition) (*Generation, error) {
	if providerID == "" {
		providerID = g.defaultProvider
	}
	backend, err := g.resolve(providerID)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = backend.DefaultModel()
	}

	start := time.Now()
	resp, err := backend.Chat(ctx, &ChatRequest{
		Messages:    conversation,
		Tools:       tools,
		Model:       model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		slog.DebugContext(ctx, "Model call failed", "provider", providerID, "model", model, "error", err)
		return nil, err
	}

	out := &Generation{
		Text:      resp.Content,
		ToolCalls: resp.ToolCalls,
		Usage:     resp.Usage,
		Model:     resp.Model,
	}
	if out.Model == "" {
		out.Model = model
	}
	attrs := []any{"provider", providerID, "model", out.Model, "tool_calls", len(out.ToolCalls), "duration", time.Since(start)}
	if out.Usage != nil {
		attrs = append(attrs, "total_tokens", out.Usage.TotalTokens)
	}
	slog.DebugContext(ctx, "Model call completed", attrs...)
	return out, nil
}

// Embed returns the embedding vector for text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if g.embedder == nil {
		return nil, &ProviderError{Provider: "embedder", Hint: "no embedding backend configured", Err: ErrMissingCredentials}
	}
	resp, err := g.embedder.Embed(ctx, &EmbeddingRequest{Input: text, Model: g.embedModel})
	if err != nil {
		return nil, err
	}
	if len(resp.Vector) == 0 {
		return nil, fmt.Errorf("embedding backend returned an empty vector")
	}
	return resp.Vector, nil
}
