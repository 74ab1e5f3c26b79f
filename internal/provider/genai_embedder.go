package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const genAIDefaultEmbedModel = "text-embedding-004"

// GenAIEmbedder generates embeddings through the Google GenAI SDK.
type GenAIEmbedder struct {
	client   *genai.Client
	model    string
	taskType string
}

// NewGenAIEmbedder creates a Gemini embedder. It never dials; the first
// network call happens in Embed.
func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, &ProviderError{Provider: "gemini", Hint: "set providers.gemini.apiKey or GOOGLE_AI_KEY for embeddings", Err: ErrMissingCredentials}
	}
	if model == "" {
		model = genAIDefaultEmbedModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIEmbedder{client: client, model: model, taskType: "SEMANTIC_SIMILARITY"}, nil
}

// Embed returns the embedding of a single text.
func (e *GenAIEmbedder) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	model := req.Model
	if model == "" {
		model = e.model
	}
	contents := []*genai.Content{
		genai.NewContentFromText(req.Input, genai.RoleUser),
	}
	result, err := e.client.Models.EmbedContent(ctx, model, contents, &genai.EmbedContentConfig{
		TaskType: e.taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return &EmbeddingResponse{Vector: result.Embeddings[0].Values}, nil
}
