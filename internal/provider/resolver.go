package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kortex/kortex/internal/config"
)

// ErrMissingCredentials is wrapped by every ProviderError raised because a
// backend has no API key (or no endpoint) configured.
var ErrMissingCredentials = errors.New("missing credentials")

// providerAliases maps common aliases to canonical provider IDs.
var providerAliases = map[string]string{
	"google": "gemini",
	"llama":  "groq",
}

// NormalizeProviderID resolves aliases and normalizes the provider ID.
func NormalizeProviderID(id string) string {
	lower := strings.ToLower(strings.TrimSpace(id))
	if canonical, ok := providerAliases[lower]; ok {
		return canonical
	}
	return lower
}

// ConfigResolver returns a resolver that builds backends from cfg on every
// call, so credential changes are picked up and nothing is cached.
func ConfigResolver(cfg *config.Config) func(providerID string) (LLMProvider, error) {
	return func(providerID string) (LLMProvider, error) {
		return BuildProvider(cfg, providerID)
	}
}

// StaticResolver serves a fixed set of backends. Unknown IDs fail the same
// way an unconfigured backend does.
func StaticResolver(backends map[string]LLMProvider) func(providerID string) (LLMProvider, error) {
	return func(providerID string) (LLMProvider, error) {
		id := NormalizeProviderID(providerID)
		if p, ok := backends[id]; ok && p != nil {
			return p, nil
		}
		return nil, &ProviderError{Provider: id, Hint: "backend not registered", Err: ErrMissingCredentials}
	}
}

// BuildProvider constructs a backend from its ID. A backend lacking
// credentials fails here, before any request is attempted.
func BuildProvider(cfg *config.Config, providerID string) (LLMProvider, error) {
	id := NormalizeProviderID(providerID)
	model := ""
	if NormalizeProviderID(cfg.Model.Provider) == id {
		model = cfg.Model.Name
	}

	switch id {
	case "groq":
		key := cfg.Providers.Groq.APIKey
		base := cfg.Providers.Groq.APIBase
		if key == "" {
			return nil, missing("groq", "set providers.groq.apiKey in config or GROQ_API_KEY")
		}
		if base == "" {
			base = groqDefaultBase
		}
		return NewOpenAIProvider(key, base, model), nil

	case "gemini":
		key := cfg.Providers.Gemini.APIKey
		if key == "" {
			return nil, missing("gemini", "set providers.gemini.apiKey in config or GOOGLE_AI_KEY")
		}
		return NewGeminiProvider(key, cfg.Providers.Gemini.APIBase, model), nil

	case "openai":
		key := cfg.Providers.OpenAI.APIKey
		if key == "" {
			return nil, missing("openai", "set providers.openai.apiKey in config or OPENAI_API_KEY")
		}
		return NewOpenAIProvider(key, cfg.Providers.OpenAI.APIBase, model), nil

	case "openrouter":
		key := cfg.Providers.OpenRouter.APIKey
		base := cfg.Providers.OpenRouter.APIBase
		if key == "" {
			return nil, missing("openrouter", "set providers.openrouter.apiKey in config")
		}
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		return NewOpenAIProvider(key, base, model), nil

	case "deepseek":
		key := cfg.Providers.DeepSeek.APIKey
		base := cfg.Providers.DeepSeek.APIBase
		if key == "" {
			return nil, missing("deepseek", "set providers.deepseek.apiKey in config")
		}
		if base == "" {
			base = "https://api.deepseek.com/v1"
		}
		return NewOpenAIProvider(key, base, model), nil

	case "vllm":
		base := cfg.Providers.VLLM.APIBase
		if base == "" {
			return nil, missing("vllm", "set providers.vllm.apiBase in config (e.g. http://localhost:8000/v1)")
		}
		return NewOpenAIProvider(cfg.Providers.VLLM.APIKey, base, model), nil

	default:
		return nil, &ProviderError{Provider: id, Hint: fmt.Sprintf("unknown provider ID %q, supported: groq, gemini, openai, openrouter, deepseek, vllm", id)}
	}
}

// Default vector sizes of the embed providers' default models.
const (
	GeminiEmbedDimension = 768
	OpenAIEmbedDimension = 1536
)

// EmbedDimension returns memory.dimension, or the dimension of the selected
// embed provider's default model when it is unset. It returns 0 when the
// size cannot be known in advance (vllm, or a custom openai model).
func EmbedDimension(cfg *config.Config) int {
	if cfg.Memory.Dimension > 0 {
		return cfg.Memory.Dimension
	}
	switch NormalizeProviderID(cfg.Memory.EmbedProvider) {
	case "", "gemini":
		if cfg.Memory.EmbedModel == "" || cfg.Memory.EmbedModel == genAIDefaultEmbedModel {
			return GeminiEmbedDimension
		}
	case "openai":
		if cfg.Memory.EmbedModel == "" || cfg.Memory.EmbedModel == openAIDefaultEmbedModel {
			return OpenAIEmbedDimension
		}
	}
	return 0
}

// BuildEmbedder returns the embedding backend selected by memory.embedProvider.
func BuildEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch NormalizeProviderID(cfg.Memory.EmbedProvider) {
	case "", "gemini":
		return NewGenAIEmbedder(ctx, cfg.Providers.Gemini.APIKey, cfg.Memory.EmbedModel)
	case "openai":
		if cfg.Providers.OpenAI.APIKey == "" {
			return nil, missing("openai", "set providers.openai.apiKey for embeddings")
		}
		return NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, ""), nil
	case "vllm":
		if cfg.Providers.VLLM.APIBase == "" {
			return nil, missing("vllm", "set providers.vllm.apiBase for embeddings")
		}
		return NewOpenAIProvider(cfg.Providers.VLLM.APIKey, cfg.Providers.VLLM.APIBase, ""), nil
	default:
		return nil, &ProviderError{Provider: cfg.Memory.EmbedProvider, Hint: "embeddings are supported for gemini, openai and vllm"}
	}
}

func missing(provider, hint string) *ProviderError {
	return &ProviderError{Provider: provider, Hint: hint, Err: ErrMissingCredentials}
}

// ProviderError is returned when a provider cannot be constructed.
type ProviderError struct {
	Provider string
	Hint     string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Hint)
}

func (e *ProviderError) Unwrap() error { return e.Err }
