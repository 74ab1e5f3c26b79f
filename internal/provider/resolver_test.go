package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/kortex/kortex/internal/config"
)

func TestNormalizeProviderID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"google", "gemini"},
		{"llama", "groq"},
		{"GROQ", "groq"},
		{"  OpenAI  ", "openai"},
		{"deepseek", "deepseek"},
	}
	for _, tt := range tests {
		if got := NormalizeProviderID(tt.input); got != tt.want {
			t.Errorf("NormalizeProviderID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBuildProviderMissingCredentials(t *testing.T) {
	cfg := config.DefaultConfig()
	for _, id := range []string{"groq", "gemini", "openai", "openrouter", "deepseek", "vllm"} {
		_, err := BuildProvider(cfg, id)
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("%s: expected ErrMissingCredentials, got %v", id, err)
		}
		var pe *ProviderError
		if !errors.As(err, &pe) || pe.Provider != id {
			t.Errorf("%s: expected ProviderError for provider, got %v", id, err)
		}
	}
}

func TestBuildProviderConfigured(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.Groq.APIKey = "gsk"
	cfg.Providers.Gemini.APIKey = "gem"
	cfg.Providers.VLLM.APIBase = "http://localhost:8000/v1"

	p, err := BuildProvider(cfg, "groq")
	if err != nil {
		t.Fatalf("groq: %v", err)
	}
	op, ok := p.(*OpenAIProvider)
	if !ok {
		t.Fatalf("expected OpenAIProvider, got %T", p)
	}
	if op.apiBase != groqDefaultBase {
		t.Errorf("expected groq base, got %s", op.apiBase)
	}
	if op.DefaultModel() != cfg.Model.Name {
		t.Errorf("expected configured model for default provider, got %s", op.DefaultModel())
	}

	if p, err := BuildProvider(cfg, "google"); err != nil {
		t.Fatalf("gemini alias: %v", err)
	} else if _, ok := p.(*GeminiProvider); !ok {
		t.Fatalf("expected GeminiProvider, got %T", p)
	}

	if _, err := BuildProvider(cfg, "vllm"); err != nil {
		t.Fatalf("vllm without key should work: %v", err)
	}
}

func TestBuildProviderUnknown(t *testing.T) {
	_, err := BuildProvider(config.DefaultConfig(), "nope")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if errors.Is(err, ErrMissingCredentials) {
		t.Error("unknown provider is not a credentials error")
	}
}

func TestBuildEmbedderMissingKey(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := BuildEmbedder(context.Background(), cfg); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestEmbedDimensionFollowsEmbedProvider(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		model     string
		dimension int
		want      int
	}{
		{name: "gemini default", provider: "gemini", want: GeminiEmbedDimension},
		{name: "unset provider", provider: "", want: GeminiEmbedDimension},
		{name: "openai default", provider: "openai", want: OpenAIEmbedDimension},
		{name: "openai named default", provider: "openai", model: "text-embedding-3-small", want: OpenAIEmbedDimension},
		{name: "openai custom model", provider: "openai", model: "text-embedding-3-large", want: 0},
		{name: "vllm", provider: "vllm", want: 0},
		{name: "explicit wins", provider: "openai", dimension: 384, want: 384},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Memory.EmbedProvider = tt.provider
			cfg.Memory.EmbedModel = tt.model
			cfg.Memory.Dimension = tt.dimension
			if got := EmbedDimension(cfg); got != tt.want {
				t.Errorf("EmbedDimension() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDefaultConfigLeavesEmbedModelToProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	if cfg.Memory.EmbedModel != "" || cfg.Memory.Dimension != 0 {
		t.Fatalf("expected provider-derived embedding defaults, got model=%q dimension=%d",
			cfg.Memory.EmbedModel, cfg.Memory.Dimension)
	}
}
