package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type stubProvider struct {
	resp     *ChatResponse
	err      error
	requests []*ChatRequest
}

func (s *stubProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubProvider) DefaultModel() string { return "stub-default" }

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &EmbeddingResponse{Vector: s.vec}, nil
}

func TestGatewayGenerateNormalizesResponse(t *testing.T) {
	stub := &stubProvider{resp: &ChatResponse{
		Content:   "hi",
		ToolCalls: []ToolCall{{ID: "1", Name: "run_bash", Arguments: `{"command":"ls"}`}},
		Usage:     &Usage{TotalTokens: 4},
	}}
	g := NewGateway(GatewayOptions{
		DefaultProvider: "groq",
		Resolve:         StaticResolver(map[string]LLMProvider{"groq": stub}),
		MaxTokens:       256,
		Temperature:     0.1,
	})

	conv := []Message{{Role: RoleUser, Content: "hello"}}
	gen, err := g.Generate(context.Background(), conv, "", "", nil)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	want := &Generation{
		Text:      "hi",
		ToolCalls: []ToolCall{{ID: "1", Name: "run_bash", Arguments: `{"command":"ls"}`}},
		Usage:     &Usage{TotalTokens: 4},
		Model:     "stub-default",
	}
	if diff := cmp.Diff(want, gen); diff != "" {
		t.Errorf("generation mismatch (-want +got):\n%s", diff)
	}
	req := stub.requests[0]
	if req.Model != "stub-default" || req.MaxTokens != 256 || req.Temperature != 0.1 {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestGatewayGeneratePropagatesErrorsWithoutRetry(t *testing.T) {
	boom := errors.New("boom")
	stub := &stubProvider{err: boom}
	g := NewGateway(GatewayOptions{Resolve: StaticResolver(map[string]LLMProvider{"openai": stub})})

	_, err := g.Generate(context.Background(), nil, "openai", "gpt-x", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if len(stub.requests) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(stub.requests))
	}
	if stub.requests[0].Model != "gpt-x" {
		t.Errorf("expected explicit model, got %s", stub.requests[0].Model)
	}
}

func TestGatewayGenerateUnconfiguredBackendFailsFast(t *testing.T) {
	g := NewGateway(GatewayOptions{DefaultProvider: "gemini"})
	if _, err := g.Generate(context.Background(), nil, "", "", nil); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestGatewayEmbed(t *testing.T) {
	g := NewGateway(GatewayOptions{Embedder: &stubEmbedder{vec: []float32{1, 0}}})
	vec, err := g.Embed(context.Background(), "x")
	if err != nil || len(vec) != 2 {
		t.Fatalf("unexpected embed result %v %v", vec, err)
	}

	g = NewGateway(GatewayOptions{})
	if _, err := g.Embed(context.Background(), "x"); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected missing embedder error, got %v", err)
	}

	g = NewGateway(GatewayOptions{Embedder: &stubEmbedder{vec: nil}})
	if _, err := g.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected empty vector error")
	}
}
