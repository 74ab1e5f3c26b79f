package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/kortex/kortex/internal/memory"
	"github.com/kortex/kortex/internal/provider"
	"github.com/kortex/kortex/internal/skills"
	"github.com/kortex/kortex/internal/timeline"
	"github.com/kortex/kortex/internal/tools"
)

// mockProvider replays canned responses. Once they run out it answers "done".
type mockProvider struct {
	mu        sync.Mutex
	responses []provider.ChatResponse
	err       error
	calls     int
	requests  []*provider.ChatRequest
}

func (m *mockProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if m.calls >= len(m.responses) {
		m.calls++
		return &provider.ChatResponse{Content: "done"}, nil
	}
	resp := m.responses[m.calls]
	m.calls++
	return &resp, nil
}

func (m *mockProvider) DefaultModel() string { return "mock-model" }

func (m *mockProvider) lastRequest() *provider.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// newTestGateway routes both the default provider and "groq" to p.
func newTestGateway(p provider.LLMProvider) *provider.Gateway {
	return provider.NewGateway(provider.GatewayOptions{
		DefaultProvider: "mock",
		Resolve: provider.StaticResolver(map[string]provider.LLMProvider{
			"mock": p,
			"groq": p,
		}),
	})
}

// echoTool returns its "text" argument and remembers every call.
type echoTool struct {
	mu    sync.Mutex
	calls []string
}

func (t *echoTool) Name() string        { return "echo" }
func (t *echoTool) Description() string { return "Echo the text argument" }
func (t *echoTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
	}
}

func (t *echoTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	text := tools.GetString(params, "text", "")
	t.mu.Lock()
	t.calls = append(t.calls, text)
	t.mu.Unlock()
	return text, nil
}

func newEchoRegistry() (*tools.Registry, *echoTool) {
	echo := &echoTool{}
	r := tools.NewRegistry()
	r.Register(echo)
	return r, echo
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type spanSink struct {
	mu    sync.Mutex
	spans []timeline.Span
}

func (s *spanSink) AddSpan(sp *timeline.Span) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, *sp)
	return nil
}

type stubRecaller struct {
	records []memory.Record
	panics  bool
}

func (s *stubRecaller) Recall(ctx context.Context, query string, limit int) []memory.Record {
	if s.panics {
		panic("vector store exploded")
	}
	return s.records
}

type stubSkills struct {
	records []skills.Record
}

func (s *stubSkills) FindRelevant(query string, limit int) []skills.Record {
	return s.records
}

type fakeMemory struct {
	remembered []string
	queries    []string
	records    []memory.Record
}

func (f *fakeMemory) Remember(ctx context.Context, content string, metadata map[string]any) {
	f.remembered = append(f.remembered, content)
}

func (f *fakeMemory) Recall(ctx context.Context, query string, limit int) []memory.Record {
	f.queries = append(f.queries, query)
	return f.records
}
