package observer

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kortex/kortex/internal/audit"
	"github.com/kortex/kortex/internal/provider"
	"github.com/kortex/kortex/internal/timeline"
)

func setupTimeline(t *testing.T) *timeline.TimelineService {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	svc, err := timeline.NewTimelineServiceDB(db)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

type stubGenerator struct {
	reply string
	err   error
	calls [][]provider.Message
	// targets records "provider/model" for each call.
	targets []string
}

func (s *stubGenerator) Generate(ctx context.Context, conv []provider.Message, providerID, model string, tools []provider.ToolDefinition) (*provider.Generation, error) {
	s.calls = append(s.calls, conv)
	s.targets = append(s.targets, providerID+"/"+model)
	if s.err != nil {
		return nil, s.err
	}
	return &provider.Generation{Text: s.reply}, nil
}

func logN(t *testing.T, o *Observer, outcomes ...bool) {
	t.Helper()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for i, ok := range outcomes {
		result := "fine"
		if !ok {
			result = "Error: " + strings.Repeat("x", 150)
		}
		err := o.LogExecution(context.Background(), Execution{
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Input:      "input",
			ActionType: "agent",
			Reasoning:  "because",
			Result:     result,
			Success:    ok,
		})
		if err != nil {
			t.Fatalf("LogExecution: %v", err)
		}
	}
}

func TestLogExecutionPersistsAndPublishes(t *testing.T) {
	store := setupTimeline(t)
	pub := audit.NewChannelPublisher(4)
	o := New(Config{}, store, pub, &stubGenerator{})

	err := o.LogExecution(context.Background(), Execution{
		TraceID:    "t-1",
		Input:      "list files",
		ActionType: "agent",
		Result:     "done",
		Success:    true,
		Duration:   1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	logs, err := o.Logs(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Input != "list files" || logs[0].Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected logs %+v", logs)
	}
	if logs[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be filled")
	}

	evt := <-pub.Events()
	if evt.TraceID != "t-1" || evt.ActionType != "agent" || evt.DurationMs != 1500 {
		t.Errorf("unexpected audit event %+v", evt)
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, audit.Event) error { return errors.New("down") }
func (failingPublisher) Close() error                               { return nil }

func TestLogExecutionIgnoresFeedFailure(t *testing.T) {
	o := New(Config{}, setupTimeline(t), failingPublisher{}, &stubGenerator{})
	if err := o.LogExecution(context.Background(), Execution{Input: "x", ActionType: "chat"}); err != nil {
		t.Fatalf("feed failure must not fail logging: %v", err)
	}
}

func TestAnalyzePerformance(t *testing.T) {
	gen := &stubGenerator{reply: "Tighten the classifier prompt."}
	o := New(Config{Provider: "groq", Model: "llama-3.3-70b-versatile"}, setupTimeline(t), nil, gen)

	got, err := o.AnalyzePerformance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != NoLogsMessage {
		t.Fatalf("expected %q, got %q", NoLogsMessage, got)
	}
	if len(gen.calls) != 0 {
		t.Fatal("no model call expected without logs")
	}
	if last, err := o.LastAnalysis(); err != nil || !last.IsZero() {
		t.Fatalf("expected no previous analysis, got %v, %v", last, err)
	}

	logN(t, o, true, false)
	got, err = o.AnalyzePerformance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "Tighten the classifier prompt." {
		t.Errorf("unexpected analysis %q", got)
	}
	user := gen.calls[0][1].Content
	if !strings.Contains(user, "[agent] User: input -> Reasoning: because -> Success: true\n[agent] User: input -> Reasoning: because -> Success: false") {
		t.Errorf("expected chronological summary, got %q", user)
	}
	if last, err := o.LastAnalysis(); err != nil || last.IsZero() {
		t.Errorf("expected analysis time to be recorded, got %v, %v", last, err)
	}
}

func TestOptimizationProposalsPreconditions(t *testing.T) {
	gen := &stubGenerator{reply: `["a"]`}
	o := New(Config{}, setupTimeline(t), nil, gen)

	logN(t, o, false, false, false, false)
	got, err := o.OptimizationProposals(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("fewer than five logs should give no proposals, got %v, %v", got, err)
	}

	o2 := New(Config{}, setupTimeline(t), nil, gen)
	logN(t, o2, true, true, true, true, true)
	got, err = o2.OptimizationProposals(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("no failures should give no proposals, got %v, %v", got, err)
	}
	if len(gen.calls) != 0 {
		t.Fatal("no model call expected")
	}
}

func TestOptimizationProposals(t *testing.T) {
	gen := &stubGenerator{reply: "Sure:\n[\"Retry the classifier\", \"Cap tool output\"]\nThanks"}
	o := New(Config{}, setupTimeline(t), nil, gen)
	logN(t, o, true, true, false, true, true)

	got, err := o.OptimizationProposals(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Retry the classifier", "Cap tool output"}, got); diff != "" {
		t.Errorf("proposals mismatch (-want +got):\n%s", diff)
	}

	user := gen.calls[0][1].Content
	want := "Recent errors:\nError in agent: Error: " + strings.Repeat("x", 93) + "..."
	if user != want {
		t.Errorf("failure summary = %q, want %q", user, want)
	}
}

func TestReviewsUseConfiguredModel(t *testing.T) {
	gen := &stubGenerator{reply: `["Cap tool output"]`}
	o := New(Config{Provider: "gemini", Model: "gemini-2.0-flash"}, setupTimeline(t), nil, gen)
	logN(t, o, true, true, false, true, true)

	if _, err := o.AnalyzePerformance(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.OptimizationProposals(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"gemini/gemini-2.0-flash", "gemini/gemini-2.0-flash"}
	if diff := cmp.Diff(want, gen.targets); diff != "" {
		t.Errorf("model targets mismatch (-want +got):\n%s", diff)
	}
}

func TestParseProposals(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`["one"]`, []string{"one"}},
		{"no array here", []string{}},
		{`[1, 2]`, []string{}},
		{`[not json]`, []string{}},
		{`null`, []string{}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, parseProposals(tt.in)); diff != "" {
			t.Errorf("parseProposals(%q) (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestProposalModelError(t *testing.T) {
	o := New(Config{}, setupTimeline(t), nil, &stubGenerator{err: errors.New("rate limited")})
	logN(t, o, false, false, false, false, false)
	if _, err := o.OptimizationProposals(context.Background()); err == nil {
		t.Fatal("expected model error to propagate")
	}
}
