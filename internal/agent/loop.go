package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/kortex/kortex/internal/provider"
	"github.com/kortex/kortex/internal/timeline"
	"github.com/kortex/kortex/internal/tools"
)

// DefaultMaxSteps bounds the number of model calls per run.
const DefaultMaxSteps = 5

// RoleObservation marks tool results in a run trace. They are sent to the
// model as system messages.
const RoleObservation = "observation"

// RunStatus reports how a run ended.
type RunStatus string

const (
	RunCompleted  RunStatus = "completed"
	RunIncomplete RunStatus = "incomplete"
)

// Turn is one entry of the loop conversation.
type Turn struct {
	Role      string              `json:"role"`
	Content   string              `json:"content"`
	ToolCalls []provider.ToolCall `json:"tool_calls,omitempty"`
}

// RunResult is the outcome of Executor.Run.
type RunResult struct {
	Response string    `json:"response"`
	Steps    int       `json:"steps"`
	Status   RunStatus `json:"status"`
	Trace    []Turn    `json:"trace"`
}

// ToolSet is the tool registry the loop offers the model.
type ToolSet interface {
	Get(name string) (tools.Tool, bool)
	Definitions() []provider.ToolDefinition
	Execute(ctx context.Context, name string, params map[string]any) (string, error)
}

// SpanRecorder stores per-step timeline spans.
type SpanRecorder interface {
	AddSpan(sp *timeline.Span) error
}

// ExecutorOptions configures an Executor. Gateway and Tools are required.
type ExecutorOptions struct {
	Gateway  Generator
	Tools    ToolSet
	Provider string
	Model    string
	MaxSteps int
	Spans    SpanRecorder
	NewID    func() string
}

// Executor runs the bounded think/act/observe loop.
type Executor struct {
	gen      Generator
	tools    ToolSet
	provider string
	model    string
	maxSteps int
	spans    SpanRecorder
	newID    func() string

	stepCounter metric.Int64Counter
	toolCounter metric.Int64Counter
}

// NewExecutor creates a loop executor.
func NewExecutor(opts ExecutorOptions) *Executor {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	meter := otel.Meter("github.com/kortex/kortex/internal/agent")
	steps, _ := meter.Int64Counter("kortex.loop.steps", metric.WithDescription("Model calls made by the reasoning loop"))
	calls, _ := meter.Int64Counter("kortex.tool.calls", metric.WithDescription("Tool invocations made by the reasoning loop"))
	return &Executor{
		gen:         opts.Gateway,
		tools:       opts.Tools,
		provider:    opts.Provider,
		model:       opts.Model,
		maxSteps:    opts.MaxSteps,
		spans:       opts.Spans,
		newID:       opts.NewID,
		stepCounter: steps,
		toolCounter: calls,
	}
}

// MaxSteps returns the step budget.
func (e *Executor) MaxSteps() int { return e.maxSteps }

// Run works on task until the model answers without calling a tool or the
// step budget runs out. Tool failures become observations; only gateway
// errors are returned.
func (e *Executor) Run(ctx context.Context, task string) (RunResult, error) {
	ctx, span := tracer.Start(ctx, "kortex.loop")
	defer span.End()

	traceID := TraceIDFrom(ctx)
	conv := []Turn{
		{Role: provider.RoleSystem, Content: loopSystemPrompt},
		{Role: provider.RoleUser, Content: task},
	}
	defs := e.tools.Definitions()

	for step := 1; step <= e.maxSteps; step++ {
		gen, err := e.think(ctx, step, conv, defs, traceID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return RunResult{Steps: step, Status: RunIncomplete, Trace: conv}, fmt.Errorf("step %d: %w", step, err)
		}

		calls := extractToolCalls(gen, e.newID)
		if len(calls) == 0 {
			answer := gen.Text
			if strings.TrimSpace(answer) == "" {
				answer = taskConcluded
			}
			conv = append(conv, Turn{Role: provider.RoleAssistant, Content: answer})
			span.SetAttributes(attribute.Int("kortex.steps", step))
			return RunResult{Response: answer, Steps: step, Status: RunCompleted, Trace: conv}, nil
		}

		content := stripInlineCalls(gen.Text)
		if content == "" {
			content = executingPlaceholder
		}
		conv = append(conv, Turn{Role: provider.RoleAssistant, Content: content, ToolCalls: calls})

		for _, call := range calls {
			result := e.act(ctx, call, traceID)
			conv = append(conv, Turn{
				Role:    RoleObservation,
				Content: fmt.Sprintf("Result of [%s]:\n%s", call.Name, result),
			})
		}
	}

	slog.WarnContext(ctx, "Reasoning loop hit step budget", "max_steps", e.maxSteps)
	span.SetAttributes(attribute.Int("kortex.steps", e.maxSteps))
	return RunResult{Response: taskConcluded, Steps: e.maxSteps, Status: RunIncomplete, Trace: conv}, nil
}

func (e *Executor) think(ctx context.Context, step int, conv []Turn, defs []provider.ToolDefinition, traceID string) (*provider.Generation, error) {
	ctx, span := tracer.Start(ctx, "kortex.step")
	defer span.End()
	span.SetAttributes(attribute.Int("kortex.step", step))
	e.stepCounter.Add(ctx, 1)

	started := time.Now()
	gen, err := e.gen.Generate(ctx, toMessages(conv), e.provider, e.model, defs)
	ended := time.Now()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	e.recordSpan(traceID, timeline.SpanLLM, fmt.Sprintf("step %d", step), map[string]any{
		"model":         gen.Model,
		"duration_ms":   ended.Sub(started).Milliseconds(),
		"tool_calls":    len(gen.ToolCalls),
		"response_text": truncate(gen.Text, 500),
	}, started, ended)
	return gen, nil
}

// act runs one call and returns the observation text. It never fails.
func (e *Executor) act(ctx context.Context, call provider.ToolCall, traceID string) string {
	ctx, span := tracer.Start(ctx, "kortex.tool")
	defer span.End()
	tier := -1
	if t, ok := e.tools.Get(call.Name); ok {
		tier = tools.ToolTier(t)
	}
	span.SetAttributes(attribute.String("kortex.tool", call.Name), attribute.Int("kortex.tool.tier", tier))
	e.toolCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", call.Name)))

	started := time.Now()
	result := e.invoke(ctx, call)
	ended := time.Now()

	slog.DebugContext(ctx, "Tool executed", "name", call.Name, "tier", tier, "result_length", len(result))
	e.recordSpan(traceID, timeline.SpanTool, call.Name, map[string]any{
		"arguments":   call.Arguments,
		"duration_ms": ended.Sub(started).Milliseconds(),
		"result":      truncate(result, 500),
	}, started, ended)
	return result
}

func (e *Executor) invoke(ctx context.Context, call provider.ToolCall) string {
	if _, ok := e.tools.Get(call.Name); !ok {
		return "Error: tool not implemented: " + call.Name
	}
	params, err := parseArguments(call.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: invalid arguments for %s: %v", call.Name, err)
	}
	result, err := e.tools.Execute(ctx, call.Name, params)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

func (e *Executor) recordSpan(traceID, spanType, title string, meta map[string]any, started, ended time.Time) {
	if e.spans == nil || traceID == "" {
		return
	}
	content, _ := json.Marshal(meta)
	err := e.spans.AddSpan(&timeline.Span{
		TraceID:   traceID,
		SpanID:    e.newID(),
		SpanType:  spanType,
		Title:     title,
		Content:   string(content),
		StartedAt: started,
		EndedAt:   ended,
	})
	if err != nil {
		slog.Warn("Failed to record timeline span", "type", spanType, "error", err)
	}
}

// parseArguments decodes a JSON argument object. Empty input is an empty
// object.
func parseArguments(raw string) (map[string]any, error) {
	params := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

// toMessages renders the conversation for the gateway. Assistant turns carry
// only their text and observations go out as system messages.
func toMessages(conv []Turn) []provider.Message {
	msgs := make([]provider.Message, 0, len(conv))
	for _, t := range conv {
		role := t.Role
		if role == RoleObservation {
			role = provider.RoleSystem
		}
		msgs = append(msgs, provider.Message{Role: role, Content: t.Content})
	}
	return msgs
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
