// Package observer records every processed request and asks the model to
// review recent behaviour.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/kortex/kortex/internal/audit"
	"github.com/kortex/kortex/internal/provider"
	"github.com/kortex/kortex/internal/timeline"
)

const (
	defaultWindow       = 50
	minProposalLogs     = 5
	failureResultCutoff = 100

	// NoLogsMessage is returned by AnalyzePerformance before anything ran.
	NoLogsMessage = "No logs to analyze."

	lastAnalysisSetting = "observer.last_analysis"
)

var proposalArrayExpr = regexp.MustCompile(`\[[\s\S]*\]`)

// Execution is one processed request.
type Execution struct {
	TraceID    string
	Timestamp  time.Time
	Input      string
	ActionType string
	Reasoning  string
	Result     string
	Success    bool
	Duration   time.Duration
}

// Store persists executions.
type Store interface {
	AddExecution(e *timeline.Execution) error
	ListExecutions(limit int) ([]timeline.Execution, error)
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// Generator is the part of the model gateway the observer needs.
type Generator interface {
	Generate(ctx context.Context, conversation []provider.Message, providerID, model string, tools []provider.ToolDefinition) (*provider.Generation, error)
}

// Config selects the model used for reviews and how many recent executions
// a review covers.
type Config struct {
	Provider string
	Model    string
	Window   int
}

// Observer logs executions and produces reviews of them.
type Observer struct {
	cfg       Config
	store     Store
	publisher audit.Publisher
	gen       Generator
}

// New creates an Observer. A nil publisher disables the audit feed.
func New(cfg Config, store Store, publisher audit.Publisher, gen Generator) *Observer {
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if publisher == nil {
		publisher = audit.Nop{}
	}
	return &Observer{cfg: cfg, store: store, publisher: publisher, gen: gen}
}

// LogExecution persists e and publishes it to the audit feed. Only the
// persistence error is returned; feed failures are logged.
func (o *Observer) LogExecution(ctx context.Context, e Execution) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	rec := &timeline.Execution{
		TraceID:    e.TraceID,
		Timestamp:  e.Timestamp,
		Input:      e.Input,
		ActionType: e.ActionType,
		Reasoning:  e.Reasoning,
		Result:     e.Result,
		Success:    e.Success,
		DurationMs: e.Duration.Milliseconds(),
	}
	if err := o.store.AddExecution(rec); err != nil {
		return fmt.Errorf("log execution: %w", err)
	}
	slog.DebugContext(ctx, "Execution logged", "action", e.ActionType, "success", e.Success)

	err := o.publisher.Publish(ctx, audit.Event{
		TraceID:    e.TraceID,
		Timestamp:  e.Timestamp,
		Input:      e.Input,
		ActionType: e.ActionType,
		Reasoning:  e.Reasoning,
		Result:     e.Result,
		Success:    e.Success,
		DurationMs: rec.DurationMs,
	})
	if err != nil {
		slog.WarnContext(ctx, "Audit publish failed", "error", err)
	}
	return nil
}

// Logs returns up to limit recent executions, newest first.
func (o *Observer) Logs(limit int) ([]Execution, error) {
	recs, err := o.store.ListExecutions(limit)
	if err != nil {
		return nil, err
	}
	out := make([]Execution, 0, len(recs))
	for _, r := range recs {
		out = append(out, Execution{
			TraceID:    r.TraceID,
			Timestamp:  r.Timestamp,
			Input:      r.Input,
			ActionType: r.ActionType,
			Reasoning:  r.Reasoning,
			Result:     r.Result,
			Success:    r.Success,
			Duration:   time.Duration(r.DurationMs) * time.Millisecond,
		})
	}
	return out, nil
}

// recent returns the review window in chronological order.
func (o *Observer) recent() ([]Execution, error) {
	logs, err := o.Logs(o.cfg.Window)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}

// AnalyzePerformance asks the model for recommendations based on the recent
// executions.
func (o *Observer) AnalyzePerformance(ctx context.Context) (string, error) {
	logs, err := o.recent()
	if err != nil {
		return "", err
	}
	if len(logs) == 0 {
		return NoLogsMessage, nil
	}

	lines := make([]string, 0, len(logs))
	for _, l := range logs {
		lines = append(lines, fmt.Sprintf("[%s] User: %s -> Reasoning: %s -> Success: %t",
			l.ActionType, l.Input, l.Reasoning, l.Success))
	}

	gen, err := o.gen.Generate(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: analysisPrompt},
		{Role: provider.RoleUser, Content: "Here are the recent logs:\n" + strings.Join(lines, "\n") + "\n\nWhat are your recommendations?"},
	}, o.cfg.Provider, o.cfg.Model, nil)
	if err != nil {
		return "", fmt.Errorf("performance analysis: %w", err)
	}

	if err := o.store.SetSetting(lastAnalysisSetting, time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.DebugContext(ctx, "Could not record analysis time", "error", err)
	}
	return gen.Text, nil
}

// LastAnalysis returns when AnalyzePerformance last produced a report, or the
// zero time if it never has.
func (o *Observer) LastAnalysis() (time.Time, error) {
	v, err := o.store.GetSetting(lastAnalysisSetting)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}

// OptimizationProposals asks the model for refactoring proposals when the
// window holds at least five executions and at least one failure. A reply
// without a parseable JSON string array yields no proposals.
func (o *Observer) OptimizationProposals(ctx context.Context) ([]string, error) {
	logs, err := o.recent()
	if err != nil {
		return nil, err
	}
	if len(logs) < minProposalLogs {
		return []string{}, nil
	}

	var failures []string
	for _, l := range logs {
		if !l.Success {
			failures = append(failures, fmt.Sprintf("Error in %s: %s...", l.ActionType, cut(l.Result, failureResultCutoff)))
		}
	}
	if len(failures) == 0 {
		return []string{}, nil
	}

	gen, err := o.gen.Generate(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: proposalPrompt},
		{Role: provider.RoleUser, Content: "Recent errors:\n" + strings.Join(failures, "\n")},
	}, o.cfg.Provider, o.cfg.Model, nil)
	if err != nil {
		return nil, fmt.Errorf("optimization proposals: %w", err)
	}
	return parseProposals(gen.Text), nil
}

func parseProposals(text string) []string {
	match := proposalArrayExpr.FindString(text)
	if match == "" {
		return []string{}
	}
	var proposals []string
	if err := json.Unmarshal([]byte(match), &proposals); err != nil {
		return []string{}
	}
	if proposals == nil {
		return []string{}
	}
	return proposals
}

func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

const analysisPrompt = `You are an AI performance supervisor. Analyze the Kortex execution logs and identify failure patterns or opportunities to improve the system prompts.`

const proposalPrompt = `You are an AI self-improvement specialist. Based on the errors provided, suggest a specific refactoring for one of the core files (internal/agent/loop.go, internal/provider/gateway.go, internal/tools/executor.go). Return only a JSON array of strings with the proposals.`
