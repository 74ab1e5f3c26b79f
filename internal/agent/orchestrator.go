package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/kortex/kortex/internal/observer"
	"github.com/kortex/kortex/internal/skills"
)

// ErrEmptyMessage is returned for a blank user message.
var ErrEmptyMessage = errors.New("message is required")

// ActionSummary is the part of an action exposed to callers.
type ActionSummary struct {
	Type      string `json:"type"`
	Reasoning string `json:"reasoning"`
}

// MessageResult is the reply to one user message.
type MessageResult struct {
	Success  bool           `json:"success"`
	Response string         `json:"response,omitempty"`
	Action   *ActionSummary `json:"action,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// SkillView is one row of the skill listing.
type SkillView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// OperationResult reports the outcome of a management call.
type OperationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// IntentClassifier turns input into an Action.
type IntentClassifier interface {
	Classify(ctx context.Context, input string) Action
}

// ActionExecutor executes a classified action.
type ActionExecutor interface {
	Execute(ctx context.Context, action Action, input string) (string, error)
}

// SkillToggler lists skills and flips their overlay state.
type SkillToggler interface {
	List(includeDisabled bool) []skills.Listing
	SetEnabled(name string, enabled bool) error
}

// ExecutionLogger records processed requests.
type ExecutionLogger interface {
	LogExecution(ctx context.Context, e observer.Execution) error
}

// Orchestrator is the entry point for every surface: it classifies,
// dispatches and records each message.
type Orchestrator struct {
	classifier IntentClassifier
	dispatcher ActionExecutor
	skills     SkillToggler
	log        ExecutionLogger
	now        func() time.Time
}

// NewOrchestrator wires the orchestrator. skills and log may be nil.
func NewOrchestrator(classifier IntentClassifier, dispatcher ActionExecutor, sk SkillToggler, log ExecutionLogger) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		dispatcher: dispatcher,
		skills:     sk,
		log:        log,
		now:        time.Now,
	}
}

// ProcessMessage classifies input and executes the resulting action. It
// never returns an error or panics: failures are reported in the result.
func (o *Orchestrator) ProcessMessage(ctx context.Context, input string) MessageResult {
	return o.process(ctx, input, func(ctx context.Context) Action {
		return o.classifier.Classify(ctx, input)
	})
}

// RunAgent executes input with the reasoning loop, skipping classification.
func (o *Orchestrator) RunAgent(ctx context.Context, input string) MessageResult {
	return o.process(ctx, input, func(context.Context) Action {
		return NewAction(AgentPayload{Task: input}, "agent mode requested")
	})
}

func (o *Orchestrator) process(ctx context.Context, input string, classify func(context.Context) Action) (res MessageResult) {
	ctx, traceID := ensureTraceID(ctx)
	started := o.now()
	var action Action

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Panic while processing message", "panic", r, "stack", string(debug.Stack()))
			res = MessageResult{Success: false, Error: fmt.Sprintf("internal error: %v", r)}
			if action.Kind != "" {
				res.Action = summarize(action)
			}
		}
		o.record(ctx, traceID, input, action, res, o.now().Sub(started))
	}()

	if strings.TrimSpace(input) == "" {
		return MessageResult{Success: false, Error: ErrEmptyMessage.Error()}
	}

	action = classify(ctx)
	slog.InfoContext(ctx, "Message classified", "action", action.Kind, "reasoning", action.Reasoning)

	reply, err := o.dispatcher.Execute(ctx, action, input)
	if err != nil {
		slog.ErrorContext(ctx, "Action failed", "action", action.Kind, "error", err)
		return MessageResult{Success: false, Action: summarize(action), Error: err.Error()}
	}
	return MessageResult{Success: true, Response: reply, Action: summarize(action)}
}

func (o *Orchestrator) record(ctx context.Context, traceID, input string, action Action, res MessageResult, elapsed time.Duration) {
	if o.log == nil {
		return
	}
	result := res.Response
	if !res.Success {
		result = res.Error
	}
	actionType := string(action.Kind)
	if actionType == "" {
		actionType = "none"
	}
	err := o.log.LogExecution(ctx, observer.Execution{
		TraceID:    traceID,
		Timestamp:  o.now(),
		Input:      input,
		ActionType: actionType,
		Reasoning:  action.Reasoning,
		Result:     result,
		Success:    res.Success,
		Duration:   elapsed,
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to log execution", "error", err)
	}
}

// ListSkills returns every indexed skill with its enabled state.
func (o *Orchestrator) ListSkills() []SkillView {
	if o.skills == nil {
		return []SkillView{}
	}
	listing := o.skills.List(true)
	out := make([]SkillView, 0, len(listing))
	for _, l := range listing {
		out = append(out, SkillView{Name: l.Name, Description: l.Description, Enabled: l.Enabled})
	}
	return out
}

// SetSkillEnabled enables or disables a skill.
func (o *Orchestrator) SetSkillEnabled(name string, enabled bool) OperationResult {
	if strings.TrimSpace(name) == "" {
		return OperationResult{Error: "skill name is required"}
	}
	if o.skills == nil {
		return OperationResult{Error: "skill catalog not configured"}
	}
	if err := o.skills.SetEnabled(name, enabled); err != nil {
		return OperationResult{Error: err.Error()}
	}
	slog.Info("Skill toggled", "name", name, "enabled", enabled)
	return OperationResult{Success: true}
}

func summarize(a Action) *ActionSummary {
	return &ActionSummary{Type: string(a.Kind), Reasoning: a.Reasoning}
}
