package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kortex/kortex/internal/memory"
	"github.com/kortex/kortex/internal/provider"
	"github.com/kortex/kortex/internal/skills"
)

const (
	chatDefault     = "Understood."
	commandIgnored  = "Command ignored."
	skillNotFound   = "Skill not found."
	memoryStored    = "Noted. I will remember that."
	memoryEmpty     = "I don't have any memories about that."
	memoryIgnored   = "Memory operation ignored."
	unsupportedKind = "Unsupported action type."

	dispatchRecallLimit = 5
)

// LoopRunner runs the reasoning loop.
type LoopRunner interface {
	Run(ctx context.Context, task string) (RunResult, error)
}

// SkillStore is the catalog view the dispatcher needs.
type SkillStore interface {
	Get(name string) (skills.Record, bool)
	List(includeDisabled bool) []skills.Listing
}

// MemoryStore stores and recalls memories.
type MemoryStore interface {
	Remember(ctx context.Context, content string, metadata map[string]any)
	Recall(ctx context.Context, query string, limit int) []memory.Record
}

// Dispatcher executes a classified action.
type Dispatcher struct {
	loop   LoopRunner
	skills SkillStore
	memory MemoryStore
	gen    Generator
}

// NewDispatcher wires the dispatcher. skills and memory may be nil.
func NewDispatcher(loop LoopRunner, sk SkillStore, mem MemoryStore, gen Generator) *Dispatcher {
	return &Dispatcher{loop: loop, skills: sk, memory: mem, gen: gen}
}

// Execute runs action for the user's input and returns the reply text.
func (d *Dispatcher) Execute(ctx context.Context, action Action, input string) (string, error) {
	ctx, span := tracer.Start(ctx, "kortex.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("kortex.action", string(action.Kind)))

	out, err := d.execute(ctx, action, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (d *Dispatcher) execute(ctx context.Context, action Action, input string) (string, error) {
	switch p := action.Payload.(type) {
	case AgentPayload:
		res, err := d.loop.Run(ctx, input)
		if err != nil {
			return "", fmt.Errorf("reasoning loop: %w", err)
		}
		if res.Status == RunIncomplete {
			slog.InfoContext(ctx, "Reasoning loop ended without a final answer", "steps", res.Steps)
		}
		return res.Response, nil

	case ChatPayload:
		if p.Response == "" {
			return chatDefault, nil
		}
		return p.Response, nil

	case SystemPayload:
		if p.Command != listSkills {
			return commandIgnored, nil
		}
		n := 0
		if d.skills != nil {
			n = len(d.skills.List(false))
		}
		return fmt.Sprintf("I have %d specialists ready.", n), nil

	case SkillPayload:
		return d.runSkill(ctx, p, input)

	case MemoryPayload:
		return d.runMemory(ctx, p, input), nil

	default:
		return unsupportedKind, nil
	}
}

func (d *Dispatcher) runSkill(ctx context.Context, p SkillPayload, input string) (string, error) {
	if d.skills == nil {
		return skillNotFound, nil
	}
	skill, ok := d.skills.Get(p.SkillName)
	if !ok {
		return skillNotFound, nil
	}
	query := p.Query
	if query == "" {
		query = input
	}
	gen, err := d.gen.Generate(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: skill.Instructions},
		{Role: provider.RoleUser, Content: query},
	}, "", "", nil)
	if err != nil {
		return "", fmt.Errorf("skill %s: %w", skill.Name, err)
	}
	return gen.Text, nil
}

func (d *Dispatcher) runMemory(ctx context.Context, p MemoryPayload, input string) string {
	if d.memory == nil {
		return memoryIgnored
	}
	switch strings.ToLower(p.Operation) {
	case "remember", "store", "save":
		content := p.Content
		if content == "" {
			content = input
		}
		d.memory.Remember(ctx, content, map[string]any{"source": "conversation"})
		return memoryStored
	case "recall", "search", "retrieve":
		query := p.Query
		if query == "" {
			query = input
		}
		records := d.memory.Recall(ctx, query, dispatchRecallLimit)
		if len(records) == 0 {
			return memoryEmpty
		}
		var b strings.Builder
		b.WriteString("Here is what I remember:")
		for _, r := range records {
			b.WriteString("\n- ")
			b.WriteString(r.Content)
		}
		return b.String()
	default:
		return memoryIgnored
	}
}
