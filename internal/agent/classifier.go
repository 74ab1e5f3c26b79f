package agent

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/kortex/kortex/internal/memory"
	"github.com/kortex/kortex/internal/provider"
	"github.com/kortex/kortex/internal/skills"
)

const (
	classifierMemoryLimit = 5
	classifierSkillLimit  = 10

	skillsShortcut = "@skills"
	listSkills     = "list_skills"
)

var jsonObjectExpr = regexp.MustCompile(`\{[\s\S]*\}`)

var tracer = otel.Tracer("github.com/kortex/kortex/internal/agent")

// Generator is the part of the model gateway the agent needs.
type Generator interface {
	Generate(ctx context.Context, conversation []provider.Message, providerID, model string, tools []provider.ToolDefinition) (*provider.Generation, error)
}

// MemoryRecaller looks up memories relevant to a query.
type MemoryRecaller interface {
	Recall(ctx context.Context, query string, limit int) []memory.Record
}

// SkillFinder ranks catalog skills against a query.
type SkillFinder interface {
	FindRelevant(query string, limit int) []skills.Record
}

// Classifier turns one user input into an Action.
type Classifier struct {
	gen      Generator
	memory   MemoryRecaller
	skills   SkillFinder
	provider string
	model    string
}

// NewClassifier creates a classifier that asks providerID/model for the
// decision. memory and skills may be nil.
func NewClassifier(gen Generator, mem MemoryRecaller, sk SkillFinder, providerID, model string) *Classifier {
	return &Classifier{gen: gen, memory: mem, skills: sk, provider: providerID, model: model}
}

// Classify never fails: any model or parse problem yields a chat action
// carrying an apology.
func (c *Classifier) Classify(ctx context.Context, input string) Action {
	if strings.ToLower(strings.TrimSpace(input)) == skillsShortcut {
		return NewAction(SystemPayload{Command: listSkills}, "User requested skill list")
	}

	ctx, span := tracer.Start(ctx, "kortex.classify")
	defer span.End()

	memories, relevant := c.gatherContext(ctx, input)
	span.SetAttributes(
		attribute.Int("kortex.memories", len(memories)),
		attribute.Int("kortex.skills", len(relevant)),
	)

	gen, err := c.gen.Generate(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: classifierPrompt(memories, relevant)},
		{Role: provider.RoleUser, Content: input},
	}, c.provider, c.model, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "Classification failed", "error", err)
		return fallbackAction()
	}

	action, ok := parseAction(gen.Text)
	if !ok {
		slog.WarnContext(ctx, "Classifier output not parseable", "text_length", len(gen.Text))
		return action
	}
	span.SetAttributes(attribute.String("kortex.action", string(action.Kind)))
	return action
}

// gatherContext fetches memories and skills concurrently. A failing memory
// lookup is logged and treated as empty.
func (c *Classifier) gatherContext(ctx context.Context, input string) ([]memory.Record, []skills.Record) {
	var (
		memories []memory.Record
		relevant []skills.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if c.memory == nil {
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				slog.WarnContext(gctx, "Memory lookup failed", "error", r)
				memories = nil
			}
		}()
		memories = c.memory.Recall(gctx, input, classifierMemoryLimit)
		return nil
	})
	g.Go(func() error {
		if c.skills != nil {
			relevant = c.skills.FindRelevant(input, classifierSkillLimit)
		}
		return nil
	})
	_ = g.Wait()
	return memories, relevant
}

// parseAction extracts the outermost JSON object from text. On failure it
// returns the fallback action and false.
func parseAction(text string) (Action, bool) {
	match := jsonObjectExpr.FindString(text)
	if match == "" {
		return fallbackAction(), false
	}
	action, err := decodeAction([]byte(match))
	if err != nil {
		return fallbackAction(), false
	}
	return action, true
}

func fallbackAction() Action {
	return NewAction(ChatPayload{Response: classifierApology}, parseFailure)
}
