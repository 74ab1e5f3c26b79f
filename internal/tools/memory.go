package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/kortex/kortex/internal/memory"
)

// RememberTool stores a piece of information in long-term memory.
type RememberTool struct {
	retriever *memory.Retriever
}

func NewRememberTool(retriever *memory.Retriever) *RememberTool {
	return &RememberTool{retriever: retriever}
}

func (t *RememberTool) Name() string { return "remember" }
func (t *RememberTool) Description() string {
	return "Store a piece of information in long-term memory for later recall."
}
func (t *RememberTool) Tier() int { return TierWrite }

func (t *RememberTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The information to remember",
			},
			"tags": map[string]any{
				"type":        "string",
				"description": "Optional comma-separated tags",
			},
		},
		"required": []string{"content"},
	}
}

func (t *RememberTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	content := GetString(params, "content", "")
	if content == "" {
		return "Error: content is required", nil
	}

	meta := map[string]any{"source": "tool"}
	if tags := splitTags(GetString(params, "tags", "")); len(tags) > 0 {
		meta["tags"] = tags
	}
	t.retriever.Remember(ctx, content, meta)
	return fmt.Sprintf("Remembered: %q", truncate(content, 80)), nil
}

// RecallTool searches long-term memory.
type RecallTool struct {
	retriever *memory.Retriever
}

func NewRecallTool(retriever *memory.Retriever) *RecallTool {
	return &RecallTool{retriever: retriever}
}

func (t *RecallTool) Name() string { return "recall_memory" }
func (t *RecallTool) Description() string {
	return "Search long-term memory for information relevant to a query."
}
func (t *RecallTool) Tier() int { return TierReadOnly }

func (t *RecallTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to look for",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results (default: 5)",
			},
		},
		"required": []string{"query"},
	}
}

func (t *RecallTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query := GetString(params, "query", "")
	if query == "" {
		return "Error: query is required", nil
	}

	records := t.retriever.Recall(ctx, query, GetInt(params, "limit", 5))
	if len(records) == 0 {
		return "No relevant memories found.", nil
	}
	return FormatRecords(records), nil
}

// FormatRecords renders recalled memories as a numbered list.
func FormatRecords(records []memory.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d relevant memories:\n\n", len(records))
	for i, rec := range records {
		if rec.Score > 0 {
			fmt.Fprintf(&sb, "%d. [score=%.2f] %s\n", i+1, rec.Score, rec.Content)
		} else {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, rec.Content)
		}
	}
	return sb.String()
}

func splitTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
