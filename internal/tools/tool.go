// Package tools provides the command executor, the tool framework and the
// tools the reasoning loop can call.
package tools

import (
	"context"
	"fmt"

	"github.com/kortex/kortex/internal/provider"
)

// Tool is the interface that all agent tools must implement.
type Tool interface {
	// Name returns the tool identifier used in function calls.
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any
	// Execute runs the tool with the given parameters. Failures the model
	// should see are returned as result text; err is reserved for faults
	// the caller must handle.
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// TieredTool is an optional interface for tools that declare a risk tier.
// Tier 0: read-only
// Tier 1: controlled writes
// Tier 2: arbitrary side effects
type TieredTool interface {
	Tool
	Tier() int
}

// Risk tier constants.
const (
	TierReadOnly = 0
	TierWrite    = 1
	TierHighRisk = 2
)

// ToolTier returns the risk tier for a tool.
// If the tool implements TieredTool, its Tier() is returned.
// Otherwise defaults to TierReadOnly.
func ToolTier(t Tool) int {
	if tt, ok := t.(TieredTool); ok {
		return tt.Tier()
	}
	return TierReadOnly
}

// Registry manages tool registration and execution. Tools are listed in
// registration order.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry, replacing any tool with the same name.
func (r *Registry) Register(tool Tool) {
	if _, exists := r.tools[tool.Name()]; !exists {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	result := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// Definitions returns the function-calling schema of every tool.
func (r *Registry) Definitions() []provider.ToolDefinition {
	result := make([]provider.ToolDefinition, 0, len(r.order))
	for _, tool := range r.List() {
		result = append(result, provider.ToolDefinition{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return result
}

// Execute runs a tool by name with the given parameters.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}
	return tool.Execute(ctx, params)
}

// GetString extracts a string parameter with a default value.
func GetString(params map[string]any, key string, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int parameter with a default value.
func GetInt(params map[string]any, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool parameter with a default value.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
