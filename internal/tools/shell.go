package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RunBashTool exposes the command executor to the model.
type RunBashTool struct {
	exec *CommandExecutor
}

// NewRunBashTool creates the run_bash tool.
func NewRunBashTool(exec *CommandExecutor) *RunBashTool {
	return &RunBashTool{exec: exec}
}

func (t *RunBashTool) Name() string { return "run_bash" }
func (t *RunBashTool) Tier() int    { return TierHighRisk }

func (t *RunBashTool) Description() string {
	return "Run a bash command in the project root and return its stdout and stderr. Destructive commands are refused."
}

func (t *RunBashTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

func (t *RunBashTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	command := GetString(params, "command", "")
	if strings.TrimSpace(command) == "" {
		return "Error: command is required", nil
	}

	res, err := t.exec.Execute(ctx, command, 0)
	if err != nil {
		if errors.Is(err, ErrBlockedCommand) {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Error executing command: %v", err), nil
	}
	return FormatExecResult(res), nil
}

// FormatExecResult renders a result as the observation text the model sees.
func FormatExecResult(res ExecResult) string {
	var b strings.Builder
	b.WriteString("STDOUT: ")
	b.WriteString(res.Stdout)
	b.WriteString("\nSTDERR: ")
	b.WriteString(res.Stderr)
	if res.ExitCode != 0 {
		fmt.Fprintf(&b, "\nEXIT CODE: %d", res.ExitCode)
	}
	return b.String()
}
