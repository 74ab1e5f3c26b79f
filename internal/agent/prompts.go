package agent

import (
	"fmt"
	"strings"

	"github.com/kortex/kortex/internal/memory"
	"github.com/kortex/kortex/internal/skills"
)

const (
	classifierApology = "I'm sorry, I had trouble understanding your request."
	parseFailure      = "parse failure"

	executingPlaceholder = "Executing tools..."
	taskConcluded        = "Task concluded."
)

const loopSystemPrompt = `You are KORTEX, an autonomous agentic assistant.
Goal: solve the user's task as precisely as possible using the available tools.

Operating instructions:
1. **Think**: first, briefly explain your strategy before calling any tool.
2. **Act**: use the tools (run_bash, read_file, self_refactor) when needed. You may call several tools in one step.
3. **Observe**: analyze the results the system gives back.
4. **Conclude**: when the task is done, give the final answer directly, without further tool calls.

IMPORTANT: before reading a file, check that it exists by listing the directory with run_bash.`

func classifierPrompt(memories []memory.Record, relevant []skills.Record) string {
	var b strings.Builder
	b.WriteString("You are the processing core of the KORTEX assistant.\n")
	b.WriteString("Analyze the user's input and decide the best action.\n")
	if len(memories) > 0 {
		b.WriteString("\nRelevant memories:\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- %s\n", m.Content)
		}
	}
	b.WriteString("\nAvailable skills:\n")
	for _, s := range relevant {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Description)
	}
	b.WriteString(`
If the task is complex (involves files, the shell or several steps), use type "agent".
If it is plain conversation or something a skill covers, use the specific types.
Use type "memory" with operation "remember" (and "content") or "recall" (and "query") when the user asks you to store or look up personal information.

Return JSON only:
{
    "type": "chat" | "skill" | "memory" | "system" | "agent",
    "payload": { ... },
    "reasoning": "your explanation"
}

Payload shapes: chat {"response"}, skill {"skillName", "query"}, memory {"operation", "content", "query"}, system {"command"}, agent {"task"}.`)
	return b.String()
}
