package agent

import (
	"regexp"
	"strings"

	"github.com/kortex/kortex/internal/provider"
)

var (
	// Some models write calls into the text instead of using native tool
	// calling, e.g. <function=run_bash>{"command": "ls"}</function>.
	inlineCallExpr = regexp.MustCompile(`<function.*?(\w+).*?(\{[\s\S]*?\}).*?/?>`)
	inlineTagExpr  = regexp.MustCompile(`</?function.*?/?>`)
)

// extractToolCalls returns the native calls followed by every inline call
// found in the text. Both sources are always scanned and nothing is
// deduplicated.
func extractToolCalls(gen *provider.Generation, newID func() string) []provider.ToolCall {
	calls := make([]provider.ToolCall, 0, len(gen.ToolCalls))
	for _, tc := range gen.ToolCalls {
		if tc.ID == "" {
			tc.ID = newID()
		}
		calls = append(calls, tc)
	}
	for _, m := range inlineCallExpr.FindAllStringSubmatch(gen.Text, -1) {
		calls = append(calls, provider.ToolCall{
			ID:        newID(),
			Name:      m[1],
			Arguments: m[2],
		})
	}
	return calls
}

// stripInlineCalls removes inline call markup from text.
func stripInlineCalls(text string) string {
	text = inlineCallExpr.ReplaceAllString(text, "")
	return strings.TrimSpace(inlineTagExpr.ReplaceAllString(text, ""))
}
