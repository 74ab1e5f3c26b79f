package agent

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kortex/kortex/internal/provider"
)

// Native and inline calls are both kept, even when they describe the same
// invocation.
func TestExtractToolCallsKeepsNativeAndInlineDuplicates(t *testing.T) {
	gen := &provider.Generation{
		Text: `Listing files. <function=run_bash>{"command": "ls"}</function>`,
		ToolCalls: []provider.ToolCall{
			{ID: "native-1", Name: "run_bash", Arguments: `{"command": "ls"}`},
		},
	}
	got := extractToolCalls(gen, sequentialIDs())
	want := []provider.ToolCall{
		{ID: "native-1", Name: "run_bash", Arguments: `{"command": "ls"}`},
		{ID: "id-1", Name: "run_bash", Arguments: `{"command": "ls"}`},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractToolCallsInlineForms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []provider.ToolCall
	}{
		{
			name: "none",
			text: "The answer is 4.",
			want: []provider.ToolCall{},
		},
		{
			name: "equals form",
			text: `<function=read_file>{"path": "go.mod"}</function>`,
			want: []provider.ToolCall{{ID: "id-1", Name: "read_file", Arguments: `{"path": "go.mod"}`}},
		},
		{
			name: "self-closing form",
			text: `<function(run_bash){"command": "pwd"}/>`,
			want: []provider.ToolCall{{ID: "id-1", Name: "run_bash", Arguments: `{"command": "pwd"}`}},
		},
		{
			name: "two calls",
			text: "<function=run_bash>{\"command\": \"ls\"}</function>\n<function=read_file>{\"path\": \"a.txt\"}</function>",
			want: []provider.ToolCall{
				{ID: "id-1", Name: "run_bash", Arguments: `{"command": "ls"}`},
				{ID: "id-2", Name: "read_file", Arguments: `{"path": "a.txt"}`},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractToolCalls(&provider.Generation{Text: tt.text}, sequentialIDs())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractToolCallsAssignsMissingNativeIDs(t *testing.T) {
	gen := &provider.Generation{ToolCalls: []provider.ToolCall{{Name: "read_file", Arguments: `{}`}}}
	got := extractToolCalls(gen, sequentialIDs())
	if len(got) != 1 || got[0].ID != "id-1" {
		t.Fatalf("unexpected calls: %+v", got)
	}
}

func TestStripInlineCalls(t *testing.T) {
	tests := map[string]string{
		`I'll check. <function=run_bash>{"command": "ls"}</function>`: "I'll check.",
		`<function=run_bash>{"command": "ls"}</function>`:             "",
		"plain text":                       "plain text",
		"stray <function=run_bash> tag":    "stray  tag",
	}
	for in, want := range tests {
		if got := stripInlineCalls(in); got != want {
			t.Errorf("stripInlineCalls(%q) = %q, want %q", in, got, want)
		}
	}
}
