package agent

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Action
	}{
		{
			name: "chat",
			in:   `{"type":"chat","payload":{"response":"Hi!"},"reasoning":"greeting"}`,
			want: Action{Kind: ActionChat, Reasoning: "greeting", Payload: ChatPayload{Response: "Hi!"}},
		},
		{
			name: "skill",
			in:   `{"type":"skill","payload":{"skillName":"translator","query":"hola"},"reasoning":"r"}`,
			want: Action{Kind: ActionSkill, Reasoning: "r", Payload: SkillPayload{SkillName: "translator", Query: "hola"}},
		},
		{
			name: "memory",
			in:   `{"type":"memory","payload":{"operation":"remember","content":"I like tea"}}`,
			want: Action{Kind: ActionMemory, Payload: MemoryPayload{Operation: "remember", Content: "I like tea"}},
		},
		{
			name: "type is case-insensitive",
			in:   `{"type":" Agent ","payload":{"task":"list files"},"reasoning":"files"}`,
			want: Action{Kind: ActionAgent, Reasoning: "files", Payload: AgentPayload{Task: "list files"}},
		},
		{
			name: "missing payload",
			in:   `{"type":"system","reasoning":"r"}`,
			want: Action{Kind: ActionSystem, Reasoning: "r", Payload: SystemPayload{}},
		},
		{
			name: "non-string fields keep their JSON text",
			in:   `{"type":"chat","payload":{"response":42}}`,
			want: Action{Kind: ActionChat, Payload: ChatPayload{Response: "42"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeAction([]byte(tt.in))
			if err != nil {
				t.Fatalf("decodeAction: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("action mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeActionRejectsUnknownType(t *testing.T) {
	if _, err := decodeAction([]byte(`{"type":"dance","payload":{}}`)); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestDecodeActionKeepsKindForNonObjectPayload(t *testing.T) {
	tests := []struct {
		in   string
		want Action
	}{
		{`{"type":"chat","payload":"text","reasoning":"r"}`, NewAction(ChatPayload{}, "r")},
		{`{"type":"agent","payload":["list files"],"reasoning":"r"}`, NewAction(AgentPayload{}, "r")},
		{`{"type":"system","payload":7,"reasoning":"r"}`, NewAction(SystemPayload{}, "r")},
	}
	for _, tt := range tests {
		got, err := decodeAction([]byte(tt.in))
		if err != nil {
			t.Fatalf("decodeAction(%s): %v", tt.in, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("decodeAction(%s) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestActionMarshalJSON(t *testing.T) {
	a := NewAction(SkillPayload{SkillName: "translator", Query: "hola"}, "needs translation")
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{
		"type":      "skill",
		"reasoning": "needs translation",
		"payload":   map[string]any{"skillName": "translator", "query": "hola"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("json mismatch (-want +got):\n%s", diff)
	}
}
