package agent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// ActionKind is the classified intent of a user turn.
type ActionKind string

const (
	ActionChat   ActionKind = "chat"
	ActionSkill  ActionKind = "skill"
	ActionMemory ActionKind = "memory"
	ActionSystem ActionKind = "system"
	ActionAgent  ActionKind = "agent"
)

// Payload is implemented by the per-kind payload types.
type Payload interface {
	kind() ActionKind
}

type ChatPayload struct {
	Response string `json:"response"`
}

type SkillPayload struct {
	SkillName string `json:"skillName"`
	Query     string `json:"query"`
}

// MemoryPayload carries a remember or recall request.
type MemoryPayload struct {
	Operation string `json:"operation"`
	Content   string `json:"content,omitempty"`
	Query     string `json:"query,omitempty"`
}

type SystemPayload struct {
	Command string `json:"command"`
}

type AgentPayload struct {
	Task string `json:"task,omitempty"`
}

func (ChatPayload) kind() ActionKind   { return ActionChat }
func (SkillPayload) kind() ActionKind  { return ActionSkill }
func (MemoryPayload) kind() ActionKind { return ActionMemory }
func (SystemPayload) kind() ActionKind { return ActionSystem }
func (AgentPayload) kind() ActionKind  { return ActionAgent }

// Action is produced once per user turn and consumed once by the dispatcher.
// Payload always matches Kind.
type Action struct {
	Kind      ActionKind
	Reasoning string
	Payload   Payload
}

// NewAction builds an action whose kind is taken from the payload.
func NewAction(p Payload, reasoning string) Action {
	return Action{Kind: p.kind(), Reasoning: reasoning, Payload: p}
}

type actionJSON struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Reasoning string          `json:"reasoning"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(actionJSON{Type: string(a.Kind), Payload: payload, Reasoning: a.Reasoning})
}

// decodeAction parses the classifier's JSON contract. Payload fields are
// read leniently: a non-string value is kept as its JSON text, and a payload
// that is not an object leaves the typed payload empty.
func decodeAction(data []byte) (Action, error) {
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Action{}, err
	}
	fields := map[string]any{}
	if len(raw.Payload) > 0 && string(raw.Payload) != "null" {
		if err := json.Unmarshal(raw.Payload, &fields); err != nil {
			slog.Debug("Action payload is not an object", "type", raw.Type, "error", err)
			fields = map[string]any{}
		}
	}
	str := func(key string) string { return asString(fields[key]) }

	var p Payload
	switch ActionKind(strings.ToLower(strings.TrimSpace(raw.Type))) {
	case ActionChat:
		p = ChatPayload{Response: str("response")}
	case ActionSkill:
		p = SkillPayload{SkillName: str("skillName"), Query: str("query")}
	case ActionMemory:
		p = MemoryPayload{Operation: str("operation"), Content: str("content"), Query: str("query")}
	case ActionSystem:
		p = SystemPayload{Command: str("command")}
	case ActionAgent:
		p = AgentPayload{Task: str("task")}
	default:
		return Action{}, fmt.Errorf("unknown action type %q", raw.Type)
	}
	return NewAction(p, raw.Reasoning), nil
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		data, _ := json.Marshal(s)
		return string(data)
	}
}
