package timeline

import (
	"time"
)

// Execution is one processed request: the classified action and its outcome.
type Execution struct {
	ID         int64     `json:"id"`
	TraceID    string    `json:"trace_id,omitempty"` // End-to-end trace identifier
	Timestamp  time.Time `json:"timestamp"`
	Input      string    `json:"input"`
	ActionType string    `json:"action_type"` // chat, skill, memory, system, agent
	Reasoning  string    `json:"reasoning,omitempty"`
	Result     string    `json:"result"`
	Success    bool      `json:"success"`
	DurationMs int64     `json:"duration_ms"`
}

// Span is one timed step inside an execution trace.
type Span struct {
	ID           int64     `json:"id"`
	TraceID      string    `json:"trace_id"`
	SpanID       string    `json:"span_id"`
	ParentSpanID string    `json:"parent_span_id,omitempty"`
	SpanType     string    `json:"span_type"` // LLM, TOOL
	Title        string    `json:"title"`
	Content      string    `json:"content,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	DurationMs   int64     `json:"duration_ms"`
}

const (
	SpanLLM  = "LLM"
	SpanTool = "TOOL"
)

const Schema = `
CREATE TABLE IF NOT EXISTS executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id TEXT,
	timestamp DATETIME NOT NULL,
	input TEXT NOT NULL,
	action_type TEXT NOT NULL,
	reasoning TEXT DEFAULT '',
	result TEXT DEFAULT '',
	success BOOLEAN NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_executions_timestamp ON executions(timestamp);
CREATE INDEX IF NOT EXISTS idx_executions_trace ON executions(trace_id);

CREATE TABLE IF NOT EXISTS spans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id TEXT NOT NULL,
	span_id TEXT NOT NULL,
	parent_span_id TEXT DEFAULT '',
	span_type TEXT NOT NULL,
	title TEXT DEFAULT '',
	content TEXT DEFAULT '',
	started_at DATETIME NOT NULL,
	ended_at DATETIME NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_spans_trace ON spans(trace_id);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
