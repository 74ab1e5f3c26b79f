// Package timeline persists the execution log and the per-request spans of
// the reasoning loop in SQLite.
package timeline

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type TimelineService struct {
	db *sql.DB
}

func NewTimelineService(dbPath string) (*TimelineService, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline db: %w", err)
	}
	svc, err := NewTimelineServiceDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return svc, nil
}

// NewTimelineServiceDB applies the schema to an already open database.
func NewTimelineServiceDB(db *sql.DB) (*TimelineService, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &TimelineService{db: db}, nil
}

func (s *TimelineService) DB() *sql.DB { return s.db }

func (s *TimelineService) Close() error {
	return s.db.Close()
}

func (s *TimelineService) AddExecution(e *Execution) error {
	res, err := s.db.Exec(`
	INSERT INTO executions (trace_id, timestamp, input, action_type, reasoning, result, success, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.TraceID,
		e.Timestamp.UTC(),
		e.Input,
		e.ActionType,
		e.Reasoning,
		e.Result,
		e.Success,
		e.DurationMs,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// ListExecutions returns the most recent executions, newest first. limit <= 0
// returns all of them.
func (s *TimelineService) ListExecutions(limit int) ([]Execution, error) {
	query := `SELECT id, COALESCE(trace_id,''), timestamp, input, action_type, COALESCE(reasoning,''), COALESCE(result,''), success, duration_ms FROM executions ORDER BY timestamp DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var e Execution
		if err := rows.Scan(
			&e.ID,
			&e.TraceID,
			&e.Timestamp,
			&e.Input,
			&e.ActionType,
			&e.Reasoning,
			&e.Result,
			&e.Success,
			&e.DurationMs,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountExecutions returns the total and failed execution counts.
func (s *TimelineService) CountExecutions() (total, failed int, err error) {
	err = s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0) FROM executions`).Scan(&total, &failed)
	return total, failed, err
}

func (s *TimelineService) AddSpan(sp *Span) error {
	if sp.DurationMs == 0 && !sp.EndedAt.IsZero() {
		sp.DurationMs = sp.EndedAt.Sub(sp.StartedAt).Milliseconds()
	}
	res, err := s.db.Exec(`
	INSERT INTO spans (trace_id, span_id, parent_span_id, span_type, title, content, started_at, ended_at, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sp.TraceID,
		sp.SpanID,
		sp.ParentSpanID,
		sp.SpanType,
		sp.Title,
		sp.Content,
		sp.StartedAt.UTC(),
		sp.EndedAt.UTC(),
		sp.DurationMs,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		sp.ID = id
	}
	return nil
}

// ListSpans returns the spans of one trace in start order.
func (s *TimelineService) ListSpans(traceID string) ([]Span, error) {
	rows, err := s.db.Query(`
	SELECT id, trace_id, span_id, COALESCE(parent_span_id,''), span_type, COALESCE(title,''), COALESCE(content,''), started_at, ended_at, duration_ms
	FROM spans WHERE trace_id = ? ORDER BY started_at ASC, id ASC
	`, traceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Span
	for rows.Next() {
		var sp Span
		if err := rows.Scan(
			&sp.ID,
			&sp.TraceID,
			&sp.SpanID,
			&sp.ParentSpanID,
			&sp.SpanType,
			&sp.Title,
			&sp.Content,
			&sp.StartedAt,
			&sp.EndedAt,
			&sp.DurationMs,
		); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *TimelineService) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *TimelineService) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	return err
}
