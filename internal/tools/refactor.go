package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// EvolutionLogPath is the changelog location relative to the project root.
const EvolutionLogPath = "docs/evolution/CHANGELOG.md"

// EvolutionLog is the append-only record of self modifications. Appends are
// not locked; concurrent writers interleave whole entries at best.
type EvolutionLog struct {
	path string
	now  func() time.Time
}

// NewEvolutionLog returns the log under root.
func NewEvolutionLog(root string) *EvolutionLog {
	return &EvolutionLog{
		path: filepath.Join(root, filepath.FromSlash(EvolutionLogPath)),
		now:  time.Now,
	}
}

// Path returns the absolute log file path.
func (l *EvolutionLog) Path() string { return l.path }

// Append records that file was rewritten for reason.
func (l *EvolutionLog) Append(ctx context.Context, file, reason string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create evolution log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open evolution log: %w", err)
	}
	defer f.Close()

	entry := fmt.Sprintf("\n## [EVOLUTION] %s\n- **File**: %s\n- **Reason**: %s\n",
		l.now().UTC().Format(time.RFC3339), file, reason)
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("append evolution log: %w", err)
	}
	slog.InfoContext(ctx, "Evolution recorded", "file", file)
	return nil
}

// SelfRefactorTool overwrites an existing file below the root and records the
// change in the evolution log. Only paths matching one of the writable globs
// may be touched.
type SelfRefactorTool struct {
	root     string
	writable []string
	log      *EvolutionLog
}

// NewSelfRefactorTool creates the self_refactor tool. An empty writable list
// allows every path below root.
func NewSelfRefactorTool(root string, writable []string, log *EvolutionLog) *SelfRefactorTool {
	if len(writable) == 0 {
		writable = []string{"**"}
	}
	return &SelfRefactorTool{root: root, writable: writable, log: log}
}

func (t *SelfRefactorTool) Name() string { return "self_refactor" }
func (t *SelfRefactorTool) Tier() int    { return TierWrite }

func (t *SelfRefactorTool) Description() string {
	return "Replace the full content of an existing project file to improve it, and record the reason in the evolution log."
}

func (t *SelfRefactorTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"explanation": map[string]any{
				"type":        "string",
				"description": "Why the change is needed",
			},
			"filePath": map[string]any{
				"type":        "string",
				"description": "Relative path of the file to change",
			},
			"newContent": map[string]any{
				"type":        "string",
				"description": "The complete new file content",
			},
		},
		"required": []string{"explanation", "filePath", "newContent"},
	}
}

func (t *SelfRefactorTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	explanation := GetString(params, "explanation", "")
	filePath := GetString(params, "filePath", "")
	newContent, ok := params["newContent"].(string)
	if filePath == "" {
		return "Error: filePath is required", nil
	}
	if !ok {
		return "Error: newContent is required", nil
	}

	full, err := ResolveUnderRoot(t.root, filePath)
	if err != nil {
		return fmt.Sprintf("Error: %v: %s", err, filePath), nil
	}
	rel := filepath.ToSlash(filepath.Clean(filePath))
	if !t.allowed(rel) {
		return fmt.Sprintf("Error: %s is not in the writable allowlist", rel), nil
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: file not found: %s", filePath), nil
		}
		return fmt.Sprintf("Error: %v", err), nil
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: %s is a directory", filePath), nil
	}

	if err := os.WriteFile(full, []byte(newContent), info.Mode().Perm()); err != nil {
		return fmt.Sprintf("Error writing file: %v", err), nil
	}
	if t.log != nil {
		if err := t.log.Append(ctx, rel, explanation); err != nil {
			return fmt.Sprintf("Error: file updated but %v", err), nil
		}
	}
	return fmt.Sprintf("Success: refactored %s and recorded the evolution.", rel), nil
}

func (t *SelfRefactorTool) allowed(rel string) bool {
	for _, pattern := range t.writable {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
