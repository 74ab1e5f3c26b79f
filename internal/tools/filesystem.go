package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathOutsideRoot is returned when a tool path escapes the project root.
var ErrPathOutsideRoot = errors.New("path outside project root")

// ReadFileTool reads a file below the project root.
type ReadFileTool struct {
	root string
}

// NewReadFileTool creates the read_file tool.
func NewReadFileTool(root string) *ReadFileTool { return &ReadFileTool{root: root} }

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Tier() int    { return TierReadOnly }

func (t *ReadFileTool) Description() string {
	return "Read the contents of a file. The path is relative to the project root."
}

func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Relative path of the file to read",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	path := GetString(params, "path", "")
	if path == "" {
		return "Error: path is required", nil
	}

	full, err := ResolveUnderRoot(t.root, path)
	if err != nil {
		return fmt.Sprintf("Error: %v: %s", err, path), nil
	}

	content, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: file not found: %s", path), nil
		}
		if os.IsPermission(err) {
			return fmt.Sprintf("Error: permission denied: %s", path), nil
		}
		return fmt.Sprintf("Error reading file: %v", err), nil
	}

	return string(content), nil
}

// ResolveUnderRoot joins a relative path onto root and rejects absolute
// paths, traversal out of root and symlinks that point outside it.
func ResolveUnderRoot(root, rel string) (string, error) {
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "~") {
		return "", fmt.Errorf("absolute paths are not allowed")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	full := filepath.Join(absRoot, rel)
	if !isWithin(absRoot, full) {
		return "", ErrPathOutsideRoot
	}

	// A symlink inside root may still point elsewhere.
	if resolved, err := filepath.EvalSymlinks(full); err == nil {
		realRoot := absRoot
		if r, err := filepath.EvalSymlinks(absRoot); err == nil {
			realRoot = r
		}
		if !isWithin(realRoot, resolved) {
			return "", ErrPathOutsideRoot
		}
	}
	return full, nil
}

func isWithin(root, path string) bool {
	if root == "" {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}
