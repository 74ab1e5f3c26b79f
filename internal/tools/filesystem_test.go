package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileTool(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "docs", "notes.md"), []byte("# Notes\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := NewReadFileTool(root)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"existing", "docs/notes.md", "# Notes\n"},
		{"missing", "docs/none.md", "Error: file not found: docs/none.md"},
		{"traversal", "../etc/passwd", "Error: path outside project root: ../etc/passwd"},
		{"absolute", "/etc/passwd", "Error: absolute paths are not allowed: /etc/passwd"},
		{"empty", "", "Error: path is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tool.Execute(context.Background(), map[string]any{"path": tt.path})
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveUnderRoot_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := ResolveUnderRoot(root, "link")
	if !errors.Is(err, ErrPathOutsideRoot) {
		t.Fatalf("expected ErrPathOutsideRoot, got %v", err)
	}
}

func TestResolveUnderRoot_AllowsNested(t *testing.T) {
	root := t.TempDir()
	full, err := ResolveUnderRoot(root, "a/b/../c.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(full, filepath.Join("a", "c.txt")) {
		t.Errorf("unexpected path %q", full)
	}
}
