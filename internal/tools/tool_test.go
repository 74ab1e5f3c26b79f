package tools

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestBuiltinRegistry(t *testing.T) {
	exec := NewCommandExecutor(t.TempDir(), time.Second, 0, nil)
	r := NewBuiltinRegistry(exec, nil)

	var names []string
	for _, def := range r.Definitions() {
		if def.Type != "function" {
			t.Errorf("%s: type = %q", def.Function.Name, def.Type)
		}
		names = append(names, def.Function.Name)
	}
	if diff := cmp.Diff([]string{"run_bash", "read_file", "self_refactor"}, names); diff != "" {
		t.Errorf("tool order mismatch (-want +got):\n%s", diff)
	}

	tool, ok := r.Get("run_bash")
	if !ok || ToolTier(tool) != TierHighRisk {
		t.Error("run_bash should be registered as high risk")
	}
}

func TestRegistry_ReplaceKeepsOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(NewReadFileTool("a"))
	r.Register(NewRunBashTool(nil))
	r.Register(NewReadFileTool("b"))

	list := r.List()
	if len(list) != 2 || list[0].Name() != "read_file" {
		t.Fatalf("unexpected registry contents")
	}
	if list[0].(*ReadFileTool).root != "b" {
		t.Error("expected the later registration to win")
	}
}

func TestRegistry_ExecuteUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Execute(context.Background(), "nope", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestParamHelpers(t *testing.T) {
	params := map[string]any{"s": "x", "f": float64(3), "i": 4, "b": true}
	if GetString(params, "s", "") != "x" || GetString(params, "f", "d") != "d" {
		t.Error("GetString")
	}
	if GetInt(params, "f", 0) != 3 || GetInt(params, "i", 0) != 4 || GetInt(params, "s", 9) != 9 {
		t.Error("GetInt")
	}
	if !GetBool(params, "b", false) || GetBool(params, "missing", false) {
		t.Error("GetBool")
	}
}
