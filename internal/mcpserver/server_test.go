package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kortex/kortex/internal/skills"
	"github.com/kortex/kortex/internal/tools"
)

type failingTool struct{}

func (failingTool) Name() string               { return "broken" }
func (failingTool) Description() string        { return "Always fails" }
func (failingTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (failingTool) Execute(context.Context, map[string]any) (string, error) {
	return "", errors.New("disk on fire")
}

func newTestServer(t *testing.T) (*Server, *tools.Registry) {
	t.Helper()
	exec := tools.NewCommandExecutor(t.TempDir(), 5*time.Second, 0, nil)
	reg := tools.NewBuiltinRegistry(exec, nil)
	overlay := skills.NewOverlay(filepath.Join(t.TempDir(), "skills_config.json"))
	if err := overlay.SetEnabled("poet", false); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	catalog := skills.NewCatalogFromRecords([]skills.Record{
		{Name: "translator", Description: "Translates text", Location: "lang/translator"},
		{Name: "poet", Description: "Writes poems", Location: "art/poet"},
	}, "", overlay)
	return New("kortex", "test", reg, catalog), reg
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestToolNames(t *testing.T) {
	s, _ := newTestServer(t)
	want := []string{"run_bash", "read_file", "self_refactor", "list_skills"}
	if diff := cmp.Diff(want, s.ToolNames()); diff != "" {
		t.Errorf("tool names (-want +got):\n%s", diff)
	}
}

func TestToolHandlerRunsRegistryTool(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.toolHandler("run_bash")(context.Background(), call("run_bash", map[string]any{"command": "echo hi"}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %+v", res)
	}
	if got := resultText(t, res); got != "STDOUT: hi\nSTDERR: " {
		t.Errorf("text = %q", got)
	}

	res, _ = s.toolHandler("run_bash")(context.Background(), call("run_bash", map[string]any{"command": "mkfs /dev/sda"}))
	if got := resultText(t, res); !strings.HasPrefix(got, "Error: command blocked") {
		t.Errorf("blocked text = %q", got)
	}
}

func TestToolHandlerReportsFaults(t *testing.T) {
	s, reg := newTestServer(t)
	reg.Register(failingTool{})

	res, err := s.toolHandler("broken")(context.Background(), call("broken", nil))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError || resultText(t, res) != "disk on fire" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestListSkills(t *testing.T) {
	s, _ := newTestServer(t)

	for _, tt := range []struct {
		args map[string]any
		want []string
	}{
		{nil, []string{"translator"}},
		{map[string]any{"includeDisabled": true}, []string{"translator", "poet"}},
	} {
		res, err := s.listSkills(context.Background(), call("list_skills", tt.args))
		if err != nil {
			t.Fatalf("list_skills: %v", err)
		}
		var listing []skills.Listing
		if err := json.Unmarshal([]byte(resultText(t, res)), &listing); err != nil {
			t.Fatalf("decode: %v", err)
		}
		var names []string
		for _, l := range listing {
			names = append(names, l.Name)
		}
		if diff := cmp.Diff(tt.want, names); diff != "" {
			t.Errorf("names (-want +got):\n%s", diff)
		}
	}
}
