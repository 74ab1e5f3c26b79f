// Package mcpserver serves the agent tools and the skill listing over the
// Model Context Protocol on stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kortex/kortex/internal/skills"
	"github.com/kortex/kortex/internal/tools"
)

// SkillLister is the catalog view served by list_skills.
type SkillLister interface {
	List(includeDisabled bool) []skills.Listing
}

// Server wraps the mcp-go server.
type Server struct {
	mcpServer *server.MCPServer
	registry  *tools.Registry
	skills    SkillLister
	names     []string
}

// New registers every tool of registry plus list_skills.
func New(name, version string, registry *tools.Registry, sk SkillLister) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		registry:  registry,
		skills:    sk,
	}
	for _, t := range registry.List() {
		s.registerTool(t)
	}
	s.addTool(mcp.NewTool("list_skills",
		mcp.WithDescription("List the skills in the catalog with their enabled state."),
		mcp.WithBoolean("includeDisabled", mcp.Description("Also list disabled skills")),
	), s.listSkills)
	return s
}

// ToolNames returns the registered tool names in registration order.
func (s *Server) ToolNames() []string { return s.names }

// ServeStdio serves on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
	s.names = append(s.names, tool.Name)
}

func (s *Server) registerTool(t tools.Tool) {
	schema, err := json.Marshal(t.Parameters())
	if err != nil {
		slog.Warn("Skipping tool with invalid schema", "tool", t.Name(), "error", err)
		return
	}
	s.addTool(mcp.NewToolWithRawSchema(t.Name(), t.Description(), schema), s.toolHandler(t.Name()))
}

func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		out, err := s.registry.Execute(ctx, name, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		slog.DebugContext(ctx, "MCP tool executed", "name", name, "result_length", len(out))
		return mcp.NewToolResultText(out), nil
	}
}

func (s *Server) listSkills(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	listing := []skills.Listing{}
	if s.skills != nil {
		listing = s.skills.List(tools.GetBool(args, "includeDisabled", false))
	}
	data, err := json.MarshalIndent(listing, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
