package tools

import "github.com/kortex/kortex/internal/memory"

// NewBuiltinRegistry returns the registry the reasoning loop offers the
// model: run_bash, read_file and self_refactor, in that order.
func NewBuiltinRegistry(exec *CommandExecutor, writable []string) *Registry {
	r := NewRegistry()
	r.Register(NewRunBashTool(exec))
	r.Register(NewReadFileTool(exec.Root))
	r.Register(NewSelfRefactorTool(exec.Root, writable, NewEvolutionLog(exec.Root)))
	return r
}

// RegisterMemoryTools adds remember and recall_memory backed by retriever.
func RegisterMemoryTools(r *Registry, retriever *memory.Retriever) {
	r.Register(NewRememberTool(retriever))
	r.Register(NewRecallTool(retriever))
}
