package tools

import (
	"fmt"
	"sort"

	"sageagent/tools/storage"
)

// Registry maps tool names to implementations
type Registry map[string]Tool

// NewRegistry creates a registry holding the file tools over the given store.
func NewRegistry(store storage.Store, opts Options) (*Registry, error) {
	registry := Registry{}
	for _, t := range []Tool{
		NewListDirectory(store, opts),
		NewReadFile(store, opts),
		NewReadMultipleFiles(store, opts),
	} {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return &registry, nil
}

// Register adds a tool, refusing to shadow an existing name.
func (r Registry) Register(tool Tool) error {
	if _, exists := r[tool.Name()]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name())
	}
	r[tool.Name()] = tool
	return nil
}

// GetTools returns all tools in the registry sorted by name
func (r *Registry) GetTools() []Tool {
	tools := make([]Tool, 0, len(*r))
	for _, tool := range *r {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// GetTool retrieves a tool by name from the registry
func (r Registry) GetTool(name string) (Tool, error) {
	tool, exists := r[name]
	if !exists {
		return nil, fmt.Errorf("tool %q not found in registry", name)
	}
	return tool, nil
}
