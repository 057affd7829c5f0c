package toolregistry

import (
	"fmt"
	"sort"
	"sync"

	"calbot/internal/agent/ports"
)

// Registry implements ports.ToolRegistry with a mutex-guarded name map.
type Registry struct {
	tools map[string]ports.ToolExecutor
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]ports.ToolExecutor),
	}
}

func (r *Registry) Register(tool ports.ToolExecutor) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}
	name := tool.Metadata().Name
	if name == "" {
		return fmt.Errorf("cannot register tool without a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already exists: %s", name)
	}
	r.tools[name] = tool
	return nil
}

func (r *Registry) Get(name string) (ports.ToolExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tool, ok := r.tools[name]; ok {
		return tool, nil
	}
	return nil, fmt.Errorf("tool not found: %s", name)
}

// List returns all tool definitions sorted by name so the model sees a
// stable tool order across requests.
func (r *Registry) List() []ports.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ports.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

var _ ports.ToolRegistry = (*Registry)(nil)
