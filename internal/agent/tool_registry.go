package agent

import (
	"fmt"
	"sync"
)

// ToolRegistry manages an agent's callable tools with thread-safe
// registration and lookup. Registration is append-only from the agent's
// point of view: a schema persisted in the agent's state must resolve to a
// registered tool at load time.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewToolRegistry creates a new empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry by its name.
// If a tool with the same name already exists, it is replaced in place.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; !exists {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name and a boolean indicating if it was found.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Schemas returns the registered tools' schemas in registration order, for
// advertising to the LLM and for persisting into the agent's state blob.
func (r *ToolRegistry) Schemas() []ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		schemas = append(schemas, ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return schemas
}

// Link verifies that every schema in an agent's persisted function list
// resolves to a registered tool, returning an error naming the first miss.
func (r *ToolRegistry) Link(schemas []ToolSchema) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range schemas {
		if s.Name == "" {
			return fmt.Errorf("agent function list contains a schema with no name")
		}
		if _, ok := r.tools[s.Name]; !ok {
			return fmt.Errorf("function %q is in the agent's function list but not in the tool registry", s.Name)
		}
	}
	return nil
}
