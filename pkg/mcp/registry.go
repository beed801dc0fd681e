package mcp

import (
	"encoding/json"
	"fmt"
)

// Handler executes one tool call. The returned value is marshaled to
// indented JSON and wrapped in a text content item; a returned error
// becomes an isError tool result.
type Handler func(args json.RawMessage) (any, error)

// Tool pairs a declared schema with its handler
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     Handler
}

// Registry holds the named tools exposed by the server. Registration
// happens once at startup; lookups afterwards are read-only.
type Registry struct {
	tools  []Tool
	byName map[string]int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds a tool, replacing any previous tool of the same name
func (r *Registry) Register(t Tool) {
	if i, ok := r.byName[t.Name]; ok {
		r.tools[i] = t
		return
	}
	r.byName[t.Name] = len(r.tools)
	r.tools = append(r.tools, t)
}

// Schemas returns the wire form of every registered tool in
// registration order
func (r *Registry) Schemas() []ToolSchema {
	schemas := make([]ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		schemas = append(schemas, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return schemas
}

// Call dispatches a tool invocation by name
func (r *Registry) Call(name string, args json.RawMessage) (any, error) {
	i, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return r.tools[i].Handler(args)
}

// Has reports whether a tool is registered under name
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}
