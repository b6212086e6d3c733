package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"github.com/haulvox/haulvox/pkg/types"
)

// ErrUnknownTool is returned by [Registry.Execute] when no tool with the
// requested name has been registered.
var ErrUnknownTool = errors.New("tools: unknown tool")

// ErrInvalidArgs is returned by [Registry.Execute] when the JSON arguments do
// not satisfy the tool's parameter schema.
var ErrInvalidArgs = errors.New("tools: arguments do not match schema")

// entry pairs a registered tool with its compiled parameter schema.
type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry maps tool names to typed handlers. Parameter schemas are compiled
// and validated at registration time; [Execute] validates arguments against
// the compiled schema before invoking the handler, so handlers never see
// structurally invalid input.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool to the registry. It fails if the name is already
// taken, the tool has no handler, or its parameter schema does not compile.
func (r *Registry) Register(t Tool) error {
	if t.Definition.Name == "" {
		return fmt.Errorf("tools: register: tool name must not be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tools: register %q: handler must not be nil", t.Definition.Name)
	}

	raw, err := json.Marshal(t.Definition.Parameters)
	if err != nil {
		return fmt.Errorf("tools: register %q: encode parameter schema: %w", t.Definition.Name, err)
	}
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(raw)
	if err != nil {
		return fmt.Errorf("tools: register %q: compile parameter schema: %w", t.Definition.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[t.Definition.Name]; exists {
		return fmt.Errorf("tools: register %q: already registered", t.Definition.Name)
	}
	r.entries[t.Definition.Name] = entry{tool: t, schema: schema}
	return nil
}

// RegisterAll registers every tool in ts, stopping at the first failure.
func (r *Registry) RegisterAll(ts []Tool) error {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Definitions returns the LLM-facing definitions of all registered tools.
// The order is unspecified.
func (r *Registry) Definitions() []types.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]types.ToolDefinition, 0, len(r.entries))
	for _, e := range r.entries {
		defs = append(defs, e.tool.Definition)
	}
	return defs
}

// Execute validates args against the named tool's parameter schema and runs
// its handler. An empty args string is treated as the empty JSON object.
func (r *Registry) Execute(ctx context.Context, name, args string) (string, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	if args == "" {
		args = "{}"
	}
	result := e.schema.ValidateJSON([]byte(args))
	if !result.IsValid() {
		return "", fmt.Errorf("%w: tool %q: %v", ErrInvalidArgs, name, result.Errors)
	}

	return e.tool.Handler(ctx, args)
}
