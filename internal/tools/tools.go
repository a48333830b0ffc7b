// Package tools defines the tool registry and the uniform executor contract
// every tool implements. Per spec.md §9's design note, executors are plain
// functions over a shared ToolContext value rather than closures captured at
// registry-build time: the registry holds data (name, schema, function
// pointer), never config baked into a closure.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/silverfisk/rants/internal/transcript"
)

// Result is the uniform outcome of a tool execution.
type Result struct {
	OK     bool
	Output map[string]any
}

// ErrorResult builds a failed Result carrying {"error": message}, the shape
// spec.md §4.3 requires for tool_error outcomes.
func ErrorResult(message string) Result {
	return Result{OK: false, Output: map[string]any{"error": message}}
}

// OKResult builds a successful Result with the given output payload.
func OKResult(output map[string]any) Result {
	return Result{OK: true, Output: output}
}

// Executor runs a tool given its parameters and the shared context.
type Executor func(ctx context.Context, tc *Context, params map[string]any) Result

// Definition is a named, schema-tagged executable tool (spec.md §3
// ToolDefinition).
type Definition struct {
	Name        string
	Description string
	Schema      json.RawMessage
	Run         Executor

	compiled *jsonschema.Schema
}

// Registry maps tool name to definition. Names are unique within a
// registry; it is read-only after startup (spec.md §5).
type Registry struct {
	mu      sync.RWMutex
	order   []string
	tools   map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Definition)}
}

// Register adds a tool definition, compiling its schema so later parameter
// validation can reuse the compiled form. Re-registering a name replaces it
// in place but keeps its original position in Schemas() order.
func (r *Registry) Register(def Definition) error {
	compiled, err := compileSchema(def.Name, def.Schema)
	if err != nil {
		return fmt.Errorf("register tool %q: %w", def.Name, err)
	}
	def.compiled = compiled

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	cp := def
	r.tools[def.Name] = &cp
	return nil
}

func compileSchema(name string, schema json.RawMessage) (*jsonschema.Schema, error) {
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	compiler := jsonschema.NewCompiler()
	resourceName := name + ".json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile(resourceName)
}

// Get returns a tool definition by name.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// Schemas returns the registry's tools as transcript.ToolSchema pairs, in
// insertion order (spec.md §4.3 schemas()).
func (r *Registry) Schemas() []transcript.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]transcript.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		def := r.tools[name]
		out = append(out, transcript.ToolSchema{Name: def.Name, Schema: def.Schema})
	}
	return out
}

// Names returns the registered tool names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ValidateParams validates params against the named tool's compiled schema.
// Returns a descriptive error if the tool is unknown or validation fails.
func (r *Registry) ValidateParams(name string, params map[string]any) error {
	def, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("unknown tool: %s", name)
	}
	if def.compiled == nil {
		return nil
	}
	// jsonschema validates against decoded-JSON-shaped values (map[string]any,
	// []any, float64, ...), which params already is.
	if err := def.compiled.Validate(toAny(params)); err != nil {
		return err
	}
	return nil
}

// Execute validates params against the named tool's schema and, if valid,
// runs it. Unknown tools and schema failures both surface as an error
// Result rather than a Go error, matching spec.md §4.3's "every executor
// ... may fail with tool_error" contract.
func (r *Registry) Execute(ctx context.Context, tc *Context, name string, params map[string]any) Result {
	def, ok := r.Get(name)
	if !ok {
		return ErrorResult("unknown tool")
	}
	if err := r.ValidateParams(name, params); err != nil {
		return ErrorResult(fmt.Sprintf("invalid parameters for %s: %v", name, err))
	}
	if def.Run == nil {
		return ErrorResult(name + " has no executor configured")
	}
	return def.Run(ctx, tc, params)
}

func toAny(params map[string]any) any {
	if params == nil {
		return map[string]any{}
	}
	return any(params)
}
