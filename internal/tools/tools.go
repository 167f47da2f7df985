// Package tools provides the tool catalog the agent dispatches against.
//
// Every tool is wrapped behind a uniform contract: a name, a JSON schema for
// its input, and an invoke function returning a string. Tool outputs are
// JSON-encoded artifacts or status envelopes; failures are returned as
// structured failure strings so the model can read and react to them, never
// as errors that abort the turn.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is one callable entry in the catalog.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema

	resolved *jsonschema.Resolved
	run      func(ctx context.Context, raw json.RawMessage) (string, error)
}

// New creates a tool with a typed handler. The input schema is inferred from
// In and used to validate arguments before the handler runs.
func New[In any](name, description string, run func(ctx context.Context, in In) (string, error)) (*Tool, error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for tool %s: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema for tool %s: %w", name, err)
	}

	return &Tool{
		Name:        name,
		Description: description,
		InputSchema: schema,
		resolved:    resolved,
		run: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var probe any
			if err := json.Unmarshal(raw, &probe); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}
			if err := resolved.Validate(probe); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			var in In
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}
			return run(ctx, in)
		},
	}, nil
}

// Registry is the tool catalog. It is populated at startup and read-only
// afterwards, so no locking is needed on the invoke path.
type Registry struct {
	tools map[string]*Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the catalog. Registering a duplicate name is a
// programming error and fails loudly.
func (r *Registry) Register(t *Tool) error {
	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Lookup returns the named tool, or nil if unknown.
func (r *Registry) Lookup(name string) *Tool {
	return r.tools[name]
}

// Tools returns the catalog sorted by name.
func (r *Registry) Tools() []*Tool {
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke runs a tool by name and always returns a string. Unknown tools,
// schema-invalid arguments, and handler failures come back as structured
// failure envelopes rather than errors, so the caller can fold the result
// into history unconditionally.
func (r *Registry) Invoke(ctx context.Context, name string, input any) string {
	t := r.Lookup(name)
	if t == nil {
		return Errorf("unknown tool: %s", name)
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return Errorf("encode arguments for %s: %v", name, err)
	}

	out, err := t.run(ctx, raw)
	if err != nil {
		return Errorf("%s: %v", name, err)
	}
	return out
}

// Errorf renders a structured failure envelope the model can read.
func Errorf(format string, args ...any) string {
	b, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   fmt.Sprintf(format, args...),
	})
	return string(b)
}
