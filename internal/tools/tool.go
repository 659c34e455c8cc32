// Package tools defines the capabilities agents can invoke and the standard
// toolbelt bound to a project root.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Tool is a named capability an agent can call with string arguments.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args map[string]string) (string, error)
}

// Func adapts a function to the Tool interface.
type Func struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, args map[string]string) (string, error)
}

func (f Func) Name() string        { return f.ToolName }
func (f Func) Description() string { return f.Desc }

func (f Func) Execute(ctx context.Context, args map[string]string) (string, error) {
	return f.Fn(ctx, args)
}

// Registry holds tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry containing tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Subset returns a registry with only the named tools. Unknown names are
// reported as an error.
func (r *Registry) Subset(names []string) (*Registry, error) {
	out := NewRegistry()
	for _, n := range names {
		t, ok := r.Get(n)
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", n)
		}
		out.Register(t)
	}
	return out, nil
}

// Describe renders one "- name: description" line per tool, sorted by name.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, n := range r.Names() {
		t, _ := r.Get(n)
		fmt.Fprintf(&b, "- %s: %s\n", n, t.Description())
	}
	return b.String()
}

// requireArg returns args[key] or an error naming the missing argument.
func requireArg(args map[string]string, key string) (string, error) {
	v, ok := args[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("missing argument %q", key)
	}
	return v, nil
}
