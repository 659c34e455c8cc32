package scheduler

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/gammazero/toposort"
)

// BlueprintStep is one implementation task produced when a design completes.
// Template is rendered with {{.Subject}} set to the design's subject.
type BlueprintStep struct {
	ID       string
	Template string
	After    []string // IDs of steps that must be queued before this one
}

// DefaultBlueprint is the implementation plan emitted for every design.
func DefaultBlueprint() []BlueprintStep {
	return []BlueprintStep{
		{ID: "core", Template: "Implement: core modules for {{.Subject}}"},
		{ID: "entry", Template: "Implement: entry point for {{.Subject}}", After: []string{"core"}},
		{ID: "config", Template: "Implement: configuration and helpers for {{.Subject}}", After: []string{"core"}},
		{ID: "tests", Template: "Implement: unit tests for {{.Subject}}", After: []string{"core", "entry"}},
	}
}

type compiledStep struct {
	id   string
	raw  string
	tmpl *template.Template
}

// Blueprint is a validated, ordered set of implementation steps.
type Blueprint struct {
	steps []compiledStep
}

// CompileBlueprint validates step IDs and dependencies, rejects cycles and
// parses every template. The resulting order keeps declaration order except
// where a step must move after the steps it names in After.
func CompileBlueprint(steps []BlueprintStep) (*Blueprint, error) {
	if len(steps) == 0 {
		return &Blueprint{}, nil
	}

	byID := make(map[string]BlueprintStep, len(steps))
	for _, s := range steps {
		if s.ID == "" {
			return nil, fmt.Errorf("blueprint step with template %q has no id", s.Template)
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("blueprint step %q declared twice", s.ID)
		}
		byID[s.ID] = s
	}

	var edges []toposort.Edge
	for _, s := range steps {
		if len(s.After) == 0 {
			edges = append(edges, toposort.Edge{nil, s.ID})
			continue
		}
		for _, dep := range s.After {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("blueprint step %q depends on unknown step %q", s.ID, dep)
			}
			edges = append(edges, toposort.Edge{dep, s.ID})
		}
	}
	if _, err := toposort.Toposort(edges); err != nil {
		return nil, fmt.Errorf("blueprint contains cycle: %w", err)
	}

	ordered := stableOrder(steps)
	bp := &Blueprint{steps: make([]compiledStep, 0, len(ordered))}
	for _, s := range ordered {
		tmpl, err := template.New(s.ID).Option("missingkey=zero").Parse(s.Template)
		if err != nil {
			return nil, fmt.Errorf("blueprint step %q: %w", s.ID, err)
		}
		bp.steps = append(bp.steps, compiledStep{id: s.ID, raw: s.Template, tmpl: tmpl})
	}
	return bp, nil
}

// stableOrder repeatedly takes the first step, in declaration order, whose
// dependencies are already placed. The input is known to be acyclic.
func stableOrder(steps []BlueprintStep) []BlueprintStep {
	placed := make(map[string]bool, len(steps))
	out := make([]BlueprintStep, 0, len(steps))
	for len(out) < len(steps) {
		for _, s := range steps {
			if placed[s.ID] {
				continue
			}
			ready := true
			for _, dep := range s.After {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				placed[s.ID] = true
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Len returns the number of steps.
func (b *Blueprint) Len() int {
	if b == nil {
		return 0
	}
	return len(b.steps)
}

// Expand renders every step for the given subject, in order.
func (b *Blueprint) Expand(subject string) []string {
	if b == nil {
		return nil
	}
	data := struct{ Subject string }{Subject: subject}
	out := make([]string, 0, len(b.steps))
	for _, s := range b.steps {
		var buf bytes.Buffer
		if err := s.tmpl.Execute(&buf, data); err != nil {
			out = append(out, s.raw)
			continue
		}
		out = append(out, buf.String())
	}
	return out
}
