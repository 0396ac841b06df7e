// Package template dispatches task execution by template name. Each
// template knows its required input fields, how to render the report
// artifact, and how to judge a rendered artifact well-formed.
package template

import (
	"fmt"
	"strings"
)

// Template is one named work shape.
type Template interface {
	Name() string
	// RequiredFields lists input keys that must be present and non-empty
	// at task creation. Type checking is deferred to Render so that a
	// malformed value fails the pipeline, not the create call.
	RequiredFields() []string
	Render(input map[string]any) (string, error)
	// Review checks a rendered artifact for well-formedness.
	Review(artifact string) error
}

// Registry maps template names to implementations.
type Registry struct {
	templates map[string]Template
}

// NewRegistry builds a registry from the given templates.
func NewRegistry(templates ...Template) *Registry {
	r := &Registry{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		r.templates[t.Name()] = t
	}
	return r
}

// DefaultRegistry returns the built-in template set.
func DefaultRegistry() *Registry {
	return NewRegistry(MeetingSummary{})
}

// Get looks up a template by name.
func (r *Registry) Get(name string) (Template, bool) {
	t, ok := r.templates[name]
	return t, ok
}

// ValidateInput checks that name is a known template and that every
// required field is present and non-empty.
func (r *Registry) ValidateInput(name string, input map[string]any) error {
	t, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("unsupported template_type: %s", name)
	}
	var missing []string
	for _, field := range t.RequiredFields() {
		v, ok := input[field]
		if !ok || v == nil || v == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required input fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
