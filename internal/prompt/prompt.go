// Package prompt compiles the configured prompt templates once and renders them per request.
package prompt

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/hyperjump/groundchat/internal/config"
)

// Data is the value templates are executed against.
type Data struct {
	AssistantName string
	Question      string
	Context       string
	History       string
	Today         string
	Intent        string
}

// Template is a parsed prompt. A nil Template renders as "".
type Template struct {
	tmpl *template.Template
}

// Parse compiles text. Missing keys are an error at render time.
func Parse(name, text string) (*Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s: %w", name, err)
	}
	return &Template{tmpl: t}, nil
}

// Render executes the template with d.
func (t *Template) Render(d Data) (string, error) {
	if t == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", t.tmpl.Name(), err)
	}
	return buf.String(), nil
}

// Set is the compiled form of config.PromptSet.
type Set struct {
	System           *Template
	SystemUngrounded *Template
	User             *Template
	UserUngrounded   *Template
}

// CompileSet parses every template of ps, prefixing names with name.
func CompileSet(name string, ps config.PromptSet) (*Set, error) {
	var s Set
	var err error
	if s.System, err = Parse(name+".system", ps.System); err != nil {
		return nil, err
	}
	if s.SystemUngrounded, err = Parse(name+".system_ungrounded", ps.SystemUngrounded); err != nil {
		return nil, err
	}
	if s.User, err = Parse(name+".user", ps.User); err != nil {
		return nil, err
	}
	if s.UserUngrounded, err = Parse(name+".user_ungrounded", ps.UserUngrounded); err != nil {
		return nil, err
	}
	return &s, nil
}

// Pick returns the system and user templates for a grounded or ungrounded request.
func (s *Set) Pick(grounded bool) (system, user *Template) {
	if grounded {
		return s.System, s.User
	}
	return s.SystemUngrounded, s.UserUngrounded
}
