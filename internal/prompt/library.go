// Package prompt loads externally authored prompt text and renders it with
// text/template. Prompt authors write placeholders as {{ name }}; the library
// rewrites them into template field references before parsing, so the same
// prompt files can be shared with non-Go tooling.
package prompt

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Prompt is one named block of instruction text.
type Prompt struct {
	Name     string         `yaml:"name"`
	Text     string         `yaml:"text"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type promptFile struct {
	Prompts []Prompt `yaml:"prompts"`
}

// Library holds all prompts from one file, keyed by name.
type Library struct {
	prompts map[string]Prompt
}

// LoadFile reads and parses a prompt YAML file.
func LoadFile(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Library from raw YAML.
func Parse(data []byte) (*Library, error) {
	var pf promptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse prompt file: %w", err)
	}
	lib := &Library{prompts: make(map[string]Prompt, len(pf.Prompts))}
	for _, p := range pf.Prompts {
		if p.Name == "" {
			return nil, fmt.Errorf("prompt with empty name")
		}
		lib.prompts[p.Name] = p
	}
	return lib, nil
}

// Get returns the named prompt with its text unrendered.
func (l *Library) Get(name string) (Prompt, error) {
	p, ok := l.prompts[name]
	if !ok {
		return Prompt{}, fmt.Errorf("prompt %q not found", name)
	}
	return p, nil
}

// Render renders the named prompt with the given variables. Unknown
// placeholders are an error rather than silently rendering "<no value>".
func (l *Library) Render(name string, vars map[string]any) (string, error) {
	p, err := l.Get(name)
	if err != nil {
		return "", err
	}
	return render(p.Name, p.Text, vars)
}

// Join renders each named prompt and joins them with blank lines, in order.
func (l *Library) Join(vars map[string]any, names ...string) (string, error) {
	parts := make([]string, 0, len(names))
	for _, name := range names {
		text, err := l.Render(name, vars)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), nil
}

// placeholderPattern matches the authoring format: {{ name }}.
var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// bridgePlaceholders rewrites {{ name }} into the template field reference
// {{.name}} so text/template can render against a variable map.
func bridgePlaceholders(text string) string {
	return placeholderPattern.ReplaceAllString(text, "{{.${1}}}")
}

func render(name, text string, vars map[string]any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(bridgePlaceholders(text))
	if err != nil {
		return "", fmt.Errorf("parse prompt %q: %w", name, err)
	}
	if vars == nil {
		vars = map[string]any{}
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return sb.String(), nil
}
