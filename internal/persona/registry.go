package persona

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnknownPersonaError is returned for any id outside the fixed table.
type UnknownPersonaError struct {
	ID string
}

func (e *UnknownPersonaError) Error() string {
	return fmt.Sprintf("persona: unknown persona %q", e.ID)
}

// Registry is an immutable id -> Persona table.
type Registry struct {
	order []string
	items map[string]Persona
}

// NewRegistry validates and indexes the supplied personas. Only the five
// known ids are accepted.
func NewRegistry(items ...Persona) (*Registry, error) {
	if len(items) == 0 {
		return nil, errors.New("persona: registry must not be empty")
	}
	r := &Registry{items: make(map[string]Persona, len(items))}
	for _, p := range items {
		if !known(p.ID) {
			return nil, &UnknownPersonaError{ID: p.ID}
		}
		if _, dup := r.items[p.ID]; dup {
			return nil, fmt.Errorf("persona: duplicate persona %q", p.ID)
		}
		if strings.TrimSpace(p.SystemPrompt) == "" || strings.TrimSpace(p.TextPrefix) == "" || strings.TrimSpace(p.DataPrefix) == "" {
			return nil, fmt.Errorf("persona: %q is missing framing text", p.ID)
		}
		if p.TextBudget <= 0 || p.DataBudget <= 0 {
			return nil, fmt.Errorf("persona: %q budgets must be positive", p.ID)
		}
		if p.HistoryWindow < 0 || p.MaxOutputTokens < 0 {
			return nil, fmt.Errorf("persona: %q window and token cap must not be negative", p.ID)
		}
		r.order = append(r.order, p.ID)
		r.items[p.ID] = p
	}
	return r, nil
}

// Lookup returns the persona registered under id.
func (r *Registry) Lookup(id string) (Persona, error) {
	p, ok := r.items[strings.TrimSpace(id)]
	if !ok {
		return Persona{}, &UnknownPersonaError{ID: id}
	}
	return p, nil
}

// List returns personas in registration order.
func (r *Registry) List() []Persona {
	out := make([]Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

func known(id string) bool {
	switch id {
	case Radiologist, MentalHealth, ReportExplainer, GeneralDoctor, Dietitian:
		return true
	}
	return false
}

// override is one entry of the optional persona YAML file. Zero values keep
// the built-in setting.
type override struct {
	ID                  string `yaml:"id"`
	Name                string `yaml:"name"`
	SystemPrompt        string `yaml:"system_prompt"`
	TextPrefix          string `yaml:"text_prefix"`
	DataPrefix          string `yaml:"data_prefix"`
	TextBudget          int    `yaml:"text_budget"`
	DataBudget          int    `yaml:"data_budget"`
	MaxOutputTokens     *int   `yaml:"max_output_tokens"`
	HistoryWindow       int    `yaml:"history_window"`
	DataIncludesHistory *bool  `yaml:"data_includes_history"`
}

type overrideFile struct {
	Personas []override `yaml:"personas"`
}

// LoadOverrides reads path and applies its entries on top of base. An empty
// path returns base unchanged.
func LoadOverrides(path string, base []Persona) ([]Persona, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	return ApplyOverrides(b, base)
}

// ApplyOverrides decodes raw YAML and merges it into a copy of base.
func ApplyOverrides(raw []byte, base []Persona) ([]Persona, error) {
	var file overrideFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("persona: parse overrides: %w", err)
	}

	out := append([]Persona(nil), base...)
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.ID] = i
	}

	for _, o := range file.Personas {
		i, ok := index[o.ID]
		if !ok {
			return nil, &UnknownPersonaError{ID: o.ID}
		}
		p := &out[i]
		if o.Name != "" {
			p.Name = o.Name
		}
		if o.SystemPrompt != "" {
			p.SystemPrompt = o.SystemPrompt
		}
		if o.TextPrefix != "" {
			p.TextPrefix = o.TextPrefix
		}
		if o.DataPrefix != "" {
			p.DataPrefix = o.DataPrefix
		}
		if o.TextBudget > 0 {
			p.TextBudget = o.TextBudget
		}
		if o.DataBudget > 0 {
			p.DataBudget = o.DataBudget
		}
		if o.MaxOutputTokens != nil {
			p.MaxOutputTokens = *o.MaxOutputTokens
		}
		if o.HistoryWindow > 0 {
			p.HistoryWindow = o.HistoryWindow
		}
		if o.DataIncludesHistory != nil {
			p.DataIncludesHistory = *o.DataIncludesHistory
		}
	}
	return out, nil
}
