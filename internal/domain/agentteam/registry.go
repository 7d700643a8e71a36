package agentteam

import (
	"fmt"
	"sort"
	"strings"
)

// Template is an immutable catalog entry used to create instances.
type Template struct {
	ID            string         `json:"templateID"`
	Role          Role           `json:"role"`
	SystemPrompt  string         `json:"-"`
	Skills        []SkillRef     `json:"skills,omitempty"`
	DefaultBudget BudgetLimit    `json:"defaultBudget"`
	Capabilities  CapabilitySpec `json:"capabilities"`
	// SkillHash digests the prompt skeleton and skill contents.
	SkillHash string `json:"skillHash,omitempty"`
	// SkillIssue records a skill problem found at load time.
	SkillIssue *SkillIssue `json:"skillIssue,omitempty"`
	// Source is the file the template was loaded from.
	Source string `json:"source,omitempty"`
}

// SkillIssue is a load-time skill problem reported when the template is spawned.
type SkillIssue struct {
	Code   DenyCode `json:"code"`
	Reason string   `json:"reason"`
}

// Registry is a read-only template catalog.
type Registry struct {
	byID  map[string]Template
	order []string
}

// NewRegistry validates templates and builds the catalog. A missing id or
// role, an unknown role, or a duplicate id is an error.
func NewRegistry(templates []Template) (*Registry, error) {
	r := &Registry{byID: make(map[string]Template, len(templates))}
	for _, tpl := range templates {
		tpl.ID = strings.TrimSpace(tpl.ID)
		if tpl.ID == "" {
			return nil, fmt.Errorf("template %s: templateID is required", tpl.Source)
		}
		role, ok := ParseRole(string(tpl.Role))
		if !ok {
			return nil, fmt.Errorf("template %s: unknown role %q", tpl.ID, tpl.Role)
		}
		tpl.Role = role
		if _, dup := r.byID[tpl.ID]; dup {
			return nil, fmt.Errorf("template %s: duplicate templateID", tpl.ID)
		}
		r.byID[tpl.ID] = tpl
		r.order = append(r.order, tpl.ID)
	}
	sort.Strings(r.order)
	return r, nil
}

// Lookup returns the template with the given id.
func (r *Registry) Lookup(templateID string) (Template, bool) {
	if r == nil {
		return Template{}, false
	}
	tpl, ok := r.byID[strings.TrimSpace(templateID)]
	return tpl, ok
}

// ForRole returns the first template, by id order, with the given role.
func (r *Registry) ForRole(role Role) (Template, bool) {
	if r == nil {
		return Template{}, false
	}
	for _, id := range r.order {
		if tpl := r.byID[id]; tpl.Role == role {
			return tpl, true
		}
	}
	return Template{}, false
}

// List returns all templates ordered by id.
func (r *Registry) List() []Template {
	if r == nil {
		return nil
	}
	out := make([]Template, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of templates.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
