// Package teamconfig loads the workspace spawn policy and agent templates.
package teamconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	domain "agentteam/internal/domain/agentteam"

	"gopkg.in/yaml.v3"
)

// LoadPolicy reads the spawn policy file. A missing file returns (nil, nil):
// the workspace has no policy and every spawn is denied.
func LoadPolicy(path string) (*domain.SpawnPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read spawn policy %s: %w", path, err)
	}
	policy, err := ParsePolicy(raw)
	if err != nil {
		return nil, fmt.Errorf("parse spawn policy %s: %w", path, err)
	}
	return policy, nil
}

// ParsePolicy decodes and validates a YAML spawn policy.
func ParsePolicy(raw []byte) (*domain.SpawnPolicy, error) {
	var policy domain.SpawnPolicy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return nil, err
	}
	if err := validatePolicy(&policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

func validatePolicy(p *domain.SpawnPolicy) error {
	checkRole := func(field string, role domain.Role) error {
		if _, ok := domain.ParseRole(string(role)); !ok {
			return fmt.Errorf("%s: unknown role %q", field, role)
		}
		return nil
	}
	for parent, edge := range p.SpawnEdges {
		if err := checkRole("spawn_edges", parent); err != nil {
			return err
		}
		switch edge.Behavior {
		case "":
			edge.Behavior = domain.EdgeAllow
			p.SpawnEdges[parent] = edge
		case domain.EdgeAllow, domain.EdgeDeny, domain.EdgeRequestOnly:
		default:
			return fmt.Errorf("spawn_edges.%s: unknown behavior %q", parent, edge.Behavior)
		}
		for _, child := range edge.CanSpawn {
			if err := checkRole("spawn_edges."+string(parent)+".can_spawn", child); err != nil {
				return err
			}
		}
	}
	for role := range p.RequiredSkills {
		if err := checkRole("required_skills", role); err != nil {
			return err
		}
	}
	for role := range p.RoleDefaults {
		if err := checkRole("role_defaults", role); err != nil {
			return err
		}
	}
	for role := range p.RoleCapabilities {
		if err := checkRole("role_capabilities", role); err != nil {
			return err
		}
	}
	for _, role := range p.Approval.Roles {
		if err := checkRole("approval.roles", role); err != nil {
			return err
		}
	}
	for _, src := range p.Approval.Sources {
		if _, ok := domain.ParseSource(string(src)); !ok {
			return fmt.Errorf("approval.sources: unknown source %q", src)
		}
	}
	switch p.SkillSources.Mode {
	case "":
		p.SkillSources.Mode = domain.SkillSourceAny
	case domain.SkillSourceAny, domain.SkillSourceProjectOnly, domain.SkillSourceAllowlist:
	default:
		return fmt.Errorf("skill_sources.mode: unknown mode %q", p.SkillSources.Mode)
	}
	if pct := p.ChildBudgetPercent; pct != nil && (*pct < 0 || *pct > 100) {
		return fmt.Errorf("child_budget_percent_of_parent_remaining must be within [0,100], got %v", *pct)
	}
	if p.MaxAgents != nil && *p.MaxAgents < 0 {
		return fmt.Errorf("max_agents must not be negative")
	}
	if p.MaxConcurrent != nil && *p.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must not be negative")
	}
	return nil
}
