package agentteam

import (
	"fmt"
	"strings"
)

// EdgeBehavior decides what happens when a parent role spawns a child role.
type EdgeBehavior string

const (
	EdgeAllow       EdgeBehavior = "allow"
	EdgeDeny        EdgeBehavior = "deny"
	EdgeRequestOnly EdgeBehavior = "request_only"
)

// SpawnEdge lists the roles a parent role may spawn.
type SpawnEdge struct {
	Behavior EdgeBehavior `json:"behavior" yaml:"behavior"`
	CanSpawn []Role       `json:"can_spawn" yaml:"can_spawn"`
}

// SkillSourceMode restricts where template skills may come from.
type SkillSourceMode string

const (
	SkillSourceAny         SkillSourceMode = "any"
	SkillSourceProjectOnly SkillSourceMode = "project_only"
	SkillSourceAllowlist   SkillSourceMode = "allowlist"
)

// SkillSourcePolicy governs template skill provenance.
type SkillSourcePolicy struct {
	Mode           SkillSourceMode `json:"mode" yaml:"mode"`
	AllowlistIDs   []string        `json:"allowlist_ids,omitempty" yaml:"allowlist_ids"`
	AllowlistPaths []string        `json:"allowlist_paths,omitempty" yaml:"allowlist_paths"`
	// PinnedHashes maps `id:<skill id>` or `path:<skill path>` to the only
	// content digest the skill may have.
	PinnedHashes map[string]string `json:"pinned_hashes,omitempty" yaml:"pinned_hashes"`
}

// ApprovalRules routes spawns to the human-review queue.
type ApprovalRules struct {
	Sources []Source `json:"sources,omitempty" yaml:"sources"`
	Roles   []Role   `json:"roles,omitempty" yaml:"roles"`
}

// SpawnPolicy is the workspace spawn configuration.
type SpawnPolicy struct {
	Enabled                   bool                    `json:"enabled" yaml:"enabled"`
	RequireJustification      bool                    `json:"require_justification" yaml:"require_justification"`
	MaxAgents                 *int                    `json:"max_agents,omitempty" yaml:"max_agents"`
	MaxConcurrent             *int                    `json:"max_concurrent,omitempty" yaml:"max_concurrent"`
	ChildBudgetPercent        *float64                `json:"child_budget_percent_of_parent_remaining,omitempty" yaml:"child_budget_percent_of_parent_remaining"`
	MissionTotalBudget        BudgetLimit             `json:"mission_total_budget" yaml:"mission_total_budget"`
	CostPer1KTokensUSD        *float64                `json:"cost_per_1k_tokens_usd,omitempty" yaml:"cost_per_1k_tokens_usd"`
	SpawnEdges                map[Role]SpawnEdge      `json:"spawn_edges,omitempty" yaml:"spawn_edges"`
	RequiredSkills            map[Role][]SkillRef     `json:"required_skills,omitempty" yaml:"required_skills"`
	RoleDefaults              map[Role]BudgetLimit    `json:"role_defaults,omitempty" yaml:"role_defaults"`
	RoleCapabilities          map[Role]CapabilitySpec `json:"role_capabilities,omitempty" yaml:"role_capabilities"`
	SkillSources              SkillSourcePolicy       `json:"skill_sources" yaml:"skill_sources"`
	Approval                  ApprovalRules           `json:"approval" yaml:"approval"`
	OverrideMayExceedTemplate bool                    `json:"override_may_exceed_template" yaml:"override_may_exceed_template"`
}

// PolicyInput is the state the policy is evaluated against. Counts are per mission.
type PolicyInput struct {
	Role          Role
	ParentRole    Role
	HasParent     bool
	Source        Source
	Justification string
	Template      Template
	TotalAgents   int
	RunningAgents int
}

// PolicyDecision is the outcome of SpawnPolicy.Evaluate.
type PolicyDecision struct {
	Allowed bool
	Code    DenyCode
	Reason  string
	// NeedsApproval is set on allowed decisions that must wait for a human.
	NeedsApproval bool
}

func denied(code DenyCode, format string, args ...any) PolicyDecision {
	return PolicyDecision{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Evaluate applies the policy checks in order, stopping at the first denial.
func (p *SpawnPolicy) Evaluate(in PolicyInput) PolicyDecision {
	if !p.Enabled {
		return denied(CodePolicyDisabled, "spawn policy is disabled")
	}
	if p.RequireJustification && strings.TrimSpace(in.Justification) == "" {
		return denied(CodeJustificationRequired, "spawn justification is required")
	}
	if p.MaxAgents != nil && in.TotalAgents >= *p.MaxAgents {
		return denied(CodeMaxAgentsExceeded, "max agents reached (%d)", *p.MaxAgents)
	}
	if p.MaxConcurrent != nil && in.RunningAgents >= *p.MaxConcurrent {
		return denied(CodeMaxConcurrentExceeded, "max concurrent agents reached (%d)", *p.MaxConcurrent)
	}

	needsApproval := false
	if in.HasParent {
		edge, ok := p.SpawnEdges[in.ParentRole]
		if !ok {
			return denied(CodeCapabilityDenied, "role `%s` has no spawn edges", in.ParentRole)
		}
		if edge.Behavior == EdgeDeny || !roleIn(edge.CanSpawn, in.Role) {
			return denied(CodeCapabilityDenied, "role `%s` may not spawn role `%s`", in.ParentRole, in.Role)
		}
		needsApproval = edge.Behavior == EdgeRequestOnly
	}

	for _, req := range p.RequiredSkills[in.Role] {
		if !templateHasSkill(in.Template, req) {
			return denied(CodeRequiredSkillMissing, "template `%s` lacks required skill %s", in.Template.ID, describeSkill(req))
		}
	}
	if issue := in.Template.SkillIssue; issue != nil {
		return denied(issue.Code, "%s", issue.Reason)
	}

	if sourceIn(p.Approval.Sources, in.Source) || roleIn(p.Approval.Roles, in.Role) {
		needsApproval = true
	}
	return PolicyDecision{Allowed: true, NeedsApproval: needsApproval}
}

// BudgetInput feeds ResolveBudget.
type BudgetInput struct {
	Template        Template
	Role            Role
	Override        *BudgetLimit
	ParentRemaining *BudgetLimit
	MissionHeadroom BudgetLimit
}

// ResolveBudget computes an instance's effective limit: role default, then
// template default, then the override, then the parent share, then mission
// headroom. Overrides only tighten unless OverrideMayExceedTemplate is set.
func (p *SpawnPolicy) ResolveBudget(in BudgetInput) BudgetLimit {
	limit := p.RoleDefaults[in.Role].Overlay(in.Template.DefaultBudget)
	if in.Override != nil {
		if p.OverrideMayExceedTemplate {
			limit = limit.Overlay(*in.Override)
		} else {
			limit = limit.Tighten(*in.Override)
		}
	}
	if in.ParentRemaining != nil {
		share := *in.ParentRemaining
		if p.ChildBudgetPercent != nil && *p.ChildBudgetPercent > 0 && *p.ChildBudgetPercent < 100 {
			share = share.Scale(*p.ChildBudgetPercent)
		}
		limit = limit.Tighten(share)
	}
	return limit.Tighten(in.MissionHeadroom)
}

// CapabilitiesFor returns the template capabilities, falling back to role defaults.
func (p *SpawnPolicy) CapabilitiesFor(tpl Template) CapabilitySpec {
	if !tpl.Capabilities.isZero() {
		return tpl.Capabilities
	}
	return p.RoleCapabilities[tpl.Role]
}

func (c CapabilitySpec) isZero() bool {
	return len(c.ToolAllowlist) == 0 && len(c.ToolDenylist) == 0 && c.FSScopes == nil &&
		c.NetScopes == nil && len(c.SecretsScopes) == 0 && c.GitCaps == nil
}

func roleIn(list []Role, role Role) bool {
	for _, r := range list {
		if r == role {
			return true
		}
	}
	return false
}

func sourceIn(list []Source, src Source) bool {
	for _, s := range list {
		if s == src {
			return true
		}
	}
	return false
}

func templateHasSkill(tpl Template, req SkillRef) bool {
	for _, skill := range tpl.Skills {
		if req.ID != "" && skill.ID == req.ID {
			return true
		}
		if req.Path != "" && skill.Path == req.Path {
			return true
		}
	}
	return false
}

func describeSkill(ref SkillRef) string {
	if ref.ID != "" {
		return "id:" + ref.ID
	}
	return "path:" + ref.Path
}
