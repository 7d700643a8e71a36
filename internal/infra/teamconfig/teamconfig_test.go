package teamconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	domain "agentteam/internal/domain/agentteam"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

const policyYAML = `
enabled: true
require_justification: true
max_agents: 8
max_concurrent: 4
child_budget_percent_of_parent_remaining: 50
cost_per_1k_tokens_usd: 0.002
mission_total_budget:
  max_tokens: 200000
  max_cost_usd: 1.5
spawn_edges:
  orchestrator:
    behavior: allow
    can_spawn: [worker, reviewer]
  worker:
    behavior: request_only
    can_spawn: [tester]
role_defaults:
  worker:
    max_tokens: 50000
    max_tool_calls: 40
approval:
  sources: [tool_call]
skill_sources:
  mode: project_only
`

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]byte(policyYAML))
	require.NoError(t, err)

	assert.True(t, p.Enabled)
	assert.True(t, p.RequireJustification)
	require.NotNil(t, p.MaxAgents)
	assert.Equal(t, 8, *p.MaxAgents)
	require.NotNil(t, p.ChildBudgetPercent)
	assert.Equal(t, 50.0, *p.ChildBudgetPercent)
	require.NotNil(t, p.MissionTotalBudget.MaxTokens)
	assert.Equal(t, int64(200000), *p.MissionTotalBudget.MaxTokens)
	require.NotNil(t, p.MissionTotalBudget.MaxCostUSD)
	assert.Equal(t, "1.5", p.MissionTotalBudget.MaxCostUSD.String())
	assert.Equal(t, domain.EdgeRequestOnly, p.SpawnEdges[domain.RoleWorker].Behavior)
	assert.Equal(t, []domain.Role{domain.RoleWorker, domain.RoleReviewer}, p.SpawnEdges[domain.RoleOrchestrator].CanSpawn)
	assert.Equal(t, int64(40), *p.RoleDefaults[domain.RoleWorker].MaxToolCalls)
	assert.Equal(t, []domain.Source{domain.SourceToolCall}, p.Approval.Sources)
	assert.Equal(t, domain.SkillSourceProjectOnly, p.SkillSources.Mode)
}

func TestParsePolicyRejectsUnknownValues(t *testing.T) {
	cases := map[string]string{
		"role":     "spawn_edges:\n  captain:\n    can_spawn: [worker]\n",
		"behavior": "spawn_edges:\n  worker:\n    behavior: maybe\n",
		"source":   "approval:\n  sources: [cron]\n",
		"mode":     "skill_sources:\n  mode: everywhere\n",
		"percent":  "child_budget_percent_of_parent_remaining: 120\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	p, err := LoadPolicy(filepath.Join(t.TempDir(), "spawn-policy.yaml"))
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLoadWorkspace(t *testing.T) {
	root := t.TempDir()
	policyPath := filepath.Join(root, ".agent-team", "spawn-policy.yaml")
	tplDir := filepath.Join(root, ".agent-team", "templates")
	writeFile(t, policyPath, policyYAML)
	writeFile(t, filepath.Join(root, "skills", "review.md"), "# Review\nCheck everything.\n")
	writeFile(t, filepath.Join(tplDir, "worker.yaml"), `
templateID: worker-default
role: worker
system_prompt: You write code.
skills:
  - path: skills/review.md
default_budget:
  max_steps: 30
capabilities:
  tool_denylist: [websearch]
  fs_scopes:
    write: [src]
`)
	writeFile(t, filepath.Join(tplDir, "reviewer.json"), `{"templateID": "reviewer-default", "role": "reviewer", "skills": [{"id": "code-review"}]}`)
	writeFile(t, filepath.Join(tplDir, "notes.txt"), "ignored")

	ws, err := Load(root, policyPath, tplDir, nil)
	require.NoError(t, err)
	require.NotNil(t, ws.Policy)
	assert.Equal(t, 2, ws.Templates.Len())

	worker, ok := ws.Templates.Lookup("worker-default")
	require.True(t, ok)
	assert.Nil(t, worker.SkillIssue)
	assert.True(t, strings.HasPrefix(worker.SkillHash, "sha256:"))
	assert.Equal(t, "You write code.", worker.SystemPrompt)
	assert.Equal(t, int64(30), *worker.DefaultBudget.MaxSteps)
	assert.Equal(t, []string{"src"}, worker.Capabilities.FSScopes.Write)

	reviewer, ok := ws.Templates.Lookup("reviewer-default")
	require.True(t, ok)
	require.NotNil(t, reviewer.SkillIssue)
	assert.Equal(t, domain.CodeSkillSourceDenied, reviewer.SkillIssue.Code)
}

func TestLoadTemplatesMalformedIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.yaml"), "templateID: x\nrole: pirate\n")
	_, err := LoadTemplates(dir, dir, domain.SkillSourcePolicy{})
	assert.Error(t, err)
}

func TestSkillHash(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "a.md"), "alpha")
	writeFile(t, filepath.Join(root, SkillsDir, "lint", "SKILL.md"), "lint skill")

	tpl := domain.Template{
		ID:           "t",
		Role:         domain.RoleWorker,
		SystemPrompt: "prompt",
		Skills:       []domain.SkillRef{{Path: "skills/a.md"}, {ID: "lint"}},
	}
	first, issue := SkillHash(root, tpl, domain.SkillSourcePolicy{})
	require.Nil(t, issue)

	tpl.Skills = []domain.SkillRef{{ID: "lint"}, {Path: "skills/a.md"}}
	second, issue := SkillHash(root, tpl, domain.SkillSourcePolicy{})
	require.Nil(t, issue)
	assert.Equal(t, first, second, "skill order does not change the hash")

	tpl.SystemPrompt = "other prompt"
	third, _ := SkillHash(root, tpl, domain.SkillSourcePolicy{})
	assert.NotEqual(t, first, third)

	pinned := domain.SkillSourcePolicy{PinnedHashes: map[string]string{"path:skills/a.md": "sha256:deadbeef"}}
	_, issue = SkillHash(root, tpl, pinned)
	require.NotNil(t, issue)
	assert.Equal(t, domain.CodeSkillHashMismatch, issue.Code)

	tpl.Skills = []domain.SkillRef{{Path: "skills/missing.md"}}
	_, issue = SkillHash(root, tpl, domain.SkillSourcePolicy{})
	require.NotNil(t, issue)
	assert.Equal(t, domain.CodeRequiredSkillMissing, issue.Code)

	allow := domain.SkillSourcePolicy{Mode: domain.SkillSourceAllowlist, AllowlistIDs: []string{"lint"}}
	tpl.Skills = []domain.SkillRef{{ID: "lint"}, {Path: "skills/a.md"}}
	_, issue = SkillHash(root, tpl, allow)
	require.NotNil(t, issue)
	assert.Equal(t, domain.CodeSkillSourceDenied, issue.Code)
}
