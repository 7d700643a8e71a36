package agentteam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func basePolicy() *SpawnPolicy {
	return &SpawnPolicy{
		Enabled:              true,
		RequireJustification: true,
		MaxAgents:            intPtr(3),
		MaxConcurrent:        intPtr(2),
		SpawnEdges: map[Role]SpawnEdge{
			RoleOrchestrator: {Behavior: EdgeAllow, CanSpawn: []Role{RoleWorker, RoleReviewer}},
			RoleWorker:       {Behavior: EdgeRequestOnly, CanSpawn: []Role{RoleTester}},
			RoleTester:       {Behavior: EdgeDeny},
		},
		RequiredSkills: map[Role][]SkillRef{RoleReviewer: {{ID: "code-review"}}},
	}
}

func TestPolicyEvaluateOrder(t *testing.T) {
	tpl := Template{ID: "worker-default", Role: RoleWorker}
	cases := []struct {
		name string
		mut  func(*SpawnPolicy, *PolicyInput)
		code DenyCode
	}{
		{"disabled", func(p *SpawnPolicy, _ *PolicyInput) { p.Enabled = false }, CodePolicyDisabled},
		{"justification", func(_ *SpawnPolicy, in *PolicyInput) { in.Justification = " " }, CodeJustificationRequired},
		{"max agents", func(_ *SpawnPolicy, in *PolicyInput) { in.TotalAgents = 3 }, CodeMaxAgentsExceeded},
		{"max concurrent", func(_ *SpawnPolicy, in *PolicyInput) { in.RunningAgents = 2 }, CodeMaxConcurrentExceeded},
		{"edge missing", func(_ *SpawnPolicy, in *PolicyInput) { in.ParentRole = RoleWatcher }, CodeCapabilityDenied},
		{"edge deny", func(_ *SpawnPolicy, in *PolicyInput) { in.ParentRole = RoleTester }, CodeCapabilityDenied},
		{"not spawnable", func(_ *SpawnPolicy, in *PolicyInput) { in.Role = RoleCommitter }, CodeCapabilityDenied},
		{"skill missing", func(_ *SpawnPolicy, in *PolicyInput) {
			in.Role = RoleReviewer
			in.Template = Template{ID: "rev", Role: RoleReviewer}
		}, CodeRequiredSkillMissing},
		{"skill source", func(_ *SpawnPolicy, in *PolicyInput) {
			in.Template.SkillIssue = &SkillIssue{Code: CodeSkillSourceDenied, Reason: "skill source denied: not present in allowlist"}
		}, CodeSkillSourceDenied},
		{"pinned hash", func(_ *SpawnPolicy, in *PolicyInput) {
			in.Template.SkillIssue = &SkillIssue{Code: CodeSkillHashMismatch, Reason: "pinned hash mismatch for skill reference"}
		}, CodeSkillHashMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := basePolicy()
			in := PolicyInput{
				Role: RoleWorker, ParentRole: RoleOrchestrator, HasParent: true,
				Source: SourceToolCall, Justification: "split work", Template: tpl,
			}
			tc.mut(p, &in)
			d := p.Evaluate(in)
			require.False(t, d.Allowed)
			assert.Equal(t, tc.code, d.Code)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestPolicyApprovalRouting(t *testing.T) {
	p := basePolicy()
	d := p.Evaluate(PolicyInput{Role: RoleTester, ParentRole: RoleWorker, HasParent: true, Justification: "x", Template: Template{ID: "t", Role: RoleTester}})
	require.True(t, d.Allowed)
	assert.True(t, d.NeedsApproval)

	d = p.Evaluate(PolicyInput{Role: RoleOrchestrator, Source: SourceUIAction, Justification: "x", Template: Template{ID: "o", Role: RoleOrchestrator}})
	require.True(t, d.Allowed)
	assert.False(t, d.NeedsApproval)

	p.Approval.Sources = []Source{SourceUIAction}
	d = p.Evaluate(PolicyInput{Role: RoleOrchestrator, Source: SourceUIAction, Justification: "x", Template: Template{ID: "o", Role: RoleOrchestrator}})
	assert.True(t, d.NeedsApproval)
}

func TestResolveBudget(t *testing.T) {
	pct := 50.0
	p := &SpawnPolicy{
		ChildBudgetPercent: &pct,
		RoleDefaults:       map[Role]BudgetLimit{RoleWorker: {MaxSteps: Int64(40), MaxTokens: Int64(9000)}},
	}
	tpl := Template{ID: "w", Role: RoleWorker, DefaultBudget: BudgetLimit{MaxTokens: Int64(8000), MaxToolCalls: Int64(50)}}

	got := p.ResolveBudget(BudgetInput{
		Template:        tpl,
		Role:            RoleWorker,
		Override:        &BudgetLimit{MaxToolCalls: Int64(10), MaxTokens: Int64(20000)},
		MissionHeadroom: BudgetLimit{MaxTokens: Int64(6000)},
	})
	assert.Equal(t, int64(6000), *got.MaxTokens)
	assert.Equal(t, int64(10), *got.MaxToolCalls)
	assert.Equal(t, int64(40), *got.MaxSteps)

	p.OverrideMayExceedTemplate = true
	got = p.ResolveBudget(BudgetInput{
		Template:        tpl,
		Role:            RoleWorker,
		Override:        &BudgetLimit{MaxToolCalls: Int64(80)},
		ParentRemaining: &BudgetLimit{MaxToolCalls: Int64(100)},
	})
	assert.Equal(t, int64(50), *got.MaxToolCalls, "capped at half the parent's remaining")
	assert.Equal(t, int64(8000), *got.MaxTokens)
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry([]Template{
		{ID: "worker-b", Role: "Worker"},
		{ID: "worker-a", Role: RoleWorker},
		{ID: "lead", Role: RoleOrchestrator},
	})
	require.NoError(t, err)
	tpl, ok := reg.ForRole(RoleWorker)
	require.True(t, ok)
	assert.Equal(t, "worker-a", tpl.ID)
	b, _ := reg.Lookup("worker-b")
	assert.Equal(t, RoleWorker, b.Role)
	assert.Len(t, reg.List(), 3)

	_, err = NewRegistry([]Template{{ID: "x", Role: "wizard"}})
	assert.Error(t, err)
	_, err = NewRegistry([]Template{{ID: "x", Role: RoleWorker}, {ID: "x", Role: RoleWorker}})
	assert.Error(t, err)
	_, err = NewRegistry([]Template{{Role: RoleWorker}})
	assert.Error(t, err)
}
