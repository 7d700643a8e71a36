package orchestration

import (
	"context"
	"testing"

	"agentteam/internal/app/agentteam"
	domain "agentteam/internal/domain/agentteam"
	"agentteam/internal/infra/tools/builtin/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spawnerFunc func(ctx context.Context, req domain.SpawnRequest) agentteam.SpawnResult

func (f spawnerFunc) Spawn(ctx context.Context, req domain.SpawnRequest) agentteam.SpawnResult {
	return f(ctx, req)
}

func TestSpawnAgentRoutesThroughSpawner(t *testing.T) {
	var got domain.SpawnRequest
	tool := NewSpawnAgent(spawnerFunc(func(_ context.Context, req domain.SpawnRequest) agentteam.SpawnResult {
		got = req
		return agentteam.SpawnResult{OK: true, MissionID: "m1", InstanceID: "ins-2", SessionID: "session-2", Status: domain.StatusRunning}
	}))

	res, err := tool.Execute(context.Background(), shared.ToolCall{
		ID:           "call-1",
		SessionID:    "session-1",
		InstanceID:   "ins-1",
		RawArguments: `{"templateID":"worker-default","justification":"split the parser work","budget_override":{"max_tokens":500}}`,
	})
	require.NoError(t, err)
	require.NoError(t, res.Error)
	assert.Equal(t, "spawned worker-default as instance ins-2 (session session-2)", res.Content)

	assert.Equal(t, domain.SourceToolCall, got.Source)
	assert.Equal(t, "ins-1", got.ParentInstanceID)
	assert.Equal(t, "session-1", got.SessionID)
	require.NotNil(t, got.BudgetOverride)
	require.NotNil(t, got.BudgetOverride.MaxTokens)
	assert.EqualValues(t, 500, *got.BudgetOverride.MaxTokens)
}

func TestSpawnAgentInvalidArgs(t *testing.T) {
	called := false
	tool := NewSpawnAgent(spawnerFunc(func(context.Context, domain.SpawnRequest) agentteam.SpawnResult {
		called = true
		return agentteam.SpawnResult{}
	}))

	cases := map[string]shared.ToolCall{
		"missing template and role": {ID: "c", Arguments: map[string]any{"justification": "x"}},
		"unknown key":               {ID: "c", Arguments: map[string]any{"role": "worker", "model": "big"}},
		"override not object":       {ID: "c", Arguments: map[string]any{"role": "worker", "budget_override": 5}},
		"garbage json":              {ID: "c", RawArguments: `[[[`},
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := tool.Execute(context.Background(), call)
			require.NoError(t, err)
			require.Error(t, res.Error)
			assert.Equal(t, CodeInvalidArgs, res.Metadata["code"])
		})
	}
	assert.False(t, called)
}

func TestSpawnAgentReportsQueuedApproval(t *testing.T) {
	tool := NewSpawnAgent(spawnerFunc(func(context.Context, domain.SpawnRequest) agentteam.SpawnResult {
		return agentteam.SpawnResult{Code: domain.CodeRequiresApproval, Error: "role requires review", RequiresUserApproval: true, ApprovalID: "appr-1"}
	}))
	res, err := tool.Execute(context.Background(), shared.ToolCall{ID: "c", Arguments: map[string]any{"role": "committer"}})
	require.NoError(t, err)
	require.Error(t, res.Error)
	assert.Contains(t, res.Content, "appr-1")
}

func TestSpawnAgentUsesRuntimeGate(t *testing.T) {
	rt := agentteam.New(agentteam.Config{})
	tool := NewSpawnAgent(rt)
	res, err := tool.Execute(context.Background(), shared.ToolCall{ID: "c", Arguments: map[string]any{"role": "worker"}})
	require.NoError(t, err)
	require.Error(t, res.Error)
	assert.Equal(t, string(domain.CodePolicyMissing), res.Error.Error())
}
