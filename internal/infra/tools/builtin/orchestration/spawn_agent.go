package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agentteam/internal/app/agentteam"
	domain "agentteam/internal/domain/agentteam"
	"agentteam/internal/infra/tools/builtin/shared"
	"agentteam/internal/shared/utils/id"
)

// CodeInvalidArgs marks a spawn_agent call whose arguments could not be used.
const CodeInvalidArgs = "SPAWN_INVALID_ARGS"

// Spawner is the admission gate shared with the HTTP spawn route.
type Spawner interface {
	Spawn(ctx context.Context, req domain.SpawnRequest) agentteam.SpawnResult
}

type spawnAgent struct {
	shared.BaseTool
	spawner Spawner
}

// NewSpawnAgent creates the spawn_agent tool. The calling instance becomes the
// parent of the spawned one.
func NewSpawnAgent(spawner Spawner) shared.Tool {
	return &spawnAgent{
		spawner: spawner,
		BaseTool: shared.NewBaseTool(
			shared.ToolDefinition{
				Name:        "spawn_agent",
				Description: `Spawn a child agent from a team template. The child runs in its own session under the current mission with a budget carved from yours. The spawn may be denied by policy or queued for human approval; the result says which.`,
				Parameters: shared.ParameterSchema{
					Type: "object",
					Properties: map[string]shared.Property{
						"templateID": {
							Type:        "string",
							Description: "Template to instantiate. Optional when role is given.",
						},
						"role": {
							Type:        "string",
							Description: "Role of the child agent.",
							Enum:        []string{"orchestrator", "delegator", "worker", "watcher", "reviewer", "tester", "committer"},
						},
						"justification": {
							Type:        "string",
							Description: "Why the child is needed.",
						},
						"budget_override": {
							Type:        "object",
							Description: "Optional tighter budget: max_tokens, max_steps, max_tool_calls, max_duration_ms, max_cost_usd.",
						},
					},
				},
			},
			shared.ToolMetadata{
				Name:     "spawn_agent",
				Version:  "1.0.0",
				Category: "agent",
				Tags:     []string{"team", "orchestration", "spawn"},
			},
		),
	}
}

func (t *spawnAgent) Execute(ctx context.Context, call shared.ToolCall) (*shared.ToolResult, error) {
	args, err := shared.ParseArguments(call)
	if err != nil {
		return invalidArgs(call.ID, "%v", err)
	}
	for key := range args {
		switch key {
		case "templateID", "role", "justification", "budget_override", "missionID":
		default:
			return invalidArgs(call.ID, "unsupported parameter: %s", key)
		}
	}

	templateID := shared.StringArg(args, "templateID")
	role := shared.StringArg(args, "role")
	if templateID == "" && role == "" {
		return invalidArgs(call.ID, "templateID or role is required")
	}
	override, err := budgetOverrideArg(args)
	if err != nil {
		return invalidArgs(call.ID, "budget_override: %v", err)
	}

	sessionID := call.SessionID
	if sessionID == "" {
		sessionID = id.SessionIDFromContext(ctx)
	}
	result := t.spawner.Spawn(ctx, domain.SpawnRequest{
		MissionID:        shared.StringArg(args, "missionID"),
		ParentInstanceID: call.InstanceID,
		TemplateID:       templateID,
		Role:             domain.Role(role),
		Source:           domain.SourceToolCall,
		Justification:    shared.StringArg(args, "justification"),
		BudgetOverride:   override,
		SessionID:        sessionID,
	})

	metadata := map[string]any{"spawn": result}
	if !result.OK {
		content := fmt.Sprintf("spawn denied (%s): %s", result.Code, result.Error)
		if result.RequiresUserApproval {
			content = fmt.Sprintf("spawn queued for user approval %s: %s", result.ApprovalID, result.Error)
		}
		return &shared.ToolResult{
			CallID:   call.ID,
			Content:  content,
			Error:    errors.New(string(result.Code)),
			Metadata: metadata,
		}, nil
	}
	return &shared.ToolResult{
		CallID:   call.ID,
		Content:  fmt.Sprintf("spawned %s as instance %s (session %s)", resolvedTemplate(templateID, role), result.InstanceID, result.SessionID),
		Metadata: metadata,
	}, nil
}

func resolvedTemplate(templateID, role string) string {
	if templateID != "" {
		return templateID
	}
	return role + " template"
}

func budgetOverrideArg(args map[string]any) (*domain.BudgetLimit, error) {
	raw, ok := args["budget_override"]
	if !ok || raw == nil {
		return nil, nil
	}
	if _, isObject := raw.(map[string]any); !isObject {
		return nil, errors.New("must be an object")
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var limit domain.BudgetLimit
	if err := json.Unmarshal(encoded, &limit); err != nil {
		return nil, err
	}
	return &limit, nil
}

func invalidArgs(callID, format string, args ...any) (*shared.ToolResult, error) {
	result, err := shared.ToolError(callID, format, args...)
	result.Metadata = map[string]any{"code": CodeInvalidArgs}
	return result, err
}
