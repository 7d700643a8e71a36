package http

import (
	"context"
	"time"

	"agentteam/internal/app/agentteam"
	"agentteam/internal/app/eventbus"
	domain "agentteam/internal/domain/agentteam"
	"agentteam/internal/infra/observability"
	"agentteam/internal/infra/tools/builtin/shared"

	"github.com/prometheus/client_golang/prometheus"
)

// Orchestrator is the runtime surface the HTTP layer drives.
type Orchestrator interface {
	Spawn(ctx context.Context, req domain.SpawnRequest) agentteam.SpawnResult
	CancelInstance(ctx context.Context, instanceID, reason string) agentteam.InstanceResult
	CancelMission(ctx context.Context, missionID, reason string) agentteam.MissionCancelResult
	ReportUsage(ctx context.Context, instanceID string, report agentteam.UsageReport) agentteam.UsageResult
	Complete(ctx context.Context, instanceID, summary string) agentteam.InstanceResult
	Fail(ctx context.Context, instanceID, reason string) agentteam.InstanceResult
	CheckTool(ctx context.Context, instanceID string, inv domain.ToolInvocation) agentteam.ToolCheckResult
	HandleEngineEvent(ctx context.Context, event agentteam.EngineEvent) agentteam.UsageResult
	ResolveSpawnApproval(ctx context.Context, approvalID string, approve bool, reason string) agentteam.ApprovalResult
	ResolveToolApproval(ctx context.Context, approvalID string, approve bool, reason string) agentteam.ApprovalResult

	ListTemplates() []domain.Template
	ListInstances(filter agentteam.InstanceFilter) []agentteam.InstanceView
	Instance(instanceID string) (agentteam.InstanceView, bool)
	ListMissions() []agentteam.MissionSummary
	ListApprovals() agentteam.ApprovalsView
}

// RouterDeps are the collaborators wired into the router.
type RouterDeps struct {
	Runtime  Orchestrator
	Bus      *eventbus.Bus
	Obs      *observability.Observability
	Gatherer prometheus.Gatherer
	// Tools are invoked by the engine on behalf of running instances.
	Tools []shared.Tool
}

// RouterConfig tunes transport behavior.
type RouterConfig struct {
	// Environment "production" switches gin to release mode.
	Environment       string
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Version           string
	// Degraded reports optional components that failed to start.
	Degraded func() map[string]string
}
