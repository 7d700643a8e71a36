package agentteam

import (
	"encoding/json"
	"fmt"
	"time"

	domain "agentteam/internal/domain/agentteam"
)

// SpawnResult is the spawn envelope. Success and failure marshal to
// different shapes.
type SpawnResult struct {
	OK                   bool            `json:"ok"`
	MissionID            string          `json:"missionID,omitempty"`
	InstanceID           string          `json:"instanceID,omitempty"`
	SessionID            string          `json:"sessionID,omitempty"`
	RunID                string          `json:"runID,omitempty"`
	Status               domain.Status   `json:"status,omitempty"`
	SkillHash            string          `json:"skillHash,omitempty"`
	Code                 domain.DenyCode `json:"code,omitempty"`
	Error                string          `json:"error,omitempty"`
	RequiresUserApproval bool            `json:"requiresUserApproval,omitempty"`
	ApprovalID           string          `json:"approvalID,omitempty"`
}

// MarshalJSON renders {ok, missionID, instanceID, sessionID, runID, status,
// skillHash} on success and {ok, code, error, requiresUserApproval} otherwise.
func (r SpawnResult) MarshalJSON() ([]byte, error) {
	if r.OK {
		return json.Marshal(struct {
			OK         bool          `json:"ok"`
			MissionID  string        `json:"missionID"`
			InstanceID string        `json:"instanceID"`
			SessionID  string        `json:"sessionID"`
			RunID      string        `json:"runID"`
			Status     domain.Status `json:"status"`
			SkillHash  string        `json:"skillHash"`
		}{true, r.MissionID, r.InstanceID, r.SessionID, r.RunID, r.Status, r.SkillHash})
	}
	return json.Marshal(struct {
		OK                   bool            `json:"ok"`
		Code                 domain.DenyCode `json:"code"`
		Error                string          `json:"error"`
		RequiresUserApproval bool            `json:"requiresUserApproval"`
		ApprovalID           string          `json:"approvalID,omitempty"`
	}{false, r.Code, r.Error, r.RequiresUserApproval, r.ApprovalID})
}

func spawnFailure(code domain.DenyCode, format string, args ...any) SpawnResult {
	return SpawnResult{Code: code, Error: fmt.Sprintf(format, args...)}
}

// InstanceResult is returned by cancel, complete and fail.
type InstanceResult struct {
	OK         bool            `json:"ok"`
	InstanceID string          `json:"instanceID"`
	SessionID  string          `json:"sessionID,omitempty"`
	Status     domain.Status   `json:"status,omitempty"`
	Code       domain.DenyCode `json:"code,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// MissionCancelResult is returned by CancelMission.
type MissionCancelResult struct {
	OK                 bool            `json:"ok"`
	MissionID          string          `json:"missionID"`
	CancelledInstances int             `json:"cancelledInstances"`
	Code               domain.DenyCode `json:"code,omitempty"`
	Error              string          `json:"error,omitempty"`
}

// UsageView renders counters with the duration measured so far.
type UsageView struct {
	TokensUsed    int64   `json:"tokensUsed"`
	StepsUsed     int64   `json:"stepsUsed"`
	ToolCallsUsed int64   `json:"toolCallsUsed"`
	CostUsedUSD   float64 `json:"costUsedUsd"`
	ElapsedMs     int64   `json:"elapsedMs"`
}

func newUsageView(u domain.Usage, elapsed time.Duration) UsageView {
	return UsageView{
		TokensUsed:    u.Tokens,
		StepsUsed:     u.Steps,
		ToolCallsUsed: u.ToolCalls,
		CostUsedUSD:   u.CostUSD.InexactFloat64(),
		ElapsedMs:     elapsed.Milliseconds(),
	}
}

// UsageResult is returned by usage reports and engine event ingestion.
type UsageResult struct {
	OK          bool            `json:"ok"`
	InstanceID  string          `json:"instanceID,omitempty"`
	Usage       *UsageView      `json:"usage,omitempty"`
	ExhaustedBy string          `json:"exhaustedBy,omitempty"`
	Code        domain.DenyCode `json:"code,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// ToolCheckResult is the outcome of a capability check for one tool call.
type ToolCheckResult struct {
	OK                   bool            `json:"ok"`
	InstanceID           string          `json:"instanceID"`
	Tool                 string          `json:"tool"`
	Reason               string          `json:"reason,omitempty"`
	RequiresUserApproval bool            `json:"requiresUserApproval,omitempty"`
	ApprovalID           string          `json:"approvalID,omitempty"`
	Code                 domain.DenyCode `json:"code,omitempty"`
	Error                string          `json:"error,omitempty"`
}

// ApprovalResult is returned when an approval is resolved.
type ApprovalResult struct {
	OK         bool                  `json:"ok"`
	ApprovalID string                `json:"approvalID"`
	Kind       string                `json:"kind,omitempty"`
	Decision   domain.ApprovalStatus `json:"decision,omitempty"`
	Spawn      *SpawnResult          `json:"spawn,omitempty"`
	Code       domain.DenyCode       `json:"code,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// InstanceView is the listing shape of an instance.
type InstanceView struct {
	InstanceID       string                `json:"instanceID"`
	MissionID        string                `json:"missionID"`
	ParentInstanceID string                `json:"parentInstanceID,omitempty"`
	TemplateID       string                `json:"templateID"`
	Role             domain.Role           `json:"role"`
	Source           domain.Source         `json:"source"`
	Status           domain.Status         `json:"status"`
	SessionID        string                `json:"sessionID"`
	RunID            string                `json:"runID,omitempty"`
	SkillHash        string                `json:"skillHash,omitempty"`
	Justification    string                `json:"justification,omitempty"`
	Reason           string                `json:"reason,omitempty"`
	BudgetLimit      domain.BudgetLimit    `json:"budgetLimit"`
	Usage            UsageView             `json:"usage"`
	Capabilities     domain.CapabilitySpec `json:"capabilities"`
	CreatedAtMs      int64                 `json:"createdAtMs"`
	StartedAtMs      int64                 `json:"startedAtMs,omitempty"`
	EndedAtMs        int64                 `json:"endedAtMs,omitempty"`
}

// MissionSummary is the listing shape of a mission with rollup counters.
type MissionSummary struct {
	MissionID          string  `json:"missionID"`
	InstanceCount      int     `json:"instanceCount"`
	RunningCount       int     `json:"runningCount"`
	CompletedCount     int     `json:"completedCount"`
	FailedCount        int     `json:"failedCount"`
	CancelledCount     int     `json:"cancelledCount"`
	QueuedCount        int     `json:"queuedCount"`
	TokenUsedTotal     int64   `json:"tokenUsedTotal"`
	ToolCallsUsedTotal int64   `json:"toolCallsUsedTotal"`
	StepsUsedTotal     int64   `json:"stepsUsedTotal"`
	CostUsedUSDTotal   float64 `json:"costUsedUsdTotal"`
}

// SpawnApprovalView is a queued spawn waiting for a decision.
type SpawnApprovalView struct {
	ApprovalID  string              `json:"approvalID"`
	CreatedAtMs int64               `json:"createdAtMs"`
	Request     domain.SpawnRequest `json:"request"`
	Reason      string              `json:"reason,omitempty"`
}

// ToolApprovalView is a tool call waiting for a decision.
type ToolApprovalView struct {
	ApprovalID  string         `json:"approvalID"`
	CreatedAtMs int64          `json:"createdAtMs"`
	InstanceID  string         `json:"instanceID"`
	MissionID   string         `json:"missionID"`
	SessionID   string         `json:"sessionID"`
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// ApprovalsView lists every pending approval.
type ApprovalsView struct {
	SpawnApprovals []SpawnApprovalView `json:"spawnApprovals"`
	ToolApprovals  []ToolApprovalView  `json:"toolApprovals"`
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
