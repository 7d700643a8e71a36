// Package agentteam holds the pure model of agent-team orchestration:
// missions, instance trees, budgets, spawn policy and capability rules.
// Nothing here performs I/O or locking; callers serialize access per mission.
package agentteam

import (
	"strings"
	"time"
)

// Role is the function an agent instance plays in its mission.
type Role string

const (
	RoleOrchestrator Role = "orchestrator"
	RoleDelegator    Role = "delegator"
	RoleWorker       Role = "worker"
	RoleWatcher      Role = "watcher"
	RoleReviewer     Role = "reviewer"
	RoleTester       Role = "tester"
	RoleCommitter    Role = "committer"
)

var knownRoles = map[Role]struct{}{
	RoleOrchestrator: {}, RoleDelegator: {}, RoleWorker: {}, RoleWatcher: {},
	RoleReviewer: {}, RoleTester: {}, RoleCommitter: {},
}

// ParseRole normalizes a role name and reports whether it is known.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := knownRoles[role]
	return role, ok
}

// Source identifies who asked for a spawn.
type Source string

const (
	SourceUIAction            Source = "ui_action"
	SourceToolCall            Source = "tool_call"
	SourceOrchestratorRuntime Source = "orchestrator_runtime"
)

// ParseSource normalizes a source name and reports whether it is known.
func ParseSource(raw string) (Source, bool) {
	src := Source(strings.ToLower(strings.TrimSpace(raw)))
	switch src {
	case SourceUIAction, SourceToolCall, SourceOrchestratorRuntime:
		return src, true
	}
	return src, false
}

// Status is the lifecycle state of an instance.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusRunning || to == StatusFailed || to == StatusCancelled
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	}
	return false
}

// MissionStatus tracks whether a mission accepts new spawns.
type MissionStatus string

const (
	MissionActive    MissionStatus = "active"
	MissionCancelled MissionStatus = "cancelled"
	MissionExhausted MissionStatus = "exhausted"
)

// Closed reports whether the mission is terminal.
func (s MissionStatus) Closed() bool {
	return s == MissionCancelled || s == MissionExhausted
}

// SkillRef points at a skill by id or workspace path.
type SkillRef struct {
	ID   string `json:"id,omitempty" yaml:"id"`
	Path string `json:"path,omitempty" yaml:"path"`
}

// Mission is the root aggregate of a body of work.
type Mission struct {
	ID        string
	Status    MissionStatus
	Budget    BudgetLimit
	CreatedAt time.Time
	ClosedAt  time.Time
	// InstanceIDs lists every instance ever created in the mission, in creation order.
	InstanceIDs []string
}

// Instance is one spawned agent.
type Instance struct {
	ID               string
	MissionID        string
	ParentInstanceID string
	TemplateID       string
	Role             Role
	Source           Source
	Status           Status
	SessionID        string
	RunID            string
	Budget           BudgetLimit
	Capabilities     CapabilitySpec
	SkillHash        string
	Justification    string
	Reason           string
	CreatedAt        time.Time
	StartedAt        time.Time
	EndedAt          time.Time
	// Context identifiers of the request that created the instance.
	RequestSessionID string
	RequestMessageID string
}

// SpawnRequest asks for a new instance.
type SpawnRequest struct {
	MissionID        string       `json:"missionID"`
	ParentInstanceID string       `json:"parentInstanceID,omitempty"`
	TemplateID       string       `json:"templateID"`
	Role             Role         `json:"role"`
	Source           Source       `json:"source"`
	Justification    string       `json:"justification"`
	BudgetOverride   *BudgetLimit `json:"budget_override,omitempty"`
	// Context of the caller, carried onto emitted events.
	SessionID string `json:"sessionID,omitempty"`
	MessageID string `json:"messageID,omitempty"`
	// RequestID is echoed on spawn.requested and its spawn.approved or
	// spawn.denied. Assigned on admission when empty.
	RequestID string `json:"requestID,omitempty"`
}

// ApprovalStatus is the state of a queued approval.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDenied   ApprovalStatus = "denied"
)
