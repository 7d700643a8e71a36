package agentteam

import (
	"context"

	domain "agentteam/internal/domain/agentteam"
)

// Publisher receives every orchestration event in emission order.
type Publisher interface {
	Publish(e domain.Event) domain.Event
}

// LaunchRequest describes the session the execution collaborator must start.
type LaunchRequest struct {
	InstanceID       string                `json:"instanceID"`
	MissionID        string                `json:"missionID"`
	ParentInstanceID string                `json:"parentInstanceID,omitempty"`
	SessionID        string                `json:"sessionID"`
	TemplateID       string                `json:"templateID"`
	Role             domain.Role           `json:"role"`
	SystemPrompt     string                `json:"systemPrompt,omitempty"`
	Justification    string                `json:"justification,omitempty"`
	Budget           domain.BudgetLimit    `json:"budgetLimit"`
	Capabilities     domain.CapabilitySpec `json:"capabilities"`
	SkillHash        string                `json:"skillHash,omitempty"`
}

// SessionLauncher starts the underlying execution session and returns its run id.
type SessionLauncher interface {
	Launch(ctx context.Context, req LaunchRequest) (string, error)
}

// SessionCanceller signals a running session to stop.
type SessionCanceller interface {
	Cancel(ctx context.Context, sessionID string) error
}
