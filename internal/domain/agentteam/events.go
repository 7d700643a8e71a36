package agentteam

import (
	"encoding/json"
	"time"
)

// EventType is the closed set of orchestration event tags.
type EventType string

const (
	EventSpawnRequested         EventType = "agent_team.spawn.requested"
	EventSpawnDenied            EventType = "agent_team.spawn.denied"
	EventSpawnApproved          EventType = "agent_team.spawn.approved"
	EventInstanceStarted        EventType = "agent_team.instance.started"
	EventInstanceCancelled      EventType = "agent_team.instance.cancelled"
	EventInstanceCompleted      EventType = "agent_team.instance.completed"
	EventInstanceFailed         EventType = "agent_team.instance.failed"
	EventBudgetUsage            EventType = "agent_team.budget.usage"
	EventBudgetExhausted        EventType = "agent_team.budget.exhausted"
	EventMissionBudgetExhausted EventType = "agent_team.mission.budget.exhausted"
	EventCapabilityDenied       EventType = "agent_team.capability.denied"
)

// Terminal reports whether the event ends an instance's lifecycle.
func (t EventType) Terminal() bool {
	return t == EventInstanceCancelled || t == EventInstanceCompleted || t == EventInstanceFailed
}

// Event is an immutable orchestration record.
type Event struct {
	Type             EventType
	Seq              uint64
	SessionID        string
	MessageID        string
	RunID            string
	MissionID        string
	InstanceID       string
	ParentInstanceID string
	Timestamp        time.Time
	Source           Source
	Payload          map[string]any
}

// Properties flattens the common fields and payload into one map.
func (e Event) Properties() map[string]any {
	props := make(map[string]any, len(e.Payload)+8)
	for k, v := range e.Payload {
		props[k] = v
	}
	props["sessionID"] = e.SessionID
	props["messageID"] = e.MessageID
	props["runID"] = e.RunID
	props["missionID"] = e.MissionID
	props["instanceID"] = e.InstanceID
	props["parentInstanceID"] = e.ParentInstanceID
	props["timestampMs"] = e.Timestamp.UnixMilli()
	props["source"] = string(e.Source)
	return props
}

// MarshalJSON renders {"type", "seq", "properties"}.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       EventType      `json:"type"`
		Seq        uint64         `json:"seq"`
		Properties map[string]any `json:"properties"`
	}{Type: e.Type, Seq: e.Seq, Properties: e.Properties()})
}

// InstanceEvent builds an event scoped to an instance.
func InstanceEvent(typ EventType, inst *Instance, at time.Time, payload map[string]any) Event {
	return Event{
		Type:             typ,
		SessionID:        inst.SessionID,
		MessageID:        inst.RequestMessageID,
		RunID:            inst.RunID,
		MissionID:        inst.MissionID,
		InstanceID:       inst.ID,
		ParentInstanceID: inst.ParentInstanceID,
		Timestamp:        at,
		Source:           inst.Source,
		Payload:          payload,
	}
}

// UsagePayload renders counters for budget events.
func UsagePayload(u Usage, elapsed time.Duration) map[string]any {
	return map[string]any{
		"tokensUsed":    u.Tokens,
		"stepsUsed":     u.Steps,
		"toolCallsUsed": u.ToolCalls,
		"costUsedUsd":   u.CostUSD.InexactFloat64(),
		"elapsedMs":     elapsed.Milliseconds(),
	}
}
