package id

import "context"

type contextKey string

const (
	sessionKey  contextKey = "agent_team_session_id"
	messageKey  contextKey = "agent_team_message_id"
	runKey      contextKey = "agent_team_run_id"
	missionKey  contextKey = "agent_team_mission_id"
	instanceKey contextKey = "agent_team_instance_id"
	logKey      contextKey = "agent_team_log_id"
)

// IDs captures the identifiers propagated across orchestration boundaries.
type IDs struct {
	SessionID  string
	MessageID  string
	RunID      string
	MissionID  string
	InstanceID string
	LogID      string
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// WithSessionID stores the session identifier on the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return withValue(ctx, sessionKey, sessionID)
}

// WithMessageID stores the originating message identifier on the context.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return withValue(ctx, messageKey, messageID)
}

// WithRunID stores the current run identifier on the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return withValue(ctx, runKey, runID)
}

// WithMissionID stores the mission identifier on the context.
func WithMissionID(ctx context.Context, missionID string) context.Context {
	return withValue(ctx, missionKey, missionID)
}

// WithInstanceID stores the calling instance identifier on the context.
func WithInstanceID(ctx context.Context, instanceID string) context.Context {
	return withValue(ctx, instanceKey, instanceID)
}

// WithLogID stores the request log identifier on the context.
func WithLogID(ctx context.Context, logID string) context.Context {
	return withValue(ctx, logKey, logID)
}

// WithIDs stores every non-empty identifier on the context.
func WithIDs(ctx context.Context, ids IDs) context.Context {
	ctx = WithSessionID(ctx, ids.SessionID)
	ctx = WithMessageID(ctx, ids.MessageID)
	ctx = WithRunID(ctx, ids.RunID)
	ctx = WithMissionID(ctx, ids.MissionID)
	ctx = WithInstanceID(ctx, ids.InstanceID)
	return WithLogID(ctx, ids.LogID)
}

// IDsFromContext extracts every known identifier from the context.
func IDsFromContext(ctx context.Context) IDs {
	return IDs{
		SessionID:  stringValue(ctx, sessionKey),
		MessageID:  stringValue(ctx, messageKey),
		RunID:      stringValue(ctx, runKey),
		MissionID:  stringValue(ctx, missionKey),
		InstanceID: stringValue(ctx, instanceKey),
		LogID:      stringValue(ctx, logKey),
	}
}

// SessionIDFromContext returns the session identifier, if any.
func SessionIDFromContext(ctx context.Context) string { return stringValue(ctx, sessionKey) }

// LogIDFromContext returns the log identifier, if any.
func LogIDFromContext(ctx context.Context) string { return stringValue(ctx, logKey) }
