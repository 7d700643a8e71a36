package agentteam

import (
	"context"
	"strings"

	domain "agentteam/internal/domain/agentteam"
	tokenutil "agentteam/internal/shared/token"

	"github.com/shopspring/decimal"
)

// Engine event types consumed from the execution collaborator.
const (
	EngineProviderUsage      = "provider.usage"
	EngineMessagePartUpdated = "message.part.updated"
	EngineRunFinished        = "session.run.finished"
)

// EngineEvent is a raw event forwarded by the execution engine.
type EngineEvent struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// SessionID returns properties.sessionID, falling back to properties.part.sessionID.
func (e EngineEvent) SessionID() string {
	if v, ok := e.Properties["sessionID"].(string); ok && v != "" {
		return v
	}
	if part, ok := e.Properties["part"].(map[string]any); ok {
		if v, ok := part["sessionID"].(string); ok {
			return v
		}
	}
	return ""
}

// HandleEngineEvent turns engine activity into ledger reservations and
// lifecycle transitions for the instance that owns the session. Events for
// unknown sessions are ignored.
func (r *Runtime) HandleEngineEvent(ctx context.Context, event EngineEvent) UsageResult {
	sessionID := event.SessionID()
	instanceID, ok := r.store.instanceForSession(sessionID)
	if !ok {
		return UsageResult{OK: true}
	}
	shard, ok := r.store.shardForInstance(instanceID)
	if !ok {
		return UsageResult{OK: true}
	}

	shard.mu.Lock()
	result, sessions := r.applyEngineEventLocked(shard, instanceID, event)
	shard.mu.Unlock()

	r.signalCancel(sessions)
	return result
}

func (r *Runtime) applyEngineEventLocked(shard *missionShard, instanceID string, event EngineEvent) (UsageResult, []string) {
	inst := shard.instances[instanceID]
	switch event.Type {
	case EngineProviderUsage:
		total, _ := int64Prop(event.Properties, "totalTokens")
		current, _ := shard.ledger.Usage(instanceID)
		delta := domain.Usage{}
		if total > current.Tokens {
			delta.Tokens = total - current.Tokens
		}
		if cost, ok := floatProp(event.Properties, "costUsd"); ok {
			if d := decimal.NewFromFloat(cost).Sub(current.CostUSD); d.IsPositive() {
				delta.CostUSD = d
			}
		} else {
			delta.CostUSD = r.usageDelta(UsageReport{Tokens: delta.Tokens}).CostUSD
		}
		if delta.IsZero() {
			return UsageResult{OK: true, InstanceID: instanceID}, nil
		}
		return r.reserveLocked(shard, instanceID, delta)

	case EngineMessagePartUpdated:
		part, _ := event.Properties["part"].(map[string]any)
		partType, _ := part["type"].(string)
		switch partType {
		case "tool-invocation", "tool":
			partID, _ := part["id"].(string)
			if partID != "" {
				seen := shard.toolParts[instanceID]
				if seen == nil {
					seen = make(map[string]struct{})
					shard.toolParts[instanceID] = seen
				}
				if _, dup := seen[partID]; dup {
					return UsageResult{OK: true, InstanceID: instanceID}, nil
				}
				seen[partID] = struct{}{}
			}
			return r.reserveLocked(shard, instanceID, domain.Usage{ToolCalls: 1})
		case "text":
			text, _ := event.Properties["delta"].(string)
			tokens := tokenutil.EstimateDelta(text)
			if tokens == 0 {
				return UsageResult{OK: true, InstanceID: instanceID}, nil
			}
			return r.reserveLocked(shard, instanceID, r.usageDelta(UsageReport{Tokens: tokens}))
		}
		return UsageResult{OK: true, InstanceID: instanceID}, nil

	case EngineRunFinished:
		result, sessions := r.reserveLocked(shard, instanceID, domain.Usage{Steps: 1})
		if inst.Status != domain.StatusRunning {
			return result, sessions
		}
		status, _ := event.Properties["status"].(string)
		switch strings.ToLower(status) {
		case "completed":
			_ = r.transitionLocked(shard, inst, domain.StatusCompleted, "", nil)
		case "failed", "error":
			reason, _ := event.Properties["error"].(string)
			if reason == "" {
				reason = "run failed"
			}
			_ = r.transitionLocked(shard, inst, domain.StatusFailed, reason, nil)
		}
		return result, sessions
	}
	return UsageResult{OK: true, InstanceID: instanceID}, nil
}

func int64Prop(props map[string]any, key string) (int64, bool) {
	switch v := props[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

func floatProp(props map[string]any, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}
