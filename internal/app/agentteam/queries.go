package agentteam

import (
	"fmt"
	"time"

	domain "agentteam/internal/domain/agentteam"
)

// InstanceFilter narrows ListInstances. Empty fields match everything.
type InstanceFilter struct {
	MissionID        string
	ParentInstanceID string
	Status           domain.Status
}

func (f InstanceFilter) match(inst *domain.Instance) bool {
	if f.MissionID != "" && inst.MissionID != f.MissionID {
		return false
	}
	if f.ParentInstanceID != "" && inst.ParentInstanceID != f.ParentInstanceID {
		return false
	}
	return f.Status == "" || inst.Status == f.Status
}

// ListTemplates returns the template catalog ordered by id.
func (r *Runtime) ListTemplates() []domain.Template {
	return r.templates.List()
}

// ListInstances returns instances in mission order, then creation order.
func (r *Runtime) ListInstances(filter InstanceFilter) []InstanceView {
	out := []InstanceView{}
	for _, shard := range r.shardsFor(filter.MissionID) {
		shard.mu.Lock()
		now := r.now()
		for _, instanceID := range shard.mission.InstanceIDs {
			inst := shard.instances[instanceID]
			if filter.match(inst) {
				out = append(out, r.viewLocked(shard, inst, now))
			}
		}
		shard.mu.Unlock()
	}
	return out
}

// Instance returns one instance.
func (r *Runtime) Instance(instanceID string) (InstanceView, bool) {
	shard, ok := r.store.shardForInstance(instanceID)
	if !ok {
		return InstanceView{}, false
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()
	inst, ok := shard.instances[instanceID]
	if !ok {
		return InstanceView{}, false
	}
	return r.viewLocked(shard, inst, r.now()), true
}

func (r *Runtime) shardsFor(missionID string) []*missionShard {
	if missionID == "" {
		return r.store.shards()
	}
	if shard, ok := r.store.mission(missionID); ok {
		return []*missionShard{shard}
	}
	return nil
}

func (r *Runtime) viewLocked(shard *missionShard, inst *domain.Instance, now time.Time) InstanceView {
	usage, _ := shard.ledger.Usage(inst.ID)
	elapsed := shard.ledger.Elapsed(inst.ID, now)
	if inst.Status.Terminal() && !inst.StartedAt.IsZero() {
		elapsed = inst.EndedAt.Sub(inst.StartedAt)
	}
	return InstanceView{
		InstanceID:       inst.ID,
		MissionID:        inst.MissionID,
		ParentInstanceID: inst.ParentInstanceID,
		TemplateID:       inst.TemplateID,
		Role:             inst.Role,
		Source:           inst.Source,
		Status:           inst.Status,
		SessionID:        inst.SessionID,
		RunID:            inst.RunID,
		SkillHash:        inst.SkillHash,
		Justification:    inst.Justification,
		Reason:           inst.Reason,
		BudgetLimit:      inst.Budget,
		Usage:            newUsageView(usage, elapsed),
		Capabilities:     inst.Capabilities,
		CreatedAtMs:      unixMs(inst.CreatedAt),
		StartedAtMs:      unixMs(inst.StartedAt),
		EndedAtMs:        unixMs(inst.EndedAt),
	}
}

// ListMissions returns every mission that has at least one instance, with
// status counts and rollup counters.
func (r *Runtime) ListMissions() []MissionSummary {
	out := []MissionSummary{}
	for _, shard := range r.store.shards() {
		shard.mu.Lock()
		if len(shard.instances) > 0 {
			out = append(out, summarizeLocked(shard))
		}
		shard.mu.Unlock()
	}
	return out
}

func summarizeLocked(shard *missionShard) MissionSummary {
	rollup := shard.ledger.Rollup()
	summary := MissionSummary{
		MissionID:          shard.mission.ID,
		InstanceCount:      len(shard.instances),
		TokenUsedTotal:     rollup.Tokens,
		ToolCallsUsedTotal: rollup.ToolCalls,
		StepsUsedTotal:     rollup.Steps,
		CostUsedUSDTotal:   rollup.CostUSD.InexactFloat64(),
	}
	for _, inst := range shard.instances {
		switch inst.Status {
		case domain.StatusQueued:
			summary.QueuedCount++
		case domain.StatusRunning:
			summary.RunningCount++
		case domain.StatusCompleted:
			summary.CompletedCount++
		case domain.StatusFailed:
			summary.FailedCount++
		case domain.StatusCancelled:
			summary.CancelledCount++
		}
	}
	return summary
}

// MissionStatus reports whether a mission is active, cancelled or exhausted.
func (r *Runtime) MissionStatus(missionID string) (domain.MissionStatus, bool) {
	shard, ok := r.store.mission(missionID)
	if !ok {
		return "", false
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return shard.mission.Status, true
}

// CheckInvariants verifies every mission rollup against its instances.
func (r *Runtime) CheckInvariants() error {
	for _, shard := range r.store.shards() {
		shard.mu.Lock()
		err := shard.ledger.CheckInvariants()
		shard.mu.Unlock()
		if err != nil {
			return fmt.Errorf("mission %s: %w", shard.mission.ID, err)
		}
	}
	return nil
}
