package agentteam

import (
	"context"
	"errors"

	domain "agentteam/internal/domain/agentteam"

	"github.com/shopspring/decimal"
)

// UsageReport is an increment of consumption for one instance. A nil CostUSD
// is derived from Tokens and the policy's cost_per_1k_tokens_usd.
type UsageReport struct {
	Tokens    int64            `json:"tokens"`
	Steps     int64            `json:"steps"`
	ToolCalls int64            `json:"toolCalls"`
	CostUSD   *decimal.Decimal `json:"costUsd,omitempty"`
}

// ReportUsage reserves the increment against the instance and mission
// budgets. A rejected increment is not applied: it emits the exhaustion event
// and cancels the affected subtree or the whole mission.
func (r *Runtime) ReportUsage(ctx context.Context, instanceID string, report UsageReport) UsageResult {
	shard, ok := r.store.shardForInstance(instanceID)
	if !ok {
		return UsageResult{InstanceID: instanceID, Code: domain.CodeInstanceNotFound, Error: "instance `" + instanceID + "` does not exist"}
	}
	if report.Tokens < 0 || report.Steps < 0 || report.ToolCalls < 0 || (report.CostUSD != nil && report.CostUSD.IsNegative()) {
		return UsageResult{InstanceID: instanceID, Code: domain.CodeInvalidRequest, Error: domain.ErrNegativeUsage.Error()}
	}

	shard.mu.Lock()
	result, sessions := r.reserveLocked(shard, instanceID, r.usageDelta(report))
	shard.mu.Unlock()

	r.signalCancel(sessions)
	return result
}

func (r *Runtime) usageDelta(report UsageReport) domain.Usage {
	delta := domain.Usage{Tokens: report.Tokens, Steps: report.Steps, ToolCalls: report.ToolCalls}
	switch {
	case report.CostUSD != nil:
		delta.CostUSD = *report.CostUSD
	case report.Tokens > 0:
		if policy := r.Policy(); policy != nil && policy.CostPer1KTokensUSD != nil {
			delta.CostUSD = decimal.NewFromInt(report.Tokens).
				Mul(decimal.NewFromFloat(*policy.CostPer1KTokensUSD)).
				Div(decimal.NewFromInt(1000))
		}
	}
	return delta
}

// reserveLocked applies delta and handles exhaustion. It returns the session
// ids that must be signalled once shard.mu is released.
func (r *Runtime) reserveLocked(shard *missionShard, instanceID string, delta domain.Usage) (UsageResult, []string) {
	inst := shard.instances[instanceID]
	if inst.Status != domain.StatusRunning {
		return UsageResult{
			InstanceID: instanceID,
			Code:       domain.CodeInstanceNotRunning,
			Error:      "instance `" + instanceID + "` is " + string(inst.Status),
		}, nil
	}

	now := r.now()
	exhaustion, err := shard.ledger.Reserve(instanceID, delta, now)
	if err != nil {
		if errors.Is(err, domain.ErrRollupDiverged) {
			r.logger.Error("ledger invariant violated for mission %s: %v", shard.mission.ID, err)
			return UsageResult{InstanceID: instanceID, Code: domain.CodeInternal, Error: err.Error()}, nil
		}
		return UsageResult{InstanceID: instanceID, Code: domain.CodeInvalidRequest, Error: err.Error()}, nil
	}

	usage, _ := shard.ledger.Usage(instanceID)
	elapsed := shard.ledger.Elapsed(instanceID, now)
	view := newUsageView(usage, elapsed)

	if exhaustion == nil {
		if !delta.IsZero() {
			payload := domain.UsagePayload(usage, elapsed)
			payload["budgetLimit"] = inst.Budget
			r.emit(domain.InstanceEvent(domain.EventBudgetUsage, inst, now, payload))
		}
		return UsageResult{OK: true, InstanceID: instanceID, Usage: &view}, nil
	}

	exhaustedBy := exhaustion.ExhaustedBy()
	r.metrics.IncBudgetExhausted(exhaustedBy)
	r.logger.Info("budget exhausted: mission=%s instance=%s by=%s", inst.MissionID, inst.ID, exhaustedBy)
	reason := "budget_exhausted:" + exhaustedBy

	var sessions []string
	if exhaustion.Mission {
		payload := domain.UsagePayload(shard.ledger.Rollup(), now.Sub(shard.mission.CreatedAt))
		payload["exhaustedBy"] = exhaustedBy
		payload["missionBudget"] = shard.mission.Budget
		r.emit(domain.InstanceEvent(domain.EventMissionBudgetExhausted, inst, now, payload))
		_, sessions = r.cancelAllLocked(shard, reason)
		shard.mission.Status = domain.MissionExhausted
		shard.mission.ClosedAt = now
	} else {
		payload := domain.UsagePayload(usage, elapsed)
		payload["exhaustedBy"] = exhaustedBy
		payload["budgetLimit"] = inst.Budget
		r.emit(domain.InstanceEvent(domain.EventBudgetExhausted, inst, now, payload))
		sessions = r.cancelSubtreeLocked(shard, instanceID, reason)
	}
	return UsageResult{
		InstanceID:  instanceID,
		Usage:       &view,
		ExhaustedBy: exhaustedBy,
		Code:        domain.CodeBudgetExhausted,
		Error:       "budget exhausted: " + exhaustedBy,
	}, sessions
}
