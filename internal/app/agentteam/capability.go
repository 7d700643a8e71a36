package agentteam

import (
	"context"

	domain "agentteam/internal/domain/agentteam"
)

// CheckTool evaluates a tool invocation against the instance's capability
// scopes. A denial emits capability.denied and leaves the instance running.
func (r *Runtime) CheckTool(ctx context.Context, instanceID string, inv domain.ToolInvocation) ToolCheckResult {
	shard, ok := r.store.shardForInstance(instanceID)
	if !ok {
		return ToolCheckResult{InstanceID: instanceID, Tool: inv.Tool, Code: domain.CodeInstanceNotFound, Error: "instance `" + instanceID + "` does not exist"}
	}

	shard.mu.Lock()
	inst := shard.instances[instanceID]
	if inst.Status.Terminal() {
		shard.mu.Unlock()
		return ToolCheckResult{InstanceID: instanceID, Tool: inv.Tool, Code: domain.CodeInstanceNotRunning, Error: "instance `" + instanceID + "` is " + string(inst.Status)}
	}
	snapshot := *inst
	shard.mu.Unlock()

	decision := domain.EvaluateTool(snapshot.Capabilities, r.workspaceRoot, inv)
	if decision.Allowed {
		return ToolCheckResult{OK: true, InstanceID: instanceID, Tool: decision.Tool}
	}

	approvalID := ""
	if decision.RequiresApproval {
		if r.consumeGrant(instanceID, inv) {
			return ToolCheckResult{OK: true, InstanceID: instanceID, Tool: decision.Tool, Reason: "approved by user"}
		}
		approvalID = r.requestToolApproval(&snapshot, inv, decision.Reason)
	}
	if r.afterToolEval != nil {
		r.afterToolEval()
	}

	payload := map[string]any{
		"tool":   decision.Tool,
		"reason": decision.Reason,
	}
	if approvalID != "" {
		payload["requiresUserApproval"] = true
		payload["approvalID"] = approvalID
	}
	shard.mu.Lock()
	if inst.Status.Terminal() {
		status := inst.Status
		shard.mu.Unlock()
		if approvalID != "" {
			r.withdrawToolApproval(approvalID)
		}
		return ToolCheckResult{InstanceID: instanceID, Tool: inv.Tool, Code: domain.CodeInstanceNotRunning, Error: "instance `" + instanceID + "` is " + string(status)}
	}
	r.emit(domain.InstanceEvent(domain.EventCapabilityDenied, inst, r.now(), payload))
	shard.mu.Unlock()
	r.metrics.IncCapabilityDenied(decision.Tool)

	return ToolCheckResult{
		InstanceID:           instanceID,
		Tool:                 decision.Tool,
		Reason:               decision.Reason,
		RequiresUserApproval: approvalID != "",
		ApprovalID:           approvalID,
		Code:                 domain.CodeCapabilityDenied,
		Error:                decision.Reason,
	}
}
