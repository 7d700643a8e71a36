package agentteam

import (
	"context"
	"strings"
	"time"

	domain "agentteam/internal/domain/agentteam"
	"agentteam/internal/shared/utils/id"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Spawn runs a request through the admission gate. Every call emits
// spawn.requested followed by exactly one of spawn.approved, spawn.denied,
// or an approval-queue insertion.
func (r *Runtime) Spawn(ctx context.Context, req domain.SpawnRequest) SpawnResult {
	ctx, span := r.tracer.Start(ctx, "agent_team.spawn")
	defer span.End()

	req = normalizeRequest(ctx, req)
	span.SetAttributes(
		attribute.String("agent_team.mission_id", req.MissionID),
		attribute.String("agent_team.template_id", req.TemplateID),
		attribute.String("agent_team.role", string(req.Role)),
		attribute.String("agent_team.source", string(req.Source)),
	)

	result := r.admit(ctx, req, false)
	if result.OK {
		span.SetAttributes(attribute.String("agent_team.instance_id", result.InstanceID))
	} else {
		span.SetStatus(codes.Error, string(result.Code))
	}
	return result
}

func normalizeRequest(ctx context.Context, req domain.SpawnRequest) domain.SpawnRequest {
	req.MissionID = strings.TrimSpace(req.MissionID)
	req.ParentInstanceID = strings.TrimSpace(req.ParentInstanceID)
	req.TemplateID = strings.TrimSpace(req.TemplateID)
	req.Justification = strings.TrimSpace(req.Justification)
	if req.Source == "" {
		req.Source = domain.SourceUIAction
	}
	ids := id.IDsFromContext(ctx)
	if req.SessionID == "" {
		req.SessionID = ids.SessionID
	}
	if req.MessageID == "" {
		req.MessageID = ids.MessageID
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		req.RequestID = id.NewRequestID()
	}
	return req
}

func requestEvent(typ domain.EventType, req domain.SpawnRequest, at time.Time, payload map[string]any) domain.Event {
	return domain.Event{
		Type:             typ,
		SessionID:        req.SessionID,
		MessageID:        req.MessageID,
		MissionID:        req.MissionID,
		ParentInstanceID: req.ParentInstanceID,
		Timestamp:        at,
		Source:           req.Source,
		Payload:          payload,
	}
}

func requestPayload(req domain.SpawnRequest) map[string]any {
	payload := map[string]any{
		"requestID":     req.RequestID,
		"templateID":    req.TemplateID,
		"role":          string(req.Role),
		"justification": req.Justification,
	}
	if req.BudgetOverride != nil {
		payload["budgetOverride"] = *req.BudgetOverride
	}
	return payload
}

// deny emits spawn.denied and builds the failure envelope.
func (r *Runtime) deny(req domain.SpawnRequest, code domain.DenyCode, reason string) SpawnResult {
	payload := requestPayload(req)
	payload["code"] = string(code)
	payload["reason"] = reason
	r.emit(requestEvent(domain.EventSpawnDenied, req, r.now(), payload))
	r.metrics.ObserveSpawn("denied", string(code))
	r.logger.Info("spawn denied: mission=%s template=%s code=%s reason=%s", req.MissionID, req.TemplateID, code, reason)
	return spawnFailure(code, "%s", reason)
}

// admit runs admission. resumed is set when a human approved a queued request:
// spawn.requested was already emitted and the approval step is skipped.
func (r *Runtime) admit(ctx context.Context, req domain.SpawnRequest, resumed bool) SpawnResult {
	now := r.now()
	if !resumed {
		r.emit(requestEvent(domain.EventSpawnRequested, req, now, requestPayload(req)))
	}

	if _, ok := domain.ParseSource(string(req.Source)); !ok {
		return r.deny(req, domain.CodeInvalidRequest, "unknown source `"+string(req.Source)+"`")
	}
	if req.Role != "" {
		if _, ok := domain.ParseRole(string(req.Role)); !ok {
			return r.deny(req, domain.CodeInvalidRequest, "unknown role `"+string(req.Role)+"`")
		}
	}

	policy := r.Policy()
	if policy == nil {
		return r.deny(req, domain.CodePolicyMissing, "no spawn policy is configured for this workspace")
	}

	tpl, ok := r.lookupTemplate(req)
	if !ok {
		return r.deny(req, domain.CodeTemplateMissing, "template `"+templateKey(req)+"` is not registered")
	}
	if req.Role == "" {
		req.Role = tpl.Role
	} else if req.Role != tpl.Role {
		return r.deny(req, domain.CodeInvalidRequest, "template `"+tpl.ID+"` has role `"+string(tpl.Role)+"`, not `"+string(req.Role)+"`")
	}
	req.TemplateID = tpl.ID

	shard, code, reason := r.resolveMission(&req, policy, now)
	if shard == nil {
		return r.deny(req, code, reason)
	}

	shard.mu.Lock()
	inst, result, queue := r.admitLocked(shard, req, tpl, policy, resumed)
	shard.mu.Unlock()

	if queue {
		return r.queueSpawn(req, result.Error)
	}
	if inst == nil {
		return result
	}
	r.launch(inst, tpl)
	return r.awaitStart(ctx, shard, inst.ID, result)
}

func (r *Runtime) lookupTemplate(req domain.SpawnRequest) (domain.Template, bool) {
	if req.TemplateID != "" {
		return r.templates.Lookup(req.TemplateID)
	}
	if req.Role != "" {
		return r.templates.ForRole(req.Role)
	}
	return domain.Template{}, false
}

func templateKey(req domain.SpawnRequest) string {
	if req.TemplateID != "" {
		return req.TemplateID
	}
	return "role:" + string(req.Role)
}

// resolveMission finds the mission the request belongs to. Root spawns create
// the mission on first use; child spawns inherit the parent's mission.
func (r *Runtime) resolveMission(req *domain.SpawnRequest, policy *domain.SpawnPolicy, now time.Time) (*missionShard, domain.DenyCode, string) {
	if req.ParentInstanceID != "" {
		shard, ok := r.store.shardForInstance(req.ParentInstanceID)
		if !ok {
			return nil, domain.CodeParentMissing, "parent instance `" + req.ParentInstanceID + "` does not exist"
		}
		if req.MissionID != "" && req.MissionID != shard.mission.ID {
			return nil, domain.CodeParentMissing, "parent instance `" + req.ParentInstanceID + "` is not part of mission `" + req.MissionID + "`"
		}
		req.MissionID = shard.mission.ID
		return shard, "", ""
	}
	if req.MissionID == "" {
		req.MissionID = id.DefaultMissionID
	}
	return r.store.getOrCreateMission(req.MissionID, policy.MissionTotalBudget, now), "", ""
}

// admitLocked performs the checks that depend on mission state and, when the
// request is admitted, creates the queued instance. Called with shard.mu held.
func (r *Runtime) admitLocked(shard *missionShard, req domain.SpawnRequest, tpl domain.Template, policy *domain.SpawnPolicy, resumed bool) (*domain.Instance, SpawnResult, bool) {
	now := r.now()
	if shard.mission.Status.Closed() {
		return nil, r.deny(req, domain.CodeMissionClosed, "mission `"+shard.mission.ID+"` is "+string(shard.mission.Status)), false
	}

	in := domain.PolicyInput{
		Role:          req.Role,
		Source:        req.Source,
		Justification: req.Justification,
		Template:      tpl,
	}
	in.TotalAgents, in.RunningAgents = shard.counts()

	var parentRemaining *domain.BudgetLimit
	if req.ParentInstanceID != "" {
		parent, ok := shard.instances[req.ParentInstanceID]
		if !ok {
			return nil, r.deny(req, domain.CodeParentMissing, "parent instance `"+req.ParentInstanceID+"` does not exist"), false
		}
		if parent.Status.Terminal() {
			return nil, r.deny(req, domain.CodeParentMissing, "parent instance `"+parent.ID+"` is "+string(parent.Status)), false
		}
		in.HasParent = true
		in.ParentRole = parent.Role
		if remaining, ok := shard.ledger.Remaining(parent.ID, now); ok {
			parentRemaining = &remaining
		}
	}

	decision := policy.Evaluate(in)
	if !decision.Allowed {
		return nil, r.deny(req, decision.Code, decision.Reason), false
	}

	headroom := shard.ledger.Headroom(now)
	if dim, exhausted := headroom.ExhaustedDimension(); exhausted {
		return nil, r.deny(req, domain.CodeMissionBudgetExceeded, "mission budget exhausted on "+string(dim)), false
	}
	budget := policy.ResolveBudget(domain.BudgetInput{
		Template:        tpl,
		Role:            req.Role,
		Override:        req.BudgetOverride,
		ParentRemaining: parentRemaining,
		MissionHeadroom: headroom,
	})
	if dim, exhausted := budget.ExhaustedDimension(); exhausted {
		return nil, r.deny(req, domain.CodeMissionBudgetExceeded, "no budget left to grant on "+string(dim)), false
	}

	if decision.NeedsApproval && !resumed {
		return nil, SpawnResult{Error: approvalReason(req, in)}, true
	}

	inst := &domain.Instance{
		ID:               id.NewInstanceID(),
		MissionID:        shard.mission.ID,
		ParentInstanceID: req.ParentInstanceID,
		TemplateID:       tpl.ID,
		Role:             req.Role,
		Source:           req.Source,
		Status:           domain.StatusQueued,
		SessionID:        id.NewSessionID(),
		Budget:           budget,
		Capabilities:     policy.CapabilitiesFor(tpl),
		SkillHash:        tpl.SkillHash,
		Justification:    req.Justification,
		CreatedAt:        now,
		RequestSessionID: req.SessionID,
		RequestMessageID: req.MessageID,
	}
	shard.addInstance(inst)
	r.store.index(inst)

	payload := requestPayload(req)
	payload["budgetLimit"] = budget
	payload["skillHash"] = inst.SkillHash
	payload["status"] = string(inst.Status)
	payload["instanceSessionID"] = inst.SessionID
	approved := domain.InstanceEvent(domain.EventSpawnApproved, inst, now, payload)
	if req.SessionID != "" {
		// spawn.* events stay on the requester's session feed.
		approved.SessionID = req.SessionID
	}
	r.emit(approved)
	r.metrics.ObserveSpawn("approved", "")
	r.metrics.InstanceAdmitted()
	r.logger.Info("spawn approved: mission=%s instance=%s template=%s parent=%s", inst.MissionID, inst.ID, inst.TemplateID, inst.ParentInstanceID)

	copied := *inst
	return &copied, SpawnResult{
		OK:         true,
		MissionID:  inst.MissionID,
		InstanceID: inst.ID,
		SessionID:  inst.SessionID,
		Status:     inst.Status,
		SkillHash:  inst.SkillHash,
	}, false
}

func approvalReason(req domain.SpawnRequest, in domain.PolicyInput) string {
	if in.HasParent {
		return "role `" + string(in.ParentRole) + "` may only request `" + string(req.Role) + "` with user approval"
	}
	return "spawns of role `" + string(req.Role) + "` from " + string(req.Source) + " require user approval"
}

// awaitStart waits up to StartWait for the session to start and refreshes the
// envelope with the run id and status.
func (r *Runtime) awaitStart(ctx context.Context, shard *missionShard, instanceID string, result SpawnResult) SpawnResult {
	if r.startWait > 0 {
		shard.mu.Lock()
		ch := shard.started[instanceID]
		shard.mu.Unlock()
		if ch != nil {
			timer := time.NewTimer(r.startWait)
			select {
			case <-ch:
			case <-timer.C:
			case <-ctx.Done():
			}
			timer.Stop()
		}
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if inst, ok := shard.instances[instanceID]; ok {
		result.Status = inst.Status
		result.RunID = inst.RunID
	}
	return result
}
