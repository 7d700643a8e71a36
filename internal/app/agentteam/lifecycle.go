package agentteam

import (
	"context"
	"fmt"
	"strings"

	domain "agentteam/internal/domain/agentteam"
	"agentteam/internal/shared/async"
	sharederrors "agentteam/internal/shared/errors"
	"agentteam/internal/shared/logging"
	"agentteam/internal/shared/utils/id"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const reasonSessionStartFailed = string(domain.CodeSessionStartFailed)

// launch starts the session in the background. The instance stays queued
// until the launcher answers.
func (r *Runtime) launch(inst *domain.Instance, tpl domain.Template) {
	req := LaunchRequest{
		InstanceID:       inst.ID,
		MissionID:        inst.MissionID,
		ParentInstanceID: inst.ParentInstanceID,
		SessionID:        inst.SessionID,
		TemplateID:       inst.TemplateID,
		Role:             inst.Role,
		SystemPrompt:     tpl.SystemPrompt,
		Justification:    inst.Justification,
		Budget:           inst.Budget,
		Capabilities:     inst.Capabilities,
		SkillHash:        inst.SkillHash,
	}
	r.launches.Add(1)
	async.Go(r.logger, "agent_team.launch."+inst.ID, func() {
		defer r.launches.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.launchTimeout)
		defer cancel()
		ctx = id.WithIDs(ctx, id.IDs{SessionID: inst.SessionID, MissionID: inst.MissionID, InstanceID: inst.ID})
		ctx, span := r.tracer.Start(ctx, "agent_team.session.launch")
		span.SetAttributes(attribute.String("agent_team.instance_id", inst.ID))
		defer span.End()

		runID, err := sharederrors.RetryWithResult(ctx, r.retry, func(ctx context.Context) (string, error) {
			return r.launcher.Launch(ctx, req)
		}, r.logger)
		if err != nil {
			span.RecordError(err)
		}
		r.finishLaunch(inst.ID, runID, err)
	})
}

func (r *Runtime) finishLaunch(instanceID, runID string, launchErr error) {
	shard, ok := r.store.shardForInstance(instanceID)
	if !ok {
		return
	}
	shard.mu.Lock()
	inst, ok := shard.instances[instanceID]
	if !ok {
		shard.mu.Unlock()
		return
	}
	if inst.Status != domain.StatusQueued {
		// Cancelled while the session was starting; stop the session that
		// just came up.
		sessionID := inst.SessionID
		shard.mu.Unlock()
		if launchErr == nil {
			r.signalCancel([]string{sessionID})
		}
		return
	}
	if launchErr != nil {
		r.metrics.IncLaunchFailure()
		r.logger.Warn("session launch failed: instance=%s err=%v", instanceID, launchErr)
		_ = r.transitionLocked(shard, inst, domain.StatusFailed, reasonSessionStartFailed+": "+launchErr.Error(), nil)
		shard.mu.Unlock()
		return
	}
	if runID == "" {
		runID = id.NewRunID()
	}
	inst.RunID = runID
	_ = r.transitionLocked(shard, inst, domain.StatusRunning, "", nil)
	shard.mu.Unlock()
}

// transitionLocked moves inst to status `to` and emits the matching event.
// Called with shard.mu held.
func (r *Runtime) transitionLocked(shard *missionShard, inst *domain.Instance, to domain.Status, reason string, extra map[string]any) error {
	if !domain.CanTransition(inst.Status, to) {
		return fmt.Errorf("%s %s -> %s: %w", inst.ID, inst.Status, to, domain.ErrInvalidTransition)
	}
	now := r.now()
	from := inst.Status
	inst.Status = to
	if from == domain.StatusQueued {
		shard.markStarted(inst.ID)
	}

	payload := map[string]any{
		"role":       string(inst.Role),
		"templateID": inst.TemplateID,
		"status":     string(to),
	}
	for k, v := range extra {
		payload[k] = v
	}

	var typ domain.EventType
	switch to {
	case domain.StatusRunning:
		inst.StartedAt = now
		shard.ledger.Start(inst.ID, now)
		payload["budgetLimit"] = inst.Budget
		payload["skillHash"] = inst.SkillHash
		typ = domain.EventInstanceStarted
	case domain.StatusCompleted:
		typ = domain.EventInstanceCompleted
	case domain.StatusFailed:
		typ = domain.EventInstanceFailed
	case domain.StatusCancelled:
		typ = domain.EventInstanceCancelled
	}
	if to.Terminal() {
		inst.EndedAt = now
		inst.Reason = reason
		shard.ledger.Close(inst.ID)
		usage, _ := shard.ledger.Usage(inst.ID)
		for k, v := range domain.UsagePayload(usage, shard.ledger.Elapsed(inst.ID, now)) {
			payload[k] = v
		}
		if reason != "" {
			payload["reason"] = reason
		}
		r.metrics.InstanceEnded(string(to))
		delete(shard.toolParts, inst.ID)
	}
	r.emit(domain.InstanceEvent(typ, inst, now, payload))
	return nil
}

// Complete marks a running instance as completed.
func (r *Runtime) Complete(ctx context.Context, instanceID, summary string) InstanceResult {
	extra := map[string]any{}
	if summary != "" {
		extra["summary"] = summary
	}
	return r.finish(instanceID, domain.StatusCompleted, "", extra)
}

// Fail marks an instance as failed. Failure does not cascade to descendants.
func (r *Runtime) Fail(ctx context.Context, instanceID, reason string) InstanceResult {
	return r.finish(instanceID, domain.StatusFailed, reason, nil)
}

func (r *Runtime) finish(instanceID string, to domain.Status, reason string, extra map[string]any) InstanceResult {
	shard, ok := r.store.shardForInstance(instanceID)
	if !ok {
		return InstanceResult{InstanceID: instanceID, Code: domain.CodeInstanceNotFound, Error: "instance `" + instanceID + "` does not exist"}
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()
	inst := shard.instances[instanceID]
	if err := r.transitionLocked(shard, inst, to, reason, extra); err != nil {
		return InstanceResult{
			InstanceID: instanceID,
			SessionID:  inst.SessionID,
			Status:     inst.Status,
			Code:       domain.CodeInstanceNotRunning,
			Error:      err.Error(),
		}
	}
	return InstanceResult{OK: true, InstanceID: instanceID, SessionID: inst.SessionID, Status: inst.Status}
}

// CancelInstance cancels an instance and every live descendant, children
// before parents. Cancelling a terminal instance is a no-op that still
// reaches live descendants.
func (r *Runtime) CancelInstance(ctx context.Context, instanceID, reason string) InstanceResult {
	_, span := r.tracer.Start(ctx, "agent_team.instance.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("agent_team.instance_id", instanceID))

	shard, ok := r.store.shardForInstance(instanceID)
	if !ok {
		return InstanceResult{InstanceID: instanceID, Code: domain.CodeInstanceNotFound, Error: "instance `" + instanceID + "` does not exist"}
	}
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled"
	}
	shard.mu.Lock()
	cancelled := r.cancelSubtreeLocked(shard, instanceID, reason)
	inst := shard.instances[instanceID]
	result := InstanceResult{OK: true, InstanceID: instanceID, SessionID: inst.SessionID, Status: inst.Status}
	shard.mu.Unlock()

	logging.FromContext(ctx, r.logger).Info("instance cancelled: instance=%s cascade=%d reason=%s", instanceID, len(cancelled), reason)
	r.signalCancel(cancelled)
	return result
}

// CancelMission cancels every live instance in the mission and closes it to
// new spawns.
func (r *Runtime) CancelMission(ctx context.Context, missionID, reason string) MissionCancelResult {
	_, span := r.tracer.Start(ctx, "agent_team.mission.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("agent_team.mission_id", missionID))

	shard, ok := r.store.mission(missionID)
	if !ok {
		return MissionCancelResult{MissionID: missionID, Code: domain.CodeMissionNotFound, Error: "mission `" + missionID + "` does not exist"}
	}
	if strings.TrimSpace(reason) == "" {
		reason = "mission_cancelled"
	}
	shard.mu.Lock()
	ids, sessions := r.cancelAllLocked(shard, reason)
	if !shard.mission.Status.Closed() {
		shard.mission.Status = domain.MissionCancelled
		shard.mission.ClosedAt = r.now()
	}
	shard.mu.Unlock()

	logging.FromContext(ctx, r.logger).Info("mission cancelled: mission=%s instances=%v reason=%s", missionID, ids, reason)
	r.signalCancel(sessions)
	return MissionCancelResult{OK: true, MissionID: missionID, CancelledInstances: len(ids)}
}

// cancelSubtreeLocked cancels live nodes under rootID in post-order and
// returns the session ids of instances that were running.
func (r *Runtime) cancelSubtreeLocked(shard *missionShard, rootID, reason string) []string {
	_, sessions := r.cancelIDsLocked(shard, shard.subtree(rootID), reason)
	return sessions
}

func (r *Runtime) cancelAllLocked(shard *missionShard, reason string) ([]string, []string) {
	return r.cancelIDsLocked(shard, shard.all(), reason)
}

func (r *Runtime) cancelIDsLocked(shard *missionShard, order []string, reason string) ([]string, []string) {
	cancelled := make([]string, 0, len(order))
	var sessions []string
	for _, instanceID := range order {
		inst, ok := shard.instances[instanceID]
		if !ok || inst.Status.Terminal() {
			continue
		}
		wasRunning := inst.Status == domain.StatusRunning
		if err := r.transitionLocked(shard, inst, domain.StatusCancelled, reason, nil); err != nil {
			r.logger.Error("cancel %s: %v", instanceID, err)
			continue
		}
		cancelled = append(cancelled, instanceID)
		if wasRunning {
			sessions = append(sessions, inst.SessionID)
		}
	}
	r.metrics.ObserveCascade(len(cancelled))
	return cancelled, sessions
}

// signalCancel tells the execution collaborator to stop sessions. Failures
// are logged; the instances are already cancelled.
func (r *Runtime) signalCancel(sessionIDs []string) {
	if len(sessionIDs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cancelTimeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, sessionID := range sessionIDs {
		sessionID := sessionID
		g.Go(func() error {
			if err := r.canceller.Cancel(ctx, sessionID); err != nil {
				r.logger.Warn("session cancel failed: session=%s err=%v", sessionID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
