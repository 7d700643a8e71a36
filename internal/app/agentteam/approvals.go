package agentteam

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	domain "agentteam/internal/domain/agentteam"
	"agentteam/internal/shared/logging"
	"agentteam/internal/shared/utils/id"
)

const (
	approvalKindSpawn = "spawn"
	approvalKindTool  = "tool"
)

type pendingSpawn struct {
	id        string
	createdAt time.Time
	request   domain.SpawnRequest
	reason    string
}

type pendingTool struct {
	id         string
	createdAt  time.Time
	instanceID string
	missionID  string
	sessionID  string
	invocation domain.ToolInvocation
	reason     string
	key        string
}

// approvals holds queued decisions. approvals.mu is never held across
// admission or a mission lock.
type approvals struct {
	mu       sync.Mutex
	spawns   map[string]*pendingSpawn
	tools    map[string]*pendingTool
	toolKeys map[string]string
	// grants are one-shot tool permissions keyed by instance, tool and args.
	grants map[string]int
	// resolved keeps every decided outcome for the life of the process.
	resolved map[string]ApprovalResult
	// resolving marks approvals whose decision is being applied; the channel
	// closes once the outcome is in resolved.
	resolving map[string]chan struct{}
}

func newApprovals() *approvals {
	return &approvals{
		spawns:    make(map[string]*pendingSpawn),
		tools:     make(map[string]*pendingTool),
		toolKeys:  make(map[string]string),
		grants:    make(map[string]int),
		resolved:  make(map[string]ApprovalResult),
		resolving: make(map[string]chan struct{}),
	}
}

func approvalKey(kind, approvalID string) string {
	return kind + ":" + approvalID
}

// settledLocked returns the recorded outcome for key, waiting out a
// resolution that is still in flight. Called with a.mu held; a.mu is held
// again on return.
func (a *approvals) settledLocked(key string) (ApprovalResult, bool) {
	for {
		if prior, ok := a.resolved[key]; ok {
			return prior, true
		}
		done, busy := a.resolving[key]
		if !busy {
			return ApprovalResult{}, false
		}
		a.mu.Unlock()
		<-done
		a.mu.Lock()
	}
}

// finish records the outcome and releases anyone waiting on key.
func (a *approvals) finish(key string, result ApprovalResult) {
	a.mu.Lock()
	a.resolved[key] = result
	if done, ok := a.resolving[key]; ok {
		close(done)
		delete(a.resolving, key)
	}
	a.mu.Unlock()
}

func (a *approvals) pendingCount() int {
	return len(a.spawns) + len(a.tools)
}

// queueSpawn parks an admitted request until a human decides.
func (r *Runtime) queueSpawn(req domain.SpawnRequest, reason string) SpawnResult {
	approval := &pendingSpawn{
		id:        id.NewApprovalID(),
		createdAt: r.now(),
		request:   req,
		reason:    reason,
	}
	r.approvals.mu.Lock()
	r.approvals.spawns[approval.id] = approval
	r.metrics.SetPendingApprovals(r.approvals.pendingCount())
	r.approvals.mu.Unlock()

	r.metrics.ObserveSpawn("queued", string(domain.CodeRequiresApproval))
	r.logger.Info("spawn queued for approval: approval=%s mission=%s template=%s", approval.id, req.MissionID, req.TemplateID)
	return SpawnResult{
		Code:                 domain.CodeRequiresApproval,
		Error:                reason,
		RequiresUserApproval: true,
		ApprovalID:           approval.id,
	}
}

// ResolveSpawnApproval approves or denies a queued spawn. Approval re-runs
// admission against current state; denial emits spawn.denied. Resolving an
// already resolved approval returns the stored outcome.
func (r *Runtime) ResolveSpawnApproval(ctx context.Context, approvalID string, approve bool, reason string) ApprovalResult {
	key := approvalKey(approvalKindSpawn, approvalID)
	r.approvals.mu.Lock()
	if prior, ok := r.approvals.settledLocked(key); ok {
		r.approvals.mu.Unlock()
		return prior
	}
	pending, ok := r.approvals.spawns[approvalID]
	if !ok {
		r.approvals.mu.Unlock()
		return ApprovalResult{ApprovalID: approvalID, Kind: approvalKindSpawn, Code: domain.CodeApprovalNotFound, Error: "approval `" + approvalID + "` does not exist"}
	}
	delete(r.approvals.spawns, approvalID)
	r.approvals.resolving[key] = make(chan struct{})
	r.metrics.SetPendingApprovals(r.approvals.pendingCount())
	r.approvals.mu.Unlock()

	var spawn SpawnResult
	decision := domain.ApprovalDenied
	if approve {
		spawn = r.admit(ctx, pending.request, true)
		if spawn.OK {
			decision = domain.ApprovalApproved
		}
	} else {
		if reason == "" {
			reason = "spawn request denied by user"
		}
		spawn = r.deny(pending.request, domain.CodeApprovalDenied, reason)
	}

	result := ApprovalResult{OK: true, ApprovalID: approvalID, Kind: approvalKindSpawn, Decision: decision, Spawn: &spawn}
	r.approvals.finish(key, result)
	logging.FromContext(ctx, r.logger).Info("spawn approval resolved: approval=%s mission=%s decision=%s", approvalID, pending.request.MissionID, decision)
	return result
}

// requestToolApproval records a tool call that needs a human decision. An
// identical pending call reuses its approval.
func (r *Runtime) requestToolApproval(inst *domain.Instance, inv domain.ToolInvocation, reason string) string {
	key := grantKey(inst.ID, inv)
	r.approvals.mu.Lock()
	defer r.approvals.mu.Unlock()
	if existing, ok := r.approvals.toolKeys[key]; ok {
		return existing
	}
	approval := &pendingTool{
		id:         id.NewToolApprovalID(),
		createdAt:  r.now(),
		instanceID: inst.ID,
		missionID:  inst.MissionID,
		sessionID:  inst.SessionID,
		invocation: inv,
		reason:     reason,
		key:        key,
	}
	r.approvals.tools[approval.id] = approval
	r.approvals.toolKeys[key] = approval.id
	r.metrics.SetPendingApprovals(r.approvals.pendingCount())
	return approval.id
}

// withdrawToolApproval drops a pending tool approval whose instance stopped
// before the denial was reported.
func (r *Runtime) withdrawToolApproval(approvalID string) {
	r.approvals.mu.Lock()
	defer r.approvals.mu.Unlock()
	pending, ok := r.approvals.tools[approvalID]
	if !ok {
		return
	}
	delete(r.approvals.tools, approvalID)
	delete(r.approvals.toolKeys, pending.key)
	r.metrics.SetPendingApprovals(r.approvals.pendingCount())
}

// consumeGrant spends a one-shot permission for the exact invocation.
func (r *Runtime) consumeGrant(instanceID string, inv domain.ToolInvocation) bool {
	key := grantKey(instanceID, inv)
	r.approvals.mu.Lock()
	defer r.approvals.mu.Unlock()
	if r.approvals.grants[key] == 0 {
		return false
	}
	r.approvals.grants[key]--
	if r.approvals.grants[key] == 0 {
		delete(r.approvals.grants, key)
	}
	return true
}

// ResolveToolApproval approves or denies a pending tool call. Approval grants
// a single retry of the same invocation.
func (r *Runtime) ResolveToolApproval(ctx context.Context, approvalID string, approve bool, reason string) ApprovalResult {
	key := approvalKey(approvalKindTool, approvalID)
	r.approvals.mu.Lock()
	defer r.approvals.mu.Unlock()

	if prior, ok := r.approvals.settledLocked(key); ok {
		return prior
	}
	pending, ok := r.approvals.tools[approvalID]
	if !ok {
		return ApprovalResult{ApprovalID: approvalID, Kind: approvalKindTool, Code: domain.CodeApprovalNotFound, Error: "approval `" + approvalID + "` does not exist"}
	}
	delete(r.approvals.tools, approvalID)
	delete(r.approvals.toolKeys, pending.key)
	r.metrics.SetPendingApprovals(r.approvals.pendingCount())

	decision := domain.ApprovalDenied
	if approve {
		r.approvals.grants[pending.key]++
		decision = domain.ApprovalApproved
	}
	logging.FromContext(ctx, r.logger).Info("tool approval resolved: approval=%s instance=%s tool=%s decision=%s reason=%s", approvalID, pending.instanceID, pending.invocation.Tool, decision, reason)

	result := ApprovalResult{OK: true, ApprovalID: approvalID, Kind: approvalKindTool, Decision: decision}
	r.approvals.resolved[key] = result
	return result
}

// ListApprovals returns pending approvals, oldest first.
func (r *Runtime) ListApprovals() ApprovalsView {
	r.approvals.mu.Lock()
	defer r.approvals.mu.Unlock()

	view := ApprovalsView{
		SpawnApprovals: make([]SpawnApprovalView, 0, len(r.approvals.spawns)),
		ToolApprovals:  make([]ToolApprovalView, 0, len(r.approvals.tools)),
	}
	for _, p := range r.approvals.spawns {
		view.SpawnApprovals = append(view.SpawnApprovals, SpawnApprovalView{
			ApprovalID:  p.id,
			CreatedAtMs: unixMs(p.createdAt),
			Request:     p.request,
			Reason:      p.reason,
		})
	}
	for _, p := range r.approvals.tools {
		view.ToolApprovals = append(view.ToolApprovals, ToolApprovalView{
			ApprovalID:  p.id,
			CreatedAtMs: unixMs(p.createdAt),
			InstanceID:  p.instanceID,
			MissionID:   p.missionID,
			SessionID:   p.sessionID,
			Tool:        p.invocation.Tool,
			Args:        p.invocation.Args,
			Reason:      p.reason,
		})
	}
	sort.Slice(view.SpawnApprovals, func(i, j int) bool {
		a, b := view.SpawnApprovals[i], view.SpawnApprovals[j]
		if a.CreatedAtMs != b.CreatedAtMs {
			return a.CreatedAtMs < b.CreatedAtMs
		}
		return a.ApprovalID < b.ApprovalID
	})
	sort.Slice(view.ToolApprovals, func(i, j int) bool {
		a, b := view.ToolApprovals[i], view.ToolApprovals[j]
		if a.CreatedAtMs != b.CreatedAtMs {
			return a.CreatedAtMs < b.CreatedAtMs
		}
		return a.ApprovalID < b.ApprovalID
	})
	return view
}

func grantKey(instanceID string, inv domain.ToolInvocation) string {
	// encoding/json sorts map keys, so equal args produce equal keys.
	args, _ := json.Marshal(inv.Args)
	return instanceID + "\x00" + domain.NormalizeTool(inv.Tool) + "\x00" + string(args)
}
