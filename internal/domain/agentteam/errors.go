package agentteam

import "errors"

var (
	ErrInstanceNotFound   = errors.New("instance not found")
	ErrMissionNotFound    = errors.New("mission not found")
	ErrApprovalNotFound   = errors.New("approval not found")
	ErrInstanceClosed     = errors.New("instance is terminal")
	ErrInstanceNotRunning = errors.New("instance is not running")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrRollupDiverged     = errors.New("mission rollup diverged from instance usage")
	ErrNegativeUsage      = errors.New("usage delta must not be negative")
)

// DenyCode is a stable, machine-readable failure code.
type DenyCode string

const (
	CodePolicyMissing         DenyCode = "spawn_policy_missing"
	CodePolicyDisabled        DenyCode = "spawn_policy_disabled"
	CodeTemplateMissing       DenyCode = "template_missing"
	CodeParentMissing         DenyCode = "spawn_parent_missing"
	CodeMissionClosed         DenyCode = "mission_closed"
	CodeJustificationRequired DenyCode = "spawn_justification_required"
	CodeMaxAgentsExceeded     DenyCode = "spawn_max_agents_exceeded"
	CodeMaxConcurrentExceeded DenyCode = "spawn_max_concurrent_exceeded"
	CodeCapabilityDenied      DenyCode = "capability_denied"
	CodeRequiredSkillMissing  DenyCode = "spawn_required_skill_missing"
	CodeSkillSourceDenied     DenyCode = "spawn_skill_source_denied"
	CodeSkillHashMismatch     DenyCode = "spawn_skill_hash_mismatch"
	CodeMissionBudgetExceeded DenyCode = "spawn_mission_budget_exceeded"
	CodeRequiresApproval      DenyCode = "spawn_requires_approval"
	CodeApprovalDenied        DenyCode = "spawn_approval_denied"
	CodeSessionStartFailed    DenyCode = "session_start_failed"
	CodeInvalidRequest        DenyCode = "invalid_request"
	CodeInstanceNotFound      DenyCode = "instance_not_found"
	CodeMissionNotFound       DenyCode = "mission_not_found"
	CodeApprovalNotFound      DenyCode = "approval_not_found"
	CodeInstanceNotRunning    DenyCode = "instance_not_running"
	CodeBudgetExhausted       DenyCode = "budget_exhausted"
	CodeInternal              DenyCode = "internal_error"
)
