// Package agentteam composes the orchestration model into a concurrent
// runtime: spawn admission, instance lifecycle, usage accounting,
// cancellation cascades and approvals.
package agentteam

import (
	"context"
	"sync"
	"time"

	domain "agentteam/internal/domain/agentteam"
	sharederrors "agentteam/internal/shared/errors"
	"agentteam/internal/shared/logging"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config wires a Runtime. Templates and Events are required.
type Config struct {
	Policy        *domain.SpawnPolicy
	Templates     *domain.Registry
	WorkspaceRoot string
	Events        Publisher
	Launcher      SessionLauncher
	Canceller     SessionCanceller
	Retry         sharederrors.RetryConfig
	LaunchTimeout time.Duration
	CancelTimeout time.Duration
	// StartWait bounds how long Spawn waits for the session to start before
	// returning a queued instance.
	StartWait time.Duration
	Metrics   *Metrics
	Tracer    trace.Tracer
	Logger    logging.Logger
	Clock     func() time.Time
}

// Runtime is the orchestrator API. It is safe for concurrent use.
type Runtime struct {
	policyMu sync.RWMutex
	policy   *domain.SpawnPolicy

	templates     *domain.Registry
	workspaceRoot string
	events        Publisher
	launcher      SessionLauncher
	canceller     SessionCanceller
	retry         sharederrors.RetryConfig
	launchTimeout time.Duration
	cancelTimeout time.Duration
	startWait     time.Duration
	metrics       *Metrics
	tracer        trace.Tracer
	logger        logging.Logger
	now           func() time.Time

	store     *store
	approvals *approvals
	launches  sync.WaitGroup

	// afterToolEval runs between capability evaluation and the denial
	// event. Tests use it to race lifecycle changes against CheckTool.
	afterToolEval func()
}

// New builds a runtime. A nil Policy means no spawn policy is configured and
// every spawn is denied with spawn_policy_missing.
func New(cfg Config) *Runtime {
	r := &Runtime{
		policy:        cfg.Policy,
		templates:     cfg.Templates,
		workspaceRoot: cfg.WorkspaceRoot,
		events:        cfg.Events,
		launcher:      cfg.Launcher,
		canceller:     cfg.Canceller,
		retry:         cfg.Retry,
		launchTimeout: cfg.LaunchTimeout,
		cancelTimeout: cfg.CancelTimeout,
		startWait:     cfg.StartWait,
		metrics:       cfg.Metrics,
		tracer:        cfg.Tracer,
		logger:        logging.OrNop(cfg.Logger),
		now:           cfg.Clock,
		store:         newStore(),
		approvals:     newApprovals(),
	}
	if r.templates == nil {
		r.templates, _ = domain.NewRegistry(nil)
	}
	if r.events == nil {
		r.events = discardPublisher{}
	}
	if r.launcher == nil {
		r.launcher = immediateLauncher{}
	}
	if r.canceller == nil {
		r.canceller = noopCanceller{}
	}
	if r.launchTimeout <= 0 {
		r.launchTimeout = 30 * time.Second
	}
	if r.cancelTimeout <= 0 {
		r.cancelTimeout = 10 * time.Second
	}
	if r.metrics == nil {
		r.metrics = defaultMetrics()
	}
	if r.tracer == nil {
		r.tracer = noop.NewTracerProvider().Tracer("agentteam")
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Policy returns the active spawn policy, or nil when none is configured.
func (r *Runtime) Policy() *domain.SpawnPolicy {
	r.policyMu.RLock()
	defer r.policyMu.RUnlock()
	return r.policy
}

// SetPolicy swaps the spawn policy used for subsequent admissions.
func (r *Runtime) SetPolicy(policy *domain.SpawnPolicy) {
	r.policyMu.Lock()
	r.policy = policy
	r.policyMu.Unlock()
}

// Templates returns the template registry.
func (r *Runtime) Templates() *domain.Registry {
	return r.templates
}

// Wait blocks until in-flight session launches finish. Used on shutdown and in tests.
func (r *Runtime) Wait() {
	r.launches.Wait()
}

func (r *Runtime) emit(e domain.Event) {
	r.events.Publish(e)
}

type discardPublisher struct{}

func (discardPublisher) Publish(e domain.Event) domain.Event { return e }

type immediateLauncher struct{}

func (immediateLauncher) Launch(context.Context, LaunchRequest) (string, error) {
	return "", nil
}

type noopCanceller struct{}

func (noopCanceller) Cancel(context.Context, string) error { return nil }
