package agentteam

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report orchestration activity.
type Metrics struct {
	spawnDecisions    *prometheus.CounterVec
	instanceTerminal  *prometheus.CounterVec
	budgetExhaustions *prometheus.CounterVec
	capabilityDenials *prometheus.CounterVec
	cascadeSize       prometheus.Histogram
	instancesActive   prometheus.Gauge
	approvalsPending  prometheus.Gauge
	launchFailures    prometheus.Counter
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics registered with the global
// Prometheus registry. Collectors are created once so that several runtimes in
// one process do not trip duplicate registration.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs Metrics on the given registerer. Collectors that
// are already registered with the same shape are reused; any other
// registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		spawnDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent_team",
			Subsystem: "spawn",
			Name:      "decisions_total",
			Help:      "Spawn admission outcomes by decision and code.",
		}, []string{"decision", "code"}),
		instanceTerminal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent_team",
			Subsystem: "instance",
			Name:      "terminal_total",
			Help:      "Instances that reached a terminal status.",
		}, []string{"status"}),
		budgetExhaustions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent_team",
			Subsystem: "budget",
			Name:      "exhaustions_total",
			Help:      "Rejected usage reservations by exhausted dimension.",
		}, []string{"exhausted_by"}),
		capabilityDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent_team",
			Subsystem: "capability",
			Name:      "denials_total",
			Help:      "Tool invocations blocked by capability scopes.",
		}, []string{"tool"}),
		cascadeSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agent_team",
			Subsystem: "instance",
			Name:      "cancel_cascade_size",
			Help:      "Number of instances cancelled by one cancellation cascade.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		instancesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agent_team",
			Subsystem: "instance",
			Name:      "active",
			Help:      "Instances that are queued or running.",
		}),
		approvalsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agent_team",
			Subsystem: "approval",
			Name:      "pending",
			Help:      "Spawn and tool approvals waiting for a decision.",
		}),
		launchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agent_team",
			Subsystem: "session",
			Name:      "launch_failures_total",
			Help:      "Session launches that failed after retries.",
		}),
	}

	m.spawnDecisions = register(reg, m.spawnDecisions)
	m.instanceTerminal = register(reg, m.instanceTerminal)
	m.budgetExhaustions = register(reg, m.budgetExhaustions)
	m.capabilityDenials = register(reg, m.capabilityDenials)
	m.cascadeSize = register(reg, m.cascadeSize)
	m.instancesActive = register(reg, m.instancesActive)
	m.approvalsPending = register(reg, m.approvalsPending)
	m.launchFailures = register(reg, m.launchFailures)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) C {
	if err := reg.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}

// ObserveSpawn counts an admission outcome: approved, denied or queued.
func (m *Metrics) ObserveSpawn(decision string, code string) {
	if m == nil || m.spawnDecisions == nil {
		return
	}
	m.spawnDecisions.WithLabelValues(decision, code).Inc()
}

// InstanceAdmitted marks an instance as active.
func (m *Metrics) InstanceAdmitted() {
	if m == nil || m.instancesActive == nil {
		return
	}
	m.instancesActive.Inc()
}

// InstanceEnded records a terminal transition.
func (m *Metrics) InstanceEnded(status string) {
	if m == nil {
		return
	}
	if m.instancesActive != nil {
		m.instancesActive.Dec()
	}
	if m.instanceTerminal != nil {
		m.instanceTerminal.WithLabelValues(status).Inc()
	}
}

// IncBudgetExhausted counts a rejected reservation.
func (m *Metrics) IncBudgetExhausted(exhaustedBy string) {
	if m == nil || m.budgetExhaustions == nil {
		return
	}
	m.budgetExhaustions.WithLabelValues(exhaustedBy).Inc()
}

// IncCapabilityDenied counts a blocked tool invocation.
func (m *Metrics) IncCapabilityDenied(tool string) {
	if m == nil || m.capabilityDenials == nil {
		return
	}
	m.capabilityDenials.WithLabelValues(tool).Inc()
}

// ObserveCascade records how many instances one cancellation reached.
func (m *Metrics) ObserveCascade(size int) {
	if m == nil || m.cascadeSize == nil || size == 0 {
		return
	}
	m.cascadeSize.Observe(float64(size))
}

// SetPendingApprovals reports the approval backlog.
func (m *Metrics) SetPendingApprovals(n int) {
	if m == nil || m.approvalsPending == nil {
		return
	}
	m.approvalsPending.Set(float64(n))
}

// IncLaunchFailure counts a session that could not be started.
func (m *Metrics) IncLaunchFailure() {
	if m == nil || m.launchFailures == nil {
		return
	}
	m.launchFailures.Inc()
}
