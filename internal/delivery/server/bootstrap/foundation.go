package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"agentteam/internal/app/agentteam"
	"agentteam/internal/app/eventbus"
	"agentteam/internal/infra/audit"
	"agentteam/internal/infra/engine"
	"agentteam/internal/infra/observability"
	"agentteam/internal/infra/teamconfig"
	"agentteam/internal/shared/config"
	"agentteam/internal/shared/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Foundation holds the components every server mode needs.
type Foundation struct {
	Config    config.Config
	Obs       *observability.Observability
	Registry  *prometheus.Registry
	Workspace teamconfig.Workspace
	Bus       *eventbus.Bus
	Runtime   *agentteam.Runtime
	Degraded  *DegradedComponents

	stopSinks context.CancelFunc
	pool      *pgxpool.Pool
}

// BootstrapFoundation loads configuration and builds the runtime. Malformed
// policy or template files abort startup.
func BootstrapFoundation(configPath string, logger logging.Logger) (*Foundation, error) {
	f := &Foundation{Degraded: NewDegradedComponents()}
	var resolvedPath string

	required := []BootstrapStage{
		{
			Name: "config", Required: true,
			Init: func() error {
				var opts []config.Option
				if configPath != "" {
					opts = append(opts, config.WithConfigPath(configPath))
				}
				cfg, path, err := config.Load(opts...)
				if err != nil {
					return err
				}
				f.Config, resolvedPath = cfg, path
				return nil
			},
		},
		{
			Name: "observability", Required: true,
			Init: func() error {
				obsConfig, err := observability.LoadConfig(resolvedPath)
				if err != nil {
					return err
				}
				f.Registry = prometheus.NewRegistry()
				f.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				f.Obs = observability.New(obsConfig, f.Registry, os.Stdout)
				return nil
			},
		},
		{
			Name: "workspace", Required: true,
			Init: func() error {
				ws := f.Config.Workspace
				workspace, err := teamconfig.Load(ws.ResolvedRoot(), ws.ResolvedPolicyPath(), ws.ResolvedTemplatesDir(), logger)
				if err != nil {
					return err
				}
				f.Workspace = workspace
				return nil
			},
		},
	}
	if err := RunStages(required, f.Degraded, logger); err != nil {
		return nil, err
	}

	f.Bus = eventbus.New(
		eventbus.WithHistory(f.Config.Events.HistorySessions, f.Config.Events.HistoryPerSession),
		eventbus.WithLogger(logging.NewComponentLogger("EventBus")),
	)
	eng := observability.NewInstrumentedEngine(buildEngine(f.Config.Engine, logger), f.Obs)
	f.Runtime = agentteam.New(agentteam.Config{
		Policy:        f.Workspace.Policy,
		Templates:     f.Workspace.Templates,
		WorkspaceRoot: f.Workspace.Root,
		Events:        f.Bus,
		Launcher:      eng,
		Canceller:     eng,
		Retry:         f.Config.Engine.Retry,
		LaunchTimeout: f.Config.Engine.Timeout,
		StartWait:     2 * time.Second,
		Metrics:       agentteam.MustNewMetrics(f.Registry),
		Tracer:        f.Obs.Tracer.Tracer(),
		Logger:        logging.NewComponentLogger("AgentTeam"),
	})

	var sinkCtx context.Context
	sinkCtx, f.stopSinks = context.WithCancel(context.Background())
	optional := []BootstrapStage{
		{
			Name: "audit-file",
			Init: func() error {
				if f.Config.Audit.FilePath == "" {
					return nil
				}
				sink, err := audit.NewFileSink(f.Config.Audit.FilePath)
				if err != nil {
					return err
				}
				f.attach(sinkCtx, sink, "audit-file")
				return nil
			},
		},
		{
			Name: "audit-postgres",
			Init: func() error {
				if f.Config.Audit.DatabaseURL == "" {
					return nil
				}
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				pool, err := pgxpool.New(ctx, f.Config.Audit.DatabaseURL)
				if err != nil {
					return fmt.Errorf("connect audit database: %w", err)
				}
				sink := audit.NewPostgresSink(pool)
				if err := sink.EnsureSchema(ctx); err != nil {
					pool.Close()
					return err
				}
				f.pool = pool
				f.attach(sinkCtx, sink, "audit-postgres")
				return nil
			},
		},
	}
	if err := RunStages(optional, f.Degraded, logger); err != nil {
		return nil, err
	}
	return f, nil
}

// attach subscribes sink to the bus. The sink is closed when the bus closes.
func (f *Foundation) attach(ctx context.Context, sink audit.Sink, name string) {
	audit.Attach(ctx, f.Bus, sink, name, logging.NewComponentLogger("Audit"))
}

func buildEngine(cfg config.EngineConfig, logger logging.Logger) observability.Engine {
	if cfg.BaseURL == "" {
		logger.Info("No engine base_url configured; sessions are accepted locally")
		return engine.NewLocal(logging.NewComponentLogger("LocalEngine"))
	}
	return engine.NewClient(cfg.BaseURL, cfg.Token, cfg.Timeout, logging.NewComponentLogger("EngineClient"))
}

// Cleanup waits for in-flight launches, then stops the bus, the audit sinks
// and telemetry.
func (f *Foundation) Cleanup(ctx context.Context, logger logging.Logger) {
	f.Runtime.Wait()
	f.Bus.Close()
	f.stopSinks()
	if f.pool != nil {
		f.pool.Close()
	}
	if err := f.Obs.Shutdown(ctx); err != nil {
		logger.Warn("observability shutdown: %v", err)
	}
}
