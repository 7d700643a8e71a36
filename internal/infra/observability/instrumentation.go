package observability

import (
	"context"
	"time"

	"agentteam/internal/app/agentteam"
	"agentteam/internal/shared/logging"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Engine is the session collaborator the runtime drives.
type Engine interface {
	agentteam.SessionLauncher
	agentteam.SessionCanceller
}

// InstrumentedEngine wraps an engine client with spans, metrics and logs.
type InstrumentedEngine struct {
	inner  Engine
	obs    *Observability
	logger logging.Logger
}

// NewInstrumentedEngine wraps inner.
func NewInstrumentedEngine(inner Engine, obs *Observability) *InstrumentedEngine {
	return &InstrumentedEngine{
		inner:  inner,
		obs:    obs,
		logger: logging.NewComponentLogger("EngineClient"),
	}
}

func (e *InstrumentedEngine) Launch(ctx context.Context, req agentteam.LaunchRequest) (string, error) {
	ctx, span := e.obs.Tracer.Tracer().Start(ctx, SpanEngineLaunch)
	defer span.End()
	span.SetAttributes(InstanceAttrs(req.MissionID, req.InstanceID, req.SessionID)...)
	span.SetAttributes(attribute.String(AttrTemplateID, req.TemplateID))

	start := time.Now()
	runID, err := e.inner.Launch(ctx, req)
	latency := time.Since(start)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		e.logger.Warn("launch failed: instance=%s session=%s latency=%s err=%v", req.InstanceID, req.SessionID, latency, err)
		e.obs.Metrics.RecordEngineCall(ctx, "launch", "error", latency)
		return "", err
	}
	e.logger.Debug("launch ok: instance=%s session=%s run=%s", req.InstanceID, req.SessionID, runID)
	e.obs.Metrics.RecordEngineCall(ctx, "launch", "success", latency)
	return runID, nil
}

func (e *InstrumentedEngine) Cancel(ctx context.Context, sessionID string) error {
	ctx, span := e.obs.Tracer.Tracer().Start(ctx, SpanEngineCancel)
	defer span.End()
	span.SetAttributes(attribute.String(AttrSessionID, sessionID))

	start := time.Now()
	err := e.inner.Cancel(ctx, sessionID)
	latency := time.Since(start)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		e.logger.Warn("cancel failed: session=%s err=%v", sessionID, err)
		e.obs.Metrics.RecordEngineCall(ctx, "cancel", "error", latency)
		return err
	}
	e.obs.Metrics.RecordEngineCall(ctx, "cancel", "success", latency)
	return nil
}
