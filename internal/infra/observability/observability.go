// Package observability wires logging, tracing and OpenTelemetry metrics for
// the agent team server.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Observability bundles the process telemetry components.
type Observability struct {
	Logger  *slog.Logger
	Metrics *MetricsCollector
	Tracer  *TracerProvider
	config  Config
}

// New builds all components from config. Metric and tracing failures are
// logged and degrade to no-ops.
func New(config Config, reg prometheus.Registerer, logOutput io.Writer) *Observability {
	logger := NewLogger(config.Logging, logOutput)

	metrics, err := NewMetricsCollector(config.Metrics, reg)
	if err != nil {
		logger.Error("metrics init failed", "error", err)
		metrics = &MetricsCollector{}
	}
	tracer, err := NewTracerProvider(config.Tracing)
	if err != nil {
		logger.Error("tracing init failed", "error", err)
		tracer = &TracerProvider{}
	}

	logger.Info("observability initialized",
		"log_level", config.Logging.Level,
		"metrics_enabled", config.Metrics.Enabled,
		"tracing_enabled", config.Tracing.Enabled,
	)
	return &Observability{
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tracer,
		config:  config,
	}
}

// Shutdown flushes metrics and spans.
func (o *Observability) Shutdown(ctx context.Context) error {
	var errs []error
	if err := o.Metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	if err := o.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	return errors.Join(errs...)
}

// Config returns the configuration the components were built from.
func (o *Observability) Config() Config {
	return o.config
}
