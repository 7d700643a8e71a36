package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig configures the OpenTelemetry meter.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsCollector records transport and engine metrics through an
// OpenTelemetry meter exported to a Prometheus registry. A zero collector
// records nothing.
type MetricsCollector struct {
	provider *sdkmetric.MeterProvider

	httpRequests metric.Int64Counter
	httpLatency  metric.Float64Histogram

	streamConnections metric.Int64UpDownCounter
	streamMessages    metric.Int64Counter

	engineCalls   metric.Int64Counter
	engineLatency metric.Float64Histogram

	testHooks MetricsTestHooks
}

// MetricsTestHooks lets tests observe recordings without scraping.
type MetricsTestHooks struct {
	HTTPServerRequest func(method, route string, status int, duration time.Duration)
	EngineCall        func(op, status string)
}

// SetTestHooks registers recording callbacks.
func (m *MetricsCollector) SetTestHooks(hooks MetricsTestHooks) {
	if m == nil {
		return
	}
	m.testHooks = hooks
}

// NewMetricsCollector registers the exporter on reg.
func NewMetricsCollector(config MetricsConfig, reg prometheus.Registerer) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(serviceName)
	m := &MetricsCollector{provider: provider}

	if m.httpRequests, err = meter.Int64Counter(
		"agent_team.http.requests.total",
		metric.WithDescription("HTTP requests handled by the server"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create http_requests counter: %w", err)
	}
	if m.httpLatency, err = meter.Float64Histogram(
		"agent_team.http.latency",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create http_latency histogram: %w", err)
	}
	if m.streamConnections, err = meter.Int64UpDownCounter(
		"agent_team.stream.connections",
		metric.WithDescription("Open event stream connections"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, fmt.Errorf("create stream_connections gauge: %w", err)
	}
	if m.streamMessages, err = meter.Int64Counter(
		"agent_team.stream.messages.total",
		metric.WithDescription("Events written to stream clients"),
		metric.WithUnit("{message}"),
	); err != nil {
		return nil, fmt.Errorf("create stream_messages counter: %w", err)
	}
	if m.engineCalls, err = meter.Int64Counter(
		"agent_team.engine.calls.total",
		metric.WithDescription("Calls made to the execution engine"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, fmt.Errorf("create engine_calls counter: %w", err)
	}
	if m.engineLatency, err = meter.Float64Histogram(
		"agent_team.engine.latency",
		metric.WithDescription("Execution engine call latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create engine_latency histogram: %w", err)
	}
	return m, nil
}

// Shutdown stops the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordHTTPServerRequest records one handled request.
func (m *MetricsCollector) RecordHTTPServerRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if hook := m.testHooks.HTTPServerRequest; hook != nil {
		hook(method, route, status, duration)
	}
	if m.httpRequests == nil {
		return
	}
	m.httpRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	))
	m.httpLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
	))
}

// StreamOpened counts a new SSE or websocket client.
func (m *MetricsCollector) StreamOpened(ctx context.Context, transport string) {
	if m == nil || m.streamConnections == nil {
		return
	}
	m.streamConnections.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

// StreamClosed reverses StreamOpened.
func (m *MetricsCollector) StreamClosed(ctx context.Context, transport string) {
	if m == nil || m.streamConnections == nil {
		return
	}
	m.streamConnections.Add(ctx, -1, metric.WithAttributes(attribute.String("transport", transport)))
}

// RecordStreamMessage counts one event delivered to a stream client.
func (m *MetricsCollector) RecordStreamMessage(ctx context.Context, transport, eventType string) {
	if m == nil || m.streamMessages == nil {
		return
	}
	m.streamMessages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("transport", transport),
		attribute.String("event_type", eventType),
	))
}

// RecordEngineCall records one launch or cancel call.
func (m *MetricsCollector) RecordEngineCall(ctx context.Context, op, status string, latency time.Duration) {
	if m == nil {
		return
	}
	if hook := m.testHooks.EngineCall; hook != nil {
		hook(op, status)
	}
	if m.engineCalls == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("op", op), attribute.String("status", status))
	m.engineCalls.Add(ctx, 1, attrs)
	m.engineLatency.Record(ctx, latency.Seconds(), metric.WithAttributes(attribute.String("op", op)))
}
