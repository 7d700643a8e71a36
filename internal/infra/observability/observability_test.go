package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"agentteam/internal/app/agentteam"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigMergesOverDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
observability:
  logging:
    level: debug
  metrics:
    enabled: false
  tracing:
    enabled: true
    exporter: zipkin
    sample_rate: 0.25
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "zipkin", cfg.Tracing.Exporter)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRate)
	assert.Equal(t, "localhost:4318", cfg.Tracing.OTLPEndpoint)
}

func TestParseConfigWithoutSection(t *testing.T) {
	cfg, err := ParseConfig([]byte("server:\n  port: \"9000\"\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir() + "/absent.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestNewLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "text"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "k=v")
}

func TestDisabledTracingIsNoop(t *testing.T) {
	tp, err := NewTracerProvider(TracingConfig{})
	require.NoError(t, err)
	_, span := tp.Tracer().Start(context.Background(), "x")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestUnsupportedExporter(t *testing.T) {
	_, err := NewTracerProvider(TracingConfig{Enabled: true, Exporter: "jaeger"})
	assert.Error(t, err)
}

func TestMetricsExportToRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetricsCollector(MetricsConfig{Enabled: true}, reg)
	require.NoError(t, err)
	m.RecordHTTPServerRequest(context.Background(), "GET", "/api/agent-team/templates", 200, time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "agent_team_http_requests") {
			found = true
		}
	}
	assert.True(t, found)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestZeroCollectorIsSafe(t *testing.T) {
	var m *MetricsCollector
	m.RecordHTTPServerRequest(context.Background(), "GET", "/", 200, time.Millisecond)
	m.StreamOpened(context.Background(), "sse")
	m.RecordEngineCall(context.Background(), "launch", "success", time.Millisecond)
	assert.NoError(t, m.Shutdown(context.Background()))
}

type fakeEngine struct {
	launchErr error
	cancelled []string
}

func (f *fakeEngine) Launch(context.Context, agentteam.LaunchRequest) (string, error) {
	if f.launchErr != nil {
		return "", f.launchErr
	}
	return "run-1", nil
}

func (f *fakeEngine) Cancel(_ context.Context, sessionID string) error {
	f.cancelled = append(f.cancelled, sessionID)
	return nil
}

func TestInstrumentedEngineRecordsCalls(t *testing.T) {
	var buf bytes.Buffer
	obs := New(Config{Logging: LoggingConfig{Level: "error"}}, prometheus.NewRegistry(), &buf)
	var calls []string
	obs.Metrics.SetTestHooks(MetricsTestHooks{EngineCall: func(op, status string) {
		calls = append(calls, op+":"+status)
	}})

	inner := &fakeEngine{}
	eng := NewInstrumentedEngine(inner, obs)
	runID, err := eng.Launch(context.Background(), agentteam.LaunchRequest{InstanceID: "ins-1"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	require.NoError(t, eng.Cancel(context.Background(), "session-1"))

	inner.launchErr = errors.New("boom")
	_, err = eng.Launch(context.Background(), agentteam.LaunchRequest{})
	require.Error(t, err)

	assert.Equal(t, []string{"launch:success", "cancel:success", "launch:error"}, calls)
	assert.Equal(t, []string{"session-1"}, inner.cancelled)
}
