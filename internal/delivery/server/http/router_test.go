package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agentteam/internal/app/agentteam"
	"agentteam/internal/app/eventbus"
	domain "agentteam/internal/domain/agentteam"
	"agentteam/internal/infra/teamconfig"
	"agentteam/internal/infra/tools/builtin/orchestration"
	"agentteam/internal/infra/tools/builtin/shared"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routerPolicy = `
enabled: true
max_agents: 4
spawn_edges:
  orchestrator:
    behavior: allow
    can_spawn: [worker]
approval:
  sources: [tool_call]
`

const orchestratorTemplate = `
templateID: orchestrator-default
role: orchestrator
system_prompt: plan and delegate
default_budget:
  max_tokens: 10000
`

type fixture struct {
	runtime *agentteam.Runtime
	bus     *eventbus.Bus
	router  *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	policy, err := teamconfig.ParsePolicy([]byte(routerPolicy))
	require.NoError(t, err)
	tpl, err := teamconfig.ParseTemplate([]byte(orchestratorTemplate))
	require.NoError(t, err)
	registry, err := domain.NewRegistry([]domain.Template{tpl})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	bus := eventbus.New(eventbus.WithHistory(16, 64))
	t.Cleanup(bus.Close)
	rt := agentteam.New(agentteam.Config{
		Policy:    policy,
		Templates: registry,
		Events:    bus,
		StartWait: time.Second,
		Metrics:   agentteam.MustNewMetrics(reg),
	})
	tools := []shared.Tool{orchestration.NewSpawnAgent(rt)}
	router := NewRouter(RouterDeps{Runtime: rt, Bus: bus, Gatherer: reg, Tools: tools}, RouterConfig{HeartbeatInterval: 50 * time.Millisecond})
	return &fixture{runtime: rt, bus: bus, router: router}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSpawnAndQueries(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, APIPrefix+"/spawn", `{"missionID":"m1","templateID":"orchestrator-default","role":"orchestrator","source":"ui_action","justification":"kick off"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "m1", body["missionID"])
	instanceID, _ := body["instanceID"].(string)
	require.NotEmpty(t, instanceID)
	f.runtime.Wait()

	rec = f.do(t, http.MethodGet, APIPrefix+"/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orchestrator-default")

	rec = f.do(t, http.MethodGet, APIPrefix+"/instances?missionID=m1&status=running", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var instances []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &instances))
	require.Len(t, instances, 1)

	rec = f.do(t, http.MethodGet, APIPrefix+"/missions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var missions []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &missions))
	require.Len(t, missions, 1)
	assert.EqualValues(t, 1, missions[0]["runningCount"])

	rec = f.do(t, http.MethodPost, APIPrefix+"/instance/"+instanceID+"/usage", `{"tokens":120,"steps":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])

	rec = f.do(t, http.MethodPost, APIPrefix+"/instance/"+instanceID+"/cancel", `{"reason":"operator"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "cancelled", body["status"])

	rec = f.do(t, http.MethodPost, APIPrefix+"/mission/m1/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"missionID":"m1","cancelledInstances":0}`, rec.Body.String())
}

func TestSpawnDenialKeepsOKStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, APIPrefix+"/spawn", `{"templateID":"missing-template","source":"ui_action"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, string(domain.CodeTemplateMissing), body["code"])
	assert.Equal(t, false, body["requiresUserApproval"])
}

func TestBadRequestsAndNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, APIPrefix+"/spawn", `{"templateID":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(domain.CodeInvalidRequest), decode(t, rec)["code"])

	rec = f.do(t, http.MethodGet, APIPrefix+"/instances?status=sleeping", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, APIPrefix+"/instance/ins-nope/cancel", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(domain.CodeInstanceNotFound), decode(t, rec)["code"])

	rec = f.do(t, http.MethodPost, APIPrefix+"/approvals/spawn/spawn-nope/approve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEngineEventsAndCompletion(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, APIPrefix+"/spawn", `{"missionID":"m2","templateID":"orchestrator-default","source":"ui_action"}`)
	body := decode(t, rec)
	require.Equal(t, true, body["ok"])
	instanceID := body["instanceID"].(string)
	sessionID := body["sessionID"].(string)
	f.runtime.Wait()

	rec = f.do(t, http.MethodPost, APIPrefix+"/engine/events",
		`{"type":"provider.usage","properties":{"sessionID":"`+sessionID+`","totalTokens":250}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])

	rec = f.do(t, http.MethodGet, APIPrefix+"/instances/"+instanceID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	usage := decode(t, rec)["usage"].(map[string]any)
	assert.EqualValues(t, 250, usage["tokensUsed"])

	rec = f.do(t, http.MethodPost, APIPrefix+"/instance/"+instanceID+"/complete", `{"summary":"done"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "completed", body["status"])

	rec = f.do(t, http.MethodPost, APIPrefix+"/instance/"+instanceID+"/fail", `{"reason":"late"}`)
	assert.Equal(t, false, decode(t, rec)["ok"])
}

func TestSpawnApprovalResolvedOverHTTP(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, APIPrefix+"/spawn", `{"missionID":"m3","templateID":"orchestrator-default","source":"tool_call","justification":"needs review"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal(t, false, body["ok"])
	require.Equal(t, true, body["requiresUserApproval"])
	approvalID := body["approvalID"].(string)

	rec = f.do(t, http.MethodGet, APIPrefix+"/approvals", "")
	assert.Contains(t, rec.Body.String(), approvalID)

	rec = f.do(t, http.MethodPost, APIPrefix+"/approvals/spawn/"+approvalID+"/approve", `{"reason":"ok"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	first := rec.Body.String()
	body = decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "approved", body["decision"])
	spawn := body["spawn"].(map[string]any)
	assert.Equal(t, true, spawn["ok"])
	f.runtime.Wait()

	rec = f.do(t, http.MethodPost, APIPrefix+"/approvals/spawn/"+approvalID+"/deny", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, first, rec.Body.String())
}

func TestApprovalsAndHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, APIPrefix+"/approvals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body, "spawnApprovals")
	assert.Contains(t, body, "toolApprovals")

	rec = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSSEStreamDeliversEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+APIPrefix+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	spawn, err := http.Post(srv.URL+APIPrefix+"/spawn", "application/json",
		bytes.NewBufferString(`{"templateID":"orchestrator-default","source":"ui_action"}`))
	require.NoError(t, err)
	spawn.Body.Close()

	var sawRequested, sawHeartbeat bool
	for !(sawRequested && sawHeartbeat) {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line == "event:"+string(domain.EventSpawnRequested)+"\n" {
			sawRequested = true
		}
		if line == ": heartbeat\n" {
			sawHeartbeat = true
		}
	}
}

func TestWebSocketStreamFiltersBySession(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + APIPrefix + "/events/ws?sessionID=session-ui"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for the subscription to register before publishing.
	require.Eventually(t, func() bool { return f.bus.Stats().ActiveSubscribers == 1 }, 2*time.Second, 10*time.Millisecond)

	f.bus.Publish(domain.Event{Type: domain.EventSpawnRequested, SessionID: "other"})
	f.bus.Publish(domain.Event{Type: domain.EventSpawnDenied, SessionID: "session-ui"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var got struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, string(domain.EventSpawnDenied), got.Type)
	assert.Equal(t, "session-ui", got.Properties["sessionID"])
}

func TestToolInvocationUsesSameGate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, APIPrefix+"/spawn", `{"templateID":"orchestrator-default","source":"ui_action"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	parentID, _ := decode(t, rec)["instanceID"].(string)
	require.NotEmpty(t, parentID)
	f.runtime.Wait()

	// No worker template exists, so the tool spawn is denied by the gate.
	rec = f.do(t, http.MethodPost, APIPrefix+"/tools/spawn_agent",
		`{"id":"call-1","instance_id":"`+parentID+`","raw_arguments":"{\"role\":\"worker\",\"justification\":\"help\"}"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, string(domain.CodeTemplateMissing), body["error"])

	rec = f.do(t, http.MethodGet, APIPrefix+"/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "spawn_agent")

	rec = f.do(t, http.MethodPost, APIPrefix+"/tools/nope", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
