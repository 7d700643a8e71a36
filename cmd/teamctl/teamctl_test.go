package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serverHTTP "agentteam/internal/delivery/server/http"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	color.NoColor = true

	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestInstancesForwardsFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, serverHTTP.APIPrefix+"/instances", r.URL.Path)
		assert.Equal(t, "m1", r.URL.Query().Get("missionID"))
		assert.Equal(t, "running", r.URL.Query().Get("status"))
		writeBody(w, http.StatusOK, []map[string]any{{
			"instanceID": "ins_1",
			"missionID":  "m1",
			"templateID": "worker-default",
			"role":       "worker",
			"status":     "running",
			"usage":      map[string]any{"tokensUsed": 42},
		}})
	}))
	defer srv.Close()

	out, err := runCLI(t, "--server", srv.URL, "instances", "--mission", "m1", "--status", "running")
	require.NoError(t, err)
	assert.Contains(t, out, "INSTANCE")
	assert.Contains(t, out, "ins_1")
	assert.Contains(t, out, "worker-default")
	assert.Contains(t, out, "42")
}

func TestSpawnSendsOverrideAndReportsDenial(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, serverHTTP.APIPrefix+"/spawn", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeBody(w, http.StatusOK, map[string]any{
			"ok":    false,
			"code":  "template_missing",
			"error": "template `ghost` not found",
		})
	}))
	defer srv.Close()

	out, err := runCLI(t, "--server", srv.URL, "spawn", "--template", "ghost", "--justification", "split work", "--budget", `{"max_tokens":5000}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template_missing")
	assert.Contains(t, out, "denied")

	assert.Equal(t, "ghost", got["templateID"])
	assert.Equal(t, "ui_action", got["source"])
	assert.Equal(t, "split work", got["justification"])
	assert.Equal(t, map[string]any{"max_tokens": float64(5000)}, got["budget_override"])
}

func TestSpawnQueuedForApprovalIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, map[string]any{
			"ok":                   false,
			"code":                 "spawn_requires_approval",
			"error":                "spawn requires user approval",
			"requiresUserApproval": true,
			"approvalID":           "apr_1",
		})
	}))
	defer srv.Close()

	out, err := runCLI(t, "--server", srv.URL, "spawn", "--role", "worker")
	require.NoError(t, err)
	assert.Contains(t, out, "queued approval apr_1")
}

func TestSpawnRequiresTemplateOrRole(t *testing.T) {
	_, err := runCLI(t, "--server", "http://127.0.0.1:1", "spawn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--template or --role")
}

func TestNotFoundSurfacesServerCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, serverHTTP.APIPrefix+"/instances/ins_missing", r.URL.Path)
		writeBody(w, http.StatusNotFound, map[string]any{
			"ok":    false,
			"code":  "instance_not_found",
			"error": "instance `ins_missing` not found",
		})
	}))
	defer srv.Close()

	_, err := runCLI(t, "--server", srv.URL, "instances", "ins_missing")
	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "instance_not_found", apiErr.Code)
}

func TestJSONOutputFromEnvironment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, []map[string]any{{"missionID": "m1", "instanceCount": 3}})
	}))
	defer srv.Close()

	t.Setenv("TEAMCTL_SERVER", srv.URL)
	out, err := runCLI(t, "-o", "json", "missions")
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "m1", decoded[0]["missionID"])
	assert.Contains(t, out, "\n  ")
}

func TestRejectsUnknownOutputFormat(t *testing.T) {
	_, err := runCLI(t, "-o", "yaml", "missions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table or json")
}

func TestApproveAndDenyHitResolutionRoutes(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "looks fine", body["reason"])
		decision := "approved"
		if r.URL.Path == serverHTTP.APIPrefix+"/approvals/tool/apr_2/deny" {
			decision = "denied"
		}
		writeBody(w, http.StatusOK, map[string]any{"ok": true, "approvalID": "apr", "decision": decision})
	}))
	defer srv.Close()

	out, err := runCLI(t, "--server", srv.URL, "approve", "spawn", "apr_1", "--reason", "looks fine")
	require.NoError(t, err)
	assert.Contains(t, out, "approved spawn approval")

	out, err = runCLI(t, "--server", srv.URL, "deny", "tool", "apr_2", "--reason", "looks fine")
	require.NoError(t, err)
	assert.Contains(t, out, "denied tool approval")

	assert.Equal(t, []string{
		serverHTTP.APIPrefix + "/approvals/spawn/apr_1/approve",
		serverHTTP.APIPrefix + "/approvals/tool/apr_2/deny",
	}, paths)
}

func TestCancelMissionPrintsCancelledCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, serverHTTP.APIPrefix+"/mission/m1/cancel", r.URL.Path)
		writeBody(w, http.StatusOK, map[string]any{
			"ok":                 true,
			"missionID":          "m1",
			"cancelledInstances": 2,
		})
	}))
	defer srv.Close()

	out, err := runCLI(t, "--server", srv.URL, "cancel", "mission", "m1", "--reason", "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled mission m1 (2 instances)")
}

func TestWatchPrintsStreamedEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, serverHTTP.APIPrefix+"/events/ws", r.URL.Path)
		assert.Equal(t, "s1", r.URL.Query().Get("sessionID"))
		assert.Equal(t, "true", r.URL.Query().Get("replay"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for seq, typ := range []string{"agent_team.spawn.requested", "agent_team.spawn.denied"} {
			require.NoError(t, conn.WriteJSON(map[string]any{
				"type": typ,
				"seq":  seq + 1,
				"properties": map[string]any{
					"missionID": "m1",
					"code":      "spawn_policy_missing",
				},
			}))
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	out, err := runCLI(t, "--server", srv.URL, "watch", "--session", "s1", "--replay", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "#1 agent_team.spawn.requested mission=m1")
	assert.Contains(t, out, "#2 agent_team.spawn.denied mission=m1 code=spawn_policy_missing")
}

func TestStreamURLUsesWebSocketScheme(t *testing.T) {
	c := newAPIClient("https://team.example.com/", 0)
	target, err := c.streamURL("", false)
	require.NoError(t, err)
	assert.Equal(t, "wss://team.example.com"+serverHTTP.APIPrefix+"/events/ws", target)
}
