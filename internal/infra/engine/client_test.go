package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agentteam/internal/app/agentteam"
	sharederrors "agentteam/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLaunchAndCancel(t *testing.T) {
	var cancelled string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/sessions":
			var req agentteam.LaunchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ins-1", req.InstanceID)
			_ = json.NewEncoder(w).Encode(map[string]string{"runID": "run-42"})
		case "/sessions/session-1/cancel":
			cancelled = "session-1"
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", time.Second, nil)
	runID, err := c.Launch(context.Background(), agentteam.LaunchRequest{InstanceID: "ins-1", SessionID: "session-1"})
	require.NoError(t, err)
	assert.Equal(t, "run-42", runID)

	require.NoError(t, c.Cancel(context.Background(), "session-1"))
	assert.Equal(t, "session-1", cancelled)
}

func TestClientClassifiesStatus(t *testing.T) {
	status := http.StatusServiceUnavailable
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", status)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", time.Second, nil)

	_, err := c.Launch(context.Background(), agentteam.LaunchRequest{})
	require.Error(t, err)
	assert.True(t, sharederrors.IsTransient(err))

	status = http.StatusBadRequest
	_, err = c.Launch(context.Background(), agentteam.LaunchRequest{})
	require.Error(t, err)
	assert.False(t, sharederrors.IsTransient(err))
}

func TestLocalLauncher(t *testing.T) {
	l := NewLocal(nil)
	runID, err := l.Launch(context.Background(), agentteam.LaunchRequest{InstanceID: "ins-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.NoError(t, l.Cancel(context.Background(), "session-1"))
}
