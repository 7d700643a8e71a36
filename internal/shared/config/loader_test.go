package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func filesMap(files map[string]string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		if data, ok := files[path]; ok {
			return []byte(data), nil
		}
		return nil, os.ErrNotExist
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, path, err := Load(
		WithEnv(envMap(map[string]string{ConfigPathEnv: "/etc/agent-team.yaml"})),
		WithReadFile(filesMap(nil)),
	)
	require.NoError(t, err)
	assert.Equal(t, "/etc/agent-team.yaml", path)
	assert.Equal(t, Default(), cfg)
}

func TestLoadExpandsEnvAndOverlaysDefaults(t *testing.T) {
	raw := `
server:
  port: "${TEAM_PORT}"
  allowed_origins: ["https://${TEAM_HOST}"]
workspace:
  root: /srv/project
audit:
  database_url: ${TEAM_DB}
engine:
  base_url: http://engine.local
  timeout: 3s
`
	cfg, _, err := Load(
		WithConfigPath("/cfg.yaml"),
		WithReadFile(filesMap(map[string]string{"/cfg.yaml": raw})),
		WithEnv(envMap(map[string]string{
			"TEAM_PORT": "9001",
			"TEAM_HOST": "ui.example.com",
			"TEAM_DB":   "postgres://db/agent_team",
		})),
	)
	require.NoError(t, err)
	assert.Equal(t, "9001", cfg.Server.Port)
	assert.Equal(t, []string{"https://ui.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres://db/agent_team", cfg.Audit.DatabaseURL)
	assert.Equal(t, 3*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 500, cfg.Events.HistoryPerSession)
	assert.Equal(t, "/srv/project/.agent-team/spawn-policy.yaml", cfg.Workspace.ResolvedPolicyPath())
	assert.Equal(t, "/srv/project/.agent-team/templates", cfg.Workspace.ResolvedTemplatesDir())
}

func TestLoadRejectsInvalidEngineURL(t *testing.T) {
	raw := "engine:\n  base_url: engine.local\n"
	_, _, err := Load(
		WithConfigPath("/cfg.yaml"),
		WithReadFile(filesMap(map[string]string{"/cfg.yaml": raw})),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.base_url")
}

func TestResolveConfigPathPrefersHome(t *testing.T) {
	path := ResolveConfigPath(
		envMap(nil),
		func() (string, error) { return "/home/dev", nil },
		filesMap(map[string]string{"/home/dev/.agent-team/config.yaml": "server: {}"}),
	)
	assert.Equal(t, "/home/dev/.agent-team/config.yaml", path)
}
