package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"agentteam/internal/shared/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestBootstrapFoundationLoadsWorkspace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".agent-team", "spawn-policy.yaml"), "enabled: true\n")
	writeFile(t, filepath.Join(root, ".agent-team", "templates", "worker.yaml"),
		"templateID: worker-default\nrole: worker\nsystem_prompt: do the work\n")
	auditPath := filepath.Join(root, "audit.jsonl")
	configPath := filepath.Join(root, "config.yaml")
	writeFile(t, configPath, "workspace:\n  root: "+root+"\naudit:\n  file_path: "+auditPath+
		"\nobservability:\n  logging:\n    level: error\n  metrics:\n    enabled: false\n")

	f, err := BootstrapFoundation(configPath, logging.Nop())
	require.NoError(t, err)
	defer f.Cleanup(context.Background(), logging.Nop())

	require.NotNil(t, f.Workspace.Policy)
	assert.Equal(t, 1, f.Workspace.Templates.Len())
	assert.True(t, f.Degraded.IsEmpty())
	assert.Len(t, f.Runtime.ListTemplates(), 1)
}

func TestBootstrapFoundationFailsOnMalformedTemplate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".agent-team", "templates", "broken.yaml"), "templateID: [unterminated\n")
	configPath := filepath.Join(root, "config.yaml")
	writeFile(t, configPath, "workspace:\n  root: "+root+"\nobservability:\n  logging:\n    level: error\n")

	_, err := BootstrapFoundation(configPath, logging.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workspace")
}

func TestBootstrapFoundationDegradesWithoutDatabase(t *testing.T) {
	root := t.TempDir()
	configPath := filepath.Join(root, "config.yaml")
	writeFile(t, configPath, "workspace:\n  root: "+root+
		"\naudit:\n  database_url: \"postgres://nobody@127.0.0.1:1/none?connect_timeout=1\"\nobservability:\n  logging:\n    level: error\n  metrics:\n    enabled: false\n")

	f, err := BootstrapFoundation(configPath, logging.Nop())
	require.NoError(t, err)
	defer f.Cleanup(context.Background(), logging.Nop())
	assert.Contains(t, f.Degraded.Map(), "audit-postgres")
}
