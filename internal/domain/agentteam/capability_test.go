package agentteam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateToolLists(t *testing.T) {
	spec := CapabilitySpec{
		ToolAllowlist: []string{"read", "bash", "WebFetch"},
		ToolDenylist:  []string{"bash"},
	}

	d := EvaluateTool(spec, "", ToolInvocation{Tool: "Bash"})
	assert.False(t, d.Allowed)
	assert.Equal(t, "tool `bash` denied by agent capability policy", d.Reason)

	d = EvaluateTool(spec, "", ToolInvocation{Tool: "write"})
	assert.False(t, d.Allowed)
	assert.Equal(t, "tool `write` not in agent allowlist", d.Reason)

	d = EvaluateTool(spec, "", ToolInvocation{Tool: "web-fetch", Args: map[string]any{"url": "https://x.dev"}})
	assert.True(t, d.Allowed)
	assert.Equal(t, "webfetch", d.Tool)
}

func TestEvaluateToolNetwork(t *testing.T) {
	off := CapabilitySpec{NetScopes: &NetScopes{Enabled: false}}
	assert.False(t, EvaluateTool(off, "", ToolInvocation{Tool: "websearch"}).Allowed)

	scoped := CapabilitySpec{NetScopes: &NetScopes{Enabled: true, AllowHosts: []string{"github.com"}}}
	assert.True(t, EvaluateTool(scoped, "", ToolInvocation{Tool: "webfetch", Args: map[string]any{"url": "https://api.github.com/repos"}}).Allowed)

	d := EvaluateTool(scoped, "", ToolInvocation{Tool: "webfetch", Args: map[string]any{"url": "https://evil.example/x"}})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "evil.example")

	assert.False(t, EvaluateTool(scoped, "", ToolInvocation{Tool: "websearch"}).Allowed)
	assert.True(t, EvaluateTool(CapabilitySpec{}, "", ToolInvocation{Tool: "websearch"}).Allowed)
}

func TestEvaluateToolGit(t *testing.T) {
	spec := CapabilitySpec{GitCaps: &GitCaps{Read: true, Commit: true, Push: true, PushRequiresApproval: true}}

	d := EvaluateTool(spec, "", ToolInvocation{Tool: "bash", Args: map[string]any{"command": "git  push origin main"}})
	assert.False(t, d.Allowed)
	assert.True(t, d.RequiresApproval)

	assert.True(t, EvaluateTool(spec, "", ToolInvocation{Tool: "bash", Args: map[string]any{"command": "git commit -m x"}}).Allowed)

	noCommit := CapabilitySpec{GitCaps: &GitCaps{Read: true}}
	d = EvaluateTool(noCommit, "", ToolInvocation{Tool: "bash", Args: map[string]any{"command": "git commit -m x"}})
	assert.False(t, d.Allowed)
	assert.False(t, d.RequiresApproval)
	assert.True(t, EvaluateTool(noCommit, "", ToolInvocation{Tool: "bash", Args: map[string]any{"command": "git status"}}).Allowed)
}

func TestEvaluateToolFilesystem(t *testing.T) {
	spec := CapabilitySpec{FSScopes: &FSScopes{Read: []string{"src", "docs/**"}, Write: []string{"src/gen"}}}
	root := "/work"

	assert.True(t, EvaluateTool(spec, root, ToolInvocation{Tool: "read", Args: map[string]any{"filePath": "src/main.go"}}).Allowed)
	assert.True(t, EvaluateTool(spec, root, ToolInvocation{Tool: "glob", Args: map[string]any{"pattern": "docs/*.md"}}).Allowed)
	assert.False(t, EvaluateTool(spec, root, ToolInvocation{Tool: "read", Args: map[string]any{"path": "../etc/passwd"}}).Allowed)
	assert.False(t, EvaluateTool(spec, root, ToolInvocation{Tool: "read", Args: map[string]any{"path": "srcfoo/x"}}).Allowed)
	assert.True(t, EvaluateTool(spec, root, ToolInvocation{Tool: "edit", Args: map[string]any{"path": "/work/src/gen/a.go"}}).Allowed)

	d := EvaluateTool(spec, root, ToolInvocation{Tool: "write", Args: map[string]any{"path": "src/main.go"}})
	assert.False(t, d.Allowed)
	assert.Equal(t, "write access to `src/main.go` outside agent fs scopes", d.Reason)
}

func TestEvaluateToolSecrets(t *testing.T) {
	assert.False(t, EvaluateTool(CapabilitySpec{}, "", ToolInvocation{Tool: "auth"}).Allowed)

	spec := CapabilitySpec{SecretsScopes: []string{"github"}}
	assert.True(t, EvaluateTool(spec, "", ToolInvocation{Tool: "auth", Args: map[string]any{"alias": "GitHub"}}).Allowed)
	assert.False(t, EvaluateTool(spec, "", ToolInvocation{Tool: "auth", Args: map[string]any{"alias": "aws"}}).Allowed)
}

func TestIsAllowed(t *testing.T) {
	inst := Instance{Capabilities: CapabilitySpec{ToolAllowlist: []string{"read"}}}
	assert.True(t, IsAllowed(inst, "read"))
	assert.False(t, IsAllowed(inst, "webfetch"))
}
