package agentteam

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// CapabilitySpec restricts what an instance's tools may do. Nil sections are
// unrestricted, except secrets which must be granted explicitly.
type CapabilitySpec struct {
	ToolAllowlist []string   `json:"tool_allowlist,omitempty" yaml:"tool_allowlist"`
	ToolDenylist  []string   `json:"tool_denylist,omitempty" yaml:"tool_denylist"`
	FSScopes      *FSScopes  `json:"fs_scopes,omitempty" yaml:"fs_scopes"`
	NetScopes     *NetScopes `json:"net_scopes,omitempty" yaml:"net_scopes"`
	SecretsScopes []string   `json:"secrets_scopes,omitempty" yaml:"secrets_scopes"`
	GitCaps       *GitCaps   `json:"git_caps,omitempty" yaml:"git_caps"`
}

// FSScopes lists workspace-relative path prefixes.
type FSScopes struct {
	Read  []string `json:"read,omitempty" yaml:"read"`
	Write []string `json:"write,omitempty" yaml:"write"`
}

// NetScopes controls outbound network tools.
type NetScopes struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	AllowHosts []string `json:"allow_hosts,omitempty" yaml:"allow_hosts"`
}

// GitCaps controls git operations run through the shell tool.
type GitCaps struct {
	Read                 bool `json:"read" yaml:"read"`
	Commit               bool `json:"commit" yaml:"commit"`
	Push                 bool `json:"push" yaml:"push"`
	PushRequiresApproval bool `json:"push_requires_approval" yaml:"push_requires_approval"`
}

// ToolInvocation is one attempted tool call.
type ToolInvocation struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolDecision is the outcome of a capability check.
type ToolDecision struct {
	Tool             string `json:"tool"`
	Allowed          bool   `json:"allowed"`
	RequiresApproval bool   `json:"requiresApproval,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

var (
	readTools  = map[string]struct{}{"read": {}, "glob": {}, "grep": {}, "codesearch": {}, "lsp": {}, "list": {}}
	writeTools = map[string]struct{}{"write": {}, "edit": {}, "multiedit": {}, "apply_patch": {}}
	netTools   = map[string]struct{}{"websearch": {}, "webfetch": {}, "webfetch_document": {}}
	authTools  = map[string]struct{}{"auth": {}, "secrets": {}}
)

// NormalizeTool lower-cases a tool name, maps dashes to underscores and
// folds known aliases.
func NormalizeTool(name string) string {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	switch n {
	case "todowrite", "todo_write", "update_todo_list":
		return "todo_write"
	case "web_fetch":
		return "webfetch"
	case "web_search":
		return "websearch"
	}
	return n
}

// IsAllowed reports whether the instance may use the capability at all,
// without call arguments.
func IsAllowed(inst Instance, capabilityID string) bool {
	return EvaluateTool(inst.Capabilities, "", ToolInvocation{Tool: capabilityID}).Allowed
}

// EvaluateTool checks a tool call against spec. workspaceRoot anchors
// relative paths; it may be empty when no path arguments are involved.
func EvaluateTool(spec CapabilitySpec, workspaceRoot string, inv ToolInvocation) ToolDecision {
	tool := NormalizeTool(inv.Tool)
	deny := func(format string, args ...any) ToolDecision {
		return ToolDecision{Tool: tool, Reason: fmt.Sprintf(format, args...)}
	}

	if containsTool(spec.ToolDenylist, tool) {
		return deny("tool `%s` denied by agent capability policy", tool)
	}
	if len(spec.ToolAllowlist) > 0 && !containsTool(spec.ToolAllowlist, tool) {
		return deny("tool `%s` not in agent allowlist", tool)
	}

	if _, ok := netTools[tool]; ok && spec.NetScopes != nil {
		if !spec.NetScopes.Enabled {
			return deny("network access disabled for this agent (tool `%s`)", tool)
		}
		if len(spec.NetScopes.AllowHosts) > 0 {
			if tool == "websearch" {
				return deny("tool `websearch` blocked: agent network scope is restricted to allow_hosts")
			}
			host := hostArg(inv.Args)
			if host == "" || !hostAllowed(spec.NetScopes.AllowHosts, host) {
				return deny("host `%s` not in agent network allowlist", host)
			}
		}
	}

	if tool == "bash" || tool == "shell" {
		if d, denied := evaluateGit(spec.GitCaps, stringArg(inv.Args, "command", "cmd")); denied {
			d.Tool = tool
			return d
		}
	}

	_, isRead := readTools[tool]
	_, isWrite := writeTools[tool]
	if (isRead || isWrite) && spec.FSScopes != nil {
		target := stripGlob(stringArg(inv.Args, "path", "filePath", "file_path", "pattern"))
		scopes, mode := spec.FSScopes.Read, "read"
		if isWrite {
			scopes, mode = spec.FSScopes.Write, "write"
		}
		if !pathInScopes(workspaceRoot, target, scopes) {
			if target == "" {
				target = "."
			}
			return deny("%s access to `%s` outside agent fs scopes", mode, target)
		}
	}

	if _, ok := authTools[tool]; ok {
		alias := stringArg(inv.Args, "alias", "provider", "name")
		if len(spec.SecretsScopes) == 0 {
			return deny("no secrets scopes granted to this agent")
		}
		if alias != "" && !containsFold(spec.SecretsScopes, alias) {
			return deny("secret alias `%s` not in agent secrets scopes", alias)
		}
	}

	return ToolDecision{Tool: tool, Allowed: true}
}

func evaluateGit(caps *GitCaps, command string) (ToolDecision, bool) {
	if caps == nil || command == "" {
		return ToolDecision{}, false
	}
	cmd := strings.Join(strings.Fields(strings.ToLower(command)), " ")
	switch {
	case strings.Contains(cmd, "git push"):
		if !caps.Push {
			return ToolDecision{Reason: "git push not permitted for this agent"}, true
		}
		if caps.PushRequiresApproval {
			return ToolDecision{RequiresApproval: true, Reason: "git push requires user approval"}, true
		}
	case strings.Contains(cmd, "git commit"):
		if !caps.Commit {
			return ToolDecision{Reason: "git commit not permitted for this agent"}, true
		}
	case strings.HasPrefix(cmd, "git ") || strings.Contains(cmd, " git "):
		if !caps.Read && !caps.Commit && !caps.Push {
			return ToolDecision{Reason: "git access not permitted for this agent"}, true
		}
	}
	return ToolDecision{}, false
}

func containsTool(list []string, tool string) bool {
	for _, entry := range list {
		n := NormalizeTool(entry)
		if n == "*" || n == tool {
			return true
		}
	}
	return false
}

func containsFold(list []string, value string) bool {
	for _, entry := range list {
		if strings.EqualFold(strings.TrimSpace(entry), value) {
			return true
		}
	}
	return false
}

func stringArg(args map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := args[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func hostArg(args map[string]any) string {
	raw := stringArg(args, "url", "uri", "host")
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	return strings.ToLower(raw)
}

func hostAllowed(allowed []string, host string) bool {
	for _, entry := range allowed {
		h := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(entry), "*."))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func stripGlob(p string) string {
	if i := strings.IndexAny(p, "*?[{"); i >= 0 {
		p = p[:i]
	}
	return p
}

func pathInScopes(root, target string, scopes []string) bool {
	if len(scopes) == 0 {
		return false
	}
	if root == "" {
		root = "."
	}
	abs := func(p string) string {
		if p == "" {
			p = "."
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		return filepath.Clean(p)
	}
	resolved := abs(target)
	for _, scope := range scopes {
		base := abs(stripGlob(scope))
		rel, err := filepath.Rel(base, resolved)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}
