package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sharederrors "agentteam/internal/shared/errors"
)

// Config is the server configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Events    EventsConfig    `yaml:"events"`
	Audit     AuditConfig     `yaml:"audit"`
	Engine    EngineConfig    `yaml:"engine"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Deployment "production" switches gin to release mode.
	Deployment string `yaml:"deployment"`
}

// WorkspaceConfig locates the spawn policy and templates.
type WorkspaceConfig struct {
	Root         string `yaml:"root"`
	PolicyPath   string `yaml:"policy_path"`
	TemplatesDir string `yaml:"templates_dir"`
}

// EventsConfig sizes the event bus history.
type EventsConfig struct {
	HistorySessions   int `yaml:"history_sessions"`
	HistoryPerSession int `yaml:"history_per_session"`
}

// AuditConfig enables audit sinks. Empty values disable the sink.
type AuditConfig struct {
	FilePath    string `yaml:"file_path"`
	DatabaseURL string `yaml:"database_url"`
}

// EngineConfig points at the execution collaborator.
type EngineConfig struct {
	BaseURL string                   `yaml:"base_url"`
	Token   string                   `yaml:"token"`
	Timeout time.Duration            `yaml:"timeout"`
	Retry   sharederrors.RetryConfig `yaml:"retry"`
}

const agentTeamDir = ".agent-team"

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Workspace: WorkspaceConfig{Root: "."},
		Events: EventsConfig{
			HistorySessions:   256,
			HistoryPerSession: 500,
		},
		Engine: EngineConfig{
			Timeout: 15 * time.Second,
			Retry:   sharederrors.DefaultRetryConfig(),
		},
	}
}

// ResolvedPolicyPath returns the spawn policy location, relative paths resolved
// against the workspace root.
func (w WorkspaceConfig) ResolvedPolicyPath() string {
	if p := strings.TrimSpace(w.PolicyPath); p != "" {
		return w.resolve(p)
	}
	return filepath.Join(w.root(), agentTeamDir, "spawn-policy.yaml")
}

// ResolvedTemplatesDir returns the template directory location.
func (w WorkspaceConfig) ResolvedTemplatesDir() string {
	if p := strings.TrimSpace(w.TemplatesDir); p != "" {
		return w.resolve(p)
	}
	return filepath.Join(w.root(), agentTeamDir, "templates")
}

// ResolvedRoot returns the workspace root, defaulting to the working directory.
func (w WorkspaceConfig) ResolvedRoot() string {
	return w.root()
}

func (w WorkspaceConfig) root() string {
	if r := strings.TrimSpace(w.Root); r != "" {
		return r
	}
	return "."
}

func (w WorkspaceConfig) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.root(), p)
}

// Validate reports configuration errors that would prevent startup.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Events.HistorySessions < 0 || c.Events.HistoryPerSession < 0 {
		return fmt.Errorf("events history sizes must not be negative")
	}
	if c.Engine.Retry.MaxAttempts < 0 {
		return fmt.Errorf("engine.retry.max_attempts must not be negative")
	}
	if base := strings.TrimSpace(c.Engine.BaseURL); base != "" &&
		!strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return fmt.Errorf("engine.base_url must be an http(s) URL: %q", base)
	}
	return nil
}
