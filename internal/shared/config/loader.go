package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPathEnv overrides the config file location.
const ConfigPathEnv = "AGENT_TEAM_CONFIG_PATH"

// EnvLookup resolves an environment variable.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup reads the process environment.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

type loadOptions struct {
	configPath string
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	homeDir    func() (string, error)
}

// Option customizes Load.
type Option func(*loadOptions)

// WithConfigPath loads from an explicit path.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) { o.configPath = path }
}

// WithEnv injects the environment lookup used for path resolution and ${VAR} expansion.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		if lookup != nil {
			o.envLookup = lookup
		}
	}
}

// WithReadFile injects the file reader.
func WithReadFile(read func(string) ([]byte, error)) Option {
	return func(o *loadOptions) {
		if read != nil {
			o.readFile = read
		}
	}
}

// WithHomeDir injects the home directory resolver.
func WithHomeDir(home func() (string, error)) Option {
	return func(o *loadOptions) {
		if home != nil {
			o.homeDir = home
		}
	}
}

// Load reads the YAML config file over Default() and returns the path used.
// A missing file yields the defaults.
func Load(opts ...Option) (Config, string, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookup,
		readFile:  os.ReadFile,
		homeDir:   os.UserHomeDir,
	}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := Default()
	configPath := strings.TrimSpace(options.configPath)
	if configPath == "" {
		configPath = ResolveConfigPath(options.envLookup, options.homeDir, options.readFile)
	}
	if configPath == "" {
		return cfg, "", nil
	}

	data, err := options.readFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, configPath, nil
		}
		return cfg, configPath, fmt.Errorf("read config file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, configPath, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), configPath, fmt.Errorf("parse config file: %w", err)
	}

	cfg = expandConfigEnv(options.envLookup, cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, configPath, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, configPath, nil
}

// ResolveConfigPath returns the first candidate location: the env override,
// then ~/.agent-team/config.yaml, then ./configs/config.yaml.
func ResolveConfigPath(lookup EnvLookup, homeDir func() (string, error), readFile func(string) ([]byte, error)) string {
	if lookup == nil {
		lookup = DefaultEnvLookup
	}
	if value, ok := lookup(ConfigPathEnv); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	candidates := make([]string, 0, 2)
	if homeDir != nil {
		if home, err := homeDir(); err == nil && strings.TrimSpace(home) != "" {
			candidates = append(candidates, filepath.Join(home, agentTeamDir, "config.yaml"))
		}
	}
	candidates = append(candidates, filepath.Join("configs", "config.yaml"))
	if readFile == nil {
		return candidates[0]
	}
	for _, candidate := range candidates {
		if _, err := readFile(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func expandConfigEnv(lookup EnvLookup, cfg Config) Config {
	cfg.Server.Port = expandEnvValue(lookup, cfg.Server.Port)
	if len(cfg.Server.AllowedOrigins) > 0 {
		origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
		for _, origin := range cfg.Server.AllowedOrigins {
			origins = append(origins, expandEnvValue(lookup, origin))
		}
		cfg.Server.AllowedOrigins = origins
	}
	cfg.Workspace.Root = expandEnvValue(lookup, cfg.Workspace.Root)
	cfg.Workspace.PolicyPath = expandEnvValue(lookup, cfg.Workspace.PolicyPath)
	cfg.Workspace.TemplatesDir = expandEnvValue(lookup, cfg.Workspace.TemplatesDir)
	cfg.Audit.FilePath = expandEnvValue(lookup, cfg.Audit.FilePath)
	cfg.Audit.DatabaseURL = expandEnvValue(lookup, cfg.Audit.DatabaseURL)
	cfg.Engine.BaseURL = expandEnvValue(lookup, cfg.Engine.BaseURL)
	cfg.Engine.Token = expandEnvValue(lookup, cfg.Engine.Token)
	return cfg
}

// expandEnvValue replaces ${VAR} and $VAR references. Unknown variables expand to "".
func expandEnvValue(lookup EnvLookup, value string) string {
	if !strings.Contains(value, "$") {
		return value
	}
	return os.Expand(value, func(key string) string {
		if lookup == nil {
			return ""
		}
		v, _ := lookup(key)
		return v
	})
}
