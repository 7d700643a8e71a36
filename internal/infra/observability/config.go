package observability

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the observability section of the server config file.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the configuration used when the file has no
// observability section.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{
			Enabled:        false,
			Exporter:       "otlp",
			OTLPEndpoint:   "localhost:4318",
			SampleRate:     1.0,
			ServiceName:    serviceName,
			ServiceVersion: "dev",
		},
	}
}

// LoadConfig reads the `observability:` key of the config file at path.
// A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return config, fmt.Errorf("read observability config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig merges the observability section of raw over the defaults.
func ParseConfig(raw []byte) (Config, error) {
	config := DefaultConfig()
	var file struct {
		Observability *Config `yaml:"observability"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return config, fmt.Errorf("parse observability config: %w", err)
	}
	if file.Observability == nil {
		return config, nil
	}
	in := file.Observability

	if in.Logging.Level != "" {
		config.Logging.Level = in.Logging.Level
	}
	if in.Logging.Format != "" {
		config.Logging.Format = in.Logging.Format
	}
	config.Metrics.Enabled = in.Metrics.Enabled

	config.Tracing.Enabled = in.Tracing.Enabled
	if in.Tracing.Exporter != "" {
		config.Tracing.Exporter = in.Tracing.Exporter
	}
	if in.Tracing.OTLPEndpoint != "" {
		config.Tracing.OTLPEndpoint = in.Tracing.OTLPEndpoint
	}
	if in.Tracing.ZipkinEndpoint != "" {
		config.Tracing.ZipkinEndpoint = in.Tracing.ZipkinEndpoint
	}
	// sample_rate 0 cannot be expressed; disable tracing instead.
	if in.Tracing.SampleRate > 0 && in.Tracing.SampleRate <= 1.0 {
		config.Tracing.SampleRate = in.Tracing.SampleRate
	}
	if in.Tracing.ServiceName != "" {
		config.Tracing.ServiceName = in.Tracing.ServiceName
	}
	if in.Tracing.ServiceVersion != "" {
		config.Tracing.ServiceVersion = in.Tracing.ServiceVersion
	}
	return config, nil
}
