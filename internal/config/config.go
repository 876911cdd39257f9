// Package config provides configuration loading for jxr.
//
// Configuration is assembled from hardcoded defaults, an optional YAML file
// and JXR_* environment variables. The match cap and the exclusion globs are
// fixed and never read from the file or the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// MaxMatches is the number of retained matches after which a search is truncated.
const MaxMatches = 1000

// ExcludeGlobs are passed to the engine on every search to skip translation catalogs.
var ExcludeGlobs = []string{"!*.po", "!*.pot"}

// Config holds the complete jxr configuration.
type Config struct {
	CodeDir   string          `koanf:"code_dir"`
	Server    ServerConfig    `koanf:"server"`
	Engine    EngineConfig    `koanf:"engine"`
	Search    SearchConfig    `koanf:"search"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// EngineConfig controls how the search engine subprocess is run.
type EngineConfig struct {
	Binary  string        `koanf:"binary"`
	Timeout time.Duration `koanf:"timeout"`
}

// SearchConfig holds result aggregation settings.
type SearchConfig struct {
	// MaxConcurrent is the number of engine processes allowed to run at once.
	// 1 serializes every search system-wide.
	MaxConcurrent int `koanf:"max_concurrent"`

	MaxMatches   int      `koanf:"-"`
	ExcludeGlobs []string `koanf:"-"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry settings. Prometheus metrics are
// served on /metrics regardless of Enabled, which only controls OTLP export.
type TelemetryConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Endpoint       string        `koanf:"endpoint"`
	Protocol       string        `koanf:"protocol"` // "http/protobuf" or "grpc"
	Insecure       bool          `koanf:"insecure"`
	ServiceName    string        `koanf:"service_name"`
	SamplingRate   float64       `koanf:"sampling_rate"`
	ExportMetrics  bool          `koanf:"export_metrics"`
	ExportInterval time.Duration `koanf:"export_interval"`
}

// Default returns a configuration populated with defaults. CodeDir is left
// empty since it has no sensible default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		Engine: EngineConfig{
			Binary:  "rg",
			Timeout: 60 * time.Second,
		},
		Search: SearchConfig{
			MaxConcurrent: 1,
			MaxMatches:    MaxMatches,
			ExcludeGlobs:  append([]string(nil), ExcludeGlobs...),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Endpoint:       "localhost:4318",
			Protocol:       "http/protobuf",
			Insecure:       true,
			ServiceName:    "jxr",
			SamplingRate:   1.0,
			ExportMetrics:  false,
			ExportInterval: 15 * time.Second,
		},
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - CodeDir is unset or is not a directory
//   - Server port is not between 1 and 65535
//   - Any timeout is not positive
//   - MaxConcurrent or MaxMatches is below 1
//   - An exclusion glob is malformed
//   - Log format is neither json nor console
func (c *Config) Validate() error {
	if c.CodeDir == "" {
		return errors.New("JXR_CODE_DIR is not set")
	}
	info, err := os.Stat(c.CodeDir)
	if err != nil {
		return fmt.Errorf("code dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("code dir %s is not a directory", c.CodeDir)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Engine.Binary == "" {
		return errors.New("engine binary is required")
	}
	if c.Engine.Timeout <= 0 {
		return errors.New("engine timeout must be positive")
	}

	if c.Search.MaxConcurrent < 1 {
		return fmt.Errorf("search max_concurrent must be >= 1, got %d", c.Search.MaxConcurrent)
	}
	if c.Search.MaxMatches < 1 {
		return fmt.Errorf("search max matches must be >= 1, got %d", c.Search.MaxMatches)
	}
	for i, g := range c.Search.ExcludeGlobs {
		if !doublestar.ValidatePattern(strings.TrimPrefix(g, "!")) {
			return fmt.Errorf("exclude glob[%d] %q is malformed", i, g)
		}
	}

	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got %q", c.Log.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}
