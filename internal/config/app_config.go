package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all application-level configuration loaded from environment
// variables.
type AppConfig struct {
	// AnthropicAPIKey is forwarded to the claude CLI when set.
	// Optional — the claude CLI uses its own stored credentials if not provided.
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`

	// Port is the HTTP server port. Defaults to 8930.
	Port int `envconfig:"PORT" default:"8930"`

	// DataDir is the root data directory. Defaults to ~/.claude-flow.
	DataDir string `envconfig:"FLOW_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// HistoryCapacity bounds the event bus history buffer.
	HistoryCapacity int `envconfig:"FLOW_HISTORY_CAPACITY" default:"1000"`

	// HeartbeatInterval is how often the system.health_check event is emitted.
	HeartbeatInterval time.Duration `envconfig:"FLOW_HEARTBEAT_INTERVAL" default:"30s"`

	// ArchiveRetention is how long archived events are kept before pruning.
	ArchiveRetention time.Duration `envconfig:"FLOW_ARCHIVE_RETENTION" default:"336h"`

	// DefaultModel is the Claude model used by the ask command.
	DefaultModel string `envconfig:"FLOW_DEFAULT_MODEL" default:"sonnet"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.claude-flow if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".claude-flow")
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory (~/.claude-flow/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DBPath returns the path to the event archive database.
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.DataDir, "memory.db")
}

// FlowFile returns the path to the optional flow.yaml settings file.
func (c *AppConfig) FlowFile() string {
	return filepath.Join(c.DataDir, "flow.yaml")
}

// MCPsFile returns the path to the MCP server registry YAML file.
func (c *AppConfig) MCPsFile() string {
	return filepath.Join(c.DataDir, "mcps.yaml")
}
