package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/tecnicofs/internal/util"
	"gopkg.in/yaml.v3"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	// DefaultThreads is the worker count used when none is given
	DefaultThreads = 1

	DefaultStrategy = StrategyFine

	// DefaultQueueSize is the command queue capacity
	DefaultQueueSize = 10

	DefaultQueueMode = QueueBlocking

	// DefaultBacklogSize is the backlog capacity; the backlog holds a whole script
	DefaultBacklogSize = 150000

	// DefaultNodeTableSize is the node table capacity, root included
	DefaultNodeTableSize = 50

	// DefaultMaxMessageSize bounds a single client request in bytes
	DefaultMaxMessageSize = 1024
)

// CLI verbosity levels, see [util.VerbosityLevel]
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Strategy names a synchronization strategy for the worker pool
type Strategy string

const (
	StrategyCoarse Strategy = "coarse"
	StrategyFine   Strategy = "fine"
)

var strategyAliases = map[string]Strategy{
	"coarse": StrategyCoarse,
	"mutex":  StrategyCoarse,
	"fine":   StrategyFine,
	"rwlock": StrategyFine,
}

// ParseStrategy resolves a strategy name or alias, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	s, ok := strategyAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("unknown strategy %q", name)
	}
	return s, nil
}

// QueueMode selects between the blocking queue and the fill-then-drain backlog
type QueueMode string

const (
	QueueBlocking QueueMode = "blocking"
	QueueBacklog  QueueMode = "backlog"
)

// Config contains runtime configuration values for the filesystem engine.
type Config struct {
	LogLvl util.LogLevel // Internal log level (Default Info)

	Threads        int       `validate:"min=1"`                   // Worker or reader count (Default 1)
	Strategy       Strategy  `validate:"oneof=coarse fine"`       // Batch synchronization strategy (Default fine)
	QueueSize      int       `validate:"min=1"`                   // Command queue capacity (Default 10)
	QueueMode      QueueMode `validate:"oneof=blocking backlog"`  // Queue variant (Default blocking)
	BacklogSize    int       `validate:"min=1"`                   // Backlog capacity in backlog mode (Default 150000)
	NodeTableSize  int       `validate:"min=1"`                   // Node table capacity including root (Default 50)
	SocketPath     string    `validate:"omitempty,max=107"`       // Server socket path, server mode only
	MetricsAddr    string    `validate:"omitempty,hostname_port"` // Prometheus listen address, disabled when empty
	MaxMessageSize int       `validate:"min=64,max=65507"`        // Max request size in bytes (Default 1024)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	LogLvl         *int    `yaml:"log_level,omitempty" json:"log_level,omitempty"` // CLI verbosity 1..5
	Threads        *int    `yaml:"threads,omitempty" json:"threads,omitempty"`
	Strategy       *string `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	QueueSize      *int    `yaml:"queue_size,omitempty" json:"queue_size,omitempty"`
	QueueMode      *string `yaml:"queue_mode,omitempty" json:"queue_mode,omitempty"`
	BacklogSize    *int    `yaml:"backlog_size,omitempty" json:"backlog_size,omitempty"`
	NodeTableSize  *int    `yaml:"node_table_size,omitempty" json:"node_table_size,omitempty"`
	SocketPath     *string `yaml:"socket_path,omitempty" json:"socket_path,omitempty"`
	MetricsAddr    *string `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`
	MaxMessageSize *int    `yaml:"max_message_size,omitempty" json:"max_message_size,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		LogLvl:         DefaultLogLvl,
		Threads:        DefaultThreads,
		Strategy:       DefaultStrategy,
		QueueSize:      DefaultQueueSize,
		QueueMode:      DefaultQueueMode,
		BacklogSize:    DefaultBacklogSize,
		NodeTableSize:  DefaultNodeTableSize,
		MaxMessageSize: DefaultMaxMessageSize,
	}
}

// NewConfig returns the defaults with override applied. A nil override is allowed.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// Unknown strategy names are kept verbatim so [Config.Validate] can report them.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = util.VerbosityLevel(*override.LogLvl)
	}
	if override.Threads != nil {
		c.Threads = *override.Threads
	}
	if override.Strategy != nil {
		if s, err := ParseStrategy(*override.Strategy); err == nil {
			c.Strategy = s
		} else {
			c.Strategy = Strategy(*override.Strategy)
		}
	}
	if override.QueueSize != nil {
		c.QueueSize = *override.QueueSize
	}
	if override.QueueMode != nil {
		c.QueueMode = QueueMode(strings.ToLower(*override.QueueMode))
	}
	if override.BacklogSize != nil {
		c.BacklogSize = *override.BacklogSize
	}
	if override.NodeTableSize != nil {
		c.NodeTableSize = *override.NodeTableSize
	}
	if override.SocketPath != nil {
		c.SocketPath = *override.SocketPath
	}
	if override.MetricsAddr != nil {
		c.MetricsAddr = *override.MetricsAddr
	}
	if override.MaxMessageSize != nil {
		c.MaxMessageSize = *override.MaxMessageSize
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
