package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestNewConfig_WithNilOverride tests that NewConfig creates a config with all default values
// when no override is provided.
func TestNewConfig_WithNilOverride(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(nil)

	require.NotNil(t, cfg)
	assert.Equal(t, createDefaultCfg(), cfg, "must use default values when no config provided")
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_WithAllOverride(t *testing.T) {
	t.Parallel()

	override := createOverride()
	cfg := NewConfig(override)

	expCfg := &Config{
		LogLvl:         util.TraceLevel,
		Threads:        *override.Threads,
		Strategy:       StrategyCoarse,
		QueueSize:      *override.QueueSize,
		QueueMode:      QueueBacklog,
		BacklogSize:    *override.BacklogSize,
		NodeTableSize:  *override.NodeTableSize,
		SocketPath:     *override.SocketPath,
		MetricsAddr:    *override.MetricsAddr,
		MaxMessageSize: *override.MaxMessageSize,
	}
	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields")
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Merge_LogLvlConversion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		verboseValue  int
		expectedLevel util.LogLevel
	}{
		{"verbose_1_error", 1, util.ErrorLevel},
		{"verbose_2_warn", 2, util.WarnLevel},
		{"verbose_3_info", 3, util.InfoLevel},
		{"verbose_4_debug", 4, util.DebugLevel},
		{"verbose_5_trace", 5, util.TraceLevel},
		{"verbose_0_clamped_to_1", 0, util.ErrorLevel},
		{"verbose_100_clamped_to_5", 100, util.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			override := &ConfigOverride{
				LogLvl: &tt.verboseValue,
			}

			cfg := NewConfig(override)

			assert.Equal(t, tt.expectedLevel, cfg.LogLvl,
				"CLI verbose %d should map to util.LogLevel %v", tt.verboseValue, tt.expectedLevel)
		})
	}
}

func TestConfig_Merge_PartialOverride(t *testing.T) {
	t.Parallel()

	override := &ConfigOverride{
		Threads:   util.Pointer(8),
		QueueSize: util.Pointer(DefaultQueueSize + 1),
	}
	cfg := NewConfig(override)

	expCfg := createDefaultCfg()
	expCfg.Threads = 8
	expCfg.QueueSize = DefaultQueueSize + 1

	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields and leave rest default")
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"coarse", StrategyCoarse, false},
		{"mutex", StrategyCoarse, false},
		{"fine", StrategyFine, false},
		{"RWLock", StrategyFine, false},
		{" fine ", StrategyFine, false},
		{"nosync", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero threads", func(c *Config) { c.Threads = 0 }, "Threads"},
		{"negative threads", func(c *Config) { c.Threads = -3 }, "Threads"},
		{"unknown strategy", func(c *Config) { c.Strategy = "nosync" }, "Strategy"},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }, "QueueSize"},
		{"zero backlog", func(c *Config) { c.BacklogSize = 0 }, "BacklogSize"},
		{"bad queue mode", func(c *Config) { c.QueueMode = "ring" }, "QueueMode"},
		{"zero table", func(c *Config) { c.NodeTableSize = 0 }, "NodeTableSize"},
		{"bad metrics addr", func(c *Config) { c.MetricsAddr = "not an address" }, "MetricsAddr"},
		{"tiny message", func(c *Config) { c.MaxMessageSize = 8 }, "MaxMessageSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadConfigOverrideFile(t *testing.T) {
	t.Parallel()

	type tc struct {
		ext   string
		build func() (*ConfigOverride, []byte)
	}

	cases := []tc{
		{
			ext: ".yaml",
			build: func() (*ConfigOverride, []byte) {
				o := createOverride()
				b, err := yaml.Marshal(o)
				require.NoError(t, err)
				return o, b
			},
		},
		{
			ext: ".yml",
			build: func() (*ConfigOverride, []byte) {
				o := createOverride()
				b, err := yaml.Marshal(o)
				require.NoError(t, err)
				return o, b
			},
		},
		{
			ext: ".json",
			build: func() (*ConfigOverride, []byte) {
				o := createOverride()
				b, err := json.Marshal(o)
				require.NoError(t, err)
				return o, b
			},
		},
	}

	for _, c := range cases {
		name := "valid" + c.ext
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			override, data := c.build()
			dir := t.TempDir()
			path := filepath.Join(dir, "override"+c.ext)
			require.NoError(t, os.WriteFile(path, data, 0o600))

			loaded, err := LoadConfigOverrideFile(path)

			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, *override, *loaded)
		})
	}
}

func TestLoadConfigOverrideFile_NonExistentFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "does_not_exist.yaml")

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err), "expected not exist error, got %v", err)
}

func TestLoadConfigOverrideFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "override.txt")
	require.NoError(t, os.WriteFile(path, []byte("threads: 1"), 0o600))

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config file extension")
}

func TestNewConfigFromFile(t *testing.T) {
	t.Parallel()

	t.Run("partial yaml", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "cfg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("threads: 4\nstrategy: mutex\n"), 0o600))

		cfg, err := NewConfigFromFile(path)
		require.NoError(t, err)

		exp := createDefaultCfg()
		exp.Threads = 4
		exp.Strategy = StrategyCoarse
		assert.Equal(t, exp, cfg)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := NewConfigFromFile(filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
	})
}

func createDefaultCfg() *Config {
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

// createOverride makes a ConfigOverride with all non-default values
func createOverride() *ConfigOverride {
	return &ConfigOverride{
		LogLvl:         util.Pointer(TraceVerbose),
		Threads:        util.Pointer(DefaultThreads + 3),
		Strategy:       util.Pointer("mutex"),
		QueueSize:      util.Pointer(DefaultQueueSize + 1),
		QueueMode:      util.Pointer(string(QueueBacklog)),
		BacklogSize:    util.Pointer(DefaultBacklogSize + 1),
		NodeTableSize:  util.Pointer(DefaultNodeTableSize + 1),
		SocketPath:     util.Pointer("/tmp/tecnicofs-test.sock"),
		MetricsAddr:    util.Pointer("127.0.0.1:9190"),
		MaxMessageSize: util.Pointer(DefaultMaxMessageSize * 2),
	}
}
