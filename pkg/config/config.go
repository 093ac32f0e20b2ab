// Package config loads quarry's settings with viper.
//
// Values come from built-in defaults, an optional TOML or YAML file, and
// QUARRY_-prefixed environment variables (engine.planning is
// QUARRY_ENGINE_PLANNING), in increasing precedence. Loading returns a plain
// value; nothing here is global.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/coolbeans/quarry/pkg/engine"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/logging"
	"github.com/coolbeans/quarry/pkg/store"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "QUARRY"

// StrategyAuto selects join strategies per join with the default rule chain.
const StrategyAuto = "auto"

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the resolved configuration.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Store    StoreConfig    `mapstructure:"store"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// EngineConfig tunes query evaluation.
type EngineConfig struct {
	JoinStrategy          string `mapstructure:"join_strategy"`
	HashJoinMinSharedVars int    `mapstructure:"hash_join_min_shared_vars"`
	Planning              bool   `mapstructure:"planning"`
	TimeoutSeconds        int    `mapstructure:"timeout_seconds"`
}

// StoreConfig picks the quad store.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// SnapshotConfig controls snapshot files.
type SnapshotConfig struct {
	Compression string `mapstructure:"compression"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// MetricsConfig toggles the Prometheus observer.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine.join_strategy", StrategyAuto)
	v.SetDefault("engine.hash_join_min_shared_vars", 2)
	v.SetDefault("engine.planning", true)
	v.SetDefault("engine.timeout_seconds", 30)

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.path", "quarry.db")

	v.SetDefault("snapshot.compression", "zstd")

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")

	v.SetDefault("metrics.enabled", false)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the configuration. An empty path uses defaults and the
// environment only.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates the configuration held by v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can act on.
func (c *Config) Validate() error {
	if c.Engine.JoinStrategy != StrategyAuto {
		if _, err := engine.ParseStrategy(c.Engine.JoinStrategy); err != nil {
			return err
		}
	}
	if c.Engine.HashJoinMinSharedVars < 0 {
		return errors.InvalidConfigurationf("engine.hash_join_min_shared_vars must not be negative")
	}
	if c.Engine.TimeoutSeconds < 0 {
		return errors.InvalidConfigurationf("engine.timeout_seconds must not be negative")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.Path == "" {
			return errors.InvalidConfigurationf("store.path is required for the sqlite backend")
		}
	default:
		return errors.InvalidConfigurationf("unknown store backend %q", c.Store.Backend)
	}
	if _, err := store.ParseCompression(c.Snapshot.Compression); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Selector returns the join strategy selector for the configured strategy.
func (c *Config) Selector() (engine.Selector, error) {
	if c.Engine.JoinStrategy == StrategyAuto {
		cfg := engine.DefaultSelectorConfig()
		cfg.HashMinSharedVars = c.Engine.HashJoinMinSharedVars
		return engine.DefaultSelector(cfg), nil
	}
	s, err := engine.ParseStrategy(c.Engine.JoinStrategy)
	if err != nil {
		return nil, err
	}
	return engine.Fixed(s), nil
}

// EngineOptions translates the engine section into engine options.
func (c *Config) EngineOptions() ([]engine.Option, error) {
	sel, err := c.Selector()
	if err != nil {
		return nil, err
	}
	return []engine.Option{
		engine.WithSelector(sel),
		engine.WithPlanning(c.Engine.Planning),
	}, nil
}

// Timeout returns the query timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSeconds) * time.Second
}

// Compression returns the snapshot compression.
func (c *Config) Compression() (store.Compression, error) {
	return store.ParseCompression(c.Snapshot.Compression)
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{JSON: c.Log.JSON, Level: c.Log.Level}
}
