// Package config loads the engine configuration from defaults, an optional
// YAML file, and environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete nodeflow configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// EngineConfig holds execution defaults.
type EngineConfig struct {
	NodeTimeout  time.Duration `yaml:"node_timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	MaxToolCalls int           `yaml:"max_tool_calls"`
}

// DatabaseConfig selects the workflow repository backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig configures the run store.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	RunTTL    time.Duration `yaml:"run_ttl"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			NodeTimeout:  60 * time.Second,
			MaxRetries:   0,
			RetryBackoff: time.Second,
			MaxToolCalls: 10,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "nodeflow.db",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "nodeflow:",
			RunTTL:    24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (when
// non-empty), then NODEFLOW_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envString("NODEFLOW_DATABASE_DRIVER", &c.Database.Driver)
	envString("NODEFLOW_DATABASE_DSN", &c.Database.DSN)
	envString("NODEFLOW_REDIS_ADDR", &c.Redis.Addr)
	envString("NODEFLOW_REDIS_PASSWORD", &c.Redis.Password)
	envInt("NODEFLOW_REDIS_DB", &c.Redis.DB)
	envString("NODEFLOW_REDIS_KEY_PREFIX", &c.Redis.KeyPrefix)
	envDuration("NODEFLOW_REDIS_RUN_TTL", &c.Redis.RunTTL)
	envDuration("NODEFLOW_ENGINE_NODE_TIMEOUT", &c.Engine.NodeTimeout)
	envInt("NODEFLOW_ENGINE_MAX_RETRIES", &c.Engine.MaxRetries)
	envDuration("NODEFLOW_ENGINE_RETRY_BACKOFF", &c.Engine.RetryBackoff)
	envInt("NODEFLOW_ENGINE_MAX_TOOL_CALLS", &c.Engine.MaxToolCalls)
	envString("NODEFLOW_LOG_LEVEL", &c.Log.Level)
	envString("NODEFLOW_LOG_FORMAT", &c.Log.Format)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("invalid database driver %q", c.Database.Driver)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q (json or console)", c.Log.Format)
	}
	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must be non-negative")
	}
	if c.Engine.MaxToolCalls <= 0 {
		return fmt.Errorf("engine.max_tool_calls must be positive")
	}
	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
