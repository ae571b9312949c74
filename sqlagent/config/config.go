package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	internal "github.com/nagyist/agentscope/sqlagent"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Agent    AgentConfig    `mapstructure:"agent"`
	NL2SQL   NL2SQLConfig   `mapstructure:"nl2sql"`
}

// DatabaseConfig stores connection details for the embedded database.
type DatabaseConfig struct {
	Path            string `mapstructure:"path"`             // path to the .db file
	MutationAllowed bool   `mapstructure:"mutation_allowed"` // per-call default for query_sqlite
}

// AgentConfig stores reasoning-action loop configuration.
type AgentConfig struct {
	// Budgets
	MaxIterations   int `mapstructure:"max_iterations"`    // reasoning phases per turn
	MaxParseRetries int `mapstructure:"max_parse_retries"` // corrective retries for malformed output

	// Timeouts
	ModelTimeout time.Duration `mapstructure:"model_timeout"` // per model call
	ToolTimeout  time.Duration `mapstructure:"tool_timeout"`  // per tool dispatch

	// Dispatch
	ToolConcurrency int `mapstructure:"tool_concurrency"` // >1 enables concurrent dispatch

	// Completion cache
	CacheEnabled    bool `mapstructure:"cache_enabled"`
	CacheCapacity   int  `mapstructure:"cache_capacity"`
	CacheTTLSeconds int  `mapstructure:"cache_ttl_seconds"`

	// Rate limiting of model calls
	RateLimitEnabled    bool          `mapstructure:"rate_limit_enabled"`
	RateLimitCapacity   int           `mapstructure:"rate_limit_capacity"`
	RateLimitRefillRate time.Duration `mapstructure:"rate_limit_refill_rate"`

	// Telemetry
	EnableTracing bool `mapstructure:"enable_tracing"`

	// Audit persistence of conversation turns
	StoreEnabled bool `mapstructure:"store_enabled"`
}

// NL2SQLConfig stores prompt-builder configuration.
type NL2SQLConfig struct {
	SampleRows       int `mapstructure:"sample_rows"`        // sample rows per table in the schema description
	MaxExamples      int `mapstructure:"max_examples"`       // few-shot example cap
	MaxExampleTokens int `mapstructure:"max_example_tokens"` // token budget for examples
}

// AppConfig is the loaded application configuration.
var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetDefault("database.path", internal.DefaultDatabasePath)
	viper.SetDefault("database.mutation_allowed", false)

	// Loop defaults
	viper.SetDefault("agent.max_iterations", 10)
	viper.SetDefault("agent.max_parse_retries", 3)
	viper.SetDefault("agent.model_timeout", "60s")
	viper.SetDefault("agent.tool_timeout", "30s")
	viper.SetDefault("agent.tool_concurrency", 1)
	viper.SetDefault("agent.cache_enabled", true)
	viper.SetDefault("agent.cache_capacity", 1000)
	viper.SetDefault("agent.cache_ttl_seconds", 3600)
	viper.SetDefault("agent.rate_limit_enabled", true)
	viper.SetDefault("agent.rate_limit_capacity", 10)
	viper.SetDefault("agent.rate_limit_refill_rate", "1s")
	viper.SetDefault("agent.enable_tracing", true)
	viper.SetDefault("agent.store_enabled", true)

	// Prompt-builder defaults
	viper.SetDefault("nl2sql.sample_rows", 3)
	viper.SetDefault("nl2sql.max_examples", 8)
	viper.SetDefault("nl2sql.max_example_tokens", 1200)

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and environment are used.
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
