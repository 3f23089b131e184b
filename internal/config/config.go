// Package config loads application configuration from config.yaml and
// the environment and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// Timeout returns the per-attempt generation timeout.
func (c AnthropicConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// JinaConfig holds Jina AI reader and embeddings settings.
type JinaConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	ReaderBaseURL  string  `yaml:"reader_base_url" mapstructure:"reader_base_url"`
	EmbedBaseURL   string  `yaml:"embed_base_url" mapstructure:"embed_base_url"`
	EmbedModel     string  `yaml:"embed_model" mapstructure:"embed_model"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// PipelineConfig configures ingestion and extraction behavior.
type PipelineConfig struct {
	BatchSize       int `yaml:"batch_size" mapstructure:"batch_size"`
	MaxContentChars int `yaml:"max_content_chars" mapstructure:"max_content_chars"`
	MaxConcurrent   int `yaml:"max_concurrent_accounts" mapstructure:"max_concurrent_accounts"`
}

// RateLimitConfig configures the store-backed request limiter.
type RateLimitConfig struct {
	Limit    int   `yaml:"limit" mapstructure:"limit"`
	WindowMs int64 `yaml:"window_ms" mapstructure:"window_ms"`
	// FailClosed denies requests when the store is unreachable instead
	// of the default fail-open behavior.
	FailClosed bool `yaml:"fail_closed" mapstructure:"fail_closed"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ACCOUNTINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "account-intel.db")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("anthropic.max_retries", 3)
	v.SetDefault("jina.reader_base_url", "https://r.jina.ai")
	v.SetDefault("jina.embed_base_url", "https://api.jina.ai/v1/embeddings")
	v.SetDefault("jina.embed_model", "jina-embeddings-v3")
	v.SetDefault("jina.requests_per_sec", 2)
	v.SetDefault("pipeline.batch_size", 3)
	v.SetDefault("pipeline.max_content_chars", 8000)
	v.SetDefault("pipeline.max_concurrent_accounts", 4)
	v.SetDefault("rate_limit.limit", 60)
	v.SetDefault("rate_limit.window_ms", 60000)
	v.SetDefault("rate_limit.fail_closed", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
