package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "account-intel.db", cfg.Store.SQLitePath)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(2048), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 60, cfg.Anthropic.TimeoutSecs)
	assert.Equal(t, 3, cfg.Anthropic.MaxRetries)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.ReaderBaseURL)
	assert.Equal(t, "jina-embeddings-v3", cfg.Jina.EmbedModel)
	assert.Equal(t, 3, cfg.Pipeline.BatchSize)
	assert.Equal(t, 8000, cfg.Pipeline.MaxContentChars)
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, 60, cfg.RateLimit.Limit)
	assert.Equal(t, int64(60000), cfg.RateLimit.WindowMs)
	assert.False(t, cfg.RateLimit.FailClosed)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/intel
pipeline:
  batch_size: 5
rate_limit:
  limit: 10
  fail_closed: true
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/intel", cfg.Store.DatabaseURL)
	assert.Equal(t, 5, cfg.Pipeline.BatchSize)
	assert.Equal(t, 10, cfg.RateLimit.Limit)
	assert.True(t, cfg.RateLimit.FailClosed)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset keys keep their defaults.
	assert.Equal(t, 8000, cfg.Pipeline.MaxContentChars)
}

func TestAnthropicTimeout(t *testing.T) {
	cfg := AnthropicConfig{TimeoutSecs: 90}
	assert.Equal(t, "1m30s", cfg.Timeout().String())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
