package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.DefaultModel)
	assert.Equal(t, 4, cfg.Eval.BatchConcurrency)
	assert.Equal(t, 60, cfg.Eval.CompareCacheTTLSeconds)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("EVAL_BATCH_CONCURRENCY", "16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, 16, cfg.Eval.BatchConcurrency)
}

func TestLoad_BadInt(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
}

func TestValidate_MissingRequired(t *testing.T) {
	cfg := &Config{}
	cfg.Eval.BatchConcurrency = 4

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidate_BadConcurrency(t *testing.T) {
	cfg := &Config{}
	cfg.Database.URL = "postgres://localhost/promptlab"
	cfg.Auth.JWTSecret = "secret"
	cfg.Eval.BatchConcurrency = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVAL_BATCH_CONCURRENCY")
}

func TestValidate_OK(t *testing.T) {
	cfg := &Config{}
	cfg.Database.URL = "postgres://localhost/promptlab"
	cfg.Auth.JWTSecret = "secret"
	cfg.Eval.BatchConcurrency = 4

	assert.NoError(t, cfg.Validate())
}
