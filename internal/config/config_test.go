package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/plancheck")
	t.Setenv("AI_PROVIDER", "mock")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, 1, cfg.Queue.JobsPerTick)
	assert.Equal(t, 5*time.Minute, cfg.Queue.StuckThreshold)
	assert.Equal(t, 120*time.Second, cfg.AI.InferenceTimeout)
}

func TestLoad_RedisOptional(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PLANCHECK_PORT", "9090")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "5")
	t.Setenv("QUEUE_STUCK_THRESHOLD", "10m")
	t.Setenv("AI_INFERENCE_TIMEOUT_SECS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Queue.StuckThreshold)
	assert.Equal(t, 30*time.Second, cfg.AI.InferenceTimeout)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AI_PROVIDER", "mock")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_InvalidProvider(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/plancheck")
	t.Setenv("AI_PROVIDER", "bard")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_PROVIDER")
}

func TestLoad_ProviderKeyRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/plancheck")
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoad_InvalidQueueBounds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("QUEUE_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUEUE_MAX_ATTEMPTS")
}

func TestEnvFallbacks_MalformedValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PLANCHECK_PORT", "not-a-number")
	t.Setenv("QUEUE_STUCK_THRESHOLD", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Queue.StuckThreshold)
}
