package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the PlanCheck server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Storage  StorageConfig
	AI       AIConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// QueueConfig tunes the analysis job pipeline.
type QueueConfig struct {
	MaxAttempts    int
	JobsPerTick    int
	StuckThreshold time.Duration
}

// StorageConfig points at the blob-storage gateway that issues presigned
// upload URLs for screenshots.
type StorageConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

var validProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"mock":      true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PLANCHECK_PORT", 8080),
			Env:  envString("PLANCHECK_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Queue: QueueConfig{
			MaxAttempts:    envInt("QUEUE_MAX_ATTEMPTS", 3),
			JobsPerTick:    envInt("QUEUE_JOBS_PER_TICK", 1),
			StuckThreshold: envDuration("QUEUE_STUCK_THRESHOLD", 5*time.Minute),
		},
		Storage: StorageConfig{
			BaseURL: os.Getenv("STORAGE_BASE_URL"),
			APIKey:  os.Getenv("STORAGE_API_KEY"),
			Timeout: envDuration("STORAGE_TIMEOUT", 15*time.Second),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 120*time.Second),
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  envString("OPENAI_MODEL", "gpt-4o"),
			},
			Anthropic: AnthropicConfig{
				APIKey: os.Getenv("ANTHROPIC_API_KEY"),
				Model:  envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// REDIS_URL is deliberately optional: without it the job store runs
	// unconfigured, where writes fail loudly and reads report empty.
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be at least 1, got %d", c.Queue.MaxAttempts)
	}
	if c.Queue.JobsPerTick < 1 {
		return fmt.Errorf("QUEUE_JOBS_PER_TICK must be at least 1, got %d", c.Queue.JobsPerTick)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, anthropic, mock; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
