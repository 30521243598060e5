// Package config provides configuration for the stage-gate engine.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the engine configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Completion endpoint
	CompletionURL    string
	CompletionAPIKey string
	Model            string
	MaxModelTokens   int

	// Loop bounds
	IterationCap int

	// Tool dispatch
	DefaultToolTimeout time.Duration
	BreakerMaxFailures int
	BreakerResetWindow time.Duration

	// Retry policy
	MaxRetries   int
	RetryBackoff time.Duration

	// Deliverable policy
	ExpectedConcepts int

	// Workspace
	WorkspaceRoot string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:        getEnv("DATABASE_URL", "file:stagegate.db?cache=shared&mode=rwc"),
		CompletionURL:      getEnv("COMPLETION_URL", "https://api.anthropic.com"),
		CompletionAPIKey:   getEnv("COMPLETION_API_KEY", ""),
		Model:              getEnv("COMPLETION_MODEL", "claude-sonnet-4-20250514"),
		MaxModelTokens:     getEnvInt("COMPLETION_MAX_TOKENS", 8192),
		IterationCap:       getEnvInt("ITERATION_CAP", 10),
		DefaultToolTimeout: time.Duration(getEnvInt("TOOL_TIMEOUT_MS", 30000)) * time.Millisecond,
		BreakerMaxFailures: getEnvInt("BREAKER_MAX_FAILURES", 3),
		BreakerResetWindow: time.Duration(getEnvInt("BREAKER_RESET_MS", 60000)) * time.Millisecond,
		MaxRetries:         getEnvInt("MAX_RETRIES", 2),
		RetryBackoff:       time.Duration(getEnvInt("RETRY_BACKOFF_MS", 3000)) * time.Millisecond,
		ExpectedConcepts:   getEnvInt("EXPECTED_CONCEPTS", 3),
		WorkspaceRoot:      getEnv("WORKSPACE_ROOT", "./workspaces"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
