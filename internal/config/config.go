// Package config provides configuration management functionality.
//
// Configuration is loaded from environment variables (.env supported) with
// the FIN_AGENT_* prefix. There is no settings-database override layer in
// this system: all configuration is ambient at process start, per the
// single-tenant, locally-hosted deployment model.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv loads a .env file if one is present in the working directory.
// Absence of a .env file is not an error.
func loadDotEnv() {
	_ = godotenv.Load()
}

// Config holds application configuration.
type Config struct {
	// Home is the root directory under which state.db, analytics.db,
	// artifacts/, and logs/ are created. Always resolved to an absolute path.
	Home string

	Port    int
	DevMode bool
	LogLevel string

	// MaxBacktestSeconds / MaxWorldStateSeconds gate the preflight budgeter.
	MaxBacktestSeconds   float64
	MaxWorldStateSeconds float64

	// EncryptionKey is a URL-safe base64, 32-byte key used to encrypt
	// connector session payloads at rest. Empty disables encryption.
	EncryptionKey string

	// S3Bucket, when set, enables best-effort artifact archival after
	// completed code-strategy backtest runs.
	S3Bucket string
	S3Region string
}

// Load reads configuration from environment variables.
//
// homeOverride, when non-empty, takes priority over FIN_AGENT_HOME and the
// built-in default (".finagent" under the current working directory).
func Load(homeOverride ...string) (*Config, error) {
	loadDotEnv()

	var home string
	if len(homeOverride) > 0 && homeOverride[0] != "" {
		home = homeOverride[0]
	} else {
		home = getEnv("FIN_AGENT_HOME", "")
		if home == "" {
			home = ".finagent"
		}
	}

	absHome, err := filepath.Abs(home)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve FIN_AGENT_HOME to absolute path: %w", err)
	}
	if err := os.MkdirAll(absHome, 0755); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}

	cfg := &Config{
		Home:                 absHome,
		Port:                 getEnvAsInt("FIN_AGENT_PORT", 8080),
		DevMode:              getEnvAsBool("FIN_AGENT_DEV_MODE", false),
		LogLevel:             getEnv("FIN_AGENT_LOG_LEVEL", "info"),
		MaxBacktestSeconds:   getEnvAsFloat("FIN_AGENT_MAX_BACKTEST_SECONDS", 300),
		MaxWorldStateSeconds: getEnvAsFloat("FIN_AGENT_MAX_WORLD_STATE_SECONDS", 120),
		EncryptionKey:        getEnv("FIN_AGENT_ENCRYPTION_KEY", ""),
		S3Bucket:             getEnv("FIN_AGENT_S3_BUCKET", ""),
		S3Region:             getEnv("FIN_AGENT_S3_REGION", "us-east-1"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// StateDBPath returns the absolute path of the relational store file.
func (c *Config) StateDBPath() string {
	return filepath.Join(c.Home, "state.db")
}

// AnalyticsDBPath returns the absolute path of the columnar store file.
func (c *Config) AnalyticsDBPath() string {
	return filepath.Join(c.Home, "analytics.db")
}

// ArtifactsDir returns the absolute path of the artifacts root.
func (c *Config) ArtifactsDir() string {
	return filepath.Join(c.Home, "artifacts")
}

// LogsDir returns the absolute path of the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.Home, "logs")
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.EncryptionKey != "" && len(c.EncryptionKey) < 32 {
		return fmt.Errorf("FIN_AGENT_ENCRYPTION_KEY must decode to a 32-byte key")
	}
	return nil
}

// RateLimitConfig returns the configured (max_requests, window_seconds) for
// a provider, honoring FIN_AGENT_RATE_LIMIT_<PROVIDER>_MAX_REQUESTS /
// _WINDOW_SECONDS, falling back to the given defaults.
func RateLimitConfig(provider string, defaultMax int, defaultWindowSeconds int) (int, int) {
	prefix := "FIN_AGENT_RATE_LIMIT_" + strings.ToUpper(provider) + "_"
	return getEnvAsInt(prefix+"MAX_REQUESTS", defaultMax), getEnvAsInt(prefix+"WINDOW_SECONDS", defaultWindowSeconds)
}

// ==========================================
// Helper Functions
// ==========================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
