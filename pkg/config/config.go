package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mediaserve/ssobridge/pkg/observability"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Login         LoginConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for probes)
	HealthPort string

	// BaseURL is the externally reachable URL redirect and callback URLs
	// are built from.
	BaseURL string

	// AdminKey guards the provider-configuration surface.
	AdminKey string
}

// DatabaseConfig holds the provider-config and identity database settings.
type DatabaseConfig struct {
	URL string
}

// LoginConfig holds login-flow tunables.
type LoginConfig struct {
	// StateTTL is how long an in-flight login attempt survives.
	StateTTL time.Duration

	// SessionTTL is how long issued sessions remain usable.
	SessionTTL time.Duration

	// SessionCleanupSchedule is the cron expression driving expired-session
	// cleanup.
	SessionCleanupSchedule string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SSOBRIDGE_HOST", "0.0.0.0"),
			Port:            getEnv("SSOBRIDGE_PORT", "8096"),
			ReadTimeout:     getEnvDuration("SSOBRIDGE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SSOBRIDGE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("SSOBRIDGE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SSOBRIDGE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("SSOBRIDGE_HEALTH_PORT", "9090"),
			BaseURL:         getEnv("SSOBRIDGE_BASE_URL", ""),
			AdminKey:        getEnv("SSOBRIDGE_ADMIN_KEY", ""),
		},
		Database: DatabaseConfig{
			URL: getEnv("SSOBRIDGE_POSTGRES_URL", ""),
		},
		Login: LoginConfig{
			StateTTL:               getEnvDuration("SSOBRIDGE_STATE_TTL", 60*time.Second),
			SessionTTL:             getEnvDuration("SSOBRIDGE_SESSION_TTL", 24*time.Hour),
			SessionCleanupSchedule: getEnv("SSOBRIDGE_SESSION_CLEANUP_SCHEDULE", "@every 1h"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("SSOBRIDGE_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("SSOBRIDGE_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if strings.HasSuffix(c.Server.BaseURL, "/") {
		return fmt.Errorf("base URL must not end with a slash")
	}
	if c.Server.AdminKey == "" {
		return fmt.Errorf("admin key is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Login.StateTTL <= 0 {
		return fmt.Errorf("state TTL must be positive")
	}
	if c.Login.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	return nil
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
