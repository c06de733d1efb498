package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/caseline-io/caseline-backend/internal/thread"
)

// Config holds all configuration for the application.
//
// The 7-day recent-conversation window and the 1-hour role cache TTL are
// deliberately absent: they are business rules, not deployment knobs.
type Config struct {
	// Database
	DatabaseURL string

	// Server
	APIPort int

	// Thread traversal bounds
	ThreadRootDepth    int
	ThreadCollectDepth int

	// Task queue
	QueueWorkers    int
	QueueMaxRetries int

	// Logging
	LogLevel string

	// Security
	AllowedOrigins string
	AppEnv         string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Required: DATABASE_URL
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	var err error
	if cfg.APIPort, err = intEnv("API_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.ThreadRootDepth, err = intEnv("THREAD_ROOT_DEPTH", thread.DefaultRootDepth); err != nil {
		return nil, err
	}
	if cfg.ThreadCollectDepth, err = intEnv("THREAD_COLLECT_DEPTH", thread.DefaultCollectDepth); err != nil {
		return nil, err
	}
	if cfg.QueueWorkers, err = intEnv("QUEUE_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.QueueMaxRetries, err = intEnv("QUEUE_MAX_RETRIES", 3); err != nil {
		return nil, err
	}

	// LOG_LEVEL (default: info)
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.AppEnv = os.Getenv("APP_ENV")
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}

	return cfg, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.ThreadRootDepth <= 0 {
		return fmt.Errorf("ThreadRootDepth must be positive")
	}
	if c.ThreadCollectDepth <= 0 {
		return fmt.Errorf("ThreadCollectDepth must be positive")
	}
	if c.QueueWorkers <= 0 {
		return fmt.Errorf("QueueWorkers must be positive")
	}
	if c.QueueMaxRetries < 0 {
		return fmt.Errorf("QueueMaxRetries cannot be negative")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}
	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}
	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}
	return nil
}

// Origins returns the allowed origins as a slice
func (c *Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.Int("thread_root_depth", c.ThreadRootDepth),
		slog.Int("thread_collect_depth", c.ThreadCollectDepth),
		slog.Int("queue_workers", c.QueueWorkers),
		slog.Int("queue_max_retries", c.QueueMaxRetries),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
	)
}
