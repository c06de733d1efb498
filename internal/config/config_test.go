package config

import (
	"os"
	"testing"

	"github.com/caseline-io/caseline-backend/internal/thread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"DATABASE_URL", "API_PORT", "THREAD_ROOT_DEPTH", "THREAD_COLLECT_DEPTH",
	"QUEUE_WORKERS", "QUEUE_MAX_RETRIES", "LOG_LEVEL", "ALLOWED_ORIGINS", "APP_ENV",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		os.Unsetenv(key)
	}
	t.Cleanup(func() {
		for _, key := range configEnvVars {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	clearEnv(t)

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost:5432/caseline")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, thread.DefaultRootDepth, cfg.ThreadRootDepth)
	assert.Equal(t, thread.DefaultCollectDepth, cfg.ThreadCollectDepth)
	assert.Equal(t, 4, cfg.QueueWorkers)
	assert.Equal(t, 3, cfg.QueueMaxRetries)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.AppEnv)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost:5432/caseline")
	os.Setenv("API_PORT", "9090")
	os.Setenv("THREAD_ROOT_DEPTH", "5")
	os.Setenv("THREAD_COLLECT_DEPTH", "30")
	os.Setenv("QUEUE_WORKERS", "8")
	os.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, 5, cfg.ThreadRootDepth)
	assert.Equal(t, 30, cfg.ThreadCollectDepth)
	assert.Equal(t, 8, cfg.QueueWorkers)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_RejectsNonIntegerPort(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost:5432/caseline")
	os.Setenv("API_PORT", "not-a-port")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_PORT")
}

func validConfig() *Config {
	return &Config{
		DatabaseURL:        "postgres://localhost:5432/caseline",
		APIPort:            8080,
		ThreadRootDepth:    10,
		ThreadCollectDepth: 20,
		QueueWorkers:       4,
		QueueMaxRetries:    3,
		LogLevel:           "info",
		AppEnv:             "development",
	}
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database url", func(c *Config) { c.DatabaseURL = "" }},
		{"port too low", func(c *Config) { c.APIPort = 0 }},
		{"port too high", func(c *Config) { c.APIPort = 70000 }},
		{"zero root depth", func(c *Config) { c.ThreadRootDepth = 0 }},
		{"zero collect depth", func(c *Config) { c.ThreadCollectDepth = 0 }},
		{"zero workers", func(c *Config) { c.QueueWorkers = 0 }},
		{"negative retries", func(c *Config) { c.QueueMaxRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateProduction_RequiresOrigins(t *testing.T) {
	cfg := validConfig()
	cfg.AppEnv = "production"

	assert.Error(t, cfg.ValidateProduction())
}

func TestValidateProduction_RejectsWildcardOrigins(t *testing.T) {
	cfg := validConfig()
	cfg.AllowedOrigins = "*"

	assert.Error(t, cfg.ValidateProduction())
}

func TestValidateProduction_RejectsDisabledSSL(t *testing.T) {
	cfg := validConfig()
	cfg.AllowedOrigins = "https://app.caseline.io"
	cfg.DatabaseURL = "postgres://localhost:5432/caseline?sslmode=disable"

	assert.Error(t, cfg.ValidateProduction())
}

func TestValidateProduction_Success(t *testing.T) {
	cfg := validConfig()
	cfg.AllowedOrigins = "https://app.caseline.io"

	assert.NoError(t, cfg.ValidateProduction())
}

func TestLoadWithValidation_ProductionChecksApply(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost:5432/caseline")
	os.Setenv("APP_ENV", "production")

	_, err := LoadWithValidation()

	assert.Error(t, err)
}

func TestOrigins_SplitsAndTrims(t *testing.T) {
	cfg := validConfig()
	cfg.AllowedOrigins = " https://a.example.com , https://b.example.com ,"

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Origins())
}

func TestOrigins_Empty(t *testing.T) {
	cfg := validConfig()
	cfg.AllowedOrigins = ""

	assert.Nil(t, cfg.Origins())
}
