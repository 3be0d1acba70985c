package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "STORE_DRIVER", "DB_PATH", "DATABASE_URL", "SEED_SAMPLE_DATA",
		"LOG_LEVEL", "LOG_FORMAT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Config{
		Port:            8080,
		StoreDriver:     DriverSQLite,
		DBPath:          "data/segments.db",
		SeedSampleData:  true,
		LogLevel:        "info",
		LogFormat:       "text",
		RateLimitRPS:    50,
		RateLimitBurst:  100,
		ShutdownTimeout: 30 * time.Second,
	}, cfg)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/segments")
	t.Setenv("SEED_SAMPLE_DATA", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "postgres://localhost/segments", cfg.DatabaseURL)
	assert.False(t, cfg.SeedSampleData)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Malformed(t *testing.T) {
	t.Setenv("PORT", "eighty")

	_, err := Load()
	assert.Error(t, err)
}

func validConfig() Config {
	return Config{
		Port:            8080,
		StoreDriver:     DriverSQLite,
		DBPath:          "data/segments.db",
		LogLevel:        "info",
		LogFormat:       "text",
		RateLimitRPS:    50,
		RateLimitBurst:  100,
		ShutdownTimeout: 30 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"memory driver", func(c *Config) { c.StoreDriver = DriverMemory; c.DBPath = "" }, ""},
		{"rate limit disabled", func(c *Config) { c.RateLimitRPS = 0; c.RateLimitBurst = 0 }, ""},
		{"uppercase level", func(c *Config) { c.LogLevel = "WARN" }, ""},
		{"port out of range", func(c *Config) { c.Port = 70000 }, "PORT"},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mongo" }, "STORE_DRIVER"},
		{"postgres without url", func(c *Config) { c.StoreDriver = DriverPostgres }, "DATABASE_URL"},
		{"sqlite without path", func(c *Config) { c.DBPath = "" }, "DB_PATH"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"negative rps", func(c *Config) { c.RateLimitRPS = -1 }, "RATE_LIMIT_RPS"},
		{"zero burst", func(c *Config) { c.RateLimitBurst = 0 }, "RATE_LIMIT_BURST"},
		{"zero shutdown", func(c *Config) { c.ShutdownTimeout = 0 }, "SHUTDOWN_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Port = 0
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	cfg := validConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "expected JSON output, got %q", out)
	assert.Contains(t, out, `"msg":"shown"`)
}
