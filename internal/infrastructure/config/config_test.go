package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, types.EnvLocal, cfg.Env())
	assert.Equal(t, "apps.yaml", cfg.Shell.RegistryPath)
	assert.Equal(t, "memory", cfg.Shell.Storage)

	assert.Equal(t, 5*time.Second, cfg.Poll.Active)
	assert.Equal(t, 15*time.Second, cfg.Poll.Hidden)
	assert.Equal(t, 30*time.Second, cfg.Poll.CacheTTL)
	assert.Equal(t, 700*time.Millisecond, cfg.Poll.ProbeTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Server, cfg.Server)
	assert.Equal(t, def.Poll, cfg.Poll)
	assert.Equal(t, def.Detect, cfg.Detect)
	assert.Equal(t, def.RateLimit, cfg.RateLimit)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                  "9000",
		"SHELL_ENV":             "production",
		"SHELL_TOGGLE_URL":      "https://toggles.example.com/mfe",
		"SHELL_ALWAYS_ON":       "@org/navbar,@org/core-*",
		"SHELL_FORMAT_ADAPTIVE": "@org/legacy-*",
		"POLL_ACTIVE":           "2s",
		"PROBE_TIMEOUT":         "250ms",
		"REDIS_ADDR":            "redis:6379",
		"LOG_LEVEL":             "debug",
		"RATE_LIMIT_ENABLED":    "false",
	}

	for key, value := range envVars {
		require.NoError(t, os.Setenv(key, value))
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, types.EnvProduction, cfg.Env())
	assert.Equal(t, "https://toggles.example.com/mfe", cfg.Shell.ToggleURL)
	assert.Equal(t, []string{"@org/navbar", "@org/core-*"}, cfg.Shell.AlwaysOn)
	assert.Equal(t, []string{"@org/legacy-*"}, cfg.Shell.FormatAdaptive)
	assert.Equal(t, 2*time.Second, cfg.Poll.Active)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.ProbeTimeout)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestDetectTimeouts(t *testing.T) {
	cfg := Default()

	partial, full := cfg.DetectTimeouts()
	assert.Equal(t, 1500*time.Millisecond, partial)
	assert.Equal(t, 3*time.Second, full)

	cfg.Shell.Env = "prod"
	partial, full = cfg.DetectTimeouts()
	assert.Equal(t, 3*time.Second, partial)
	assert.Equal(t, 8*time.Second, full)
}

func TestInvalidDurationFailsLoad(t *testing.T) {
	require.NoError(t, os.Setenv("POLL_ACTIVE", "soon"))
	defer os.Unsetenv("POLL_ACTIVE")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 5*time.Second, cfg.Poll.Active)
}
