package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Shell     ShellConfig
	Poll      PollConfig
	Detect    DetectConfig
	Redis     RedisConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds admin HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// ShellConfig holds orchestrator configuration.
type ShellConfig struct {
	Env            string   `envconfig:"SHELL_ENV" default:"local"`
	RegistryPath   string   `envconfig:"SHELL_REGISTRY" default:"apps.yaml"`
	DocumentPath   string   `envconfig:"SHELL_DOCUMENT"`
	ToggleURL      string   `envconfig:"SHELL_TOGGLE_URL" default:"http://localhost:8000/api/mfe-toggle"`
	AlwaysOn       []string `envconfig:"SHELL_ALWAYS_ON"`
	FormatAdaptive []string `envconfig:"SHELL_FORMAT_ADAPTIVE"`
	DevBuildURL    string   `envconfig:"SHELL_DEV_BUILD_URL"`
	Route          string   `envconfig:"SHELL_ROUTE" default:"/"`
	Storage        string   `envconfig:"SHELL_STORAGE" default:"memory"`
	StorageDir     string   `envconfig:"SHELL_STORAGE_DIR" default:"/tmp/mfe-shell"`
	Broadcast      string   `envconfig:"SHELL_BROADCAST" default:"memory"`
}

// PollConfig holds polling, probing and cache timings.
type PollConfig struct {
	Active       time.Duration `envconfig:"POLL_ACTIVE" default:"5s"`
	Hidden       time.Duration `envconfig:"POLL_HIDDEN" default:"15s"`
	CacheTTL     time.Duration `envconfig:"AVAILABILITY_TTL" default:"30s"`
	ReprobeMin   time.Duration `envconfig:"REPROBE_MIN" default:"15s"`
	ProbeTimeout time.Duration `envconfig:"PROBE_TIMEOUT" default:"700ms"`
}

// DetectConfig holds module format detector timeouts.
type DetectConfig struct {
	PartialLocal      time.Duration `envconfig:"DETECT_PARTIAL_LOCAL" default:"1500ms"`
	FullLocal         time.Duration `envconfig:"DETECT_FULL_LOCAL" default:"3s"`
	PartialProduction time.Duration `envconfig:"DETECT_PARTIAL_PROD" default:"3s"`
	FullProduction    time.Duration `envconfig:"DETECT_FULL_PROD" default:"8s"`
}

// RedisConfig holds the shared storage/broadcast backend connection.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Env returns the parsed shell environment
func (c *Config) Env() types.Env {
	if types.Env(c.Shell.Env) == types.EnvProduction || c.Shell.Env == "prod" {
		return types.EnvProduction
	}
	return types.EnvLocal
}

// DetectTimeouts returns the partial and full-body timeouts for the environment
func (c *Config) DetectTimeouts() (partial, full time.Duration) {
	if c.Env().IsLocal() {
		return c.Detect.PartialLocal, c.Detect.FullLocal
	}
	return c.Detect.PartialProduction, c.Detect.FullProduction
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Shell: ShellConfig{
			Env:          string(types.EnvLocal),
			RegistryPath: "apps.yaml",
			ToggleURL:    "http://localhost:8000/api/mfe-toggle",
			Route:        "/",
			Storage:      "memory",
			StorageDir:   "/tmp/mfe-shell",
			Broadcast:    "memory",
		},
		Poll: PollConfig{
			Active:       5 * time.Second,
			Hidden:       15 * time.Second,
			CacheTTL:     30 * time.Second,
			ReprobeMin:   15 * time.Second,
			ProbeTimeout: 700 * time.Millisecond,
		},
		Detect: DetectConfig{
			PartialLocal:      1500 * time.Millisecond,
			FullLocal:         3 * time.Second,
			PartialProduction: 3 * time.Second,
			FullProduction:    8 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
