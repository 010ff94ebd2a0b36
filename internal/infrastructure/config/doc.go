// Package config provides 12-factor configuration management for the shell.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags in cmd/shell override environment variables.
//
// Configuration Sections:
//   - Server: Admin HTTP server settings (port, host)
//   - Shell: Environment, registry source, toggle endpoint, backends
//   - Poll: Toggle poll intervals, availability cache TTL, probe timeout
//   - Detect: Module format detector timeouts per environment
//   - Redis: Shared storage and broadcast backend
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Environment Variables:
//   - PORT, HOST
//   - SHELL_ENV, SHELL_REGISTRY, SHELL_TOGGLE_URL, SHELL_ALWAYS_ON, ...
//   - POLL_ACTIVE, POLL_HIDDEN, AVAILABILITY_TTL, PROBE_TIMEOUT
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST
package config
