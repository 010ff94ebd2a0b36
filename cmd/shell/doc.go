// Package main is the entry point for the microfrontend shell.
//
// The shell runs one headless tab: it loads the application registry,
// reconciles the remote and device-local toggle state with the
// availability probe, registers the enabled applications with the layout
// engine and keeps the tab in step with other tabs. An admin HTTP server
// exposes the tab's state, the local override controls, the perf panel
// and a reference remote toggle service.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Local development against a manifest directory
//	./shell -env local -registry ./apps -dev
//
//	# Production tab sharing state with other shells through Redis
//	./shell -env production -registry apps.yaml -storage redis -broadcast redis -redis localhost:6379
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
