// Package server provides the shell's admin HTTP API.
//
// Routes:
//   - GET  /health, GET /metrics
//   - GET  /api/state                 published toggle, availability and app statuses
//   - GET  /api/mfe-toggle            reference remote toggle service
//   - POST /api/mfe-toggle
//   - POST /api/local/toggle          device-local override + cross-tab announce
//   - POST /api/local/mode
//   - GET  /api/perf                  performance entries and summary
//   - GET  /api/perf/panel, PUT /api/perf/panel
//   - PUT  /api/visibility            drives poll backoff
//   - GET  /stream                    websocket stream of shell events
//
// Middleware stack: recovery, request ID, prometheus, CORS, per-IP rate
// limiting.
//
// Example Usage:
//
//	srv := server.New(server.Options{Config: cfg, Tab: tab, Remote: backends.Local})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
