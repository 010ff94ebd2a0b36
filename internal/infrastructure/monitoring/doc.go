/*
Package monitoring provides metrics collection for the shell.

# Overview

Every Metrics value owns a private Prometheus registry, so several shells
(or tests) can live in one process without colliding on registration.

# Features

- Admin HTTP request metrics (latency, status)
- Application load outcomes per strategy, lifecycle invocations
- Format detections, reachability probes and probe rounds
- Reconciliation passes, remote toggle calls, reloads, poller ticks
- Cross-tab and event stream traffic
- Performance measures recorded between marks

All Record* helpers are safe on a nil *Metrics.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "availability", "probe")
	// ... perform operation ...
	timer.Stop("success")
*/
package monitoring
