/*
Package perf records performance marks and measures for the shell.

# Overview

The recorder follows the browser performance-entries model: a mark is a
named timestamp relative to the recorder's origin, a measure is the span
between two marks. Application loads and lifecycle phases are wrapped in
marks named "<app>:load:start" / "<app>:load:end" and
"<app>:<phase>:start" / "<app>:<phase>:end", with a "<app>:<phase>" measure.

Measures are also observed into the shell_perf_measure_seconds histogram
and summarized (mean, standard deviation, p95) for the admin API.

# Usage

	rec := perf.New(perf.Options{Metrics: metrics})
	done := rec.Span("navbar:mount")
	// ... run the lifecycle ...
	done()

	for _, s := range rec.Summary() {
		fmt.Println(s.Name, s.Mean, s.P95)
	}
*/
package perf
