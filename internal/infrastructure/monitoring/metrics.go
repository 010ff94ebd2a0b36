package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shell"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Application loading
	AppLoads        *prometheus.CounterVec
	AppLoadDuration *prometheus.HistogramVec
	LifecycleCalls  *prometheus.CounterVec
	ScriptLoads     *prometheus.CounterVec

	// Detection and probing
	Detections  *prometheus.CounterVec
	Probes      *prometheus.CounterVec
	ProbeFanout prometheus.Histogram

	// Reconciliation
	ReconcilePasses *prometheus.CounterVec
	ToggleFetches   *prometheus.CounterVec
	Reloads         *prometheus.CounterVec
	PollTicks       *prometheus.CounterVec
	AppsDisabled    prometheus.Gauge
	AppsAvailable   prometheus.Gauge
	RegistryApps    prometheus.Gauge

	// Cross-tab and streaming
	BroadcastMessages *prometheus.CounterVec
	WSConnections     prometheus.Gauge
	WSMessages        *prometheus.CounterVec

	// Performance measures and generic operations
	Measures          *prometheus.HistogramVec
	OperationDuration *prometheus.HistogramVec

	startTime time.Time

	// Counter totals served on /health
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	AppLoads      int64   `json:"app_loads"`
	LoadFailures  int64   `json:"load_failures"`
	Reloads       int64   `json:"reloads"`
	Uptime        float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector backed by its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of admin HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Admin HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path"},
		),

		AppLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "app_loads_total",
				Help:      "Application load attempts by strategy and outcome",
			},
			[]string{"app", "strategy", "outcome"},
		),
		AppLoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "app_load_duration_seconds",
				Help:      "Application load duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"strategy"},
		),
		LifecycleCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_calls_total",
				Help:      "Lifecycle invocations by phase and outcome",
			},
			[]string{"app", "phase", "outcome"},
		),
		ScriptLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "script_loads_total",
				Help:      "Script element loads by outcome",
			},
			[]string{"outcome"},
		),

		Detections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "format_detections_total",
				Help:      "Module format detections by resulting format",
			},
			[]string{"format"},
		),
		Probes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "availability_probes_total",
				Help:      "Reachability probes by result",
			},
			[]string{"result"},
		),
		ProbeFanout: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "availability_probe_round_seconds",
				Help:      "Duration of a full availability probe round",
				Buckets:   []float64{.01, .05, .1, .25, .5, .75, 1, 2},
			},
		),

		ReconcilePasses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_passes_total",
				Help:      "Reconciliation passes by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		ToggleFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "toggle_fetches_total",
				Help:      "Remote toggle endpoint calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		Reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Page reloads by reason",
			},
			[]string{"reason"},
		),
		PollTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_ticks_total",
				Help:      "Poller ticks by poller and result",
			},
			[]string{"poller", "result"},
		),
		AppsDisabled: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "apps_disabled",
				Help:      "Number of applications in the published disabled set",
			},
		),
		AppsAvailable: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "apps_available",
				Help:      "Number of applications that answered the last probe",
			},
		),
		RegistryApps: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_apps",
				Help:      "Number of applications in the registry",
			},
		),

		BroadcastMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcast_messages_total",
				Help:      "Cross-tab messages by direction and type",
			},
			[]string{"direction", "type"},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Number of active event stream connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Total number of event stream messages",
			},
			[]string{"direction", "type"},
		),

		Measures: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "perf_measure_seconds",
				Help:      "Performance measures recorded between marks",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"name"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Component operation duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"component", "operation", "outcome"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Shell uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler returns the exposition handler for this collector's registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and custom collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an admin HTTP request. A negative duration
// counts the request without timing it.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	if duration >= 0 {
		m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	}

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordAppLoad records one application load attempt
func (m *Metrics) RecordAppLoad(app, strategy, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AppLoads.WithLabelValues(app, strategy, outcome).Inc()
	m.AppLoadDuration.WithLabelValues(strategy).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.AppLoads++
	if outcome != "success" && outcome != "disabled" {
		m.snapshot.LoadFailures++
	}
	m.mu.Unlock()
}

// RecordLifecycle records a lifecycle invocation
func (m *Metrics) RecordLifecycle(app, phase, outcome string) {
	if m == nil {
		return
	}
	m.LifecycleCalls.WithLabelValues(app, phase, outcome).Inc()
}

// RecordScriptLoad records a script element load
func (m *Metrics) RecordScriptLoad(outcome string) {
	if m == nil {
		return
	}
	m.ScriptLoads.WithLabelValues(outcome).Inc()
}

// RecordDetection records a detected module format
func (m *Metrics) RecordDetection(format string) {
	if m == nil {
		return
	}
	m.Detections.WithLabelValues(format).Inc()
}

// RecordProbe records one reachability probe
func (m *Metrics) RecordProbe(available bool) {
	if m == nil {
		return
	}
	result := "unavailable"
	if available {
		result = "available"
	}
	m.Probes.WithLabelValues(result).Inc()
}

// RecordProbeRound records a full probe round
func (m *Metrics) RecordProbeRound(duration time.Duration, available int) {
	if m == nil {
		return
	}
	m.ProbeFanout.Observe(duration.Seconds())
	m.AppsAvailable.Set(float64(available))
}

// RecordReconcile records a reconciliation pass
func (m *Metrics) RecordReconcile(trigger, outcome string) {
	if m == nil {
		return
	}
	m.ReconcilePasses.WithLabelValues(trigger, outcome).Inc()
}

// RecordToggleCall records a call to the remote toggle endpoint
func (m *Metrics) RecordToggleCall(operation, outcome string) {
	if m == nil {
		return
	}
	m.ToggleFetches.WithLabelValues(operation, outcome).Inc()
}

// RecordReload records an issued page reload
func (m *Metrics) RecordReload(reason string) {
	if m == nil {
		return
	}
	m.Reloads.WithLabelValues(reason).Inc()

	m.mu.Lock()
	m.snapshot.Reloads++
	m.mu.Unlock()
}

// RecordPollTick records whether a poller tick ran or was skipped
func (m *Metrics) RecordPollTick(poller, result string) {
	if m == nil {
		return
	}
	m.PollTicks.WithLabelValues(poller, result).Inc()
}

// SetDisabled sets the size of the published disabled set
func (m *Metrics) SetDisabled(count int) {
	if m == nil {
		return
	}
	m.AppsDisabled.Set(float64(count))
}

// SetRegistryApps sets the number of apps in registry
func (m *Metrics) SetRegistryApps(count int) {
	if m == nil {
		return
	}
	m.RegistryApps.Set(float64(count))
}

// RecordBroadcast records a cross-tab message
func (m *Metrics) RecordBroadcast(direction, msgType string) {
	if m == nil {
		return
	}
	m.BroadcastMessages.WithLabelValues(direction, msgType).Inc()
}

// RecordWSMessage records an event stream message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments event stream connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements event stream connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// ObserveMeasure feeds a performance measure into the histogram
func (m *Metrics) ObserveMeasure(name string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Measures.WithLabelValues(name).Observe(duration.Seconds())
}

// GetSnapshot returns the current counter totals for the /health response
func (m *Metrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()
	snap.Uptime = time.Since(m.startTime).Seconds()
	return snap
}
