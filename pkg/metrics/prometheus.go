// Package metrics provides Prometheus metrics for the robodash service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Latency buckets in milliseconds, sized around a 1s polling cadence.
var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 800, 1000, 2500} //nolint:gochecknoglobals // constant slice

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Read path: remote fetches and the polling cache
	fetches             *prometheus.CounterVec
	fetchLatency        *prometheus.HistogramVec
	ticksSkipped        *prometheus.CounterVec
	responsesDiscarded  *prometheus.CounterVec
	staleServes         *prometheus.CounterVec
	activeSubscriptions *prometheus.GaugeVec
	cacheEntries        prometheus.Gauge

	// Write path: command dispatch
	dispatches       *prometheus.CounterVec
	dispatchRejected prometheus.Counter
	dispatchLatency  prometheus.Histogram

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	websocketClients    prometheus.Gauge

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "robodash",
		subsystem:        "dashboard",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.fetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetches_total",
		Help:      "Remote resource fetches by resource kind and outcome",
	}, []string{"kind", "outcome"})

	m.fetchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_latency_milliseconds",
		Help:      "Remote resource fetch latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"kind"})

	m.ticksSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ticks_skipped_total",
		Help:      "Poll ticks skipped because a request for the key was still in flight",
	}, []string{"kind"})

	m.responsesDiscarded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "responses_discarded_total",
		Help:      "Fetch completions dropped because a newer request superseded them",
	}, []string{"kind"})

	m.staleServes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stale_serves_total",
		Help:      "Failed refetches that kept the last good data on display",
	}, []string{"kind"})

	m.activeSubscriptions = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_subscriptions",
		Help:      "Current subscribers by resource kind",
	}, []string{"kind"})

	m.cacheEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_entries",
		Help:      "Resource keys currently held by the polling cache",
	})

	m.dispatches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatches_total",
		Help:      "Motion commands dispatched by direction and outcome",
	}, []string{"direction", "outcome"})

	m.dispatchRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_rejected_total",
		Help:      "Dispatches rejected because another command was in flight",
	})

	m.dispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_latency_milliseconds",
		Help:      "Command dispatch round-trip latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.websocketClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "websocket_clients",
		Help:      "Connected card stream clients",
	})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// Read path.

// RecordFetch counts a fetch for kind with outcome "success" or an error kind.
func RecordFetch(kind, outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.fetches.WithLabelValues(kind, outcome).Inc()
}

// RecordFetchLatency records a fetch latency in milliseconds.
func RecordFetchLatency(kind string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.fetchLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordTickSkipped counts a poll tick skipped for kind.
func RecordTickSkipped(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.ticksSkipped.WithLabelValues(kind).Inc()
}

// RecordResponseDiscarded counts a superseded completion for kind.
func RecordResponseDiscarded(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.responsesDiscarded.WithLabelValues(kind).Inc()
}

// RecordStaleServe counts a failure that kept stale data for kind.
func RecordStaleServe(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.staleServes.WithLabelValues(kind).Inc()
}

// AddSubscriptions adjusts the subscriber gauge for kind by delta.
func AddSubscriptions(kind string, delta int) {
	if !globalManager.enabled {
		return
	}
	globalManager.activeSubscriptions.WithLabelValues(kind).Add(float64(delta))
}

// UpdateCacheEntries sets the number of cached keys.
func UpdateCacheEntries(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheEntries.Set(float64(count))
}

// Write path.

// RecordDispatch counts a settled dispatch.
func RecordDispatch(direction, outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.dispatches.WithLabelValues(direction, outcome).Inc()
}

// RecordDispatchRejected counts a busy rejection.
func RecordDispatchRejected() {
	if !globalManager.enabled {
		return
	}
	globalManager.dispatchRejected.Inc()
}

// RecordDispatchLatency records a dispatch round trip in milliseconds.
func RecordDispatchLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.dispatchLatency.Observe(latencyMs)
}

// HTTP surface.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// AddWebsocketClients adjusts the connected stream client gauge.
func AddWebsocketClients(delta int) {
	if !globalManager.enabled {
		return
	}
	globalManager.websocketClients.Add(float64(delta))
}

// System.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RefreshInterval is how often the global gauges should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
