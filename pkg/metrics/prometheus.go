// Package metrics provides Prometheus metrics for the arenawatch analyzer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// Manager owns every collector the analyzer exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Analysis passes
	analysisPasses   *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	fastRisers       *prometheus.GaugeVec
	newStars         *prometheus.GaugeVec
	degradedResults  *prometheus.CounterVec

	// Cache gate
	cacheLookups     *prometheus.CounterVec
	cacheWrites      prometheus.Counter
	cacheWriteErrors prometheus.Counter

	// Snapshots
	snapshotRecords    *prometheus.GaugeVec
	snapshotAgeSeconds *prometheus.GaugeVec
	snapshotViolations *prometheus.CounterVec
	snapshotRotations  *prometheus.CounterVec

	// Merge
	mergeMatches   *prometheus.CounterVec
	mergeUnmatched *prometheus.CounterVec

	// Sources
	sourceFetches       *prometheus.CounterVec
	sourceFetchDuration *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// DefaultLatencyBuckets spans 1ms to about 8s in powers of two.
var DefaultLatencyBuckets = prometheus.ExponentialBuckets(1, 2, 14) //nolint:gochecknoglobals // bucket layout

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager. Collectors are registered on the
// configured registry, which defaults to prometheus.DefaultRegisterer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "arenawatch",
		subsystem:        "analyzer",
		histogramBuckets: DefaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.analysisPasses = m.counterVec("analysis_passes_total",
		"Analysis passes by category and outcome (cached, recomputed)", "category", "outcome")
	m.analysisDuration = m.histogramVec("analysis_duration_milliseconds",
		"Time spent producing an analysis result in milliseconds", m.histogramBuckets, "category", "outcome")
	m.fastRisers = m.gaugeVec("fast_risers",
		"Number of fast risers in the latest analysis", "category")
	m.newStars = m.gaugeVec("new_stars",
		"Number of new stars in the latest analysis", "category")
	m.degradedResults = m.counterVec("degraded_results_total",
		"Analysis results computed without a required baseline", "category", "window")

	m.cacheLookups = m.counterVec("cache_lookups_total",
		"Cache gate lookups by result (fresh, stale, miss, error)", "result")
	m.cacheWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_writes_total"),
		Help:        "Cache entries written",
		ConstLabels: m.customLabels,
	})
	m.cacheWriteErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("cache_write_errors_total"),
		Help:        "Cache entry writes that failed",
		ConstLabels: m.customLabels,
	})

	m.snapshotRecords = m.gaugeVec("snapshot_records",
		"Records held per category and slot", "category", "slot")
	m.snapshotAgeSeconds = m.gaugeVec("snapshot_age_seconds",
		"Age of the snapshot held per category and slot", "category", "slot")
	m.snapshotViolations = m.counterVec("snapshot_violations_total",
		"Ranking contract violations seen in supplied snapshots", "category", "kind")
	m.snapshotRotations = m.counterVec("snapshot_rotations_total",
		"Snapshots moved into an older slot", "category", "slot")

	m.mergeMatches = m.counterVec("merge_matched_total",
		"Live records enriched from an auxiliary source", "source")
	m.mergeUnmatched = m.counterVec("merge_unmatched_total",
		"Live records without a match in an auxiliary source", "source")

	m.sourceFetches = m.counterVec("source_fetches_total",
		"Upstream fetches by source and outcome", "source", "outcome")
	m.sourceFetchDuration = m.histogramVec("source_fetch_duration_milliseconds",
		"Upstream fetch latency in milliseconds",
		[]float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}, "source")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total",
		"Total number of errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_bytes"),
		Help:        "Allocated heap bytes",
		ConstLabels: m.customLabels,
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutines"),
		Help:        "Number of goroutines",
		ConstLabels: m.customLabels,
	})
}

// Enabled reports whether the manager records observations.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often gauge updaters should poll.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Analysis.

// RecordAnalysisPass counts one analysis pass and its latency.
func RecordAnalysisPass(category, outcome string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.analysisPasses.WithLabelValues(category, outcome).Inc()
	globalManager.analysisDuration.WithLabelValues(category, outcome).Observe(durationMs)
}

// UpdateSignalCounts sets the fast riser and new star gauges for a category.
func UpdateSignalCounts(category string, fastRisers, newStars int) {
	if !globalManager.enabled {
		return
	}
	globalManager.fastRisers.WithLabelValues(category).Set(float64(fastRisers))
	globalManager.newStars.WithLabelValues(category).Set(float64(newStars))
}

// RecordDegradedResult counts a result computed without its baseline window.
func RecordDegradedResult(category, window string) {
	if !globalManager.enabled {
		return
	}
	globalManager.degradedResults.WithLabelValues(category, window).Inc()
}

// Cache.

// RecordCacheLookup counts a cache gate decision.
func RecordCacheLookup(result string) {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheLookups.WithLabelValues(result).Inc()
}

// RecordCacheWrite counts a cache write and whether it failed.
func RecordCacheWrite(failed bool) {
	if !globalManager.enabled {
		return
	}
	if failed {
		globalManager.cacheWriteErrors.Inc()
		return
	}
	globalManager.cacheWrites.Inc()
}

// Snapshots.

// UpdateSnapshot records size and age of the snapshot held in a slot.
func UpdateSnapshot(category, slot string, records int, age time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.snapshotRecords.WithLabelValues(category, slot).Set(float64(records))
	globalManager.snapshotAgeSeconds.WithLabelValues(category, slot).Set(age.Seconds())
}

// RecordSnapshotViolation counts a rank gap, duplicate rank or duplicate identity.
func RecordSnapshotViolation(category, kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.snapshotViolations.WithLabelValues(category, kind).Inc()
}

// RecordSnapshotRotation counts a snapshot moved into an older slot.
func RecordSnapshotRotation(category, slot string) {
	if !globalManager.enabled {
		return
	}
	globalManager.snapshotRotations.WithLabelValues(category, slot).Inc()
}

// Merge.

// RecordMerge adds matched and unmatched counts for an auxiliary source.
func RecordMerge(source string, matched, unmatched int) {
	if !globalManager.enabled {
		return
	}
	globalManager.mergeMatches.WithLabelValues(source).Add(float64(matched))
	globalManager.mergeUnmatched.WithLabelValues(source).Add(float64(unmatched))
}

// Sources.

// RecordSourceFetch counts an upstream fetch and observes its latency.
func RecordSourceFetch(source, outcome string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.sourceFetches.WithLabelValues(source, outcome).Inc()
	globalManager.sourceFetchDuration.WithLabelValues(source).Observe(durationMs)
}

// HTTP.

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

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// Process.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval is how often process gauges should be updated.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}
