package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Computation levels used as metric labels.
const (
	levelPeriod     = "period"
	levelTerm       = "term"
	levelCumulative = "cumulative"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	computeDuration *prometheus.HistogramVec
	computeErrors   *prometheus.CounterVec
	batchFailures   prometheus.Counter
	recomputeJobs   *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "grade_cache_latency_seconds",
		Help:    "Latency for grade cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "grade_cache_write_seconds",
		Help:    "Latency for grade cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "grade_cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grade_cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grade_cache_misses_total",
		Help: "Total cache misses",
	})

	computeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grade_computation_duration_seconds",
		Help:    "Duration of grade computations by aggregation level",
		Buckets: prometheus.DefBuckets,
	}, []string{"level"})

	computeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grade_computation_errors_total",
		Help: "Failed grade computations by aggregation level",
	}, []string{"level"})

	batchFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grade_batch_failures_total",
		Help: "Students skipped by batch cumulative runs",
	})

	recomputeJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grade_recompute_jobs_total",
		Help: "Recompute jobs handled after submission grading",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		computeDuration, computeErrors, batchFailures, recomputeJobs, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		computeDuration: computeDuration,
		computeErrors:   computeErrors,
		batchFailures:   batchFailures,
		recomputeJobs:   recomputeJobs,
	}
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveComputation records one grade computation at level.
func (m *MetricsService) ObserveComputation(level string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.computeDuration.WithLabelValues(level).Observe(time.Since(start).Seconds())
	if err != nil {
		m.computeErrors.WithLabelValues(level).Inc()
	}
}

// RecordBatchFailure counts a student skipped by a batch run.
func (m *MetricsService) RecordBatchFailure() {
	if m == nil {
		return
	}
	m.batchFailures.Inc()
}

// RecordRecomputeJob counts a handled recompute job by outcome.
func (m *MetricsService) RecordRecomputeJob(outcome string) {
	if m == nil {
		return
	}
	m.recomputeJobs.WithLabelValues(outcome).Inc()
}
