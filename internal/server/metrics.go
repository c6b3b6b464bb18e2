package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/depviz/pkg/observability"
)

// Metrics records Prometheus metrics for analyses, cache lookups, worker
// jobs and HTTP requests. It implements the observability hook interfaces;
// call Install to route the global hooks to it.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	stageNodes    prometheus.Histogram
	pathQueries   *prometheus.CounterVec
	pathDuration  prometheus.Histogram

	cacheLookups *prometheus.CounterVec
	cacheBytes   prometheus.Counter

	jobsQueued     prometheus.Counter
	jobsSuperseded *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics creates metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "depviz_stage_duration_seconds",
			Help:    "Duration of analysis stages",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"stage"}),
		stageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "depviz_stage_errors_total",
			Help: "Analysis stages that failed",
		}, []string{"stage"}),
		stageNodes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "depviz_stage_nodes",
			Help:    "Node count of analyzed graphs",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}),
		pathQueries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "depviz_path_queries_total",
			Help: "Path queries by outcome",
		}, []string{"found"}),
		pathDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "depviz_path_query_duration_seconds",
			Help:    "Duration of path queries",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "depviz_cache_lookups_total",
			Help: "Cache lookups by kind and result",
		}, []string{"kind", "result"}),
		cacheBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "depviz_cache_written_bytes_total",
			Help: "Bytes written to the cache",
		}),
		jobsQueued: f.NewCounter(prometheus.CounterOpts{
			Name: "depviz_worker_jobs_queued_total",
			Help: "Analysis jobs submitted to workers",
		}),
		jobsSuperseded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "depviz_worker_jobs_superseded_total",
			Help: "Analysis jobs replaced by a newer request",
		}, []string{"state"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "depviz_worker_job_duration_seconds",
			Help:    "Duration of analysis jobs by result code",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"code"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "depviz_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "depviz_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Install sets m as the global analysis, cache and worker hooks.
func (m *Metrics) Install() {
	observability.SetAnalysisHooks(m)
	observability.SetCacheHooks(m)
	observability.SetWorkerHooks(m)
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) OnStageStart(_ context.Context, _ string, nodeCount int) {
	m.stageNodes.Observe(float64(nodeCount))
}

func (m *Metrics) OnStageComplete(_ context.Context, stage string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) OnPathQuery(_ context.Context, found bool, d time.Duration) {
	m.pathQueries.WithLabelValues(strconv.FormatBool(found)).Inc()
	m.pathDuration.Observe(d.Seconds())
}

func (m *Metrics) OnCacheHit(_ context.Context, kind string) {
	m.cacheLookups.WithLabelValues(kind, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, kind string) {
	m.cacheLookups.WithLabelValues(kind, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, _ string, size int) {
	m.cacheBytes.Add(float64(size))
}

func (m *Metrics) OnJobQueued(context.Context, string) { m.jobsQueued.Inc() }

func (m *Metrics) OnJobSuperseded(_ context.Context, _ string, running bool) {
	state := "pending"
	if running {
		state = "running"
	}
	m.jobsSuperseded.WithLabelValues(state).Inc()
}

func (m *Metrics) OnJobComplete(_ context.Context, _ string, code string, d time.Duration) {
	if code == "" {
		code = "OK"
	}
	m.jobDuration.WithLabelValues(code).Observe(d.Seconds())
}

var (
	_ observability.AnalysisHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.WorkerHooks   = (*Metrics)(nil)
)
