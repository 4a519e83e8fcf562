package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and the
// sync engine's job lifecycle.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	itemsTotal      *prometheus.CounterVec
	lockContention  prometheus.Counter
	sessionsClosed  prometheus.Counter
	quotaSkipsTotal prometheus.Counter
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "creatorpulse",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creatorpulse",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	jobsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creatorpulse",
		Subsystem: "sync",
		Name:      "jobs_total",
		Help:      "Sync jobs by outcome (completed, failed, retried, skipped).",
	}, []string{"outcome"})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "creatorpulse",
		Subsystem: "sync",
		Name:      "job_duration_seconds",
		Help:      "Duration of sync job execution.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"platform"})

	itemsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creatorpulse",
		Subsystem: "sync",
		Name:      "items_total",
		Help:      "Content items written by kind (created, refreshed).",
	}, []string{"kind"})

	lockContention := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "creatorpulse",
		Subsystem: "sync",
		Name:      "lock_contention_total",
		Help:      "Sync attempts skipped because the account lock was held.",
	})

	sessionsClosed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "creatorpulse",
		Subsystem: "sync",
		Name:      "sessions_closed_total",
		Help:      "Sync sessions closed after all members reported.",
	})

	quotaSkipsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "creatorpulse",
		Subsystem: "sync",
		Name:      "quota_skips_total",
		Help:      "New items skipped because the organization quota was reached.",
	})

	collectors := []prometheus.Collector{
		requestDuration, requestTotal,
		jobsTotal, jobDuration, itemsTotal,
		lockContention, sessionsClosed, quotaSkipsTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		jobsTotal:       jobsTotal,
		jobDuration:     jobDuration,
		itemsTotal:      itemsTotal,
		lockContention:  lockContention,
		sessionsClosed:  sessionsClosed,
		quotaSkipsTotal: quotaSkipsTotal,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ObserveJob records one finished sync job.
func (c *Collector) ObserveJob(platform, outcome string, duration time.Duration) {
	c.jobsTotal.WithLabelValues(outcome).Inc()
	c.jobDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// ObserveItems records content writes from one sync run.
func (c *Collector) ObserveItems(created, refreshed, quotaSkipped int) {
	if created > 0 {
		c.itemsTotal.WithLabelValues("created").Add(float64(created))
	}
	if refreshed > 0 {
		c.itemsTotal.WithLabelValues("refreshed").Add(float64(refreshed))
	}
	if quotaSkipped > 0 {
		c.quotaSkipsTotal.Add(float64(quotaSkipped))
	}
}

// ObserveLockContention records one skipped sync due to a held lock.
func (c *Collector) ObserveLockContention() {
	c.lockContention.Inc()
}

// ObserveSessionClosed records one closed sync session.
func (c *Collector) ObserveSessionClosed() {
	c.sessionsClosed.Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
