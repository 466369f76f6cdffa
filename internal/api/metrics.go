package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veristry_ledger_mutations_total",
		Help: "Total ledger mutation attempts by operation and result.",
	}, []string{"op", "result"})

	ledgerIdentitiesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veristry_ledger_identities_total",
		Help: "Number of identities currently recorded.",
	})

	ledgerEventsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veristry_ledger_events_total",
		Help: "Current event log sequence number.",
	})

	snapshotSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veristry_snapshot_saves_total",
		Help: "Total snapshot save attempts by result.",
	}, []string{"result"})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veristry_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter.",
	})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veristry_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veristry_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordMutation records one ledger mutation attempt.
func RecordMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	ledgerMutationsTotal.WithLabelValues(op, result).Inc()
}

// RecordRateLimited records one request rejected by the rate limiter.
func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

// RecordSnapshotSave records a snapshot save attempt.
func RecordSnapshotSave(success bool) {
	if success {
		snapshotSavesTotal.WithLabelValues("success").Inc()
	} else {
		snapshotSavesTotal.WithLabelValues("failure").Inc()
	}
}

// SetLedgerGauges updates the identity and event-sequence gauges.
func SetLedgerGauges(identities int, events uint64) {
	ledgerIdentitiesTotal.Set(float64(identities))
	ledgerEventsTotal.Set(float64(events))
}
