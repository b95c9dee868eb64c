package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filedrive_http_requests_total",
		Help: "HTTP requests handled, by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "filedrive_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	fileUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filedrive_file_uploads_total",
		Help: "File uploads by storage provider and outcome.",
	}, []string{"provider", "status"})

	fileDeletesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filedrive_file_deletes_total",
		Help: "File deletions by storage provider and outcome.",
	}, []string{"provider", "status"})

	uploadRateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filedrive_upload_rate_limited_total",
		Help: "Uploads rejected by the per-user rate limiter.",
	})

	storageOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "filedrive_storage_operation_duration_seconds",
		Help:    "Latency of storage provider operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation", "status"})

	auditEventsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filedrive_audit_events_dropped_total",
		Help: "Audit events that could not be appended to the sink.",
	})
)

// InitMetrics registers all collectors with the default registry. Safe to call repeatedly.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			fileUploadsTotal,
			fileDeletesTotal,
			uploadRateLimitedTotal,
			storageOperationDuration,
			auditEventsDroppedTotal,
		)
	})
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveUpload counts a finished upload.
func ObserveUpload(provider string, err error) {
	fileUploadsTotal.WithLabelValues(provider, outcome(err)).Inc()
}

// ObserveDelete counts a finished delete.
func ObserveDelete(provider string, err error) {
	fileDeletesTotal.WithLabelValues(provider, outcome(err)).Inc()
}

// ObserveRateLimited counts an upload rejected by the rate limiter.
func ObserveRateLimited() {
	uploadRateLimitedTotal.Inc()
}

// ObserveStorageOperation records the latency of one provider call.
func ObserveStorageOperation(provider, operation string, started time.Time, err error) {
	storageOperationDuration.WithLabelValues(provider, operation, outcome(err)).Observe(time.Since(started).Seconds())
}

// ObserveStorageLookup records an existence check. Providers report lookup
// errors as a missing object, so the status is found or missing.
func ObserveStorageLookup(provider string, started time.Time, found bool) {
	status := "missing"
	if found {
		status = "found"
	}
	storageOperationDuration.WithLabelValues(provider, "exists", status).Observe(time.Since(started).Seconds())
}

// ObserveAuditDropped counts an audit event lost to a sink failure.
func ObserveAuditDropped() {
	auditEventsDroppedTotal.Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
