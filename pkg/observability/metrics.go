package observability

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platinummonkey/spkrepo/pkg/storage"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Database metrics
	DBQueriesTotal       *prometheus.CounterVec
	DBQueryDuration      *prometheus.HistogramVec
	DBConnectionsOpen    prometheus.Gauge
	DBConnectionsInUse   prometheus.Gauge
	DBConnectionsIdle    prometheus.Gauge
	DBConnectionsWait    prometheus.Gauge
	DBConnectionsWaitSec prometheus.Gauge

	// Download metrics
	DownloadsTotal        *prometheus.CounterVec
	DownloadsDroppedTotal prometheus.Counter
	DownloadQueueDepth    prometheus.Gauge

	// Maintenance metrics
	PasswordResetsPurgedTotal prometheus.Counter

	// Catalog metrics
	PackagesTotal    prometheus.Gauge
	ActiveUsersTotal prometheus.Gauge
	DownloadsStored  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spkrepo_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spkrepo_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spkrepo_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),

		DBQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spkrepo_db_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "status"},
		),
		DBQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spkrepo_db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spkrepo_db_connections_open",
			Help: "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spkrepo_db_connections_in_use",
			Help: "Number of database connections in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spkrepo_db_connections_idle",
			Help: "Number of idle database connections",
		}),
		DBConnectionsWait: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spkrepo_db_connections_wait_count",
			Help: "Total number of connections waited for",
		}),
		DBConnectionsWaitSec: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spkrepo_db_connections_wait_duration_seconds",
			Help: "Total time spent waiting for connections",
		}),

		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spkrepo_downloads_total",
				Help: "Total number of build downloads served",
			},
			[]string{"architecture"},
		),
		DownloadsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spkrepo_downloads_dropped_total",
			Help: "Download events not recorded because the queue was full",
		}),
		DownloadQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spkrepo_download_queue_depth",
			Help: "Download events waiting to be written",
		}),

		PasswordResetsPurgedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spkrepo_password_resets_purged_total",
			Help: "Expired password resets removed",
		}),

		PackagesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spkrepo_packages_total",
			Help: "Total number of packages",
		}),
		ActiveUsersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spkrepo_active_users_total",
			Help: "Total number of active users",
		}),
		DownloadsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spkrepo_downloads_stored",
			Help: "Number of download events stored",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.DBQueriesTotal,
		m.DBQueryDuration,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBConnectionsWait,
		m.DBConnectionsWaitSec,
		m.DownloadsTotal,
		m.DownloadsDroppedTotal,
		m.DownloadQueueDepth,
		m.PasswordResetsPurgedTotal,
		m.PackagesTotal,
		m.ActiveUsersTotal,
		m.DownloadsStored,
	)

	return m
}

// ObserveQuery implements storage.Observer
func (m *Metrics) ObserveQuery(operation string, duration time.Duration, err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	m.DBQueriesTotal.WithLabelValues(operation, status).Inc()
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObservePool records connection pool statistics
func (m *Metrics) ObservePool(stats sql.DBStats) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWait.Set(float64(stats.WaitCount))
	m.DBConnectionsWaitSec.Set(stats.WaitDuration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled with the matched mux route template so ids in paths
// do not create new series.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, gatherer prometheus.Gatherer) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
