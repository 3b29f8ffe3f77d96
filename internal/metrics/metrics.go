// Package metrics provides Prometheus instrumentation for the RugSentry platform.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rugsentry",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rugsentry",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// WarningsCreated counts warnings ingested by network.
	WarningsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rugsentry",
			Name:      "warnings_created_total",
			Help:      "Total warnings created by network.",
		},
		[]string{"network"},
	)

	// WarningTransitions counts lifecycle transitions by target status.
	WarningTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rugsentry",
			Name:      "warning_transitions_total",
			Help:      "Total warning status transitions by target status.",
		},
		[]string{"to_status"},
	)

	// MonitorTicks counts monitoring re-evaluation cycles by outcome.
	MonitorTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rugsentry",
			Name:      "monitor_ticks_total",
			Help:      "Total monitoring ticks by outcome (updated, skipped, retired).",
		},
		[]string{"outcome"},
	)

	// MonitoredWarnings tracks warnings under active monitoring.
	MonitoredWarnings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rugsentry",
			Name:      "monitored_warnings",
			Help:      "Number of warnings with an outstanding re-evaluation timer.",
		},
	)

	// ProviderCallDuration observes chain provider call latency.
	ProviderCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rugsentry",
			Name:      "provider_call_duration_seconds",
			Help:      "Chain data provider call duration by method and network.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "network"},
	)

	// ProviderErrors counts failed chain provider calls.
	ProviderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rugsentry",
			Name:      "provider_errors_total",
			Help:      "Total chain provider call failures by method and network.",
		},
		[]string{"method", "network"},
	)

	// ChatMessagesScanned counts inbound chat messages run through the risk scan.
	ChatMessagesScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rugsentry",
			Name:      "chat_messages_scanned_total",
			Help:      "Total chat messages scanned by result (clean, flagged).",
		},
		[]string{"result"},
	)

	// AutoEscalations counts records forced back to review at the flag threshold.
	AutoEscalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rugsentry",
			Name:      "auto_escalations_total",
			Help:      "Total automatic escalations to review status by record kind.",
		},
		[]string{"kind"},
	)

	// TombstoneTransitions counts tombstone verification transitions.
	TombstoneTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rugsentry",
			Name:      "tombstone_transitions_total",
			Help:      "Total tombstone verification transitions by target status.",
		},
		[]string{"to_status"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rugsentry",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rugsentry", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rugsentry", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rugsentry", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rugsentry", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		WarningsCreated,
		WarningTransitions,
		MonitorTicks,
		MonitoredWarnings,
		ProviderCallDuration,
		ProviderErrors,
		ChatMessagesScanned,
		AutoEscalations,
		TombstoneTransitions,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
