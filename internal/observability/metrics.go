// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Alert lifecycle metrics
	AlertsCreated    prometheus.Counter
	AlertsTriggered  *prometheus.CounterVec
	AlertsActive     prometheus.Gauge
	EvaluationErrors *prometheus.CounterVec

	// Sweep metrics
	SweepDuration prometheus.Histogram
	SweepRuns     *prometheus.CounterVec

	// Stream metrics
	SwapEventsReceived prometheus.Counter
	StreamReconnects   prometheus.Counter
	StreamConnected    prometheus.Gauge

	// Notification metrics
	NotificationsEnqueued  prometheus.Counter
	NotificationsDelivered *prometheus.CounterVec
	NotificationsPending   prometheus.Gauge

	// Market data metrics
	GatewayRequests   *prometheus.CounterVec
	GatewayLatency    prometheus.Histogram
	SOLPriceUSD       prometheus.Gauge
	PriceCacheEntries prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_alerts"
	}

	return &Metrics{
		AlertsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "created_total",
			Help:      "Total number of alerts created",
		}),
		AlertsTriggered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "triggered_total",
			Help:      "Total number of alerts triggered by evaluation path",
		}, []string{"path"}),
		AlertsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "active",
			Help:      "Current number of active untriggered alerts",
		}),
		EvaluationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "evaluation_errors_total",
			Help:      "Total number of evaluation errors by source",
		}, []string{"source"}),

		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Alert sweep duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SweepRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Total number of sweep runs by status",
		}, []string{"status"}),

		SwapEventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "swap_events_received_total",
			Help:      "Total number of swap events received from the live feed",
		}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of stream reconnect attempts",
		}),
		StreamConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connected",
			Help:      "Whether the live feed connection is up (1) or down (0)",
		}),

		NotificationsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "enqueued_total",
			Help:      "Total number of notifications enqueued",
		}),
		NotificationsDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "delivered_total",
			Help:      "Total number of notification deliveries by channel and status",
		}, []string{"channel", "status"}),
		NotificationsPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "pending",
			Help:      "Current number of pending notification entries",
		}),

		GatewayRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "gateway_requests_total",
			Help:      "Total number of market data gateway requests by outcome",
		}, []string{"outcome"}),
		GatewayLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "gateway_latency_seconds",
			Help:      "Market data gateway request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SOLPriceUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "sol_price_usd",
			Help:      "Last known SOL price in USD",
		}),
		PriceCacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "price_cache_entries",
			Help:      "Current number of entries in the market data cache",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAlertCreated increments the alerts created counter.
func RecordAlertCreated() {
	DefaultMetrics.AlertsCreated.Inc()
}

// RecordAlertTriggered records a trigger by evaluation path ("sweep" or "stream").
func RecordAlertTriggered(path string) {
	DefaultMetrics.AlertsTriggered.WithLabelValues(path).Inc()
}

// UpdateActiveAlerts updates the active alerts gauge.
func UpdateActiveAlerts(n int) {
	DefaultMetrics.AlertsActive.Set(float64(n))
}

// RecordEvaluationError records an evaluation error by source.
func RecordEvaluationError(source string) {
	DefaultMetrics.EvaluationErrors.WithLabelValues(source).Inc()
}

// RecordSweep records one sweep run.
func RecordSweep(status string, seconds float64) {
	DefaultMetrics.SweepRuns.WithLabelValues(status).Inc()
	DefaultMetrics.SweepDuration.Observe(seconds)
}

// RecordSwapEvent increments the swap events received counter.
func RecordSwapEvent() {
	DefaultMetrics.SwapEventsReceived.Inc()
}

// RecordStreamReconnect increments the stream reconnect counter.
func RecordStreamReconnect() {
	DefaultMetrics.StreamReconnects.Inc()
}

// UpdateStreamConnected updates the stream connection gauge.
func UpdateStreamConnected(up bool) {
	if up {
		DefaultMetrics.StreamConnected.Set(1)
	} else {
		DefaultMetrics.StreamConnected.Set(0)
	}
}

// RecordNotificationEnqueued increments the notifications enqueued counter.
func RecordNotificationEnqueued() {
	DefaultMetrics.NotificationsEnqueued.Inc()
}

// RecordNotificationDelivery records one delivery attempt outcome.
func RecordNotificationDelivery(channel, status string) {
	DefaultMetrics.NotificationsDelivered.WithLabelValues(channel, status).Inc()
}

// UpdatePendingNotifications updates the pending notifications gauge.
func UpdatePendingNotifications(n int) {
	DefaultMetrics.NotificationsPending.Set(float64(n))
}

// RecordGatewayRequest records a gateway request outcome and latency.
func RecordGatewayRequest(outcome string, seconds float64) {
	DefaultMetrics.GatewayRequests.WithLabelValues(outcome).Inc()
	DefaultMetrics.GatewayLatency.Observe(seconds)
}

// UpdateSOLPrice updates the SOL price gauge.
func UpdateSOLPrice(usd float64) {
	DefaultMetrics.SOLPriceUSD.Set(usd)
}

// UpdatePriceCacheEntries updates the cache size gauge.
func UpdatePriceCacheEntries(n int) {
	DefaultMetrics.PriceCacheEntries.Set(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
