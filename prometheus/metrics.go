package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthSuccessCounter  prometheus.Counter
	AuthErrorsCounter   prometheus.Counter

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Resource operation metrics
	VendorOperationsCounter        *prometheus.CounterVec
	PurchaseOrderOperationsCounter *prometheus.CounterVec

	// Performance recompute metrics
	RecomputeCounter  *prometheus.CounterVec
	RecomputeDuration *prometheus.HistogramVec

	// Current vendor metric values
	VendorMetricGauge *prometheus.GaugeVec
}

// New registers the service collectors on reg using the given metric prefix
func New(prefix string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HttpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HttpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		AuthAttemptsCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of authentication attempts",
		}),
		AuthSuccessCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_auth_success_total",
			Help: "Total number of successful authentications",
		}),
		AuthErrorsCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors",
		}),
		DbOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_db_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation_type"},
		),
		VendorOperationsCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_vendor_operations_total",
				Help: "Total number of vendor operations",
			},
			[]string{"operation"},
		),
		PurchaseOrderOperationsCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_purchase_order_operations_total",
				Help: "Total number of purchase order operations",
			},
			[]string{"operation"},
		),
		RecomputeCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_performance_recompute_total",
				Help: "Total number of vendor performance recomputes",
			},
			[]string{"kind", "result"},
		),
		RecomputeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_performance_recompute_duration_seconds",
				Help:    "Duration of vendor performance recomputes in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		VendorMetricGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: prefix + "_vendor_performance",
				Help: "Most recently computed vendor performance metric",
			},
			[]string{"vendor_id", "metric"},
		),
	}
}

// ObserveHTTPRequest records a finished HTTP request
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.HttpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HttpRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// TrackDBOperation returns a function that records the duration of a database operation
func (m *Metrics) TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if m == nil {
			return
		}
		m.DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

// RecordVendorOperation increments the counter for vendor operations
func (m *Metrics) RecordVendorOperation(operation string) {
	if m == nil {
		return
	}
	m.VendorOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordPurchaseOrderOperation increments the counter for purchase order operations
func (m *Metrics) RecordPurchaseOrderOperation(operation string) {
	if m == nil {
		return
	}
	m.PurchaseOrderOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordAuthAttempt counts an authentication attempt and its outcome
func (m *Metrics) RecordAuthAttempt(success bool) {
	if m == nil {
		return
	}
	m.AuthAttemptsCounter.Inc()
	if success {
		m.AuthSuccessCounter.Inc()
	} else {
		m.AuthErrorsCounter.Inc()
	}
}

// ObserveRecompute records a recompute of the given kind
func (m *Metrics) ObserveRecompute(kind string, err error, startTime time.Time) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.RecomputeCounter.WithLabelValues(kind, result).Inc()
	m.RecomputeDuration.WithLabelValues(kind).Observe(time.Since(startTime).Seconds())
}

// SetVendorMetric publishes the latest value of one vendor metric
func (m *Metrics) SetVendorMetric(vendorID uint, metric string, value float64) {
	if m == nil {
		return
	}
	m.VendorMetricGauge.WithLabelValues(strconv.FormatUint(uint64(vendorID), 10), metric).Set(value)
}

// DeleteVendor drops the gauges of a removed vendor
func (m *Metrics) DeleteVendor(vendorID uint) {
	if m == nil {
		return
	}
	m.VendorMetricGauge.DeletePartialMatch(prometheus.Labels{
		"vendor_id": strconv.FormatUint(uint64(vendorID), 10),
	})
}
