package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Lifecycle metrics
	CheckInsTotal      *prometheus.CounterVec
	CheckOutsTotal     *prometheus.CounterVec
	CancellationsTotal prometheus.Counter
	RevenueTotal       *prometheus.CounterVec
	DiscountTotal      *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec

	// Cache metrics
	CacheErrorsTotal  *prometheus.CounterVec
	StatusCacheHits   prometheus.Counter
	StatusCacheMisses prometheus.Counter

	// Daily report gauges, set once per finished day
	ReportVehicles prometheus.Gauge
	ReportRevenue  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parking_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parking_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CheckInsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parking_check_ins_total",
				Help: "Check-in attempts by outcome",
			},
			[]string{"outcome"},
		),
		CheckOutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parking_check_outs_total",
				Help: "Check-out attempts by payment method and outcome",
			},
			[]string{"payment_method", "outcome"},
		),
		CancellationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parking_cancellations_total",
				Help: "Sessions cancelled administratively",
			},
		),
		RevenueTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parking_revenue_total",
				Help: "Settled parking fees",
			},
			[]string{"payment_method"},
		),
		DiscountTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parking_discount_total",
				Help: "Discounts granted by source",
			},
			[]string{"source"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parking_operation_duration_seconds",
				Help:    "Lifecycle operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parking_cache_errors_total",
				Help: "Dedup cache calls that failed",
			},
			[]string{"operation"},
		),
		StatusCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parking_status_cache_hits_total",
				Help: "Status lookups served from the in-process cache",
			},
		),
		StatusCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parking_status_cache_misses_total",
				Help: "Status lookups that went to the store",
			},
		),
		ReportVehicles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "parking_daily_report_vehicles",
				Help: "Vehicles checked in on the last reported day",
			},
		),
		ReportRevenue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "parking_daily_report_revenue",
				Help: "Invoiced revenue on the last reported day",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CheckInsTotal,
		m.CheckOutsTotal,
		m.CancellationsTotal,
		m.RevenueTotal,
		m.DiscountTotal,
		m.OperationDuration,
		m.CacheErrorsTotal,
		m.StatusCacheHits,
		m.StatusCacheMisses,
		m.ReportVehicles,
		m.ReportRevenue,
	)

	return m
}

func (m *Metrics) CheckIn(outcome string) {
	if m == nil {
		return
	}
	m.CheckInsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CheckOut(method, outcome string) {
	if m == nil {
		return
	}
	m.CheckOutsTotal.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) Cancelled() {
	if m == nil {
		return
	}
	m.CancellationsTotal.Inc()
}

func (m *Metrics) Revenue(method string, amount, voucherDiscount, memberDiscount float64) {
	if m == nil {
		return
	}
	m.RevenueTotal.WithLabelValues(method).Add(amount)
	m.DiscountTotal.WithLabelValues("voucher").Add(voucherDiscount)
	m.DiscountTotal.WithLabelValues("member").Add(memberDiscount)
}

func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) CacheError(operation string) {
	if m == nil {
		return
	}
	m.CacheErrorsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) StatusCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.StatusCacheHits.Inc()
	} else {
		m.StatusCacheMisses.Inc()
	}
}

func (m *Metrics) DailyReport(vehicles int64, revenue float64) {
	if m == nil {
		return
	}
	m.ReportVehicles.Set(float64(vehicles))
	m.ReportRevenue.Set(revenue)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware records request counts and latency. pathOf maps a
// request to a low-cardinality label, typically the matched route pattern.
func HTTPMetricsMiddleware(m *Metrics, pathOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			if m == nil {
				return
			}
			path := pathOf(r)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
