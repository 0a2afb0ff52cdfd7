package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLifecycleCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.CheckIn("success")
	m.CheckIn("success")
	m.CheckIn("conflict")
	m.CheckOut("QRIS", "success")
	m.Revenue("QRIS", 70000, 20000, 10000)
	m.Cancelled()
	m.ObserveOperation("check_out", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CheckInsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckInsTotal.WithLabelValues("conflict")))
	assert.Equal(t, 70000.0, testutil.ToFloat64(m.RevenueTotal.WithLabelValues("QRIS")))
	assert.Equal(t, 20000.0, testutil.ToFloat64(m.DiscountTotal.WithLabelValues("voucher")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CancellationsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDuration))

	m.DailyReport(42, 315000)
	assert.Equal(t, 42.0, testutil.ToFloat64(m.ReportVehicles))
	assert.Equal(t, 315000.0, testutil.ToFloat64(m.ReportRevenue))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CheckIn("success")
		m.CheckOut("CASH", "success")
		m.StatusCache(true)
		m.CacheError("set_hint")
		m.DailyReport(1, 5000)
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	h := HTTPMetricsMiddleware(m, func(r *http.Request) string { return "/api/parking/status/{plateNumber}" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/parking/status/B1", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues("GET", "/api/parking/status/{plateNumber}", "404")))

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "parking_http_requests_total"))
}
