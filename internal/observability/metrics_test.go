package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	NewLedgerMetrics(metrics.Registerer()).MovementApplied("IMPORT")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `stockroom_ledger_movements_total{kind="IMPORT"} 1`)
	require.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	metricsRR := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := metricsRR.Body.String()
	require.Contains(t, body, `stockroom_http_requests_total{code="418",method="GET",route="/test"} 1`)
	require.Contains(t, body, `stockroom_http_request_duration_seconds_bucket{route="/test"`)
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.inFlight))
}

func TestNilMetrics(t *testing.T) {
	var metrics *Metrics
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, metrics.Middleware(next))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var ledger *LedgerMetrics
	ledger.MovementApplied("IMPORT")
	ledger.MovementRejected("insufficient_stock")
}

func TestLedgerMetricsCounts(t *testing.T) {
	metrics := NewMetrics()
	ledger := NewLedgerMetrics(metrics.Registerer())

	ledger.MovementApplied("EXPORT")
	ledger.MovementApplied("EXPORT")
	ledger.MovementRejected("insufficient_stock")

	require.Equal(t, 2.0, testutil.ToFloat64(ledger.applied.WithLabelValues("EXPORT")))
	require.Equal(t, 1.0, testutil.ToFloat64(ledger.rejected.WithLabelValues("insufficient_stock")))
}

func TestMetricsMiddlewareDefaultsStatusAndRoute(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/nowhere", nil))

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues(http.MethodPost, "unmatched", "200")))
}
