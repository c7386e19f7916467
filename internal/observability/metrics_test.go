package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobCollectors(t *testing.T) {
	metrics := NewMetrics()
	_ = metrics.Jobs().Track("ledger:integrity").End(nil)
	metrics.Jobs().SetUnbalancedDocuments(3)

	body := scrape(t, metrics)
	if !strings.Contains(body, `gesticom_jobs_total{job="ledger:integrity",status="success"} 1`) {
		t.Fatalf("expected job run to be counted, got: %s", body)
	}
	if !strings.Contains(body, "gesticom_ledger_unbalanced_documents 3") {
		t.Fatalf("expected unbalanced gauge, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "gesticom_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "gesticom_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestObserveReversal(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveReversal("SALE", "CANCEL", "ok")
	metrics.ObserveReversal("SALE", "CANCEL", "ok")
	_ = metrics.Jobs().Track("ledger:integrity").End(errors.New("db down"))

	body := scrape(t, metrics)
	if !strings.Contains(body, `gesticom_reversals_total{document="SALE",mode="CANCEL",outcome="ok"} 2`) {
		t.Fatalf("expected reversal counter, got: %s", body)
	}
	if !strings.Contains(body, `gesticom_jobs_failures_total{job="ledger:integrity"} 1`) {
		t.Fatalf("expected job failure counter, got: %s", body)
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveReversal("SALE", "DELETE", "ok")
}
