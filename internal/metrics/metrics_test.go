package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordLogin(t *testing.T) {
	before := testutil.ToFloat64(LoginAttempts.WithLabelValues("member", "success"))
	RecordLogin("member", "success")
	after := testutil.ToFloat64(LoginAttempts.WithLabelValues("member", "success"))
	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}

	before = testutil.ToFloat64(LoginAttempts.WithLabelValues("unknown", "invalid"))
	RecordLogin("", "invalid")
	if got := testutil.ToFloat64(LoginAttempts.WithLabelValues("unknown", "invalid")); got != before+1 {
		t.Errorf("empty kind should count as unknown, got %v", got)
	}
}

func TestRecordSessionsInvalidated(t *testing.T) {
	c := SessionsInvalidated.WithLabelValues("password_change")
	before := testutil.ToFloat64(c)
	RecordSessionsInvalidated("password_change", 3)
	RecordSessionsInvalidated("password_change", 0)
	if got := testutil.ToFloat64(c); got != before+3 {
		t.Errorf("counter = %v, want %v", got, before+3)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/family/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	c := HTTPRequestsTotal.WithLabelValues("GET", "/api/family/{id}", "404")
	before := testutil.ToFloat64(c)

	req := httptest.NewRequest(http.MethodGet, "/api/family/abc", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("counter = %v, want %v", got, before+1)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordLogin("admin", "success")
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "legacy_login_attempts_total") {
		t.Error("login counter missing from exposition")
	}
}
