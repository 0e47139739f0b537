package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRouteTemplate(t *testing.T) {
	Configure(true, false)
	defer Configure(false, false)

	r := mux.NewRouter()
	r.Use(MetricsMiddleware)
	r.HandleFunc("/diagnosis/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/diagnosis/42?x=1", nil))
	}

	got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/diagnosis/{id}", "418"))
	if got != 2 {
		t.Errorf("expected 2 requests recorded under the route template, got %v", got)
	}
}

func TestBusinessMetricsDisabled(t *testing.T) {
	Configure(false, false)
	RecordResolution(ResultCacheHit)
	if diagnosisResolutionsTotal != nil {
		if v := testutil.ToFloat64(diagnosisResolutionsTotal.WithLabelValues(ResultCacheHit)); v != 0 {
			t.Errorf("expected nothing recorded while disabled, got %v", v)
		}
	}
}

func TestHandlerServesPrivateRegistry(t *testing.T) {
	Configure(true, false)
	defer Configure(false, false)

	RecordResolution(ResultCacheMiss)
	RecordProviderRequest("diagnosis", time.Now(), http.StatusOK)
	RecordPersistJob("committed", time.Now())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		"diagnosis_resolutions_total",
		"priaid_http_requests_total",
		"diagnosis_persist_jobs_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in exposition output", name)
		}
	}
}
