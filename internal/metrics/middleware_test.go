package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/skus/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/products/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Post("/products", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Get("/silent", func(w http.ResponseWriter, r *http.Request) {})
	return r
}

func serve(r http.Handler, method, path string) {
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody))
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := newRouter()
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/skus/{id}", "200"))

	serve(r, http.MethodGet, "/skus/a")
	serve(r, http.MethodGet, "/skus/b")

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/skus/{id}", "200"))
	if got-before != 2 {
		t.Errorf("expected 2 requests under the route pattern, got %v", got-before)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestMiddleware_StatusAndMethod(t *testing.T) {
	r := newRouter()

	tests := []struct {
		method, path, route, status string
	}{
		{http.MethodGet, "/skus/missing", "/skus/{id}", "404"},
		{http.MethodGet, "/products/search", "/products/search", "503"},
		{http.MethodPost, "/products", "/products", "201"},
		{http.MethodGet, "/silent", "/silent", "200"},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			c := httpRequestsTotal.WithLabelValues(tc.method, tc.route, tc.status)
			before := testutil.ToFloat64(c)
			serve(r, tc.method, tc.path)
			if testutil.ToFloat64(c)-before != 1 {
				t.Errorf("counter for %s %s %s did not move", tc.method, tc.route, tc.status)
			}
		})
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	r := newRouter()
	c := httpRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404")
	before := testutil.ToFloat64(c)

	serve(r, http.MethodGet, "/no/such/path/123")

	if testutil.ToFloat64(c)-before != 1 {
		t.Error("unmatched requests must share one label value")
	}
}

func TestMiddleware_InFlightReturnsToZero(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	var during float64
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(httpRequestsInFlight)
	})

	base := testutil.ToFloat64(httpRequestsInFlight)
	serve(r, http.MethodGet, "/ping")

	if during != base+1 {
		t.Errorf("in-flight during request = %v, want %v", during, base+1)
	}
	if after := testutil.ToFloat64(httpRequestsInFlight); after != base {
		t.Errorf("in-flight after request = %v, want %v", after, base)
	}
}
