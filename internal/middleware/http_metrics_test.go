package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/recommendations/posts", "/recommendations/posts"},
		{"/recommendations/users", "/recommendations/users"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/users/123", "/users/{id}"},
		{"/users/550e8400-e29b-41d4-a716-446655440000", "/users/{id}"},
		{"/users/123/follows", "/users/{id}/follows"},
		{"/posts/abc", "/posts/{id}"},
		{"/posts/", "/posts/"},
		{"/unknown/route", "/unknown/route"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestHTTPMetrics_RecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/recommendations/posts", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	count := counterValue(t, metrics.httpRequestsTotal.WithLabelValues("GET", "/recommendations/posts", "200"))
	if count != 1 {
		t.Errorf("expected 1 request recorded, got %f", count)
	}
}

func TestHTTPMetrics_NormalizesDynamicPaths(t *testing.T) {
	metrics := NewMetrics()

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/users/1", "/users/2", "/users/3"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	// All three land on the same normalized label.
	count := counterValue(t, metrics.httpRequestsTotal.WithLabelValues("GET", "/users/{id}", "200"))
	if count != 3 {
		t.Errorf("expected 3 requests on /users/{id}, got %f", count)
	}
}

func TestHTTPMetrics_SkipsHealthEndpoints(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, family := range families {
		if family.GetName() == MetricHTTPRequestsTotal && len(family.GetMetric()) != 0 {
			t.Error("expected no request metrics for health endpoints")
		}
	}
}

func TestHTTPMetrics_ErrorStatus(t *testing.T) {
	metrics := NewMetrics()

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))

	req := httptest.NewRequest(http.MethodGet, "/recommendations/users", nil)
	req.Body = http.NoBody
	req.Header.Set("Content-Length", "0")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	count := counterValue(t, metrics.httpRequestsTotal.WithLabelValues("GET", "/recommendations/users", "503"))
	if count != 1 {
		t.Errorf("expected 1 error request recorded, got %f", count)
	}
}

func TestMetrics_Register_Duplicate(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMetrics_RateLimitCounters(t *testing.T) {
	m := NewMetrics()

	m.IncRateLimitRequests("/recommendations/posts", "user")
	m.IncRateLimitRequests("/recommendations/posts", "user")
	m.IncRateLimitBlocked("/recommendations/posts", "user")
	m.IncRateLimitRedisErrors()

	if got := counterValue(t, m.rateLimitRequests.WithLabelValues("/recommendations/posts", "user")); got != 2 {
		t.Errorf("expected 2 rate limit checks, got %f", got)
	}
	if got := counterValue(t, m.rateLimitBlocked.WithLabelValues("/recommendations/posts", "user")); got != 1 {
		t.Errorf("expected 1 blocked request, got %f", got)
	}
	if got := counterValue(t, m.rateLimitRedisErrors); got != 1 {
		t.Errorf("expected 1 redis error, got %f", got)
	}
}

// counterValue reads the current value of a Prometheus counter.
func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
