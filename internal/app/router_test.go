package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/engineerhub/engineerhub/internal/jobs"
	"github.com/engineerhub/engineerhub/internal/observability"
	"github.com/engineerhub/engineerhub/internal/platform/cache"
	"github.com/engineerhub/engineerhub/jobs"
)

func redisCheck(t *testing.T) (HealthCheck, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
		return cache.Ping(ctx, client)
	}}, mr
}

func TestHealthz(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestReadyzReportsFailingDependencies(t *testing.T) {
	check, mr := redisCheck(t)
	postgres := HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }}
	router := NewRouter(RouterParams{Config: &Config{}, Readiness: []HealthCheck{postgres, check}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	mr.Close()
	postgres.Check = func(context.Context) error { return errors.New("connection refused") }
	router = NewRouter(RouterParams{Config: &Config{}, Readiness: []HealthCheck{postgres, check}})

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body readinessResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, []string{"postgres", "redis"}, body.Failing)
}

func TestRouterMountsJobsAndMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{
		Config:     &Config{},
		JobHandler: jobs.NewHandler(nil, nil),
		Metrics:    metrics,
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `engineerhub_http_requests_total{code="200",route="/api/jobs/health"} 1`)
}

func TestMetricsRouterExportsWorkerMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	router := NewMetricsRouter(metrics)

	_ = jobMetrics.Track(jobs.TaskSessionPurge).End(errors.New("db gone"))
	jobMetrics.AddPurged("sessions", 2)
	metrics.MailFailure("verification")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `engineerhub_jobs_failures_total{job="auth:sessions:purge"} 1`)
	assert.Contains(t, body, `engineerhub_purged_total{resource="sessions"} 2`)
	assert.Contains(t, body, `engineerhub_mail_failures_total{kind="verification"} 1`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ledger", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
