package app

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/engineerhub/engineerhub/internal/auth"
	"github.com/engineerhub/engineerhub/internal/engineers"
	"github.com/engineerhub/engineerhub/internal/observability"
	"github.com/engineerhub/engineerhub/internal/platform/httpx"
	"github.com/engineerhub/engineerhub/jobs"
)

const readinessTimeout = 2 * time.Second

// HealthCheck is one dependency probed by /readyz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	EngineersHandler *engineers.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
	Readiness        []HealthCheck
}

// NewRouter constructs the chi.Router with engineerhub defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readinessHandler(logger, params.Readiness))

	if params.AuthHandler != nil {
		r.Route("/api/auth", params.AuthHandler.MountRoutes)
		r.Route("/api/user", params.AuthHandler.MountUserRoutes)
	}
	if params.EngineersHandler != nil {
		r.Route("/api/engineers", params.EngineersHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/api/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

// NewMetricsRouter serves /metrics and /healthz for processes without an API,
// such as the worker.
func NewMetricsRouter(metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

type readinessResponse struct {
	Status  string   `json:"status"`
	Failing []string `json:"failing,omitempty"`
}

// readinessHandler probes every dependency concurrently and reports 503 when
// any of them fails.
func readinessHandler(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			failing []string
			g       errgroup.Group
		)
		for _, hc := range checks {
			g.Go(func() error {
				if err := hc.Check(ctx); err != nil {
					logger.Warn("readiness check failed", slog.String("dependency", hc.Name), slog.Any("error", err))
					mu.Lock()
					failing = append(failing, hc.Name)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(failing) > 0 {
			sort.Strings(failing)
			httpx.JSON(w, http.StatusServiceUnavailable, readinessResponse{Status: "unavailable", Failing: failing})
			return
		}
		httpx.JSON(w, http.StatusOK, readinessResponse{Status: "ok"})
	}
}
